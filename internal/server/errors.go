package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	dealerdomain "github.com/smallbiznis/petroprice/internal/dealer/domain"
	journaldomain "github.com/smallbiznis/petroprice/internal/journal/domain"
	pricebuildupdomain "github.com/smallbiznis/petroprice/internal/pricebuildup/domain"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	reconciliationdomain "github.com/smallbiznis/petroprice/internal/reconciliation/domain"
	"github.com/smallbiznis/petroprice/internal/scheduler"
	uppfdomain "github.com/smallbiznis/petroprice/internal/uppf/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrOrgRequired        = errors.New("organization_required")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: reasonMessage(err, "not found"),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: reasonMessage(err, "conflict"),
		}
	case isPreconditionError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "precondition_failed",
			Message: reasonMessage(err, "precondition failed"),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "rate limited",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, httpclient.ErrCircuitOpen),
		errors.Is(err, httpclient.ErrNotConfigured),
		errors.Is(err, uppfdomain.ErrRateSheetUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// reasonMessage exposes the sentinel's reason code. Wrapped errors keep the
// generic message so internal detail does not leak.
func reasonMessage(err error, fallback string) string {
	if errors.Unwrap(err) != nil {
		return fallback
	}
	return err.Error()
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidRequest,
		ErrOrgRequired,
		componentdomain.ErrInvalidOrganization,
		componentdomain.ErrInvalidCode,
		componentdomain.ErrInvalidCategory,
		componentdomain.ErrInvalidUnit,
		componentdomain.ErrInvalidRate,
		componentdomain.ErrInvalidEffectiveAt,
		componentdomain.ErrIncompleteDocument,
		pricebuildupdomain.ErrInvalidProduct,
		pricebuildupdomain.ErrInvalidOverride,
		windowdomain.ErrInvalidOrganization,
		windowdomain.ErrInvalidWindowNumber,
		windowdomain.ErrInvalidDateRange,
		windowdomain.ErrInvalidDeadline,
		reconciliationdomain.ErrInvalidOrganization,
		reconciliationdomain.ErrInvalidConsignment,
		reconciliationdomain.ErrInvalidRoute,
		uppfdomain.ErrInvalidOrganization,
		uppfdomain.ErrInvalidRequest,
		uppfdomain.ErrRejectionReason,
		uppfdomain.ErrInvalidAmount,
		uppfdomain.ErrUnknownProduct,
		uppfdomain.ErrInvalidLitres,
		dealerdomain.ErrInvalidOrganization,
		dealerdomain.ErrInvalidRequest,
		dealerdomain.ErrInvalidAmount,
		dealerdomain.ErrInvalidTenor,
		dealerdomain.ErrInvalidFrequency,
		dealerdomain.ErrPaymentReference,
		journaldomain.ErrUnbalanced,
		auditdomain.ErrInvalidOrganization,
		auditdomain.ErrInvalidPageToken,
		auditdomain.ErrInvalidTimeRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		componentdomain.ErrNotFound,
		componentdomain.ErrExRefineryNotFound,
		componentdomain.ErrWindowNotFound,
		windowdomain.ErrWindowNotFound,
		reconciliationdomain.ErrConsignmentNotFound,
		reconciliationdomain.ErrReconciliationMissing,
		reconciliationdomain.ErrRouteNotFound,
		uppfdomain.ErrConsignmentNotFound,
		uppfdomain.ErrRouteNotFound,
		uppfdomain.ErrClaimNotFound,
		uppfdomain.ErrWindowNotFound,
		dealerdomain.ErrWindowNotFound,
		dealerdomain.ErrDealerNotFound,
		dealerdomain.ErrSettlementNotFound,
		dealerdomain.ErrLoanNotFound,
		journaldomain.ErrNotFound,
		scheduler.ErrUnknownJob,
		gorm.ErrRecordNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isConflictError(err error) bool {
	for _, target := range []error{
		ErrConflict,
		componentdomain.ErrEffectiveOverlap,
		windowdomain.ErrWindowExists,
		windowdomain.ErrWindowOverlap,
		windowdomain.ErrInvalidTransition,
		windowdomain.ErrCreationInProgress,
		uppfdomain.ErrClaimExists,
		uppfdomain.ErrClaimNumberConflict,
		uppfdomain.ErrInvalidTransition,
		dealerdomain.ErrSettlementExists,
		dealerdomain.ErrInvalidTransition,
		scheduler.ErrJobLocked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isPreconditionError(err error) bool {
	for _, target := range []error{
		windowdomain.ErrCalculationInvalid,
		windowdomain.ErrNoStations,
		uppfdomain.ErrNotReconciled,
		uppfdomain.ErrNoEligibleDistance,
		uppfdomain.ErrNoEqualisationPoint,
		dealerdomain.ErrNegativeNetPayable,
		dealerdomain.ErrCreditLimitExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if errors.Unwrap(e) == nil {
			return e.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "organization_required":
		return "X-Org-Id header is required"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog feeds the request logger a type and reason code.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if status < http.StatusInternalServerError {
		code = payload.Message
	}
	return payload.Type, code
}
