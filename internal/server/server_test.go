package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	"github.com/smallbiznis/petroprice/internal/config"
	dealerdomain "github.com/smallbiznis/petroprice/internal/dealer/domain"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	pricebuildupdomain "github.com/smallbiznis/petroprice/internal/pricebuildup/domain"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	"github.com/smallbiznis/petroprice/internal/scheduler"
	uppfdomain "github.com/smallbiznis/petroprice/internal/uppf/domain"
	"github.com/smallbiznis/petroprice/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWindowService struct {
	windowdomain.Service

	seenOrg       snowflake.ID
	active        *windowdomain.PricingWindow
	err           error
	overrides     []pricebuildupdomain.Override
	exported      []byte
	transitionIDs [2]string
}

func (f *fakeWindowService) GetActiveWindow(ctx context.Context) (*windowdomain.PricingWindow, error) {
	f.seenOrg, _ = orgcontext.OrgIDFromContext(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return f.active, nil
}

func (f *fakeWindowService) CalculateAndPublishPrices(ctx context.Context, windowID string, overrides []pricebuildupdomain.Override) (*windowdomain.PublishResult, error) {
	f.overrides = overrides
	return &windowdomain.PublishResult{}, nil
}

func (f *fakeWindowService) ExportPriceSchedule(ctx context.Context, windowID string) ([]byte, error) {
	return f.exported, nil
}

func (f *fakeWindowService) TransitionWindow(ctx context.Context, currentID, nextID string) ([]windowdomain.PriceChange, error) {
	f.transitionIDs = [2]string{currentID, nextID}
	return nil, nil
}

type fakeDealerService struct {
	dealerdomain.Service

	approver string
	created  dealerdomain.CreateSettlementRequest
}

func (f *fakeDealerService) ApproveSettlement(ctx context.Context, number, approver string) (*dealerdomain.DealerSettlement, error) {
	f.approver = approver
	return &dealerdomain.DealerSettlement{SettlementNumber: number, ApprovalStatus: dealerdomain.ApprovalApproved}, nil
}

func (f *fakeDealerService) CreateSettlement(ctx context.Context, req dealerdomain.CreateSettlementRequest) (*dealerdomain.DealerSettlement, error) {
	f.created = req
	return &dealerdomain.DealerSettlement{SettlementNumber: "DS-1", DealerID: req.DealerID}, nil
}

type fakeAuditService struct {
	auditdomain.Service

	seen auditdomain.ListAuditLogRequest
	resp auditdomain.ListAuditLogResponse
	err  error
}

func (f *fakeAuditService) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	f.seen = req
	return f.resp, f.err
}

type testDeps struct {
	cfg     config.Config
	windows *fakeWindowService
	dealers *fakeDealerService
	audit   *fakeAuditService
}

func newTestEngine(t *testing.T, deps testDeps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if deps.windows == nil {
		deps.windows = &fakeWindowService{}
	}
	if deps.dealers == nil {
		deps.dealers = &fakeDealerService{}
	}

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	s := &Server{
		engine:    engine,
		cfg:       deps.cfg,
		log:       zap.NewNop(),
		windowSvc: deps.windows,
		dealerSvc: deps.dealers,
	}
	if deps.audit != nil {
		s.auditSvc = deps.audit
	}
	s.RegisterRoutes()
	return engine
}

func doRequest(engine *gin.Engine, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"validation sentinel", uppfdomain.ErrRejectionReason, http.StatusBadRequest, "validation_error"},
		{"not found", windowdomain.ErrWindowNotFound, http.StatusNotFound, "not_found"},
		{"unknown job", scheduler.ErrUnknownJob, http.StatusNotFound, "not_found"},
		{"conflict", uppfdomain.ErrClaimExists, http.StatusConflict, "conflict"},
		{"claim number conflict", uppfdomain.ErrClaimNumberConflict, http.StatusConflict, "conflict"},
		{"job locked", scheduler.ErrJobLocked, http.StatusConflict, "conflict"},
		{"precondition", dealerdomain.ErrNegativeNetPayable, http.StatusUnprocessableEntity, "precondition_failed"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"circuit open", fmt.Errorf("accounting: %w", httpclient.ErrCircuitOpen), http.StatusServiceUnavailable, "service_unavailable"},
		{"rate sheet", uppfdomain.ErrRateSheetUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
		})
	}
}

func TestMapErrorHidesWrappedDetail(t *testing.T) {
	_, payload := mapError(uppfdomain.ErrClaimExists)
	assert.Equal(t, "claim_exists", payload.Message)

	_, payload = mapError(fmt.Errorf("claim CLM-1 for consignment 9: %w", uppfdomain.ErrClaimExists))
	assert.Equal(t, "conflict", payload.Message)
}

func TestMapErrorUsesInnermostCodeForValidation(t *testing.T) {
	status, payload := mapError(fmt.Errorf("%w: bad frequency", dealerdomain.ErrInvalidFrequency))
	require.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_frequency", payload.Errors[0].Code)
	assert.Equal(t, "frequency", payload.Errors[0].Field)
}

func TestOrgHeaderRequiredWithoutDefault(t *testing.T) {
	engine := newTestEngine(t, testDeps{})

	rec := doRequest(engine, http.MethodGet, "/v1/windows/active", "", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "organization_required", payload.Errors[0].Code)
}

func TestInvalidOrgHeaderRejected(t *testing.T) {
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}})

	rec := doRequest(engine, http.MethodGet, "/v1/windows/active", "", map[string]string{HeaderOrg: "not-a-number"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_org_id", decodeError(t, rec).Errors[0].Code)
}

func TestOrgFallsBackToDefaultAndWrapsData(t *testing.T) {
	windows := &fakeWindowService{active: &windowdomain.PricingWindow{WindowID: "2026-W09", Status: windowdomain.StatusActive}}
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}, windows: windows})

	rec := doRequest(engine, http.MethodGet, "/v1/windows/active", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, snowflake.ID(7), windows.seenOrg)

	var resp struct {
		Data windowdomain.PricingWindow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-W09", resp.Data.WindowID)
}

func TestOrgHeaderOverridesDefault(t *testing.T) {
	windows := &fakeWindowService{active: &windowdomain.PricingWindow{WindowID: "2026-W09"}}
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}, windows: windows})

	rec := doRequest(engine, http.MethodGet, "/v1/windows/active", "", map[string]string{HeaderOrg: "42"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, snowflake.ID(42), windows.seenOrg)
}

func TestNoActiveWindowIsNotFound(t *testing.T) {
	windows := &fakeWindowService{err: windowdomain.ErrWindowNotFound}
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}, windows: windows})

	rec := doRequest(engine, http.MethodGet, "/v1/windows/active", "", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "window_not_found", decodeError(t, rec).Message)
}

func TestPublishPassesOverrides(t *testing.T) {
	windows := &fakeWindowService{}
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}, windows: windows})

	body := `{"overrides":[{"component_code":"BOST","value":"0.20","reason":"board directive"}]}`
	rec := doRequest(engine, http.MethodPost, "/v1/windows/2026-W09/publish", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, windows.overrides, 1)
	assert.Equal(t, "BOST", windows.overrides[0].ComponentCode)
	assert.Equal(t, "0.2", windows.overrides[0].Value.String())
}

func TestExportPriceScheduleServesWorkbook(t *testing.T) {
	windows := &fakeWindowService{exported: []byte("PK\x03\x04")}
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}, windows: windows})

	rec := doRequest(engine, http.MethodGet, "/v1/windows/2026-W09/export", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "price-schedule-2026-W09.xlsx")
	assert.Equal(t, "PK\x03\x04", rec.Body.String())
}

func TestTransitionRequiresBothWindows(t *testing.T) {
	windows := &fakeWindowService{}
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}, windows: windows})

	rec := doRequest(engine, http.MethodPost, "/v1/windows/transition", `{"current_window_id":"2026-W08"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(engine, http.MethodPost, "/v1/windows/transition", `{"current_window_id":"2026-W08","next_window_id":"2026-W09"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]string{"2026-W08", "2026-W09"}, windows.transitionIDs)
}

func TestApproveSettlementFallsBackToActorHeader(t *testing.T) {
	dealers := &fakeDealerService{}
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}, dealers: dealers})

	rec := doRequest(engine, http.MethodPost, "/v1/settlements/DS-1/approve", "", map[string]string{HeaderActor: "finance.lead"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "finance.lead", dealers.approver)
}

func TestApproveSettlementRequiresApprover(t *testing.T) {
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}})

	rec := doRequest(engine, http.MethodPost, "/v1/settlements/DS-1/approve", "", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "approver_required", decodeError(t, rec).Errors[0].Code)
}

func TestCreateSettlementStampsActor(t *testing.T) {
	dealers := &fakeDealerService{}
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}, dealers: dealers})

	body := `{"dealer_id":"D-17","window_id":"2026-W09","volume_sold":"10000","margin_rate":"0.35","created_by":"ignored"}`
	rec := doRequest(engine, http.MethodPost, "/v1/settlements", body, map[string]string{HeaderActor: "ops.clerk"})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ops.clerk", dealers.created.CreatedBy)
	assert.Equal(t, "D-17", dealers.created.DealerID)
}

func TestPreviewLoanSchedule(t *testing.T) {
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}})

	body := `{"principal":"1200","annual_rate_pct":"0","tenor_periods":12,"frequency":"MONTHLY","start_date":"2026-01-01T00:00:00Z"}`
	rec := doRequest(engine, http.MethodPost, "/v1/loans/schedule", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			Installments []dealerdomain.LoanInstallment `json:"installments"`
			TotalPayable string                         `json:"total_payable"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Installments, 12)
	assert.Equal(t, "1200", resp.Data.TotalPayable)
}

func TestPreviewLoanScheduleRejectsUnknownFrequency(t *testing.T) {
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}})

	body := `{"principal":"1200","annual_rate_pct":"12","tenor_periods":12,"frequency":"WEEKLY"}`
	rec := doRequest(engine, http.MethodPost, "/v1/loans/schedule", body, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_frequency", decodeError(t, rec).Errors[0].Code)
}

func TestJobsUnavailableWithoutScheduler(t *testing.T) {
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}})

	rec := doRequest(engine, http.MethodPost, "/v1/jobs/rate_sync/run", "", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "service_unavailable"))
}

func TestListAuditLogsPassesPaging(t *testing.T) {
	audit := &fakeAuditService{resp: auditdomain.ListAuditLogResponse{
		PageInfo:  pagination.PageInfo{NextPageToken: "next-token", HasMore: true},
		AuditLogs: []auditdomain.AuditLog{{ID: 1, Action: "pricing_window.published"}, {ID: 2, Action: "pricing_window.created"}},
	}}
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}, audit: audit})

	rec := doRequest(engine, http.MethodGet,
		"/v1/audit-logs?page_size=2&page_token=abc&target_type=pricing_window&start_at=2026-05-01", "", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, audit.seen.PageSize)
	assert.Equal(t, "abc", audit.seen.PageToken)
	assert.Equal(t, "pricing_window", audit.seen.TargetType)
	require.NotNil(t, audit.seen.StartAt)
	assert.Equal(t, 2026, audit.seen.StartAt.Year())
	assert.Nil(t, audit.seen.EndAt)

	var resp struct {
		Data struct {
			AuditLogs []auditdomain.AuditLog `json:"audit_logs"`
			PageInfo  pagination.PageInfo    `json:"page_info"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.AuditLogs, 2)
	assert.True(t, resp.Data.PageInfo.HasMore)
	assert.Equal(t, "next-token", resp.Data.PageInfo.NextPageToken)
}

func TestListAuditLogsRejectsBadInput(t *testing.T) {
	audit := &fakeAuditService{err: auditdomain.ErrInvalidPageToken}
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}, audit: audit})

	rec := doRequest(engine, http.MethodGet, "/v1/audit-logs?start_at=yesterday", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Type)

	rec = doRequest(engine, http.MethodGet, "/v1/audit-logs?page_token=garbage", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_page_token", payload.Errors[0].Code)
}

func TestListAuditLogsUnavailableWithoutService(t *testing.T) {
	engine := newTestEngine(t, testDeps{cfg: config.Config{DefaultOrgID: 7}})
	rec := doRequest(engine, http.MethodGet, "/v1/audit-logs", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
