package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	dealerdomain "github.com/smallbiznis/petroprice/internal/dealer/domain"
)

type approveSettlementRequest struct {
	Approver string `json:"approver"`
}

type markPaidRequest struct {
	PaymentReference string `json:"payment_reference"`
}

type loanScheduleRequest struct {
	Principal     decimal.Decimal        `json:"principal"`
	AnnualRatePct decimal.Decimal        `json:"annual_rate_pct"`
	TenorPeriods  int                    `json:"tenor_periods"`
	Frequency     dealerdomain.Frequency `json:"frequency"`
	StartDate     *time.Time             `json:"start_date,omitempty"`
}

func (s *Server) CreateSettlement(c *gin.Context) {
	var req dealerdomain.CreateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CreatedBy = actorFromRequest(c, req.CreatedBy)

	settlement, err := s.dealerSvc.CreateSettlement(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusCreated, settlement)
}

func (s *Server) ListSettlements(c *gin.Context) {
	var req dealerdomain.ListSettlementsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settlements, err := s.dealerSvc.ListSettlements(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, settlements)
}

func (s *Server) GetSettlement(c *gin.Context) {
	settlement, err := s.dealerSvc.GetSettlement(c.Request.Context(), c.Param("number"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, settlement)
}

func (s *Server) ApproveSettlement(c *gin.Context) {
	var req approveSettlementRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	approver := strings.TrimSpace(req.Approver)
	if approver == "" {
		approver = actorFromRequest(c, "")
	}
	if approver == "" {
		AbortWithError(c, newValidationError("approver", "approver_required", "approver is required"))
		return
	}

	settlement, err := s.dealerSvc.ApproveSettlement(c.Request.Context(), c.Param("number"), approver)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, settlement)
}

func (s *Server) MarkSettlementPaid(c *gin.Context) {
	var req markPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settlement, err := s.dealerSvc.MarkPaid(c.Request.Context(), c.Param("number"), req.PaymentReference)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, settlement)
}

func (s *Server) CreateLoan(c *gin.Context) {
	var req dealerdomain.CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	loan, err := s.dealerSvc.CreateLoan(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusCreated, loan)
}

// PreviewLoanSchedule returns the amortisation schedule without persisting a loan.
func (s *Server) PreviewLoanSchedule(c *gin.Context) {
	var req loanScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	start := time.Now().UTC()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}

	installments, err := dealerdomain.GenerateAmortizationSchedule(req.Principal, req.AnnualRatePct, req.TenorPeriods, req.Frequency, start)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	total := decimal.Zero
	for _, inst := range installments {
		total = total.Add(inst.Payment)
	}
	respondOK(c, gin.H{
		"installments":  installments,
		"total_payable": total,
	})
}

func (s *Server) GetLoan(c *gin.Context) {
	loan, err := s.dealerSvc.GetLoan(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, loan)
}
