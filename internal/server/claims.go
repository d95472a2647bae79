package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	uppfdomain "github.com/smallbiznis/petroprice/internal/uppf/domain"
)

func (s *Server) CreateClaim(c *gin.Context) {
	var req uppfdomain.CreateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	claim, err := s.claimSvc.CreateClaim(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusCreated, claim)
}

func (s *Server) ListClaims(c *gin.Context) {
	var req uppfdomain.ListClaimsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	claims, err := s.claimSvc.ListClaims(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, claims)
}

func (s *Server) GetClaim(c *gin.Context) {
	claim, err := s.claimSvc.GetClaim(c.Request.Context(), c.Param("number"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, claim)
}

func (s *Server) SubmitClaims(c *gin.Context) {
	result, err := s.claimSvc.SubmitClaims(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, result)
}

func (s *Server) RecordClaimResponse(c *gin.Context) {
	var req uppfdomain.ResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	claim, err := s.claimSvc.RecordResponse(c.Request.Context(), c.Param("number"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, claim)
}

func (s *Server) SettleClaim(c *gin.Context) {
	var req uppfdomain.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	claim, err := s.claimSvc.SettleClaim(c.Request.Context(), c.Param("number"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, claim)
}

func (s *Server) CalculateLevy(c *gin.Context) {
	var req uppfdomain.LevyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.claimSvc.CalculateLevy(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, result)
}

func (s *Server) SyncRates(c *gin.Context) {
	result, err := s.rateSync.Sync(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, result)
}
