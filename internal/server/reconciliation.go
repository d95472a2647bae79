package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	reconciliationdomain "github.com/smallbiznis/petroprice/internal/reconciliation/domain"
)

func (s *Server) UpsertRoute(c *gin.Context) {
	var req reconciliationdomain.Route
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	route, err := s.reconSvc.UpsertRoute(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, route)
}

func (s *Server) GetRoute(c *gin.Context) {
	route, err := s.reconSvc.GetRoute(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, route)
}

func (s *Server) RecordConsignment(c *gin.Context) {
	var req reconciliationdomain.Consignment
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	consignment, err := s.reconSvc.RecordConsignment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusCreated, consignment)
}

func (s *Server) GetConsignment(c *gin.Context) {
	consignment, err := s.reconSvc.GetConsignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, consignment)
}

func (s *Server) Reconcile(c *gin.Context) {
	recon, err := s.reconSvc.Reconcile(c.Request.Context(), c.Param("consignment_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, recon)
}

func (s *Server) GetReconciliation(c *gin.Context) {
	recon, err := s.reconSvc.Get(c.Request.Context(), c.Param("consignment_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, recon)
}
