package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"github.com/smallbiznis/petroprice/internal/component/npa"
	pricebuildupdomain "github.com/smallbiznis/petroprice/internal/pricebuildup/domain"
	"go.uber.org/zap"
)

const maxImportBytes = 10 << 20

func (s *Server) UpsertComponent(c *gin.Context) {
	var req componentdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	component, err := s.componentSvc.UpsertRate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusCreated, component)
}

func (s *Server) ListActiveComponents(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"))
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	}
	at := time.Now().UTC()
	if asOf != nil {
		at = *asOf
	}

	components, err := s.componentSvc.GetActiveComponents(c.Request.Context(), at, strings.TrimSpace(c.Query("product")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, components)
}

func (s *Server) GetComponentsSnapshot(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"))
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	}
	req := componentdomain.SnapshotRequest{
		WindowID:    strings.TrimSpace(c.Query("window_id")),
		ProductCode: strings.TrimSpace(c.Query("product")),
	}
	if asOf != nil {
		req.AsOf = *asOf
	}
	if req.AsOf.IsZero() && req.WindowID == "" {
		req.AsOf = time.Now().UTC()
	}

	snapshot, err := s.componentSvc.GetComponentsSnapshot(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, snapshot)
}

func (s *Server) ListComponentHistory(c *gin.Context) {
	history, err := s.componentSvc.ListHistory(c.Request.Context(), c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, history)
}

// ImportComponents accepts the regulator's XLSX price template as the
// multipart field "file".
func (s *Server) ImportComponents(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "invalid_file", "an XLSX file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		AbortWithError(c, newValidationError("file", "invalid_file", "file could not be read"))
		return
	}
	defer file.Close()

	doc, err := npa.Parse(file)
	if err != nil {
		s.log.Warn("regulator template rejected", zap.String("filename", header.Filename), zap.Error(err))
		AbortWithError(c, newValidationError("file", "invalid_template", err.Error()))
		return
	}

	result, err := s.componentSvc.ImportDocument(c.Request.Context(), doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

func (s *Server) CalculatePrice(c *gin.Context) {
	var req pricebuildupdomain.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.EffectiveDate.IsZero() {
		req.EffectiveDate = time.Now().UTC()
	}

	calc, err := s.calculator.CalculatePrice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, calc)
}
