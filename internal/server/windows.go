package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	pricebuildupdomain "github.com/smallbiznis/petroprice/internal/pricebuildup/domain"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type publishRequest struct {
	Overrides []pricebuildupdomain.Override `json:"overrides"`
}

type transitionRequest struct {
	CurrentWindowID string `json:"current_window_id"`
	NextWindowID    string `json:"next_window_id"`
}

type archiveRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

func (s *Server) CreateWindow(c *gin.Context) {
	var req windowdomain.CreateWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	window, err := s.windowSvc.CreateWindow(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusCreated, window)
}

func (s *Server) CreateBiWeeklyWindow(c *gin.Context) {
	result, err := s.windowSvc.CreateBiWeeklyWindow(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respond(c, status, result)
}

func (s *Server) ListWindows(c *gin.Context) {
	var req windowdomain.ListWindowsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	windows, err := s.windowSvc.ListWindows(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, windows)
}

func (s *Server) GetWindow(c *gin.Context) {
	window, err := s.windowSvc.GetWindow(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, window)
}

func (s *Server) GetActiveWindow(c *gin.Context) {
	window, err := s.windowSvc.GetActiveWindow(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, window)
}

func (s *Server) PublishPrices(c *gin.Context) {
	var req publishRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	result, err := s.windowSvc.CalculateAndPublishPrices(c.Request.Context(), c.Param("id"), req.Overrides)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, result)
}

func (s *Server) TransitionWindow(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.CurrentWindowID) == "" || strings.TrimSpace(req.NextWindowID) == "" {
		AbortWithError(c, newValidationError("window_id", "invalid_window_id", "current_window_id and next_window_id are required"))
		return
	}

	changes, err := s.windowSvc.TransitionWindow(c.Request.Context(), req.CurrentWindowID, req.NextWindowID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{
		"current_window_id": req.CurrentWindowID,
		"next_window_id":    req.NextWindowID,
		"price_changes":     changes,
	})
}

func (s *Server) ArchiveWindows(c *gin.Context) {
	var req archiveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	if req.OlderThanDays < 0 {
		AbortWithError(c, newValidationError("older_than_days", "invalid_older_than_days", "older_than_days cannot be negative"))
		return
	}

	archived, err := s.windowSvc.ArchiveOldWindows(c.Request.Context(), req.OlderThanDays)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{"archived": archived})
}

func (s *Server) ListStationPrices(c *gin.Context) {
	prices, err := s.windowSvc.ListStationPrices(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, prices)
}

func (s *Server) ExportPriceSchedule(c *gin.Context) {
	windowID := c.Param("id")
	payload, err := s.windowSvc.ExportPriceSchedule(c.Request.Context(), windowID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="price-schedule-%s.xlsx"`, windowID))
	c.Data(http.StatusOK, xlsxContentType, payload)
}
