package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) ListJobs(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	respondOK(c, gin.H{"jobs": s.scheduler.JobNames()})
}

// RunJob triggers one job immediately for every organization, ignoring its cadence.
func (s *Server) RunJob(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	name := c.Param("name")
	if err := s.scheduler.RunJob(c.Request.Context(), name); err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{"job": name, "status": "completed"})
}
