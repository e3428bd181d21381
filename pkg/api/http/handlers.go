package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunResponse describes the current run
type RunResponse struct {
	RunID string    `json:"run_id"`
	Phase string    `json:"phase"`
	Since time.Time `json:"since"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests. A failed run reports 503.
func (s *Server) handleHealth(c *gin.Context) {
	phase, since := s.run.Phase()
	status, code := "healthy", http.StatusOK
	if phase == domain.RunPhaseFailed {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks": gin.H{
			"run_id": s.run.RunID(),
			"phase":  phase,
			"since":  since.UTC(),
		},
	})
}

// handleCurrentRun returns the run this process is executing
func (s *Server) handleCurrentRun(c *gin.Context) {
	phase, since := s.run.Phase()
	c.JSON(http.StatusOK, RunResponse{
		RunID: s.run.RunID(),
		Phase: string(phase),
		Since: since.UTC(),
	})
}

// handleListRuns lists the runs that have a stored report
func (s *Server) handleListRuns(c *gin.Context) {
	runs, err := s.storage.ListRuns(c.Request.Context())
	if err != nil {
		s.storageError(c, "runs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// handleListAgents lists agent snapshots of a run
func (s *Server) handleListAgents(c *gin.Context) {
	runID := c.Param("run")

	agents, err := s.storage.ListAgents(c.Request.Context(), runID)
	if err != nil {
		s.storageError(c, "agents", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"agents": agents,
		"total":  len(agents),
	})
}

// handleGetAgent returns one agent snapshot
func (s *Server) handleGetAgent(c *gin.Context) {
	agent, err := s.storage.GetAgent(c.Request.Context(), c.Param("run"), c.Param("name"))
	if err != nil {
		s.storageError(c, "agent", err)
		return
	}

	c.JSON(http.StatusOK, agent)
}

// handleGetReport returns the cycle report once the run has finished
func (s *Server) handleGetReport(c *gin.Context) {
	report, err := s.storage.GetReport(c.Request.Context(), c.Param("run"))
	if err != nil {
		s.storageError(c, "report", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) storageError(c *gin.Context, what string, err error) {
	if errors.Is(err, ports.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: what + " not found",
			},
		})
		return
	}

	s.logger.Error("storage lookup failed", zap.String("what", what), zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: ErrorDetail{
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
		},
	})
}
