package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shreed27/AgentHub-sub004/internal/api/dto"
	"github.com/shreed27/AgentHub-sub004/internal/domain"
)

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves the full state of a job for polling.
func (h *GatewayHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, ok := h.scheduler.Get(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
// Lists known jobs, newest first, with optional status filtering.
func (h *GatewayHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 200 {
		req.Limit = 200
	}

	jobs := h.scheduler.List()

	filtered := make([]*domain.Job, 0, len(jobs))
	for _, job := range jobs {
		if req.Status != "" && string(job.Status) != req.Status {
			continue
		}
		filtered = append(filtered, job)
		if len(filtered) >= req.Limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  filtered,
		"count": len(filtered),
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Cancels a pending or processing job.
func (h *GatewayHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	if h.scheduler.Cancel(jobID) {
		h.logger.Info("Job cancelled via API", slog.String("job_id", jobID))
		c.JSON(http.StatusOK, gin.H{
			"job_id": jobID,
			"status": domain.JobStatusCancelled,
		})
		return
	}

	if _, ok := h.scheduler.Get(jobID); !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}

	c.JSON(http.StatusConflict, gin.H{
		"error": "Job is already in a terminal state",
	})
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
// Permanently removes a terminal job record.
func (h *GatewayHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	err := h.scheduler.Remove(c.Request.Context(), jobID)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
	case errors.Is(err, domain.ErrJobActive):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Job is still active; cancel it first",
		})
	default:
		h.logger.Error("Failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete job",
		})
	}
}
