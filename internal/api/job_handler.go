package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// JobHandler handles report queue and scheduler endpoints
type JobHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(services *service.Services, log zerolog.Logger) *JobHandler {
	return &JobHandler{
		services: services,
		log:      log.With().Str("handler", "job").Logger(),
	}
}

// Enqueue handles POST /v1/jobs
func (h *JobHandler) Enqueue(c *gin.Context) {
	var req models.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report_id and period are required"})
		return
	}

	job, err := h.services.Job.Enqueue(c.Request.Context(), req.ReportID, req.Period)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// List handles GET /v1/jobs
func (h *JobHandler) List(c *gin.Context) {
	status := models.JobStatus(strings.ToUpper(c.Query("status")))

	jobs, err := h.services.Job.List(c.Request.Context(), status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// Get handles GET /v1/jobs/:job_id
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.services.Job.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// Retry handles POST /v1/jobs/:job_id/retry
func (h *JobHandler) Retry(c *gin.Context) {
	job, err := h.services.Job.Retry(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info().Str("job_id", job.ID).Msg("Job retried by operator")
	c.JSON(http.StatusOK, job)
}

// StartScheduler handles POST /v1/scheduler/start. A stop in progress is waited out first.
func (h *JobHandler) StartScheduler(c *gin.Context) {
	// the loop outlives the request
	h.services.Scheduler.Start(context.Background())
	c.JSON(http.StatusOK, h.services.Scheduler.Status())
}

// StopScheduler handles POST /v1/scheduler/stop. It returns once the loop has exited.
func (h *JobHandler) StopScheduler(c *gin.Context) {
	h.services.Scheduler.Stop()
	c.JSON(http.StatusOK, h.services.Scheduler.Status())
}

// SchedulerStatus handles GET /v1/scheduler
func (h *JobHandler) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Scheduler.Status())
}
