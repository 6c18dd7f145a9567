package api

import (
	"net/http"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SyncHandler handles aggregate sync and bulk collection endpoints
type SyncHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(services *service.Services, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		services: services,
		log:      log.With().Str("handler", "sync").Logger(),
	}
}

// SyncSelected handles POST /v1/sync
func (h *SyncHandler) SyncSelected(c *gin.Context) {
	var req models.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
		return
	}

	creds := models.Credentials{Username: req.Username, Password: req.Password}
	result, err := h.services.Sync.SyncSelected(c.Request.Context(), req.Period, creds, req.IDs)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info().
		Str("period", req.Period).
		Int("requested", len(req.IDs)).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Msg("Sync requested")

	c.JSON(http.StatusOK, result)
}

// CollectAll handles POST /v1/collect
func (h *SyncHandler) CollectAll(c *gin.Context) {
	jobs, err := h.services.Collect.CollectAll(c.Request.Context())

	response := gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	}
	if err != nil {
		if len(jobs) == 0 {
			respondError(c, h.log, err)
			return
		}
		response["error"] = err.Error()
	}

	c.JSON(http.StatusAccepted, response)
}
