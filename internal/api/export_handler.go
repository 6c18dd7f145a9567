package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var exportContentTypes = map[string]string{
	service.FormatCSV:  "text/csv",
	service.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// StagedHandler handles staged report endpoints
type StagedHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewStagedHandler creates a new StagedHandler
func NewStagedHandler(services *service.Services, log zerolog.Logger) *StagedHandler {
	return &StagedHandler{
		services: services,
		log:      log.With().Str("handler", "staged").Logger(),
	}
}

// List handles GET /v1/staged-reports
func (h *StagedHandler) List(c *gin.Context) {
	unsynced, _ := strconv.ParseBool(c.DefaultQuery("unsynced", "false"))

	summaries, err := h.services.Export.List(c.Request.Context(), unsynced)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": summaries,
		"count":   len(summaries),
	})
}

// Export handles GET /v1/staged-reports/:id/export
func (h *StagedHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	format := c.DefaultQuery("format", service.FormatCSV)

	contentType, ok := exportContentTypes[format]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: csv, xlsx"})
		return
	}

	report, err := h.services.Export.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	// rendered in memory so a failure can still produce a JSON error
	var buf bytes.Buffer
	if err := h.services.Export.Write(ctx, report, format, &buf); err != nil {
		respondError(c, h.log, err)
		return
	}

	filename := fmt.Sprintf("%s_%s.%s", report.ReportID, strings.ReplaceAll(report.Period, ":", "_"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
