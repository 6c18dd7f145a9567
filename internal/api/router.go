package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const serviceName = "facility-sync"

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter creates and configures the Gin router. db may be nil.
func NewRouter(services *service.Services, db HealthChecker, log zerolog.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	// Handlers
	jobHandler := NewJobHandler(services, log)
	syncHandler := NewSyncHandler(services, log)
	stagedHandler := NewStagedHandler(services, log)

	// Health check
	router.GET("/health", healthCheck(db))

	// API v1
	v1 := router.Group("/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.Enqueue)
			jobs.GET("", jobHandler.List)
			jobs.GET("/:job_id", jobHandler.Get)
			jobs.POST("/:job_id/retry", jobHandler.Retry)
		}

		scheduler := v1.Group("/scheduler")
		{
			scheduler.GET("", jobHandler.SchedulerStatus)
			scheduler.POST("/start", jobHandler.StartScheduler)
			scheduler.POST("/stop", jobHandler.StopScheduler)
		}

		staged := v1.Group("/staged-reports")
		{
			staged.GET("", stagedHandler.List)
			staged.GET("/:id/export", stagedHandler.Export)
		}

		v1.POST("/sync", syncHandler.SyncSelected)
		v1.POST("/collect", syncHandler.CollectAll)
	}

	return router
}

// healthCheck returns the health status
func healthCheck(db HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if db != nil {
			ctx, cancel := contextWithTimeout(c, 2*time.Second)
			defer cancel()
			if err := db.HealthCheck(ctx); err != nil {
				status, code = "unhealthy", http.StatusServiceUnavailable
			}
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   serviceName,
		})
	}
}

// respondError maps service errors onto HTTP statuses
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrJobNotFound), errors.Is(err, models.ErrStagedReportNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidReportID), errors.Is(err, models.ErrInvalidPeriod),
		errors.Is(err, models.ErrInvalidStatus), errors.Is(err, models.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// contextWithTimeout creates a context with timeout for handlers
func contextWithTimeout(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), timeout)
}
