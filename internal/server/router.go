package server

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/clearcite/integrity-engine/internal/http/handlers"
	httpMW "github.com/clearcite/integrity-engine/internal/http/middleware"
)

type RouterConfig struct {
	AllowOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	DocumentHandler   *httpH.DocumentHandler
	JobHandler        *httpH.JobHandler
	SubmissionHandler *httpH.SubmissionHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS(cfg.AllowOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Documents
		if cfg.DocumentHandler != nil {
			protected.POST("/documents", cfg.DocumentHandler.Upload)
		}

		// Jobs
		if cfg.JobHandler != nil {
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
			protected.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
		}

		// Submissions
		if cfg.SubmissionHandler != nil {
			protected.POST("/submissions", cfg.SubmissionHandler.Create)
			protected.GET("/submissions", cfg.SubmissionHandler.List)
			protected.GET("/submissions/:id", cfg.SubmissionHandler.Get)
			protected.POST("/submissions/:id/decision", cfg.SubmissionHandler.Decision)
			protected.POST("/submissions/:id/grade", cfg.SubmissionHandler.Grade)
			protected.GET("/submissions/:id/results", cfg.SubmissionHandler.Results)
			protected.GET("/submissions/:id/transitions", cfg.SubmissionHandler.Transitions)
		}
	}

	return r
}
