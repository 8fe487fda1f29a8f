package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/mockly-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mockly-backend/internal/http/middleware"
	"github.com/yungbote/mockly-backend/internal/observability"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	SessionHandler  *httpH.SessionHandler
	ArtifactHandler *httpH.ArtifactHandler
	ReportHandler   *httpH.ReportHandler
	RealtimeHandler *httpH.RealtimeHandler
	WebhookHandler  *httpH.WebhookHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "mockly-api"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	{
		// Room provider callbacks (signed, not user-authenticated)
		if cfg.WebhookHandler != nil {
			api.POST("/webhooks/livekit", cfg.WebhookHandler.LiveKit)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Sessions
		if cfg.SessionHandler != nil {
			protected.POST("/sessions", cfg.SessionHandler.Create)
			protected.GET("/sessions", cfg.SessionHandler.List)
			protected.GET("/sessions/me/active", cfg.SessionHandler.Active)
			protected.GET("/sessions/:id", cfg.SessionHandler.Get)
			protected.POST("/sessions/:id/join", cfg.SessionHandler.Join)
			protected.POST("/sessions/:id/leave", cfg.SessionHandler.Leave)
			protected.POST("/sessions/:id/end", cfg.SessionHandler.End)
			protected.POST("/sessions/:id/cancel", cfg.SessionHandler.Cancel)
			protected.GET("/sessions/:id/token", cfg.SessionHandler.RoomToken)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sessions/:id/events", cfg.RealtimeHandler.SessionEvents)
		}

		// Artifacts
		if cfg.ArtifactHandler != nil {
			protected.POST("/sessions/:id/artifacts/request-upload", cfg.ArtifactHandler.RequestUpload)
			protected.POST("/sessions/:id/artifacts/:artifactId/complete", cfg.ArtifactHandler.CompleteUpload)
			protected.GET("/sessions/:id/artifacts", cfg.ArtifactHandler.List)
			protected.GET("/sessions/:id/artifacts/:artifactId", cfg.ArtifactHandler.Get)
		}

		// Reports
		if cfg.ReportHandler != nil {
			protected.POST("/sessions/:id/report/trigger", cfg.ReportHandler.Trigger)
			protected.GET("/sessions/:id/report", cfg.ReportHandler.Get)
		}
	}

	return r
}
