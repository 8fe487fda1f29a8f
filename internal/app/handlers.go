package app

import (
	"context"

	"gorm.io/gorm"

	mhttp "github.com/yungbote/mockly-backend/internal/http"
	httpH "github.com/yungbote/mockly-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mockly-backend/internal/http/middleware"
	"github.com/yungbote/mockly-backend/internal/observability"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
	"github.com/yungbote/mockly-backend/internal/realtime"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Session  *httpH.SessionHandler
	Artifact *httpH.ArtifactHandler
	Report   *httpH.ReportHandler
	Realtime *httpH.RealtimeHandler
	Webhook  *httpH.WebhookHandler
}

func wireHandlers(log *logger.Logger, cfg Config, services Services, clients Clients, hub *realtime.SSEHub, db *gorm.DB) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.ReadinessCheck{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"ml": clients.ML.Health,
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Session:  httpH.NewSessionHandler(services.Sessions),
		Artifact: httpH.NewArtifactHandler(services.Artifacts),
		Report:   httpH.NewReportHandler(services.Reports),
		Realtime: httpH.NewRealtimeHandler(log, hub, services.Sessions),
		Webhook:  httpH.NewWebhookHandler(log, services.Sessions, cfg.LiveKit.WebhookSecret),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, clients Clients, metrics *observability.Metrics) *mhttp.Server {
	return mhttp.NewServer(mhttp.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     cfg.Otel.ServiceName,
		AllowedOrigins:  cfg.AllowedOrigins,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, clients.Verifier),
		SessionHandler:  handlers.Session,
		ArtifactHandler: handlers.Artifact,
		ReportHandler:   handlers.Report,
		RealtimeHandler: handlers.Realtime,
		WebhookHandler:  handlers.Webhook,
		HealthHandler:   handlers.Health,
	})
}
