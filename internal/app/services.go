package app

import (
	"github.com/yungbote/mockly-backend/internal/jobs/worker"
	"github.com/yungbote/mockly-backend/internal/observability"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
	"github.com/yungbote/mockly-backend/internal/realtime"
	"github.com/yungbote/mockly-backend/internal/services"
)

type Services struct {
	Notifier  services.SessionNotifier
	Sessions  services.SessionService
	Artifacts services.ArtifactService
	Reports   services.ReportService
}

func wireServices(log *logger.Logger, cfg Config, r Repos, c Clients, hub *realtime.SSEHub, pool *worker.Pool, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	if c.Bus != nil {
		emitter = &services.RedisEmitter{Bus: c.Bus, Log: log}
	}
	notify := services.NewSessionNotifier(emitter)

	reports := services.NewReportService(log, r.Session, r.Artifact, r.Report, r.Transcript,
		c.Bucket, c.ML, pool, notify, metrics,
		services.ReportConfig{DownloadURLTTL: cfg.ReportDownloadURLTTL})
	artifacts := services.NewArtifactService(log, r.Session, r.Artifact, c.Bucket, reports, pool,
		notify, metrics, services.ArtifactConfig{UploadURLTTL: cfg.UploadURLTTL})
	sessions := services.NewSessionService(log, r.Session, r.Participant, c.Tokens, notify)

	return Services{
		Notifier:  notify,
		Sessions:  sessions,
		Artifacts: artifacts,
		Reports:   reports,
	}
}
