package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/yungbote/mockly-backend/internal/clients/ml"
	"github.com/yungbote/mockly-backend/internal/data/repos"
	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/jobs/worker"
	"github.com/yungbote/mockly-backend/internal/observability"
	"github.com/yungbote/mockly-backend/internal/platform/apierr"
	"github.com/yungbote/mockly-backend/internal/platform/ctxutil"
	"github.com/yungbote/mockly-backend/internal/platform/dbctx"
	"github.com/yungbote/mockly-backend/internal/platform/gcp"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

const (
	DefaultDownloadURLTTL = time.Hour
	queueFullMessage      = "report queue is full"
	poolClosedMessage     = "report worker is shutting down"
)

// TaskSubmitter is the part of the worker pool services depend on.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

type ReportService interface {
	// TriggerGeneration ensures a report exists and schedules processing. It
	// returns without waiting for the ML round trip.
	TriggerGeneration(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Report, error)
	GetReport(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Report, error)
}

type ReportConfig struct {
	DownloadURLTTL time.Duration
}

type reportService struct {
	log         *logger.Logger
	sessions    repos.SessionRepo
	artifacts   repos.ArtifactRepo
	reports     repos.ReportRepo
	transcripts repos.TranscriptRepo
	bucket      gcp.BucketService
	ml          ml.Processor
	pool        TaskSubmitter
	notify      SessionNotifier
	metrics     *observability.Metrics
	cfg         ReportConfig
}

func NewReportService(
	baseLog *logger.Logger,
	sessions repos.SessionRepo,
	artifacts repos.ArtifactRepo,
	reports repos.ReportRepo,
	transcripts repos.TranscriptRepo,
	bucket gcp.BucketService,
	processor ml.Processor,
	pool TaskSubmitter,
	notify SessionNotifier,
	metrics *observability.Metrics,
	cfg ReportConfig,
) ReportService {
	if cfg.DownloadURLTTL <= 0 {
		cfg.DownloadURLTTL = DefaultDownloadURLTTL
	}
	return &reportService{
		log:         baseLog.With("service", "ReportService"),
		sessions:    sessions,
		artifacts:   artifacts,
		reports:     reports,
		transcripts: transcripts,
		bucket:      bucket,
		ml:          processor,
		pool:        pool,
		notify:      notify,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// loadSessionForCaller resolves the session and, unless callerID is nil,
// checks the caller belongs to it.
func loadSessionForCaller(dbc dbctx.Context, sessions repos.SessionRepo, sessionID, callerID uuid.UUID) (*types.Session, error) {
	session, err := sessions.GetByID(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, sessionNotFound()
	}
	if callerID != uuid.Nil && !session.HasMember(callerID) {
		return nil, apierr.Forbidden("you don't have access to this session")
	}
	return session, nil
}

func (s *reportService) TriggerGeneration(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Report, error) {
	if _, err := loadSessionForCaller(dbc, s.sessions, sessionID, callerID); err != nil {
		return nil, err
	}

	report, err := s.reports.GetBySessionID(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	// owned is set when this call opened the current PENDING cycle. Only then
	// may a rejected submit fail it; an older PENDING cycle has a task queued.
	owned := false
	if report == nil {
		report, owned, err = s.reports.CreatePending(dbc, sessionID)
		if err != nil {
			return nil, fmt.Errorf("create report: %w", err)
		}
	}

	switch {
	case report.Status.Busy():
		s.log.Info("Report already in progress or ready", "session", sessionID, "status", report.Status)
		return report, nil
	case report.Status == types.ReportFailed:
		reset, err := s.reports.UpdateFieldsIfStatus(dbc, report.ID, types.ReportFailed, map[string]interface{}{
			"status":        types.ReportPending,
			"error_message": nil,
		})
		if err != nil {
			return nil, fmt.Errorf("reset failed report: %w", err)
		}
		owned = reset
		if report, err = s.reports.GetBySessionID(dbc, sessionID); err != nil {
			return nil, fmt.Errorf("reload report: %w", err)
		}
		if report == nil {
			return nil, apierr.NotFound("report_not_found", "report not found")
		}
		if report.Status.Busy() {
			return report, nil
		}
	}

	artifacts, err := s.artifacts.ListBySession(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	source := types.SelectSourceArtifact(artifacts)
	if source == nil {
		return nil, apierr.BadRequest("no_audio_artifact", "no audio artifact found for session; upload an audio file first")
	}

	artifactID := source.ID
	trace := ctxutil.GetTraceData(dbc.Ctx)
	err = s.pool.Submit(worker.Task{
		Name: "report.generate",
		Run: func(ctx context.Context) error {
			return s.process(ctxutil.WithTraceData(ctx, trace), sessionID, artifactID)
		},
	})
	if err != nil {
		msg := queueFullMessage
		if errors.Is(err, worker.ErrPoolClosed) {
			msg = poolClosedMessage
		}
		s.log.Warn("Report task rejected", "session", sessionID, "owned", owned, "error", err)
		s.metrics.ReportOutcome(dbc.Ctx, "REJECTED")
		if owned {
			s.failRejected(dbc, report.ID, sessionID, msg)
		}
		return nil, apierr.Unavailable("report_queue_full", fmt.Errorf("%s: %w", msg, err))
	}

	s.log.Info("Report generation scheduled", "session", sessionID, "artifact", artifactID, "artifact_type", source.Type)
	return report, nil
}

func (s *reportService) GetReport(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Report, error) {
	if _, err := loadSessionForCaller(dbc, s.sessions, sessionID, callerID); err != nil {
		return nil, err
	}
	report, err := s.reports.GetBySessionID(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	if report == nil {
		return nil, apierr.NotFound("report_not_found", "report not found for session")
	}
	return report, nil
}

// process runs on a pool worker. Errors never escape: they end in a FAILED report.
func (s *reportService) process(ctx context.Context, sessionID, artifactID uuid.UUID) error {
	ctx, span := otel.Tracer("mockly/report").Start(ctx, "report.process")
	defer span.End()
	log := s.log.With(ctxutil.GetTraceData(ctx).LogFields()...)
	span.SetAttributes(attribute.String("session.id", sessionID.String()), attribute.String("artifact.id", artifactID.String()))

	dbc := dbctx.From(context.WithoutCancel(ctx))
	report, err := s.reports.GetBySessionID(dbc, sessionID)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	if report == nil {
		log.Error("Report missing for scheduled generation; aborting", "session", sessionID)
		return nil
	}

	claimed, err := s.reports.UpdateFieldsIfStatus(dbc, report.ID, types.ReportPending, map[string]interface{}{
		"status":        types.ReportProcessing,
		"error_message": nil,
	})
	if err != nil {
		return fmt.Errorf("claim report: %w", err)
	}
	if !claimed {
		log.Debug("Report already claimed; skipping", "session", sessionID)
		return nil
	}
	log.Info("Report processing started", "session", sessionID, "artifact", artifactID)

	runErr := worker.Recover(func() error {
		return s.generate(ctx, dbc, report.ID, sessionID, artifactID)
	})
	if runErr != nil {
		s.fail(dbc, report.ID, sessionID, runErr)
	}
	return nil
}

func (s *reportService) generate(ctx context.Context, dbc dbctx.Context, reportID, sessionID, artifactID uuid.UUID) error {
	artifact, err := s.artifacts.GetByID(dbc, artifactID)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}
	if artifact == nil {
		return fmt.Errorf("artifact not found: %s", artifactID)
	}

	downloadURL, err := s.bucket.PresignDownload(ctx, artifact.StorageURL, s.cfg.DownloadURLTTL)
	if err != nil {
		return fmt.Errorf("presign download: %w", err)
	}

	start := time.Now()
	resp, err := s.ml.Process(ctx, ml.ProcessRequest{
		SessionID:    sessionID.String(),
		ArtifactID:   artifactID.String(),
		ArtifactURL:  downloadURL,
		ArtifactType: string(artifact.Type),
	})
	s.metrics.MLCall(ctx, float64(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		return err
	}
	if resp == nil {
		return &ml.ProcessingError{Op: "process", Message: "empty response"}
	}

	var transcript *types.Transcript
	if resp.HasTranscript() {
		transcript, err = s.saveTranscript(dbc, sessionID, resp.Transcript)
		if err != nil {
			return err
		}
	}

	metrics, err := json.Marshal(resp.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	if err := s.reports.UpdateFields(dbc, reportID, map[string]interface{}{
		"metrics":         datatypes.JSON(metrics),
		"summary":         resp.Summary,
		"recommendations": resp.Recommendations,
		"status":          types.ReportReady,
		"error_message":   nil,
	}); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	s.metrics.ReportOutcome(ctx, string(types.ReportReady))
	s.log.Info("Report ready", "session", sessionID, "duration_ms", time.Since(start).Milliseconds())

	session, report := s.snapshot(dbc, sessionID)
	if transcript != nil {
		s.notify.TranscriptAdded(ctx, session, transcript)
	}
	if report != nil {
		s.notify.ReportReady(ctx, session, report)
	}
	return nil
}

func (s *reportService) saveTranscript(dbc dbctx.Context, sessionID uuid.UUID, content map[string]any) (*types.Transcript, error) {
	text, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	t := &types.Transcript{
		SessionID: sessionID,
		Source:    types.TranscriptMixed,
		Text:      datatypes.JSON(text),
	}
	if words, ok := content["words"]; ok && words != nil {
		if raw, err := json.Marshal(words); err == nil {
			t.Words = datatypes.JSON(raw)
		}
	}
	saved, err := s.transcripts.Create(dbc, t)
	if err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}
	s.log.Info("Saved transcript", "session", sessionID, "transcript", saved.ID)
	return saved, nil
}

func (s *reportService) fail(dbc dbctx.Context, reportID, sessionID uuid.UUID, cause error) {
	msg := failureMessage(cause)
	s.log.Error("Report processing failed", "session", sessionID, "error", cause)

	ok, err := s.reports.UpdateFieldsUnlessStatus(dbc, reportID, []types.ReportStatus{types.ReportReady}, map[string]interface{}{
		"status":          types.ReportFailed,
		"error_message":   msg,
		"metrics":         nil,
		"summary":         nil,
		"recommendations": nil,
	})
	if err != nil {
		s.log.Error("Failed to record report failure", "session", sessionID, "error", err)
		return
	}
	if !ok {
		s.log.Warn("Report already ready; failure not recorded", "session", sessionID)
		return
	}
	s.metrics.ReportOutcome(dbc.Ctx, string(types.ReportFailed))

	session, report := s.snapshot(dbc, sessionID)
	if report != nil {
		s.notify.ReportFailed(dbc.Ctx, session, report)
	}
}

// failRejected fails a PENDING cycle whose task never reached the pool.
func (s *reportService) failRejected(dbc dbctx.Context, reportID, sessionID uuid.UUID, msg string) {
	ok, err := s.reports.UpdateFieldsIfStatus(dbc, reportID, types.ReportPending, map[string]interface{}{
		"status":        types.ReportFailed,
		"error_message": msg,
	})
	if err != nil {
		s.log.Error("Failed to mark rejected report", "session", sessionID, "error", err)
		return
	}
	if !ok {
		return
	}
	s.metrics.ReportOutcome(dbc.Ctx, string(types.ReportFailed))
	session, report := s.snapshot(dbc, sessionID)
	if report != nil {
		s.notify.ReportFailed(dbc.Ctx, session, report)
	}
}

func (s *reportService) snapshot(dbc dbctx.Context, sessionID uuid.UUID) (*types.Session, *types.Report) {
	session, err := s.sessions.GetByID(dbc, sessionID)
	if err != nil {
		s.log.Warn("Session reload failed", "session", sessionID, "error", err)
	}
	report, err := s.reports.GetBySessionID(dbc, sessionID)
	if err != nil {
		s.log.Warn("Report reload failed", "session", sessionID, "error", err)
	}
	return session, report
}

func failureMessage(err error) string {
	var pe *ml.ProcessingError
	if errors.As(err, &pe) {
		return "Report generation failed: " + pe.Error()
	}
	var panicErr *worker.PanicError
	if errors.As(err, &panicErr) {
		return "Report generation failed: unexpected error"
	}
	return "Report generation failed: " + err.Error()
}
