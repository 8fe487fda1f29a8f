package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/mockly-backend/internal/data/repos"
	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/jobs/worker"
	"github.com/yungbote/mockly-backend/internal/observability"
	"github.com/yungbote/mockly-backend/internal/platform/apierr"
	"github.com/yungbote/mockly-backend/internal/platform/dbctx"
	"github.com/yungbote/mockly-backend/internal/platform/gcp"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

const (
	MaxUploadSizeBytes     int64 = 500 * 1024 * 1024
	DefaultUploadURLTTL          = time.Hour
	maxFileNameLength            = 255
)

var (
	allowedExtensions = []string{".mp3", ".wav", ".webm", ".ogg", ".m4a", ".mp4", ".bin", ".raw"}
	allowedContentTypes = []string{
		"audio/mpeg", "audio/mp3", "audio/wav", "audio/wave", "audio/x-wav",
		"audio/webm", "audio/ogg", "audio/mp4", "audio/x-m4a",
		"application/octet-stream",
	}
	unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type RequestUploadInput struct {
	Type          types.ArtifactType `json:"type"`
	FileName      string             `json:"fileName"`
	FileSizeBytes int64              `json:"fileSizeBytes"`
	ContentType   string             `json:"contentType"`
}

type UploadSlot struct {
	ArtifactID       uuid.UUID `json:"artifactId"`
	UploadURL        string    `json:"uploadUrl"`
	ObjectName       string    `json:"objectName"`
	ExpiresInSeconds int       `json:"expiresInSeconds"`
}

type CompleteUploadInput struct {
	FileSizeBytes *int64 `json:"fileSizeBytes"`
	DurationSec   *int   `json:"durationSec"`
}

type ArtifactService interface {
	RequestUpload(dbc dbctx.Context, sessionID, callerID uuid.UUID, in RequestUploadInput) (*UploadSlot, error)
	// CompleteUpload verifies the stored object before accepting the artifact.
	// AUDIO_MIXED completions schedule report generation in the background.
	CompleteUpload(dbc dbctx.Context, sessionID, artifactID, callerID uuid.UUID, in CompleteUploadInput) (*types.Artifact, error)
	Get(dbc dbctx.Context, sessionID, artifactID, callerID uuid.UUID) (*types.Artifact, error)
	List(dbc dbctx.Context, sessionID, callerID uuid.UUID) ([]*types.Artifact, error)
}

type ArtifactConfig struct {
	UploadURLTTL time.Duration
}

type artifactService struct {
	log       *logger.Logger
	sessions  repos.SessionRepo
	artifacts repos.ArtifactRepo
	bucket    gcp.BucketService
	reports   ReportService
	pool      TaskSubmitter
	notify    SessionNotifier
	metrics   *observability.Metrics
	cfg       ArtifactConfig
}

func NewArtifactService(
	baseLog *logger.Logger,
	sessions repos.SessionRepo,
	artifacts repos.ArtifactRepo,
	bucket gcp.BucketService,
	reports ReportService,
	pool TaskSubmitter,
	notify SessionNotifier,
	metrics *observability.Metrics,
	cfg ArtifactConfig,
) ArtifactService {
	if cfg.UploadURLTTL <= 0 {
		cfg.UploadURLTTL = DefaultUploadURLTTL
	}
	return &artifactService{
		log:       baseLog.With("service", "ArtifactService"),
		sessions:  sessions,
		artifacts: artifacts,
		bucket:    bucket,
		reports:   reports,
		pool:      pool,
		notify:    notify,
		metrics:   metrics,
		cfg:       cfg,
	}
}

func (s *artifactService) RequestUpload(dbc dbctx.Context, sessionID, callerID uuid.UUID, in RequestUploadInput) (*UploadSlot, error) {
	session, err := loadSessionForCaller(dbc, s.sessions, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	if session.Status == types.SessionCanceled {
		return nil, apierr.BadRequest("session_canceled", "cannot upload to a canceled session")
	}
	if err := s.validateUpload(in); err != nil {
		return nil, err
	}

	artifactID := uuid.New()
	objectName := fmt.Sprintf("sessions/%s/artifacts/%s/%s", sessionID, artifactID, SanitizeFileName(in.FileName))

	if _, err := s.artifacts.Create(dbc, &types.Artifact{
		ID:         artifactID,
		SessionID:  sessionID,
		Type:       in.Type,
		StorageURL: objectName,
		SizeBytes:  in.FileSizeBytes,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}

	uploadURL, err := s.bucket.PresignUpload(dbc.Ctx, objectName, s.cfg.UploadURLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	s.log.Info("Upload slot issued", "session", sessionID, "artifact", artifactID, "type", in.Type, "size_bytes", in.FileSizeBytes)

	return &UploadSlot{
		ArtifactID:       artifactID,
		UploadURL:        uploadURL,
		ObjectName:       objectName,
		ExpiresInSeconds: int(s.cfg.UploadURLTTL / time.Second),
	}, nil
}

func (s *artifactService) validateUpload(in RequestUploadInput) error {
	if !in.Type.Valid() {
		return apierr.BadRequest("invalid_artifact_type", "artifact type must be one of AUDIO_MIXED, AUDIO_LEFT, AUDIO_RIGHT, RAW_WEBRTC")
	}
	name := strings.TrimSpace(in.FileName)
	if name == "" || len(name) > maxFileNameLength {
		return apierr.BadRequest("invalid_file_name", "file name must be between 1 and 255 characters")
	}
	if in.FileSizeBytes <= 0 {
		return apierr.BadRequest("invalid_file_size", "file size must be positive")
	}
	if in.FileSizeBytes > MaxUploadSizeBytes {
		return apierr.BadRequest("file_too_large", fmt.Sprintf("file size exceeds maximum allowed size of %d MB", MaxUploadSizeBytes/(1024*1024)))
	}
	ext := strings.ToLower(path.Ext(name))
	if !slices.Contains(allowedExtensions, ext) {
		return apierr.BadRequest("file_type_not_allowed", fmt.Sprintf("file type not allowed; allowed extensions: %s", strings.Join(allowedExtensions, ", ")))
	}
	if ct := strings.ToLower(strings.TrimSpace(in.ContentType)); ct != "" && !hasAnyPrefix(ct, allowedContentTypes) {
		s.log.Warn("Content type not in allowlist; extension is valid so proceeding", "content_type", in.ContentType)
	}
	return nil
}

func (s *artifactService) CompleteUpload(dbc dbctx.Context, sessionID, artifactID, callerID uuid.UUID, in CompleteUploadInput) (*types.Artifact, error) {
	session, err := loadSessionForCaller(dbc, s.sessions, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	artifact, err := s.artifacts.GetByID(dbc, artifactID)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	if artifact == nil {
		return nil, apierr.NotFound("artifact_not_found", "artifact not found")
	}
	if artifact.SessionID != sessionID {
		return nil, apierr.BadRequest("artifact_session_mismatch", "artifact does not belong to this session")
	}
	if in.FileSizeBytes != nil && *in.FileSizeBytes < 0 {
		return nil, apierr.BadRequest("invalid_file_size", "file size must be non-negative")
	}

	key := s.bucket.ObjectKey(artifact.StorageURL)
	exists, err := s.bucket.ObjectExists(dbc.Ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check object: %w", err)
	}
	var attrs *gcp.ObjectAttrs
	if exists {
		attrs, err = s.bucket.StatObject(dbc.Ctx, key)
		if err != nil && !errors.Is(err, gcp.ErrObjectNotFound) {
			return nil, fmt.Errorf("stat object: %w", err)
		}
	}
	if attrs == nil {
		s.metrics.UploadVerificationFailed(dbc.Ctx, "missing")
		s.log.Warn("Upload completion for missing object", "artifact", artifactID, "key", key)
		return nil, uploadVerificationFailed("missing", artifact.SizeBytes, 0)
	}

	expected := artifact.SizeBytes
	if in.FileSizeBytes != nil {
		expected = *in.FileSizeBytes
	}
	if expected > 0 && attrs.Size != expected {
		s.metrics.UploadVerificationFailed(dbc.Ctx, "size_mismatch")
		s.log.Warn("Upload size mismatch", "artifact", artifactID, "expected", expected, "actual", attrs.Size)
		return nil, uploadVerificationFailed("size_mismatch", expected, attrs.Size)
	}

	if err := s.artifacts.UpdateFields(dbc, artifactID, map[string]interface{}{
		"size_bytes":   attrs.Size,
		"duration_sec": in.DurationSec,
		"storage_url":  s.bucket.QualifiedPath(key),
	}); err != nil {
		return nil, fmt.Errorf("update artifact: %w", err)
	}
	artifact, err = s.artifacts.GetByID(dbc, artifactID)
	if err != nil || artifact == nil {
		return nil, fmt.Errorf("reload artifact: %w", err)
	}
	s.log.Info("Upload completed", "session", sessionID, "artifact", artifactID, "size_bytes", attrs.Size)
	s.notify.ArtifactUploaded(dbc.Ctx, session, artifact)

	if artifact.Type == types.ArtifactAudioMixed {
		s.scheduleReport(sessionID)
	}
	return artifact, nil
}

// scheduleReport never fails the caller; problems are only logged.
func (s *artifactService) scheduleReport(sessionID uuid.UUID) {
	err := s.pool.Submit(worker.Task{
		Name: "report.trigger",
		Run: func(ctx context.Context) error {
			if _, err := s.reports.TriggerGeneration(dbctx.From(ctx), sessionID, uuid.Nil); err != nil {
				s.log.Warn("Automatic report trigger failed", "session", sessionID, "error", err)
			}
			return nil
		},
	})
	if err != nil {
		s.log.Warn("Could not schedule automatic report trigger", "session", sessionID, "error", err)
		return
	}
	s.log.Info("Mixed audio uploaded; report generation scheduled", "session", sessionID)
}

func (s *artifactService) Get(dbc dbctx.Context, sessionID, artifactID, callerID uuid.UUID) (*types.Artifact, error) {
	if _, err := loadSessionForCaller(dbc, s.sessions, sessionID, callerID); err != nil {
		return nil, err
	}
	artifact, err := s.artifacts.GetByID(dbc, artifactID)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	if artifact == nil {
		return nil, apierr.NotFound("artifact_not_found", "artifact not found")
	}
	if artifact.SessionID != sessionID {
		return nil, apierr.BadRequest("artifact_session_mismatch", "artifact does not belong to this session")
	}
	return artifact, nil
}

func (s *artifactService) List(dbc dbctx.Context, sessionID, callerID uuid.UUID) ([]*types.Artifact, error) {
	if _, err := loadSessionForCaller(dbc, s.sessions, sessionID, callerID); err != nil {
		return nil, err
	}
	out, err := s.artifacts.ListBySession(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return out, nil
}

// SanitizeFileName keeps object keys to a safe character set.
func SanitizeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(strings.TrimSpace(name), "_")
}

func hasAnyPrefix(v string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	return false
}
