package services

import (
	"context"
	"time"

	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/realtime"
)

// SessionEvent is the payload every subscriber of a session channel receives.
// It carries full snapshots so clients never need a follow-up fetch.
type SessionEvent struct {
	Type       realtime.EventType `json:"type"`
	Session    *types.Session     `json:"session"`
	Artifact   *types.Artifact    `json:"artifact,omitempty"`
	Transcript *types.Transcript  `json:"transcript,omitempty"`
	Report     *types.Report      `json:"report,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

type SessionNotifier interface {
	SessionCreated(ctx context.Context, s *types.Session)
	SessionUpdated(ctx context.Context, s *types.Session)
	SessionEnded(ctx context.Context, s *types.Session)
	ParticipantJoined(ctx context.Context, s *types.Session)
	ParticipantLeft(ctx context.Context, s *types.Session)
	ArtifactUploaded(ctx context.Context, s *types.Session, a *types.Artifact)
	TranscriptAdded(ctx context.Context, s *types.Session, t *types.Transcript)
	ReportReady(ctx context.Context, s *types.Session, r *types.Report)
	ReportFailed(ctx context.Context, s *types.Session, r *types.Report)
}

type sessionNotifier struct {
	emit SSEEmitter
	now  func() time.Time
}

func NewSessionNotifier(emit SSEEmitter) SessionNotifier {
	return &sessionNotifier{emit: emit, now: time.Now}
}

func (n *sessionNotifier) publish(ctx context.Context, ev SessionEvent) {
	if n == nil || n.emit == nil || ev.Session == nil {
		return
	}
	ev.Timestamp = n.now().UTC()
	n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.SessionChannel(ev.Session.ID),
		Event:   ev.Type,
		Data:    ev,
	})
}

func (n *sessionNotifier) SessionCreated(ctx context.Context, s *types.Session) {
	n.publish(ctx, SessionEvent{Type: realtime.EventSessionCreated, Session: s})
}

func (n *sessionNotifier) SessionUpdated(ctx context.Context, s *types.Session) {
	n.publish(ctx, SessionEvent{Type: realtime.EventSessionUpdated, Session: s})
}

func (n *sessionNotifier) SessionEnded(ctx context.Context, s *types.Session) {
	n.publish(ctx, SessionEvent{Type: realtime.EventSessionEnded, Session: s})
}

func (n *sessionNotifier) ParticipantJoined(ctx context.Context, s *types.Session) {
	n.publish(ctx, SessionEvent{Type: realtime.EventParticipantJoined, Session: s})
}

func (n *sessionNotifier) ParticipantLeft(ctx context.Context, s *types.Session) {
	n.publish(ctx, SessionEvent{Type: realtime.EventParticipantLeft, Session: s})
}

func (n *sessionNotifier) ArtifactUploaded(ctx context.Context, s *types.Session, a *types.Artifact) {
	n.publish(ctx, SessionEvent{Type: realtime.EventArtifactUploaded, Session: s, Artifact: a})
}

func (n *sessionNotifier) TranscriptAdded(ctx context.Context, s *types.Session, t *types.Transcript) {
	n.publish(ctx, SessionEvent{Type: realtime.EventTranscriptAdded, Session: s, Transcript: t})
}

func (n *sessionNotifier) ReportReady(ctx context.Context, s *types.Session, r *types.Report) {
	n.publish(ctx, SessionEvent{Type: realtime.EventReportReady, Session: s, Report: r})
}

func (n *sessionNotifier) ReportFailed(ctx context.Context, s *types.Session, r *types.Report) {
	n.publish(ctx, SessionEvent{Type: realtime.EventReportFailed, Session: s, Report: r})
}
