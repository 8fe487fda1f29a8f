package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/mockly-backend/internal/clients/livekit"
	"github.com/yungbote/mockly-backend/internal/data/repos"
	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/platform/apierr"
	"github.com/yungbote/mockly-backend/internal/platform/dbctx"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

type CreateSessionInput struct {
	InterviewerID uuid.UUID  `json:"interviewerId"`
	StartsAt      *time.Time `json:"startsAt"`
}

type SessionPage struct {
	Sessions []*types.Session `json:"sessions"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Size     int              `json:"size"`
}

type SessionService interface {
	Create(dbc dbctx.Context, callerID uuid.UUID, in CreateSessionInput) (*types.Session, error)
	Join(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Session, error)
	Leave(dbc dbctx.Context, sessionID, callerID uuid.UUID) error
	End(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Session, error)
	Cancel(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Session, error)
	Get(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Session, error)
	List(dbc dbctx.Context, callerID uuid.UUID, status types.SessionStatus, page, size int) (*SessionPage, error)
	Active(dbc dbctx.Context, callerID uuid.UUID) (*types.Session, error)
	RoomToken(dbc dbctx.Context, sessionID, callerID uuid.UUID, displayName string) (*livekit.AccessToken, error)

	// RoomStarted and RoomFinished apply provider lifecycle signals. Names
	// that do not map to a known session are logged and ignored.
	RoomStarted(ctx context.Context, roomName string) error
	RoomFinished(ctx context.Context, roomName string) error
}

type sessionService struct {
	log          *logger.Logger
	sessions     repos.SessionRepo
	participants repos.ParticipantRepo
	tokens       *livekit.TokenIssuer
	notify       SessionNotifier
	now          func() time.Time
}

func NewSessionService(
	baseLog *logger.Logger,
	sessions repos.SessionRepo,
	participants repos.ParticipantRepo,
	tokens *livekit.TokenIssuer,
	notify SessionNotifier,
) SessionService {
	return &sessionService{
		log:          baseLog.With("service", "SessionService"),
		sessions:     sessions,
		participants: participants,
		tokens:       tokens,
		notify:       notify,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *sessionService) Create(dbc dbctx.Context, callerID uuid.UUID, in CreateSessionInput) (*types.Session, error) {
	if callerID == uuid.Nil {
		return nil, apierr.Unauthorized("authentication required")
	}
	if in.InterviewerID == uuid.Nil {
		return nil, apierr.BadRequest("interviewer_required", "interviewerId is required")
	}
	if in.InterviewerID == callerID {
		return nil, apierr.BadRequest("invalid_interviewer", "interviewer must be a different user")
	}

	active, err := s.sessions.FindActiveForUser(dbc, callerID)
	if err != nil {
		return nil, fmt.Errorf("check active session: %w", err)
	}
	if active != nil {
		return nil, apierr.Conflict("active_session_exists", "user already has an active session; end it before creating a new one")
	}

	id := uuid.New()
	session := &types.Session{
		ID:           id,
		CreatedBy:    callerID,
		Status:       types.SessionScheduled,
		StartsAt:     in.StartsAt,
		RoomProvider: types.RoomProviderLiveKit,
		RoomID:       livekit.RoomName(id),
		Participants: []*types.Participant{
			{SessionID: id, UserID: callerID, RoleInSession: types.RoleCandidate},
			{SessionID: id, UserID: in.InterviewerID, RoleInSession: types.RoleInterviewer},
		},
	}
	if _, err := s.sessions.Create(dbc, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	created, err := s.reload(dbc, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("Session created", "session", id, "created_by", callerID)
	s.notify.SessionCreated(dbc.Ctx, created)
	return created, nil
}

func (s *sessionService) Join(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Session, error) {
	session, err := loadSessionForCaller(dbc, s.sessions, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	if session.Status.Closed() {
		return nil, apierr.BadRequest("session_closed", "cannot join a session that has ended or been canceled")
	}
	if session.Participant(callerID) == nil {
		return nil, apierr.Forbidden("user is not a participant of this session")
	}

	now := s.now()
	if err := s.participants.MarkJoined(dbc, sessionID, callerID, now); err != nil {
		return nil, fmt.Errorf("mark joined: %w", err)
	}

	activated := false
	if session.Status == types.SessionScheduled {
		updates := map[string]interface{}{"status": types.SessionActive}
		if session.StartsAt == nil {
			updates["starts_at"] = now
		}
		activated, err = s.sessions.UpdateFieldsIfStatus(dbc, sessionID, []types.SessionStatus{types.SessionScheduled}, updates)
		if err != nil {
			return nil, fmt.Errorf("activate session: %w", err)
		}
	}

	updated, err := s.reload(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	s.log.Info("Participant joined", "session", sessionID, "user_id", callerID, "activated", activated)
	s.notify.ParticipantJoined(dbc.Ctx, updated)
	if activated {
		s.notify.SessionUpdated(dbc.Ctx, updated)
	}
	return updated, nil
}

func (s *sessionService) Leave(dbc dbctx.Context, sessionID, callerID uuid.UUID) error {
	session, err := loadSessionForCaller(dbc, s.sessions, sessionID, callerID)
	if err != nil {
		return err
	}
	p := session.Participant(callerID)
	if p == nil {
		return apierr.NotFound("participant_not_found", "participant not found in session")
	}
	if p.LeftAt != nil {
		return nil
	}
	if err := s.participants.MarkLeft(dbc, sessionID, callerID, s.now()); err != nil {
		return fmt.Errorf("mark left: %w", err)
	}
	updated, err := s.reload(dbc, sessionID)
	if err != nil {
		return err
	}
	s.notify.ParticipantLeft(dbc.Ctx, updated)
	return nil
}

func (s *sessionService) End(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Session, error) {
	session, err := loadSessionForCaller(dbc, s.sessions, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case types.SessionEnded:
		return session, nil
	case types.SessionCanceled:
		return nil, apierr.BadRequest("session_canceled", "a canceled session cannot be ended")
	}
	return s.finish(dbc, session)
}

func (s *sessionService) finish(dbc dbctx.Context, session *types.Session) (*types.Session, error) {
	now := s.now()
	ok, err := s.sessions.UpdateFieldsIfStatus(dbc, session.ID,
		[]types.SessionStatus{types.SessionScheduled, types.SessionActive},
		map[string]interface{}{"status": types.SessionEnded, "ends_at": now},
	)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	if !ok {
		return s.reload(dbc, session.ID)
	}
	if err := s.participants.MarkAllLeft(dbc, session.ID, now); err != nil {
		return nil, fmt.Errorf("mark participants left: %w", err)
	}
	updated, err := s.reload(dbc, session.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("Session ended", "session", session.ID)
	s.notify.SessionEnded(dbc.Ctx, updated)
	return updated, nil
}

func (s *sessionService) Cancel(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Session, error) {
	session, err := loadSessionForCaller(dbc, s.sessions, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	if session.CreatedBy != callerID {
		return nil, apierr.Forbidden("only the session creator can cancel it")
	}
	ok, err := s.sessions.UpdateFieldsIfStatus(dbc, sessionID,
		[]types.SessionStatus{types.SessionScheduled},
		map[string]interface{}{"status": types.SessionCanceled},
	)
	if err != nil {
		return nil, fmt.Errorf("cancel session: %w", err)
	}
	if !ok {
		return nil, apierr.BadRequest("session_not_cancelable", "only scheduled sessions can be canceled")
	}
	updated, err := s.reload(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	s.notify.SessionUpdated(dbc.Ctx, updated)
	return updated, nil
}

func (s *sessionService) Get(dbc dbctx.Context, sessionID, callerID uuid.UUID) (*types.Session, error) {
	return loadSessionForCaller(dbc, s.sessions, sessionID, callerID)
}

func (s *sessionService) List(dbc dbctx.Context, callerID uuid.UUID, status types.SessionStatus, page, size int) (*SessionPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	status = types.SessionStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	switch status {
	case "", types.SessionScheduled, types.SessionActive, types.SessionEnded, types.SessionCanceled:
	default:
		return nil, apierr.BadRequest("invalid_status", "unknown session status")
	}
	sessions, total, err := s.sessions.ListForUser(dbc, repos.SessionListFilter{
		UserID: callerID,
		Status: status,
		Limit:  size,
		Offset: page * size,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return &SessionPage{Sessions: sessions, Total: total, Page: page, Size: size}, nil
}

func (s *sessionService) Active(dbc dbctx.Context, callerID uuid.UUID) (*types.Session, error) {
	session, err := s.sessions.FindActiveForUser(dbc, callerID)
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}
	if session == nil {
		return nil, apierr.NotFound("no_active_session", "no active session")
	}
	return session, nil
}

func (s *sessionService) RoomToken(dbc dbctx.Context, sessionID, callerID uuid.UUID, displayName string) (*livekit.AccessToken, error) {
	session, err := loadSessionForCaller(dbc, s.sessions, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	if session.Status.Closed() {
		return nil, apierr.BadRequest("session_closed", "session has ended or been canceled")
	}
	if s.tokens == nil {
		return nil, apierr.Unavailable("room_provider_unconfigured", errors.New("room provider is not configured"))
	}
	room := session.RoomID
	if room == "" {
		room = livekit.RoomName(session.ID)
	}
	tok, err := s.tokens.Issue(room, callerID.String(), displayName)
	if err != nil {
		return nil, fmt.Errorf("issue room token: %w", err)
	}
	return tok, nil
}

func (s *sessionService) RoomStarted(ctx context.Context, roomName string) error {
	dbc := dbctx.From(ctx)
	session := s.sessionForRoom(dbc, roomName)
	if session == nil {
		return nil
	}
	updates := map[string]interface{}{"status": types.SessionActive}
	if session.StartsAt == nil {
		updates["starts_at"] = s.now()
	}
	ok, err := s.sessions.UpdateFieldsIfStatus(dbc, session.ID, []types.SessionStatus{types.SessionScheduled}, updates)
	if err != nil {
		return fmt.Errorf("activate session from room: %w", err)
	}
	if !ok {
		s.log.Debug("Room started for non-scheduled session", "session", session.ID, "status", session.Status)
		return nil
	}
	updated, err := s.reload(dbc, session.ID)
	if err != nil {
		return err
	}
	s.log.Info("Session activated by room start", "session", session.ID)
	s.notify.SessionUpdated(ctx, updated)
	return nil
}

func (s *sessionService) RoomFinished(ctx context.Context, roomName string) error {
	dbc := dbctx.From(ctx)
	session := s.sessionForRoom(dbc, roomName)
	if session == nil || session.Status == types.SessionEnded {
		return nil
	}
	if session.Status == types.SessionCanceled {
		s.log.Debug("Room finished for canceled session; keeping status", "session", session.ID)
		return nil
	}
	now := s.now()
	ok, err := s.sessions.UpdateFieldsIfStatus(dbc, session.ID,
		[]types.SessionStatus{types.SessionScheduled, types.SessionActive},
		map[string]interface{}{"status": types.SessionEnded, "ends_at": now},
	)
	if err != nil {
		return fmt.Errorf("end session from room: %w", err)
	}
	if !ok {
		return nil
	}
	if err := s.participants.MarkAllLeft(dbc, session.ID, now); err != nil {
		s.log.Warn("Failed to mark participants left", "session", session.ID, "error", err)
	}
	updated, err := s.reload(dbc, session.ID)
	if err != nil {
		return err
	}
	s.log.Info("Session ended by room finish", "session", session.ID)
	s.notify.SessionEnded(ctx, updated)
	return nil
}

func (s *sessionService) sessionForRoom(dbc dbctx.Context, roomName string) *types.Session {
	id, err := livekit.ParseRoomName(roomName)
	if err != nil {
		s.log.Warn("Ignoring room event with unrecognized room name", "room", roomName)
		return nil
	}
	session, err := s.sessions.GetByID(dbc, id)
	if err != nil {
		s.log.Warn("Room event session lookup failed", "room", roomName, "error", err)
		return nil
	}
	if session == nil {
		s.log.Warn("Ignoring room event for unknown session", "room", roomName)
	}
	return session
}

func (s *sessionService) reload(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	session, err := s.sessions.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}
	if session == nil {
		return nil, sessionNotFound()
	}
	return session, nil
}
