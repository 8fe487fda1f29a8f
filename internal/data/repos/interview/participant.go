package interview

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/platform/dbctx"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

type ParticipantRepo interface {
	Get(dbc dbctx.Context, sessionID, userID uuid.UUID) (*types.Participant, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Participant, error)
	MarkJoined(dbc dbctx.Context, sessionID, userID uuid.UUID, at time.Time) error
	MarkLeft(dbc dbctx.Context, sessionID, userID uuid.UUID, at time.Time) error
	MarkAllLeft(dbc dbctx.Context, sessionID uuid.UUID, at time.Time) error
}

type participantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewParticipantRepo(db *gorm.DB, baseLog *logger.Logger) ParticipantRepo {
	return &participantRepo{db: db, log: baseLog.With("repo", "ParticipantRepo")}
}

func (r *participantRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *participantRepo) Get(dbc dbctx.Context, sessionID, userID uuid.UUID) (*types.Participant, error) {
	var p types.Participant
	err := r.tx(dbc).Where("session_id = ? AND user_id = ?", sessionID, userID).First(&p).Error
	if err != nil {
		return nil, notFoundToNil(err)
	}
	return &p, nil
}

func (r *participantRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Participant, error) {
	var out []*types.Participant
	if err := r.tx(dbc).Where("session_id = ?", sessionID).Order("role_in_session ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkJoined sets joined_at on the first join and clears left_at on every join.
func (r *participantRepo) MarkJoined(dbc dbctx.Context, sessionID, userID uuid.UUID, at time.Time) error {
	q := r.tx(dbc).Model(&types.Participant{}).Where("session_id = ? AND user_id = ?", sessionID, userID)
	if err := q.Update("left_at", nil).Error; err != nil {
		return err
	}
	return r.tx(dbc).Model(&types.Participant{}).
		Where("session_id = ? AND user_id = ? AND joined_at IS NULL", sessionID, userID).
		Update("joined_at", at).Error
}

func (r *participantRepo) MarkLeft(dbc dbctx.Context, sessionID, userID uuid.UUID, at time.Time) error {
	return r.tx(dbc).Model(&types.Participant{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Update("left_at", at).Error
}

func (r *participantRepo) MarkAllLeft(dbc dbctx.Context, sessionID uuid.UUID, at time.Time) error {
	return r.tx(dbc).Model(&types.Participant{}).
		Where("session_id = ? AND left_at IS NULL", sessionID).
		Update("left_at", at).Error
}
