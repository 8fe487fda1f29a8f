package interview

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/platform/dbctx"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

type TranscriptRepo interface {
	Create(dbc dbctx.Context, transcript *types.Transcript) (*types.Transcript, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Transcript, error)
}

type transcriptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTranscriptRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptRepo {
	return &transcriptRepo{db: db, log: baseLog.With("repo", "TranscriptRepo")}
}

func (r *transcriptRepo) Create(dbc dbctx.Context, transcript *types.Transcript) (*types.Transcript, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(transcript).Error; err != nil {
		return nil, err
	}
	return transcript, nil
}

func (r *transcriptRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Transcript, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Transcript
	err := transaction.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
