package interview

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/platform/dbctx"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

type SessionListFilter struct {
	UserID uuid.UUID
	Status types.SessionStatus
	Limit  int
	Offset int
}

type SessionRepo interface {
	Create(dbc dbctx.Context, session *types.Session) (*types.Session, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	ListForUser(dbc dbctx.Context, filter SessionListFilter) ([]*types.Session, int64, error)
	FindActiveForUser(dbc dbctx.Context, userID uuid.UUID) (*types.Session, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []types.SessionStatus, updates map[string]interface{}) (bool, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

// Create inserts the session together with any participants attached to it.
func (r *sessionRepo) Create(dbc dbctx.Context, session *types.Session) (*types.Session, error) {
	if err := r.tx(dbc).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// GetByID returns the session with participants preloaded, or nil.
func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var s types.Session
	err := r.tx(dbc).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("role_in_session ASC") }).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, notFoundToNil(err)
	}
	return &s, nil
}

func (r *sessionRepo) memberScope(userID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"created_by = ? OR id IN (?)",
			userID,
			r.db.Model(&types.Participant{}).Select("session_id").Where("user_id = ?", userID),
		)
	}
}

func (r *sessionRepo) ListForUser(dbc dbctx.Context, filter SessionListFilter) ([]*types.Session, int64, error) {
	if filter.UserID == uuid.Nil {
		return []*types.Session{}, 0, nil
	}
	base := func() *gorm.DB {
		q := r.tx(dbc).Model(&types.Session{}).Scopes(r.memberScope(filter.UserID))
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return q
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []*types.Session
	err := base().Preload("Participants").
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// FindActiveForUser returns the user's most recent SCHEDULED or ACTIVE session.
func (r *sessionRepo) FindActiveForUser(dbc dbctx.Context, userID uuid.UUID) (*types.Session, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var s types.Session
	err := r.tx(dbc).
		Scopes(r.memberScope(userID)).
		Where("status IN ?", []types.SessionStatus{types.SessionScheduled, types.SessionActive}).
		Preload("Participants").
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, notFoundToNil(err)
	}
	return &s, nil
}

func (r *sessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.tx(dbc).Model(&types.Session{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateFieldsIfStatus applies updates only while the session is in one of
// the allowed statuses and reports whether a row changed.
func (r *sessionRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []types.SessionStatus, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil || len(allowed) == 0 {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := r.tx(dbc).Model(&types.Session{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Delete removes the session and everything it owns.
func (r *sessionRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	run := func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&types.Participant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&types.Artifact{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&types.Session{}).Error
	}
	if dbc.Tx != nil {
		return run(dbc.Tx.WithContext(dbc.Ctx))
	}
	return r.db.WithContext(dbc.Ctx).Transaction(run)
}
