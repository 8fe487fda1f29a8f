package interview

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/platform/dbctx"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

type ReportRepo interface {
	GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) (*types.Report, error)
	// CreatePending inserts a PENDING report for the session. When another
	// writer won the unique session_id race the existing row is returned with
	// created=false.
	CreatePending(dbc dbctx.Context, sessionID uuid.UUID) (report *types.Report, created bool, err error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// UpdateFieldsUnlessStatus is a compare-and-swap on status: it only
	// writes when the current status is not in disallowed.
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []types.ReportStatus, updates map[string]interface{}) (bool, error)
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, expected types.ReportStatus, updates map[string]interface{}) (bool, error)
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return &reportRepo{db: db, log: baseLog.With("repo", "ReportRepo")}
}

func (r *reportRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *reportRepo) GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) (*types.Report, error) {
	if sessionID == uuid.Nil {
		return nil, nil
	}
	var rep types.Report
	if err := r.tx(dbc).Where("session_id = ?", sessionID).First(&rep).Error; err != nil {
		return nil, notFoundToNil(err)
	}
	return &rep, nil
}

func (r *reportRepo) CreatePending(dbc dbctx.Context, sessionID uuid.UUID) (*types.Report, bool, error) {
	now := time.Now().UTC()
	rep := &types.Report{
		SessionID: sessionID,
		Status:    types.ReportPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.tx(dbc).Create(rep).Error
	if err == nil {
		return rep, true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, err
	}
	r.log.Debug("Report insert lost race; reloading", "session", sessionID)
	existing, getErr := r.GetBySessionID(dbc, sessionID)
	if getErr != nil {
		return nil, false, getErr
	}
	if existing == nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *reportRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.tx(dbc).Model(&types.Report{}).Where("id = ?", id).Updates(updates).Error
}

func (r *reportRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []types.ReportStatus, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	q := r.tx(dbc).Model(&types.Report{}).Where("id = ?", id)
	if len(disallowed) > 0 {
		q = q.Where("status NOT IN ?", disallowed)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *reportRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, expected types.ReportStatus, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := r.tx(dbc).Model(&types.Report{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
