package interview

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/platform/dbctx"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

type ArtifactRepo interface {
	Create(dbc dbctx.Context, artifact *types.Artifact) (*types.Artifact, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Artifact, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Artifact, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return &artifactRepo{db: db, log: baseLog.With("repo", "ArtifactRepo")}
}

func (r *artifactRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *artifactRepo) Create(dbc dbctx.Context, artifact *types.Artifact) (*types.Artifact, error) {
	if err := r.tx(dbc).Create(artifact).Error; err != nil {
		return nil, err
	}
	return artifact, nil
}

func (r *artifactRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Artifact, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var a types.Artifact
	if err := r.tx(dbc).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, notFoundToNil(err)
	}
	return &a, nil
}

// ListBySession returns artifacts oldest first; artifact selection relies on
// this being the store's natural order.
func (r *artifactRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Artifact, error) {
	var out []*types.Artifact
	if err := r.tx(dbc).Where("session_id = ?", sessionID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *artifactRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return r.tx(dbc).Model(&types.Artifact{}).Where("id = ?", id).Updates(updates).Error
}
