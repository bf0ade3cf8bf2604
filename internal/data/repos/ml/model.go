// Package ml persists trained model artifacts and the datasets they
// were trained against.
package ml

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	domainml "github.com/ckguru/orchestrator/internal/domain/ml"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
	"github.com/ckguru/orchestrator/internal/platform/logger"
)

type ModelRepo interface {
	Create(dbc dbctx.Context, model *domainml.Model) (*domainml.Model, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domainml.Model, error)
	GetLatestVersion(dbc dbctx.Context, name string) (*domainml.Model, error)
	ListByName(dbc dbctx.Context, name string) ([]*domainml.Model, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type modelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModelRepo(db *gorm.DB, baseLog *logger.Logger) ModelRepo {
	return &modelRepo{db: db, log: baseLog.With("repo", "ModelRepo")}
}

func (r *modelRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *modelRepo) Create(dbc dbctx.Context, model *domainml.Model) (*domainml.Model, error) {
	if model == nil {
		return nil, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(model).Error; err != nil {
		return nil, err
	}
	return model, nil
}

func (r *modelRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domainml.Model, error) {
	var m domainml.Model
	if err := r.tx(dbc).WithContext(dbc.Ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetLatestVersion returns the highest Version row for a given Name
// among rows whose ArtifactURI is set (rows without an artifact are
// skipped), the row the Inference Handler resolves against when a submission
// names a model by Name alone.
func (r *modelRepo) GetLatestVersion(dbc dbctx.Context, name string) (*domainml.Model, error) {
	var m domainml.Model
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("name = ? AND artifact_uri IS NOT NULL", name).
		Order("version DESC").
		Limit(1).
		Find(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (r *modelRepo) ListByName(dbc dbctx.Context, name string) ([]*domainml.Model, error) {
	var out []*domainml.Model
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("name = ?", name).
		Order("version DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *modelRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domainml.Model{}).
		Where("id = ?", id).
		Updates(updates).Error
}
