package ml

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	domainml "github.com/ckguru/orchestrator/internal/domain/ml"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

type DatasetRepo interface {
	Create(dbc dbctx.Context, ds *domainml.Dataset) (*domainml.Dataset, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domainml.Dataset, error)
	ListByRepository(dbc dbctx.Context, repositoryID uuid.UUID) ([]*domainml.Dataset, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type datasetRepo struct {
	db *gorm.DB
}

func NewDatasetRepo(db *gorm.DB) DatasetRepo {
	return &datasetRepo{db: db}
}

func (r *datasetRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *datasetRepo) Create(dbc dbctx.Context, ds *domainml.Dataset) (*domainml.Dataset, error) {
	if ds == nil {
		return nil, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(ds).Error; err != nil {
		return nil, err
	}
	return ds, nil
}

func (r *datasetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domainml.Dataset, error) {
	var ds domainml.Dataset
	if err := r.tx(dbc).WithContext(dbc.Ctx).First(&ds, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ds, nil
}

func (r *datasetRepo) ListByRepository(dbc dbctx.Context, repositoryID uuid.UUID) ([]*domainml.Dataset, error) {
	var out []*domainml.Dataset
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("repository_id = ?", repositoryID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *datasetRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domainml.Dataset{}).
		Where("id = ?", id).
		Updates(updates).Error
}
