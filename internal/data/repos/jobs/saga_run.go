package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
	"github.com/ckguru/orchestrator/internal/platform/logger"
)

// SagaRunRepo persists one compensation ledger per root job that
// writes artifacts it may need to unwind on failure.
type SagaRunRepo interface {
	Create(dbc dbctx.Context, run *domainjobs.SagaRun) (*domainjobs.SagaRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domainjobs.SagaRun, error)
	GetByRootJobID(dbc dbctx.Context, rootJobID int64) (*domainjobs.SagaRun, error)

	// LockByID row-locks the saga for the duration of the caller's
	// transaction, so the compensation runner and a concurrent status
	// update never interleave.
	LockByID(dbc dbctx.Context, id uuid.UUID) (*domainjobs.SagaRun, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	ListByStatusBefore(dbc dbctx.Context, statuses []string, before time.Time, limit int) ([]*domainjobs.SagaRun, error)
}

type sagaRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSagaRunRepo(db *gorm.DB, baseLog *logger.Logger) SagaRunRepo {
	return &sagaRunRepo{db: db, log: baseLog.With("repo", "SagaRunRepo")}
}

func (r *sagaRunRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *sagaRunRepo) Create(dbc dbctx.Context, run *domainjobs.SagaRun) (*domainjobs.SagaRun, error) {
	if run == nil {
		return nil, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *sagaRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domainjobs.SagaRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row domainjobs.SagaRun
	if err := r.tx(dbc).WithContext(dbc.Ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *sagaRunRepo) GetByRootJobID(dbc dbctx.Context, rootJobID int64) (*domainjobs.SagaRun, error) {
	var row domainjobs.SagaRun
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("root_job_id = ?", rootJobID).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *sagaRunRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*domainjobs.SagaRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row domainjobs.SagaRun
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *sagaRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domainjobs.SagaRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sagaRunRepo) ListByStatusBefore(dbc dbctx.Context, statuses []string, before time.Time, limit int) ([]*domainjobs.SagaRun, error) {
	var out []*domainjobs.SagaRun
	if len(statuses) == 0 {
		return out, nil
	}
	q := r.tx(dbc).WithContext(dbc.Ctx).Where("status IN ? AND updated_at < ?", statuses, before).Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
