package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
	"github.com/ckguru/orchestrator/internal/platform/logger"
)

// SagaActionRepo persists the ordered compensation steps belonging to
// a SagaRun -- artifact deletes and model-row orphan markers, applied
// in reverse sequence when a job fails after partial writes.
type SagaActionRepo interface {
	Create(dbc dbctx.Context, rows []*domainjobs.SagaAction) ([]*domainjobs.SagaAction, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domainjobs.SagaAction, error)
	ListBySagaIDDesc(dbc dbctx.Context, sagaID uuid.UUID) ([]*domainjobs.SagaAction, error)

	GetMaxSeq(dbc dbctx.Context, sagaID uuid.UUID) (int64, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type sagaActionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSagaActionRepo(db *gorm.DB, baseLog *logger.Logger) SagaActionRepo {
	return &sagaActionRepo{db: db, log: baseLog.With("repo", "SagaActionRepo")}
}

func (r *sagaActionRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *sagaActionRepo) Create(dbc dbctx.Context, rows []*domainjobs.SagaAction) ([]*domainjobs.SagaAction, error) {
	if len(rows) == 0 {
		return []*domainjobs.SagaAction{}, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sagaActionRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domainjobs.SagaAction, error) {
	var out []*domainjobs.SagaAction
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sagaActionRepo) ListBySagaIDDesc(dbc dbctx.Context, sagaID uuid.UUID) ([]*domainjobs.SagaAction, error) {
	var out []*domainjobs.SagaAction
	if sagaID == uuid.Nil {
		return out, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("saga_id = ?", sagaID).
		Order("seq DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sagaActionRepo) GetMaxSeq(dbc dbctx.Context, sagaID uuid.UUID) (int64, error) {
	if sagaID == uuid.Nil {
		return 0, nil
	}
	var max int64
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domainjobs.SagaAction{}).
		Select("COALESCE(MAX(seq), 0)").
		Where("saga_id = ?", sagaID).
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}

func (r *sagaActionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&domainjobs.SagaAction{}).
		Where("id = ?", id).
		Updates(updates).Error
}
