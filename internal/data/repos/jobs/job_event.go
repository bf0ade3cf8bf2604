package jobs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

// JobEventRepo appends to and reads the per-job progress ledger: every
// Progress/Fail/Succeed/Revoke transition at the runtime.Context
// boundary records one row here, and GET /tasks/:task_id reads the
// latest row for its numeric progress/stage fields.
type JobEventRepo interface {
	Append(dbc dbctx.Context, ev *domainjobs.JobEvent) error
	ListByJob(dbc dbctx.Context, jobID int64) ([]*domainjobs.JobEvent, error)
	Latest(dbc dbctx.Context, jobID int64) (*domainjobs.JobEvent, error)
}

type jobEventRepo struct {
	db *gorm.DB
}

func NewJobEventRepo(db *gorm.DB) JobEventRepo {
	return &jobEventRepo{db: db}
}

func (r *jobEventRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *jobEventRepo) Append(dbc dbctx.Context, ev *domainjobs.JobEvent) error {
	if ev == nil {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).Create(ev).Error
}

func (r *jobEventRepo) ListByJob(dbc dbctx.Context, jobID int64) ([]*domainjobs.JobEvent, error) {
	var out []*domainjobs.JobEvent
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobEventRepo) Latest(dbc dbctx.Context, jobID int64) (*domainjobs.JobEvent, error) {
	var ev domainjobs.JobEvent
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		Limit(1).
		Find(&ev).Error
	if err != nil {
		return nil, err
	}
	if ev.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &ev, nil
}
