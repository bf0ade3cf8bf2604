package jobs

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
	"github.com/ckguru/orchestrator/internal/platform/logger"
)

// JobRepo persists the polymorphic Job entity and enforces its state
// machine (pending -> running -> {success|failed|revoked}) with
// compare-and-swap updates, so two writers racing on the same job can
// never both believe they made the transition.
type JobRepo interface {
	Create(dbc dbctx.Context, job *domainjobs.Job) (*domainjobs.Job, error)
	GetByID(dbc dbctx.Context, id int64) (*domainjobs.Job, error)
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*domainjobs.Job, error)
	GetByXAIPair(dbc dbctx.Context, inferenceJobID int64, xaiType string) (*domainjobs.Job, error)

	// ListByInferenceJob returns every xai_result row fanned out for one
	// inference job, the set the explanations-list HTTP endpoint
	// surfaces.
	ListByInferenceJob(dbc dbctx.Context, inferenceJobID int64) ([]*domainjobs.Job, error)

	// FindByStudyName backs the HP-search reuse rule: a second
	// hp_search submission naming an existing StudyName may
	// attach to it only when continue_if_exists=true, which the caller
	// decides once it knows whether a study by this name already exists.
	FindByStudyName(dbc dbctx.Context, studyName string) (*domainjobs.Job, error)

	// ClaimNextPending locates the oldest pending job (or a running job
	// whose heartbeat has gone stale) and atomically marks it running,
	// using SKIP LOCKED so concurrent worker-pool claimants never
	// double-claim the same row.
	ClaimNextPending(dbc dbctx.Context, staleRunning time.Duration) (*domainjobs.Job, error)

	UpdateFields(dbc dbctx.Context, id int64, updates map[string]interface{}) error

	// TransitionStatus performs the CAS at the heart of the job state
	// machine: the update applies only if the row's current status
	// still equals expected, so a job that already moved on (e.g. was
	// revoked while a worker believed it owned it) silently loses the
	// race instead of corrupting a terminal state.
	TransitionStatus(dbc dbctx.Context, id int64, expected domainjobs.Status, updates map[string]interface{}) (bool, error)

	Heartbeat(dbc dbctx.Context, id int64) error
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{
		db:  db,
		log: baseLog.With("repo", "JobRepo"),
	}
}

func (r *jobRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *jobRepo) Create(dbc dbctx.Context, job *domainjobs.Job) (*domainjobs.Job, error) {
	if job == nil {
		return nil, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) GetByID(dbc dbctx.Context, id int64) (*domainjobs.Job, error) {
	var job domainjobs.Job
	if err := r.tx(dbc).WithContext(dbc.Ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) GetByIDs(dbc dbctx.Context, ids []int64) ([]*domainjobs.Job, error) {
	if len(ids) == 0 {
		return []*domainjobs.Job{}, nil
	}
	var out []*domainjobs.Job
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) GetByXAIPair(dbc dbctx.Context, inferenceJobID int64, xaiType string) (*domainjobs.Job, error) {
	var job domainjobs.Job
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("kind = ? AND inference_job_id = ? AND xai_type = ?", domainjobs.KindXAIResult, inferenceJobID, xaiType).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) ListByInferenceJob(dbc dbctx.Context, inferenceJobID int64) ([]*domainjobs.Job, error) {
	var out []*domainjobs.Job
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("kind = ? AND inference_job_id = ?", domainjobs.KindXAIResult, inferenceJobID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) FindByStudyName(dbc dbctx.Context, studyName string) (*domainjobs.Job, error) {
	var job domainjobs.Job
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("kind = ? AND study_name = ?", domainjobs.KindHPSearch, studyName).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) ClaimNextPending(dbc dbctx.Context, staleRunning time.Duration) (*domainjobs.Job, error) {
	now := time.Now()
	staleCutoff := now.Add(-staleRunning)

	var claimed *domainjobs.Job
	err := r.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var job domainjobs.Job
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          status = ?
          OR (
            status = ?
            AND updated_at < ?
          )
        )
      `, domainjobs.StatusPending, domainjobs.StatusRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&domainjobs.Job{}).
			Where("id = ? AND status = ?", job.ID, job.Status).
			Updates(map[string]interface{}{
				"status":     domainjobs.StatusRunning,
				"started_at": now,
				"updated_at": now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = domainjobs.StatusRunning
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRepo) UpdateFields(dbc dbctx.Context, id int64, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domainjobs.Job{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRepo) TransitionStatus(dbc dbctx.Context, id int64, expected domainjobs.Status, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domainjobs.Job{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRepo) Heartbeat(dbc dbctx.Context, id int64) error {
	now := time.Now()
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domainjobs.Job{}).
		Where("id = ? AND status = ?", id, domainjobs.StatusRunning).
		Updates(map[string]interface{}{
			"updated_at": now,
		}).Error
}
