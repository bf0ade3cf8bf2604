package vcs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainvcs "github.com/ckguru/orchestrator/internal/domain/vcs"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

// CommitMetricsRepo bulk-upserts the Commit Guru / CK metric rows a
// commit_ingestion job produces per commit, and tracks per-commit
// ingestion progress via CommitDetails.
type CommitMetricsRepo interface {
	UpsertCommitGuruMetrics(dbc dbctx.Context, rows []*domainvcs.CommitGuruMetric) error
	UpsertCKMetrics(dbc dbctx.Context, rows []*domainvcs.CKMetric) error

	ListCommitGuruMetrics(dbc dbctx.Context, repositoryID uuid.UUID) ([]*domainvcs.CommitGuruMetric, error)
	ListCKMetrics(dbc dbctx.Context, repositoryID uuid.UUID) ([]*domainvcs.CKMetric, error)

	UpsertCommitDetails(dbc dbctx.Context, row *domainvcs.CommitDetails) error
	GetCommitDetails(dbc dbctx.Context, repositoryID uuid.UUID, commitHash string) (*domainvcs.CommitDetails, error)

	// ListCKMetricsForCommit and GetCommitGuruMetric scope BatchSource's
	// join (CK rows joined with their owning commit's process metrics)
	// down to a single commit, for the Inference Handler's
	// feature-retrieval-for-one-commit path.
	ListCKMetricsForCommit(dbc dbctx.Context, repositoryID uuid.UUID, commitHash string) ([]*domainvcs.CKMetric, error)
	GetCommitGuruMetric(dbc dbctx.Context, repositoryID uuid.UUID, commitHash string) (*domainvcs.CommitGuruMetric, error)
}

type commitMetricsRepo struct {
	db *gorm.DB
}

func NewCommitMetricsRepo(db *gorm.DB) CommitMetricsRepo {
	return &commitMetricsRepo{db: db}
}

func (r *commitMetricsRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *commitMetricsRepo) UpsertCommitGuruMetrics(dbc dbctx.Context, rows []*domainvcs.CommitGuruMetric) error {
	if len(rows) == 0 {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository_id"}, {Name: "commit_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"parent_hashes", "author_date", "is_bug_fix", "metrics", "updated_at"}),
	}).Create(&rows).Error
}

func (r *commitMetricsRepo) UpsertCKMetrics(dbc dbctx.Context, rows []*domainvcs.CKMetric) error {
	if len(rows) == 0 {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository_id"}, {Name: "commit_hash"}, {Name: "file_path"}, {Name: "class_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"metrics", "updated_at"}),
	}).Create(&rows).Error
}

func (r *commitMetricsRepo) ListCommitGuruMetrics(dbc dbctx.Context, repositoryID uuid.UUID) ([]*domainvcs.CommitGuruMetric, error) {
	var out []*domainvcs.CommitGuruMetric
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("repository_id = ?", repositoryID).
		Order("author_date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *commitMetricsRepo) ListCKMetrics(dbc dbctx.Context, repositoryID uuid.UUID) ([]*domainvcs.CKMetric, error) {
	var out []*domainvcs.CKMetric
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("repository_id = ?", repositoryID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *commitMetricsRepo) UpsertCommitDetails(dbc dbctx.Context, row *domainvcs.CommitDetails) error {
	if row == nil {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository_id"}, {Name: "commit_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"ingestion_status", "task_id", "file_diffs", "updated_at"}),
	}).Create(row).Error
}

func (r *commitMetricsRepo) GetCommitDetails(dbc dbctx.Context, repositoryID uuid.UUID, commitHash string) (*domainvcs.CommitDetails, error) {
	var row domainvcs.CommitDetails
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("repository_id = ? AND commit_hash = ?", repositoryID, commitHash).
		Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

func (r *commitMetricsRepo) ListCKMetricsForCommit(dbc dbctx.Context, repositoryID uuid.UUID, commitHash string) ([]*domainvcs.CKMetric, error) {
	var out []*domainvcs.CKMetric
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("repository_id = ? AND commit_hash = ?", repositoryID, commitHash).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *commitMetricsRepo) GetCommitGuruMetric(dbc dbctx.Context, repositoryID uuid.UUID, commitHash string) (*domainvcs.CommitGuruMetric, error) {
	var row domainvcs.CommitGuruMetric
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("repository_id = ? AND commit_hash = ?", repositoryID, commitHash).
		Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}
