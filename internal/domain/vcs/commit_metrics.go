package vcs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CommitGuruMetric holds the commit-level process metrics (Commit
// Guru's feature set: la, ld, lt, ndev, age, nuc, exp, rexp, sexp, …)
// bulk-upserted by commit_ingestion jobs on the composite key
// (repository_id, commit_hash).
type CommitGuruMetric struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	RepositoryID uuid.UUID `gorm:"column:repository_id;not null;uniqueIndex:uq_cgm_repo_commit,priority:1" json:"repository_id"`
	CommitHash   string    `gorm:"column:commit_hash;not null;uniqueIndex:uq_cgm_repo_commit,priority:2" json:"commit_hash"`

	ParentHashes datatypes.JSON `gorm:"column:parent_hashes;type:jsonb" json:"parent_hashes,omitempty"`
	AuthorDate   time.Time      `gorm:"column:author_date" json:"author_date"`
	IsBugFix     bool           `gorm:"column:is_bug_fix" json:"is_bug_fix"`

	Metrics datatypes.JSON `gorm:"column:metrics;type:jsonb" json:"metrics"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (CommitGuruMetric) TableName() string { return "commit_guru_metric" }

// CKMetric holds per-class/per-file CK (Chidamber & Kemerer) static
// code metrics for one file within one commit, bulk-upserted on the
// composite key (repository_id, commit_hash, file_path, class_name).
type CKMetric struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	RepositoryID uuid.UUID `gorm:"column:repository_id;not null;uniqueIndex:uq_ck_repo_commit_file_class,priority:1" json:"repository_id"`
	CommitHash   string    `gorm:"column:commit_hash;not null;uniqueIndex:uq_ck_repo_commit_file_class,priority:2" json:"commit_hash"`
	FilePath     string    `gorm:"column:file_path;not null;uniqueIndex:uq_ck_repo_commit_file_class,priority:3" json:"file_path"`
	ClassName    string    `gorm:"column:class_name;not null;uniqueIndex:uq_ck_repo_commit_file_class,priority:4" json:"class_name"`

	Metrics datatypes.JSON `gorm:"column:metrics;type:jsonb" json:"metrics"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (CKMetric) TableName() string { return "ck_metric" }

type IngestionStatus string

const (
	IngestionNotIngested IngestionStatus = "not_ingested"
	IngestionInProgress  IngestionStatus = "in_progress"
	IngestionComplete    IngestionStatus = "complete"
	IngestionFailed      IngestionStatus = "failed"
)

// CommitDetails is the full per-file-diff payload for one commit,
// produced once ingestion completes.
type CommitDetails struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	RepositoryID    uuid.UUID       `gorm:"column:repository_id;not null;uniqueIndex:uq_commit_details_repo_commit,priority:1" json:"repository_id"`
	CommitHash      string          `gorm:"column:commit_hash;not null;uniqueIndex:uq_commit_details_repo_commit,priority:2" json:"commit_hash"`
	IngestionStatus IngestionStatus `gorm:"column:ingestion_status;not null;index" json:"ingestion_status"`
	TaskID          string          `gorm:"column:task_id" json:"task_id,omitempty"`

	FileDiffs datatypes.JSON `gorm:"column:file_diffs;type:jsonb" json:"file_diffs,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (CommitDetails) TableName() string { return "commit_details" }
