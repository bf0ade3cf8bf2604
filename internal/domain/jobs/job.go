package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Kind discriminates the polymorphic job row. Each kind shares the base
// lifecycle columns and owns a subset of the kind-specific nullable
// columns below.
type Kind string

const (
	KindTraining         Kind = "training"
	KindHPSearch         Kind = "hp_search"
	KindInference        Kind = "inference"
	KindXAIResult        Kind = "xai_result"
	KindCommitIngestion  Kind = "commit_ingestion"
	KindDatasetGenerate  Kind = "dataset_generation"
	KindExplanationOrch  Kind = "explanation_orchestration"
)

// Status is the job lifecycle state. Transitions are monotonic over
// pending -> running -> {success|failed|revoked}; there is no path back.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusRevoked Status = "revoked"
)

// IsTerminal reports whether a status has no further legal transition.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusRevoked:
		return true
	default:
		return false
	}
}

// Job is the single polymorphic job table: one row per submission,
// discriminated by Kind. Kind-specific attributes live as nullable
// columns on the same row rather than in per-kind tables.
type Job struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Kind          Kind   `gorm:"column:kind;not null;index" json:"kind"`
	Status        Status `gorm:"column:status;not null;index" json:"status"`
	StatusMessage string `gorm:"column:status_message" json:"status_message,omitempty"`
	BrokerTaskID  string `gorm:"column:broker_task_id;index" json:"broker_task_id,omitempty"`

	Config datatypes.JSON `gorm:"column:config;type:jsonb" json:"config"`
	Result datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`

	// training / hp_search / dataset_generation
	DatasetID *uuid.UUID `gorm:"column:dataset_id;type:uuid;index" json:"dataset_id,omitempty"`

	// hp_search
	StudyName   *string        `gorm:"column:study_name;index" json:"study_name,omitempty"`
	BestTrialID *int64         `gorm:"column:best_trial_id" json:"best_trial_id,omitempty"`
	BestParams  datatypes.JSON `gorm:"column:best_params;type:jsonb" json:"best_params,omitempty"`
	BestValue   *float64       `gorm:"column:best_value" json:"best_value,omitempty"`

	// inference
	ModelID          *uuid.UUID     `gorm:"column:model_id;type:uuid;index" json:"model_id,omitempty"`
	InputReference   datatypes.JSON `gorm:"column:input_reference;type:jsonb" json:"input_reference,omitempty"`
	PredictionResult datatypes.JSON `gorm:"column:prediction_result;type:jsonb" json:"prediction_result,omitempty"`

	// xai_result
	InferenceJobID *int64  `gorm:"column:inference_job_id;index" json:"inference_job_id,omitempty"`
	XAIType        *string `gorm:"column:xai_type;index" json:"xai_type,omitempty"`

	// dataset_generation / commit_ingestion
	RepositoryID *uuid.UUID `gorm:"column:repository_id;type:uuid;index" json:"repository_id,omitempty"`

	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Job) TableName() string { return "job" }

// UniqueIndexes holds the raw index statements migrate.go runs after
// AutoMigrate, since gorm struct tags can't express the pair constraint
// on (inference_job_id, xai_type) cleanly alongside a shared table.
var UniqueIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_job_xai_pair ON job (inference_job_id, xai_type) WHERE kind = 'xai_result'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_job_study_name ON job (study_name) WHERE study_name IS NOT NULL`,
}
