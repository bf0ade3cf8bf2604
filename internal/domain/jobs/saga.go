package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SagaRun is the durable, canonical compensation ledger header row for
// a job's external side effects (artifact writes). Handlers that write
// to object storage before committing a terminal DB transition (e.g.
// WriteOutput writing two URIs, or Training Handler writing a model
// artifact before creating the Model row) append a SagaRun + SagaAction
// trail so a failure partway through can be cleaned up best-effort.
type SagaRun struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	RootJobID int64 `gorm:"column:root_job_id;not null;uniqueIndex" json:"root_job_id"`

	// running|succeeded|failed|compensating|compensated
	Status string `gorm:"column:status;not null;index" json:"status"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (SagaRun) TableName() string { return "saga_run" }

// SagaActionKind enumerates the external side effects this module knows
// how to compensate: artifact storage keys/prefixes and orphaned model
// rows left behind when a multi-step job fails partway through.
type SagaActionKind string

const (
	SagaActionDeleteArtifactKey    SagaActionKind = "artifact_delete_key"
	SagaActionDeleteArtifactPrefix SagaActionKind = "artifact_delete_prefix"
	SagaActionDeleteModelRow       SagaActionKind = "model_row_mark_orphaned"
)

// SagaAction is a durable compensation record for one external side
// effect. Every stage appends actions inside the same DB transaction
// that commits canonical state, so a crash between the artifact write
// and the action record never loses the cleanup obligation.
type SagaAction struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	SagaID uuid.UUID `gorm:"type:uuid;not null;index:idx_saga_action_saga_seq,unique,priority:1;index" json:"saga_id"`
	Seq    int64     `gorm:"column:seq;type:bigint;not null;index:idx_saga_action_saga_seq,unique,priority:2;index" json:"seq"`

	Kind SagaActionKind `gorm:"column:kind;not null;index" json:"kind"`

	Payload datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`

	// pending|done|failed
	Status string `gorm:"column:status;not null;index" json:"status"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (SagaAction) TableName() string { return "saga_action" }
