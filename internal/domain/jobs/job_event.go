package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobEventKind string

const (
	JobEventCreated   JobEventKind = "created"
	JobEventProgress  JobEventKind = "progress"
	JobEventFailed    JobEventKind = "failed"
	JobEventSucceeded JobEventKind = "succeeded"
	JobEventRevoked   JobEventKind = "revoked"
)

// JobEvent is an append-only ledger of job status/progress messages --
// the canonical timeline GET /tasks/:id's intermediate-message surface
// reads from, and what the status channel augmentation in the Control
// Plane's Status contract consults in addition to the job row itself.
type JobEvent struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID    int64     `gorm:"column:job_id;not null;index" json:"job_id"`
	Kind     JobEventKind   `gorm:"column:kind;not null;index" json:"kind"`
	Status   Status         `gorm:"column:status;not null;index" json:"status"`
	Stage    string         `gorm:"column:stage;not null" json:"stage,omitempty"`
	Progress int            `gorm:"column:progress;not null" json:"progress"`
	Message  string         `gorm:"column:message;type:text" json:"message,omitempty"`
	Data     datatypes.JSON `gorm:"type:jsonb;column:data" json:"data,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (JobEvent) TableName() string { return "job_event" }
