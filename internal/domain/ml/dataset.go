package ml

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DatasetStatus string

const (
	DatasetPending    DatasetStatus = "pending"
	DatasetGenerating DatasetStatus = "generating"
	DatasetReady      DatasetStatus = "ready"
	DatasetFailed     DatasetStatus = "failed"
)

// Dataset is the output of a dataset_generation job: a tabular artifact
// derived from one repository's commit history, ready to train against
// once Status is DatasetReady.
type Dataset struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	RepositoryID uuid.UUID     `gorm:"column:repository_id;not null;index" json:"repository_id"`
	Status       DatasetStatus `gorm:"column:status;not null;index" json:"status"`

	StorageURI          *string `gorm:"column:storage_uri" json:"storage_uri,omitempty"`
	BackgroundSampleURI *string `gorm:"column:background_sample_uri" json:"background_sample_uri,omitempty"`

	// Config carries feature_columns, target_column, cleaning_rules
	// (name -> params), and an optional feature_selection block, as
	// consumed by LoadConfiguration.
	Config datatypes.JSON `gorm:"column:config;type:jsonb" json:"config"`

	NumRows int `gorm:"column:num_rows" json:"num_rows"`

	StatusMessage string `gorm:"column:status_message" json:"status_message,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Dataset) TableName() string { return "dataset" }

// DatasetConfig is the decoded shape of Dataset.Config.
type DatasetConfig struct {
	FeatureColumns   []string                  `json:"feature_columns"`
	TargetColumn     string                    `json:"target_column"`
	CleaningRules    map[string]map[string]any `json:"cleaning_rules"`
	FeatureSelection *FeatureSelectionConfig   `json:"feature_selection,omitempty"`
	BatchSize        int                       `json:"batch_size,omitempty"`
}

type FeatureSelectionConfig struct {
	Algorithm string         `json:"algorithm"`
	Params    map[string]any `json:"params"`
}
