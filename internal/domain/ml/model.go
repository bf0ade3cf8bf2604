// Package ml holds the entities persisted by the Training/HP-Search/
// Inference job kinds: trained model artifacts and the datasets they
// were trained against.
package ml

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Model is a trained, versioned artifact. (Name, Version) is unique;
// ArtifactURI is nil until the artifact write has acknowledged success
// -- a Model row with a nil ArtifactURI must never be selectable for a
// successful inference submission.
type Model struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Name    string `gorm:"column:name;not null;uniqueIndex:uq_model_name_version,priority:1" json:"name"`
	Version int    `gorm:"column:version;not null;uniqueIndex:uq_model_name_version,priority:2" json:"version"`

	ModelType string  `gorm:"column:model_type;not null;index" json:"model_type"`
	ArtifactURI *string `gorm:"column:artifact_uri" json:"artifact_uri,omitempty"`

	DatasetID     *uuid.UUID `gorm:"column:dataset_id;index" json:"dataset_id,omitempty"`
	TrainingJobID *int64     `gorm:"column:training_job_id;index" json:"training_job_id,omitempty"`
	HPSearchJobID *int64     `gorm:"column:hp_search_job_id;index" json:"hp_search_job_id,omitempty"`

	Hyperparameters    datatypes.JSON `gorm:"column:hyperparameters;type:jsonb" json:"hyperparameters,omitempty"`
	PerformanceMetrics datatypes.JSON `gorm:"column:performance_metrics;type:jsonb" json:"performance_metrics,omitempty"`
	FeatureColumns     datatypes.JSON `gorm:"column:feature_columns;type:jsonb" json:"feature_columns,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Model) TableName() string { return "model" }

// TreeBasedModelTypes is a set of tree-based model_type values. The
// Explanation Orchestration Handler does not read it; it decides
// DecisionPath eligibility from the modeltype registry's IsTreeBased.
var TreeBasedModelTypes = map[string]bool{
	"sklearn_randomforest": true,
	"xgboost":              true,
	"lightgbm":             true,
}

func IsTreeBased(modelType string) bool { return TreeBasedModelTypes[modelType] }
