package controlplane

import "github.com/google/uuid"

// TrainRequest is the decoded POST /ml/train body.
type TrainRequest struct {
	DatasetID       uuid.UUID      `json:"dataset_id" binding:"required"`
	FeatureColumns  []string       `json:"feature_columns" binding:"required"`
	TargetColumn    string         `json:"target_column" binding:"required"`
	ModelType       string         `json:"model_type" binding:"required"`
	ModelName       string         `json:"model_name" binding:"required"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	TestSize        float64        `json:"test_size"`
}

// SearchRequest is the decoded POST /ml/search body, including the
// study-reuse fields (StudyName/ContinueIfExists) that let a caller
// resubmit against an in-progress or completed study instead of always
// starting a fresh one.
type SearchRequest struct {
	DatasetID         uuid.UUID      `json:"dataset_id" binding:"required"`
	ModelName         string         `json:"model_name" binding:"required"`
	ModelType         string         `json:"model_type" binding:"required"`
	HPSpace           []hpSuggestion `json:"hp_space" binding:"required"`
	NTrials           int            `json:"n_trials" binding:"required"`
	ObjectiveMetric   string         `json:"objective_metric"`
	CVFolds           int            `json:"cv_folds"`
	SaveBestModel     bool           `json:"save_best_model"`
	FeatureColumns    []string       `json:"feature_columns" binding:"required"`
	TargetColumn      string         `json:"target_column" binding:"required"`
	RandomSeed        int64          `json:"random_seed"`
	StudyName         string         `json:"study_name" binding:"required"`
	ContinueIfExists  bool           `json:"continue_if_exists"`
}

// hpSuggestion mirrors handlers.HPSuggestion; duplicated here rather
// than imported so the HTTP-facing request shape doesn't couple to the
// Job Handler package's internal config type.
type hpSuggestion struct {
	ParamName   string        `json:"param_name"`
	SuggestType string        `json:"suggest_type"`
	Low         float64       `json:"low,omitempty"`
	High        float64       `json:"high,omitempty"`
	Step        float64       `json:"step,omitempty"`
	Log         bool          `json:"log,omitempty"`
	Choices     []interface{} `json:"choices,omitempty"`
}

// InferRequest is the decoded POST /ml/infer body.
type InferRequest struct {
	ModelID      uuid.UUID `json:"model_id"`
	ModelName    string    `json:"model_name"`
	RepositoryID uuid.UUID `json:"repo_id" binding:"required"`
	CommitHash   string    `json:"commit_hash" binding:"required"`
	// Explain requests an explanation-orchestration job be queued once
	// this inference job succeeds, instead of requiring a second call.
	Explain bool `json:"explain"`
}

// GenerateDatasetRequest is the decoded POST
// /repositories/:id/datasets body.
type GenerateDatasetRequest struct {
	FeatureColumns   []string                  `json:"feature_columns" binding:"required"`
	TargetColumn     string                    `json:"target_column" binding:"required"`
	CleaningRules    map[string]map[string]any `json:"cleaning_rules"`
	FeatureSelection *featureSelectionRequest  `json:"feature_selection,omitempty"`
	BatchSize        int                       `json:"batch_size,omitempty"`
}

type featureSelectionRequest struct {
	Algorithm string         `json:"algorithm"`
	Params    map[string]any `json:"params"`
}
