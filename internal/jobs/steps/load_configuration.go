package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	domainml "github.com/ckguru/orchestrator/internal/domain/ml"
	"github.com/ckguru/orchestrator/internal/data/repos/ml"
	"github.com/ckguru/orchestrator/internal/jobs/engine"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

// LoadConfiguration is the first step of the dataset-generation
// Strategy: it reads the target Dataset row and unpacks its Config
// blob into pc.Config, the shape every later Step (cleaning rules,
// SelectFinalColumns, WriteOutput) reads from. Grounded on the
// original pipeline's dataset_config preload, which ran before
// StreamAndProcessBatchesStep rather than as its own Step -- split out
// here because the Pipeline Engine models every pipeline stage as a
// Step uniformly.
type LoadConfiguration struct {
	Datasets  ml.DatasetRepo
	DatasetID uuid.UUID
}

func (s *LoadConfiguration) Name() string { return "LoadConfiguration" }

func (s *LoadConfiguration) Run(ctx context.Context, pc *engine.Context, _ engine.Deps) error {
	ds, err := s.Datasets.GetByID(dbctx.Context{Ctx: ctx}, s.DatasetID)
	if err != nil {
		return fmt.Errorf("load dataset %s: %w", s.DatasetID, err)
	}

	var cfg domainml.DatasetConfig
	if len(ds.Config) > 0 {
		if err := json.Unmarshal(ds.Config, &cfg); err != nil {
			return fmt.Errorf("decode dataset config: %w", err)
		}
	}
	if len(cfg.FeatureColumns) == 0 {
		return fmt.Errorf("dataset %s config has no feature_columns", s.DatasetID)
	}
	if cfg.TargetColumn == "" {
		return fmt.Errorf("dataset %s config has no target_column", s.DatasetID)
	}

	raw := map[string]any{}
	if len(ds.Config) > 0 {
		if err := json.Unmarshal(ds.Config, &raw); err != nil {
			return fmt.Errorf("decode dataset config: %w", err)
		}
	}
	raw["feature_columns"] = cfg.FeatureColumns
	raw["target_column"] = cfg.TargetColumn
	if cfg.BatchSize <= 0 {
		raw["batch_size"] = defaultBatchSize
	}

	pc.Config = raw
	return nil
}

const defaultBatchSize = 1000
