package handlers

import (
	"fmt"

	"github.com/google/uuid"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	domainml "github.com/ckguru/orchestrator/internal/domain/ml"

	mlrepo "github.com/ckguru/orchestrator/internal/data/repos/ml"
	vcsrepo "github.com/ckguru/orchestrator/internal/data/repos/vcs"

	"github.com/ckguru/orchestrator/internal/artifacts"
	"github.com/ckguru/orchestrator/internal/jobs/cleaning"
	"github.com/ckguru/orchestrator/internal/jobs/engine"
	"github.com/ckguru/orchestrator/internal/jobs/featureselect"
	"github.com/ckguru/orchestrator/internal/jobs/jobserr"
	"github.com/ckguru/orchestrator/internal/jobs/runtime"
	"github.com/ckguru/orchestrator/internal/jobs/steps"
)

// DatasetGenerationHandler implements the Dataset-Generation Handler:
// it builds the fixed Strategy (LoadConfiguration ->
// StreamAndProcessBatches -> ProcessGloballyStrategy ->
// SelectFinalColumns -> WriteOutput), runs it through the Pipeline
// Engine, and persists the resulting artifact URIs onto the Dataset
// row the job names.
type DatasetGenerationHandler struct {
	Datasets      mlrepo.DatasetRepo
	Metrics       vcsrepo.CommitMetricsRepo
	Bucket        artifacts.BucketService
	Cleaning      *cleaning.Registry
	FeatureSelect *featureselect.Registry
}

func (h *DatasetGenerationHandler) Kind() domainjobs.Kind { return domainjobs.KindDatasetGenerate }

func (h *DatasetGenerationHandler) Run(rc *runtime.Context) error {
	if rc.Job.DatasetID == nil {
		h.fail(rc, jobserr.Validation("missing dataset_id"))
		return nil
	}
	if rc.Job.RepositoryID == nil {
		h.fail(rc, jobserr.Validation("missing repository_id"))
		return nil
	}
	datasetID := *rc.Job.DatasetID

	ds, err := h.Datasets.GetByID(dbctxFor(rc.Ctx), datasetID)
	if err != nil {
		h.fail(rc, jobserr.Dependency("load dataset %s: %v", datasetID, err))
		return nil
	}

	_ = rc.Progress("generating dataset")
	if err := h.Datasets.UpdateFields(dbctxFor(rc.Ctx), datasetID, map[string]interface{}{
		"status": domainml.DatasetGenerating,
	}); err != nil {
		h.fail(rc, jobserr.Dependency("mark dataset generating: %v", err))
		return nil
	}

	cfg, _ := decodeDatasetConfig(ds.Config)

	source := &steps.BatchSource{
		Metrics:      h.Metrics,
		RepositoryID: *rc.Job.RepositoryID,
		BatchSize:    cfg.BatchSize,
	}

	strategy := engine.Strategy{
		&steps.LoadConfiguration{Datasets: h.Datasets, DatasetID: datasetID},
		&steps.StreamAndProcessBatches{Source: source, Registry: h.Cleaning, Canceled: rc.Canceled},
	}
	strategy = append(strategy, steps.ProcessGloballyStrategy(h.Cleaning, h.FeatureSelect)...)
	strategy = append(strategy,
		&steps.SelectFinalColumns{},
		&steps.WriteOutput{Bucket: h.Bucket, DatasetID: datasetID, TargetCol: cfg.TargetColumn},
	)

	deps := engine.Deps{}
	pc := &engine.Context{
		Job: rc.Job,
		Progress: func(stage string, pct int, msg string) {
			_ = rc.Progress(fmt.Sprintf("%s (%d%%): %s", stage, pct, msg))
		},
	}

	eng := engine.NewEngine(constDepsProvider{deps}, engine.RetryPolicy{})
	if err := eng.Run(rc.Ctx, strategy, pc); err != nil {
		h.failDataset(rc, datasetID, jobserr.Dependency("%v", err))
		return nil
	}

	if rc.Canceled() {
		if result, ok := deps["write_output_result"].(*steps.WriteOutputResult); ok && result != nil {
			artifacts.CleanupURIs(rc.Ctx, h.Bucket, result.OutputURI, result.BackgroundURI)
		}
		_ = h.Datasets.UpdateFields(dbctxFor(rc.Ctx), datasetID, map[string]interface{}{
			"status":         domainml.DatasetFailed,
			"status_message": "canceled",
		})
		_, _ = rc.Revoke("dataset generation canceled")
		return nil
	}

	result, _ := deps["write_output_result"].(*steps.WriteOutputResult)
	if result == nil {
		h.failDataset(rc, datasetID, jobserr.Dependency("pipeline produced no output result"))
		return nil
	}

	updates := map[string]interface{}{
		"status":         domainml.DatasetReady,
		"storage_uri":    result.OutputURI,
		"num_rows":       result.RowsWritten,
		"status_message": "",
	}
	if result.BackgroundURI != "" {
		updates["background_sample_uri"] = result.BackgroundURI
	}
	if err := h.Datasets.UpdateFields(dbctxFor(rc.Ctx), datasetID, updates); err != nil {
		h.failDataset(rc, datasetID, jobserr.Dependency("persist dataset result: %v", err))
		return nil
	}

	_, err = rc.Succeed(map[string]any{
		"dataset_id":  datasetID,
		"storage_uri": result.OutputURI,
		"num_rows":    result.RowsWritten,
	})
	return err
}

// failDataset marks both the Job and the Dataset row failed -- a
// dataset stuck in "generating" after its job terminates would be
// unselectable by every future training/search job forever.
func (h *DatasetGenerationHandler) failDataset(rc *runtime.Context, datasetID uuid.UUID, err error) {
	h.fail(rc, err)
	_ = h.Datasets.UpdateFields(dbctxFor(rc.Ctx), datasetID, map[string]interface{}{
		"status":         domainml.DatasetFailed,
		"status_message": truncate(err),
	})
}

func (h *DatasetGenerationHandler) fail(rc *runtime.Context, err error) {
	_, _ = rc.Fail(truncate(err))
}

func decodeDatasetConfig(raw []byte) (domainml.DatasetConfig, error) {
	var cfg domainml.DatasetConfig
	if len(raw) == 0 {
		return cfg, nil
	}
	err := jsonDecode(raw, &cfg)
	return cfg, err
}

// constDepsProvider hands every Step the same fixed Deps bag, letting
// WriteOutput leave its result in a map the Handler can read back after
// engine.Run returns, without the Handler reaching into Step internals.
type constDepsProvider struct {
	deps engine.Deps
}

func (p constDepsProvider) DependenciesFor(_ engine.Step, _ *engine.Context) engine.Deps {
	return p.deps
}
