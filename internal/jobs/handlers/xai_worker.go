package handlers

import (
	"fmt"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	domainml "github.com/ckguru/orchestrator/internal/domain/ml"

	mlrepo "github.com/ckguru/orchestrator/internal/data/repos/ml"
	vcsrepo "github.com/ckguru/orchestrator/internal/data/repos/vcs"

	"github.com/ckguru/orchestrator/internal/artifacts"
	"github.com/ckguru/orchestrator/internal/jobs/jobserr"
	"github.com/ckguru/orchestrator/internal/jobs/modeltype"
	"github.com/ckguru/orchestrator/internal/jobs/runtime"
	"github.com/ckguru/orchestrator/internal/jobs/xaitype"
)

// explanationBackgroundSampleSize bounds the fallback background
// sample drawn from the commit's own feature rows when the training
// Dataset carries no background artifact.
const explanationBackgroundSampleSize = 100

// ExplanationWorkerHandler implements the Explanation Worker Handler:
// load the model, resolve the commit's features, resolve a background
// sample, then run the requested XAI strategy. One xai_result Job
// names exactly one XAIType, computed against the same commit-level
// features the originating inference job scored.
type ExplanationWorkerHandler struct {
	Models    mlrepo.ModelRepo
	Datasets  mlrepo.DatasetRepo
	Metrics   vcsrepo.CommitMetricsRepo
	Bucket    artifacts.BucketService
	ModelType *modeltype.Registry
	XAIType   *xaitype.Registry
}

func (h *ExplanationWorkerHandler) Kind() domainjobs.Kind { return domainjobs.KindXAIResult }

func (h *ExplanationWorkerHandler) Run(rc *runtime.Context) error {
	if rc.Job.XAIType == nil || *rc.Job.XAIType == "" {
		h.fail(rc, jobserr.Validation("missing xai_type"))
		return nil
	}
	strategy, ok := h.XAIType.Get(*rc.Job.XAIType)
	if !ok {
		h.fail(rc, jobserr.Validation("unknown xai_type %q", *rc.Job.XAIType))
		return nil
	}
	if rc.Job.InferenceJobID == nil {
		h.fail(rc, jobserr.Validation("missing inference_job_id"))
		return nil
	}
	if rc.Job.ModelID == nil {
		h.fail(rc, jobserr.Validation("missing model_id"))
		return nil
	}

	_ = rc.Progress("loading inference job")
	inferenceJob, err := rc.Repo.GetByID(dbctxFor(rc.Ctx), *rc.Job.InferenceJobID)
	if err != nil {
		h.fail(rc, jobserr.Dependency("load inference job %d: %v", *rc.Job.InferenceJobID, err))
		return nil
	}
	var ref inputReference
	if err := jsonDecode(inferenceJob.InputReference, &ref); err != nil || ref.CommitHash == "" {
		h.fail(rc, jobserr.Dependency("inference job %d has no usable input_reference", inferenceJob.ID))
		return nil
	}

	_ = rc.Progress("loading model")
	modelRow, err := h.Models.GetByID(dbctxFor(rc.Ctx), *rc.Job.ModelID)
	if err != nil {
		h.fail(rc, jobserr.Dependency("load model %s: %v", *rc.Job.ModelID, err))
		return nil
	}
	if modelRow.ArtifactURI == nil {
		h.fail(rc, jobserr.Dependency("model %s has no artifact", *rc.Job.ModelID))
		return nil
	}
	if _, ok := h.ModelType.Get(modelRow.ModelType); !ok {
		h.fail(rc, jobserr.Validation("unknown model_type %q", modelRow.ModelType))
		return nil
	}

	_ = rc.Progress("downloading model artifact")
	modelBytes, err := downloadArtifactBytes(rc.Ctx, h.Bucket, *modelRow.ArtifactURI)
	if err != nil {
		h.fail(rc, err)
		return nil
	}
	model, err := modeltype.Unmarshal(modelRow.ModelType, modelBytes)
	if err != nil {
		h.fail(rc, jobserr.Artifact(*modelRow.ArtifactURI, fmt.Errorf("unmarshal model: %w", err)))
		return nil
	}

	_ = rc.Progress("retrieving features")
	rows, err := loadCommitFeatureRows(rc.Ctx, h.Metrics, ref.RepositoryID, ref.CommitHash)
	if err != nil {
		h.fail(rc, jobserr.Dependency("retrieve features: %v", err))
		return nil
	}
	if len(rows) == 0 {
		h.fail(rc, jobserr.Dependency("no features found for commit %s", ref.CommitHash))
		return nil
	}

	var featureCols []string
	_ = jsonDecode(modelRow.FeatureColumns, &featureCols)
	if len(featureCols) == 0 {
		featureCols = inferNumericColumns(rows)
	}
	if len(featureCols) == 0 {
		h.fail(rc, jobserr.Dependency("no numeric features found for commit %s", ref.CommitHash))
		return nil
	}

	X, err := rowsToX(rows, featureCols)
	if err != nil {
		h.fail(rc, jobserr.Validation("prepare xai features: %v", err))
		return nil
	}
	identifiers := rowIdentifiers(rows)

	_ = rc.Progress("loading background sample")
	background := h.loadBackground(rc, modelRow, featureCols, X)

	_ = rc.Progress("computing explanation")
	result, err := strategy.Explain(rc.Ctx, model, background, X, featureCols, identifiers)
	if err != nil {
		h.fail(rc, jobserr.Validation("%s: %v", *rc.Job.XAIType, err))
		return nil
	}

	_, err = rc.Succeed(result)
	return err
}

// loadBackground resolves the background matrix SHAP/LIME/
// Counterfactuals anchor against: the Dataset's persisted background
// artifact (WriteOutput's companion sample) when the model was trained
// against a Dataset that has one, falling back to a random sample of
// this commit's own feature rows otherwise -- covering a model
// predating background persistence, or one trained outside
// dataset_generation entirely.
func (h *ExplanationWorkerHandler) loadBackground(rc *runtime.Context, modelRow *domainml.Model, featureCols []string, fallback [][]float64) [][]float64 {
	if modelRow.DatasetID == nil || h.Datasets == nil {
		return sampleRows(fallback, explanationBackgroundSampleSize, backgroundSampleSeed)
	}
	ds, err := h.Datasets.GetByID(dbctxFor(rc.Ctx), *modelRow.DatasetID)
	if err != nil || ds.BackgroundSampleURI == nil {
		return sampleRows(fallback, explanationBackgroundSampleSize, backgroundSampleSeed)
	}
	df, err := downloadFrame(rc.Ctx, h.Bucket, *ds.BackgroundSampleURI)
	if err != nil {
		return sampleRows(fallback, explanationBackgroundSampleSize, backgroundSampleSeed)
	}
	bg, err := frameToX(df, featureCols)
	if err != nil {
		return sampleRows(fallback, explanationBackgroundSampleSize, backgroundSampleSeed)
	}
	return bg
}

func (h *ExplanationWorkerHandler) fail(rc *runtime.Context, err error) {
	_, _ = rc.Fail(truncate(err))
}
