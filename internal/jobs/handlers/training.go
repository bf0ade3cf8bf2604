package handlers

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	domainml "github.com/ckguru/orchestrator/internal/domain/ml"

	"github.com/ckguru/orchestrator/internal/artifacts"
	mlrepo "github.com/ckguru/orchestrator/internal/data/repos/ml"
	"github.com/ckguru/orchestrator/internal/jobs/jobserr"
	"github.com/ckguru/orchestrator/internal/jobs/modeltype"
	"github.com/ckguru/orchestrator/internal/jobs/runtime"
	"github.com/ckguru/orchestrator/internal/platform/logger"
)

// TrainingConfig is the decoded shape of a training Job's Config blob.
type TrainingConfig struct {
	DatasetID       uuid.UUID      `json:"dataset_id"`
	FeatureColumns  []string       `json:"feature_columns"`
	TargetColumn    string         `json:"target_column"`
	ModelType       string         `json:"model_type"`
	ModelName       string         `json:"model_name"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	TestSize        float64        `json:"test_size"`
}

// TrainingHandler implements the Training Handler: load the dataset,
// split it, fit the requested model type, then persist the resulting
// Model row and artifact.
type TrainingHandler struct {
	Datasets  mlrepo.DatasetRepo
	Models    mlrepo.ModelRepo
	Bucket    artifacts.BucketService
	ModelType *modeltype.Registry
	Log       *logger.Logger
}

func (h *TrainingHandler) Kind() domainjobs.Kind { return domainjobs.KindTraining }

func (h *TrainingHandler) Run(rc *runtime.Context) error {
	var cfg TrainingConfig
	if err := jsonDecode(rc.Job.Config, &cfg); err != nil {
		h.fail(rc, jobserr.Validation("decode training config: %v", err))
		return nil
	}
	if len(cfg.FeatureColumns) == 0 || cfg.TargetColumn == "" {
		h.fail(rc, jobserr.Validation("missing feature_columns or target_column"))
		return nil
	}
	if cfg.ModelName == "" || cfg.ModelType == "" {
		h.fail(rc, jobserr.Validation("missing model_name or model_type"))
		return nil
	}

	mt, ok := h.ModelType.Get(cfg.ModelType)
	if !ok {
		h.fail(rc, jobserr.Validation("unknown model_type %q", cfg.ModelType))
		return nil
	}

	_ = rc.Progress("loading dataset")
	ds, err := h.Datasets.GetByID(dbctxFor(rc.Ctx), cfg.DatasetID)
	if err != nil {
		h.fail(rc, jobserr.Dependency("load dataset %s: %v", cfg.DatasetID, err))
		return nil
	}
	if ds.Status != domainml.DatasetReady {
		h.fail(rc, jobserr.Dependency("dataset %s not ready (status=%s)", cfg.DatasetID, ds.Status))
		return nil
	}
	if ds.StorageURI == nil {
		h.fail(rc, jobserr.Dependency("dataset %s has no storage_uri", cfg.DatasetID))
		return nil
	}

	_ = rc.Progress("loading dataset artifact")
	frame, err := downloadFrame(rc.Ctx, h.Bucket, *ds.StorageURI)
	if err != nil {
		h.fail(rc, err)
		return nil
	}

	_ = rc.Progress("preparing data")
	X, y, err := frameToXY(frame, cfg.FeatureColumns, cfg.TargetColumn)
	if err != nil {
		h.fail(rc, err)
		return nil
	}

	xTrain, xTest, yTrain, yTest := X, [][]float64(nil), y, []int(nil)
	if cfg.TestSize > 0 && cfg.TestSize < 1 {
		xTrain, xTest, yTrain, yTest = modeltype.TrainTestSplit(X, y, cfg.TestSize, 42)
	}

	_ = rc.Progress("training model")
	start := time.Now()
	model, err := mt.Fit(rc.Ctx, xTrain, yTrain, cfg.Hyperparameters)
	if err != nil {
		h.fail(rc, jobserr.Validation("fit model: %v", err))
		return nil
	}
	trainingSeconds := time.Since(start).Seconds()

	metrics := map[string]float64{"training_time_seconds": trainingSeconds}
	if len(xTest) > 0 {
		for k, v := range modeltype.Evaluate(model, xTest, yTest) {
			metrics[k] = v
		}
	} else {
		for k, v := range modeltype.Evaluate(model, xTrain, yTrain) {
			metrics[k] = v
		}
	}

	if err := h.saveModel(rc, cfg, ds, model, metrics); err != nil {
		h.fail(rc, err)
		return nil
	}
	return nil
}

// saveModel resolves the next version, creates the Model row first,
// writes the artifact, then updates the row's ArtifactURI only once the
// write has acknowledged -- a row with a nil ArtifactURI is never
// selectable by ModelRepo.GetLatestVersion.
func (h *TrainingHandler) saveModel(rc *runtime.Context, cfg TrainingConfig, ds *domainml.Dataset, model modeltype.Model, metrics map[string]float64) error {
	version := 1
	if latest, err := h.Models.GetLatestVersion(dbctxFor(rc.Ctx), cfg.ModelName); err == nil && latest != nil {
		version = latest.Version + 1
	}

	hyperB, _ := marshalJSON(cfg.Hyperparameters)
	metricsB, _ := marshalJSON(metrics)
	featB, _ := marshalJSON(cfg.FeatureColumns)

	datasetID := ds.ID
	trainingJobID := rc.Job.ID
	row := &domainml.Model{
		Name:            cfg.ModelName,
		Version:         version,
		ModelType:       cfg.ModelType,
		DatasetID:       &datasetID,
		TrainingJobID:   &trainingJobID,
		Hyperparameters: hyperB,
		PerformanceMetrics: metricsB,
		FeatureColumns:  featB,
	}
	created, err := h.Models.Create(dbctxFor(rc.Ctx), row)
	if err != nil {
		return jobserr.Dependency("create model row: %v", err)
	}

	_ = rc.Progress("saving model artifact")
	body, err := modeltype.Marshal(cfg.ModelType, model)
	if err != nil {
		return jobserr.Artifact("model artifact", fmt.Errorf("marshal: %w", err))
	}
	bucketName, err := h.Bucket.BucketName(artifacts.BucketCategoryModel)
	if err != nil {
		return jobserr.Artifact("model artifact", err)
	}
	key := artifacts.ModelKey(cfg.ModelName, version)
	uri := artifacts.BuildArtifactURI(artifacts.BucketCategoryModel, bucketName, key)
	if err := artifacts.ClearAndWrite(dbctxFor(rc.Ctx), h.Bucket, artifacts.BucketCategoryModel, key, bytes.NewReader(body)); err != nil {
		if h.Log != nil {
			h.Log.Error("model row created but artifact write failed, row left with nil artifact_uri",
				"model_id", created.ID, "model_name", cfg.ModelName, "version", version, "uri", uri, "error", err)
		}
		return jobserr.Artifact(uri, err)
	}

	if err := h.Models.UpdateFields(dbctxFor(rc.Ctx), created.ID, map[string]interface{}{"artifact_uri": uri}); err != nil {
		return jobserr.Dependency("update model artifact_uri: %v", err)
	}

	_, err = rc.Succeed(map[string]any{
		"model_id":   created.ID,
		"model_name": cfg.ModelName,
		"version":    version,
		"metrics":    metrics,
	})
	return err
}

func (h *TrainingHandler) fail(rc *runtime.Context, err error) {
	_, _ = rc.Fail(truncate(err))
}
