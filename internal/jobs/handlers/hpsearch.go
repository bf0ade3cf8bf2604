package handlers

import (
	"fmt"
	"math"
	"math/rand"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	domainml "github.com/ckguru/orchestrator/internal/domain/ml"

	"github.com/ckguru/orchestrator/internal/artifacts"
	mlrepo "github.com/ckguru/orchestrator/internal/data/repos/ml"
	"github.com/ckguru/orchestrator/internal/jobs/jobserr"
	"github.com/ckguru/orchestrator/internal/jobs/modeltype"
	"github.com/ckguru/orchestrator/internal/jobs/runtime"
)

// HPSuggestion is one dimension of a search space: a float/int range
// (with optional step and log scale) or a categorical choice list.
type HPSuggestion struct {
	ParamName  string        `json:"param_name"`
	SuggestType string       `json:"suggest_type"` // "float" | "int" | "categorical"
	Low        float64       `json:"low,omitempty"`
	High       float64       `json:"high,omitempty"`
	Step       float64       `json:"step,omitempty"`
	Log        bool          `json:"log,omitempty"`
	Choices    []interface{} `json:"choices,omitempty"`
}

// HPSearchConfig is the decoded shape of an hp_search Job's Config blob.
type HPSearchConfig struct {
	ModelName       string         `json:"model_name"`
	ModelType       string         `json:"model_type"`
	HPSpace         []HPSuggestion `json:"hp_space"`
	NTrials         int            `json:"n_trials"`
	ObjectiveMetric string         `json:"objective_metric"`
	CVFolds         int            `json:"cv_folds"`
	SaveBestModel   bool           `json:"save_best_model"`
	FeatureColumns  []string       `json:"feature_columns"`
	TargetColumn    string         `json:"target_column"`
	RandomSeed      int64          `json:"random_seed"`
}

// hpTrial is one evaluated point in the search space.
type hpTrial struct {
	Number int            `json:"number"`
	Params map[string]any `json:"params"`
	Value  float64        `json:"value"`
}

// HPSearchHandler implements the HP-Search Handler: an outer trial loop
// over a typed search space, each trial scored by k-fold CV under a
// named objective metric, with the best trial persisted on the Job row
// and an optional end-to-end retrain reusing the Training Handler's
// model-save protocol.
//
// No hyperparameter-optimization library (Optuna or otherwise) is wired
// in, so this samples the search space with a seeded uniform/log-uniform
// draw per trial (a random-search sampler) rather than TPE.
type HPSearchHandler struct {
	Datasets  mlrepo.DatasetRepo
	Models    mlrepo.ModelRepo
	Bucket    artifacts.BucketService
	ModelType *modeltype.Registry
	// Training supplies the best-model persistence path (Model row
	// creation, artifact write, artifact_uri update) so the retrain
	// step doesn't duplicate TrainingHandler.saveModel.
	Training *TrainingHandler
}

func (h *HPSearchHandler) Kind() domainjobs.Kind { return domainjobs.KindHPSearch }

func (h *HPSearchHandler) Run(rc *runtime.Context) error {
	var cfg HPSearchConfig
	if err := jsonDecode(rc.Job.Config, &cfg); err != nil {
		h.fail(rc, jobserr.Validation("decode hp_search config: %v", err))
		return nil
	}
	if cfg.NTrials <= 0 {
		h.fail(rc, jobserr.Validation("n_trials must be positive"))
		return nil
	}
	if len(cfg.HPSpace) == 0 {
		h.fail(rc, jobserr.Validation("hp_space must not be empty"))
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
	if cfg.CVFolds < 2 {
		cfg.CVFolds = 3
	}
	if cfg.RandomSeed == 0 {
		cfg.RandomSeed = 42
	}
	metric := normalizeObjectiveMetric(cfg.ObjectiveMetric)

	mt, ok := h.ModelType.Get(cfg.ModelType)
	if !ok {
		h.fail(rc, jobserr.Validation("unknown model_type %q", cfg.ModelType))
		return nil
	}

	_ = rc.Progress("loading dataset")
	if rc.Job.DatasetID == nil {
		h.fail(rc, jobserr.Validation("missing dataset_id"))
		return nil
	}
	datasetID := *rc.Job.DatasetID
	ds, err := h.Datasets.GetByID(dbctxFor(rc.Ctx), datasetID)
	if err != nil {
		h.fail(rc, jobserr.Dependency("load dataset %s: %v", datasetID, err))
		return nil
	}
	if ds.Status != domainml.DatasetReady || ds.StorageURI == nil {
		h.fail(rc, jobserr.Dependency("dataset %s not ready", datasetID))
		return nil
	}

	frame, err := downloadFrame(rc.Ctx, h.Bucket, *ds.StorageURI)
	if err != nil {
		h.fail(rc, err)
		return nil
	}
	X, y, err := frameToXY(frame, cfg.FeatureColumns, cfg.TargetColumn)
	if err != nil {
		h.fail(rc, err)
		return nil
	}

	folds := kFoldIndices(len(X), cfg.CVFolds, cfg.RandomSeed)
	rng := rand.New(rand.NewSource(cfg.RandomSeed))

	var best *hpTrial
	trials := make([]hpTrial, 0, cfg.NTrials)
	for n := 0; n < cfg.NTrials; n++ {
		if rc.Canceled() {
			_, _ = rc.Revoke("canceled during search")
			return nil
		}
		params, err := sampleSearchSpace(rng, cfg.HPSpace)
		if err != nil {
			h.fail(rc, jobserr.Validation("sample trial %d: %v", n, err))
			return nil
		}
		value := h.scoreTrial(rc, mt, X, y, folds, params, metric)
		t := hpTrial{Number: n, Params: params, Value: value}
		trials = append(trials, t)
		if best == nil || value > best.Value {
			best = &t
		}
		_ = rc.Progress(fmt.Sprintf("trial %d/%d: %s=%.4f (best=%.4f)", n+1, cfg.NTrials, metric, value, best.Value))
	}

	if best == nil {
		h.fail(rc, jobserr.Validation("search produced no trials"))
		return nil
	}

	bestParamsB, _ := marshalJSON(best.Params)
	bestTrialID := int64(best.Number)
	if err := rc.Repo.UpdateFields(dbctxFor(rc.Ctx), rc.Job.ID, map[string]interface{}{
		"best_trial_id": bestTrialID,
		"best_params":   bestParamsB,
		"best_value":    best.Value,
	}); err != nil {
		h.fail(rc, jobserr.Dependency("persist best trial: %v", err))
		return nil
	}
	rc.Job.BestTrialID = &bestTrialID

	result := map[string]any{
		"study_name":      rc.Job.StudyName,
		"trials_run":      len(trials),
		"best_trial_id":   best.Number,
		"best_params":     best.Params,
		"best_value":      best.Value,
		"objective_metric": metric,
	}

	if cfg.SaveBestModel && h.Training != nil {
		_ = rc.Progress("retraining best configuration")
		model, err := mt.Fit(rc.Ctx, X, y, best.Params)
		if err != nil {
			h.fail(rc, jobserr.Validation("retrain best trial: %v", err))
			return nil
		}
		metrics := modeltype.Evaluate(model, X, y)
		trainCfg := TrainingConfig{
			FeatureColumns:  cfg.FeatureColumns,
			TargetColumn:    cfg.TargetColumn,
			ModelType:       cfg.ModelType,
			ModelName:       cfg.ModelName,
			Hyperparameters: best.Params,
		}
		if err := h.Training.saveModel(rc, trainCfg, ds, model, metrics); err != nil {
			h.fail(rc, err)
		}
		return nil
	}

	_, err = rc.Succeed(result)
	return err
}

// scoreTrial runs k-fold CV for one sampled parameter set, returning
// the mean objective value across folds. A fold whose fit fails
// contributes the "failed" value (0) rather than aborting the whole
// trial, so one bad fold degrades a trial's score instead of crashing
// the study.
func (h *HPSearchHandler) scoreTrial(rc *runtime.Context, mt modeltype.ModelType, X [][]float64, y []int, folds [][]int, params map[string]any, metric string) float64 {
	var sum float64
	for _, valIdx := range folds {
		xTrain, yTrain, xVal, yVal := splitFold(X, y, valIdx)
		if len(xTrain) == 0 || len(xVal) == 0 {
			continue
		}
		model, err := mt.Fit(rc.Ctx, xTrain, yTrain, params)
		if err != nil {
			continue
		}
		sum += modeltype.Evaluate(model, xVal, yVal)[metric]
	}
	return sum / float64(len(folds))
}

func (h *HPSearchHandler) fail(rc *runtime.Context, err error) {
	_, _ = rc.Fail(truncate(err))
}

// normalizeObjectiveMetric maps the objective_metric config value onto
// one of the two metrics modeltype.Evaluate computes, defaulting to
// f1_weighted for anything unsupported.
func normalizeObjectiveMetric(m string) string {
	if m == "accuracy" {
		return "accuracy"
	}
	return "f1_weighted"
}

// kFoldIndices partitions [0,n) into k roughly-equal folds under a
// seeded shuffle, returning each fold's validation-row indices. This
// doesn't balance classes across folds -- the same plain-random
// simplification modeltype.TrainTestSplit already makes.
func kFoldIndices(n, k int, seed int64) [][]int {
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	folds := make([][]int, k)
	for i, idx := range perm {
		f := i % k
		folds[f] = append(folds[f], idx)
	}
	return folds
}

func splitFold(X [][]float64, y []int, valIdx []int) (xTrain [][]float64, yTrain []int, xVal [][]float64, yVal []int) {
	inVal := make(map[int]bool, len(valIdx))
	for _, i := range valIdx {
		inVal[i] = true
	}
	for i := range X {
		if inVal[i] {
			xVal = append(xVal, X[i])
			yVal = append(yVal, y[i])
		} else {
			xTrain = append(xTrain, X[i])
			yTrain = append(yTrain, y[i])
		}
	}
	return
}

// sampleSearchSpace draws one candidate parameter set: a uniform draw
// over [low,high] (or log-uniform when Log is set), snapped to Step
// when given, int-suggestions rounded to whole numbers, categorical
// suggestions picked uniformly from Choices.
func sampleSearchSpace(rng *rand.Rand, space []HPSuggestion) (map[string]any, error) {
	params := make(map[string]any, len(space))
	for _, s := range space {
		switch s.SuggestType {
		case "categorical":
			if len(s.Choices) == 0 {
				return nil, fmt.Errorf("%q: choices required for categorical", s.ParamName)
			}
			params[s.ParamName] = s.Choices[rng.Intn(len(s.Choices))]
		case "int":
			if s.Low >= s.High {
				return nil, fmt.Errorf("%q: low must be < high", s.ParamName)
			}
			v := sampleFloat(rng, s.Low, s.High, s.Step, s.Log)
			params[s.ParamName] = int(math.Round(v))
		case "float":
			if s.Low >= s.High {
				return nil, fmt.Errorf("%q: low must be < high", s.ParamName)
			}
			params[s.ParamName] = sampleFloat(rng, s.Low, s.High, s.Step, s.Log)
		default:
			return nil, fmt.Errorf("%q: unsupported suggest_type %q", s.ParamName, s.SuggestType)
		}
	}
	return params, nil
}

func sampleFloat(rng *rand.Rand, low, high, step float64, log bool) float64 {
	var v float64
	if log && low > 0 {
		lo, hi := math.Log(low), math.Log(high)
		v = math.Exp(lo + rng.Float64()*(hi-lo))
	} else {
		v = low + rng.Float64()*(high-low)
	}
	if step > 0 {
		steps := math.Round((v - low) / step)
		v = low + steps*step
		if v > high {
			v = high
		}
	}
	return v
}
