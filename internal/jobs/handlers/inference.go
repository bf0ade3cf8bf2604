package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"

	mlrepo "github.com/ckguru/orchestrator/internal/data/repos/ml"
	vcsrepo "github.com/ckguru/orchestrator/internal/data/repos/vcs"

	"github.com/ckguru/orchestrator/internal/artifacts"
	"github.com/ckguru/orchestrator/internal/jobs/jobserr"
	"github.com/ckguru/orchestrator/internal/jobs/modeltype"
	"github.com/ckguru/orchestrator/internal/jobs/runtime"
)

// inputReference is the decoded shape of an inference Job's
// InputReference column.
type inputReference struct {
	RepositoryID uuid.UUID `json:"repo_id"`
	CommitHash   string    `json:"commit_hash"`
}

// filePrediction is one row of a packaged inference result.
type filePrediction struct {
	File        string  `json:"file"`
	ClassName   string  `json:"class_name"`
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
}

// predictionPackage is the packaged inference result persisted as the
// job's result JSON.
type predictionPackage struct {
	CommitPrediction   int              `json:"commit_prediction"`
	MaxBugProbability  float64          `json:"max_bug_probability"`
	NumFilesAnalyzed   int              `json:"num_files_analyzed"`
	Details            []filePrediction `json:"details,omitempty"`
	Error              string           `json:"error,omitempty"`
}

// InferenceHandler implements the Inference Handler: load and validate
// the job, load the model strategy, resolve features, prepare the
// input matrix, run the prediction, then package the result.
type InferenceHandler struct {
	Models  mlrepo.ModelRepo
	Metrics vcsrepo.CommitMetricsRepo
	Bucket  artifacts.BucketService
	ModelType *modeltype.Registry
}

func (h *InferenceHandler) Kind() domainjobs.Kind { return domainjobs.KindInference }

func (h *InferenceHandler) Run(rc *runtime.Context) error {
	var ref inputReference
	if err := jsonDecode(rc.Job.InputReference, &ref); err != nil {
		h.fail(rc, jobserr.Validation("decode input_reference: %v", err))
		return nil
	}
	if ref.RepositoryID == uuid.Nil || ref.CommitHash == "" {
		h.fail(rc, jobserr.Validation("input_reference incomplete: missing repo_id/commit_hash"))
		return nil
	}
	if rc.Job.ModelID == nil {
		h.fail(rc, jobserr.Validation("missing model_id"))
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
	mt, ok := h.ModelType.Get(modelRow.ModelType)
	if !ok {
		h.fail(rc, jobserr.Validation("unknown model_type %q", modelRow.ModelType))
		return nil
	}

	_ = rc.Progress("downloading model artifact")
	bs, err := h.downloadModelBytes(rc, *modelRow.ArtifactURI)
	if err != nil {
		h.fail(rc, err)
		return nil
	}
	model, err := modeltype.Unmarshal(modelRow.ModelType, bs)
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
		pkg := predictionPackage{CommitPrediction: -1, MaxBugProbability: -1, NumFilesAnalyzed: 0, Error: "no features found for commit"}
		h.succeedWithPackage(rc, pkg)
		return nil
	}

	var featureCols []string
	_ = jsonDecode(modelRow.FeatureColumns, &featureCols)
	if len(featureCols) == 0 {
		featureCols = inferNumericColumns(rows)
	}
	if len(featureCols) == 0 {
		pkg := predictionPackage{CommitPrediction: -1, MaxBugProbability: -1, NumFilesAnalyzed: 0, Error: "no numeric features found"}
		h.succeedWithPackage(rc, pkg)
		return nil
	}

	X, err := rowsToX(rows, featureCols)
	if err != nil {
		h.fail(rc, jobserr.Validation("prepare inference features: %v", err))
		return nil
	}

	_ = rc.Progress("executing prediction")
	preds := model.Predict(X)
	probas := model.PredictProba(X)

	pkg := packagePredictions(rows, preds, probas)
	h.succeedWithPackage(rc, pkg)
	return nil
}

func (h *InferenceHandler) downloadModelBytes(rc *runtime.Context, uri string) ([]byte, error) {
	_, key, err := artifacts.ParseArtifactURI(uri)
	if err != nil {
		return nil, jobserr.Artifact(uri, err)
	}
	r, err := h.Bucket.DownloadFile(rc.Ctx, artifacts.BucketCategoryModel, key)
	if err != nil {
		return nil, jobserr.Artifact(uri, err)
	}
	defer r.Close()
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if readErr != nil {
			break
		}
	}
	return out, nil
}

// succeedWithPackage draws the "failed" vs "success" line on the
// packaged result: a non-empty Error still transitions the job to
// failed, rather than success-with-an-error-field.
func (h *InferenceHandler) succeedWithPackage(rc *runtime.Context, pkg predictionPackage) {
	b, _ := marshalJSON(pkg)
	_ = rc.Progress("packaging results")
	if err := rc.Repo.UpdateFields(dbctxFor(rc.Ctx), rc.Job.ID, map[string]interface{}{
		"prediction_result": b,
	}); err != nil {
		h.fail(rc, jobserr.Dependency("persist prediction result: %v", err))
		return
	}
	if pkg.Error != "" {
		h.fail(rc, jobserr.Validation("%s", pkg.Error))
		return
	}
	_, _ = rc.Succeed(map[string]any{
		"commit_prediction":   pkg.CommitPrediction,
		"max_bug_probability": pkg.MaxBugProbability,
		"num_files_analyzed":  pkg.NumFilesAnalyzed,
	})
}

func (h *InferenceHandler) fail(rc *runtime.Context, err error) {
	_, _ = rc.Fail(truncate(err))
}

// loadCommitFeatureRows joins the CK metric rows for one commit with
// that commit's Commit Guru process metrics, the same merge
// BatchSource.ensureLoaded performs across a whole repository, scoped
// here to a single (repository, commit) pair.
func loadCommitFeatureRows(ctx context.Context, metrics vcsrepo.CommitMetricsRepo, repositoryID uuid.UUID, commitHash string) ([]map[string]interface{}, error) {
	dbc := dbctxFor(ctx)
	ckRows, err := metrics.ListCKMetricsForCommit(dbc, repositoryID, commitHash)
	if err != nil {
		return nil, err
	}
	guru, err := metrics.GetCommitGuruMetric(dbc, repositoryID, commitHash)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var guruMetrics map[string]interface{}
	if guru != nil {
		guruMetrics = map[string]interface{}{}
		_ = json.Unmarshal(guru.Metrics, &guruMetrics)
	}

	rows := make([]map[string]interface{}, 0, len(ckRows))
	for _, ck := range ckRows {
		row := map[string]interface{}{}
		_ = json.Unmarshal(ck.Metrics, &row)
		row["file"] = ck.FilePath
		row["class_name"] = ck.ClassName
		for k, v := range guruMetrics {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// inferNumericColumns falls back to every column whose value is
// numeric across all rows, excluding the file/class_name identifiers
// -- the Go analogue of _prepare_data's
// `select_dtypes(include=np.number)` fallback when the model carries
// no recorded feature_columns.
func inferNumericColumns(rows []map[string]interface{}) []string {
	if len(rows) == 0 {
		return nil
	}
	candidate := map[string]bool{}
	for k, v := range rows[0] {
		if k == "file" || k == "class_name" {
			continue
		}
		if _, ok := asNumeric(v); ok {
			candidate[k] = true
		}
	}
	for _, row := range rows[1:] {
		for k := range candidate {
			v, present := row[k]
			if !present {
				delete(candidate, k)
				continue
			}
			if _, ok := asNumeric(v); !ok {
				delete(candidate, k)
			}
		}
	}
	cols := make([]string, 0, len(candidate))
	for k := range candidate {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func asNumeric(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// rowsToX builds the feature matrix for inference, coercing missing
// values to 0.
func rowsToX(rows []map[string]interface{}, featureCols []string) ([][]float64, error) {
	X := make([][]float64, len(rows))
	for i, row := range rows {
		vec := make([]float64, len(featureCols))
		for j, c := range featureCols {
			vec[j] = numericCell(row[c])
		}
		X[i] = vec
	}
	return X, nil
}

// packagePredictions mirrors _package_results: derives a binary
// commit-level prediction (1 if any file predicts 1), the max
// probability of the positive class across files, and a per-file
// detail list.
func packagePredictions(rows []map[string]interface{}, preds []int, probas [][]float64) predictionPackage {
	n := len(rows)
	if len(preds) != n {
		return predictionPackage{CommitPrediction: -1, MaxBugProbability: -1, NumFilesAnalyzed: 0, Error: "prediction results missing or length mismatch"}
	}
	commitPrediction := 0
	maxProb := 0.0
	details := make([]filePrediction, 0, n)
	for i := 0; i < n; i++ {
		prob := 0.0
		if probas != nil && i < len(probas) && len(probas[i]) > 1 {
			prob = probas[i][1]
		}
		if preds[i] == 1 {
			commitPrediction = 1
		}
		if prob > maxProb {
			maxProb = prob
		}
		file, _ := rows[i]["file"].(string)
		className, _ := rows[i]["class_name"].(string)
		details = append(details, filePrediction{
			File:        file,
			ClassName:   className,
			Prediction:  preds[i],
			Probability: round4(prob),
		})
	}
	return predictionPackage{
		CommitPrediction:  commitPrediction,
		MaxBugProbability: round4(maxProb),
		NumFilesAnalyzed:  n,
		Details:           details,
	}
}

func round4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}
