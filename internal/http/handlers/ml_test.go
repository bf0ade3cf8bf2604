package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ckguru/orchestrator/internal/controlplane"
	"github.com/ckguru/orchestrator/internal/data/repos"
	"github.com/ckguru/orchestrator/internal/data/repos/testutil"
	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	domainml "github.com/ckguru/orchestrator/internal/domain/ml"
	domainregistry "github.com/ckguru/orchestrator/internal/domain/registry"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

// stubBroker satisfies controlplane's unexported jobBroker interface
// structurally: it persists the row through the real JobRepo (so
// subsequent reads in the same test see it) without touching Temporal.
type stubBroker struct {
	jobs repos.JobRepo
}

func (b *stubBroker) Submit(ctx context.Context, job *domainjobs.Job) (*domainjobs.Job, error) {
	job.Status = domainjobs.StatusPending
	return b.jobs.Create(dbctx.Background(ctx), job)
}

func (b *stubBroker) Revoke(ctx context.Context, jobID int64, terminate bool, reason string) error {
	return nil
}

func newTestControlPlane(t *testing.T) *controlplane.Service {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	jobRepo := repos.NewJobRepo(db, log)
	return &controlplane.Service{
		Broker:                   &stubBroker{jobs: jobRepo},
		Jobs:                     jobRepo,
		JobEvents:                repos.NewJobEventRepo(db),
		Models:                   repos.NewModelRepo(db, log),
		Datasets:                 repos.NewDatasetRepo(db),
		Repositories:             repos.NewRepositoryRepo(db),
		CommitMetrics:            repos.NewCommitMetricsRepo(db),
		CleaningRegistry:         repos.NewEntryRepo(db, repos.TableCleaningRule),
		FeatureSelectionRegistry: repos.NewEntryRepo(db, repos.TableFeatureSelectionAlgorithm),
		ModelTypeRegistry:        repos.NewEntryRepo(db, repos.TableModelTypeDefinition),
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMLHandlerTrain(t *testing.T) {
	cp := newTestControlPlane(t)

	ds, err := cp.Datasets.Create(dbctx.Background(context.Background()), &domainml.Dataset{
		RepositoryID: uuid.New(),
		Status:       domainml.DatasetReady,
	})
	if err != nil {
		t.Fatalf("seed dataset: %v", err)
	}
	if err := cp.ModelTypeRegistry.Upsert(dbctx.Background(context.Background()), &domainregistry.Entry{
		Name:          "random_forest",
		DisplayName:   "random_forest",
		IsImplemented: true,
		LastUpdatedBy: "test",
	}); err != nil {
		t.Fatalf("seed model type registry: %v", err)
	}

	h := NewMLHandler(cp)
	r := gin.New()
	r.POST("/ml/train", h.Train)
	r.GET("/ml/train/:job_id", h.GetTrain)

	rec := doJSON(t, r, http.MethodPost, "/ml/train", map[string]any{
		"dataset_id":      ds.ID,
		"feature_columns": []string{"a", "b"},
		"target_column":   "y",
		"model_type":      "random_forest",
		"model_name":      "churn-model",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Train: expected 202, got %d body=%s", rec.Code, rec.Body.String())
	}
	var submitted struct {
		JobID  int64  `json:"job_id"`
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if submitted.JobID == 0 || submitted.TaskID == "" {
		t.Fatalf("expected non-zero job_id/task_id, got %+v", submitted)
	}

	getRec := httptest.NewRecorder()
	getReq := httptest.NewRequest(http.MethodGet, "/ml/train/"+submitted.TaskID, nil)
	r.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("GetTrain: expected 200, got %d body=%s", getRec.Code, getRec.Body.String())
	}
	var got struct {
		Job struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"job"`
	}
	if err := json.Unmarshal(getRec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if got.Job.ID != submitted.JobID {
		t.Fatalf("expected job id %d, got %d", submitted.JobID, got.Job.ID)
	}
}

func TestMLHandlerTrainRejectsUnimplementedModelType(t *testing.T) {
	cp := newTestControlPlane(t)
	ds, err := cp.Datasets.Create(dbctx.Background(context.Background()), &domainml.Dataset{
		RepositoryID: uuid.New(),
		Status:       domainml.DatasetReady,
	})
	if err != nil {
		t.Fatalf("seed dataset: %v", err)
	}

	h := NewMLHandler(cp)
	r := gin.New()
	r.POST("/ml/train", h.Train)

	rec := doJSON(t, r, http.MethodPost, "/ml/train", map[string]any{
		"dataset_id":      ds.ID,
		"feature_columns": []string{"a"},
		"target_column":   "y",
		"model_type":      "not_a_real_type",
		"model_name":      "m",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestMLHandlerTrainRequiresBody(t *testing.T) {
	cp := newTestControlPlane(t)
	h := NewMLHandler(cp)
	r := gin.New()
	r.POST("/ml/train", h.Train)

	rec := doJSON(t, r, http.MethodPost, "/ml/train", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing required fields, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestMLHandlerGetTrainUnknownJob(t *testing.T) {
	cp := newTestControlPlane(t)
	h := NewMLHandler(cp)
	r := gin.New()
	r.GET("/ml/train/:job_id", h.GetTrain)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ml/train/999999", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
}
