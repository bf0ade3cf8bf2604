package controlplane

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ckguru/orchestrator/internal/data/repos"
	"github.com/ckguru/orchestrator/internal/data/repos/testutil"
	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	domainml "github.com/ckguru/orchestrator/internal/domain/ml"
	domainregistry "github.com/ckguru/orchestrator/internal/domain/registry"
	domainvcs "github.com/ckguru/orchestrator/internal/domain/vcs"
	"github.com/ckguru/orchestrator/internal/platform/apierr"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

// fakeBroker stands in for *internal/broker.Broker: it persists the
// Job row through the same JobRepo the real broker would (so a
// later Task/Revoke/GetByID call sees a real row) but never talks to
// Temporal, so these tests exercise the pre-flight validation Service
// owns without needing a live workflow client.
type fakeBroker struct {
	jobs    repos.JobRepo
	submits []*domainjobs.Job
	failAll error
}

func (b *fakeBroker) Submit(ctx context.Context, job *domainjobs.Job) (*domainjobs.Job, error) {
	if b.failAll != nil {
		return nil, b.failAll
	}
	job.Status = domainjobs.StatusPending
	created, err := b.jobs.Create(dbctx.Background(ctx), job)
	if err != nil {
		return nil, err
	}
	b.submits = append(b.submits, created)
	return created, nil
}

func (b *fakeBroker) Revoke(ctx context.Context, jobID int64, terminate bool, reason string) error {
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeBroker) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	jobRepo := repos.NewJobRepo(db, log)
	brk := &fakeBroker{jobs: jobRepo}

	svc := &Service{
		Broker:                   brk,
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
	return svc, brk
}

func seedDataset(t *testing.T, s *Service, status domainml.DatasetStatus) *domainml.Dataset {
	t.Helper()
	ds := &domainml.Dataset{
		RepositoryID: uuid.New(),
		Status:       status,
		Config:       datatypes.JSON([]byte(`{}`)),
	}
	created, err := s.Datasets.Create(dbctx.Background(context.Background()), ds)
	if err != nil {
		t.Fatalf("seed dataset: %v", err)
	}
	return created
}

func seedModelType(t *testing.T, s *Service, name string, implemented bool) {
	t.Helper()
	entry := &domainregistry.Entry{
		Name:          name,
		DisplayName:   name,
		IsImplemented: implemented,
		LastUpdatedBy: "test",
	}
	if err := s.ModelTypeRegistry.Upsert(dbctx.Background(context.Background()), entry); err != nil {
		t.Fatalf("seed model type: %v", err)
	}
}

func seedRepository(t *testing.T, s *Service) *domainvcs.Repository {
	t.Helper()
	repo := &domainvcs.Repository{
		GitURL: "https://example.com/org/" + uuid.NewString() + ".git",
		Name:   "org/repo",
	}
	created, err := s.Repositories.Create(dbctx.Background(context.Background()), repo)
	if err != nil {
		t.Fatalf("seed repository: %v", err)
	}
	return created
}

func seedModel(t *testing.T, s *Service, artifact *string) *domainml.Model {
	t.Helper()
	m := &domainml.Model{
		Name:        "churn-predictor-" + uuid.NewString(),
		Version:     1,
		ModelType:   "random_forest",
		ArtifactURI: artifact,
	}
	created, err := s.Models.Create(dbctx.Background(context.Background()), m)
	if err != nil {
		t.Fatalf("seed model: %v", err)
	}
	return created
}

func apiCode(t *testing.T, err error) string {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apierr.Error, got %T (%v)", err, err)
	}
	return ae.Code
}

func TestSubmitTraining(t *testing.T) {
	svc, brk := newTestService(t)
	seedModelType(t, svc, "random_forest", true)

	t.Run("dataset not found", func(t *testing.T) {
		_, err := svc.SubmitTraining(context.Background(), TrainRequest{
			DatasetID:      uuid.New(),
			FeatureColumns: []string{"a"},
			TargetColumn:   "y",
			ModelType:      "random_forest",
			ModelName:      "m",
		})
		if err == nil || apiCode(t, err) != CodeNotFound {
			t.Fatalf("expected not_found, got %v", err)
		}
	})

	t.Run("dataset not ready", func(t *testing.T) {
		ds := seedDataset(t, svc, domainml.DatasetPending)
		_, err := svc.SubmitTraining(context.Background(), TrainRequest{
			DatasetID:      ds.ID,
			FeatureColumns: []string{"a"},
			TargetColumn:   "y",
			ModelType:      "random_forest",
			ModelName:      "m",
		})
		if err == nil || apiCode(t, err) != CodeConflict {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("unimplemented model type", func(t *testing.T) {
		ds := seedDataset(t, svc, domainml.DatasetReady)
		_, err := svc.SubmitTraining(context.Background(), TrainRequest{
			DatasetID:      ds.ID,
			FeatureColumns: []string{"a"},
			TargetColumn:   "y",
			ModelType:      "unknown_type",
			ModelName:      "m",
		})
		if err == nil || apiCode(t, err) != CodeValidation {
			t.Fatalf("expected validation_error, got %v", err)
		}
	})

	t.Run("happy path submits through broker", func(t *testing.T) {
		ds := seedDataset(t, svc, domainml.DatasetReady)
		job, err := svc.SubmitTraining(context.Background(), TrainRequest{
			DatasetID:      ds.ID,
			FeatureColumns: []string{"a", "b"},
			TargetColumn:   "y",
			ModelType:      "random_forest",
			ModelName:      "m",
		})
		if err != nil {
			t.Fatalf("SubmitTraining: %v", err)
		}
		if job.Kind != domainjobs.KindTraining {
			t.Fatalf("expected KindTraining, got %s", job.Kind)
		}
		if job.DatasetID == nil || *job.DatasetID != ds.ID {
			t.Fatalf("expected job.DatasetID=%s, got %v", ds.ID, job.DatasetID)
		}
		if len(brk.submits) != 1 {
			t.Fatalf("expected 1 broker submission, got %d", len(brk.submits))
		}
	})
}

func TestSubmitSearchReuseRule(t *testing.T) {
	svc, _ := newTestService(t)
	seedModelType(t, svc, "random_forest", true)
	ds1 := seedDataset(t, svc, domainml.DatasetReady)
	ds2 := seedDataset(t, svc, domainml.DatasetReady)

	base := SearchRequest{
		DatasetID:      ds1.ID,
		ModelName:      "m",
		ModelType:      "random_forest",
		HPSpace:        []hpSuggestion{{ParamName: "n_estimators", SuggestType: "int", Low: 10, High: 100}},
		NTrials:        5,
		FeatureColumns: []string{"a"},
		TargetColumn:   "y",
		StudyName:      "study-1",
	}

	first, err := svc.SubmitSearch(context.Background(), base)
	if err != nil {
		t.Fatalf("first SubmitSearch: %v", err)
	}
	if first.StudyName == nil || *first.StudyName != "study-1" {
		t.Fatalf("expected study name persisted, got %v", first.StudyName)
	}

	t.Run("rejects without continue_if_exists", func(t *testing.T) {
		_, err := svc.SubmitSearch(context.Background(), base)
		if err == nil || apiCode(t, err) != CodeConflict {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("rejects mismatched dataset even with continue_if_exists", func(t *testing.T) {
		req := base
		req.DatasetID = ds2.ID
		req.ContinueIfExists = true
		_, err := svc.SubmitSearch(context.Background(), req)
		if err == nil || apiCode(t, err) != CodeConflict {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("accepts matching dataset and model_type with continue_if_exists", func(t *testing.T) {
		req := base
		req.ContinueIfExists = true
		job, err := svc.SubmitSearch(context.Background(), req)
		if err != nil {
			t.Fatalf("SubmitSearch: %v", err)
		}
		if job.Kind != domainjobs.KindHPSearch {
			t.Fatalf("expected KindHPSearch, got %s", job.Kind)
		}
	})
}

func TestSubmitInference(t *testing.T) {
	svc, _ := newTestService(t)
	repo := seedRepository(t, svc)

	t.Run("model without artifact is a conflict", func(t *testing.T) {
		m := seedModel(t, svc, nil)
		_, err := svc.SubmitInference(context.Background(), InferRequest{
			ModelID:      m.ID,
			RepositoryID: repo.ID,
			CommitHash:   "abc123",
		})
		if err == nil || apiCode(t, err) != CodeConflict {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("unknown repository is not found", func(t *testing.T) {
		uri := "gs://bucket/model.bin"
		m := seedModel(t, svc, &uri)
		_, err := svc.SubmitInference(context.Background(), InferRequest{
			ModelID:      m.ID,
			RepositoryID: uuid.New(),
			CommitHash:   "abc123",
		})
		if err == nil || apiCode(t, err) != CodeNotFound {
			t.Fatalf("expected not_found, got %v", err)
		}
	})

	t.Run("happy path", func(t *testing.T) {
		uri := "gs://bucket/model.bin"
		m := seedModel(t, svc, &uri)
		job, err := svc.SubmitInference(context.Background(), InferRequest{
			ModelID:      m.ID,
			RepositoryID: repo.ID,
			CommitHash:   "abc123",
		})
		if err != nil {
			t.Fatalf("SubmitInference: %v", err)
		}
		if job.Kind != domainjobs.KindInference || job.ModelID == nil || *job.ModelID != m.ID {
			t.Fatalf("unexpected job: %+v", job)
		}
	})
}

func TestSubmitExplanationOrchestrationRequiresSuccessfulInference(t *testing.T) {
	svc, brk := newTestService(t)
	repo := seedRepository(t, svc)
	uri := "gs://bucket/model.bin"
	m := seedModel(t, svc, &uri)

	inf, err := svc.SubmitInference(context.Background(), InferRequest{
		ModelID:      m.ID,
		RepositoryID: repo.ID,
		CommitHash:   "abc123",
	})
	if err != nil {
		t.Fatalf("SubmitInference: %v", err)
	}

	t.Run("rejects while still pending", func(t *testing.T) {
		_, err := svc.SubmitExplanationOrchestration(context.Background(), inf.ID)
		if err == nil || apiCode(t, err) != CodeConflict {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("accepts once succeeded", func(t *testing.T) {
		ok, err := svc.Jobs.TransitionStatus(dbctx.Background(context.Background()), inf.ID, domainjobs.StatusPending, map[string]interface{}{
			"status": domainjobs.StatusSuccess,
		})
		if err != nil || !ok {
			t.Fatalf("TransitionStatus: ok=%v err=%v", ok, err)
		}
		job, err := svc.SubmitExplanationOrchestration(context.Background(), inf.ID)
		if err != nil {
			t.Fatalf("SubmitExplanationOrchestration: %v", err)
		}
		if job.Kind != domainjobs.KindExplanationOrch || job.InferenceJobID == nil || *job.InferenceJobID != inf.ID {
			t.Fatalf("unexpected job: %+v", job)
		}
		if len(brk.submits) != 2 {
			t.Fatalf("expected 2 broker submissions, got %d", len(brk.submits))
		}
	})
}

func TestSubmitDatasetGenerationRollsBackOnSubmitFailure(t *testing.T) {
	svc, brk := newTestService(t)
	repo := seedRepository(t, svc)
	brk.failAll = errors.New("temporal unavailable")

	ds, job, err := svc.SubmitDatasetGeneration(context.Background(), repo.ID, GenerateDatasetRequest{
		FeatureColumns: []string{"a"},
		TargetColumn:   "y",
	})
	if err == nil {
		t.Fatalf("expected submit failure to propagate")
	}
	if job != nil {
		t.Fatalf("expected nil job on failure, got %+v", job)
	}
	if ds == nil {
		t.Fatalf("expected the created dataset row back even on failure")
	}

	reloaded, err := svc.Datasets.GetByID(dbctx.Background(context.Background()), ds.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != domainml.DatasetFailed {
		t.Fatalf("expected dataset rolled back to failed, got %s", reloaded.Status)
	}
}

func TestSubmitDatasetGenerationValidatesCapabilities(t *testing.T) {
	svc, _ := newTestService(t)
	repo := seedRepository(t, svc)

	_, _, err := svc.SubmitDatasetGeneration(context.Background(), repo.ID, GenerateDatasetRequest{
		FeatureColumns: []string{"a"},
		TargetColumn:   "y",
		CleaningRules:  map[string]map[string]any{"drop_nulls": {}},
	})
	if err == nil || apiCode(t, err) != CodeValidation {
		t.Fatalf("expected validation_error for unregistered cleaning rule, got %v", err)
	}
}

func TestTaskAndRevoke(t *testing.T) {
	svc, _ := newTestService(t)
	seedModelType(t, svc, "random_forest", true)
	ds := seedDataset(t, svc, domainml.DatasetReady)

	job, err := svc.SubmitTraining(context.Background(), TrainRequest{
		DatasetID:      ds.ID,
		FeatureColumns: []string{"a"},
		TargetColumn:   "y",
		ModelType:      "random_forest",
		ModelName:      "m",
	})
	if err != nil {
		t.Fatalf("SubmitTraining: %v", err)
	}

	taskID := "not-a-number"
	if _, err := svc.Task(context.Background(), taskID); err == nil || apiCode(t, err) != CodeNotFound {
		t.Fatalf("expected not_found for malformed task id, got %v", err)
	}

	status, err := svc.Task(context.Background(), intToTaskID(job.ID))
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if status.JobID != job.ID || status.Status != domainjobs.StatusPending {
		t.Fatalf("unexpected status: %+v", status)
	}

	if err := svc.Revoke(context.Background(), intToTaskID(job.ID), true, "user requested"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	reloaded, err := svc.Jobs.GetByID(dbctx.Background(context.Background()), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != domainjobs.StatusRevoked {
		t.Fatalf("expected revoked status, got %s", reloaded.Status)
	}
}

func intToTaskID(id int64) string {
	return strconv.FormatInt(id, 10)
}
