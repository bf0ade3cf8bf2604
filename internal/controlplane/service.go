// Package controlplane is the Submit/Status/Revoke/Dashboard front
// door HTTP handlers call into: it owns the
// cross-entity validation a submission must pass before the broker
// ever creates a row, while Job row submission and every workflow start
// go through internal/broker.
package controlplane

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	domainml "github.com/ckguru/orchestrator/internal/domain/ml"
	domainregistry "github.com/ckguru/orchestrator/internal/domain/registry"
	domainvcs "github.com/ckguru/orchestrator/internal/domain/vcs"

	"github.com/ckguru/orchestrator/internal/data/repos"
	"github.com/ckguru/orchestrator/internal/jobs/handlers"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

// jobBroker is the subset of *internal/broker.Broker this package
// calls through; a narrow interface here (rather than the concrete
// type) keeps Service's collaborator swappable in tests without
// standing up a real Temporal client.
type jobBroker interface {
	Submit(ctx context.Context, job *domainjobs.Job) (*domainjobs.Job, error)
	Revoke(ctx context.Context, jobID int64, terminate bool, reason string) error
}

// Service is the aggregation point every HTTP handler in
// internal/http/handlers calls through -- no handler touches a repo
// or the broker directly.
type Service struct {
	Broker jobBroker

	Jobs          repos.JobRepo
	JobEvents     repos.JobEventRepo
	Models        repos.ModelRepo
	Datasets      repos.DatasetRepo
	Repositories  repos.RepositoryRepo
	CommitMetrics repos.CommitMetricsRepo

	CleaningRegistry         repos.EntryRepo
	FeatureSelectionRegistry repos.EntryRepo
	ModelTypeRegistry        repos.EntryRepo
}

func background(ctx context.Context) dbctx.Context { return dbctx.Background(ctx) }

// SubmitTraining validates a training submission's cross-entity checks
// (the dataset must be ready) and hands the pending row to the broker.
func (s *Service) SubmitTraining(ctx context.Context, req TrainRequest) (*domainjobs.Job, error) {
	ds, err := s.Datasets.GetByID(background(ctx), req.DatasetID)
	if err != nil {
		return nil, errNotFound("dataset %s not found", req.DatasetID)
	}
	if ds.Status != domainml.DatasetReady {
		return nil, errConflict("dataset %s is not ready (status=%s)", req.DatasetID, ds.Status)
	}
	if err := s.requireImplemented(ctx, s.ModelTypeRegistry, req.ModelType); err != nil {
		return nil, err
	}

	cfg := handlers.TrainingConfig{
		DatasetID:       req.DatasetID,
		FeatureColumns:  req.FeatureColumns,
		TargetColumn:    req.TargetColumn,
		ModelType:       req.ModelType,
		ModelName:       req.ModelName,
		Hyperparameters: req.Hyperparameters,
		TestSize:        req.TestSize,
	}
	cfgJSON, err := marshalJSON(cfg)
	if err != nil {
		return nil, errValidation("encode training config: %v", err)
	}

	job := &domainjobs.Job{
		Kind:      domainjobs.KindTraining,
		DatasetID: &req.DatasetID,
		Config:    cfgJSON,
	}
	return s.submit(ctx, job)
}

// SubmitSearch implements the HP-search re-use rule: a
// second submission naming an existing study_name is only accepted
// when continue_if_exists=true AND the existing study's dataset and
// model_type match; otherwise it is a conflict.
func (s *Service) SubmitSearch(ctx context.Context, req SearchRequest) (*domainjobs.Job, error) {
	ds, err := s.Datasets.GetByID(background(ctx), req.DatasetID)
	if err != nil {
		return nil, errNotFound("dataset %s not found", req.DatasetID)
	}
	if ds.Status != domainml.DatasetReady {
		return nil, errConflict("dataset %s is not ready (status=%s)", req.DatasetID, ds.Status)
	}
	if err := s.requireImplemented(ctx, s.ModelTypeRegistry, req.ModelType); err != nil {
		return nil, err
	}

	existing, err := s.Jobs.FindByStudyName(background(ctx), req.StudyName)
	if err == nil && existing != nil {
		if !req.ContinueIfExists {
			return nil, errConflict("study_name %q already exists", req.StudyName)
		}
		if existing.DatasetID == nil || *existing.DatasetID != req.DatasetID {
			return nil, errConflict("study_name %q already attached to a different dataset", req.StudyName)
		}
		var existingCfg handlers.HPSearchConfig
		_ = jsonDecode(existing.Config, &existingCfg)
		if existingCfg.ModelType != req.ModelType {
			return nil, errConflict("study_name %q already attached to a different model_type", req.StudyName)
		}
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("controlplane: find study %q: %w", req.StudyName, err)
	}

	hpSpace := make([]handlers.HPSuggestion, 0, len(req.HPSpace))
	for _, sug := range req.HPSpace {
		hpSpace = append(hpSpace, handlers.HPSuggestion{
			ParamName:   sug.ParamName,
			SuggestType: sug.SuggestType,
			Low:         sug.Low,
			High:        sug.High,
			Step:        sug.Step,
			Log:         sug.Log,
			Choices:     sug.Choices,
		})
	}
	cfg := handlers.HPSearchConfig{
		ModelName:       req.ModelName,
		ModelType:       req.ModelType,
		HPSpace:         hpSpace,
		NTrials:         req.NTrials,
		ObjectiveMetric: req.ObjectiveMetric,
		CVFolds:         req.CVFolds,
		SaveBestModel:   req.SaveBestModel,
		FeatureColumns:  req.FeatureColumns,
		TargetColumn:    req.TargetColumn,
		RandomSeed:      req.RandomSeed,
	}
	cfgJSON, err := marshalJSON(cfg)
	if err != nil {
		return nil, errValidation("encode search config: %v", err)
	}

	studyName := req.StudyName
	job := &domainjobs.Job{
		Kind:      domainjobs.KindHPSearch,
		DatasetID: &req.DatasetID,
		StudyName: &studyName,
		Config:    cfgJSON,
	}
	return s.submit(ctx, job)
}

// SubmitInference validates the referenced model carries an artifact
// before publishing; a model with no artifact yet is a conflict, not a
// validation error.
func (s *Service) SubmitInference(ctx context.Context, req InferRequest) (*domainjobs.Job, error) {
	model, err := s.resolveModel(ctx, req.ModelID, req.ModelName)
	if err != nil {
		return nil, err
	}
	if model.ArtifactURI == nil {
		return nil, errConflict("model %s/%d has no artifact", model.Name, model.Version)
	}
	if _, err := s.Repositories.GetByID(background(ctx), req.RepositoryID); err != nil {
		return nil, errNotFound("repository %s not found", req.RepositoryID)
	}

	refJSON, err := marshalJSON(map[string]any{
		"repo_id":     req.RepositoryID,
		"commit_hash": req.CommitHash,
	})
	if err != nil {
		return nil, errValidation("encode input_reference: %v", err)
	}

	modelID := model.ID
	job := &domainjobs.Job{
		Kind:           domainjobs.KindInference,
		ModelID:        &modelID,
		InputReference: refJSON,
	}
	return s.submit(ctx, job)
}

// SubmitExplanationOrchestration queues the fan-out job that, once an
// inference job has already succeeded, dispatches one xai_result job
// per supported XAI type.
func (s *Service) SubmitExplanationOrchestration(ctx context.Context, inferenceJobID int64) (*domainjobs.Job, error) {
	inf, err := s.Jobs.GetByID(background(ctx), inferenceJobID)
	if err != nil {
		return nil, errNotFound("inference job %d not found", inferenceJobID)
	}
	if inf.Kind != domainjobs.KindInference {
		return nil, errValidation("job %d is not an inference job", inferenceJobID)
	}
	if inf.Status != domainjobs.StatusSuccess {
		return nil, errConflict("inference job %d has not succeeded (status=%s)", inferenceJobID, inf.Status)
	}
	job := &domainjobs.Job{
		Kind:           domainjobs.KindExplanationOrch,
		InferenceJobID: &inferenceJobID,
	}
	return s.submit(ctx, job)
}

// SubmitCommitIngestion queues one commit_ingestion job for a single
// (repository, commit) pair.
func (s *Service) SubmitCommitIngestion(ctx context.Context, repositoryID uuid.UUID, commitHash string) (*domainjobs.Job, error) {
	if _, err := s.Repositories.GetByID(background(ctx), repositoryID); err != nil {
		return nil, errNotFound("repository %s not found", repositoryID)
	}
	cfgJSON, err := marshalJSON(handlers.CommitIngestionConfig{CommitHash: commitHash})
	if err != nil {
		return nil, errValidation("encode commit_ingestion config: %v", err)
	}
	job := &domainjobs.Job{
		Kind:         domainjobs.KindCommitIngestion,
		RepositoryID: &repositoryID,
		Config:       cfgJSON,
	}
	return s.submit(ctx, job)
}

// SubmitDatasetGeneration creates the pending Dataset row the handler
// will populate, then queues the job that drives the Pipeline Engine
// over it.
func (s *Service) SubmitDatasetGeneration(ctx context.Context, repositoryID uuid.UUID, req GenerateDatasetRequest) (*domainml.Dataset, *domainjobs.Job, error) {
	if _, err := s.Repositories.GetByID(background(ctx), repositoryID); err != nil {
		return nil, nil, errNotFound("repository %s not found", repositoryID)
	}
	if req.FeatureSelection != nil && req.FeatureSelection.Algorithm != "" {
		if err := s.requireImplemented(ctx, s.FeatureSelectionRegistry, req.FeatureSelection.Algorithm); err != nil {
			return nil, nil, err
		}
	}
	for name := range req.CleaningRules {
		if err := s.requireImplemented(ctx, s.CleaningRegistry, name); err != nil {
			return nil, nil, err
		}
	}

	cfg := domainml.DatasetConfig{
		FeatureColumns: req.FeatureColumns,
		TargetColumn:   req.TargetColumn,
		CleaningRules:  req.CleaningRules,
		BatchSize:      req.BatchSize,
	}
	if req.FeatureSelection != nil {
		cfg.FeatureSelection = &domainml.FeatureSelectionConfig{
			Algorithm: req.FeatureSelection.Algorithm,
			Params:    req.FeatureSelection.Params,
		}
	}
	cfgJSON, err := marshalJSON(cfg)
	if err != nil {
		return nil, nil, errValidation("encode dataset config: %v", err)
	}

	ds, err := s.Datasets.Create(background(ctx), &domainml.Dataset{
		RepositoryID: repositoryID,
		Status:       domainml.DatasetPending,
		Config:       cfgJSON,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("controlplane: create dataset row: %w", err)
	}

	job, err := s.submit(ctx, &domainjobs.Job{
		Kind:         domainjobs.KindDatasetGenerate,
		DatasetID:    &ds.ID,
		RepositoryID: &repositoryID,
	})
	if err != nil {
		_ = s.Datasets.UpdateFields(background(ctx), ds.ID, map[string]interface{}{
			"status":         domainml.DatasetFailed,
			"status_message": "failed to queue dataset_generation job",
		})
		return ds, nil, err
	}
	return ds, job, nil
}

// submit is the shared tail of every Submit* method: hand the
// pending row to the broker, which owns the Create + workflow-start
// write.
func (s *Service) submit(ctx context.Context, job *domainjobs.Job) (*domainjobs.Job, error) {
	created, err := s.Broker.Submit(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("controlplane: submit %s job: %w", job.Kind, err)
	}
	return created, nil
}

// GetJob loads one job row by id, used by every GET /ml/.../:job_id
// endpoint.
func (s *Service) GetJob(ctx context.Context, jobID int64) (*domainjobs.Job, error) {
	job, err := s.Jobs.GetByID(background(ctx), jobID)
	if err != nil {
		return nil, errNotFound("job %d not found", jobID)
	}
	return job, nil
}

// ModelForJob resolves the Model row a completed training/hp_search
// job produced, for nesting in the response once the job succeeds.
func (s *Service) ModelForJob(ctx context.Context, job *domainjobs.Job) (*domainml.Model, bool) {
	if job == nil || job.Status != domainjobs.StatusSuccess {
		return nil, false
	}
	var result struct {
		ModelID uuid.UUID `json:"model_id"`
	}
	if err := jsonDecode(job.Result, &result); err != nil || result.ModelID == uuid.Nil {
		return nil, false
	}
	model, err := s.Models.GetByID(background(ctx), result.ModelID)
	if err != nil {
		return nil, false
	}
	return model, true
}

// TaskStatus is the GET /tasks/:task_id response shape.
type TaskStatus struct {
	TaskID        string            `json:"task_id"`
	JobID         int64             `json:"job_id"`
	Status        domainjobs.Status `json:"status"`
	Progress      int               `json:"progress"`
	StatusMessage string            `json:"status_message,omitempty"`
	Result        any               `json:"result,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// Task resolves task_id -- the broker_task_id column, which is always
// the job's decimal id -- back to a job row and its latest progress
// ledger entry. The Temporal workflow's own status is not consulted.
func (s *Service) Task(ctx context.Context, taskID string) (*TaskStatus, error) {
	jobID, err := parseJobID(taskID)
	if err != nil {
		return nil, errNotFound("task %q not found", taskID)
	}
	job, err := s.Jobs.GetByID(background(ctx), jobID)
	if err != nil {
		return nil, errNotFound("task %q not found", taskID)
	}

	out := &TaskStatus{
		TaskID:        taskID,
		JobID:         job.ID,
		Status:        job.Status,
		StatusMessage: job.StatusMessage,
	}
	if job.Status == domainjobs.StatusFailed {
		out.Error = job.StatusMessage
	}
	if job.Status == domainjobs.StatusSuccess {
		out.Progress = 100
		var result any
		if len(job.Result) > 0 {
			_ = jsonDecode(job.Result, &result)
		}
		out.Result = result
	}

	if s.JobEvents != nil {
		if ev, err := s.JobEvents.Latest(background(ctx), jobID); err == nil && ev != nil {
			out.Progress = ev.Progress
		}
	}
	return out, nil
}

// Revoke requests cancellation of task_id, mapping to the broker's
// dual cooperative/terminate cancellation path.
func (s *Service) Revoke(ctx context.Context, taskID string, terminate bool, reason string) error {
	jobID, err := parseJobID(taskID)
	if err != nil {
		return errNotFound("task %q not found", taskID)
	}
	if _, err := s.Jobs.GetByID(background(ctx), jobID); err != nil {
		return errNotFound("task %q not found", taskID)
	}
	if err := s.Broker.Revoke(ctx, jobID, terminate, reason); err != nil {
		return fmt.Errorf("controlplane: revoke job %d: %w", jobID, err)
	}
	if terminate {
		// Terminate is unilateral -- no Handler ever observes it and
		// self-transitions, so the control plane marks the row itself.
		_, _ = s.Jobs.TransitionStatus(background(ctx), jobID, domainjobs.StatusRunning, map[string]interface{}{
			"status":         domainjobs.StatusRevoked,
			"status_message": reason,
		})
		_, _ = s.Jobs.TransitionStatus(background(ctx), jobID, domainjobs.StatusPending, map[string]interface{}{
			"status":         domainjobs.StatusRevoked,
			"status_message": reason,
		})
	}
	return nil
}

// ListExplanations returns every xai_result job fanned out for one
// inference job.
func (s *Service) ListExplanations(ctx context.Context, inferenceJobID int64) ([]*domainjobs.Job, error) {
	return s.Jobs.ListByInferenceJob(background(ctx), inferenceJobID)
}

// GetExplanation loads a single xai_result job by id.
func (s *Service) GetExplanation(ctx context.Context, id int64) (*domainjobs.Job, error) {
	job, err := s.Jobs.GetByID(background(ctx), id)
	if err != nil || job.Kind != domainjobs.KindXAIResult {
		return nil, errNotFound("explanation %d not found", id)
	}
	return job, nil
}

// GetCommit implements GET /repositories/:id/commits/:hash: the full
// payload once ingestion is complete, a 202-shaped partial result
// while in progress, or an explicit not_ingested marker.
func (s *Service) GetCommit(ctx context.Context, repositoryID uuid.UUID, commitHash string) (*domainvcs.CommitDetails, *domainvcs.CommitGuruMetric, []*domainvcs.CKMetric, error) {
	details, err := s.CommitMetrics.GetCommitDetails(background(ctx), repositoryID, commitHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, nil
		}
		return nil, nil, nil, fmt.Errorf("controlplane: get commit details: %w", err)
	}
	if details.IngestionStatus != domainvcs.IngestionComplete {
		return details, nil, nil, nil
	}
	guru, err := s.CommitMetrics.GetCommitGuruMetric(background(ctx), repositoryID, commitHash)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil, fmt.Errorf("controlplane: get commit guru metric: %w", err)
	}
	ck, err := s.CommitMetrics.ListCKMetricsForCommit(background(ctx), repositoryID, commitHash)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("controlplane: list ck metrics: %w", err)
	}
	return details, guru, ck, nil
}

// ListRegistry surfaces one capability registry's implemented rows
// verbatim.
func (s *Service) ListRegistry(ctx context.Context, which repos.EntryRepo) ([]*domainregistry.Entry, error) {
	all, err := which.List(background(ctx))
	if err != nil {
		return nil, fmt.Errorf("controlplane: list registry: %w", err)
	}
	out := make([]*domainregistry.Entry, 0, len(all))
	for _, e := range all {
		if e.IsImplemented {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Service) requireImplemented(ctx context.Context, reg repos.EntryRepo, name string) error {
	if reg == nil || name == "" {
		return errValidation("missing capability name")
	}
	e, err := reg.Get(background(ctx), name)
	if err != nil || !e.IsImplemented {
		return errValidation("unsupported capability %q", name)
	}
	return nil
}

func (s *Service) resolveModel(ctx context.Context, modelID uuid.UUID, modelName string) (*domainml.Model, error) {
	if modelID != uuid.Nil {
		m, err := s.Models.GetByID(background(ctx), modelID)
		if err != nil {
			return nil, errNotFound("model %s not found", modelID)
		}
		return m, nil
	}
	if modelName == "" {
		return nil, errValidation("model_id or model_name required")
	}
	m, err := s.Models.GetLatestVersion(background(ctx), modelName)
	if err != nil {
		return nil, errNotFound("no usable version of model %q found", modelName)
	}
	return m, nil
}
