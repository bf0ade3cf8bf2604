package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	domainvcs "github.com/ckguru/orchestrator/internal/domain/vcs"

	vcsrepo "github.com/ckguru/orchestrator/internal/data/repos/vcs"

	"github.com/ckguru/orchestrator/internal/jobs/commitanalysis"
	"github.com/ckguru/orchestrator/internal/jobs/jobserr"
	"github.com/ckguru/orchestrator/internal/jobs/runtime"
)

// commitAnalysisTimeout hard-limits time spent analyzing a single
// commit, the Go analogue of ingest_chunks.go's per-file FileTimeout.
const commitAnalysisTimeout = 10 * time.Minute

// CommitIngestionConfig is the decoded shape of a commit_ingestion
// Job's Config blob.
type CommitIngestionConfig struct {
	CommitHash string `json:"commit_hash"`
}

// CommitIngestionHandler implements the Commit-Ingestion Handler (spec
// section 4.3): it drives the injected commitanalysis.Analyzer
// collaborator for one (repository, commit) pair and persists its
// result as Commit Guru / CK metric rows plus a CommitDetails record,
// advancing CommitDetails.IngestionStatus through its sub-state
// machine (not_ingested -> in_progress -> complete|failed), grounded
// on ingest_chunks.go's per-item progress-report/timeout/idempotency
// shape.
type CommitIngestionHandler struct {
	Repositories vcsrepo.RepositoryRepo
	Metrics      vcsrepo.CommitMetricsRepo
	Analyzer     commitanalysis.Analyzer
}

func (h *CommitIngestionHandler) Kind() domainjobs.Kind { return domainjobs.KindCommitIngestion }

func (h *CommitIngestionHandler) Run(rc *runtime.Context) error {
	if rc.Job.RepositoryID == nil {
		h.fail(rc, jobserr.Validation("missing repository_id"))
		return nil
	}
	var cfg CommitIngestionConfig
	if err := jsonDecode(rc.Job.Config, &cfg); err != nil || cfg.CommitHash == "" {
		h.fail(rc, jobserr.Validation("missing commit_hash"))
		return nil
	}
	repositoryID := *rc.Job.RepositoryID

	_ = rc.Progress("loading repository")
	repo, err := h.Repositories.GetByID(dbctxFor(rc.Ctx), repositoryID)
	if err != nil {
		h.fail(rc, jobserr.Dependency("load repository %s: %v", repositoryID, err))
		return nil
	}

	// Idempotency guard: a re-delivered ingestion job for a commit
	// already complete must not repeat the analysis.
	if existing, getErr := h.Metrics.GetCommitDetails(dbctxFor(rc.Ctx), repositoryID, cfg.CommitHash); getErr == nil &&
		existing != nil && existing.IngestionStatus == domainvcs.IngestionComplete {
		_, err := rc.Succeed(map[string]any{
			"repository_id":    repositoryID,
			"commit_hash":      cfg.CommitHash,
			"already_complete": true,
		})
		return err
	}

	if err := h.markStatus(rc, repositoryID, cfg.CommitHash, domainvcs.IngestionInProgress, nil); err != nil {
		h.fail(rc, jobserr.Dependency("mark commit in_progress: %v", err))
		return nil
	}

	_ = rc.Progress("analyzing commit")
	analysisCtx, cancel := context.WithTimeout(rc.Ctx, commitAnalysisTimeout)
	defer cancel()
	result, err := h.Analyzer.Analyze(analysisCtx, repo.GitURL, cfg.CommitHash)
	if err != nil {
		h.failCommit(rc, repositoryID, cfg.CommitHash, jobserr.Dependency("analyze commit %s: %v", cfg.CommitHash, err))
		return nil
	}

	if rc.Canceled() {
		_ = h.markStatus(rc, repositoryID, cfg.CommitHash, domainvcs.IngestionFailed, nil)
		_, _ = rc.Revoke("canceled during commit analysis")
		return nil
	}

	_ = rc.Progress("persisting metrics")
	if err := h.persist(rc.Ctx, repositoryID, cfg.CommitHash, result); err != nil {
		h.failCommit(rc, repositoryID, cfg.CommitHash, jobserr.Dependency("persist commit metrics: %v", err))
		return nil
	}

	diffsJSON, err := marshalJSON(result.FileDiffs)
	if err != nil {
		h.failCommit(rc, repositoryID, cfg.CommitHash, jobserr.Dependency("encode file diffs: %v", err))
		return nil
	}
	if err := h.markStatus(rc, repositoryID, cfg.CommitHash, domainvcs.IngestionComplete, diffsJSON); err != nil {
		h.fail(rc, jobserr.Dependency("mark commit complete: %v", err))
		return nil
	}

	_, err = rc.Succeed(map[string]any{
		"repository_id": repositoryID,
		"commit_hash":   cfg.CommitHash,
		"classes":       len(result.Classes),
	})
	return err
}

// persist upserts the commit-level Commit Guru row and every per-class
// CK row the Analyzer returned.
func (h *CommitIngestionHandler) persist(ctx context.Context, repositoryID uuid.UUID, commitHash string, result *commitanalysis.Result) error {
	guruMetrics, err := marshalJSON(result.CommitGuruMetrics)
	if err != nil {
		return err
	}
	parents, err := marshalJSON(result.ParentHashes)
	if err != nil {
		return err
	}
	guruRow := &domainvcs.CommitGuruMetric{
		RepositoryID: repositoryID,
		CommitHash:   commitHash,
		ParentHashes: parents,
		AuthorDate:   result.AuthorDate,
		IsBugFix:     result.IsBugFix,
		Metrics:      guruMetrics,
	}
	if err := h.Metrics.UpsertCommitGuruMetrics(dbctxFor(ctx), []*domainvcs.CommitGuruMetric{guruRow}); err != nil {
		return err
	}

	if len(result.Classes) == 0 {
		return nil
	}
	ckRows := make([]*domainvcs.CKMetric, 0, len(result.Classes))
	for _, cls := range result.Classes {
		metricsJSON, err := marshalJSON(cls.Metrics)
		if err != nil {
			return err
		}
		ckRows = append(ckRows, &domainvcs.CKMetric{
			RepositoryID: repositoryID,
			CommitHash:   commitHash,
			FilePath:     cls.FilePath,
			ClassName:    cls.ClassName,
			Metrics:      metricsJSON,
		})
	}
	return h.Metrics.UpsertCKMetrics(dbctxFor(ctx), ckRows)
}

func (h *CommitIngestionHandler) markStatus(rc *runtime.Context, repositoryID uuid.UUID, commitHash string, status domainvcs.IngestionStatus, fileDiffs []byte) error {
	return h.Metrics.UpsertCommitDetails(dbctxFor(rc.Ctx), &domainvcs.CommitDetails{
		RepositoryID:    repositoryID,
		CommitHash:      commitHash,
		IngestionStatus: status,
		TaskID:          rc.Job.BrokerTaskID,
		FileDiffs:       fileDiffs,
	})
}

func (h *CommitIngestionHandler) fail(rc *runtime.Context, err error) {
	_, _ = rc.Fail(truncate(err))
}

// failCommit marks both the Job and the CommitDetails row failed --
// mirroring DatasetGenerationHandler.failDataset: a commit stuck in
// in_progress after its job terminates would never surface a
// retryable not_ingested/failed state to a re-submission.
func (h *CommitIngestionHandler) failCommit(rc *runtime.Context, repositoryID uuid.UUID, commitHash string, err error) {
	h.fail(rc, err)
	_ = h.markStatus(rc, repositoryID, commitHash, domainvcs.IngestionFailed, nil)
}
