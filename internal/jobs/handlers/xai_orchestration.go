package handlers

import (
	"errors"

	"gorm.io/gorm"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"

	"github.com/ckguru/orchestrator/internal/broker"
	mlrepo "github.com/ckguru/orchestrator/internal/data/repos/ml"
	"github.com/ckguru/orchestrator/internal/jobs/jobserr"
	"github.com/ckguru/orchestrator/internal/jobs/modeltype"
	"github.com/ckguru/orchestrator/internal/jobs/runtime"
	"github.com/ckguru/orchestrator/internal/jobs/xaitype"
)

// ExplanationOrchestrationHandler implements the Explanation
// Orchestration Handler: once an inference job succeeds, this fans out
// one pending xai_result Job per supported XAI type and dispatches each
// as its own workflow, rather than computing every explanation inline
// -- so one slow/failing XAI type never blocks the others and each gets
// its own retry/cancel lifecycle. Uses rc.Repo (the same jobs.JobRepo
// the runtime.Context already carries) rather than a separate injected
// repo, since every operation here -- loading the inference job, the
// idempotent find-or-create of each xai_result row, marking failed
// dispatches -- is already on that interface.
type ExplanationOrchestrationHandler struct {
	Models    mlrepo.ModelRepo
	ModelType *modeltype.Registry
	Broker    *broker.Broker
}

func (h *ExplanationOrchestrationHandler) Kind() domainjobs.Kind {
	return domainjobs.KindExplanationOrch
}

func (h *ExplanationOrchestrationHandler) Run(rc *runtime.Context) error {
	if rc.Job.InferenceJobID == nil {
		h.fail(rc, jobserr.Validation("missing inference_job_id"))
		return nil
	}
	inferenceJob, err := rc.Repo.GetByID(dbctxFor(rc.Ctx), *rc.Job.InferenceJobID)
	if err != nil {
		h.fail(rc, jobserr.Dependency("load inference job %d: %v", *rc.Job.InferenceJobID, err))
		return nil
	}
	if inferenceJob.Status != domainjobs.StatusSuccess {
		h.fail(rc, jobserr.Dependency("inference job %d not successful (status=%s)", inferenceJob.ID, inferenceJob.Status))
		return nil
	}
	if inferenceJob.ModelID == nil {
		h.fail(rc, jobserr.Dependency("inference job %d has no model_id", inferenceJob.ID))
		return nil
	}

	model, err := h.Models.GetByID(dbctxFor(rc.Ctx), *inferenceJob.ModelID)
	if err != nil {
		h.fail(rc, jobserr.Dependency("load model %s: %v", *inferenceJob.ModelID, err))
		return nil
	}

	types := append([]string{}, xaitype.AlwaysApplicable...)
	if mt, ok := h.ModelType.Get(model.ModelType); ok && mt.IsTreeBased() {
		types = append(types, xaitype.TypeDecisionPath)
	}

	var created []int64
	for _, xaiType := range types {
		xaiType := xaiType
		existing, err := rc.Repo.GetByXAIPair(dbctxFor(rc.Ctx), inferenceJob.ID, xaiType)
		if err == nil && existing != nil {
			continue // already created (idempotent retry of this Handler)
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			h.fail(rc, jobserr.Dependency("check existing xai_result (%s): %v", xaiType, err))
			return nil
		}

		row := &domainjobs.Job{
			Kind:           domainjobs.KindXAIResult,
			Status:         domainjobs.StatusPending,
			InferenceJobID: &inferenceJob.ID,
			XAIType:        &xaiType,
			ModelID:        inferenceJob.ModelID,
		}
		createdJob, err := rc.Repo.Create(dbctxFor(rc.Ctx), row)
		if err != nil {
			h.fail(rc, jobserr.Dependency("create xai_result row (%s): %v", xaiType, err))
			return nil
		}
		created = append(created, createdJob.ID)
	}

	var failed []int64
	for _, jobID := range created {
		if err := h.Broker.Dispatch(rc.Ctx, jobID); err != nil {
			failed = append(failed, jobID)
		}
	}
	for _, jobID := range failed {
		_ = rc.Repo.UpdateFields(dbctxFor(rc.Ctx), jobID, map[string]interface{}{
			"status":         domainjobs.StatusFailed,
			"status_message": "task dispatch failed",
		})
	}

	_, err = rc.Succeed(map[string]any{
		"dispatched_count":      len(created) - len(failed),
		"failed_dispatch_count": len(failed),
	})
	return err
}

func (h *ExplanationOrchestrationHandler) fail(rc *runtime.Context, err error) {
	_, _ = rc.Fail(truncate(err))
}
