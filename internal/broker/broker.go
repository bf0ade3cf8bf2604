// Package broker is the Submit/Revoke/Describe front door for job
// submission: it owns the single write that creates a
// Job row, starts the Temporal workflow that will execute it, and
// offers the dual cancellation path (Temporal CancelWorkflow/
// TerminateWorkflow plus a best-effort cancelbus signal) that a Job
// Handler observes at its next Step/batch boundary.
package broker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"

	"github.com/ckguru/orchestrator/internal/broker/cancelbus"
	"github.com/ckguru/orchestrator/internal/data/repos/jobs"
	"github.com/ckguru/orchestrator/internal/observability"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
	"github.com/ckguru/orchestrator/internal/platform/logger"
	"github.com/ckguru/orchestrator/internal/temporalx"
	"github.com/ckguru/orchestrator/internal/temporalx/jobrun"
)

// Description is the caller-facing view of a job's current state,
// combining the Job row with its Temporal workflow status where that
// workflow is still resolvable.
type Description struct {
	Job             *domainjobs.Job
	WorkflowStatus  string
	WorkflowRunning bool
}

// Broker starts the Temporal workflows that execute Job rows. Submit
// creates the row and starts its workflow; Dispatch starts the workflow
// for a row a caller created through JobRepo itself.
type Broker struct {
	log       *logger.Logger
	temporal  temporalsdkclient.Client
	jobs      jobs.JobRepo
	cancelBus cancelbus.Bus
}

func New(log *logger.Logger, temporal temporalsdkclient.Client, jobRepo jobs.JobRepo, cancelBus cancelbus.Bus) *Broker {
	return &Broker{
		log:       log.With("service", "Broker"),
		temporal:  temporal,
		jobs:      jobRepo,
		cancelBus: cancelBus,
	}
}

// Submit creates the Job row (status pending) and starts its Temporal
// workflow, using the new row's ID (decimal string) as WorkflowID so
// Describe/Revoke can always re-derive the workflow handle from the
// ID alone. If starting the workflow fails, the row is marked failed
// rather than left pending forever with nothing to ever claim it.
func (b *Broker) Submit(ctx context.Context, job *domainjobs.Job) (*domainjobs.Job, error) {
	if b == nil || b.temporal == nil {
		return nil, fmt.Errorf("broker: temporal client not configured")
	}
	job.Status = domainjobs.StatusPending

	created, err := b.jobs.Create(dbctx.Background(ctx), job)
	if err != nil {
		return nil, fmt.Errorf("broker: create job: %w", err)
	}

	cfg := temporalx.LoadConfig()
	workflowID := strconv.FormatInt(created.ID, 10)
	_, err = b.temporal.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: cfg.TaskQueue,
	}, jobrun.Workflow)
	if err != nil {
		updates := map[string]interface{}{"status_message": fmt.Sprintf("failed to start workflow: %v", err)}
		if _, terr := b.jobs.TransitionStatus(dbctx.Background(ctx), created.ID, domainjobs.StatusPending, mergeStatus(updates, domainjobs.StatusFailed)); terr != nil {
			b.log.Error("broker: failed to mark job failed after workflow start failure", "job_id", created.ID, "start_err", err, "transition_err", terr)
		}
		return nil, fmt.Errorf("broker: start workflow: %w", err)
	}
	created.BrokerTaskID = workflowID
	_ = b.jobs.UpdateFields(dbctx.Background(ctx), created.ID, map[string]interface{}{"broker_task_id": workflowID})

	if m := observability.Current(); m != nil {
		m.IncJobSubmitted(string(created.Kind))
	}
	return created, nil
}

// Dispatch starts the Temporal workflow for a Job row a caller already
// created directly through JobRepo (e.g. the Explanation Orchestration
// Handler's per-XAI-type pending rows) rather than through Submit.
// Kept separate from Submit so a Handler creating several rows inside
// one DB transaction can defer every workflow start until after that
// transaction commits.
func (b *Broker) Dispatch(ctx context.Context, jobID int64) error {
	if b == nil || b.temporal == nil {
		return fmt.Errorf("broker: temporal client not configured")
	}
	cfg := temporalx.LoadConfig()
	workflowID := strconv.FormatInt(jobID, 10)
	_, err := b.temporal.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: cfg.TaskQueue,
	}, jobrun.Workflow)
	if err != nil {
		return fmt.Errorf("broker: dispatch job %d: %w", jobID, err)
	}
	_ = b.jobs.UpdateFields(dbctx.Background(ctx), jobID, map[string]interface{}{"broker_task_id": workflowID})
	return nil
}

// Revoke requests cancellation of a running job. terminate=true forces
// an immediate TerminateWorkflow instead of the cooperative
// CancelWorkflow, for callers that need a hard stop rather than
// waiting on the Handler to observe cancellation at its next
// boundary. When a cancel bus is configured, its signal fires in parallel so a Handler
// polling IsCanceled sees the request even if it is between Temporal
// heartbeats.
func (b *Broker) Revoke(ctx context.Context, jobID int64, terminate bool, reason string) error {
	if b == nil || b.temporal == nil {
		return fmt.Errorf("broker: temporal client not configured")
	}
	workflowID := strconv.FormatInt(jobID, 10)

	if b.cancelBus != nil {
		if err := b.cancelBus.Cancel(ctx, jobID, reason); err != nil && b.log != nil {
			b.log.Warn("broker: cancelbus signal failed", "job_id", jobID, "error", err)
		}
	}

	if terminate {
		return b.temporal.TerminateWorkflow(ctx, workflowID, "", reason)
	}
	return b.temporal.CancelWorkflow(ctx, workflowID, "")
}

// Describe joins the Job row with its Temporal workflow's current
// execution status, where that workflow is still resolvable (old
// workflows may have aged out of Temporal's retention).
func (b *Broker) Describe(ctx context.Context, jobID int64) (*Description, error) {
	job, err := b.jobs.GetByID(dbctx.Background(ctx), jobID)
	if err != nil {
		return nil, fmt.Errorf("broker: get job: %w", err)
	}
	desc := &Description{Job: job}
	if b.temporal == nil {
		return desc, nil
	}

	workflowID := strconv.FormatInt(jobID, 10)
	descCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := b.temporal.DescribeWorkflowExecution(descCtx, workflowID, "")
	if err != nil {
		if b.log != nil {
			b.log.Debug("broker: describe workflow unavailable", "job_id", jobID, "error", err)
		}
		return desc, nil
	}
	if info := resp.GetWorkflowExecutionInfo(); info != nil {
		status := info.GetStatus()
		desc.WorkflowStatus = status.String()
		desc.WorkflowRunning = status == enums.WORKFLOW_EXECUTION_STATUS_RUNNING
	}
	return desc, nil
}

func mergeStatus(updates map[string]interface{}, status domainjobs.Status) map[string]interface{} {
	updates["status"] = status
	return updates
}
