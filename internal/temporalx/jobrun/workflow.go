package jobrun

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// temporalRetryPolicy disables Temporal's own activity retry: a Handler
// that returns an error has already exhausted its internal bounded
// retry (jobserr.Transient) and CASed the job row to a terminal state,
// so retrying the activity would just re-dispatch to a Handler that
// immediately no-ops against a non-running row.
var temporalRetryPolicy = temporal.RetryPolicy{MaximumAttempts: 1}

// Workflow is the Temporal workflow every job kind runs under. It
// executes ActivityName exactly once: the Job Handler template (JH) is
// a single-pass Engine.Run over its Steps, not a resumable multi-tick
// state machine, so there is no poll/continue-as-new loop here --
// Temporal's own activity heartbeat and CancelWorkflow cover liveness
// and cooperative cancellation respectively.
func Workflow(ctx workflow.Context) error {
	jobIDStr := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	jobID, err := strconv.ParseInt(jobIDStr, 10, 64)
	if err != nil || jobID <= 0 {
		return fmt.Errorf("jobrun: invalid workflow id %q", jobIDStr)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
		HeartbeatTimeout:    30 * time.Second,
		// Job-level retry is the bounded local retry a Handler applies
		// to jobserr.Transient errors itself; anything that reaches the
		// workflow boundary is already terminal, so Temporal must not
		// retry the activity again.
		RetryPolicy: &temporalRetryPolicy,
	})

	return workflow.ExecuteActivity(ctx, ActivityName, jobID).Get(ctx, nil)
}
