package jobrun

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"

	"github.com/ckguru/orchestrator/internal/broker/cancelbus"
	"github.com/ckguru/orchestrator/internal/data/repos/jobs"
	jobrt "github.com/ckguru/orchestrator/internal/jobs/runtime"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
	"github.com/ckguru/orchestrator/internal/platform/logger"

	"go.temporal.io/sdk/activity"
)

// Activities wires the single activity a job_run workflow executes:
// load the row, resolve its Handler by Kind, build a runtime.Context,
// and run it once to completion.
type Activities struct {
	Log       *logger.Logger
	DB        *gorm.DB
	Jobs      jobs.JobRepo
	Events    jobs.JobEventRepo
	Registry  *jobrt.Registry
	CancelBus cancelbus.Bus
}

// Run dispatches jobID to its registered Handler. Any error returned
// once the job is loaded and claimed has already been used to CAS the
// job row to failed by the Handler or by this function's own
// dispatch/panic guards; a configuration, load or claim error leaves
// the row unchanged. The activity's error
// return exists only so the workflow history records the outcome, not
// so Temporal retries (see workflow.go's RetryPolicy).
func (a *Activities) Run(ctx context.Context, jobID int64) error {
	if a == nil || a.DB == nil || a.Jobs == nil || a.Registry == nil {
		return fmt.Errorf("jobrun: activity not configured")
	}

	job, err := a.Jobs.GetByID(dbctx.Context{Ctx: ctx, Tx: a.DB}, jobID)
	if err != nil {
		return fmt.Errorf("jobrun: load job %d: %w", jobID, err)
	}

	if job.Status.IsTerminal() {
		return nil
	}

	stopHB := a.startHeartbeat(ctx, jobID)
	defer stopHB()

	if job.Status == domainjobs.StatusPending {
		ok, terr := a.Jobs.TransitionStatus(dbctx.Context{Ctx: ctx, Tx: a.DB}, jobID, domainjobs.StatusPending, map[string]interface{}{
			"status":     domainjobs.StatusRunning,
			"started_at": time.Now(),
		})
		if terr != nil {
			return fmt.Errorf("jobrun: claim job %d: %w", jobID, terr)
		}
		if !ok {
			// Lost the race (e.g. already revoked) -- nothing to run.
			return nil
		}
		job.Status = domainjobs.StatusRunning
	}

	h, ok := a.Registry.Get(job.Kind)
	rc := jobrt.NewContext(ctx, a.DB, job, a.Jobs, a.CancelBus).WithEvents(a.Events)
	if !ok {
		_, _ = rc.Fail(fmt.Sprintf("no handler registered for kind=%s", job.Kind))
		return fmt.Errorf("jobrun: no handler registered for kind=%s", job.Kind)
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if a.Log != nil {
					a.Log.Error("job handler panic", "job_id", jobID, "kind", job.Kind, "panic", r)
				}
				_, _ = rc.Fail("panic: unexpected error")
				runErr = fmt.Errorf("jobrun: handler panic: %v", r)
			}
		}()
		runErr = h.Run(rc)
	}()

	if runErr != nil {
		// Handlers call Fail/Succeed/Revoke themselves via the six-step
		// template; this is the safety net for a Handler that returned
		// an error without CASing the row.
		if job.Status == domainjobs.StatusRunning {
			_, _ = rc.Fail(runErr.Error())
		}
		return runErr
	}
	return nil
}

// startHeartbeat records both a Temporal activity heartbeat (so a
// worker crash is detected well within HeartbeatTimeout) and a DB
// touch (so JobRepo.ClaimNextPending's stale-running reclaim doesn't
// treat a healthy long-running job as abandoned).
func (a *Activities) startHeartbeat(ctx context.Context, jobID int64) func() {
	done := make(chan struct{})
	go func() {
		temporalHB := time.NewTicker(10 * time.Second)
		defer temporalHB.Stop()
		dbHB := time.NewTicker(30 * time.Second)
		defer dbHB.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-temporalHB.C:
				activity.RecordHeartbeat(ctx)
			case <-dbHB.C:
				if a == nil || a.Jobs == nil {
					continue
				}
				_ = a.Jobs.Heartbeat(dbctx.Context{Ctx: ctx, Tx: a.DB}, jobID)
			}
		}
	}()
	return func() { close(done) }
}
