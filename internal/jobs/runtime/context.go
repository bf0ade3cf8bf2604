package runtime

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"

	"github.com/ckguru/orchestrator/internal/broker/cancelbus"
	"github.com/ckguru/orchestrator/internal/data/repos/jobs"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

// Context is the capability-scoped execution handle a Handler gets for
// a single job run. Every status transition of the job row goes
// through Fail/Succeed/Revoke, each a CAS guarded on the row's current
// status so a Handler racing a cancellation never clobbers a terminal
// state; Progress only advances status_message and updated_at.
// Handlers may still read and write other fields through Repo.
type Context struct {
	Ctx       context.Context
	DB        *gorm.DB
	Job       *domainjobs.Job
	Repo      jobs.JobRepo
	Events    jobs.JobEventRepo
	CancelBus cancelbus.Bus
}

func NewContext(ctx context.Context, db *gorm.DB, job *domainjobs.Job, repo jobs.JobRepo, bus cancelbus.Bus) *Context {
	return &Context{Ctx: ctx, DB: db, Job: job, Repo: repo, CancelBus: bus}
}

// WithEvents attaches the progress-ledger repo, returning the same
// Context for chaining at construction time.
func (c *Context) WithEvents(events jobs.JobEventRepo) *Context {
	if c != nil {
		c.Events = events
	}
	return c
}

// appendEvent best-effort records a ledger row; a failure to log the
// event must never fail the job transition it accompanies.
func (c *Context) appendEvent(kind domainjobs.JobEventKind, status domainjobs.Status, stage string, progress int, message string) {
	if c == nil || c.Events == nil || c.Job == nil {
		return
	}
	_ = c.Events.Append(dbctx.Context{Ctx: c.Ctx}, &domainjobs.JobEvent{
		JobID:    c.Job.ID,
		Kind:     kind,
		Status:   status,
		Stage:    stage,
		Progress: progress,
		Message:  message,
	})
}

// Canceled reports whether this job has been marked for cancellation,
// either through the cancel bus or a prior CAS to StatusRevoked already
// observed on the in-memory row. Handlers poll this at Step/batch
// boundaries rather than after every row write.
func (c *Context) Canceled() bool {
	if c == nil || c.Job == nil {
		return false
	}
	if c.Job.Status == domainjobs.StatusRevoked {
		return true
	}
	return c.CancelBus != nil && c.CancelBus.IsCanceled(c.Job.ID)
}

// Progress records a non-terminal heartbeat: status stays running, but
// status_message and updated_at advance so the broker's stale-running
// reclaim in ClaimNextPending never mistakes a live job for a dead one.
func (c *Context) Progress(message string) error {
	if c == nil || c.Job == nil || c.Repo == nil {
		return nil
	}
	now := time.Now()
	if err := c.Repo.UpdateFields(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, map[string]interface{}{
		"status_message": message,
		"updated_at":     now,
	}); err != nil {
		return err
	}
	c.Job.StatusMessage = message
	c.Job.UpdatedAt = now
	c.appendEvent(domainjobs.JobEventProgress, domainjobs.StatusRunning, message, 0, message)
	return nil
}

// Fail CASes the job from running to failed, recording msg and
// completed_at. A Handler that has already lost the race (job was
// revoked out from under it) gets ok=false and leaves the row alone.
func (c *Context) Fail(msg string) (bool, error) {
	ok, err := c.transition(domainjobs.StatusFailed, map[string]interface{}{
		"status_message": msg,
	})
	if ok {
		c.appendEvent(domainjobs.JobEventFailed, domainjobs.StatusFailed, "failed", 0, msg)
	}
	return ok, err
}

// Succeed CASes the job from running to success, persisting result as
// the row's JSON result column.
func (c *Context) Succeed(result any) (bool, error) {
	updates := map[string]interface{}{"status_message": ""}
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return false, err
		}
		updates["result"] = datatypes.JSON(b)
	}
	ok, err := c.transition(domainjobs.StatusSuccess, updates)
	if ok {
		c.appendEvent(domainjobs.JobEventSucceeded, domainjobs.StatusSuccess, "succeeded", 100, "")
	}
	return ok, err
}

// Revoke CASes the job from running to revoked. Unlike Fail/Succeed
// this is also legal from pending, since a job can be canceled before a
// worker ever claims it.
func (c *Context) Revoke(reason string) (bool, error) {
	if c == nil || c.Job == nil || c.Repo == nil {
		return false, nil
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":         domainjobs.StatusRevoked,
		"status_message": reason,
		"completed_at":   now,
	}
	for _, from := range []domainjobs.Status{domainjobs.StatusRunning, domainjobs.StatusPending} {
		ok, err := c.Repo.TransitionStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, from, updates)
		if err != nil {
			return false, err
		}
		if ok {
			c.Job.Status = domainjobs.StatusRevoked
			c.Job.StatusMessage = reason
			c.Job.CompletedAt = &now
			c.appendEvent(domainjobs.JobEventRevoked, domainjobs.StatusRevoked, "revoked", 0, reason)
			return true, nil
		}
	}
	return false, nil
}

func (c *Context) transition(to domainjobs.Status, updates map[string]interface{}) (bool, error) {
	if c == nil || c.Job == nil || c.Repo == nil {
		return false, nil
	}
	now := time.Now()
	updates["status"] = to
	updates["completed_at"] = now
	ok, err := c.Repo.TransitionStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, domainjobs.StatusRunning, updates)
	if err != nil || !ok {
		return ok, err
	}
	c.Job.Status = to
	c.Job.CompletedAt = &now
	if sm, ok := updates["status_message"].(string); ok {
		c.Job.StatusMessage = sm
	}
	if res, ok := updates["result"].(datatypes.JSON); ok {
		c.Job.Result = res
	}
	return true, nil
}
