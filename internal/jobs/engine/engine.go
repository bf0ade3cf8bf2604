// Package engine is the Pipeline Engine (PE): a sequential Step
// executor sharing a single Context across a Strategy, built on
// internal/jobs/runtime's Context/Registry shape. It runs as a
// single-pass executor rather than a resumable multi-tick one, since no
// Job Handler in this module spans more than one broker tick.
package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rocketlaunchr/dataframe-go"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	"github.com/ckguru/orchestrator/internal/jobs/jobserr"
)

// Context is the record every Step reads from and writes to. It is
// never retained by a Step after Run returns -- Steps treat it as a
// borrowed mutable buffer, not a capability to hold onto.
type Context struct {
	Job    *domainjobs.Job
	Config map[string]any

	// Frame is the current tabular buffer. StreamAndProcessBatches and
	// ProcessGlobally both read and replace it; a Step downstream of
	// either sees only the frame as left by the last Step that ran.
	Frame *dataframe.DataFrame

	SelectedColumns []string
	Warnings        []string

	// Scratch is a free-form handoff slot for values one Step produces
	// and a later Step consumes without fitting Frame/Config/Warnings
	// (e.g. StreamAndProcessBatches leaving its collected per-batch
	// frames for ProcessGlobally's CombineBatches sub-step to read).
	Scratch map[string]any

	// Sentinel is an early-exit flag: once a Step sets it (e.g. the
	// frame became empty after cleaning), every later Step in the
	// Strategy must check it and no-op rather than operate on an
	// invalid buffer.
	Sentinel bool

	// Progress reports per-step completion as round(100*k/n); nil in
	// tests that don't care about progress plumbing.
	Progress func(stage string, pct int, msg string)
}

func (c *Context) AddWarning(w string) {
	if c == nil || w == "" {
		return
	}
	c.Warnings = append(c.Warnings, w)
}

func (c *Context) report(stage string, pct int, msg string) {
	if c == nil || c.Progress == nil {
		return
	}
	c.Progress(stage, pct, msg)
}

// Step is one unit of work in a Strategy. Name must be stable across
// versions -- it is what PipelineStep errors and progress messages
// identify the failing/running step by.
type Step interface {
	Name() string
	Run(ctx context.Context, pc *Context, deps Deps) error
}

// Strategy is an ordered list of Steps executed in sequence.
type Strategy []Step

// Deps is the per-step dependency bag a Provider resolves for a given
// Step/Context pair -- e.g. a BucketService for WriteOutput, a
// registry lookup for a cleaning rule Step.
type Deps map[string]any

type Provider interface {
	DependenciesFor(step Step, pc *Context) Deps
}

// RetryPolicy governs the bounded local retry a Step gets when it
// raises a jobserr.Transient error. Every other error kind propagates
// on the first attempt.
type RetryPolicy struct {
	MaxAttempts int           // default 3
	MinBackoff  time.Duration // default 500ms
	MaxBackoff  time.Duration // default 10s
	JitterFrac  float64       // default 0.20
}

func (r RetryPolicy) normalized() RetryPolicy {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.MinBackoff <= 0 {
		r.MinBackoff = 500 * time.Millisecond
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = 10 * time.Second
	}
	if r.JitterFrac <= 0 {
		r.JitterFrac = 0.20
	}
	return r
}

// Engine runs a Strategy against a Context, sequentially, reporting
// monotonic progress and applying the bounded local retry to
// jobserr.Transient failures.
type Engine struct {
	Provider Provider
	Retry    RetryPolicy

	lastProgress int
}

func NewEngine(provider Provider, retry RetryPolicy) *Engine {
	return &Engine{Provider: provider, Retry: retry.normalized()}
}

// Run executes every Step in strategy against pc in order. A Step
// error that is jobserr.Transient is retried up to Retry.MaxAttempts
// with jittered exponential backoff; any other error (or a Transient
// error that exhausts its attempts) re-raises immediately and stops
// the Strategy.
func (e *Engine) Run(ctx context.Context, strategy Strategy, pc *Context) error {
	if pc == nil {
		return fmt.Errorf("engine: nil context")
	}
	n := len(strategy)
	if n == 0 {
		return nil
	}
	for i, step := range strategy {
		if pc.Sentinel {
			continue
		}
		deps := Deps{}
		if e.Provider != nil {
			deps = e.Provider.DependenciesFor(step, pc)
		}
		if err := e.runStepWithRetry(ctx, step, pc, deps); err != nil {
			return jobserr.PipelineStep(step.Name(), err)
		}
		pct := int(math.Round(100 * float64(i+1) / float64(n)))
		e.setProgress(pc, step.Name(), pct, "completed "+step.Name())
	}
	return nil
}

func (e *Engine) runStepWithRetry(ctx context.Context, step Step, pc *Context, deps Deps) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		err := step.Run(ctx, pc, deps)
		if err == nil {
			return nil
		}
		lastErr = err
		if !jobserr.IsTransient(err) || attempt >= e.Retry.MaxAttempts {
			return lastErr
		}
		delay := computeBackoff(e.Retry, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// setProgress clamps pct so it never regresses across Steps, mirroring
// the deleted orchestrator engine's setProgress invariant.
func (e *Engine) setProgress(pc *Context, stage string, pct int, msg string) {
	if pct < e.lastProgress {
		pct = e.lastProgress
	} else {
		e.lastProgress = pct
	}
	pc.report(stage, pct, msg)
}

func computeBackoff(r RetryPolicy, attempt int) time.Duration {
	d := time.Duration(float64(r.MinBackoff) * math.Pow(2, float64(attempt-1)))
	if d > r.MaxBackoff {
		d = r.MaxBackoff
	}
	delta := float64(d) * r.JitterFrac
	low, high := float64(d)-delta, float64(d)+delta
	if low < 0 {
		low = 0
	}
	return time.Duration(low + rand.Float64()*(high-low))
}
