// Package runtime is the execution contract between the Temporal
// worker and Job Handler code: a Registry mapping domainjobs.Kind to
// a concrete Handler, and a Context that is the only sanctioned way
// a Handler reports progress or terminates a job row.
package runtime

import (
	"fmt"
	"sync"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
)

// Handler is the minimal contract every Job Handler implements. Kind()
// must exactly match the domainjobs.Kind values stored in job.kind;
// Run performs the handler's load-validate-execute-save template using
// ctx as the only mechanism to report progress/failure/success.
//
// Handlers must be idempotent under retry: a Handler re-run after a
// partial execution (broker redelivery, worker crash) must not double
// any side effect it already committed.
type Handler interface {
	Kind() domainjobs.Kind
	Run(ctx *Context) error
}

// Registry is a concurrency-safe map of Kind -> Handler, populated
// once at worker startup and read concurrently by every activity
// invocation thereafter. Duplicate registration for the same Kind is
// a wiring bug, not a legitimate runtime choice, so it fails fast.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domainjobs.Kind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domainjobs.Kind]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	k := h.Kind()
	if k == "" {
		return fmt.Errorf("handler Kind() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[k]; exists {
		return fmt.Errorf("handler already registered for kind=%s", k)
	}
	r.handlers[k] = h
	return nil
}

// Get retrieves the handler responsible for kind. A miss is treated
// by the caller as a fatal job error -- it indicates a deployment or
// wiring issue, not a retryable condition.
func (r *Registry) Get(kind domainjobs.Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}
