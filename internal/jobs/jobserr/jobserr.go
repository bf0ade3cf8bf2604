// Package jobserr models the six abstract error kinds a job Handler
// or Pipeline Engine Step can raise, each a constructor over
// apierr.Error so the HTTP edge and the Handler boundary share one
// vocabulary instead of inventing parallel error types.
package jobserr

import (
	"fmt"
	"net/http"

	"github.com/ckguru/orchestrator/internal/platform/apierr"
)

const (
	CodeValidation   = "validation_error"
	CodeDependency   = "dependency_error"
	CodeTransient    = "transient_error"
	CodePipelineStep = "pipeline_step_error"
	CodeArtifact     = "artifact_error"
	CodeCancellation = "cancellation_error"
)

// Kind carries, alongside the wrapped apierr.Error, whether this error
// is terminal for the job row. Non-terminal (Transient) errors are
// eligible for a Handler's bounded local retry; every other kind
// propagates straight to a terminal CAS.
type Kind struct {
	*apiError
	Terminal bool
}

// apiError names the embedded field so it does not hide the promoted
// Error() method, which keeps *Kind an error.
type apiError = apierr.Error

func Validation(format string, args ...any) *Kind {
	return &Kind{
		apiError: apierr.New(http.StatusBadRequest, CodeValidation, fmt.Errorf(format, args...)),
		Terminal: true,
	}
}

func Dependency(format string, args ...any) *Kind {
	return &Kind{
		apiError: apierr.New(http.StatusConflict, CodeDependency, fmt.Errorf(format, args...)),
		Terminal: true,
	}
}

// Transient wraps a recoverable error -- a flaky read, a dropped
// connection -- eligible for bounded local retry before the Handler
// gives up and CASes the job row to failed.
func Transient(cause error) *Kind {
	return &Kind{
		apiError: apierr.New(http.StatusServiceUnavailable, CodeTransient, cause),
		Terminal: false,
	}
}

func PipelineStep(stepName string, cause error) *Kind {
	return &Kind{
		apiError: apierr.New(http.StatusUnprocessableEntity, CodePipelineStep, fmt.Errorf("step %s: %w", stepName, cause)),
		Terminal: true,
	}
}

func Artifact(uri string, cause error) *Kind {
	return &Kind{
		apiError: apierr.New(http.StatusBadGateway, CodeArtifact, fmt.Errorf("artifact %s: %w", uri, cause)),
		Terminal: true,
	}
}

func Cancellation(jobID int64) *Kind {
	return &Kind{
		apiError: apierr.New(http.StatusOK, CodeCancellation, fmt.Errorf("job %d canceled", jobID)),
		Terminal: true,
	}
}

// IsTransient reports whether err is a *Kind carrying CodeTransient,
// the only kind eligible for the bounded local retry.
func IsTransient(err error) bool {
	k, ok := err.(*Kind)
	return ok && k != nil && k.Code == CodeTransient
}

// IsCancellation reports whether err signals cooperative cancellation
// rather than a genuine failure -- the Handler boundary maps this to
// a `revoked` CAS, not `failed`.
func IsCancellation(err error) bool {
	k, ok := err.(*Kind)
	return ok && k != nil && k.Code == CodeCancellation
}
