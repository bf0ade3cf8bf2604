package controlplane

import (
	"fmt"
	"net/http"

	"github.com/ckguru/orchestrator/internal/platform/apierr"
)

// Submission-time errors share apierr.Error with the Job Handler
// boundary's jobserr.Kind (internal/jobs/jobserr) but carry their own
// status codes: a pre-flight check at the HTTP edge distinguishes
// "entity missing" (404) from "entity present but not usable" (409)
// the way jobserr's single Dependency kind (409 only, since a Handler
// never needs a 404) does not.
const (
	CodeNotFound   = "not_found"
	CodeValidation = "validation_error"
	CodeConflict   = "conflict"
)

func errNotFound(format string, args ...any) error {
	return apierr.New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func errValidation(format string, args ...any) error {
	return apierr.New(http.StatusBadRequest, CodeValidation, fmt.Errorf(format, args...))
}

func errConflict(format string, args ...any) error {
	return apierr.New(http.StatusConflict, CodeConflict, fmt.Errorf(format, args...))
}
