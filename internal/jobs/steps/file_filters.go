package steps

import (
	"context"
	"strings"

	"github.com/ckguru/orchestrator/internal/jobs/engine"
)

// ApplyFileFilters keeps only rows whose file path is a non-test,
// non-example, non-package-info .java file.
type ApplyFileFilters struct{}

func (ApplyFileFilters) Name() string { return "ApplyFileFilters" }

func (ApplyFileFilters) Run(_ context.Context, pc *engine.Context, _ engine.Deps) error {
	if pc.Frame == nil || pc.Frame.NRows() == 0 {
		return nil
	}
	if !hasColumn(pc.Frame, "file") {
		pc.AddWarning("ApplyFileFilters: missing 'file' column, skipping")
		return nil
	}
	df, err := filterFrameRows(pc.Frame, func(row map[string]interface{}) bool {
		file, _ := row["file"].(string)
		lower := strings.ToLower(file)
		return strings.HasSuffix(lower, ".java") &&
			!strings.HasSuffix(lower, "package-info.java") &&
			!strings.Contains(lower, "test") &&
			!strings.Contains(lower, "example")
	})
	if err != nil {
		return err
	}
	pc.Frame = df
	return nil
}
