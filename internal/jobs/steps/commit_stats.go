package steps

import (
	"context"

	"github.com/ckguru/orchestrator/internal/jobs/engine"
)

// CalculateCommitStats derives changed_file_count (len(files_changed))
// and lines_per_file ((la+ld)/changed_file_count) per row.
type CalculateCommitStats struct{}

func (CalculateCommitStats) Name() string { return "CalculateCommitStats" }

func (CalculateCommitStats) Run(_ context.Context, pc *engine.Context, _ engine.Deps) error {
	if pc.Frame == nil || pc.Frame.NRows() == 0 {
		return nil
	}
	n := pc.Frame.NRows()

	var filesChanged []interface{}
	if hasColumn(pc.Frame, "files_changed") {
		filesChanged = columnValues(pc.Frame, "files_changed")
	} else {
		pc.AddWarning("CalculateCommitStats: missing 'files_changed' column, changed_file_count set to 0")
	}

	counts := make([]interface{}, n)
	for i := 0; i < n; i++ {
		count := 0
		if filesChanged != nil {
			switch list := filesChanged[i].(type) {
			case []interface{}:
				count = len(list)
			case []string:
				count = len(list)
			}
		}
		counts[i] = count
	}
	pc.Frame = appendColumn(pc.Frame, "changed_file_count", counts)

	haveLines := hasColumn(pc.Frame, "la") && hasColumn(pc.Frame, "ld")
	var la, ld []interface{}
	if haveLines {
		la = columnValues(pc.Frame, "la")
		ld = columnValues(pc.Frame, "ld")
	} else {
		pc.AddWarning("CalculateCommitStats: missing 'la'/'ld' columns, lines_per_file set to 0")
	}

	perFile := make([]interface{}, n)
	for i := 0; i < n; i++ {
		if !haveLines {
			perFile[i] = float64(0)
			continue
		}
		laV, _ := asFloatVal(la[i])
		ldV, _ := asFloatVal(ld[i])
		denom, _ := asFloatVal(counts[i])
		if denom == 0 {
			denom = 1
		}
		perFile[i] = (laV + ldV) / denom
	}
	pc.Frame = appendColumn(pc.Frame, "lines_per_file", perFile)
	return nil
}
