package steps

import (
	"context"
	"fmt"

	"github.com/ckguru/orchestrator/internal/jobs/engine"
)

// SelectFinalColumns projects the frame down to Config's feature and
// target columns. A missing configured column is a hard pipeline
// failure, not a warning, since WriteOutput has nothing meaningful to
// write without them.
type SelectFinalColumns struct{}

func (SelectFinalColumns) Name() string { return "SelectFinalColumns" }

func (SelectFinalColumns) Run(_ context.Context, pc *engine.Context, _ engine.Deps) error {
	if pc.Frame == nil || pc.Frame.NRows() == 0 {
		return fmt.Errorf("SelectFinalColumns: frame is empty, cannot select final columns")
	}

	// A prior FeatureSelection Step narrows pc.SelectedColumns; honor
	// that narrowed set when present instead of re-reading the
	// Dataset's full configured feature_columns.
	featureColsRaw := pc.SelectedColumns
	if len(featureColsRaw) == 0 {
		featureColsRaw, _ = pc.Config["feature_columns"].([]string)
	}
	if featureColsRaw == nil {
		if raw, ok := pc.Config["feature_columns"].([]interface{}); ok {
			for _, v := range raw {
				if s, ok := v.(string); ok {
					featureColsRaw = append(featureColsRaw, s)
				}
			}
		}
	}
	targetCol, _ := pc.Config["target_column"].(string)

	if len(featureColsRaw) == 0 {
		return fmt.Errorf("SelectFinalColumns: no feature columns configured")
	}
	if targetCol == "" {
		return fmt.Errorf("SelectFinalColumns: no target column configured")
	}

	final := append(append([]string{}, featureColsRaw...), targetCol)
	for _, col := range final {
		if !hasColumn(pc.Frame, col) {
			return fmt.Errorf("SelectFinalColumns: missing required column %q", col)
		}
	}

	n := pc.Frame.NRows()
	rows := make([]map[string]interface{}, n)
	names := pc.Frame.Names()
	for i := 0; i < n; i++ {
		rows[i] = rowAt(pc.Frame, names, i)
	}
	pc.Frame = framesFromRows(final, rows)
	pc.SelectedColumns = featureColsRaw
	return nil
}
