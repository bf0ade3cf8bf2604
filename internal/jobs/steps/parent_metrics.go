package steps

import (
	"context"
	"strings"

	"github.com/ckguru/orchestrator/internal/jobs/engine"
)

// GetParentCKMetrics joins each row with the CK metrics of its first
// parent commit at the same (file, class), using BatchSource's
// in-memory index rather than a per-batch query, since the whole
// repository's CK history is already loaded by BatchSource.
type GetParentCKMetrics struct {
	Source *BatchSource
}

func (GetParentCKMetrics) Name() string { return "GetParentCKMetrics" }

func (s *GetParentCKMetrics) Run(_ context.Context, pc *engine.Context, _ engine.Deps) error {
	if pc.Frame == nil || pc.Frame.NRows() == 0 {
		return nil
	}
	n := pc.Frame.NRows()

	if !hasColumns(pc.Frame, "parent_hashes", "file") {
		pc.AddWarning("GetParentCKMetrics: missing required columns, skipping parent lookup")
		for _, col := range ckMetricColumns {
			pc.Frame = appendColumn(pc.Frame, "parent_"+col, make([]interface{}, n))
		}
		found := make([]interface{}, n)
		for i := range found {
			found[i] = false
		}
		pc.Frame = appendColumn(pc.Frame, "_parent_metric_found", found)
		return nil
	}

	files := columnValues(pc.Frame, "file")
	parentHashes := columnValues(pc.Frame, "parent_hashes")
	var classes []interface{}
	switch {
	case hasColumn(pc.Frame, "class"):
		classes = columnValues(pc.Frame, "class")
	case hasColumn(pc.Frame, "class_name"):
		classes = columnValues(pc.Frame, "class_name")
	}

	found := make([]interface{}, n)
	perColumn := make(map[string][]interface{}, len(ckMetricColumns))
	for _, col := range ckMetricColumns {
		perColumn[col] = make([]interface{}, n)
	}

	for i := 0; i < n; i++ {
		file, _ := files[i].(string)
		var class string
		if classes != nil {
			class, _ = classes[i].(string)
		}
		parentHash := firstParentHash(parentHashes[i])

		var parent map[string]interface{}
		var ok bool
		if parentHash != "" {
			parent, ok = s.Source.LookupCK(parentHash, file, class)
		}
		found[i] = ok
		for _, col := range ckMetricColumns {
			if ok {
				perColumn[col][i] = parent[col]
			}
		}
	}

	for _, col := range ckMetricColumns {
		pc.Frame = appendColumn(pc.Frame, "parent_"+col, perColumn[col])
	}
	pc.Frame = appendColumn(pc.Frame, "_parent_metric_found", found)
	return nil
}

func firstParentHash(v interface{}) string {
	switch x := v.(type) {
	case []string:
		if len(x) > 0 {
			return x[0]
		}
	case []interface{}:
		if len(x) > 0 {
			if s, ok := x[0].(string); ok {
				return s
			}
		}
	case string:
		parts := strings.Fields(x)
		if len(parts) > 0 {
			return parts[0]
		}
	}
	return ""
}

// CalculateDeltaMetrics reduces each (col, parent_col) pair to
// d_col = col - parent_col. Deliberately does NOT drop
// "_parent_metric_found" -- DropMissingParents needs that flag to
// survive until it runs, and is what removes it.
type CalculateDeltaMetrics struct{}

func (CalculateDeltaMetrics) Name() string { return "CalculateDeltaMetrics" }

func (CalculateDeltaMetrics) Run(_ context.Context, pc *engine.Context, _ engine.Deps) error {
	if pc.Frame == nil || pc.Frame.NRows() == 0 {
		return nil
	}
	if !hasColumn(pc.Frame, "_parent_metric_found") {
		pc.AddWarning("CalculateDeltaMetrics: missing _parent_metric_found column, skipping")
		return nil
	}
	found := columnValues(pc.Frame, "_parent_metric_found")
	n := pc.Frame.NRows()

	for _, col := range ckMetricColumns {
		parentCol := "parent_" + col
		deltaCol := "d_" + col
		values := make([]interface{}, n)
		if hasColumn(pc.Frame, col) && hasColumn(pc.Frame, parentCol) {
			cur := columnValues(pc.Frame, col)
			par := columnValues(pc.Frame, parentCol)
			for i := 0; i < n; i++ {
				ok, _ := found[i].(bool)
				cv, cok := asFloatVal(cur[i])
				pv, pok := asFloatVal(par[i])
				if ok && cok && pok {
					values[i] = cv - pv
				}
			}
		}
		pc.Frame = appendColumn(pc.Frame, deltaCol, values)
		if hasColumn(pc.Frame, parentCol) {
			pc.Frame = dropColumn(pc.Frame, parentCol)
		}
	}
	return nil
}

// DropMissingParents keeps only rows where a parent CK metric was
// found, then drops the now-spent flag column.
type DropMissingParents struct{}

func (DropMissingParents) Name() string { return "DropMissingParents" }

func (DropMissingParents) Run(_ context.Context, pc *engine.Context, _ engine.Deps) error {
	if pc.Frame == nil || pc.Frame.NRows() == 0 {
		return nil
	}
	if !hasColumn(pc.Frame, "_parent_metric_found") {
		pc.AddWarning("DropMissingParents: _parent_metric_found column not present, nothing to drop")
		return nil
	}
	df, err := filterFrameRows(pc.Frame, func(row map[string]interface{}) bool {
		ok, _ := row["_parent_metric_found"].(bool)
		return ok
	})
	if err != nil {
		return err
	}
	pc.Frame = dropColumn(df, "_parent_metric_found")
	return nil
}
