package cleaning

import (
	"context"
	"fmt"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// DropDuplicates removes rows sharing (commit_hash, file, class_name).
// Global-only: applied per-batch it only catches within-batch dupes,
// so it runs once over the fully combined frame in ProcessGlobally.
type DropDuplicates struct{}

func (DropDuplicates) Name() string        { return "rule0_drop_duplicates" }
func (DropDuplicates) Description() string { return "remove duplicate rows by (commit_hash, file, class_name)" }
func (DropDuplicates) IsBatchSafe() bool    { return false }

func (DropDuplicates) Apply(_ context.Context, df *dataframe.DataFrame, _ map[string]any) (*dataframe.DataFrame, error) {
	if df == nil {
		return df, nil
	}
	names := df.Names()
	subset := []string{}
	for _, want := range []string{"commit_hash", "file", "class_name"} {
		for _, n := range names {
			if n == want {
				subset = append(subset, want)
				break
			}
		}
	}
	if len(subset) == 0 {
		return df, nil
	}
	seen := make(map[string]struct{})
	return filterRows(df, func(row map[string]interface{}) bool {
		key := ""
		for _, col := range subset {
			key += fmt.Sprintf("%v|", row[col])
		}
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		return true
	})
}

// RemoveEmptyClass drops rows describing a class with no local methods
// or fields.
type RemoveEmptyClass struct{}

func (RemoveEmptyClass) Name() string        { return "rule3_remove_empty_class" }
func (RemoveEmptyClass) Description() string { return "exclude classes with zero methods and zero fields" }
func (RemoveEmptyClass) IsBatchSafe() bool   { return true }

func (RemoveEmptyClass) Apply(_ context.Context, df *dataframe.DataFrame, _ map[string]any) (*dataframe.DataFrame, error) {
	if df == nil || !hasColumns(df, "totalMethodsQty", "totalFieldsQty") {
		return df, nil
	}
	return filterRows(df, func(row map[string]interface{}) bool {
		methods, _ := asFloat(row["totalMethodsQty"])
		fields, _ := asFloat(row["totalFieldsQty"])
		return methods > 0 || fields > 0
	})
}

// RemoveTrivialGetSet drops rows that look like pure getter/setter
// changes by a low WMC/RFC heuristic.
type RemoveTrivialGetSet struct{}

func (RemoveTrivialGetSet) Name() string { return "rule4_remove_trivial_getset" }
func (RemoveTrivialGetSet) Description() string {
	return "exclude likely getter/setter-only changes (wmc<=1 and rfc<=1)"
}
func (RemoveTrivialGetSet) IsBatchSafe() bool { return true }

func (RemoveTrivialGetSet) Apply(_ context.Context, df *dataframe.DataFrame, _ map[string]any) (*dataframe.DataFrame, error) {
	if df == nil || !hasColumns(df, "totalMethodsQty", "wmc", "rfc") {
		return df, nil
	}
	return filterRows(df, func(row map[string]interface{}) bool {
		methods, _ := asFloat(row["totalMethodsQty"])
		wmc, _ := asFloat(row["wmc"])
		rfc, _ := asFloat(row["rfc"])
		trivial := methods > 0 && wmc <= 1 && rfc <= 1
		return !trivial
	})
}

func hasColumns(df *dataframe.DataFrame, cols ...string) bool {
	names := map[string]struct{}{}
	for _, n := range df.Names() {
		names[n] = struct{}{}
	}
	for _, c := range cols {
		if _, ok := names[c]; !ok {
			return false
		}
	}
	return true
}
