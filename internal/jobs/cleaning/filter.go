package cleaning

import (
	"strconv"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// filterRows rebuilds df keeping only the rows for which keep returns
// true. Series are reconstructed with dataframe.NewSeriesMixed rather
// than per-column typed series (SeriesFloat64, SeriesString, ...) --
// column dtype fidelity isn't needed by any cleaning rule here, and a
// single mixed-value constructor keeps this helper rule-agnostic.
func filterRows(df *dataframe.DataFrame, keep func(row map[string]interface{}) bool) (*dataframe.DataFrame, error) {
	if df == nil {
		return df, nil
	}
	n := df.NRows()
	names := df.Names()

	values := make(map[string][]interface{}, len(names))
	for _, name := range names {
		values[name] = make([]interface{}, 0, n)
	}

	for i := 0; i < n; i++ {
		row := rowAt(df, names, i)
		if keep(row) {
			for _, name := range names {
				values[name] = append(values[name], row[name])
			}
		}
	}

	newSeries := make([]dataframe.Series, 0, len(names))
	for _, name := range names {
		newSeries = append(newSeries, dataframe.NewSeriesMixed(name, &dataframe.SeriesInit{Size: len(values[name])}, values[name]...))
	}
	return dataframe.NewDataFrame(newSeries...), nil
}

func rowAt(df *dataframe.DataFrame, names []string, i int) map[string]interface{} {
	row := make(map[string]interface{}, len(names))
	for _, name := range names {
		s := df.Series[seriesIndex(df, name)]
		row[name] = s.Value(i)
	}
	return row
}

func seriesIndex(df *dataframe.DataFrame, name string) int {
	for idx, s := range df.Series {
		if s.Name() == name {
			return idx
		}
	}
	return -1
}

// asFloat best-effort coerces a cell value (which may be int, float64,
// string, or nil from CSV round-tripping) to a float64, returning
// (0, false) for anything that can't be interpreted numerically.
func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
