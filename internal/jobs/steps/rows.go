package steps

import (
	dataframe "github.com/rocketlaunchr/dataframe-go"
)

func seriesByName(df *dataframe.DataFrame, name string) dataframe.Series {
	if df == nil {
		return nil
	}
	for _, s := range df.Series {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func hasColumn(df *dataframe.DataFrame, name string) bool {
	return seriesByName(df, name) != nil
}

func hasColumns(df *dataframe.DataFrame, names ...string) bool {
	for _, n := range names {
		if !hasColumn(df, n) {
			return false
		}
	}
	return true
}

func columnValues(df *dataframe.DataFrame, name string) []interface{} {
	s := seriesByName(df, name)
	if s == nil {
		return nil
	}
	n := df.NRows()
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = s.Value(i)
	}
	return out
}

// appendColumn returns a new DataFrame with an additional trailing
// column, mirroring pandas' df['new_col'] = ... appending at the end.
func appendColumn(df *dataframe.DataFrame, name string, values []interface{}) *dataframe.DataFrame {
	series := make([]dataframe.Series, 0, len(df.Series)+1)
	series = append(series, df.Series...)
	series = append(series, dataframe.NewSeriesMixed(name, &dataframe.SeriesInit{Size: len(values)}, values...))
	return dataframe.NewDataFrame(series...)
}

// dropColumn returns a new DataFrame with the named column removed, a
// no-op if the column isn't present.
func dropColumn(df *dataframe.DataFrame, name string) *dataframe.DataFrame {
	series := make([]dataframe.Series, 0, len(df.Series))
	for _, s := range df.Series {
		if s.Name() != name {
			series = append(series, s)
		}
	}
	return dataframe.NewDataFrame(series...)
}

func rowAt(df *dataframe.DataFrame, names []string, i int) map[string]interface{} {
	row := make(map[string]interface{}, len(names))
	for _, name := range names {
		row[name] = seriesByName(df, name).Value(i)
	}
	return row
}

// filterFrameRows rebuilds df keeping only rows for which keep returns
// true, preserving column order. Local twin of internal/jobs/cleaning's
// filterRows -- not shared across packages since cleaning.Rule and
// engine.Step operate on distinct Context shapes.
func filterFrameRows(df *dataframe.DataFrame, keep func(row map[string]interface{}) bool) (*dataframe.DataFrame, error) {
	if df == nil {
		return df, nil
	}
	names := df.Names()
	n := df.NRows()
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
	series := make([]dataframe.Series, 0, len(names))
	for _, name := range names {
		series = append(series, dataframe.NewSeriesMixed(name, &dataframe.SeriesInit{Size: len(values[name])}, values[name]...))
	}
	return dataframe.NewDataFrame(series...), nil
}

// asFloatVal best-effort coerces a cell value to float64 -- numbers may
// arrive as int, int64 or float32/64; any other value, a string
// included, reports false.
func asFloatVal(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func framesFromRows(names []string, rows []map[string]interface{}) *dataframe.DataFrame {
	series := make([]dataframe.Series, 0, len(names))
	for _, name := range names {
		values := make([]interface{}, len(rows))
		for i, row := range rows {
			values[i] = row[name]
		}
		series = append(series, dataframe.NewSeriesMixed(name, &dataframe.SeriesInit{Size: len(values)}, values...))
	}
	return dataframe.NewDataFrame(series...)
}
