package featureselect

import (
	"math"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// numericColumn pulls a column out as float64, zero-filling anything
// that doesn't coerce before correlation/variance math.
func numericColumn(df *dataframe.DataFrame, name string) []float64 {
	n := df.NRows()
	out := make([]float64, n)
	for _, s := range df.Series {
		if s.Name() != name {
			continue
		}
		for i := 0; i < n; i++ {
			if f, ok := asFloat(s.Value(i)); ok {
				out[i] = f
			}
		}
		break
	}
	return out
}

// asFloat best-effort coerces a cell value to float64. A local twin of
// internal/jobs/steps' asFloatVal -- not shared across packages since
// importing steps from here would create an import cycle (steps
// depends on featureselect, not the other way around).
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
	default:
		return 0, false
	}
}

// pearson computes the Pearson correlation coefficient between x and y.
// Returns 0 for a degenerate (zero-variance) series rather than NaN, so
// callers can treat it as "no correlation" before thresholding.
func pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	corr := cov / math.Sqrt(varX*varY)
	if math.IsNaN(corr) {
		return 0
	}
	return corr
}

func variance(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(n)
	var sq float64
	for _, v := range x {
		d := v - mean
		sq += d * d
	}
	return sq / float64(n)
}
