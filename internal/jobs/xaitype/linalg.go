package xaitype

// solveLinearSystem solves Ax = b via Gaussian elimination with partial
// pivoting. A is square and modified in place (on a copy); returns nil
// if A is singular to within tolerance. Small, local stand-in for the
// matrix solve every surrogate-regression explainer in this package
// needs -- no linear-algebra library is wired in to reach for instead.
func solveLinearSystem(a [][]float64, b []float64) []float64 {
	n := len(a)
	if n == 0 {
		return nil
	}
	m := make([][]float64, n)
	for i := range a {
		m[i] = append([]float64{}, a[i]...)
	}
	rhs := append([]float64{}, b...)

	for col := 0; col < n; col++ {
		pivot := col
		best := absF(m[col][col])
		for row := col + 1; row < n; row++ {
			if v := absF(m[row][col]); v > best {
				pivot, best = row, v
			}
		}
		if best < 1e-12 {
			return nil
		}
		m[col], m[pivot] = m[pivot], m[col]
		rhs[col], rhs[pivot] = rhs[pivot], rhs[col]

		for row := col + 1; row < n; row++ {
			factor := m[row][col] / m[col][col]
			for k := col; k < n; k++ {
				m[row][k] -= factor * m[col][k]
			}
			rhs[row] -= factor * rhs[col]
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := rhs[row]
		for k := row + 1; k < n; k++ {
			sum -= m[row][k] * x[k]
		}
		x[row] = sum / m[row][row]
	}
	return x
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
