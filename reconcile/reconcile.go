// Package reconcile compares two decodings of the same slice cell by cell.
package reconcile

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sdifrance/era5check/grid"
)

// ErrShapeMismatch is returned when the grids have different dimensions.
var ErrShapeMismatch = errors.New("shape mismatch")

// Result summarizes a comparison.
type Result struct {
	Cells             int
	ExactMatch        bool
	MismatchedCount   int
	MismatchedPercent float64
	// MaxAbsDifference is taken over cells where both values are numbers.
	MaxAbsDifference float64
	Tolerance        float64
}

// Compare reports whether a and b are identical. Cells that are NaN in both
// grids are equal.
func Compare(a, b *grid.Grid) (Result, error) {
	return CompareWithin(a, b, 0)
}

// CompareWithin is Compare with cells differing by at most tol counted as
// equal. ExactMatch still requires every cell to be identical.
func CompareWithin(a, b *grid.Grid, tol float64) (Result, error) {
	if tol < 0 || math.IsNaN(tol) {
		return Result{}, errors.Errorf("invalid tolerance %g", tol)
	}
	if !a.SameShape(b) {
		ar, ac := a.Dims()
		br, bc := b.Dims()
		return Result{}, errors.Wrapf(ErrShapeMismatch, "%dx%d vs %dx%d", ar, ac, br, bc)
	}

	res := Result{Cells: a.Cells(), ExactMatch: true, Tolerance: tol}
	av, bv := a.Values(), b.Values()
	for i := range av {
		x, y := av[i], bv[i]
		xNaN, yNaN := math.IsNaN(x), math.IsNaN(y)
		switch {
		case xNaN && yNaN:
			continue
		case xNaN || yNaN:
			res.ExactMatch = false
			res.MismatchedCount++
			continue
		}
		if x == y {
			continue
		}
		res.ExactMatch = false
		d := math.Abs(x - y)
		if d > res.MaxAbsDifference {
			res.MaxAbsDifference = d
		}
		if d > tol {
			res.MismatchedCount++
		}
	}
	if res.Cells > 0 {
		res.MismatchedPercent = math.Round(10000*float64(res.MismatchedCount)/float64(res.Cells)) / 100
	}
	return res, nil
}

// Equal reports whether no cell exceeded the tolerance.
func (r Result) Equal() bool { return r.MismatchedCount == 0 }
