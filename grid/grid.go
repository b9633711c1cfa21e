// Package grid holds the decoded 2D fields that readers produce and the
// scanner and reconciler consume.
package grid

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrShape is returned when values do not fill a rows x cols grid.
var ErrShape = errors.New("grid: invalid shape")

// Grid is a read-only 2D field. Rows run along latitude and columns along
// longitude. NaN marks cells a decoder could not fill.
type Grid struct {
	m *mat.Dense
}

// New returns a rows x cols grid backed by values in row-major order. The
// grid takes ownership of values.
func New(rows, cols int, values []float64) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Wrapf(ErrShape, "%dx%d", rows, cols)
	}
	if len(values) != rows*cols {
		return nil, errors.Wrapf(ErrShape, "%d values for %dx%d", len(values), rows, cols)
	}
	return &Grid{m: mat.NewDense(rows, cols, values)}, nil
}

// FromRows builds a grid from a slice of equally long rows.
func FromRows(rows [][]float64) (*Grid, error) {
	if len(rows) == 0 {
		return nil, errors.Wrap(ErrShape, "no rows")
	}
	cols := len(rows[0])
	values := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, errors.Wrapf(ErrShape, "row %d has %d columns, want %d", i, len(r), cols)
		}
		values = append(values, r...)
	}
	return New(len(rows), cols, values)
}

// Dims returns the number of rows and columns.
func (g *Grid) Dims() (rows, cols int) {
	return g.m.Dims()
}

// Cells returns rows*cols.
func (g *Grid) Cells() int {
	r, c := g.m.Dims()
	return r * c
}

// At returns the value at row i, column j.
func (g *Grid) At(i, j int) float64 {
	return g.m.At(i, j)
}

// Values returns the row-major backing slice. Callers must not modify it.
func (g *Grid) Values() []float64 {
	return g.m.RawMatrix().Data
}

// SameShape reports whether g and o have equal dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	r1, c1 := g.Dims()
	r2, c2 := o.Dims()
	return r1 == r2 && c1 == c2
}
