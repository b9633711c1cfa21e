package reconcile

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/sdifrance/era5check/grid"
)

func mustGrid(t *testing.T, rows [][]float64) *grid.Grid {
	t.Helper()
	g, err := grid.FromRows(rows)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestCompare(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		a, b [][]float64
		want Result
	}{
		{
			name: "identical",
			a:    [][]float64{{1, 2}, {3, 4}},
			b:    [][]float64{{1, 2}, {3, 4}},
			want: Result{Cells: 4, ExactMatch: true},
		},
		{
			name: "one cell differs",
			a:    [][]float64{{1, 2}, {3, 4}},
			b:    [][]float64{{1, 2}, {3, 4.5}},
			want: Result{Cells: 4, MismatchedCount: 1, MismatchedPercent: 25, MaxAbsDifference: 0.5},
		},
		{
			name: "nan equals nan",
			a:    [][]float64{{nan, 2}},
			b:    [][]float64{{nan, 2}},
			want: Result{Cells: 2, ExactMatch: true},
		},
		{
			name: "nan against number",
			a:    [][]float64{{nan, 2}},
			b:    [][]float64{{7, 3}},
			want: Result{Cells: 2, MismatchedCount: 2, MismatchedPercent: 100, MaxAbsDifference: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := mustGrid(t, tt.a), mustGrid(t, tt.b)
			got, err := Compare(a, b)
			if err != nil {
				t.Fatalf("Compare() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Compare(a, b) mismatch (-want +got):\n%s", diff)
			}
			back, err := Compare(b, a)
			if err != nil {
				t.Fatalf("Compare(b, a) error: %v", err)
			}
			if diff := cmp.Diff(got, back); diff != "" {
				t.Errorf("Compare is not symmetric (-a,b +b,a):\n%s", diff)
			}
		})
	}
}

func TestCompareWithin(t *testing.T) {
	a := mustGrid(t, [][]float64{{1, 2, 3}})
	b := mustGrid(t, [][]float64{{1, 2.25, 4}})
	got, err := CompareWithin(a, b, 0.5)
	if err != nil {
		t.Fatalf("CompareWithin() error: %v", err)
	}
	want := Result{
		Cells:             3,
		MismatchedCount:   1,
		MismatchedPercent: 33.33,
		MaxAbsDifference:  1,
		Tolerance:         0.5,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CompareWithin() mismatch (-want +got):\n%s", diff)
	}
	if got.Equal() {
		t.Errorf("Equal() = true, want false")
	}

	if _, err := CompareWithin(a, b, -1); err == nil {
		t.Errorf("CompareWithin(tol=-1) succeeded, want error")
	}
}

func TestCompareShapeMismatch(t *testing.T) {
	a := mustGrid(t, [][]float64{{1, 2}, {3, 4}})
	b := mustGrid(t, [][]float64{{1, 2, 3, 4}})
	if _, err := Compare(a, b); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Compare() error = %v, want ErrShapeMismatch", err)
	}
}
