package scan

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
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

var rhPolicy = Policy{"r": {Min: Float(0), Max: Float(100)}}

func TestScan(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		rows   [][]float64
		policy Policy
		want   Result
	}{
		{
			name:   "below and above",
			rows:   [][]float64{{-5, 50}, {101, 99}},
			policy: rhPolicy,
			want: Result{
				Cells:           4,
				BelowMinCount:   1,
				BelowMinPercent: 25,
				AboveMaxCount:   1,
				AboveMaxPercent: 25,
				MinObserved:     -5,
				MaxObserved:     101,
			},
		},
		{
			name:   "bounds are exclusive",
			rows:   [][]float64{{0, 100}},
			policy: rhPolicy,
			want:   Result{Cells: 2, MinObserved: 0, MaxObserved: 100},
		},
		{
			name:   "nulls excluded",
			rows:   [][]float64{{nan, -1}, {-9999, 20}},
			policy: Policy{"r": {Min: Float(0), Max: Float(100), NoData: Float(-9999)}},
			want: Result{
				Cells:           4,
				NullCount:       2,
				BelowMinCount:   1,
				BelowMinPercent: 25,
				MinObserved:     -1,
				MaxObserved:     20,
			},
		},
		{
			name:   "all null",
			rows:   [][]float64{{nan, nan}},
			policy: rhPolicy,
			want:   Result{Cells: 2, NullCount: 2, MinObserved: nan, MaxObserved: nan},
		},
		{
			name:   "suspect",
			rows:   [][]float64{{0.006, 3.4e38}, {0.007, -1}},
			policy: Policy{"tco3": {Min: Float(0), SuspectAbove: Float(1e3)}},
			want: Result{
				Cells:           4,
				BelowMinCount:   1,
				BelowMinPercent: 25,
				MinObserved:     -1,
				MaxObserved:     3.4e38,
				SuspectCount:    1,
			},
		},
		{
			name:   "unbounded",
			rows:   [][]float64{{-1e9, 1e9}},
			policy: Policy{"t2m": {}},
			want:   Result{Cells: 2, MinObserved: -1e9, MaxObserved: 1e9},
		},
		{
			name:   "rounded percent",
			rows:   [][]float64{{-1, 1, 1}},
			policy: rhPolicy,
			want: Result{
				Cells:           3,
				BelowMinCount:   1,
				BelowMinPercent: 33.33,
				MinObserved:     -1,
				MaxObserved:     1,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variable := "r"
			for v := range tt.policy {
				variable = v
			}
			got, err := Scan(mustGrid(t, tt.rows), variable, tt.policy)
			if err != nil {
				t.Fatalf("Scan() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateNaNs()); diff != "" {
				t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// randomGrid returns a rows x cols grid of values in [-50, 150) with about
// one cell in twenty null.
func randomGrid(t *testing.T, rng *rand.Rand, rows, cols int) *grid.Grid {
	t.Helper()
	values := make([]float64, rows*cols)
	for i := range values {
		if rng.Intn(20) == 0 {
			values[i] = math.NaN()
			continue
		}
		values[i] = -50 + 200*rng.Float64()
	}
	g, err := grid.New(rows, cols, values)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestScanCountsRandomGrids(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		g := randomGrid(t, rng, 1+rng.Intn(20), 1+rng.Intn(20))
		var nulls, below, above int
		for _, v := range g.Values() {
			switch {
			case math.IsNaN(v):
				nulls++
			case v < 0:
				below++
			case v > 100:
				above++
			}
		}
		got, err := Scan(g, "r", rhPolicy)
		if err != nil {
			t.Fatalf("Scan() error: %v", err)
		}
		if got.Cells != g.Cells() || got.NullCount != nulls || got.BelowMinCount != below || got.AboveMaxCount != above {
			t.Errorf("grid %d: Scan() counts cells=%d nulls=%d below=%d above=%d; want %d, %d, %d, %d",
				i, got.Cells, got.NullCount, got.BelowMinCount, got.AboveMaxCount, g.Cells(), nulls, below, above)
		}
	}
}

func TestScanRepeatable(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	policy := Policy{"r": {Min: Float(0), Max: Float(100), SuspectAbove: Float(140)}}
	for i := 0; i < 10; i++ {
		g := randomGrid(t, rng, 8, 12)
		first, err := Scan(g, "r", policy)
		if err != nil {
			t.Fatalf("Scan() error: %v", err)
		}
		second, err := Scan(g, "r", policy)
		if err != nil {
			t.Fatalf("Scan() error: %v", err)
		}
		if diff := cmp.Diff(first, second, cmpopts.EquateNaNs()); diff != "" {
			t.Errorf("grid %d: repeated Scan() differs (-first +second):\n%s", i, diff)
		}
	}

	// An all-null grid repeats too.
	nulls, _ := grid.New(2, 2, []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()})
	first, _ := Scan(nulls, "r", policy)
	second, _ := Scan(nulls, "r", policy)
	if diff := cmp.Diff(first, second, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("repeated Scan() of nulls differs (-first +second):\n%s", diff)
	}
}

func TestScanUnknownVariable(t *testing.T) {
	_, err := Scan(mustGrid(t, [][]float64{{1}}), "q", rhPolicy)
	if !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("Scan() error = %v, want ErrUnknownVariable", err)
	}
}

func TestScanDoesNotMutate(t *testing.T) {
	g := mustGrid(t, [][]float64{{-5, 50}, {101, 99}})
	before := append([]float64(nil), g.Values()...)
	if _, err := Scan(g, "r", rhPolicy); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, g.Values()); diff != "" {
		t.Errorf("grid changed (-before +after):\n%s", diff)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := rhPolicy.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	bad := Policy{"r": {Min: Float(10), Max: Float(0)}}
	if err := bad.Validate(); err == nil {
		t.Errorf("Validate() succeeded, want error")
	}
}
