// Package inspect reads a logical slice through every configured backend,
// scans each decoding and checks that all decodings agree.
package inspect

import (
	"context"
	"sort"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/sdifrance/era5check/backend"
	"github.com/sdifrance/era5check/grid"
	"github.com/sdifrance/era5check/locate"
	"github.com/sdifrance/era5check/reconcile"
	"github.com/sdifrance/era5check/scan"
	"golang.org/x/sync/errgroup"
)

// Inspector holds everything needed to inspect slices. It is safe for
// concurrent use once configured.
type Inspector struct {
	Table   locate.Table
	Policy  scan.Policy
	Readers map[string]backend.Reader
	// Tolerance is passed to reconcile.CompareWithin; zero compares exactly.
	Tolerance float64
	// Workers bounds the slices inspected at once by InspectAll.
	Workers int
	Verbose bool
}

// Reading is one backend's decoding of a slice.
type Reading struct {
	Backend string
	Key     locate.BackendKey
	Grid    *grid.Grid
	Scan    scan.Result
}

// Comparison is the reconciliation of two readings.
type Comparison struct {
	A, B   string
	Result reconcile.Result
}

// Report is the outcome of inspecting one slice.
type Report struct {
	Slice       locate.LogicalSlice
	Readings    []Reading
	Comparisons []Comparison
}

// Consistent reports whether every pair of readings matched.
func (r Report) Consistent() bool {
	for _, c := range r.Comparisons {
		if !c.Result.Equal() {
			return false
		}
	}
	return true
}

// Inspect resolves, reads and scans slice in every backend, in backend id
// order, and compares every pair of readings.
func (in *Inspector) Inspect(slice locate.LogicalSlice) (Report, error) {
	if len(in.Readers) == 0 {
		return Report{}, errors.New("no readers")
	}
	rep := Report{Slice: slice}
	for _, id := range backend.IDs(in.Readers) {
		r := in.Readers[id]
		hint, err := r.Hint(slice.Variable)
		if err != nil {
			return Report{}, errors.Wrapf(err, "%s: %s", id, slice)
		}
		key, err := in.Table.Resolve(slice, id, hint)
		if err != nil {
			return Report{}, errors.Wrapf(err, "%s", slice)
		}
		g, err := r.Read(key)
		if err != nil {
			return Report{}, errors.Wrapf(err, "%s", key)
		}
		res, err := scan.Scan(g, slice.Variable, in.Policy)
		if err != nil {
			return Report{}, errors.Wrapf(err, "%s", slice)
		}
		if in.Verbose {
			glog.Infof("%s: %s read %d cells, %d nulls, %d below, %d above", slice, key, res.Cells, res.NullCount, res.BelowMinCount, res.AboveMaxCount)
		}
		rep.Readings = append(rep.Readings, Reading{Backend: id, Key: key, Grid: g, Scan: res})
	}

	for i := 0; i < len(rep.Readings); i++ {
		for j := i + 1; j < len(rep.Readings); j++ {
			a, b := rep.Readings[i], rep.Readings[j]
			res, err := reconcile.CompareWithin(a.Grid, b.Grid, in.Tolerance)
			if err != nil {
				return Report{}, errors.Wrapf(err, "%s: %s vs %s", slice, a.Backend, b.Backend)
			}
			if !res.Equal() {
				glog.Warningf("%s: %s and %s differ in %d cells (max difference %g)", slice, a.Backend, b.Backend, res.MismatchedCount, res.MaxAbsDifference)
			}
			rep.Comparisons = append(rep.Comparisons, Comparison{A: a.Backend, B: b.Backend, Result: res})
		}
	}
	return rep, nil
}

// InspectAll inspects slices concurrently, at most Workers at a time.
// Reports are returned in the order of slices. The first error cancels the
// remaining work.
func (in *Inspector) InspectAll(ctx context.Context, slices []locate.LogicalSlice) ([]Report, error) {
	workers := in.Workers
	if workers < 1 {
		workers = 1
	}
	out := make([]Report, len(slices))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range slices {
		i, s := i, s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rep, err := in.Inspect(s)
			if err != nil {
				return err
			}
			out[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Slices lists every (time, level) slice of variable that r declares, times
// and levels ascending.
func Slices(r backend.Reader, variable string) ([]locate.LogicalSlice, error) {
	hint, err := r.Hint(variable)
	if err != nil {
		return nil, err
	}
	times := append([]time.Time(nil), hint.Times...)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	if len(times) == 0 {
		times = []time.Time{{}}
	}
	levels := append([]float64(nil), hint.Levels...)
	sort.Float64s(levels)

	var out []locate.LogicalSlice
	for _, t := range times {
		if len(levels) == 0 {
			out = append(out, locate.Surface(variable, t))
			continue
		}
		for _, l := range levels {
			out = append(out, locate.At(variable, t, l))
		}
	}
	return out, nil
}
