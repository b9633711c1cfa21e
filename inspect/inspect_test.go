package inspect

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sdifrance/era5check/backend"
	"github.com/sdifrance/era5check/config"
	"github.com/sdifrance/era5check/grid"
	"github.com/sdifrance/era5check/internal/fixture"
	"github.com/sdifrance/era5check/locate"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	t1 = time.Date(2023, 2, 1, 6, 0, 0, 0, time.UTC)
)

func newInspector(t *testing.T, paths ...string) *Inspector {
	t.Helper()
	c := config.Default()
	table, err := c.Table()
	require.NoError(t, err)
	readers, err := backend.OpenAll(paths, backend.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { backend.CloseAll(readers) })
	return &Inspector{
		Table:   table,
		Policy:  c.Policy(),
		Readers: readers,
		Workers: 3,
	}
}

func TestInspectAll(t *testing.T) {
	dir := t.TempDir()
	d := fixture.Humidity([]time.Time{t0, t1}, []float64{1, 500, 1000}, 3, 4)
	gribPath := filepath.Join(dir, "rh.grib")
	ncPath := filepath.Join(dir, "rh.nc")
	d.WriteGRIB(t, gribPath)
	d.WriteNetCDF(t, ncPath)

	in := newInspector(t, gribPath, ncPath)
	slices, err := Slices(in.Readers[backend.GRIB], "r")
	require.NoError(t, err)
	require.Len(t, slices, 6)
	require.Equal(t, locate.At("r", t0, 1), slices[0])
	require.Equal(t, locate.At("r", t1, 1000), slices[5])

	reports, err := in.InspectAll(context.Background(), slices)
	require.NoError(t, err)
	require.Len(t, reports, 6)
	for i, rep := range reports {
		require.Equal(t, slices[i], rep.Slice)
		require.Len(t, rep.Readings, 3)
		require.Len(t, rep.Comparisons, 3)
		require.True(t, rep.Consistent(), "slice %s", rep.Slice)
	}

	first := reports[0].Readings[0]
	require.Equal(t, backend.GRIB, first.Backend)
	require.Equal(t, 1, first.Scan.BelowMinCount)
	require.Equal(t, -3.0, first.Scan.MinObserved)

	last := reports[5]
	for _, r := range last.Readings {
		require.Equal(t, 1, r.Scan.AboveMaxCount, "backend %s", r.Backend)
		require.Equal(t, 104.0, r.Scan.MaxObserved, "backend %s", r.Backend)
	}
}

// skewed wraps a reader and perturbs one cell of every grid.
type skewed struct {
	backend.Reader
}

func (s skewed) Read(key locate.BackendKey) (*grid.Grid, error) {
	g, err := s.Reader.Read(key)
	if err != nil {
		return nil, err
	}
	values := append([]float64(nil), g.Values()...)
	values[0] += 0.5
	rows, cols := g.Dims()
	return grid.New(rows, cols, values)
}

func TestInspectMismatch(t *testing.T) {
	dir := t.TempDir()
	d := fixture.Humidity([]time.Time{t0}, []float64{1, 2}, 2, 2)
	gribPath := filepath.Join(dir, "rh.grib")
	d.WriteGRIB(t, gribPath)

	in := newInspector(t, gribPath)
	in.Readers["netcdf-index"] = skewed{in.Readers[backend.GRIB]}
	in.Table["netcdf-index"] = in.Table[backend.GRIB]

	rep, err := in.Inspect(locate.At("r", t0, 2))
	require.NoError(t, err)
	require.False(t, rep.Consistent())
	require.Len(t, rep.Comparisons, 1)
	c := rep.Comparisons[0]
	require.Equal(t, backend.GRIB, c.A)
	require.Equal(t, 1, c.Result.MismatchedCount)
	require.Equal(t, 0.5, c.Result.MaxAbsDifference)

	in.Tolerance = 0.5
	rep, err = in.Inspect(locate.At("r", t0, 2))
	require.NoError(t, err)
	require.True(t, rep.Consistent())
}

func TestInspectErrors(t *testing.T) {
	dir := t.TempDir()
	d := fixture.Humidity([]time.Time{t0}, []float64{1, 2}, 2, 2)
	gribPath := filepath.Join(dir, "rh.grib")
	d.WriteGRIB(t, gribPath)
	in := newInspector(t, gribPath)

	_, err := in.Inspect(locate.At("r", t0, 850))
	require.True(t, errors.Is(err, locate.ErrSliceNotFound), "error = %v", err)

	_, err = in.Inspect(locate.Surface("r", t0))
	require.True(t, errors.Is(err, locate.ErrAmbiguousIndex), "error = %v", err)

	_, err = in.InspectAll(context.Background(), []locate.LogicalSlice{
		locate.At("r", t0, 1),
		locate.At("r", t0, 850),
	})
	require.Error(t, err)

	delete(in.Policy, "r")
	_, err = in.Inspect(locate.At("r", t0, 1))
	require.Error(t, err)

	_, err = (&Inspector{}).Inspect(locate.At("r", t0, 1))
	require.Error(t, err)
}
