// Package ncio reads 2D slices of gridded variables from NetCDF files, both
// classic CDF and NetCDF4/HDF5.
//
// Dimension names are mapped onto the logical axes time, level, lat and lon so
// that files written by different tools can be addressed the same way.
package ncio

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/golang/glog"
	"github.com/sdifrance/era5check/grid"
	"github.com/sdifrance/era5check/locate"
)

var axisNames = map[string]locate.Axis{
	"time":           locate.AxisTime,
	"valid_time":     locate.AxisTime,
	"level":          locate.AxisLevel,
	"isobaricInhPa":  locate.AxisLevel,
	"pressure_level": locate.AxisLevel,
	"latitude":       locate.AxisLat,
	"lat":            locate.AxisLat,
	"longitude":      locate.AxisLon,
	"lon":            locate.AxisLon,
}

// File is an open NetCDF file.
type File struct {
	path string
	nc   api.Group

	// mu serializes reads; the decoder shares one file handle.
	mu sync.Mutex
}

// Open opens the NetCDF file at path.
func Open(path string) (*File, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{path: path, nc: nc}, nil
}

// Path returns the path the file was opened from.
func (f *File) Path() string { return f.path }

// Close closes the file.
func (f *File) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nc.Close()
}

// Variables returns the names of the gridded data variables, sorted.
// Coordinate variables are excluded.
func (f *File) Variables() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	dims := map[string]bool{}
	for _, d := range f.nc.ListDimensions() {
		dims[d] = true
	}
	var out []string
	for _, name := range f.nc.ListVariables() {
		if dims[name] {
			continue
		}
		vg, err := f.nc.GetVarGetter(name)
		if err != nil || len(vg.Dimensions()) < 2 {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Variable inspects the named variable and its coordinates.
func (f *File) Variable(name string) (*Variable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	vg, err := f.nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %q: %w", f.path, name, err)
	}
	dims := vg.Dimensions()
	if len(dims) < 2 {
		return nil, fmt.Errorf("%s: variable %q has %d dimensions, want at least 2", f.path, name, len(dims))
	}
	v := &Variable{
		Name:    name,
		Dims:    dims,
		file:    f,
		vg:      vg,
		packing: readPacking(vg.Attributes()),
	}
	for _, d := range dims {
		axis, ok := axisNames[d]
		if !ok {
			axis = locate.Axis(d)
		}
		v.Axes = append(v.Axes, axis)

		n, ok := f.nc.GetDimension(d)
		if !ok {
			return nil, fmt.Errorf("%s: variable %q: unknown dimension %q", f.path, name, d)
		}
		v.shape = append(v.shape, int(n))

		switch axis {
		case locate.AxisTime:
			if v.Times, err = f.times(d); err != nil {
				return nil, fmt.Errorf("%s: variable %q: %w", f.path, name, err)
			}
		case locate.AxisLevel:
			if v.Levels, err = f.coordinate(d); err != nil {
				return nil, fmt.Errorf("%s: variable %q: %w", f.path, name, err)
			}
		}
	}
	v.Rows = v.shape[len(v.shape)-2]
	v.Cols = v.shape[len(v.shape)-1]
	return v, nil
}

func (f *File) coordinate(dim string) ([]float64, error) {
	vg, err := f.nc.GetVarGetter(dim)
	if err != nil {
		return nil, fmt.Errorf("coordinate %q: %w", dim, err)
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("coordinate %q: %w", dim, err)
	}
	return flatten(raw)
}

func (f *File) times(dim string) ([]time.Time, error) {
	offsets, err := f.coordinate(dim)
	if err != nil {
		return nil, err
	}
	vg, err := f.nc.GetVarGetter(dim)
	if err != nil {
		return nil, err
	}
	units, ok := attrString(vg.Attributes(), "units")
	if !ok {
		return nil, fmt.Errorf("coordinate %q has no units", dim)
	}
	return decodeTimes(units, offsets)
}

// Variable is one gridded variable. The last two dimensions are the grid; the
// leading ones enumerate bands in storage order.
type Variable struct {
	Name string
	// Dims are the dimension names as stored and Axes their logical names.
	Dims   []string
	Axes   locate.AxisOrder
	Times  []time.Time
	Levels []float64
	Rows   int
	Cols   int

	shape   []int
	packing packing
	file    *File
	vg      api.VarGetter
}

// Hint returns the declared layout of v.
func (v *Variable) Hint() locate.Hint {
	return locate.Hint{Axes: v.Axes, Levels: v.Levels, Times: v.Times}
}

// Bands returns the number of 2D slices in v.
func (v *Variable) Bands() int {
	n := 1
	for _, s := range v.shape[:len(v.shape)-2] {
		n *= s
	}
	return n
}

// Band reads the i-th 2D slice in storage order.
func (v *Variable) Band(i int) (*grid.Grid, error) {
	if i < 0 || i >= v.Bands() {
		return nil, fmt.Errorf("%s: %s band %d out of range [0, %d)", v.file.path, v.Name, i, v.Bands())
	}

	v.file.mu.Lock()
	var (
		raw interface{}
		err error
	)
	lead := v.shape[:len(v.shape)-2]
	inner := 0
	if len(lead) == 0 {
		raw, err = v.vg.Values()
	} else {
		// Slicing is only possible along the outermost dimension.
		per := v.Bands() / lead[0]
		outer := int64(i / per)
		inner = i % per
		raw, err = v.vg.GetSlice(outer, outer+1)
	}
	v.file.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: reading %s band %d: %w", v.file.path, v.Name, i, err)
	}

	values, err := flatten(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", v.file.path, v.Name, err)
	}
	cells := v.Rows * v.Cols
	if len(values) < (inner+1)*cells {
		return nil, fmt.Errorf("%s: %s band %d: got %d values", v.file.path, v.Name, i, len(values))
	}
	band := make([]float64, cells)
	copy(band, values[inner*cells:(inner+1)*cells])
	v.packing.apply(band)
	return grid.New(v.Rows, v.Cols, band)
}

// Coordinates returns the time and level of band i. hasTime and hasLevel
// report whether v has those axes.
func (v *Variable) Coordinates(i int) (t time.Time, hasTime bool, level float64, hasLevel bool, err error) {
	if i < 0 || i >= v.Bands() {
		return time.Time{}, false, 0, false, fmt.Errorf("%s: %s band %d out of range [0, %d)", v.file.path, v.Name, i, v.Bands())
	}
	hasTime = v.Axes.Has(locate.AxisTime) && len(v.Times) > 0
	hasLevel = v.Axes.Has(locate.AxisLevel) && len(v.Levels) > 0
	nLevels := 1
	if hasLevel {
		nLevels = len(v.Levels)
		level = v.Levels[i%nLevels]
	}
	if hasTime {
		ti := i / nLevels
		if ti >= len(v.Times) {
			return time.Time{}, false, 0, false, fmt.Errorf("%s: %s band %d has no time coordinate", v.file.path, v.Name, i)
		}
		t = v.Times[ti]
	}
	return t, hasTime, level, hasLevel, nil
}

// Select reads the slice named by key's labels. The time must match exactly;
// the level must too, unless key asks for the nearest level, in which case an
// inexact match is logged as a warning. A time or level is ignored when key
// does not carry it.
func (v *Variable) Select(key locate.BackendKey) (*grid.Grid, error) {
	if !locate.Recognized(v.Axes) {
		return nil, fmt.Errorf("%s: %s: cannot select by label in layout %q", v.file.path, v.Name, v.Axes)
	}
	ti, li := 0, 0
	nLevels := 1
	if v.Axes.Has(locate.AxisTime) {
		if !key.HasTime {
			return nil, fmt.Errorf("%s: %s has a time axis but no time was given", v.file.path, v.Name)
		}
		ti = -1
		for i, vt := range v.Times {
			if vt.Equal(key.Time) {
				ti = i
				break
			}
		}
		if ti < 0 {
			return nil, fmt.Errorf("%s: %s has no time %s: %w", v.file.path, v.Name, key.Time.UTC().Format(time.RFC3339), locate.ErrSliceNotFound)
		}
	}
	if v.Axes.Has(locate.AxisLevel) {
		if !key.HasLevel {
			return nil, fmt.Errorf("%s: %s has a level axis but no level was given", v.file.path, v.Name)
		}
		li = nearest(v.Levels, key.Level)
		if li < 0 {
			return nil, fmt.Errorf("%s: %s has no levels", v.file.path, v.Name)
		}
		if v.Levels[li] != key.Level {
			if key.LevelMatch != locate.NearestLevel {
				return nil, fmt.Errorf("%s: %s has no level %g: %w", v.file.path, v.Name, key.Level, locate.ErrSliceNotFound)
			}
			glog.Warningf("%s: %s has no level %g, reading nearest level %g", v.file.path, v.Name, key.Level, v.Levels[li])
		}
		nLevels = len(v.Levels)
	}
	return v.Band(ti*nLevels + li)
}

func nearest(values []float64, x float64) int {
	best, bestDiff := -1, math.Inf(1)
	for i, v := range values {
		if d := math.Abs(v - x); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}
