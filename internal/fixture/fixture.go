// Package fixture writes small ERA5-like GRIB1 and NetCDF files for tests.
// Both encodings of a Dataset decode to identical values as long as the
// values are whole numbers spanning less than 2^16.
package fixture

import (
	"math"
	"os"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/sdifrance/era5check/grib1"
)

// Dataset is one variable on a times x levels x rows x cols grid.
type Dataset struct {
	Variable string
	Times    []time.Time
	// Levels are pressure levels in hPa, usually ascending. Empty for single
	// level variables.
	Levels []float64
	Rows   int
	Cols   int
	// Value returns the value of cell (row-major) at Times[ti] and Levels[li].
	Value func(ti, li, cell int) float64
}

func (d Dataset) levels() int {
	if len(d.Levels) == 0 {
		return 1
	}
	return len(d.Levels)
}

// Band returns the row-major values at Times[ti] and Levels[li].
func (d Dataset) Band(ti, li int) []float64 {
	out := make([]float64, d.Rows*d.Cols)
	for c := range out {
		out[c] = d.Value(ti, li, c)
	}
	return out
}

// WriteGRIB writes one message per time and level, time-major with levels
// in the order of d.Levels.
func (d Dataset) WriteGRIB(t testing.TB, path string) {
	t.Helper()
	param, ok := grib1.ParameterByName(d.Variable)
	if !ok {
		t.Fatalf("no GRIB1 parameter for %q", d.Variable)
	}
	var out []byte
	for ti, ts := range d.Times {
		for li := 0; li < d.levels(); li++ {
			f := grib1.Field{
				Parameter:     param,
				LevelType:     grib1.LevelTypeSurface,
				ReferenceTime: ts,
				Rows:          d.Rows,
				Cols:          d.Cols,
				FirstLat:      -10,
				FirstLon:      110,
				LatIncrement:  -0.25,
				LonIncrement:  0.25,
				Values:        d.Band(ti, li),
			}
			if len(d.Levels) > 0 {
				f.LevelType = grib1.LevelTypeIsobaric
				f.Level = int(d.Levels[li])
			}
			msg, err := grib1.Encode(f)
			if err != nil {
				t.Fatalf("grib1.Encode() error: %v", err)
			}
			out = append(out, msg...)
		}
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteNetCDF writes a classic CDF file with the level axis stored in the
// reverse order of d.Levels. Ascending levels end up descending, as in ERA5
// NetCDF downloads.
func (d Dataset) WriteNetCDF(t testing.TB, path string) {
	t.Helper()
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		t.Fatalf("cdf.OpenWriter() error: %v", err)
	}

	hours := make([]int32, len(d.Times))
	for i, ts := range d.Times {
		hours[i] = int32(ts.Sub(epoch) / time.Hour)
	}
	add := func(name string, values interface{}, dims []string, attrs map[string]interface{}) {
		var keys []string
		for k := range attrs {
			keys = append(keys, k)
		}
		am, err := util.NewOrderedMap(keys, attrs)
		if err != nil {
			t.Fatal(err)
		}
		if err := cw.AddVar(name, api.Variable{Values: values, Dimensions: dims, Attributes: am}); err != nil {
			t.Fatalf("AddVar(%q) error: %v", name, err)
		}
	}
	add("time", hours, []string{"time"}, map[string]interface{}{
		"units": "hours since 1900-01-01 00:00:00.0",
	})

	lats := make([]float32, d.Rows)
	for i := range lats {
		lats[i] = float32(-10 - 0.25*float64(i))
	}
	lons := make([]float32, d.Cols)
	for i := range lons {
		lons[i] = float32(110 + 0.25*float64(i))
	}
	add("latitude", lats, []string{"latitude"}, map[string]interface{}{"units": "degrees_north"})
	add("longitude", lons, []string{"longitude"}, map[string]interface{}{"units": "degrees_east"})

	grid := func(ti, li int) [][]float64 {
		band := d.Band(ti, li)
		rows := make([][]float64, d.Rows)
		for r := range rows {
			rows[r] = band[r*d.Cols : (r+1)*d.Cols]
		}
		return rows
	}

	if len(d.Levels) == 0 {
		values := make([][][]float64, len(d.Times))
		for ti := range values {
			values[ti] = grid(ti, 0)
		}
		add(d.Variable, values, []string{"time", "latitude", "longitude"}, map[string]interface{}{})
	} else {
		n := len(d.Levels)
		levels := make([]int32, n)
		for i := range levels {
			levels[i] = int32(d.Levels[n-1-i])
		}
		add("level", levels, []string{"level"}, map[string]interface{}{"units": "millibars"})

		values := make([][][][]float64, len(d.Times))
		for ti := range values {
			values[ti] = make([][][]float64, n)
			for i := range values[ti] {
				values[ti][i] = grid(ti, n-1-i)
			}
		}
		add(d.Variable, values, []string{"time", "level", "latitude", "longitude"}, map[string]interface{}{})
	}

	if err := cw.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}

var epoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// Humidity returns a relative humidity dataset with one negative cell in the
// first band and one cell above 100 in the last band.
func Humidity(times []time.Time, levels []float64, rows, cols int) Dataset {
	last := len(times)*len(levels) - 1
	return Dataset{
		Variable: "r",
		Times:    times,
		Levels:   levels,
		Rows:     rows,
		Cols:     cols,
		Value: func(ti, li, cell int) float64 {
			band := ti*len(levels) + li
			switch {
			case band == 0 && cell == 0:
				return -3
			case band == last && cell == rows*cols-1:
				return 104
			}
			return math.Mod(float64(band*7+cell*3), 100)
		},
	}
}
