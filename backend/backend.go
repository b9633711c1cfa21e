// Package backend adapts the GRIB1 and NetCDF decoders to a common Reader
// interface keyed by backend id.
package backend

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sdifrance/era5check/grid"
	"github.com/sdifrance/era5check/locate"
)

// Backend ids.
const (
	GRIB         = "grib"
	NetCDF       = "netcdf"
	NetCDFByBand = "netcdf-index"
)

var (
	// ErrUnsupportedFile is returned by Open for unknown file extensions.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrBandMismatch is returned when the band at a key's index holds a
	// different time or level than the key names.
	ErrBandMismatch = errors.New("band holds a different slice")
)

// Reader reads decoded 2D slices from one file.
//
// Reads are deterministic: the same key returns the same grid across reopens.
type Reader interface {
	// Hint returns the declared layout of variable.
	Hint(variable string) (locate.Hint, error)
	// Read decodes the slice addressed by key.
	Read(key locate.BackendKey) (*grid.Grid, error)
	// Variables lists the variables the file holds.
	Variables() ([]string, error)
	Close() error
}

// Options configures Open.
type Options struct {
	Verbose bool
}

// Open opens path with every backend that understands its extension. The
// returned readers may share state; close each of them.
func Open(path string, opts Options) (map[string]Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".grib", ".grb", ".grib1", ".grb1":
		r, err := OpenGRIB(path, opts)
		if err != nil {
			return nil, err
		}
		return map[string]Reader{GRIB: r}, nil
	case ".nc", ".nc4", ".netcdf", ".cdf":
		r, err := OpenNetCDF(path)
		if err != nil {
			return nil, err
		}
		return map[string]Reader{NetCDF: r, NetCDFByBand: r}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedFile, "%s", path)
}

// OpenAll opens every path and merges the readers. A backend id provided by
// more than one file is an error.
func OpenAll(paths []string, opts Options) (map[string]Reader, error) {
	out := map[string]Reader{}
	for _, p := range paths {
		readers, err := Open(p, opts)
		if err != nil {
			CloseAll(out)
			return nil, err
		}
		for id, r := range readers {
			if _, dup := out[id]; dup {
				CloseAll(out)
				CloseAll(readers)
				return nil, errors.Errorf("backend %q provided by more than one file (%s)", id, p)
			}
			out[id] = r
		}
	}
	return out, nil
}

// CloseAll closes every reader once, even when several ids share one.
func CloseAll(readers map[string]Reader) error {
	closed := map[Reader]bool{}
	var first error
	for _, id := range IDs(readers) {
		r := readers[id]
		if closed[r] {
			continue
		}
		closed[r] = true
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// IDs returns the backend ids of readers, sorted.
func IDs(readers map[string]Reader) []string {
	ids := make([]string, 0, len(readers))
	for id := range readers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// checkBand verifies that a band read by index holds the coordinates key
// names. t and level are the band's own coordinates.
func checkBand(key locate.BackendKey, t time.Time, level float64, hasLevel bool) error {
	if key.HasTime && !t.Equal(key.Time) {
		return errors.Wrapf(ErrBandMismatch, "%s holds time %s, want %s", key, t.UTC().Format(time.RFC3339), key.Time.UTC().Format(time.RFC3339))
	}
	if key.HasLevel && (!hasLevel || level != key.Level) {
		return errors.Wrapf(ErrBandMismatch, "%s holds level %g, want %g", key, level, key.Level)
	}
	return nil
}

// layout returns the smallest recognized axis order that holds nTimes by
// nLevels bands. Singleton axes are squeezed out.
func layout(nTimes, nLevels int) locate.AxisOrder {
	switch {
	case nTimes > 1 && nLevels > 1:
		return locate.LayoutTimeLevel
	case nLevels > 1:
		return locate.LayoutLevel
	case nTimes > 1:
		return locate.LayoutTime
	}
	return locate.LayoutGrid
}

func distinctTimes(ts []time.Time) []time.Time {
	var out []time.Time
	for _, t := range ts {
		dup := false
		for _, o := range out {
			if o.Equal(t) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, t)
		}
	}
	return out
}

func distinctFloats(vs []float64) []float64 {
	seen := map[float64]bool{}
	var out []float64
	for _, v := range vs {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
