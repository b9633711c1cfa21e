package backend

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sdifrance/era5check/grid"
	"github.com/sdifrance/era5check/locate"
	"github.com/sdifrance/era5check/ncio"
)

// NetCDFReader reads NetCDF files by band index or by coordinate labels,
// following the key's addressing.
type NetCDFReader struct {
	file *ncio.File

	mu   sync.Mutex
	vars map[string]*ncio.Variable

	closeOnce sync.Once
}

// OpenNetCDF opens the NetCDF file at path.
func OpenNetCDF(path string) (*NetCDFReader, error) {
	f, err := ncio.Open(path)
	if err != nil {
		return nil, err
	}
	return &NetCDFReader{file: f, vars: map[string]*ncio.Variable{}}, nil
}

func (r *NetCDFReader) variable(name string) (*ncio.Variable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.vars[name]; ok {
		return v, nil
	}
	v, err := r.file.Variable(name)
	if err != nil {
		return nil, err
	}
	r.vars[name] = v
	return v, nil
}

// Variables returns the gridded variables of the file.
func (r *NetCDFReader) Variables() ([]string, error) {
	return r.file.Variables(), nil
}

// Hint returns the declared layout of variable.
func (r *NetCDFReader) Hint(variable string) (locate.Hint, error) {
	v, err := r.variable(variable)
	if err != nil {
		return locate.Hint{}, err
	}
	return v.Hint(), nil
}

// Read reads the band at key.Index, or the slice matching key's labels.
func (r *NetCDFReader) Read(key locate.BackendKey) (*grid.Grid, error) {
	v, err := r.variable(key.Variable)
	if err != nil {
		return nil, err
	}
	switch key.Addressing {
	case locate.ByIndex:
		t, _, level, hasLevel, err := v.Coordinates(key.Index)
		if err != nil {
			return nil, err
		}
		if err := checkBand(key, t, level, hasLevel); err != nil {
			return nil, errors.Wrap(err, r.file.Path())
		}
		return v.Band(key.Index)
	case locate.ByLabel:
		return v.Select(key)
	}
	return nil, errors.Errorf("%s: unknown addressing in %s", r.file.Path(), key)
}

// Close closes the file. Later calls do nothing.
func (r *NetCDFReader) Close() error {
	r.closeOnce.Do(r.file.Close)
	return nil
}
