package backend

import (
	"sort"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/sdifrance/era5check/grib1"
	"github.com/sdifrance/era5check/gribio"
	"github.com/sdifrance/era5check/grid"
	"github.com/sdifrance/era5check/locate"
)

// GRIBReader reads GRIB1 files. Bands are numbered by message order within
// a variable, the way GDAL and pygrib count them.
type GRIBReader struct {
	path    string
	file    *gribio.File
	verbose bool
}

// OpenGRIB decodes every message of the GRIB file at path.
func OpenGRIB(path string, opts Options) (*GRIBReader, error) {
	f, err := gribio.Open(path, gribio.ReadOptions{Verbose: opts.Verbose})
	if err != nil {
		return nil, err
	}
	return &GRIBReader{path: path, file: f, verbose: opts.Verbose}, nil
}

// NewGRIBReader wraps an already decoded file.
func NewGRIBReader(path string, f *gribio.File) *GRIBReader {
	return &GRIBReader{path: path, file: f}
}

// Variables returns the short names of the parameters present, sorted.
func (r *GRIBReader) Variables() ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, m := range r.file.GRIB1Messages() {
		name := m.ProductDefinition().Parameter().ShortName()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Hint derives the layout of variable from its messages. The messages must
// form a complete time by level product.
func (r *GRIBReader) Hint(variable string) (locate.Hint, error) {
	msgs, err := r.file.Select(variable)
	if err != nil {
		return locate.Hint{}, errors.Wrap(err, r.path)
	}
	if len(msgs) == 0 {
		return locate.Hint{}, errors.Errorf("%s: no messages for %q", r.path, variable)
	}
	var (
		times  []time.Time
		levels []float64
	)
	for _, m := range msgs {
		pd := m.ProductDefinition()
		times = append(times, pd.ValidTime())
		if level, ok := pd.Level(); ok {
			levels = append(levels, level)
		}
	}
	times = distinctTimes(times)
	levels = distinctFloats(levels)
	nLevels := len(levels)
	if nLevels == 0 {
		nLevels = 1
	}
	if len(times)*nLevels != len(msgs) {
		return locate.Hint{}, errors.Errorf("%s: %q has %d messages for %d times and %d levels", r.path, variable, len(msgs), len(times), nLevels)
	}
	hint := locate.Hint{
		Axes:   layout(len(times), len(levels)),
		Levels: levels,
		Times:  times,
	}
	if r.verbose {
		glog.Infof("%s: %s declares %s with %d times, %d levels", r.path, variable, hint.Axes, len(times), len(levels))
	}
	return hint, nil
}

// Read decodes the message at key.Index. The message must carry the time
// and level key names; files whose messages are not stored in time then
// ascending level order fail with ErrBandMismatch rather than being
// mislabelled.
func (r *GRIBReader) Read(key locate.BackendKey) (*grid.Grid, error) {
	if key.Addressing != locate.ByIndex {
		return nil, errors.Errorf("%s: GRIB bands are addressed by index, got %s", r.path, key)
	}
	msgs, err := r.file.Select(key.Variable)
	if err != nil {
		return nil, errors.Wrap(err, r.path)
	}
	if key.Index < 0 || key.Index >= len(msgs) {
		return nil, errors.Errorf("%s: %s out of range, %d bands", r.path, key, len(msgs))
	}
	m := msgs[key.Index]
	pd := m.ProductDefinition()
	level, hasLevel := pd.Level()
	if err := checkBand(key, pd.ValidTime(), level, hasLevel); err != nil {
		return nil, errors.Wrap(err, r.path)
	}
	return messageGrid(m)
}

func messageGrid(m *grib1.Message) (*grid.Grid, error) {
	rows, cols, err := m.Shape()
	if err != nil {
		return nil, err
	}
	values, err := m.Values()
	if err != nil {
		return nil, err
	}
	return grid.New(rows, cols, values)
}

// Close releases the decoded messages.
func (r *GRIBReader) Close() error {
	r.file = &gribio.File{}
	return nil
}
