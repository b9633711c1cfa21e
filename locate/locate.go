// Package locate maps a logical (variable, time, level) slice onto the key a
// particular decoder needs to read the same 2D field.
//
// Decoders disagree on how they address bands: some count messages in file
// order, some count along a level axis they store in descending order, and
// some select by coordinate labels. The differences are described by a Table
// of Rules rather than by per-decoder branches.
package locate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Errors returned by Resolve.
var (
	ErrUnsupportedDimensionLayout = errors.New("unsupported dimension layout")
	ErrAmbiguousIndex             = errors.New("ambiguous index")
	ErrUnknownBackend             = errors.New("unknown backend")
	ErrSliceNotFound              = errors.New("slice not found")
)

// Axis names a dimension of a stored variable.
type Axis string

// Logical axes.
const (
	AxisTime  Axis = "time"
	AxisLevel Axis = "level"
	AxisLat   Axis = "lat"
	AxisLon   Axis = "lon"
)

// AxisOrder is the declared order of a variable's dimensions, slowest varying first.
type AxisOrder []Axis

// ParseAxisOrder parses a comma separated list such as "time,level,lat,lon".
func ParseAxisOrder(s string) AxisOrder {
	var out AxisOrder
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, Axis(a))
		}
	}
	return out
}

func (o AxisOrder) String() string {
	s := make([]string, len(o))
	for i, a := range o {
		s[i] = string(a)
	}
	return strings.Join(s, ",")
}

// Equal reports whether o and p list the same axes in the same order.
func (o AxisOrder) Equal(p AxisOrder) bool {
	if len(o) != len(p) {
		return false
	}
	for i := range o {
		if o[i] != p[i] {
			return false
		}
	}
	return true
}

// Has reports whether a is one of the axes.
func (o AxisOrder) Has(a Axis) bool {
	for _, b := range o {
		if a == b {
			return true
		}
	}
	return false
}

// Recognized layouts. Every layout ends with the two grid axes.
var (
	LayoutTimeLevel = AxisOrder{AxisTime, AxisLevel, AxisLat, AxisLon}
	LayoutLevel     = AxisOrder{AxisLevel, AxisLat, AxisLon}
	LayoutTime      = AxisOrder{AxisTime, AxisLat, AxisLon}
	LayoutGrid      = AxisOrder{AxisLat, AxisLon}
)

var recognized = []AxisOrder{LayoutTimeLevel, LayoutLevel, LayoutTime, LayoutGrid}

// Recognized reports whether o is one of the layouts the locator can index.
func Recognized(o AxisOrder) bool {
	for _, r := range recognized {
		if r.Equal(o) {
			return true
		}
	}
	return false
}

// LogicalSlice identifies one 2D field independently of any decoder.
type LogicalSlice struct {
	Variable string
	// Time is the valid time; the zero Time means no timestamp was given.
	Time time.Time
	// Level is the pressure level in hPa, meaningful when LevelSet is true.
	Level    float64
	LevelSet bool
}

// At returns the slice of variable at time t and pressure level.
func At(variable string, t time.Time, level float64) LogicalSlice {
	return LogicalSlice{Variable: variable, Time: t, Level: level, LevelSet: true}
}

// Surface returns the slice of a single level variable at time t.
func Surface(variable string, t time.Time) LogicalSlice {
	return LogicalSlice{Variable: variable, Time: t}
}

func (s LogicalSlice) String() string {
	var b strings.Builder
	b.WriteString(s.Variable)
	if !s.Time.IsZero() {
		b.WriteString(" @ ")
		b.WriteString(s.Time.UTC().Format(time.RFC3339))
	}
	if s.LevelSet {
		fmt.Fprintf(&b, " %g hPa", s.Level)
	}
	return b.String()
}

// Hint is the declared layout of one variable in one file, inspected once by
// its reader. Levels and Times list the coordinate values present, in any order.
type Hint struct {
	Axes   AxisOrder
	Levels []float64
	Times  []time.Time
}

// BackendKey addresses a LogicalSlice within one backend.
type BackendKey struct {
	Backend    string
	Variable   string
	Addressing Addressing
	// Index is the zero-based band number in the backend's storage order.
	Index int
	// Labels select the slice under label addressing. Under index addressing
	// they name the coordinates the band at Index must hold.
	Time       time.Time
	Level      float64
	HasTime    bool
	HasLevel   bool
	LevelMatch LevelMatch
}

func (k BackendKey) String() string {
	if k.Addressing == ByIndex {
		return fmt.Sprintf("%s:%s[%d]", k.Backend, k.Variable, k.Index)
	}
	var sel []string
	if k.HasTime {
		sel = append(sel, "time="+k.Time.UTC().Format(time.RFC3339))
	}
	if k.HasLevel {
		op := "="
		if k.LevelMatch == NearestLevel {
			op = "~"
		}
		sel = append(sel, fmt.Sprintf("level%s%g", op, k.Level))
	}
	return fmt.Sprintf("%s:%s{%s}", k.Backend, k.Variable, strings.Join(sel, ","))
}

// Resolve computes the key backendID needs to read slice, given the layout
// hint of the file being read.
func (t Table) Resolve(slice LogicalSlice, backendID string, hint Hint) (BackendKey, error) {
	rules, ok := t[backendID]
	if !ok {
		return BackendKey{}, errors.Wrapf(ErrUnknownBackend, "%q", backendID)
	}
	if !Recognized(hint.Axes) {
		return BackendKey{}, errors.Wrapf(ErrUnsupportedDimensionLayout, "%s declares %q", backendID, hint.Axes)
	}
	rule, ok := rules.match(hint.Axes)
	if !ok {
		return BackendKey{}, errors.Wrapf(ErrUnsupportedDimensionLayout, "%s has no rule for %q", backendID, hint.Axes)
	}

	hasTime := hint.Axes.Has(AxisTime)
	hasLevel := hint.Axes.Has(AxisLevel)
	if hasTime && slice.Time.IsZero() {
		return BackendKey{}, errors.Wrapf(ErrAmbiguousIndex, "%s layout %q needs a timestamp, got %s", backendID, hint.Axes, slice)
	}
	if hasLevel && !slice.LevelSet {
		return BackendKey{}, errors.Wrapf(ErrAmbiguousIndex, "%s layout %q needs a level, got %s", backendID, hint.Axes, slice)
	}

	key := BackendKey{
		Backend:    backendID,
		Variable:   slice.Variable,
		Addressing: rule.Addressing,
		Time:       slice.Time,
		Level:      slice.Level,
		HasTime:    hasTime,
		HasLevel:   hasLevel,
	}
	if rule.Addressing == ByLabel {
		key.LevelMatch = rule.LevelMatch
		return key, nil
	}

	timePos := 0
	if hasTime {
		pos, _, ok := position(hint.Times, slice.Time, rule.TimeOrder, timeLess, timeEqual)
		if !ok {
			return BackendKey{}, errors.Wrapf(ErrSliceNotFound, "%s has no time %s", backendID, slice.Time.UTC().Format(time.RFC3339))
		}
		timePos = pos
	} else if !slice.Time.IsZero() && len(hint.Times) > 0 && !contains(hint.Times, slice.Time, timeEqual) {
		return BackendKey{}, errors.Wrapf(ErrSliceNotFound, "%s has no time %s", backendID, slice.Time.UTC().Format(time.RFC3339))
	}

	levelPos, nLevels := 0, 1
	if hasLevel {
		pos, n, ok := position(hint.Levels, slice.Level, rule.LevelOrder, floatLess, floatEqual)
		if !ok {
			return BackendKey{}, errors.Wrapf(ErrSliceNotFound, "%s has no level %g", backendID, slice.Level)
		}
		levelPos, nLevels = pos, n
	} else if slice.LevelSet && len(hint.Levels) > 0 && !contains(hint.Levels, slice.Level, floatEqual) {
		return BackendKey{}, errors.Wrapf(ErrSliceNotFound, "%s has no level %g", backendID, slice.Level)
	}

	key.Index = timePos*nLevels + levelPos
	return key, nil
}

// position returns the index of v among the distinct values sorted
// ascending, mirrored for descending storage, and the number of distinct values.
func position[T any](values []T, v T, order Order, less func(a, b T) bool, equal func(a, b T) bool) (int, int, bool) {
	sorted := append([]T(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	distinct := sorted[:0]
	for i, s := range sorted {
		if i == 0 || !equal(s, distinct[len(distinct)-1]) {
			distinct = append(distinct, s)
		}
	}
	for i, s := range distinct {
		if equal(s, v) {
			if order == Descending {
				i = len(distinct) - 1 - i
			}
			return i, len(distinct), true
		}
	}
	return 0, len(distinct), false
}

func contains[T any](values []T, v T, equal func(a, b T) bool) bool {
	for _, s := range values {
		if equal(s, v) {
			return true
		}
	}
	return false
}

func timeLess(a, b time.Time) bool  { return a.Before(b) }
func timeEqual(a, b time.Time) bool { return a.Equal(b) }
func floatLess(a, b float64) bool   { return a < b }
func floatEqual(a, b float64) bool  { return a == b }
