// Package scan evaluates a grid against the physical range of its variable.
package scan

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sdifrance/era5check/grid"
)

// ErrUnknownVariable is returned when the policy has no bounds for a variable.
var ErrUnknownVariable = errors.New("unknown variable")

// Bounds is the valid range of one variable. A nil field is unbounded or absent.
type Bounds struct {
	Min *float64
	Max *float64
	// NoData is a sentinel value that marks a cell as null.
	NoData *float64
	// SuspectAbove flags cells strictly above it as likely NODATA markers
	// rather than physical values.
	SuspectAbove *float64
}

// Policy maps variable names to their bounds.
type Policy map[string]Bounds

// Validate checks Min <= Max for every variable.
func (p Policy) Validate() error {
	for name, b := range p {
		if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
			return errors.Errorf("variable %q: min %g > max %g", name, *b.Min, *b.Max)
		}
	}
	return nil
}

// Float returns a pointer to v, for building Bounds literals.
func Float(v float64) *float64 { return &v }

// Result summarizes one scanned grid.
type Result struct {
	Cells           int
	NullCount       int
	BelowMinCount   int
	BelowMinPercent float64
	AboveMaxCount   int
	AboveMaxPercent float64
	// MinObserved and MaxObserved are NaN when every cell is null.
	MinObserved  float64
	MaxObserved  float64
	SuspectCount int
}

// HasNulls reports whether any cell was null.
func (r Result) HasNulls() bool { return r.NullCount > 0 }

// Scan counts null, below-range and above-range cells of g. Null cells are
// excluded from every other statistic.
func Scan(g *grid.Grid, variable string, policy Policy) (Result, error) {
	b, ok := policy[variable]
	if !ok {
		return Result{}, errors.Wrapf(ErrUnknownVariable, "%q", variable)
	}

	res := Result{
		Cells:       g.Cells(),
		MinObserved: math.NaN(),
		MaxObserved: math.NaN(),
	}
	seen := false
	for _, v := range g.Values() {
		if math.IsNaN(v) || (b.NoData != nil && v == *b.NoData) {
			res.NullCount++
			continue
		}
		if !seen || v < res.MinObserved {
			res.MinObserved = v
		}
		if !seen || v > res.MaxObserved {
			res.MaxObserved = v
		}
		seen = true
		if b.Min != nil && v < *b.Min {
			res.BelowMinCount++
		}
		if b.Max != nil && v > *b.Max {
			res.AboveMaxCount++
		}
		if b.SuspectAbove != nil && v > *b.SuspectAbove {
			res.SuspectCount++
		}
	}
	res.BelowMinPercent = percent(res.BelowMinCount, res.Cells)
	res.AboveMaxPercent = percent(res.AboveMaxCount, res.Cells)
	return res, nil
}

// percent returns 100*n/total rounded to two decimals.
func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(10000*float64(n)/float64(total)) / 100
}
