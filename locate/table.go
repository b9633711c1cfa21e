package locate

import (
	"fmt"

	"github.com/pkg/errors"
)

// Addressing says how a backend selects a band.
type Addressing int

const (
	// ByIndex selects the n-th 2D band in storage order.
	ByIndex Addressing = iota
	// ByLabel selects by time and level coordinate values.
	ByLabel
)

func (a Addressing) String() string {
	switch a {
	case ByIndex:
		return "index"
	case ByLabel:
		return "label"
	}
	return fmt.Sprintf("Addressing(%d)", int(a))
}

// ParseAddressing parses "index" or "label".
func ParseAddressing(s string) (Addressing, error) {
	switch s {
	case "index", "":
		return ByIndex, nil
	case "label":
		return ByLabel, nil
	}
	return 0, errors.Errorf("unknown addressing %q", s)
}

// Order is the storage order of a coordinate axis.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "descending"
	}
	return "ascending"
}

// ParseOrder parses "ascending" or "descending"; the empty string is ascending.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "ascending", "":
		return Ascending, nil
	case "descending":
		return Descending, nil
	}
	return 0, errors.Errorf("unknown order %q", s)
}

// LevelMatch says how label addressing matches a level coordinate.
type LevelMatch int

const (
	// ExactLevel requires the level to be present in the file.
	ExactLevel LevelMatch = iota
	// NearestLevel reads the closest level present.
	NearestLevel
)

func (m LevelMatch) String() string {
	if m == NearestLevel {
		return "nearest"
	}
	return "exact"
}

// ParseLevelMatch parses "exact" or "nearest"; the empty string is exact.
func ParseLevelMatch(s string) (LevelMatch, error) {
	switch s {
	case "exact", "":
		return ExactLevel, nil
	case "nearest":
		return NearestLevel, nil
	}
	return 0, errors.Errorf("unknown level match %q", s)
}

// Rule tells how one backend addresses variables declared with Axes.
type Rule struct {
	Axes       AxisOrder
	Addressing Addressing
	LevelOrder Order
	TimeOrder  Order
	// LevelMatch applies to label addressing only.
	LevelMatch LevelMatch
}

// Rules is the ordered rule list of one backend. The first rule whose Axes
// equal the declared layout applies.
type Rules []Rule

func (rs Rules) match(axes AxisOrder) (Rule, bool) {
	for _, r := range rs {
		if r.Axes.Equal(axes) {
			return r, true
		}
	}
	return Rule{}, false
}

// Table holds the addressing rules of every backend, keyed by backend id.
type Table map[string]Rules

// Validate checks that every rule names a recognized layout.
func (t Table) Validate() error {
	for id, rules := range t {
		if len(rules) == 0 {
			return errors.Errorf("backend %q has no rules", id)
		}
		for i, r := range rules {
			if !Recognized(r.Axes) {
				return errors.Wrapf(ErrUnsupportedDimensionLayout, "backend %q rule %d: %q", id, i, r.Axes)
			}
		}
	}
	return nil
}

// IndexRules returns index rules with the given orders for every recognized layout.
func IndexRules(levels, times Order) Rules {
	out := make(Rules, len(recognized))
	for i, axes := range recognized {
		out[i] = Rule{Axes: axes, Addressing: ByIndex, LevelOrder: levels, TimeOrder: times}
	}
	return out
}

// LabelRules returns label rules for every recognized layout.
func LabelRules() Rules {
	out := make(Rules, len(recognized))
	for i, axes := range recognized {
		out[i] = Rule{Axes: axes, Addressing: ByLabel}
	}
	return out
}
