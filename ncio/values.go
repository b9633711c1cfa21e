package ncio

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"golang.org/x/exp/constraints"
)

// flatten converts the nested slices returned by a VarGetter into row-major
// float64 values.
func flatten(v interface{}) ([]float64, error) {
	return appendValues(nil, reflect.ValueOf(v))
}

func appendValues(out []float64, rv reflect.Value) ([]float64, error) {
	if !rv.IsValid() {
		return nil, fmt.Errorf("no values")
	}
	switch x := rv.Interface().(type) {
	case []float64:
		return append(out, x...), nil
	case []float32:
		return appendNumbers(out, x), nil
	case []int8:
		return appendNumbers(out, x), nil
	case []int16:
		return appendNumbers(out, x), nil
	case []int32:
		return appendNumbers(out, x), nil
	case []int64:
		return appendNumbers(out, x), nil
	case []uint8:
		return appendNumbers(out, x), nil
	case []uint16:
		return appendNumbers(out, x), nil
	case []uint32:
		return appendNumbers(out, x), nil
	case []uint64:
		return appendNumbers(out, x), nil
	}
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("unsupported value type %s", rv.Type())
	}
	for i := 0; i < rv.Len(); i++ {
		var err error
		if out, err = appendValues(out, rv.Index(i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendNumbers[T constraints.Integer | constraints.Float](out []float64, vals []T) []float64 {
	for _, v := range vals {
		out = append(out, float64(v))
	}
	return out
}

// number converts a scalar or single element attribute value to float64.
func number(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Slice:
		if rv.Len() == 0 {
			return 0, false
		}
		return number(rv.Index(0).Interface())
	}
	return 0, false
}

func attrFloat(am api.AttributeMap, key string) (float64, bool) {
	if am == nil {
		return 0, false
	}
	v, ok := am.Get(key)
	if !ok {
		return 0, false
	}
	return number(v)
}

func attrString(am api.AttributeMap, key string) (string, bool) {
	if am == nil {
		return "", false
	}
	v, ok := am.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// packing holds the CF packing and missing value attributes of a variable.
type packing struct {
	scale   float64
	offset  float64
	missing []float64
}

func readPacking(am api.AttributeMap) packing {
	p := packing{scale: 1}
	if v, ok := attrFloat(am, "scale_factor"); ok {
		p.scale = v
	}
	if v, ok := attrFloat(am, "add_offset"); ok {
		p.offset = v
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrFloat(am, key); ok {
			p.missing = append(p.missing, v)
		}
	}
	return p
}

// apply unpacks raw in place. Missing values become NaN.
func (p packing) apply(raw []float64) {
	for i, v := range raw {
		if p.isMissing(v) {
			raw[i] = math.NaN()
			continue
		}
		raw[i] = v*p.scale + p.offset
	}
}

func (p packing) isMissing(v float64) bool {
	for _, m := range p.missing {
		if v == m {
			return true
		}
	}
	return false
}

var timeUnits = map[string]time.Duration{
	"days":    24 * time.Hour,
	"day":     24 * time.Hour,
	"hours":   time.Hour,
	"hour":    time.Hour,
	"minutes": time.Minute,
	"minute":  time.Minute,
	"seconds": time.Second,
	"second":  time.Second,
}

var referenceLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-1-2 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-1-2",
}

// decodeTimes converts CF time offsets such as "hours since 1900-01-01" to UTC times.
func decodeTimes(units string, offsets []float64) ([]time.Time, error) {
	unit, ref, ok := strings.Cut(units, " since ")
	if !ok {
		return nil, fmt.Errorf("time units %q: want \"<unit> since <reference>\"", units)
	}
	step, ok := timeUnits[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return nil, fmt.Errorf("time units %q: unknown unit %q", units, unit)
	}
	ref = strings.TrimSuffix(strings.TrimSpace(ref), " UTC")
	var base time.Time
	var err error
	for _, layout := range referenceLayouts {
		if base, err = time.ParseInLocation(layout, ref, time.UTC); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("time units %q: bad reference time: %w", units, err)
	}
	out := make([]time.Time, len(offsets))
	for i, v := range offsets {
		out[i] = base.Add(time.Duration(math.Round(v * float64(step)))).UTC()
	}
	return out, nil
}
