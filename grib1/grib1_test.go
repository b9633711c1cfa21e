package grib1

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func Test_parse2ByteInt(t *testing.T) {
	tests := []struct {
		name string
		arg  []byte
		want int32
	}{
		{
			"positive number",
			[]byte{0, 16},
			16,
		},
		{
			"negative 3",
			[]byte{0b10000001, 3},
			-(256 + 3),
		},
		{
			"negative 1",
			[]byte{0b10000000, 1},
			-1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parse2ByteInt(tt.arg[0], tt.arg[1]); got != tt.want {
				t.Errorf("parse2ByteInt() = %v, want %v", got, tt.want)
			}
			b := make([]byte, 2)
			put2ByteInt(b, tt.want)
			if diff := cmp.Diff(tt.arg, b); diff != "" {
				t.Errorf("put2ByteInt(%d) mismatch (-want +got):\n%s", tt.want, diff)
			}
		})
	}
}

func Test_parse3ByteInt(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 90000, -90000, 359750} {
		b := make([]byte, 3)
		put3ByteInt(b, v)
		if got := parse3ByteInt(b[0], b[1], b[2]); got != v {
			t.Errorf("parse3ByteInt(put3ByteInt(%d)) = %d", v, got)
		}
	}
}

func rhField() Field {
	return Field{
		Parameter:     ParameterRelativeHumidity,
		LevelType:     LevelTypeIsobaric,
		Level:         1000,
		ReferenceTime: time.Date(2023, 2, 1, 6, 0, 0, 0, time.UTC),
		Rows:          2,
		Cols:          2,
		FirstLat:      -10,
		FirstLon:      110,
		LatIncrement:  -0.25,
		LonIncrement:  0.25,
		Values:        []float64{-5, 50, 101, 99},
	}
}

func TestEncodeRead1(t *testing.T) {
	data, err := Encode(rhField())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	msg, n, err := Read1(data)
	if err != nil {
		t.Fatalf("Read1() error: %v", err)
	}
	if n != len(data) {
		t.Errorf("Read1() consumed %d bytes, want %d", n, len(data))
	}

	pd := msg.ProductDefinition()
	if got, want := pd.Parameter().ShortName(), "r"; got != want {
		t.Errorf("ShortName() = %q, want %q", got, want)
	}
	if level, ok := pd.Level(); !ok || level != 1000 {
		t.Errorf("Level() = %v, %v; want 1000, true", level, ok)
	}
	if got, want := pd.ReferenceTime(), time.Date(2023, 2, 1, 6, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ReferenceTime() = %v, want %v", got, want)
	}
	if msg.Bitmap() != nil {
		t.Errorf("Bitmap() = %+v, want nil", msg.Bitmap())
	}

	rows, cols, err := msg.Shape()
	if err != nil || rows != 2 || cols != 2 {
		t.Fatalf("Shape() = %d, %d, %v; want 2, 2, nil", rows, cols, err)
	}
	ll := msg.GridDescription().LatLongGrid()
	if got, want := ll.Last().Lat().Degrees(), -10.25; got != want {
		t.Errorf("last latitude = %v, want %v", got, want)
	}

	got, err := msg.Values()
	if err != nil {
		t.Fatalf("Values() error: %v", err)
	}
	if diff := cmp.Diff([]float64{-5, 50, 101, 99}, got); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}
}

func TestValuesBitmapHoles(t *testing.T) {
	f := rhField()
	f.Values = []float64{math.NaN(), 12.5, 0, math.NaN()}
	data, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	msgs, err := Read(data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("Read() returned %d messages, want 1", len(msgs))
	}
	if !msgs[0].ProductDefinition().BitmapIncluded() {
		t.Errorf("BitmapIncluded() = false, want true")
	}
	got, err := msgs[0].Values()
	if err != nil {
		t.Fatalf("Values() error: %v", err)
	}
	want := []float64{math.NaN(), 12.5, 0, math.NaN()}
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}
}

func TestValuesDecimalScale(t *testing.T) {
	f := rhField()
	f.DecimalScaleFactor = 2
	f.BitsPerValue = 24
	f.Values = []float64{1.25, 2.5, 3.75, 100.01}
	data, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	msg, _, err := Read1(data)
	if err != nil {
		t.Fatalf("Read1() error: %v", err)
	}
	if got := msg.ProductDefinition().DecimalScaleFactor(); got != 2 {
		t.Errorf("DecimalScaleFactor() = %d, want 2", got)
	}
	got, err := msg.Values()
	if err != nil {
		t.Fatalf("Values() error: %v", err)
	}
	if diff := cmp.Diff(f.Values, got, cmpopts.EquateApprox(0, 1e-3)); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}
}

func TestValuesColumnMajorScan(t *testing.T) {
	f := rhField()
	f.Rows, f.Cols = 2, 3
	f.Values = []float64{0, 1, 2, 3, 4, 5}
	data, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	// Flag the points as j-consecutive: octet 28 of section 2.
	data[8+28+27] |= adjPointsJDirectionConsecutive

	msg, _, err := Read1(data)
	if err != nil {
		t.Fatalf("Read1() error: %v", err)
	}
	got, err := msg.Values()
	if err != nil {
		t.Fatalf("Values() error: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 2, 4, 1, 3, 5}, got); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadZeroPaddedMessages(t *testing.T) {
	var data []byte
	for _, level := range []int{1, 500, 1000} {
		f := rhField()
		f.Level = level
		msg, err := Encode(f)
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		data = append(data, 0, 0)
		data = append(data, msg...)
	}
	msgs, err := Read(data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	var levels []float64
	for _, m := range msgs {
		level, _ := m.ProductDefinition().Level()
		levels = append(levels, level)
	}
	if diff := cmp.Diff([]float64{1, 500, 1000}, levels); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
}

func TestRead1Errors(t *testing.T) {
	good, err := Encode(rhField())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	badEdition := append([]byte(nil), good...)
	badEdition[7] = 2
	truncated := good[:len(good)-6]
	badEnd := append([]byte(nil), good...)
	copy(badEnd[len(badEnd)-4:], "7776")

	for name, data := range map[string][]byte{
		"short":       []byte("GRI"),
		"not grib":    []byte("BUFR\x00\x00\x08\x01"),
		"edition 2":   badEdition,
		"truncated":   truncated,
		"bad end tag": badEnd,
	} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Read1(data); err == nil {
				t.Errorf("Read1() succeeded, want error")
			}
		})
	}
}

func TestValidTime(t *testing.T) {
	f := rhField()
	f.ForecastHours = 6
	data, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	msg, _, err := Read1(data)
	if err != nil {
		t.Fatalf("Read1() error: %v", err)
	}
	want := time.Date(2023, 2, 1, 12, 0, 0, 0, time.UTC)
	if got := msg.ProductDefinition().ValidTime(); !got.Equal(want) {
		t.Errorf("ValidTime() = %v, want %v", got, want)
	}
}

func TestParameterByName(t *testing.T) {
	for _, name := range []string{"r", "t2m", "sp", "tco3"} {
		p, ok := ParameterByName(name)
		if !ok {
			t.Errorf("ParameterByName(%q) not found", name)
			continue
		}
		if got := p.ShortName(); got != name {
			t.Errorf("ParameterByName(%q).ShortName() = %q", name, got)
		}
	}
	if _, ok := ParameterByName("nope"); ok {
		t.Errorf("ParameterByName(\"nope\") found a parameter")
	}
}
