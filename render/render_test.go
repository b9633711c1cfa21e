package render

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/sdifrance/era5check/grid"
	"gonum.org/v1/plot/vg"
)

func TestPNG(t *testing.T) {
	g, err := grid.FromRows([][]float64{
		{-5, 0, 25, 50},
		{75, 100, 101, math.NaN()},
	})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	opts := Options{Title: "r 1000 hPa", Min: 0, Max: 100, Width: 2 * vg.Inch, Height: vg.Inch}
	if err := PNG(&buf, g, opts); err != nil {
		t.Fatalf("PNG() error: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode() error: %v", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		t.Errorf("image bounds = %v, want non-empty", b)
	}
}

func TestPNGBadRange(t *testing.T) {
	g, _ := grid.FromRows([][]float64{{math.NaN(), math.NaN()}, {math.NaN(), math.NaN()}})
	tests := []struct {
		name     string
		min, max float64
	}{
		{"empty", 1, 1},
		{"inverted", 2, 1},
		{"nan", math.NaN(), math.NaN() + 1},
		{"nan max", 0, math.NaN()},
		{"infinite", math.Inf(-1), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := PNG(&bytes.Buffer{}, g, Options{Min: tt.min, Max: tt.max}); err == nil {
				t.Errorf("PNG() with range [%g, %g] succeeded, want error", tt.min, tt.max)
			}
		})
	}
}

func TestGridXYZ(t *testing.T) {
	g, _ := grid.FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	x := gridXYZ{g}
	if c, r := x.Dims(); c != 3 || r != 2 {
		t.Errorf("Dims() = %d, %d; want 3, 2", c, r)
	}
	if got := x.Z(0, 1); got != 1 {
		t.Errorf("Z(0, 1) = %v, want 1 (top row)", got)
	}
	if got := x.Z(2, 0); got != 6 {
		t.Errorf("Z(2, 0) = %v, want 6", got)
	}
}
