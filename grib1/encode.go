package grib1

import (
	"fmt"
	"math"
	"time"

	"github.com/sdifrance/era5check/ibmfloat"
)

// Field describes a regular lat/lon field to be written as a GRIB1 message.
type Field struct {
	Parameter Parameter
	LevelType LevelType
	Level     int
	// ReferenceTime is written with minute precision.
	ReferenceTime time.Time
	// ForecastHours is written as P1 with an hourly unit.
	ForecastHours int

	Rows, Cols                 int
	FirstLat, FirstLon         float64
	LatIncrement, LonIncrement float64

	// Values are row-major, rows running from FirstLat in steps of
	// LatIncrement. NaN values are written as bitmap holes.
	Values []float64

	DecimalScaleFactor int
	// BitsPerValue defaults to 16.
	BitsPerValue int
}

// Encode writes f as a single GRIB1 message with simple packing.
func Encode(f Field) ([]byte, error) {
	if f.Rows <= 0 || f.Cols <= 0 || f.Rows > math.MaxUint16 || f.Cols > math.MaxUint16 {
		return nil, fmt.Errorf("invalid grid shape %dx%d", f.Rows, f.Cols)
	}
	if len(f.Values) != f.Rows*f.Cols {
		return nil, fmt.Errorf("got %d values for a %dx%d grid", len(f.Values), f.Rows, f.Cols)
	}
	if f.BitsPerValue == 0 {
		f.BitsPerValue = 16
	}
	if f.BitsPerValue > 32 {
		return nil, fmt.Errorf("bitsPerValue = %d, want at most 32", f.BitsPerValue)
	}
	year := f.ReferenceTime.UTC().Year()
	if year < 1901 || year > 2100 {
		return nil, fmt.Errorf("reference year %d is out of range", year)
	}

	var present []float64
	hasHoles := false
	for _, v := range f.Values {
		if math.IsNaN(v) {
			hasHoles = true
			continue
		}
		present = append(present, v*math.Pow(10, float64(f.DecimalScaleFactor)))
	}

	var out []byte
	out = append(out, "GRIB"...)
	out = append(out, 0, 0, 0, 1) // length patched below

	out = append(out, encodeProductDefinition(f, hasHoles)...)
	out = append(out, encodeLatLongGrid(f)...)
	if hasHoles {
		out = append(out, encodeBitmap(f.Values)...)
	}
	out = append(out, encodeBinaryData(present, f.BitsPerValue)...)
	out = append(out, "7777"...)

	if len(out) >= 1<<24 {
		return nil, fmt.Errorf("message of %d bytes does not fit a GRIB1 length field", len(out))
	}
	put3ByteUint(out[4:7], uint32(len(out)))
	return out, nil
}

func encodeProductDefinition(f Field, hasHoles bool) []byte {
	b := make([]byte, 28)
	put3ByteUint(b[0:3], 28)
	b[3] = 128 // ECMWF local table 2
	b[4] = 98  // ECMWF
	b[6] = 255 // grid defined in section 2
	b[7] = section2Included
	if hasHoles {
		b[7] |= section3Included
	}
	b[8] = byte(f.Parameter)
	b[9] = byte(f.LevelType)
	put2ByteUint(b[10:12], uint32(f.Level))

	ref := f.ReferenceTime.UTC()
	century := (ref.Year()-1)/100 + 1
	b[12] = byte(ref.Year() - (century-1)*100)
	b[13] = byte(ref.Month())
	b[14] = byte(ref.Day())
	b[15] = byte(ref.Hour())
	b[16] = byte(ref.Minute())
	b[17] = byte(UnitOfTimeHour)
	b[18] = byte(f.ForecastHours)
	b[24] = byte(century)
	put2ByteInt(b[26:28], int32(f.DecimalScaleFactor))
	return b
}

func encodeLatLongGrid(f Field) []byte {
	b := make([]byte, 32)
	put3ByteUint(b[0:3], 32)
	b[4] = 255
	b[5] = byte(DataRepresentationTypeLL)
	put2ByteUint(b[6:8], uint32(f.Cols))
	put2ByteUint(b[8:10], uint32(f.Rows))

	lastLat := f.FirstLat + float64(f.Rows-1)*f.LatIncrement
	lastLon := f.FirstLon + float64(f.Cols-1)*f.LonIncrement
	put3ByteInt(b[10:13], milliDegrees(f.FirstLat))
	put3ByteInt(b[13:16], milliDegrees(f.FirstLon))
	b[16] = 1 << 7 // direction increments given
	put3ByteInt(b[17:20], milliDegrees(lastLat))
	put3ByteInt(b[20:23], milliDegrees(lastLon))
	put2ByteUint(b[23:25], uint32(math.Abs(float64(milliDegrees(f.LonIncrement)))))
	put2ByteUint(b[25:27], uint32(math.Abs(float64(milliDegrees(f.LatIncrement)))))

	var mode scanningMode
	if f.LonIncrement < 0 {
		mode |= pointsScanInMinusIDirection
	}
	if f.LatIncrement > 0 {
		mode |= pointsScanInPlusJDirection
	}
	b[27] = byte(mode)
	return b
}

func encodeBitmap(values []float64) []byte {
	n := (len(values) + 7) / 8
	length := 6 + n
	if length%2 == 1 {
		length++
	}
	b := make([]byte, length)
	put3ByteUint(b[0:3], uint32(length))
	b[3] = byte((length-6)*8 - len(values))
	for k, v := range values {
		if !math.IsNaN(v) {
			b[6+k/8] |= 1 << (7 - k%8)
		}
	}
	return b
}

func encodeBinaryData(values []float64, width int) []byte {
	ref, e := 0.0, 0
	if len(values) > 0 {
		lo, hi := values[0], values[0]
		for _, v := range values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		r := ibmfloat.Encode32(lo)
		ref = ibmfloat.Parse32(r[:])
		if span := hi - ref; span > 0 {
			e = int(math.Ceil(math.Log2(span / (math.Ldexp(1, width) - 1))))
		}
	}

	dataBits := len(values) * width
	length := 11 + (dataBits+7)/8
	if length%2 == 1 {
		length++
	}
	b := make([]byte, length)
	put3ByteUint(b[0:3], uint32(length))
	b[3] = byte(length*8 - 11*8 - dataBits) // unused bits, simple packing of floats
	put2ByteInt(b[4:6], int32(e))
	r := ibmfloat.Encode32(ref)
	copy(b[6:10], r[:])
	b[10] = byte(width)

	limit := math.Ldexp(1, width) - 1
	bit := 0
	for _, v := range values {
		x := math.Round(math.Ldexp(v-ref, -e))
		x = math.Max(0, math.Min(limit, x))
		ux := uint64(x)
		for k := width - 1; k >= 0; k-- {
			if ux&(1<<k) != 0 {
				b[11+bit/8] |= 1 << (7 - bit%8)
			}
			bit++
		}
	}
	return b
}

func milliDegrees(deg float64) int32 {
	return int32(math.Round(deg * 1000))
}

func put3ByteUint(b []byte, v uint32) {
	b[0], b[1], b[2] = byte(v>>16), byte(v>>8), byte(v)
}

func put2ByteUint(b []byte, v uint32) {
	b[0], b[1] = byte(v>>8), byte(v)
}

func put2ByteInt(b []byte, v int32) {
	if v < 0 {
		put2ByteUint(b, uint32(-v)|1<<15)
		return
	}
	put2ByteUint(b, uint32(v))
}

func put3ByteInt(b []byte, v int32) {
	if v < 0 {
		put3ByteUint(b, uint32(-v)|1<<23)
		return
	}
	put3ByteUint(b, uint32(v))
}
