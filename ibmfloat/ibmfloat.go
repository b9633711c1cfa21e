// Package ibmfloat converts between float64 and the IBM single precision
// hexadecimal floating point format used for GRIB1 reference values.
//
// See https://en.wikipedia.org/wiki/IBM_hexadecimal_floating-point.
package ibmfloat

import (
	"math"
)

const (
	signBit      = 0b1000_0000
	exponentMask = 0b0111_1111
	exponentBias = 64
	mantissaBits = 24
)

// Parse32 decodes the first four bytes of b as an IBM single precision number.
func Parse32(b []byte) float64 {
	// WMO 306 92.6.4:
	// R = (–1)^s × 2^(–24) × B × 16^(A–64)
	//   = (–1)^s × B × 2^(4A – 256 – 24)
	a := b[0] & exponentMask
	exp := 4*(int(a)-exponentBias) - mantissaBits

	m := (int(b[1]) << 16) | (int(b[2]) << 8) | int(b[3])
	out := math.Ldexp(float64(m), exp)
	if b[0]&signBit != 0 {
		return -out
	}
	return out
}

// Encode32 encodes v as an IBM single precision number. Values too small to
// represent encode as zero; values too large saturate at the largest
// representable magnitude.
func Encode32(v float64) [4]byte {
	var out [4]byte
	if v == 0 || math.IsNaN(v) {
		return out
	}
	if v < 0 {
		out[0] = signBit
		v = -v
	}

	exp := exponentBias
	for v >= 1 {
		v /= 16
		exp++
	}
	for v < 1.0/16 {
		v *= 16
		exp--
	}

	m := uint32(math.Round(math.Ldexp(v, mantissaBits)))
	if m >= 1<<mantissaBits {
		m >>= 4
		exp++
	}
	switch {
	case exp < 0:
		return [4]byte{}
	case exp > exponentMask:
		exp, m = exponentMask, 1<<mantissaBits-1
	}

	out[0] |= byte(exp)
	out[1] = byte(m >> 16)
	out[2] = byte(m >> 8)
	out[3] = byte(m)
	return out
}
