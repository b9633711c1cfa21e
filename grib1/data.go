package grib1

import (
	"fmt"
	"math"

	"github.com/sdifrance/era5check/ibmfloat"
)

// Bitmap marks which grid points have values in the binary data section.
type Bitmap struct {
	section3Length uint32
	// Number of unused bits at end of Section 3
	numberOfUnusedBitsAtEndOfSection3 uint8
	// If zero, a bit-map follows. Otherwise it refers to a predetermined
	// bit-map provided by the centre.
	tableReference uint32

	// One bit per grid point, ordered as defined in the grid definition.
	values []byte
}

func (s *Bitmap) parseBytes(data []byte) (int, error) {
	/* https://apps.ecmwf.int/codes/grib/format/grib1/sections/3/

	Octets	Key	Content
	1-3	section3Length	Length of section
	4	numberOfUnusedBitsAtEndOfSection3
	5-6	tableReference
	7-nn		Bit-map
	*/
	if len(data) < 6 {
		return 0, fmt.Errorf("GRIB section 3 must be at least 6 bytes long, got %d", len(data))
	}
	s.section3Length = parse3ByteUint(data[0], data[1], data[2])
	s.numberOfUnusedBitsAtEndOfSection3 = data[3]
	s.tableReference = parse2ByteUint(data[4], data[5])

	if s.section3Length < 6 || int(s.section3Length) > len(data) {
		return 0, fmt.Errorf("section 3 claims length %d, data size is %d", s.section3Length, len(data))
	}
	if s.tableReference != 0 {
		return 0, fmt.Errorf("predefined bitmap %d is not supported", s.tableReference)
	}
	s.values = data[6:s.section3Length]
	return int(s.section3Length), nil
}

func (s *Bitmap) isSet(k int) bool {
	return s.values[k/8]&(1<<(7-k%8)) != 0
}

type binaryDataSection struct {
	section4Length uint32
	// Flag (see Code table 11) (first 4 bits). Number of unused bits at end
	// of Section 4 (last 4 bits)
	dataFlag binaryDataFlag
	// Scale factor (E)
	binaryScaleFactor int32
	// Reference value (minimum of packed values)
	referenceValue float64
	// Number of bits containing each packed value
	bitsPerValue uint8

	packed []byte
}

func (s *binaryDataSection) parseBytes(data []byte) (int, error) {
	/* https://codes.ecmwf.int/grib/format/grib1/sections/4/

	Octets	Key	Content
	1-3	section4Length	Length of section
	4	dataFlag	Flag (see Code table 11) (first 4 bits). Number of unused bits at end of Section 4 (last 4 bits)
	5-6	binaryScaleFactor	Scale factor (E)
	7-10	referenceValue	Reference value (minimum of packed values)
	11	bitsPerValue	Number of bits containing each packed value
	12-nn		Packed values
	*/
	if len(data) < 11 {
		return 0, fmt.Errorf("GRIB section 4 must be at least 11 bytes long, got %d", len(data))
	}
	s.section4Length = parse3ByteUint(data[0], data[1], data[2])
	s.dataFlag = binaryDataFlag(data[3])
	s.binaryScaleFactor = parse2ByteInt(data[4], data[5])
	s.referenceValue = ibmfloat.Parse32(data[6:10])
	s.bitsPerValue = data[10]

	if s.section4Length < 11 || int(s.section4Length) > len(data) {
		return 0, fmt.Errorf("section 4 claims length %d, data size is %d", s.section4Length, len(data))
	}
	if s.dataFlag.sphericalHarmonics() || s.dataFlag.complexPacking() {
		return 0, fmt.Errorf("only grid point data with simple packing is supported, flag = %08b", uint8(s.dataFlag))
	}
	if s.bitsPerValue > 32 {
		return 0, fmt.Errorf("bitsPerValue = %d, want at most 32", s.bitsPerValue)
	}
	s.packed = data[11:s.section4Length]
	return int(s.section4Length), nil
}

// unpack decodes count values with simple packing. The actual value Y is
// linked to the coded value X, the reference value R, the binary scale
// factor E and the decimal scale factor D by
//
//	Y × 10^D = R + X × 2^E
func (s *binaryDataSection) unpack(count int, decimalScaleFactor int32) ([]float64, error) {
	out := make([]float64, count)
	width := int(s.bitsPerValue)
	if need := (count*width + 7) / 8; need > len(s.packed) {
		return nil, fmt.Errorf("%d values of %d bits need %d bytes, section holds %d", count, width, need, len(s.packed))
	}

	scale := math.Pow(10, -float64(decimalScaleFactor))
	bit := 0
	for k := range out {
		var x uint64
		for b := 0; b < width; b++ {
			x <<= 1
			if s.packed[bit/8]&(1<<(7-bit%8)) != 0 {
				x |= 1
			}
			bit++
		}
		out[k] = (s.referenceValue + math.Ldexp(float64(x), int(s.binaryScaleFactor))) * scale
	}
	return out, nil
}

// binaryDataFlag is https://codes.ecmwf.int/grib/format/grib1/flag/11/.
type binaryDataFlag uint8

const (
	binaryDataFlagSphericalHarmonicCoefficients = 1 << (8 - 1)
	binaryDataFlagComplexOrSecondOrderPacking   = 1 << (8 - 2)
	binaryDataFlagIntegerValues                 = 1 << (8 - 3)
)

func (f binaryDataFlag) sphericalHarmonics() bool {
	return f&binaryDataFlagSphericalHarmonicCoefficients != 0
}

func (f binaryDataFlag) complexPacking() bool {
	return f&binaryDataFlagComplexOrSecondOrderPacking != 0
}
