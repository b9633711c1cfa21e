package grib1

import (
	"fmt"
)

// GridDescription contains information about the coordinate system of a message.
type GridDescription struct {
	section2Length                   uint32
	numberOfVerticalCoordinateValues uint8
	pvlLocation                      uint8
	dataRepresentationType           DataRepresentationType

	// parsedValue is the parsed value of the grid description based on
	// dataRepresentationType, e.g. *LatLongGrid.
	parsedValue interface{}
}

func (s *GridDescription) parseBytes(data []byte) (int, error) {
	/* https://apps.ecmwf.int/codes/grib/format/grib1/sections/2/

	Octets	Key	Content
	1-3	section2Length	Length of section (octets)
	4	numberOfVerticalCoordinateValues	NV number of vertical coordinate parameters
	5	pvlLocation	PV or PL location, or 255
	6	dataRepresentationType	Data representation type (see Code table 6)
	7-32		Grid definition (according to data representation type octet 6 above)
	*/
	if len(data) < 6 {
		return 0, fmt.Errorf("GRIB section 2 must be at least 6 bytes long, got %d", len(data))
	}
	s.section2Length = parse3ByteUint(data[0], data[1], data[2])
	s.numberOfVerticalCoordinateValues = data[3]
	s.pvlLocation = data[4]
	s.dataRepresentationType = DataRepresentationType(data[5])

	if s.section2Length < 6 || int(s.section2Length) > len(data) {
		return 0, fmt.Errorf("section 2 claims length %d, data size is %d", s.section2Length, len(data))
	}

	representationBytes := data[6:s.section2Length]
	switch s.dataRepresentationType {
	case DataRepresentationTypeLL:
		grid := &LatLongGrid{}
		if err := grid.parseBytes(representationBytes); err != nil {
			return 0, fmt.Errorf("section 2 failed to parse DataRepresentationTypeLL: %w", err)
		}
		s.parsedValue = grid
	default:
		// Don't attempt to parse other projections.
		s.parsedValue = unparsedGridDescription(representationBytes)
	}

	return int(s.section2Length), nil
}

// LatLongGrid returns the LatLongGrid parsed from the GridDescription iff
// the DataRepresentationType is DataRepresentationTypeLL. Otherwise, returns
// nil.
func (s *GridDescription) LatLongGrid() *LatLongGrid {
	if x, ok := s.parsedValue.(*LatLongGrid); ok {
		return x
	}
	return nil
}

// unparsedGridDescription stores the part of GridDescription that wasn't parsed.
type unparsedGridDescription []byte

// LatLongGrid specifies a latitude/longitude grid or equidistant cylindrical points.
type LatLongGrid struct {
	numPointsAlongParallel, numPointsAlongMeridian uint16
	firstGridPoint, lastGridPoint                  LatLng
	parallelIncrement, meridianIncrement           QuantizedAngle
	resolutionAndComponentFlags                    uint8
	scanningMode                                   scanningMode
}

func (s *LatLongGrid) parseBytes(data []byte) error {
	/* https://codes.ecmwf.int/grib/format/grib1/grids/0/

	Octets	Key	Content
	7-8	Ni	number of points along a parallel
	9-10	Nj	number of points along a meridian
	11-13	latitudeOfFirstGridPoint	La1
	14-16	longitudeOfFirstGridPoint	Lo1
	17	resolutionAndComponentFlags	(see Code table 7)
	18-20	latitudeOfLastGridPoint	La2
	21-23	longitudeOfLastGridPoint	Lo2
	24-25	iDirectionIncrement	Di
	26-27	jDirectionIncrement	Dj
	28	scanningMode	(flags see Flag/Code table 8)
	*/
	if len(data) < 22 {
		return fmt.Errorf("lat/lon grid definition must be at least 22 bytes long, got %d", len(data))
	}
	s.numPointsAlongParallel = uint16(parse2ByteUint(data[0], data[1]))
	s.numPointsAlongMeridian = uint16(parse2ByteUint(data[2], data[3]))
	s.firstGridPoint.lat.milliDegrees = parse3ByteInt(data[4], data[5], data[6])
	s.firstGridPoint.lng.milliDegrees = parse3ByteInt(data[7], data[8], data[9])
	s.resolutionAndComponentFlags = data[10]
	s.lastGridPoint.lat.milliDegrees = parse3ByteInt(data[11], data[12], data[13])
	s.lastGridPoint.lng.milliDegrees = parse3ByteInt(data[14], data[15], data[16])
	s.parallelIncrement.milliDegrees = int32(parse2ByteUint(data[17], data[18]))
	s.meridianIncrement.milliDegrees = int32(parse2ByteUint(data[19], data[20]))
	s.scanningMode = scanningMode(data[21])

	if !s.scanningMode.pointsScanInPlusIDirection() {
		s.parallelIncrement.milliDegrees *= -1
	}
	if !s.scanningMode.pointsScanInPlusJDirection() {
		s.meridianIncrement.milliDegrees *= -1
	}
	if s.numPointsAlongParallel == 0 || s.numPointsAlongMeridian == 0 {
		return fmt.Errorf("grid has %dx%d points", s.numPointsAlongMeridian, s.numPointsAlongParallel)
	}
	return nil
}

// Ni returns the number of points along a parallel (columns).
func (s *LatLongGrid) Ni() int { return int(s.numPointsAlongParallel) }

// Nj returns the number of points along a meridian (rows).
func (s *LatLongGrid) Nj() int { return int(s.numPointsAlongMeridian) }

// First returns the first grid point.
func (s *LatLongGrid) First() LatLng { return s.firstGridPoint }

// Last returns the last grid point.
func (s *LatLongGrid) Last() LatLng { return s.lastGridPoint }

// QuantizedAngle is used for a lat/lng point.
type QuantizedAngle struct {
	milliDegrees int32
}

// Degrees returns the angle in degrees.
func (a QuantizedAngle) Degrees() float64 {
	return float64(a.milliDegrees) / 1000
}

// LatLng represents a latitude/longitude point.
type LatLng struct {
	lat, lng QuantizedAngle
}

// String returns a human-readable representation of the lat/lng.
func (ll LatLng) String() string {
	return fmt.Sprintf("%f, %f", ll.lat.Degrees(), ll.lng.Degrees())
}

// Lat returns the latitude.
func (ll LatLng) Lat() QuantizedAngle { return ll.lat }

// Lng returns the longitude.
func (ll LatLng) Lng() QuantizedAngle { return ll.lng }

// scanningMode is a value for the codepoint flag described here:
// https://codes.ecmwf.int/grib/format/grib1/flag/8/.
type scanningMode uint8

func (m scanningMode) String() string {
	iDir := "-i"
	if m.pointsScanInPlusIDirection() {
		iDir = "+i"
	}
	jDir := "-j"
	if m.pointsScanInPlusJDirection() {
		jDir = "+j"
	}
	adj := "jDirAdj"
	if m.adjacentPointsInIDirectionAreConsecutive() {
		adj = "iDirAdj"
	}
	return fmt.Sprintf("(%s, %s, %s)", iDir, jDir, adj)
}

const (
	pointsScanInMinusIDirection    = 1 << 7
	pointsScanInPlusJDirection     = 1 << 6
	adjPointsJDirectionConsecutive = 1 << 5
)

func (m scanningMode) pointsScanInPlusIDirection() bool {
	return (m & pointsScanInMinusIDirection) == 0
}

func (m scanningMode) pointsScanInPlusJDirection() bool {
	return (m & pointsScanInPlusJDirection) != 0
}

func (m scanningMode) adjacentPointsInIDirectionAreConsecutive() bool {
	return (m & adjPointsJDirectionConsecutive) == 0
}

// DataRepresentationType indicates the data representation used (code table 6).
type DataRepresentationType uint8

const (
	// DataRepresentationTypeLL indicates Latitude/Longitude Grid.
	DataRepresentationTypeLL DataRepresentationType = 0
	// DataRepresentationTypeGG indicates Gaussian Latitude/Longitude Grid.
	DataRepresentationTypeGG DataRepresentationType = 4
	// DataRepresentationTypeSH indicates Spherical Harmonic Coefficients.
	DataRepresentationTypeSH DataRepresentationType = 50
)
