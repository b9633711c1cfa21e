package grib1

import (
	"fmt"
	"time"
)

// ProductDefinition has information about the contents of a Message.
type ProductDefinition struct {
	section1Length              uint32
	table2Version               uint8
	center                      uint8
	generatingProcessIdentifier uint8
	gridDefinition              uint8
	section1Flags               uint8
	parameter                   Parameter
	levelType                   LevelType
	levelValue                  uint32
	yearOfCentury               uint8
	month                       uint8
	day                         uint8
	hour                        uint8
	minute                      uint8
	unitOfTimeRange             UnitOfTime
	p1                          uint8
	p2                          uint8
	timeRangeIndicator          uint8
	century                     uint8
	decimalScaleFactor          int32
}

// Code table 1, flag indication relative to sections 2 and 3. Bits are
// enumerated from left to right.
const (
	section2Included = 1 << 7
	section3Included = 1 << 6
)

func (p *ProductDefinition) gridDescriptionSectionIncluded() bool {
	return (p.section1Flags & section2Included) != 0
}

// BitmapIncluded reports whether the message carries a bitmap section.
func (p *ProductDefinition) BitmapIncluded() bool {
	return (p.section1Flags & section3Included) != 0
}

// Parameter returns the indicator of parameter (code table 2).
func (p *ProductDefinition) Parameter() Parameter {
	return p.parameter
}

// LevelType returns the indicator of type of level (code table 3).
func (p *ProductDefinition) LevelType() LevelType {
	return p.levelType
}

// Level returns the value of a single-valued level, e.g. the pressure in hPa of
// an isobaric level. The boolean is false for level types without a value,
// such as the surface.
func (p *ProductDefinition) Level() (float64, bool) {
	switch p.levelType {
	case LevelTypeIsobaric, LevelTypeHeightAboveGround, LevelTypeHybrid:
		return float64(p.levelValue), true
	}
	return 0, false
}

// ReferenceTime returns the reference time of the data in UTC.
func (p *ProductDefinition) ReferenceTime() time.Time {
	year := (int(p.century)-1)*100 + int(p.yearOfCentury)
	return time.Date(year, time.Month(p.month), int(p.day), int(p.hour), int(p.minute), 0, 0, time.UTC)
}

// ValidTime returns the time the data is valid for: the reference time plus
// P1 for forecasts and initialized analyses, otherwise the reference time.
func (p *ProductDefinition) ValidTime() time.Time {
	ref := p.ReferenceTime()
	if p.timeRangeIndicator > 1 {
		return ref
	}
	unit, ok := p.unitOfTimeRange.Duration()
	if !ok {
		return ref
	}
	return ref.Add(time.Duration(p.p1) * unit)
}

// DecimalScaleFactor returns D, the power of ten values were scaled by before packing.
func (p *ProductDefinition) DecimalScaleFactor() int {
	return int(p.decimalScaleFactor)
}

func (p *ProductDefinition) parseBytes(data []byte) (int, error) {
	/* https://apps.ecmwf.int/codes/grib/format/grib1/sections/1/

	Octets	Key	Content
	1-3	section1Length	Length of section
	4	table2Version	GRIB tables Version No.
	5	centre	Identification of originating/generating centre
	6	generatingProcessIdentifier	Generating process identification number
	7	gridDefinition	Grid definition
	8	section1Flags	Flag (see Code table 1)
	9	indicatorOfParameter	Indicator of parameter (see Code table 2)
	10	indicatorOfTypeOfLevel	Indicator of type of level (see Code table 3)
	11-12		Height, pressure, etc. of levels
	13-17	yearOfCentury, month, day, hour, minute
	18	unitOfTimeRange	Indicator of unit of time range (see Code table 4)
	19	P1	Period of time
	20	P2	Period of time
	21	timeRangeIndicator	Time range indicator (see Code table 5)
	22-23	numberIncludedInAverage
	24	numberMissingFromAveragesOrAccumulations
	25	centuryOfReferenceTimeOfData
	26	subCentre
	27-28	decimalScaleFactor	Units decimal scale factor (D)
	*/
	if len(data) < 28 {
		return 0, fmt.Errorf("GRIB section 1 must be at least 28 bytes long, got %d", len(data))
	}
	p.section1Length = parse3ByteUint(data[0], data[1], data[2])
	p.table2Version = data[3]
	p.center = data[4]
	p.generatingProcessIdentifier = data[5]
	p.gridDefinition = data[6]
	p.section1Flags = data[7]
	p.parameter = Parameter(data[8])
	p.levelType = LevelType(data[9])
	p.levelValue = parse2ByteUint(data[10], data[11])
	p.yearOfCentury = data[12]
	p.month = data[13]
	p.day = data[14]
	p.hour = data[15]
	p.minute = data[16]
	p.unitOfTimeRange = UnitOfTime(data[17])
	p.p1 = data[18]
	p.p2 = data[19]
	p.timeRangeIndicator = data[20]
	p.century = data[24]
	p.decimalScaleFactor = parse2ByteInt(data[26], data[27])

	if p.section1Length < 28 || int(p.section1Length) > len(data) {
		return 0, fmt.Errorf("section 1 claims length %d, data size is %d", p.section1Length, len(data))
	}
	return int(p.section1Length), nil
}

// Parameter is one of the values from code table 2, ECMWF local table 128:
// https://codes.ecmwf.int/grib/param-db/.
type Parameter uint8

// ERA5 parameters.
const (
	ParameterTemperature                    Parameter = 130
	ParameterSurfacePressure                Parameter = 134
	ParameterRelativeHumidity               Parameter = 157
	ParameterID10MeterUWindComponent        Parameter = 165
	ParameterID10MeterVWindComponent        Parameter = 166
	Parameter2MeterTemperature              Parameter = 167
	ParameterSurfaceSolarRadiationDownwards Parameter = 169
	ParameterTotalColumnOzone               Parameter = 206
)

// shortNames uses the variable names ECMWF writes to NetCDF so the same name
// addresses a field in either format.
var shortNames = map[Parameter]string{
	ParameterTemperature:                    "t",
	ParameterSurfacePressure:                "sp",
	ParameterRelativeHumidity:               "r",
	ParameterID10MeterUWindComponent:        "u10",
	ParameterID10MeterVWindComponent:        "v10",
	Parameter2MeterTemperature:              "t2m",
	ParameterSurfaceSolarRadiationDownwards: "ssrd",
	ParameterTotalColumnOzone:               "tco3",
}

// ShortName returns the NetCDF style short name, or "param<N>" when unknown.
func (p Parameter) ShortName() string {
	if s, ok := shortNames[p]; ok {
		return s
	}
	return fmt.Sprintf("param%d", uint8(p))
}

// ParameterByName returns the parameter with the given short name.
func ParameterByName(name string) (Parameter, bool) {
	for p, s := range shortNames {
		if s == name {
			return p, true
		}
	}
	return 0, false
}

// LevelType is the indicator of type of level from code table 3.
type LevelType uint8

// Level types used by ERA5.
const (
	LevelTypeSurface           LevelType = 1
	LevelTypeIsobaric          LevelType = 100
	LevelTypeMeanSea           LevelType = 102
	LevelTypeHeightAboveGround LevelType = 105
	LevelTypeHybrid            LevelType = 109
)

// UnitOfTime is GRIB1 code table 4. See
// https://apps.ecmwf.int/codes/grib/format/grib1/ctable/4/
type UnitOfTime uint8

// Units of time from WMO code table 4.
const (
	UnitOfTimeMinute    UnitOfTime = 0
	UnitOfTimeHour      UnitOfTime = 1
	UnitOfTimeDay       UnitOfTime = 2
	UnitOfTimeMonth     UnitOfTime = 3
	UnitOfTimeYear      UnitOfTime = 4
	UnitOfTime3Hours    UnitOfTime = 10
	UnitOfTime6Hours    UnitOfTime = 11
	UnitOfTime12Hours   UnitOfTime = 12
	UnitOfTime15Minutes UnitOfTime = 13
	UnitOfTime30Minutes UnitOfTime = 14
	UnitOfTimeSecond    UnitOfTime = 254
)

var unitDurations = map[UnitOfTime]time.Duration{
	UnitOfTimeMinute:    time.Minute,
	UnitOfTimeHour:      time.Hour,
	UnitOfTimeDay:       24 * time.Hour,
	UnitOfTime3Hours:    3 * time.Hour,
	UnitOfTime6Hours:    6 * time.Hour,
	UnitOfTime12Hours:   12 * time.Hour,
	UnitOfTime15Minutes: 15 * time.Minute,
	UnitOfTime30Minutes: 30 * time.Minute,
	UnitOfTimeSecond:    time.Second,
}

// Duration returns the fixed length of the unit. Months, years and longer
// units have no fixed length.
func (u UnitOfTime) Duration() (time.Duration, bool) {
	d, ok := unitDurations[u]
	return d, ok
}
