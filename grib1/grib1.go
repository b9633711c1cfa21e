// Package grib1 contains a parser for GRIB messages that use edition 1, the
// edition ECMWF uses for ERA5 pressure level and single level fields.
//
// Section layouts follow https://apps.ecmwf.int/codes/grib/format/grib1/overview.
package grib1

import (
	"fmt"
	"math"
	"time"
)

// Message is a GRIB1 record.
type Message struct {
	product *ProductDefinition
	grid    *GridDescription
	bitmap  *Bitmap
	data    *binaryDataSection
}

// ProductDefinition returns an object that describes the data contained in the record.
//
// See https://apps.ecmwf.int/codes/grib/format/grib1/sections/1/.
func (m *Message) ProductDefinition() *ProductDefinition {
	return m.product
}

// GridDescription returns the GridDescription stored in the message, or nil if
// the message refers to a predefined grid.
func (m *Message) GridDescription() *GridDescription {
	return m.grid
}

// Bitmap returns the bitmap stored in the message, or nil.
func (m *Message) Bitmap() *Bitmap {
	return m.bitmap
}

// String returns a summary description of the message.
func (m *Message) String() string {
	level := "sfc"
	if v, ok := m.product.Level(); ok {
		level = fmt.Sprintf("%g", v)
	}
	suffix := ""
	if ll := m.latLongGrid(); ll != nil {
		suffix = fmt.Sprintf(" grid=%dx%d scan=%s", ll.Nj(), ll.Ni(), ll.scanningMode)
	}
	return fmt.Sprintf("param=%d (%s) level=%s ref=%s%s",
		m.product.parameter, m.product.parameter.ShortName(), level,
		m.product.ReferenceTime().Format(time.RFC3339), suffix)
}

func (m *Message) latLongGrid() *LatLongGrid {
	if m.grid == nil {
		return nil
	}
	return m.grid.LatLongGrid()
}

// Shape returns the number of rows (points along a meridian) and columns
// (points along a parallel) of the message's grid.
func (m *Message) Shape() (rows, cols int, err error) {
	ll := m.latLongGrid()
	if ll == nil {
		return 0, 0, fmt.Errorf("message has no regular lat/lon grid description")
	}
	return ll.Nj(), ll.Ni(), nil
}

// Values unpacks the message's data into a row-major slice of
// rows*cols values, rows running along latitude in the scanning order of the
// file. Points switched off in the bitmap decode as NaN.
func (m *Message) Values() ([]float64, error) {
	rows, cols, err := m.Shape()
	if err != nil {
		return nil, err
	}
	n := rows * cols

	present := n
	if m.bitmap != nil {
		if got := len(m.bitmap.values) * 8; got < n {
			return nil, fmt.Errorf("bitmap holds %d bits, need %d", got, n)
		}
		present = 0
		for k := 0; k < n; k++ {
			if m.bitmap.isSet(k) {
				present++
			}
		}
	}

	packed, err := m.data.unpack(present, m.product.decimalScaleFactor)
	if err != nil {
		return nil, err
	}

	scanned := make([]float64, n)
	next := 0
	for k := range scanned {
		if m.bitmap != nil && !m.bitmap.isSet(k) {
			scanned[k] = math.NaN()
			continue
		}
		scanned[k] = packed[next]
		next++
	}

	if m.latLongGrid().scanningMode.adjacentPointsInIDirectionAreConsecutive() {
		return scanned, nil
	}
	out := make([]float64, n)
	for i := 0; i < cols; i++ {
		for j := 0; j < rows; j++ {
			out[j*cols+i] = scanned[i*rows+j]
		}
	}
	return out, nil
}

// Read reads data from a raw GRIB file and returns a slice of parsed messages.
//
// Multiple messages may be present in a single .grib file.
func Read(data []byte) ([]*Message, error) {
	var out []*Message
	unconsumed := data
	offset := 0
	for len(unconsumed) > 0 {
		record, bytesRead, err := read1MaybeZeroPadded(unconsumed)
		if err != nil {
			return nil, fmt.Errorf("error reading GRIB record @ byte offset %d: %w", offset, err)
		}
		if record != nil {
			out = append(out, record)
		}
		unconsumed = unconsumed[bytesRead:]
		offset += bytesRead
	}
	return out, nil
}

func read1MaybeZeroPadded(data []byte) (*Message, int, error) {
	// Some files are zero padded between records.
	zerosConsumed := 0
	for len(data) > 0 && data[0] == 0 {
		zerosConsumed++
		data = data[1:]
	}
	if len(data) == 0 {
		return nil, zerosConsumed, nil
	}
	got, recordBytes, err := Read1(data)
	return got, recordBytes + zerosConsumed, err
}

// Read1 reads a single GRIB1 message from a byte array and returns the number
// of bytes consumed.
func Read1(data []byte) (*Message, int, error) {
	sec0 := &indicatorSection{}
	bytesRead, err := sec0.parseBytes(data)
	if err != nil {
		return nil, 0, fmt.Errorf("error parsing indicator section: %w", err)
	}
	unconsumed := data[bytesRead:]

	sec1 := &ProductDefinition{}
	bytesRead, err = sec1.parseBytes(unconsumed)
	if err != nil {
		return nil, 0, fmt.Errorf("error parsing product definition section: %w", err)
	}
	unconsumed = unconsumed[bytesRead:]

	var sec2 *GridDescription
	if sec1.gridDescriptionSectionIncluded() {
		sec2 = &GridDescription{}
		bytesRead, err = sec2.parseBytes(unconsumed)
		if err != nil {
			return nil, 0, fmt.Errorf("error parsing grid description section: %w", err)
		}
		unconsumed = unconsumed[bytesRead:]
	}

	var sec3 *Bitmap
	if sec1.BitmapIncluded() {
		sec3 = &Bitmap{}
		bytesRead, err = sec3.parseBytes(unconsumed)
		if err != nil {
			return nil, 0, fmt.Errorf("error parsing bitmap section: %w", err)
		}
		unconsumed = unconsumed[bytesRead:]
	}

	sec4 := &binaryDataSection{}
	bytesRead, err = sec4.parseBytes(unconsumed)
	if err != nil {
		return nil, 0, fmt.Errorf("error parsing binary data section: %w", err)
	}
	unconsumed = unconsumed[bytesRead:]

	bytesRead, err = parseEndSection(unconsumed)
	if err != nil {
		return nil, 0, fmt.Errorf("error parsing end section: %w", err)
	}
	unconsumed = unconsumed[bytesRead:]

	consumedCount := len(data) - len(unconsumed)
	if consumedCount != int(sec0.messageLength) {
		return nil, 0, fmt.Errorf("consumed %d bytes, expected to consume %d based on message length in header", consumedCount, sec0.messageLength)
	}

	return &Message{
		product: sec1,
		grid:    sec2,
		bitmap:  sec3,
		data:    sec4,
	}, consumedCount, nil
}

type indicatorSection struct {
	messageLength uint32
}

func (is *indicatorSection) parseBytes(data []byte) (int, error) {
	/*
		Octets	Key	Content
		1-4	identifier	GRIB
		5-7	totalLength	Total length of GRIB message (including Section 0)
		8	editionNumber	GRIB edition number (1)
	*/
	if len(data) < 8 {
		return 0, fmt.Errorf("invalid GRIB file < 8 bytes long")
	}
	if got, want := string(data[0:4]), "GRIB"; got != want {
		return 0, fmt.Errorf("first four bytes = %q, want %q", got, want)
	}
	if got, want := data[7], byte(1); got != want {
		return 0, fmt.Errorf("got GRIB edition %d, expected edition %d", got, want)
	}

	is.messageLength = parse3ByteUint(data[4], data[5], data[6])
	if int(is.messageLength) > len(data) {
		return 0, fmt.Errorf("message length is %d, but only %d bytes supplied", is.messageLength, len(data))
	}
	return 8, nil
}

func parseEndSection(data []byte) (int, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("got end section length %d, expected data length of at least 4", len(data))
	}
	if got, want := string(data[0:4]), "7777"; got != want {
		return 0, fmt.Errorf("got end sequence %q, want %q", got, want)
	}
	return 4, nil
}

// Octets are numbered from 1 and bit 1 is the most significant bit, so all
// multi-octet integers are big endian. Signed values use sign and magnitude,
// not two's complement.

func parse3ByteUint(byte0, byte1, byte2 byte) uint32 {
	return uint32(byte0)<<16 | uint32(byte1)<<8 | uint32(byte2)
}

func parse2ByteUint(byte0, byte1 byte) uint32 {
	return uint32(byte0)<<8 | uint32(byte1)
}

func parse2ByteInt(byte0, byte1 byte) int32 {
	unsigned := parse2ByteUint(byte0, byte1)
	absValue := int32(unsigned & 0x7fff)
	if unsigned&(1<<15) != 0 {
		return -absValue
	}
	return absValue
}

func parse3ByteInt(byte0, byte1, byte2 byte) int32 {
	unsigned := parse3ByteUint(byte0, byte1, byte2)
	absValue := int32(unsigned & 0x7fffff)
	if unsigned&(1<<23) != 0 {
		return -absValue
	}
	return absValue
}
