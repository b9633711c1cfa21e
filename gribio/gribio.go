// Package gribio contains functionality for reading grib files containing both
// GRIB1 and GRIB2 messages. Only GRIB1 messages are decoded.
package gribio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/sdifrance/era5check/grib1"
)

// File holds the decoded GRIB1 messages of a file, in file order.
type File struct {
	grib1Messages []*grib1.Message
	skipped       int
}

// GRIB1Messages returns every GRIB1 message in file order.
func (f *File) GRIB1Messages() []*grib1.Message {
	return f.grib1Messages
}

// Skipped returns the number of messages that were not decoded (GRIB2).
func (f *File) Skipped() int {
	return f.skipped
}

// Select returns the messages carrying the named variable, e.g. "r", in file
// order. Message order is the band order other readers such as GDAL and
// pygrib use.
func (f *File) Select(variable string) ([]*grib1.Message, error) {
	param, ok := grib1.ParameterByName(variable)
	if !ok {
		return nil, fmt.Errorf("no GRIB1 parameter is known for variable %q", variable)
	}
	var out []*grib1.Message
	for _, m := range f.grib1Messages {
		if m.ProductDefinition().Parameter() == param {
			out = append(out, m)
		}
	}
	return out, nil
}

// ReadOptions controls decoding.
type ReadOptions struct {
	// Verbose logs each record offset and type.
	Verbose bool
}

// Open reads the GRIB file at path.
func Open(path string, opts ReadOptions) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	file, err := ReadFile(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// ReadFile decodes all messages from r.
func ReadFile(r io.Reader, opts ReadOptions) (*File, error) {
	out := &File{}

	rr := bufio.NewReader(r)
	offset := 0
	for {
		skipCount, err := skipZeros(rr)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("error parsing file: %w", err)
		}
		offset += skipCount

		parseType, messageLen, err := peekParseType(rr)
		if err != nil {
			return nil, fmt.Errorf("error encountered when expecting a GRIB message @ byte offset %d: %w", offset, err)
		}
		if opts.Verbose {
			glog.Infof("record @ offset %d is of type %s, %d bytes", offset, parseType, messageLen)
		}

		recordBytes := make([]byte, int(messageLen))
		if readCount, err := io.ReadFull(rr, recordBytes); err != nil {
			return nil, fmt.Errorf("error while reading message of expected length %d; only read %d bytes: %w", messageLen, readCount, err)
		}

		switch parseType {
		case parseAsGRIB1:
			msg, _, err := grib1.Read1(recordBytes)
			if err != nil {
				return nil, fmt.Errorf("error reading GRIB1 message @ byte offset %d: %w", offset, err)
			}
			out.grib1Messages = append(out.grib1Messages, msg)
		case parseAsGRIB2:
			glog.Warningf("skipping GRIB edition 2 message @ byte offset %d", offset)
			out.skipped++
		}
		offset += int(messageLen)
	}
}

func skipZeros(rr *bufio.Reader) (int, error) {
	skipCount := 0
	for {
		b, err := rr.ReadByte()
		if err != nil {
			return skipCount, err
		}
		if b == 0 {
			skipCount++
			continue
		}
		if err := rr.UnreadByte(); err != nil {
			return skipCount, err
		}
		return skipCount, nil
	}
}

type parseType int

const (
	parseAsInvalidMessage parseType = iota
	parseAsGRIB1
	parseAsGRIB2
)

func (p parseType) String() string {
	switch p {
	case parseAsGRIB1:
		return "GRIB1"
	case parseAsGRIB2:
		return "GRIB2"
	}
	return "invalid"
}

func peekParseType(rr *bufio.Reader) (parseType, uint64, error) {
	// Section 0 is 8 bytes in GRIB1 and 16 bytes in GRIB2.
	data, err := rr.Peek(8)
	if err != nil {
		return parseAsInvalidMessage, 0, fmt.Errorf("error while expecting GRIB record: %w", err)
	}
	if got, want := string(data[0:4]), "GRIB"; got != want {
		return parseAsInvalidMessage, 0, fmt.Errorf("first four bytes = %q, want %q", got, want)
	}

	switch edition := data[7]; edition {
	case 1:
		// https://apps.ecmwf.int/codes/grib/format/grib1/sections/0/
		messageLength := uint64(binary.BigEndian.Uint32([]byte{0, data[4], data[5], data[6]}))
		return parseAsGRIB1, messageLength, nil
	case 2:
		// https://apps.ecmwf.int/codes/grib/format/grib2/sections/0/
		data, err = rr.Peek(16)
		if err != nil {
			return parseAsInvalidMessage, 0, fmt.Errorf("error while reading GRIB2 indicator section: %w", err)
		}
		messageLength := binary.BigEndian.Uint64(data[8:16])
		return parseAsGRIB2, messageLength, nil
	default:
		return parseAsInvalidMessage, 0, fmt.Errorf("invalid edition %d, wanted 1 or 2", edition)
	}
}
