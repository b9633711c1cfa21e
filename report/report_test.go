package report

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sdifrance/era5check/scan"
)

var t6 = time.Date(2023, 2, 1, 6, 0, 0, 0, time.UTC)

func TestWriteCSV(t *testing.T) {
	rows := []Row{
		{Level: 1, Scan: scan.Result{Cells: 4, MinObserved: -5, MaxObserved: 101, BelowMinCount: 1, BelowMinPercent: 25, AboveMaxCount: 1, AboveMaxPercent: 25}},
		{Level: 1000, Scan: scan.Result{Cells: 4, MinObserved: 0.5, MaxObserved: 99}},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, "r", rows); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}
	want := "Pressure hPa,Min RH,Max RH,Negative RH Count,Negative RH %,Overflow RH Count,Overflow RH %\n" +
		"1,-5,101,1,25,1,25\n" +
		"1000,0.5,99,0,0,0,0\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("WriteCSV() mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCSVAllNull(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{{Level: 500, Scan: scan.Result{Cells: 1, NullCount: 1, MinObserved: math.NaN(), MaxObserved: math.NaN()}}}
	if err := WriteCSV(&buf, "tco3", rows); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}
	want := "Pressure hPa,Min TCO3,Max TCO3,Negative TCO3 Count,Negative TCO3 %,Overflow TCO3 Count,Overflow TCO3 %\n" +
		"500,NaN,NaN,0,0,0,0\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("WriteCSV() mismatch (-want +got):\n%s", diff)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteErrors(t *testing.T) {
	if err := WriteCSV(failingWriter{}, "r", []Row{{Level: 1}}); err == nil {
		t.Errorf("WriteCSV() succeeded, want error")
	}
	if err := WriteSummary(failingWriter{}, "r", t6, nil); err == nil {
		t.Errorf("WriteSummary() succeeded, want error")
	}
}

func TestNames(t *testing.T) {
	if got, want := CSVName(t6), "2023-02-01_T0600.csv"; got != want {
		t.Errorf("CSVName() = %q, want %q", got, want)
	}
	if got, want := PNGName(t6, 1), "2023-02-01_T0600-0001hPa.png"; got != want {
		t.Errorf("PNGName() = %q, want %q", got, want)
	}
	if got, want := PNGName(t6, 1000), "2023-02-01_T0600-1000hPa.png"; got != want {
		t.Errorf("PNGName() = %q, want %q", got, want)
	}
}

func TestWriteSummary(t *testing.T) {
	rows := []Row{
		{Level: 1, Scan: scan.Result{Cells: 1038240, BelowMinCount: 3}},
		{Level: 500},
		{Level: 1000, Scan: scan.Result{Cells: 1038240, AboveMaxCount: 519120, AboveMaxPercent: 50}},
	}
	var buf bytes.Buffer
	if err := WriteSummary(&buf, "r", t6, rows); err != nil {
		t.Fatalf("WriteSummary() error: %v", err)
	}
	want := "time=2023-02-01T06:00:00Z\n" +
		"   1 hPa  Negative RH,        3 / 1038240 cells (0.00%)\n" +
		"1000 hPa  Overflow RH,   519120 / 1038240 cells (50.00%)\n" +
		"\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("WriteSummary() mismatch (-want +got):\n%s", diff)
	}
}

func TestFindings(t *testing.T) {
	tests := []struct {
		name string
		res  scan.Result
		want []string
	}{
		{"clean", scan.Result{Cells: 4}, nil},
		{"nulls", scan.Result{NullCount: 2}, []string{"Contains nulls"}},
		{"all", scan.Result{NullCount: 1, BelowMinCount: 1, SuspectCount: 1}, []string{
			"Contains nulls",
			"Contains negatives (possible NCI NODATA?)",
			"Contains higher positives (possible ERA5 NODATA?)",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Findings(tt.res)); diff != "" {
				t.Errorf("Findings() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	var buf bytes.Buffer
	found, err := WriteFindings(&buf, "tco3.nc", t6, scan.Result{SuspectCount: 1})
	if err != nil || !found {
		t.Fatalf("WriteFindings() = %v, %v", found, err)
	}
	want := "tco3.nc 2023-02-01T06:00:00Z\n  - Contains higher positives (possible ERA5 NODATA?)\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("WriteFindings() mismatch (-want +got):\n%s", diff)
	}
	if found, _ := WriteFindings(&buf, "tco3.nc", t6, scan.Result{}); found {
		t.Errorf("WriteFindings() of a clean scan found something")
	}
}
