// Package report formats scan results as CSV tables, console summaries and
// NODATA findings.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sdifrance/era5check/scan"
)

// Row is the scan of one pressure level.
type Row struct {
	Level float64
	Scan  scan.Result
}

// Label returns the name a variable is shown with, e.g. "RH" for "r".
func Label(variable string) string {
	switch variable {
	case "r":
		return "RH"
	case "t":
		return "T"
	}
	return strings.ToUpper(variable)
}

// WriteCSV writes one row per level with the observed range and the
// negative and overflow counts.
func WriteCSV(w io.Writer, variable string, rows []Row) error {
	v := Label(variable)
	cw := csv.NewWriter(w)
	header := []string{
		"Pressure hPa", "Min " + v, "Max " + v,
		"Negative " + v + " Count", "Negative " + v + " %",
		"Overflow " + v + " Count", "Overflow " + v + " %",
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing CSV header")
	}
	for _, r := range rows {
		rec := []string{
			formatFloat(r.Level),
			formatFloat(r.Scan.MinObserved),
			formatFloat(r.Scan.MaxObserved),
			strconv.Itoa(r.Scan.BelowMinCount),
			formatFloat(r.Scan.BelowMinPercent),
			strconv.Itoa(r.Scan.AboveMaxCount),
			formatFloat(r.Scan.AboveMaxPercent),
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "writing CSV row for %g hPa", r.Level)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "writing CSV")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// CSVName returns the file name of the table for time t, e.g.
// "2023-02-01_T0600.csv".
func CSVName(t time.Time) string {
	return stamp(t) + ".csv"
}

// PNGName returns the file name of the image of one level, e.g.
// "2023-02-01_T0600-1000hPa.png".
func PNGName(t time.Time, level float64) string {
	return fmt.Sprintf("%s-%04dhPa.png", stamp(t), int(level))
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02_T1504")
}

// WriteSummary writes a time header followed by a line for each level with
// negative or overflow cells, and a blank line.
func WriteSummary(w io.Writer, variable string, t time.Time, rows []Row) error {
	v := Label(variable)
	if _, err := fmt.Fprintf(w, "time=%s\n", t.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	for _, r := range rows {
		if r.Scan.BelowMinCount > 0 {
			if _, err := fmt.Fprintf(w, "%4d hPa  Negative %s, %8d / %d cells (%.2f%%)\n",
				int(r.Level), v, r.Scan.BelowMinCount, r.Scan.Cells, r.Scan.BelowMinPercent); err != nil {
				return err
			}
		}
		if r.Scan.AboveMaxCount > 0 {
			if _, err := fmt.Fprintf(w, "%4d hPa  Overflow %s, %8d / %d cells (%.2f%%)\n",
				int(r.Level), v, r.Scan.AboveMaxCount, r.Scan.Cells, r.Scan.AboveMaxPercent); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// Findings describes the NODATA symptoms of a scan, if any.
func Findings(res scan.Result) []string {
	var out []string
	if res.NullCount > 0 {
		out = append(out, "Contains nulls")
	}
	if res.BelowMinCount > 0 {
		out = append(out, "Contains negatives (possible NCI NODATA?)")
	}
	if res.SuspectCount > 0 {
		out = append(out, "Contains higher positives (possible ERA5 NODATA?)")
	}
	return out
}

// WriteFindings writes the findings of one file and time, if any, and
// reports whether there were any.
func WriteFindings(w io.Writer, name string, t time.Time, res scan.Result) (bool, error) {
	findings := Findings(res)
	if len(findings) == 0 {
		return false, nil
	}
	if _, err := fmt.Fprintf(w, "%s %s\n", name, t.UTC().Format(time.RFC3339)); err != nil {
		return true, err
	}
	for _, f := range findings {
		if _, err := fmt.Fprintf(w, "  - %s\n", f); err != nil {
			return true, err
		}
	}
	return true, nil
}
