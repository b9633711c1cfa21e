package main

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/sdifrance/era5check/backend"
	"github.com/sdifrance/era5check/inspect"
	"github.com/sdifrance/era5check/render"
	"github.com/sdifrance/era5check/report"
	"github.com/sdifrance/era5check/scan"
	"github.com/spf13/cobra"
)

func (a *app) statsCmd() *cobra.Command {
	var (
		outDir string
		png    bool
	)
	cmd := &cobra.Command{
		Use:   "stats FILE",
		Short: "Write a CSV of range statistics per timestamp, and optionally a PNG per level.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := a.scanFile(cmd, args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			for _, group := range groups {
				if err := a.writeStats(outDir, group, png); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "stats", "output directory")
	cmd.Flags().BoolVar(&png, "png", false, "also render each level as a PNG")
	return cmd
}

func (a *app) writeStats(outDir string, group []inspect.Report, png bool) error {
	t := group[0].Slice.Time
	rows := make([]report.Row, len(group))
	for i, rep := range group {
		rows[i] = report.Row{Level: rep.Slice.Level, Scan: rep.Readings[0].Scan}
	}
	path := filepath.Join(outDir, report.CSVName(t))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f, a.variable, rows); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	glog.Infof("wrote %s", path)

	if !png {
		return nil
	}
	for _, rep := range group {
		if err := a.writePNG(outDir, rep); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) writePNG(outDir string, rep inspect.Report) error {
	r := rep.Readings[0]
	opts := render.Options{Title: rep.Slice.String()}
	opts.Min, opts.Max = colorRange(a.cfg.Policy()[a.variable], r.Scan)
	path := filepath.Join(outDir, report.PNGName(rep.Slice.Time, rep.Slice.Level))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.PNG(f, r.Grid, opts); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// colorRange returns the colour scale of a heat map: the configured bounds
// where set, the observed extremes otherwise. The range is always finite and
// non-empty, even for a grid of nulls.
func colorRange(b scan.Bounds, res scan.Result) (lo, hi float64) {
	lo, hi = res.MinObserved, res.MaxObserved
	if b.Min != nil {
		lo = *b.Min
	}
	if b.Max != nil {
		hi = *b.Max
	}
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	switch {
	case finite(lo):
	case finite(hi):
		lo = hi - 1
	default:
		lo = 0
	}
	if !finite(hi) || !(hi > lo) {
		hi = lo + 1
	}
	return lo, hi
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary FILE",
		Short: "Print the levels with negative or overflow values per timestamp.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := a.scanFile(cmd, args[0])
			if err != nil {
				return err
			}
			for _, group := range groups {
				rows := make([]report.Row, len(group))
				for i, rep := range group {
					rows[i] = report.Row{Level: rep.Slice.Level, Scan: rep.Readings[0].Scan}
				}
				if err := report.WriteSummary(a.out, a.variable, group[0].Slice.Time, rows); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// scanFile scans every slice of the variable in path with a single backend,
// the first by id, and groups the reports by time.
func (a *app) scanFile(cmd *cobra.Command, path string) ([][]inspect.Report, error) {
	readers, err := backend.Open(path, backend.Options{Verbose: a.cfg.Verbose})
	if err != nil {
		return nil, err
	}
	defer backend.CloseAll(readers)

	id, r := primary(readers)
	in, err := a.inspector(map[string]backend.Reader{id: r})
	if err != nil {
		return nil, err
	}
	slices, err := inspect.Slices(r, a.variable)
	if err != nil {
		return nil, err
	}
	reports, err := in.InspectAll(cmd.Context(), slices)
	if err != nil {
		return nil, err
	}
	return byTime(reports), nil
}

func (a *app) nodataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodata DIR...",
		Short: "Walk directories for NetCDF files and report nulls, negatives and NODATA-like values.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			for _, dir := range args {
				err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
					if err != nil {
						return err
					}
					ext := strings.ToLower(filepath.Ext(path))
					if !d.IsDir() && (ext == ".nc" || ext == ".nc4") {
						files = append(files, path)
					}
					return nil
				})
				if err != nil {
					return err
				}
			}

			anyFound := false
			for _, path := range files {
				found, err := a.nodataFile(cmd, path)
				if err != nil {
					return err
				}
				anyFound = anyFound || found
			}
			if anyFound {
				fmt.Fprintln(a.out, "Some NODATA, negatives or high values found")
			}
			return nil
		},
	}
}

func (a *app) nodataFile(cmd *cobra.Command, path string) (bool, error) {
	r, err := backend.OpenNetCDF(path)
	if err != nil {
		return false, err
	}
	defer r.Close()

	in, err := a.inspector(map[string]backend.Reader{backend.NetCDF: r})
	if err != nil {
		return false, err
	}
	slices, err := inspect.Slices(r, a.variable)
	if err != nil {
		return false, err
	}
	reports, err := in.InspectAll(cmd.Context(), slices)
	if err != nil {
		return false, err
	}
	found := false
	for _, rep := range reports {
		rd, ok := reading(rep, backend.NetCDF)
		if !ok {
			continue
		}
		f, err := report.WriteFindings(a.out, filepath.Base(path), rep.Slice.Time, rd.Scan)
		if err != nil {
			return false, err
		}
		found = found || f
	}
	return found, nil
}

func (a *app) compareCmd() *cobra.Command {
	var tolerance float64
	cmd := &cobra.Command{
		Use:   "compare FILE...",
		Short: "Read every slice through every backend and report disagreements.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			readers, err := backend.OpenAll(args, backend.Options{Verbose: a.cfg.Verbose})
			if err != nil {
				return err
			}
			defer backend.CloseAll(readers)

			in, err := a.inspector(readers)
			if err != nil {
				return err
			}
			in.Tolerance = tolerance
			slices, err := allSlices(readers, a.variable)
			if err != nil {
				return err
			}
			reports, err := in.InspectAll(cmd.Context(), slices)
			if err != nil {
				return err
			}
			mismatched := writeComparisons(a, reports)
			if mismatched > 0 {
				return fmt.Errorf("%d of %d slices differ between backends", mismatched, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0, "largest absolute difference counted as a match")
	return cmd
}

// writeComparisons prints one line per compared pair and returns the number
// of inconsistent slices.
func writeComparisons(a *app, reports []inspect.Report) int {
	mismatched := 0
	for _, rep := range reports {
		if !rep.Consistent() {
			mismatched++
		}
		for _, c := range rep.Comparisons {
			res := c.Result
			status := "exact match"
			switch {
			case !res.Equal():
				status = fmt.Sprintf("%d / %d cells differ (%.2f%%), max difference %g", res.MismatchedCount, res.Cells, res.MismatchedPercent, res.MaxAbsDifference)
			case !res.ExactMatch:
				status = fmt.Sprintf("match within %g", res.Tolerance)
			}
			fmt.Fprintf(a.out, "%s  %s vs %s: %s\n", rep.Slice, c.A, c.B, status)
		}
	}
	return mismatched
}
