// Command era5check inspects ERA5 GRIB and NetCDF files for out-of-range
// values and NODATA markers, and checks that different decoders agree.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/golang/glog"
	"github.com/sdifrance/era5check/backend"
	"github.com/sdifrance/era5check/config"
	"github.com/sdifrance/era5check/inspect"
	"github.com/sdifrance/era5check/locate"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		glog.Exitf("era5check: %v", err)
	}
}

// app holds the state shared by every subcommand.
type app struct {
	out        io.Writer
	configPath string
	verbose    bool
	workers    int
	variable   string

	cfg *config.Config
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "era5check",
		Short:         "Inspect ERA5 fields for invalid values and decoder disagreement.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := markParsed(flag.CommandLine); err != nil {
				return err
			}
			return a.setup(cmd)
		},
	}
	// glog registers -v for its verbosity level, so the variable flag is -p.
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML configuration file; the built-in defaults are used when empty")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "log every read")
	root.PersistentFlags().IntVar(&a.workers, "workers", 0, "slices inspected in parallel; overrides the configuration")
	root.PersistentFlags().StringVarP(&a.variable, "variable", "p", "r", "variable short name, e.g. r, t2m or tco3")

	root.AddCommand(
		a.statsCmd(),
		a.summaryCmd(),
		a.nodataCmd(),
		a.compareCmd(),
	)
	return root
}

// markParsed marks fs as parsed without reading any arguments. glog complains
// unless the standard flag set has been parsed; cobra has already set the
// glog flags through pflag.
func markParsed(fs *flag.FlagSet) error {
	if fs.Parsed() {
		return nil
	}
	return fs.Parse(nil)
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = a.verbose
	}
	if a.workers > 0 {
		cfg.Workers = a.workers
	}
	if _, ok := cfg.Policy()[a.variable]; !ok {
		return fmt.Errorf("no range is configured for variable %q", a.variable)
	}
	a.cfg = cfg
	return nil
}

func (a *app) inspector(readers map[string]backend.Reader) (*inspect.Inspector, error) {
	table, err := a.cfg.Table()
	if err != nil {
		return nil, err
	}
	return &inspect.Inspector{
		Table:   table,
		Policy:  a.cfg.Policy(),
		Readers: readers,
		Workers: a.cfg.Workers,
		Verbose: a.cfg.Verbose,
	}, nil
}

// primary returns the reader used to enumerate slices: the first by id.
func primary(readers map[string]backend.Reader) (string, backend.Reader) {
	ids := backend.IDs(readers)
	return ids[0], readers[ids[0]]
}

// byTime groups reports by slice time, keeping the order of first appearance.
func byTime(reports []inspect.Report) [][]inspect.Report {
	index := map[int64]int{}
	var out [][]inspect.Report
	for _, r := range reports {
		k := r.Slice.Time.UnixNano()
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], r)
	}
	for _, group := range out {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Slice.Level < group[j].Slice.Level })
	}
	return out
}

func find[E, R any](slice []E, predicate func(E) (R, bool), defaultOutput R) R {
	for _, e := range slice {
		if r, ok := predicate(e); ok {
			return r
		}
	}
	return defaultOutput
}

// reading returns the reading of backend id in rep.
func reading(rep inspect.Report, id string) (inspect.Reading, bool) {
	r := find(rep.Readings, func(r inspect.Reading) (*inspect.Reading, bool) {
		return &r, r.Backend == id
	}, nil)
	if r == nil {
		return inspect.Reading{}, false
	}
	return *r, true
}

func allSlices(readers map[string]backend.Reader, variable string) ([]locate.LogicalSlice, error) {
	_, r := primary(readers)
	return inspect.Slices(r, variable)
}
