// Package config loads the range policy and backend addressing table from
// TOML. Settings in a file override the embedded defaults.
package config

import (
	_ "embed"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sdifrance/era5check/locate"
	"github.com/sdifrance/era5check/scan"
)

//go:embed default.toml
var defaultTOML string

// AnyLayout in a rule's axes expands to every recognized layout.
const AnyLayout = "any"

// Config is the decoded configuration.
type Config struct {
	Workers   int                      `toml:"workers"`
	Verbose   bool                     `toml:"verbose"`
	Variables map[string]Variable      `toml:"variables"`
	Backends  map[string][]BackendRule `toml:"backends"`
}

// Variable holds the valid range of one variable.
type Variable struct {
	Min          *float64 `toml:"min"`
	Max          *float64 `toml:"max"`
	NoData       *float64 `toml:"nodata"`
	SuspectAbove *float64 `toml:"suspect_above"`
}

// BackendRule is one addressing rule of a backend.
type BackendRule struct {
	Axes       string `toml:"axes"`
	Addressing string `toml:"addressing"`
	Levels     string `toml:"levels"`
	Times      string `toml:"times"`
	LevelMatch string `toml:"level_match"`
}

// Default returns the embedded configuration.
func Default() *Config {
	c, err := decode(defaultTOML)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads the TOML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return nil, errors.Wrap(err, "reading configuration")
	}
	c, err := Parse(string(b))
	if err != nil {
		return nil, errors.Wrapf(err, "configuration file %s", path)
	}
	return c, nil
}

// Parse decodes data over the defaults and validates the result. Variables
// and backends named in data replace the default entry of the same name.
func Parse(data string) (*Config, error) {
	c := Default()
	override := new(Config)
	md, err := toml.Decode(data, override)
	if err != nil {
		return nil, errors.Wrap(err, "parsing configuration")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Errorf("unknown configuration keys: %s", strings.Join(keys, ", "))
	}
	if md.IsDefined("workers") {
		c.Workers = override.Workers
	}
	if md.IsDefined("verbose") {
		c.Verbose = override.Verbose
	}
	for name, v := range override.Variables {
		c.Variables[name] = v
	}
	for id, rules := range override.Backends {
		c.Backends[id] = rules
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decode(data string) (*Config, error) {
	c := new(Config)
	if _, err := toml.Decode(data, c); err != nil {
		return nil, err
	}
	if c.Variables == nil {
		c.Variables = map[string]Variable{}
	}
	if c.Backends == nil {
		c.Backends = map[string][]BackendRule{}
	}
	return c, nil
}

// Validate checks the worker count, the variable ranges and the rules.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return errors.Errorf("workers = %d, want at least 1", c.Workers)
	}
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	_, err := c.Table()
	return err
}

// Policy returns the range policy of every configured variable.
func (c *Config) Policy() scan.Policy {
	p := scan.Policy{}
	for name, v := range c.Variables {
		p[name] = scan.Bounds{
			Min:          v.Min,
			Max:          v.Max,
			NoData:       v.NoData,
			SuspectAbove: v.SuspectAbove,
		}
	}
	return p
}

// Table returns the addressing table of every configured backend.
func (c *Config) Table() (locate.Table, error) {
	t := locate.Table{}
	for id, rules := range c.Backends {
		var out locate.Rules
		for i, r := range rules {
			addressing, err := locate.ParseAddressing(r.Addressing)
			if err != nil {
				return nil, errors.Wrapf(err, "backend %q rule %d", id, i)
			}
			levels, err := locate.ParseOrder(r.Levels)
			if err != nil {
				return nil, errors.Wrapf(err, "backend %q rule %d levels", id, i)
			}
			times, err := locate.ParseOrder(r.Times)
			if err != nil {
				return nil, errors.Wrapf(err, "backend %q rule %d times", id, i)
			}
			match, err := locate.ParseLevelMatch(r.LevelMatch)
			if err != nil {
				return nil, errors.Wrapf(err, "backend %q rule %d level_match", id, i)
			}
			layouts := []locate.AxisOrder{locate.ParseAxisOrder(r.Axes)}
			if strings.TrimSpace(r.Axes) == AnyLayout {
				layouts = []locate.AxisOrder{locate.LayoutTimeLevel, locate.LayoutLevel, locate.LayoutTime, locate.LayoutGrid}
			}
			for _, axes := range layouts {
				out = append(out, locate.Rule{
					Axes:       axes,
					Addressing: addressing,
					LevelOrder: levels,
					TimeOrder:  times,
					LevelMatch: match,
				})
			}
		}
		t[id] = out
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
