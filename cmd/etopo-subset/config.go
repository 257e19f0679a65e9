package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/twpayne/go-etopo"
)

// Output formats.
const (
	formatNetCDF = "netcdf"
	formatText   = "text"
)

// A Config is the configuration of a single extraction. It can be read from a
// TOML file and overridden by flags.
type Config struct {
	Input       string  `toml:"input"`
	Output      string  `toml:"output"`
	Format      string  `toml:"format"`
	MinLat      float64 `toml:"min_lat"`
	MaxLat      float64 `toml:"max_lat"`
	MinLon      float64 `toml:"min_lon"`
	MaxLon      float64 `toml:"max_lon"`
	Interpolate bool    `toml:"interpolate"`
	Factor      int     `toml:"factor"`
	Buffer      float64 `toml:"buffer"`
	Debug       bool    `toml:"debug"`
	MetricsFile string  `toml:"metrics_file"`
}

// A configField maps a TOML key to the flag that overrides it.
type configField struct {
	key   string
	flag  string
	apply func(dst, src *Config)
}

var configFields = []configField{
	{key: "input", flag: "input", apply: func(dst, src *Config) { dst.Input = src.Input }},
	{key: "output", flag: "output", apply: func(dst, src *Config) { dst.Output = src.Output }},
	{key: "format", flag: "format", apply: func(dst, src *Config) { dst.Format = src.Format }},
	{key: "min_lat", flag: "min-lat", apply: func(dst, src *Config) { dst.MinLat = src.MinLat }},
	{key: "max_lat", flag: "max-lat", apply: func(dst, src *Config) { dst.MaxLat = src.MaxLat }},
	{key: "min_lon", flag: "min-lon", apply: func(dst, src *Config) { dst.MinLon = src.MinLon }},
	{key: "max_lon", flag: "max-lon", apply: func(dst, src *Config) { dst.MaxLon = src.MaxLon }},
	{key: "interpolate", flag: "interpolate", apply: func(dst, src *Config) { dst.Interpolate = src.Interpolate }},
	{key: "factor", flag: "factor", apply: func(dst, src *Config) { dst.Factor = src.Factor }},
	{key: "buffer", flag: "buffer", apply: func(dst, src *Config) { dst.Buffer = src.Buffer }},
	{key: "debug", flag: "debug", apply: func(dst, src *Config) { dst.Debug = src.Debug }},
	{key: "metrics_file", flag: "metrics-file", apply: func(dst, src *Config) { dst.MetricsFile = src.MetricsFile }},
}

func defaultConfig() Config {
	return Config{
		Factor: etopo.DefaultFactor,
		Buffer: etopo.DefaultBuffer,
	}
}

// mergeConfigFile sets the fields of c that are defined in the TOML file
// filename, except those whose flags were set.
func mergeConfigFile(c *Config, filename string, flagChanged func(string) bool) error {
	var fileConfig Config
	md, err := toml.DecodeFile(filename, &fileConfig)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return fmt.Errorf("%s: unknown keys %v", filename, undecoded)
	}
	for _, field := range configFields {
		if md.IsDefined(field.key) && !flagChanged(field.flag) {
			field.apply(c, &fileConfig)
		}
	}
	return nil
}

// Validate checks c and fills in the output format if it is not set.
func (c *Config) Validate() error {
	var errs []error
	if c.Input == "" {
		errs = append(errs, errors.New("no input file"))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("no output file"))
	}
	switch strings.ToLower(c.Format) {
	case "":
		if strings.EqualFold(filepath.Ext(c.Output), ".nc") {
			c.Format = formatNetCDF
		} else {
			c.Format = formatText
		}
	case formatNetCDF, formatText:
		c.Format = strings.ToLower(c.Format)
	default:
		errs = append(errs, fmt.Errorf("%s: unknown format", c.Format))
	}
	if err := c.BoundingBox().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BoundingBox returns the bounding box requested by c.
func (c *Config) BoundingBox() etopo.BoundingBox {
	return etopo.BoundingBox{
		MinLat: c.MinLat,
		MaxLat: c.MaxLat,
		MinLon: c.MinLon,
		MaxLon: c.MaxLon,
	}
}
