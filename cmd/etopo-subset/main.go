// Command etopo-subset extracts a latitude/longitude subset of an ETOPO1 style
// grid and writes it as text or NetCDF.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twpayne/go-etopo"
)

func newRootCmd(stderr io.Writer) *cobra.Command {
	config := defaultConfig()
	var configFile string

	cmd := &cobra.Command{
		Use:           "etopo-subset",
		Short:         "Extract a subset of an ETOPO1 grid",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				if err := mergeConfigFile(&config, configFile, cmd.Flags().Changed); err != nil {
					return err
				}
			}
			if err := config.Validate(); err != nil {
				return err
			}

			logger := logrus.New()
			logger.SetOutput(stderr)
			if config.Debug {
				logger.SetLevel(logrus.DebugLevel)
			}
			return extract(cmd.Context(), logger, config)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "TOML configuration file")
	flags.StringVarP(&config.Input, "input", "i", "", "input grid (NetCDF, or GeoTIFF with a .tif extension)")
	flags.StringVarP(&config.Output, "output", "o", "", "output file")
	flags.StringVarP(&config.Format, "format", "f", "", "output format: text|netcdf (default from output extension)")
	flags.Float64Var(&config.MinLat, "min-lat", 0, "minimum latitude")
	flags.Float64Var(&config.MaxLat, "max-lat", 0, "maximum latitude")
	flags.Float64Var(&config.MinLon, "min-lon", 0, "minimum longitude")
	flags.Float64Var(&config.MaxLon, "max-lon", 0, "maximum longitude")
	flags.BoolVar(&config.Interpolate, "interpolate", false, "resample onto a finer grid")
	flags.IntVar(&config.Factor, "factor", config.Factor, "interpolation refinement factor")
	flags.Float64Var(&config.Buffer, "buffer", config.Buffer, "interpolation buffer in degrees")
	flags.BoolVar(&config.Debug, "debug", false, "enable debug logging")
	flags.StringVar(&config.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")

	return cmd
}

// extract runs the extraction described by config.
func extract(ctx context.Context, logger *logrus.Logger, config Config) error {
	e := etopo.NewExtractor(
		etopo.WithLogger(logger),
		etopo.WithDebug(config.Debug),
		etopo.WithFactor(config.Factor),
		etopo.WithBuffer(config.Buffer),
	)

	var grid *etopo.OutputGrid
	var err error
	if config.Interpolate {
		grid, err = e.InterpolateFile(ctx, config.Input, config.BoundingBox())
	} else {
		grid, err = e.SubsetFile(ctx, config.Input, config.BoundingBox())
	}
	if err != nil {
		return err
	}

	switch config.Format {
	case formatNetCDF:
		err = etopo.WriteNetCDF(config.Output, grid)
	default:
		err = etopo.WriteTextFile(config.Output, grid)
	}
	if err != nil {
		return err
	}
	logger.WithField("file", config.Output).Infof("output written to %s", config.Output)

	if config.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(config.MetricsFile, prometheus.DefaultGatherer); err != nil {
			return err
		}
	}
	return nil
}

func run() error {
	return newRootCmd(os.Stderr).ExecuteContext(context.Background())
}

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
