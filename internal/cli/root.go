// Package cli wires the task-wizard commands.
package cli

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"task-wizard/internal/config"
	"task-wizard/internal/geocode"
	"task-wizard/internal/refdata"
)

// Build information, overridden with -ldflags.
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const appName = "task-wizard"

// overrides are flag values that take precedence over the environment.
type overrides struct {
	refData      string
	nominatimURL string
	offline      bool
	logLevel     string
}

func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("refdata") {
		cfg.RefDataPath = o.refData
	}
	if flags.Changed("nominatim-url") {
		cfg.NominatimURL = o.nominatimURL
	}
	if flags.Changed("offline") {
		cfg.Offline = o.offline
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
}

// RootCommand builds the task-wizard command tree.
func RootCommand() *cobra.Command {
	var o overrides

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Multi-step logistics task wizard",
		Long: `task-wizard serves the pick-up / drop-off task authoring wizard over HTTP
and offers a few helpers to inspect its reference data and geocoder.

Configuration comes from TASKWIZ_* environment variables; flags override them.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&o.refData, "refdata", "", "Reference data YAML file (overrides TASKWIZ_REFDATA)")
	cmd.PersistentFlags().StringVar(&o.nominatimURL, "nominatim-url", "", "Nominatim base URL (overrides TASKWIZ_NOMINATIM_URL)")
	cmd.PersistentFlags().BoolVar(&o.offline, "offline", false, "Use the offline resolver instead of Nominatim")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		ServeCommand(&o),
		RefDataCommand(&o),
		GeocodeCommand(&o),
		VersionCommand(),
	)
	return cmd
}

// VersionCommand prints build information.
func VersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(cmd *cobra.Command, o *overrides) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	o.apply(cmd, &cfg)
	if _, err := config.ParseLevel(cfg.LogLevel); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func loadCatalog(cfg config.Config) (*refdata.Catalog, error) {
	if cfg.RefDataPath == "" {
		return refdata.Default(), nil
	}
	catalog, err := refdata.LoadFile(cfg.RefDataPath)
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}
	return catalog, nil
}

// newResolver returns the configured coordinate resolver. reg may be nil.
func newResolver(cfg config.Config, reg prometheus.Registerer) geocode.Resolver {
	if cfg.Offline {
		return geocode.Static{}
	}
	var metrics *geocode.Metrics
	if reg != nil {
		metrics = geocode.NewMetrics(reg)
	}
	return geocode.NewNominatimClient(geocode.NominatimConfig{
		BaseURL:           cfg.NominatimURL,
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.GeocodeTimeout,
		RequestsPerSecond: cfg.GeocodeRPS,
		Metrics:           metrics,
	})
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := RootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
