// Package cli is the eventlogs command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/eventlogs/internal/config"
	"github.com/telhawk-systems/eventlogs/internal/logging"
)

var (
	cfgFile string
	output  string
	cfg     *config.Config
	cfgErr  error
)

var rootCmd = &cobra.Command{
	Use:   "eventlogs",
	Short: "Audit event ingestion, search and retention",
	Long: `eventlogs consumes audit events from NATS JetStream in batches, stores them
in PostgreSQL or OpenSearch, and serves search, CSV export and retention
settings over HTTP.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/eventlogs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "yaml", "output format: yaml, json")
}

func initConfig() {
	cfg, cfgErr = config.Load(cfgFile)
}

// loadedConfig returns the configuration read at startup.
func loadedConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, fmt.Errorf("load config: %w", cfgErr)
	}
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return cfg, nil
}

func setupLogging(c *config.Config) {
	logger := logging.New(
		logging.ParseLevel(c.Logging.Level),
		c.Logging.Format,
	).With(logging.Service("eventlogs"))
	logging.SetDefault(logger)

	slog.Debug("logging configured",
		slog.String("log_level", c.Logging.Level),
		slog.String("log_format", c.Logging.Format))
}

func printOutput(w io.Writer, v interface{}) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}
}
