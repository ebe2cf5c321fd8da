package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/eventlogs/internal/retention"
	"github.com/telhawk-systems/eventlogs/internal/storage"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one retention sweep now and exit",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

type sweepReport struct {
	RetentionDays int       `json:"retentionDays" yaml:"retention_days"`
	Cutoff        time.Time `json:"cutoff" yaml:"cutoff"`
	Deleted       int64     `json:"deleted" yaml:"deleted"`
}

func runSweep(cmd *cobra.Command, _ []string) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	setupLogging(c)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, c)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	res := retention.NewSweeper(backend.Events, backend.Settings, c.Retention.DefaultDays).Sweep(ctx)
	if res.Err != nil {
		return fmt.Errorf("retention sweep: %w", res.Err)
	}
	return printOutput(cmd.OutOrStdout(), sweepReport{
		RetentionDays: res.RetentionDays,
		Cutoff:        res.Cutoff,
		Deleted:       res.Deleted,
	})
}
