package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/eventlogs/internal/config"
	"github.com/telhawk-systems/eventlogs/internal/dlq"
	natsclient "github.com/telhawk-systems/eventlogs/internal/messaging/nats"
)

var dlqListLimit int

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and purge the dead-letter stream",
}

var dlqStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dead-letter stream state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDLQ(cmd.Context(), func(ctx context.Context, q *dlq.JetStreamQueue) error {
			stats, err := q.Stats(ctx)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), stats)
		})
	},
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered messages without removing them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDLQ(cmd.Context(), func(ctx context.Context, q *dlq.JetStreamQueue) error {
			entries, err := q.List(ctx, dlqListLimit)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []dlq.Entry{}
			}
			return printOutput(cmd.OutOrStdout(), entries)
		})
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every dead-lettered message",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDLQ(cmd.Context(), func(ctx context.Context, q *dlq.JetStreamQueue) error {
			if err := q.Purge(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "dlq purged")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqStatsCmd, dlqListCmd, dlqPurgeCmd)
	dlqListCmd.Flags().IntVar(&dlqListLimit, "limit", 100, "maximum number of entries to show")
}

// withDLQ looks up the existing dead-letter stream rather than provisioning it.
func withDLQ(ctx context.Context, fn func(context.Context, *dlq.JetStreamQueue) error) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	if !c.DLQ.Enabled {
		return errors.New("dlq is disabled in configuration")
	}
	setupLogging(c)
	if ctx == nil {
		ctx = context.Background()
	}

	js, err := connectJetStream(c)
	if err != nil {
		return err
	}
	defer js.Close()

	q, err := lookupDLQ(ctx, js, c)
	if err != nil {
		return err
	}
	return fn(ctx, q)
}

func lookupDLQ(ctx context.Context, js *natsclient.JetStreamClient, c *config.Config) (*dlq.JetStreamQueue, error) {
	stream, err := js.Stream(ctx, c.DLQ.Stream)
	if err != nil {
		return nil, fmt.Errorf("dlq stream %q: %w", c.DLQ.Stream, err)
	}
	return dlq.NewJetStreamQueue(js, stream, c.DLQ.SubjectPrefix)
}
