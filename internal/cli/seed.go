package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/eventlogs/internal/seeder"
)

var (
	seedCount        int
	seedInvalidRatio float64
	seedSpread       time.Duration
	seedValue        int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Publish generated audit events to the inbound subject",
	Long: `Publishes fake audit events to the configured NATS subject, one synchronous
publish per event. A share of the events can be made invalid to exercise the
consumer's parse failure path.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().IntVar(&seedCount, "count", 1000, "number of events to publish")
	seedCmd.Flags().Float64Var(&seedInvalidRatio, "invalid-ratio", 0, "share of malformed events in [0, 1]")
	seedCmd.Flags().DurationVar(&seedSpread, "spread", 30*24*time.Hour, "spread event timestamps over this window before now")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 0, "random seed (0 picks one from the clock)")
}

type seedReport struct {
	Subject   string `json:"subject" yaml:"subject"`
	Published int    `json:"published" yaml:"published"`
	Invalid   int    `json:"invalid" yaml:"invalid"`
	Failed    int    `json:"failed" yaml:"failed"`
}

func runSeed(cmd *cobra.Command, _ []string) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	setupLogging(c)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	js, err := connectJetStream(c)
	if err != nil {
		return err
	}
	defer js.Close()

	if err := ensureEventsStream(ctx, js, c); err != nil {
		return err
	}

	seed := seedValue
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	res, err := seeder.NewRunner(js, seeder.Config{
		Count:        seedCount,
		InvalidRatio: seedInvalidRatio,
		TimeSpread:   seedSpread,
		Seed:         seed,
		Subject:      c.NATS.Subject,
	}).Run(ctx)
	if err != nil {
		return err
	}

	return printOutput(cmd.OutOrStdout(), seedReport{
		Subject:   c.NATS.Subject,
		Published: res.Published,
		Invalid:   res.Invalid,
		Failed:    res.Failed,
	})
}
