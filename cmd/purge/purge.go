package purge

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/geocapture/internal/app"
	"github.com/tphakala/geocapture/internal/conf"
	"github.com/tphakala/geocapture/internal/logger"
)

// Command creates the purge command, which deletes old completed queue
// entries and prints the queue statistics.
func Command(settings *conf.Settings) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete completed queue entries older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				days = settings.Worker.QueueRetentionDays
			}
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}

			store, err := app.OpenStore(settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			purged, err := store.PurgeCompleted(ctx, time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			stats, err := store.QueueStats(ctx)
			if err != nil {
				return err
			}

			logger.Global().Module("purge").Info("Purge finished",
				logger.Int64("purged", purged),
				logger.Int("retention_days", days))
			cmd.Printf("purged %d entries; queue: %d pending, %d exhausted, %d completed\n",
				purged, stats.Pending, stats.Exhausted, stats.Completed)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (default worker.queueretentiondays)")

	return cmd
}
