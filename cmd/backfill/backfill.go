package backfill

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/geocapture/internal/app"
	"github.com/tphakala/geocapture/internal/conf"
	"github.com/tphakala/geocapture/internal/logger"
)

// Command creates the backfill command, which enqueues captures that need
// analysis but have no queue entry.
func Command(settings *conf.Settings) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Enqueue unanalyzed captures that are missing from the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.OpenStore(settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.BackfillQueue(cmd.Context(), limit)
			if err != nil {
				return err
			}
			logger.Global().Module("backfill").Info("Backfill finished", logger.Int("enqueued", n))
			cmd.Printf("enqueued %d captures\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of captures to enqueue (0 for all)")

	return cmd
}
