package sun

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/geocapture/internal/solar"
)

// Command creates the sun command, which prints the solar position and
// the day's sun events for a place.
func Command() *cobra.Command {
	var (
		lat, lon float64
		at       string
	)

	cmd := &cobra.Command{
		Use:   "sun",
		Short: "Print the sun position and events for a location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := time.Now().UTC()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --time: %w", err)
				}
				t = parsed.UTC()
			}

			pos := solar.Compute(lat, lon, t)
			cmd.Printf("time:       %s\n", t.Format(time.RFC3339))
			if !pos.Known() {
				cmd.Println("position:   undefined at this location")
			} else {
				cmd.Printf("azimuth:    %.2f° (%s)\n", pos.Azimuth, pos.Direction())
				cmd.Printf("elevation:  %.2f°\n", pos.Elevation)
			}
			cmd.Printf("daylight:   %t\n", pos.IsDaylight)

			events, err := solar.NewCalculator().Events(lat, lon, t)
			if err != nil {
				cmd.Printf("events:     unavailable (%v)\n", err)
				return nil
			}
			cmd.Printf("civil dawn: %s\n", events.CivilDawn.Format(time.TimeOnly))
			cmd.Printf("sunrise:    %s\n", events.Sunrise.Format(time.TimeOnly))
			cmd.Printf("sunset:     %s\n", events.Sunset.Format(time.TimeOnly))
			cmd.Printf("civil dusk: %s\n", events.CivilDusk.Format(time.TimeOnly))
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude in degrees")
	cmd.Flags().StringVar(&at, "time", "", "Instant, RFC 3339 (default now)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	return cmd
}
