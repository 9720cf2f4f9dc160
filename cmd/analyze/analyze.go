package analyze

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tphakala/geocapture/internal/app"
	"github.com/tphakala/geocapture/internal/conf"
	"github.com/tphakala/geocapture/internal/solar"
	"github.com/tphakala/geocapture/internal/vision"
)

type options struct {
	lat, lon     float64
	at           string
	bearing      float64
	country      string
	city         string
	place        string
	metadataOnly bool
}

// Command creates the analyze command, a one-off vision call for a local
// image that prints the result document.
func Command(settings *conf.Settings) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze a local image with the vision model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			geo, err := buildGeoInput(cmd, &opts)
			if err != nil {
				return err
			}

			client, err := app.NewVisionClient(settings, nil)
			if err != nil {
				return err
			}

			result, err := client.Analyze(cmd.Context(), image, geo)
			if err != nil {
				return err
			}

			var out any = result
			if opts.metadataOnly {
				out = vision.ExtractMetadata(result)
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.lat, "lat", 0, "Capture latitude in degrees")
	f.Float64Var(&opts.lon, "lon", 0, "Capture longitude in degrees")
	f.StringVar(&opts.at, "time", "", "Capture time, RFC 3339 (default now)")
	f.Float64Var(&opts.bearing, "bearing", 0, "Camera bearing in degrees from north")
	f.StringVar(&opts.country, "country", "", "Country name")
	f.StringVar(&opts.city, "city", "", "City name")
	f.StringVar(&opts.place, "place", "", "Place name")
	f.BoolVar(&opts.metadataOnly, "metadata", false, "Print only the extracted metadata")
	cmd.MarkFlagsRequiredTogether("lat", "lon")

	return cmd
}

func buildGeoInput(cmd *cobra.Command, opts *options) (vision.GeoInput, error) {
	in := vision.GeoInput{CapturedAt: time.Now().UTC()}
	if opts.at != "" {
		t, err := time.Parse(time.RFC3339, opts.at)
		if err != nil {
			return in, fmt.Errorf("invalid --time: %w", err)
		}
		in.CapturedAt = t
	}

	flags := cmd.Flags()
	if flags.Changed("lat") {
		if opts.lat < -90 || opts.lat > 90 || opts.lon < -180 || opts.lon > 180 {
			return in, fmt.Errorf("coordinates out of range: %g, %g", opts.lat, opts.lon)
		}
		in.Location = &vision.Location{Latitude: opts.lat, Longitude: opts.lon}
	}
	if opts.country != "" || opts.city != "" || opts.place != "" {
		in.Place = &vision.Place{Country: opts.country, City: opts.city, PlaceName: opts.place}
	}
	if flags.Changed("bearing") {
		bearing := opts.bearing
		in.Orientation = &vision.Orientation{
			Bearing:           &bearing,
			CardinalDirection: string(solar.CardinalFromAzimuth(bearing)),
		}
	}
	return in, nil
}
