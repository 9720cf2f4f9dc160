package vision

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tphakala/geocapture/internal/solar"
)

// Location is a GPS fix in decimal degrees.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Place is reverse-geocoded metadata attached to a capture.
type Place struct {
	Country   string
	City      string
	PlaceName string
}

// Orientation is the camera heading reported by the device.
type Orientation struct {
	Bearing           *float64
	CardinalDirection string
}

// GeoInput is everything known about where and when an image was taken.
// Every field is optional.
type GeoInput struct {
	Location    *Location
	Place       *Place
	Orientation *Orientation
	CapturedAt  time.Time
}

// ContextBuilder turns GeoInput into the context lines of the prompt.
type ContextBuilder struct {
	events *solar.Calculator
}

// NewContextBuilder creates a builder. A nil calculator disables the sun event lines.
func NewContextBuilder(events *solar.Calculator) *ContextBuilder {
	return &ContextBuilder{events: events}
}

// Lines returns the context lines in prompt order. Solar lines need both a
// location and a capture time, and are omitted when the position is unknown.
func (b *ContextBuilder) Lines(in GeoInput) []string {
	var lines []string

	if in.Location != nil {
		lines = append(lines, fmt.Sprintf("📍 Coordenadas GPS: %s, %s",
			formatCoordinate(in.Location.Latitude), formatCoordinate(in.Location.Longitude)))
	}

	if p := in.Place; p != nil {
		if p.Country != "" {
			lines = append(lines, "🌍 País: "+p.Country)
		}
		if p.City != "" {
			lines = append(lines, "🏙️ Ciudad: "+p.City)
		}
		if p.PlaceName != "" {
			lines = append(lines, "📌 Lugar: "+p.PlaceName)
		}
	}

	if in.Location != nil && !in.CapturedAt.IsZero() {
		lines = append(lines, b.solarLines(*in.Location, in.CapturedAt.UTC())...)
	}

	if o := in.Orientation; o != nil && o.Bearing != nil {
		cardinal := o.CardinalDirection
		if cardinal == "" {
			cardinal = "N/A"
		}
		lines = append(lines, fmt.Sprintf("🧭 Dirección cámara: %.0f° (%s)", *o.Bearing, cardinal))
	}

	return lines
}

func (b *ContextBuilder) solarLines(loc Location, at time.Time) []string {
	lines := []string{"🕐 Hora captura (UTC): " + at.Format(time.DateTime)}

	pos := solar.Compute(loc.Latitude, loc.Longitude, at)
	if !pos.Known() {
		return lines
	}

	dayNight := "NOCHE"
	if pos.IsDaylight {
		dayNight = "DÍA"
	}
	lines = append(lines,
		fmt.Sprintf("☀️ Posición solar: Azimuth %.0f°, Elevación %.1f° (%s)", pos.Azimuth, pos.Elevation, dayNight),
		"🌅 Sol hacia el: "+pos.Direction().Spanish(),
	)

	if b == nil || b.events == nil {
		return lines
	}
	ev, err := b.events.Events(loc.Latitude, loc.Longitude, at)
	if err != nil {
		// polar day or night
		return lines
	}
	lines = append(lines,
		fmt.Sprintf("🌄 Salida/puesta del sol (UTC): %s / %s", ev.Sunrise.Format("15:04"), ev.Sunset.Format("15:04")),
		fmt.Sprintf("🌆 Crepúsculo civil (UTC): %s / %s", ev.CivilDawn.Format("15:04"), ev.CivilDusk.Format("15:04")),
	)
	return lines
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
