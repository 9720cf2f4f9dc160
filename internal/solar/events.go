package solar

import (
	"fmt"
	"math"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sj14/astral/pkg/astral"
)

// Events holds the civil twilight and sunrise/sunset instants for one day, in UTC.
type Events struct {
	CivilDawn time.Time
	Sunrise   time.Time
	Sunset    time.Time
	CivilDusk time.Time
}

const (
	eventCacheTTL     = 24 * time.Hour
	eventCacheCleanup = time.Hour
)

// Calculator computes sun events and caches them per rounded location and date.
// Captures from the same place and day share one calculation.
type Calculator struct {
	cache *cache.Cache
}

// NewCalculator creates a Calculator with a one-day cache.
func NewCalculator() *Calculator {
	return &Calculator{cache: cache.New(eventCacheTTL, eventCacheCleanup)}
}

// Events returns the sun events on the UTC calendar day of date.
// Polar day and polar night return an error from astral.
func (c *Calculator) Events(latitude, longitude float64, date time.Time) (Events, error) {
	if math.IsNaN(latitude) || math.IsNaN(longitude) {
		return Events{}, fmt.Errorf("invalid coordinates %v, %v", latitude, longitude)
	}

	day := date.UTC().Truncate(24 * time.Hour)
	key := cacheKey(latitude, longitude, day)

	if cached, ok := c.cache.Get(key); ok {
		if ev, ok := cached.(Events); ok {
			return ev, nil
		}
	}

	ev, err := calculateEvents(astral.Observer{Latitude: latitude, Longitude: longitude}, day)
	if err != nil {
		return Events{}, err
	}

	c.cache.SetDefault(key, ev)
	return ev, nil
}

// cacheKey rounds to two decimals, roughly a kilometre, which moves events by seconds.
func cacheKey(latitude, longitude float64, day time.Time) string {
	return fmt.Sprintf("%.2f:%.2f:%s", latitude, longitude, day.Format(time.DateOnly))
}

func calculateEvents(observer astral.Observer, day time.Time) (Events, error) {
	dawn, err := astral.Dawn(observer, day, astral.DepressionCivil)
	if err != nil {
		return Events{}, fmt.Errorf("failed to calculate civil dawn: %w", err)
	}

	sunrise, err := astral.Sunrise(observer, day)
	if err != nil {
		return Events{}, fmt.Errorf("failed to calculate sunrise: %w", err)
	}

	sunset, err := astral.Sunset(observer, day)
	if err != nil {
		return Events{}, fmt.Errorf("failed to calculate sunset: %w", err)
	}

	dusk, err := astral.Dusk(observer, day, astral.DepressionCivil)
	if err != nil {
		return Events{}, fmt.Errorf("failed to calculate civil dusk: %w", err)
	}

	return Events{
		CivilDawn: dawn.UTC(),
		Sunrise:   sunrise.UTC(),
		Sunset:    sunset.UTC(),
		CivilDusk: dusk.UTC(),
	}, nil
}
