package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	helsinkiLat = 60.1699
	helsinkiLon = 24.9384
)

func TestCalculator_EventsOrdered(t *testing.T) {
	t.Parallel()

	calc := NewCalculator()
	ev, err := calc.Events(40.4168, -3.7038, time.Date(2024, 3, 20, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, ev.CivilDawn.Before(ev.Sunrise))
	assert.True(t, ev.Sunrise.Before(ev.Sunset))
	assert.True(t, ev.Sunset.Before(ev.CivilDusk))
	assert.Equal(t, time.UTC, ev.Sunrise.Location())
}

func TestCalculator_CachesPerDay(t *testing.T) {
	t.Parallel()

	calc := NewCalculator()
	morning := time.Date(2024, 6, 21, 6, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 6, 21, 20, 0, 0, 0, time.UTC)

	first, err := calc.Events(helsinkiLat, helsinkiLon, morning)
	require.NoError(t, err)
	second, err := calc.Events(helsinkiLat, helsinkiLon, evening)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calc.cache.ItemCount())
}

// FuzzEvents checks that arbitrary coordinates and dates never panic.
// Polar day and night may return an error.
func FuzzEvents(f *testing.F) {
	f.Add(helsinkiLat, helsinkiLon, int64(1719014400))
	f.Add(78.2232, 15.6267, int64(1734782400)) // Longyearbyen, polar night
	f.Add(-71.0, 0.0, int64(1719014400))
	f.Add(90.0, 0.0, int64(1719014400))
	f.Add(0.0, 180.0, int64(0))

	calc := NewCalculator()
	f.Fuzz(func(t *testing.T, lat, lon float64, unixSec int64) {
		if unixSec < -62135596800 || unixSec > 253402300799 {
			return
		}
		_, _ = calc.Events(lat, lon, time.Unix(unixSec, 0))
		_ = Compute(lat, lon, time.Unix(unixSec, 0))
	})
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "60.17:24.94:2024-06-21", cacheKey(helsinkiLat, helsinkiLon, day))
}
