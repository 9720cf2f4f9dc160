package sun

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSunCommand_Daylight(t *testing.T) {
	t.Parallel()

	out, err := run(t, "--lat", "9.93", "--lon", "-84.08", "--time", "2025-03-20T18:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "daylight:   true")
	assert.Contains(t, out, "sunrise:")
	assert.Contains(t, out, "civil dusk:")
}

func TestSunCommand_Night(t *testing.T) {
	t.Parallel()

	out, err := run(t, "--lat", "9.93", "--lon", "-84.08", "--time", "2025-03-20T06:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "daylight:   false")
}

func TestSunCommand_PolarNight(t *testing.T) {
	t.Parallel()

	out, err := run(t, "--lat", "80", "--lon", "15", "--time", "2025-12-21T12:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "events:     unavailable")
}

func TestSunCommand_InvalidTime(t *testing.T) {
	t.Parallel()

	_, err := run(t, "--lat", "0", "--lon", "0", "--time", "yesterday")
	require.Error(t, err)
}

func TestSunCommand_RequiresCoordinates(t *testing.T) {
	t.Parallel()

	_, err := run(t, "--lat", "10")
	require.Error(t, err)
}
