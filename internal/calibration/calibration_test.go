//go:build integration

package calibration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixrcore/runtime/internal/calibration"
)

func TestFloorOffset_RoundTrips(t *testing.T) {
	store, err := calibration.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, found, err := store.FloorOffsetMeters("hmd-01")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetFloorOffsetMeters("hmd-01", 1.62))

	offset, found, err := store.FloorOffsetMeters("hmd-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 1.62, offset, 1e-9)
}

func TestDefaultIPDOverride_RoundTrips(t *testing.T) {
	store, err := calibration.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, found, err := store.DefaultIPDOverride()
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetDefaultIPDOverride(0.065))

	ipd, found, err := store.DefaultIPDOverride()
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 0.065, ipd, 1e-9)
}
