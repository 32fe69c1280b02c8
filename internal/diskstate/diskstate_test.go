package diskstate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-vision/synapse-core/internal/config"
)

func newTestStore(t *testing.T) *BBolt {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diskstate.db")
	store, err := Open(path, 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store.(*BBolt)
}

func TestBindingsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.PutBinding(0, 2))
	require.NoError(t, store.PutBinding(1, 0))

	bindings, err := store.Bindings()
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 2, 1: 0}, bindings)
}

func TestPutBindingOverwritesExisting(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.PutBinding(0, 1))
	require.NoError(t, store.PutBinding(0, 3))

	bindings, err := store.Bindings()
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 3}, bindings)
}

func TestBindingsEmptyStoreReturnsEmptyMap(t *testing.T) {
	store := newTestStore(t)

	bindings, err := store.Bindings()
	require.NoError(t, err)
	assert.Empty(t, bindings)
}

func TestAutoRegisteredCamerasRoundTrip(t *testing.T) {
	store := newTestStore(t)

	cc := config.CameraConfig{
		Name:        "camera3",
		DeviceID:    "usb-0000:01:00.0-1",
		MeasuredRes: [2]int{320, 240},
		StreamRes:   [2]int{320, 240},
	}
	require.NoError(t, store.PutAutoRegisteredCamera(3, cc))

	cameras, err := store.AutoRegisteredCameras()
	require.NoError(t, err)
	require.Contains(t, cameras, 3)
	got := cameras[3]
	assert.Equal(t, 3, got.Index)
	assert.Equal(t, "camera3", got.Name)
	assert.Equal(t, "usb-0000:01:00.0-1", got.DeviceID)
	assert.Equal(t, [2]int{320, 240}, got.StreamRes)
}

func TestClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diskstate.db")
	store, err := Open(path, 0600, nil)
	require.NoError(t, err)

	assert.NoError(t, store.Close())
}
