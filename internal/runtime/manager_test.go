package runtime

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-vision/synapse-core/internal/camera"
	"github.com/synapse-vision/synapse-core/internal/camerahandler"
	"github.com/synapse-vision/synapse-core/internal/config"
	"github.com/synapse-vision/synapse-core/internal/pipeline"
	"github.com/synapse-vision/synapse-core/internal/settings"

	_ "github.com/synapse-vision/synapse-core/pipelines/passthrough"
)

// fakeBus is an in-memory Bus used by tests in place of internal/telemetrybus.
type fakeBus struct {
	mu        sync.Mutex
	values    map[string]settings.Value
	listeners map[string][]func(settings.Value)
}

func newFakeBus() *fakeBus {
	return &fakeBus{values: map[string]settings.Value{}, listeners: map[string][]func(settings.Value){}}
}

func (b *fakeBus) Put(key string, value settings.Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *fakeBus) Get(key string) (settings.Value, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok
}

func (b *fakeBus) Subscribe(key string, fn func(settings.Value)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[key] = append(b.listeners[key], fn)
	idx := len(b.listeners[key]) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.listeners[key][idx] = nil
	}
}

// remoteWrite simulates the telemetry bus receiving a write from an
// external client, invoking every still-subscribed listener on key.
func (b *fakeBus) remoteWrite(key string, value settings.Value) {
	b.mu.Lock()
	fns := append([]func(settings.Value){}, b.listeners[key]...)
	b.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn(value)
		}
	}
}

func testLogger() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func fakeOpen(devicePath string, index int, logger *logrus.Entry) (camera.Camera, error) {
	return camera.NewFake(camera.VideoMode{Width: 320, Height: 240, FPS: 30}), nil
}

func setupManager(t *testing.T, n int) (*Manager, *config.Store, *fakeBus) {
	t.Helper()

	store := config.New()
	var devices []camerahandler.Device
	for i := 0; i < n; i++ {
		id := "dev-" + string(rune('a'+i))
		store.SetCameraConfig(i, config.CameraConfig{Index: i, Name: "cam", DeviceID: id})
		devices = append(devices, camerahandler.Device{DeviceID: id, Path: "/dev/videoX"})
	}

	handler := camerahandler.New(testLogger(), camerahandler.FixedEnumerator{Devices: devices}, store, fakeOpen)

	bus := newFakeBus()
	mgr := New(testLogger(), store, handler, nil, bus)
	loader := pipeline.New(testLogger(), mgr)
	mgr.loader = loader

	require.NoError(t, mgr.Setup())

	loader.AddPipeline(0, "passthrough-0", "passthrough", nil)
	loader.AddPipeline(1, "passthrough-1", "passthrough", nil)

	return mgr, store, bus
}

func TestSetPipelineByIndexRejectsUnknownCamera(t *testing.T) {
	mgr, _, _ := setupManager(t, 1)
	err := mgr.SetPipelineByIndex(99, 0)
	require.Error(t, err)
}

func TestSetPipelineByIndexRejectsUnknownPipeline(t *testing.T) {
	mgr, _, _ := setupManager(t, 1)
	err := mgr.SetPipelineByIndex(0, 99)
	require.Error(t, err)
}

func TestSetPipelineByIndexRejectsAlreadyBoundPipeline(t *testing.T) {
	mgr, _, _ := setupManager(t, 2)

	require.NoError(t, mgr.SetPipelineByIndex(0, 0))
	err := mgr.SetPipelineByIndex(1, 0)
	require.Error(t, err)
}

func TestSetPipelineByIndexAllowsRebindingSameCamera(t *testing.T) {
	mgr, _, _ := setupManager(t, 1)

	require.NoError(t, mgr.SetPipelineByIndex(0, 0))
	require.NoError(t, mgr.SetPipelineByIndex(0, 0))
}

func TestUpdateSettingRejectsUnknownKeyWithoutEcho(t *testing.T) {
	mgr, _, bus := setupManager(t, 1)
	require.NoError(t, mgr.SetPipelineByIndex(0, 0))

	// passthrough has an empty schema, so exercise updateSetting's no-op
	// rejection path instead: an unknown key is rejected and never echoed.
	mgr.updateSetting("not-a-real-setting", 0, settings.IntValue(5))

	_, ok := bus.Get("settings/camera0/not-a-real-setting")
	assert.False(t, ok)
}

func TestOnRemovePipelineRebindsToDefault(t *testing.T) {
	mgr, _, _ := setupManager(t, 1)

	require.NoError(t, mgr.SetPipelineByIndex(0, 0))
	mgr.loader.SetDefaultPipeline(0, 1)

	mgr.loader.RemovePipeline(0)

	idx, ok := mgr.binding(0)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}
