package camerahandler

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-vision/synapse-core/internal/camera"
	"github.com/synapse-vision/synapse-core/internal/config"
)

func testLogger() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func fakeOpen(devicePath string, index int, logger *logrus.Entry) (camera.Camera, error) {
	return camera.NewFake(camera.VideoMode{Width: 320, Height: 240, FPS: 30}), nil
}

func TestSetupMatchesConfiguredDeviceByID(t *testing.T) {
	store := config.New()
	store.SetCameraConfig(0, config.CameraConfig{Index: 0, Name: "front", DeviceID: "usb-0000:01:00.0-1"})

	enum := FixedEnumerator{Devices: []Device{{DeviceID: "usb-0000:01:00.0-1", Path: "/dev/video0"}}}
	h := New(testLogger(), enum, store, fakeOpen)

	require.NoError(t, h.Setup())
	assert.ElementsMatch(t, []int{0}, h.Indices())
}

func TestSetupAutoRegistersUnconfiguredDevice(t *testing.T) {
	store := config.New()

	enum := FixedEnumerator{Devices: []Device{{DeviceID: "usb-new-device", Path: "/dev/video1"}}}
	h := New(testLogger(), enum, store, fakeOpen)

	require.NoError(t, h.Setup())

	indices := store.CameraIndices()
	require.Len(t, indices, 1)

	cc, ok := store.GetCameraConfig(indices[0])
	require.True(t, ok)
	assert.Equal(t, "usb-new-device", cc.DeviceID)
	assert.Contains(t, h.Indices(), indices[0])
}

func TestSetupSkipsUnmatchedConfiguredCamera(t *testing.T) {
	store := config.New()
	store.SetCameraConfig(0, config.CameraConfig{Index: 0, Name: "front", DeviceID: "not-present"})

	h := New(testLogger(), FixedEnumerator{}, store, fakeOpen)

	require.NoError(t, h.Setup())
	assert.Empty(t, h.Indices())
}

func TestCleanupClosesAllCameras(t *testing.T) {
	store := config.New()
	store.SetCameraConfig(0, config.CameraConfig{Index: 0, Name: "front", DeviceID: "dev-a"})

	enum := FixedEnumerator{Devices: []Device{{DeviceID: "dev-a", Path: "/dev/video0"}}}
	h := New(testLogger(), enum, store, fakeOpen)
	require.NoError(t, h.Setup())

	h.Cleanup()
	assert.Empty(t, h.Indices())
}
