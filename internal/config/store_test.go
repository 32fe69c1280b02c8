package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
network:
  team_number: 1234
  name: synapse
  server: false
global:
  camera_configs:
    0:
      name: front
      id: usb-0000:01:00.0
      transform:
        - [0.1, 0.2, 0.3]
        - [0, 0, 0]
      default_pipeline: 0
      matrix:
        - [600, 0, 320]
        - [0, 600, 240]
        - [0, 0, 1]
      distCoeffs: [0, 0, 0, 0, 0]
      measured_res: [640, 480]
      stream_res: [320, 240]
pipelines:
  - type: color
    name: cube-tracker
    settings:
      minHue: 5
`

func writeSample(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))
	return path
}

func TestStoreLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := writeSample(t, dir)

	store := New()
	require.NoError(t, store.Load(path))

	assert.Equal(t, 1234, store.Network().TeamNumber)

	cc, ok := store.GetCameraConfig(0)
	require.True(t, ok)
	assert.Equal(t, "front", cc.Name)
	assert.Equal(t, "usb-0000:01:00.0", cc.DeviceID)

	pipelines := store.Pipelines()
	require.Len(t, pipelines, 1)
	assert.Equal(t, "color", pipelines[0].Type)
}

func TestStoreLoadRejectsDuplicateDeviceID(t *testing.T) {
	dir := t.TempDir()
	path := writeSample(t, dir)

	store := New()
	require.NoError(t, store.Load(path))

	cc, _ := store.GetCameraConfig(0)
	store.SetCameraConfig(1, cc) // same DeviceID as camera 0
	require.NoError(t, store.Save())

	reloaded := New()
	err := reloaded.Load(path)
	require.Error(t, err)
}

func TestStoreRoundTripsLoadSave(t *testing.T) {
	dir := t.TempDir()
	path := writeSample(t, dir)

	store := New()
	require.NoError(t, store.Load(path))

	savePath := filepath.Join(dir, "resaved.yml")
	require.NoError(t, store.SaveAs(savePath))

	reloaded := New()
	require.NoError(t, reloaded.Load(savePath))

	assert.Equal(t, store.Network(), reloaded.Network())
	assert.Equal(t, store.CameraIndices(), reloaded.CameraIndices())

	orig, _ := store.GetCameraConfig(0)
	again, _ := reloaded.GetCameraConfig(0)
	assert.Equal(t, orig, again)
}
