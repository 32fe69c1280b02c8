package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/synapse-vision/synapse-core/internal/camera"
	"github.com/synapse-vision/synapse-core/internal/camerahandler"
	"github.com/synapse-vision/synapse-core/internal/config"
	"github.com/synapse-vision/synapse-core/internal/pipeline"
	"github.com/synapse-vision/synapse-core/internal/runtime"

	_ "github.com/synapse-vision/synapse-core/pipelines/passthrough"
)

func testLogger() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func fakeOpen(devicePath string, index int, logger *logrus.Entry) (camera.Camera, error) {
	return camera.NewFake(camera.VideoMode{Width: 320, Height: 240, FPS: 30}), nil
}

// testServer wires a Store/Handler/Loader/Manager without a bus or disk
// state, mirroring internal/runtime's own test setup but through exported
// constructors only, since this package can't reach into Manager's fields.
func testServer(t *testing.T) *Server {
	t.Helper()

	store := config.New()
	store.SetCameraConfig(0, config.CameraConfig{Index: 0, Name: "cam0", DeviceID: "dev-a"})

	handler := camerahandler.New(testLogger(), camerahandler.FixedEnumerator{
		Devices: []camerahandler.Device{{DeviceID: "dev-a", Path: "/dev/videoX"}},
	}, store, fakeOpen)

	mgr := runtime.New(testLogger(), store, handler, nil, nil)
	loader := pipeline.New(testLogger(), mgr)
	mgr.SetLoader(loader)

	require.NoError(t, mgr.Setup())
	require.NoError(t, loader.AddPipeline(0, "passthrough-0", "passthrough", nil))

	return &Server{
		Store:   store,
		Cameras: handler,
		Loader:  loader,
		Manager: mgr,
		Logger:  testLogger(),
	}
}

func (s *Server) testRouter() http.Handler {
	mux := httprouter.New()
	mux.HandlerFunc(http.MethodGet, "/cameras", s.listCameras)
	mux.HandlerFunc(http.MethodGet, "/cameras/:index", s.getCamera)
	mux.HandlerFunc(http.MethodPut, "/cameras/:index", s.putCamera)
	mux.HandlerFunc(http.MethodGet, "/bindings", s.listBindings)
	mux.HandlerFunc(http.MethodPut, "/bindings/:camera", s.putBinding)
	mux.HandlerFunc(http.MethodGet, "/pipelines", s.listPipelines)
	mux.HandlerFunc(http.MethodGet, "/pipelines/:index/schema", s.getPipelineSchema)
	mux.HandlerFunc(http.MethodGet, "/pipelines/:index/settings", s.getPipelineSettings)
	mux.HandlerFunc(http.MethodPut, "/cameras/:index/settings/:key", s.putCameraSetting)
	return mux
}

func TestListCameras(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/cameras", nil)
	rec := httptest.NewRecorder()

	s.testRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []config.CameraConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	require.Equal(t, "cam0", out[0].Name)
}

func TestGetCameraMissingReturnsNotFound(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/cameras/99", nil)
	rec := httptest.NewRecorder()

	s.testRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutCameraPersistsAndSaves(t *testing.T) {
	s := testServer(t)
	path := t.TempDir() + "/settings.yml"
	require.NoError(t, s.Store.SaveAs(path))

	body, _ := json.Marshal(config.CameraConfig{Name: "renamed", DeviceID: "dev-a"})
	req := httptest.NewRequest(http.MethodPut, "/cameras/0", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.testRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	cc, ok := s.Store.GetCameraConfig(0)
	require.True(t, ok)
	require.Equal(t, "renamed", cc.Name)
}

func TestPutBindingBindsCameraToPipeline(t *testing.T) {
	s := testServer(t)
	body, _ := json.Marshal(bindingRequest{PipelineIndex: 0})
	req := httptest.NewRequest(http.MethodPut, "/bindings/0", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.testRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, map[int]int{0: 0}, s.Manager.Bindings())
}

func TestPutBindingRejectsUnknownCamera(t *testing.T) {
	s := testServer(t)
	body, _ := json.Marshal(bindingRequest{PipelineIndex: 0})
	req := httptest.NewRequest(http.MethodPut, "/bindings/99", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.testRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPipelines(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/pipelines", nil)
	rec := httptest.NewRecorder()

	s.testRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []pipelineSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	require.Equal(t, "passthrough", out[0].Type)
}

func TestGetPipelineSchema(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/pipelines/0/schema", nil)
	rec := httptest.NewRecorder()

	s.testRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetPipelineSettingsUnknownIndexNotFound(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/pipelines/99/settings", nil)
	rec := httptest.NewRecorder()

	s.testRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutCameraSettingUnknownKeyNotFound(t *testing.T) {
	s := testServer(t)
	require.NoError(t, s.Manager.SetPipelineByIndex(0, 0))

	body, _ := json.Marshal(5)
	req := httptest.NewRequest(http.MethodPut, "/cameras/0/settings/not-real", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.testRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
