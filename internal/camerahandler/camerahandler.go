// Package camerahandler enumerates physical camera devices, opens and
// tracks the resulting camera.Camera instances, auto-registers devices that
// show up with no matching CameraConfig, and owns per-camera output sinks
// (an mjpeg stream plus an optional disk recorder), grounded on the
// original project's CameraHandler.createCameras and the teacher's capture
// setup in cmd/visionserver and internal/server.
package camerahandler

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/hybridgroup/mjpeg"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/synapse-vision/synapse-core/internal/camera"
	"github.com/synapse-vision/synapse-core/internal/config"
	"github.com/synapse-vision/synapse-core/internal/errs"
)

const (
	maxOpenRetries = 30
	retryInterval  = time.Second
	defaultStreamW = 320
	defaultStreamH = 240
	recordFPS      = 30.0
)

// AutoRegisterSink receives a copy of every CameraConfig Setup
// auto-registers for a physically-present, unconfigured device, so a
// caller (internal/diskstate) can persist it across restarts.
type AutoRegisterSink interface {
	PutAutoRegisteredCamera(index int, cc config.CameraConfig) error
}

// Device describes a physical device discovered by an Enumerator.
type Device struct {
	DeviceID string // stable identifier, e.g. /dev/v4l/by-id/... symlink target
	Path     string // e.g. /dev/video0
}

// Enumerator discovers physically-connected camera devices. NewV4L2Enumerator
// builds the production backend; tests supply a fixed list instead.
type Enumerator interface {
	Enumerate() ([]Device, error)
}

// entry bundles a live camera with its output sinks.
type entry struct {
	name      string
	camera    camera.Camera
	stream    *mjpeg.Stream
	streamRes image.Point
	recorder  *gocv.VideoWriter
	recordOn  bool
}

// Handler owns every opened camera and its output sinks.
type Handler struct {
	logger    *logrus.Entry
	enum      Enumerator
	store     *config.Store
	openFn    func(devicePath string, index int, logger *logrus.Entry) (camera.Camera, error)
	diskState AutoRegisterSink

	mu      sync.RWMutex
	cameras map[int]*entry
}

// SetDiskState wires a crash-recovery sink that receives every
// auto-registered camera config Setup discovers. Optional: a nil sink
// (the default) skips persistence.
func (h *Handler) SetDiskState(sink AutoRegisterSink) {
	h.diskState = sink
}

// New builds a Handler. openFn lets tests substitute a fake camera
// constructor instead of opening real V4L2 devices.
func New(logger *logrus.Entry, enum Enumerator, store *config.Store, openFn func(devicePath string, index int, logger *logrus.Entry) (camera.Camera, error)) *Handler {
	return &Handler{
		logger:  logger,
		enum:    enum,
		store:   store,
		openFn:  openFn,
		cameras: map[int]*entry{},
	}
}

// OpenGocv adapts camera.Open to the Handler's openFn signature for
// production use against real V4L2 devices.
func OpenGocv(devicePath string, index int, logger *logrus.Entry) (camera.Camera, error) {
	return camera.Open(devicePath, index, logger)
}

// Setup matches configured CameraConfigs to physical devices, opens each
// with retry, auto-registers any unconfigured device found, and allocates
// output sinks for every camera that opened successfully.
func (h *Handler) Setup() error {
	devices, err := h.enum.Enumerate()
	if err != nil {
		return errs.Wrap(errs.KindCameraOpen, "enumerate devices", err)
	}

	matchedDeviceIDs := map[string]bool{}

	for _, index := range h.store.CameraIndices() {
		cc, ok := h.store.GetCameraConfig(index)
		if !ok {
			continue
		}
		dev, found := findDeviceByID(devices, cc.DeviceID)
		if !found {
			h.logger.Warnf("camera %d (%s) not physically present", index, cc.DeviceID)
			continue
		}
		matchedDeviceIDs[dev.DeviceID] = true
		h.openWithRetry(index, cc.Name, dev.Path, cc.StreamRes)
	}

	for _, dev := range devices {
		if matchedDeviceIDs[dev.DeviceID] {
			continue
		}
		index := h.store.NextCameraIndex()
		name := fmt.Sprintf("camera%d", index)
		cc := config.CameraConfig{
			Index:           index,
			Name:            name,
			DeviceID:        dev.DeviceID,
			DefaultPipeline: "",
			MeasuredRes:     [2]int{defaultStreamW, defaultStreamH},
			StreamRes:       [2]int{defaultStreamW, defaultStreamH},
		}
		h.store.SetCameraConfig(index, cc)
		if h.diskState != nil {
			if err := h.diskState.PutAutoRegisteredCamera(index, cc); err != nil {
				h.logger.WithError(err).Warnf("camera %d: couldn't persist auto-registration", index)
			}
		}
		h.logger.Infof("auto-registered camera %d for new device %s", index, dev.DeviceID)
		h.openWithRetry(index, name, dev.Path, cc.StreamRes)
	}

	return nil
}

func findDeviceByID(devices []Device, id string) (Device, bool) {
	if id == "" {
		return Device{}, false
	}
	for _, d := range devices {
		if d.DeviceID == id {
			return d, true
		}
	}
	return Device{}, false
}

func (h *Handler) openWithRetry(index int, name, devicePath string, streamRes [2]int) {
	var cam camera.Camera
	var err error
	for attempt := 0; attempt < maxOpenRetries; attempt++ {
		cam, err = h.openFn(devicePath, index, h.logger)
		if err == nil {
			break
		}
		time.Sleep(retryInterval)
	}
	if err != nil {
		h.logger.WithError(err).Warnf("camera %d (%s) failed to open after %d retries", index, devicePath, maxOpenRetries)
		return
	}

	w, hh := streamRes[0], streamRes[1]
	if w == 0 || hh == 0 {
		w, hh = defaultStreamW, defaultStreamH
	}

	e := &entry{
		name:      name,
		camera:    cam,
		stream:    mjpeg.NewStream(),
		streamRes: image.Point{X: w, Y: hh},
	}

	resW, resH := cam.Resolution()
	writer, werr := gocv.VideoWriterFile(fmt.Sprintf("camera-%d.avi", index), "MJPG", recordFPS, resW, resH, true)
	if werr != nil {
		h.logger.WithError(werr).Warnf("camera %d: disk recorder unavailable", index)
	} else {
		e.recorder = writer
	}

	h.mu.Lock()
	h.cameras[index] = e
	h.mu.Unlock()
}

// Get returns the camera bound at index.
func (h *Handler) Get(index int) (camera.Camera, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.cameras[index]
	if !ok {
		return nil, false
	}
	return e.camera, true
}

// Stream returns the mjpeg stream for index, for wiring into the HTTP API.
func (h *Handler) Stream(index int) (*mjpeg.Stream, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.cameras[index]
	if !ok {
		return nil, false
	}
	return e.stream, true
}

// Indices returns every successfully opened camera index.
func (h *Handler) Indices() []int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]int, 0, len(h.cameras))
	for idx := range h.cameras {
		out = append(out, idx)
	}
	return out
}

// SetRecording toggles the disk recorder for index. The runtime worker
// calls it with the boolean read from the "record/camera<index>" bus key.
func (h *Handler) SetRecording(index int, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.cameras[index]; ok {
		e.recordOn = on
	}
}

// PublishFrame resizes frame to the camera's stream resolution, pushes it
// to the stream sink, and writes it to the disk recorder if recording is
// enabled.
func (h *Handler) PublishFrame(index int, frame gocv.Mat, streamRes image.Point) error {
	h.mu.RLock()
	e, ok := h.cameras[index]
	h.mu.RUnlock()
	if !ok {
		return errs.New(errs.KindBadIndex, fmt.Sprintf("no such camera %d", index))
	}

	resized := gocv.NewMat()
	defer resized.Close()

	target := streamRes
	if target.X == 0 || target.Y == 0 {
		target = e.streamRes
	}
	if target.X == 0 || target.Y == 0 {
		target = image.Point{X: defaultStreamW, Y: defaultStreamH}
	}
	gocv.Resize(frame, &resized, target, 0, 0, gocv.InterpolationArea)

	buf, err := gocv.IMEncode(".jpg", resized)
	if err != nil {
		return fmt.Errorf("encode frame for camera %d: %w", index, err)
	}
	e.stream.UpdateJPEG(buf.GetBytes())

	if e.recordOn && e.recorder != nil {
		if err := e.recorder.Write(frame); err != nil {
			h.logger.WithError(err).Warnf("camera %d: recorder write failed", index)
		}
	}

	return nil
}

// Cleanup releases every recorder and closes every camera.
func (h *Handler) Cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for idx, e := range h.cameras {
		if e.recorder != nil {
			e.recorder.Close()
		}
		if err := e.camera.Close(); err != nil {
			h.logger.WithError(err).Warnf("camera %d: close failed", idx)
		}
	}
	h.cameras = map[int]*entry{}
}
