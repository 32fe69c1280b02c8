package camera

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synapse-vision/synapse-core/internal/errs"
	"gocv.io/x/gocv"
)

// GocvCamera wraps a gocv.VideoCapture (a plain USB/V4L2 device) and drives
// it with a background producer goroutine, matching the original project's
// direct-capture backend.
type GocvCamera struct {
	logger *logrus.Entry

	capture *gocv.VideoCapture
	queue   *dropOldestQueue

	mode VideoMode

	properties   map[string]float64
	propertyMeta map[string]PropertyMeta
	propertiesMu sync.RWMutex

	running   int32
	stopped   chan struct{}
	connected int32
}

// Open opens devPath (an index like "0" or a /dev/videoN-style path) and
// starts its producer goroutine. Failure to open maps to KindCameraOpen.
func Open(devPath string, index int, logger *logrus.Entry) (*GocvCamera, error) {
	capture, err := gocv.OpenVideoCapture(devPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindCameraOpen, fmt.Sprintf("couldn't open camera device %q", devPath), err)
	}

	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))
	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = 30
	}

	c := &GocvCamera{
		logger:  logger,
		capture: capture,
		queue:   newDropOldestQueue(),
		mode:    VideoMode{Width: width, Height: height, FPS: fps},
		properties: map[string]float64{},
		propertyMeta: map[string]PropertyMeta{
			"brightness": {Min: 0, Max: 255, Default: 128},
			"exposure":   {Min: -10, Max: 10, Default: 0},
		},
		stopped:   make(chan struct{}),
		connected: 1,
		running:   1,
	}

	go c.produce()

	return c, nil
}

// produce is the background producer thread contract: wait until connected,
// grab a frame, deep-copy it, push to the bounded drop-oldest queue, then
// sleep roughly 1/(2*maxFPS) before the next iteration.
func (c *GocvCamera) produce() {
	defer close(c.stopped)

	buf := gocv.NewMat()
	defer buf.Close()

	for atomic.LoadInt32(&c.running) == 1 {
		if atomic.LoadInt32(&c.connected) == 0 {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if ok := c.capture.Read(&buf); !ok || buf.Empty() {
			atomic.StoreInt32(&c.connected, 0)
			if c.logger != nil {
				c.logger.Warn("camera read failed, marking disconnected")
			}
			continue
		}

		owned := buf.Clone()
		c.queue.push(owned)

		fps := c.mode.FPS
		if fps <= 0 {
			fps = 30
		}
		time.Sleep(time.Duration(float64(time.Second) / (2 * fps)))
	}
}

func (c *GocvCamera) GrabFrame() (gocv.Mat, bool) {
	return c.queue.pop()
}

func (c *GocvCamera) SetProperty(name string, value float64) error {
	c.propertiesMu.Lock()
	defer c.propertiesMu.Unlock()

	if meta, ok := c.propertyMeta[name]; ok {
		if value < meta.Min {
			value = meta.Min
		}
		if value > meta.Max {
			value = meta.Max
		}
	}

	if prop, ok := gocvPropertyID(name); ok {
		c.capture.Set(prop, value)
	}
	c.properties[name] = value

	return nil
}

func (c *GocvCamera) GetProperty(name string) (float64, bool) {
	c.propertiesMu.RLock()
	defer c.propertiesMu.RUnlock()
	v, ok := c.properties[name]
	return v, ok
}

func (c *GocvCamera) PropertyMeta(name string) (PropertyMeta, bool) {
	c.propertiesMu.RLock()
	defer c.propertiesMu.RUnlock()
	meta, ok := c.propertyMeta[name]
	return meta, ok
}

// SetVideoMode negotiates the nearest supported mode. gocv can't always
// guarantee an exact match; if the backend refuses every dimension we
// asked for, the prior mode is kept and KindVideoModeUnsupported is logged.
func (c *GocvCamera) SetVideoMode(mode VideoMode) error {
	c.capture.Set(gocv.VideoCaptureFrameWidth, float64(mode.Width))
	c.capture.Set(gocv.VideoCaptureFrameHeight, float64(mode.Height))
	if mode.FPS > 0 {
		c.capture.Set(gocv.VideoCaptureFPS, mode.FPS)
	}

	gotWidth := int(c.capture.Get(gocv.VideoCaptureFrameWidth))
	gotHeight := int(c.capture.Get(gocv.VideoCaptureFrameHeight))

	if gotWidth == 0 || gotHeight == 0 {
		if c.logger != nil {
			c.logger.Warnf("video mode %dx%d@%g unsupported, keeping %dx%d@%g", mode.Width, mode.Height, mode.FPS, c.mode.Width, c.mode.Height, c.mode.FPS)
		}
		return errs.New(errs.KindVideoModeUnsupported, "requested video mode not supported")
	}

	c.mode.Width = gotWidth
	c.mode.Height = gotHeight
	if mode.FPS > 0 {
		c.mode.FPS = mode.FPS
	}

	return nil
}

func (c *GocvCamera) Resolution() (int, int) {
	return c.mode.Width, c.mode.Height
}

func (c *GocvCamera) MaxFPS() float64 {
	return c.mode.FPS
}

func (c *GocvCamera) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Close signals the producer to stop and joins it with a bounded 1s
// timeout; if it fails to join in time the camera is abandoned rather than
// blocking shutdown indefinitely.
func (c *GocvCamera) Close() error {
	atomic.StoreInt32(&c.running, 0)

	select {
	case <-c.stopped:
	case <-time.After(time.Second):
		if c.logger != nil {
			c.logger.Warn("producer thread did not stop within 1s, abandoning camera")
		}
	}

	c.queue.drain()

	return c.capture.Close()
}

func gocvPropertyID(name string) (gocv.VideoCaptureProperties, bool) {
	switch name {
	case "brightness":
		return gocv.VideoCaptureBrightness, true
	case "exposure":
		return gocv.VideoCaptureExposure, true
	case "contrast":
		return gocv.VideoCaptureContrast, true
	case "saturation":
		return gocv.VideoCaptureSaturation, true
	case "gain":
		return gocv.VideoCaptureGain, true
	default:
		return 0, false
	}
}
