// Package camera implements the Camera Abstraction: a uniform capability
// set over capture devices, with a background producer thread that offers a
// bounded, drop-oldest buffer of recent frames.
package camera

import (
	"gocv.io/x/gocv"
)

// queueCapacity is the producer-side frame queue's fixed capacity; on
// overflow the oldest frame is discarded before the new one is admitted.
const queueCapacity = 5

// VideoMode is a capture device's negotiated frame geometry and rate.
type VideoMode struct {
	Width       int
	Height      int
	FPS         float64
	PixelFormat string
}

// PropertyMeta describes the legal range of a camera property, used to
// clamp writes before they reach the backend.
type PropertyMeta struct {
	Min     float64
	Max     float64
	Default float64
}

// Camera is the capability set every capture backend (OpenCV-direct,
// background-producer-thread) must satisfy. At most one producer thread
// exists per Camera; frames it offers are owned copies, never aliased into
// the backend's internal buffer.
type Camera interface {
	// GrabFrame is non-blocking: it returns the next queued frame, if any.
	// An empty queue yields (zero Mat, false) rather than blocking.
	GrabFrame() (gocv.Mat, bool)

	SetProperty(name string, value float64) error
	GetProperty(name string) (float64, bool)
	PropertyMeta(name string) (PropertyMeta, bool)

	// SetVideoMode negotiates the nearest supported mode. An unsupported
	// request logs a warning, leaves the current mode unchanged, and returns
	// a KindVideoModeUnsupported error.
	SetVideoMode(mode VideoMode) error
	Resolution() (width, height int)
	MaxFPS() float64

	IsConnected() bool

	// Close signals the producer thread to stop, joins it with a bounded
	// timeout, and releases the underlying device.
	Close() error
}

// dropOldestQueue is the bounded SPSC frame queue shared by every backend's
// producer thread: capacity 5, drop-oldest on overflow.
type dropOldestQueue struct {
	frames chan gocv.Mat
}

func newDropOldestQueue() *dropOldestQueue {
	return &dropOldestQueue{frames: make(chan gocv.Mat, queueCapacity)}
}

// push admits frame, discarding (and releasing) the oldest queued frame
// first if the queue is already at capacity.
func (q *dropOldestQueue) push(frame gocv.Mat) {
	select {
	case q.frames <- frame:
		return
	default:
	}

	select {
	case old := <-q.frames:
		old.Close()
	default:
	}

	select {
	case q.frames <- frame:
	default:
		frame.Close()
	}
}

// pop is the non-blocking consumer side GrabFrame delegates to.
func (q *dropOldestQueue) pop() (gocv.Mat, bool) {
	select {
	case frame := <-q.frames:
		return frame, true
	default:
		return gocv.Mat{}, false
	}
}

// len reports the current queue depth, used by tests asserting invariant 1
// (queue size never exceeds capacity).
func (q *dropOldestQueue) len() int {
	return len(q.frames)
}

// drain closes out every remaining queued frame, called on Close.
func (q *dropOldestQueue) drain() {
	for {
		select {
		case frame := <-q.frames:
			frame.Close()
		default:
			return
		}
	}
}
