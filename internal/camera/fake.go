package camera

import (
	"sync/atomic"

	"gocv.io/x/gocv"
)

// FakeCamera is an in-memory Camera used by tests: frames are pushed
// directly onto the drop-oldest queue by the test rather than produced by a
// background goroutine reading a real device.
type FakeCamera struct {
	queue     *dropOldestQueue
	mode      VideoMode
	connected int32

	properties map[string]float64
}

// NewFake builds a FakeCamera with the given reported video mode.
func NewFake(mode VideoMode) *FakeCamera {
	return &FakeCamera{
		queue:      newDropOldestQueue(),
		mode:       mode,
		connected:  1,
		properties: map[string]float64{},
	}
}

// Push enqueues a frame exactly as a real producer thread would, including
// drop-oldest semantics — used by tests exercising queue-depth invariants.
func (f *FakeCamera) Push(frame gocv.Mat) {
	f.queue.push(frame)
}

// QueueLen exposes the current queue depth for invariant assertions.
func (f *FakeCamera) QueueLen() int {
	return f.queue.len()
}

func (f *FakeCamera) GrabFrame() (gocv.Mat, bool) {
	return f.queue.pop()
}

func (f *FakeCamera) SetProperty(name string, value float64) error {
	f.properties[name] = value
	return nil
}

func (f *FakeCamera) GetProperty(name string) (float64, bool) {
	v, ok := f.properties[name]
	return v, ok
}

func (f *FakeCamera) PropertyMeta(name string) (PropertyMeta, bool) {
	return PropertyMeta{}, false
}

func (f *FakeCamera) SetVideoMode(mode VideoMode) error {
	f.mode = mode
	return nil
}

func (f *FakeCamera) Resolution() (int, int) {
	return f.mode.Width, f.mode.Height
}

func (f *FakeCamera) MaxFPS() float64 {
	return f.mode.FPS
}

func (f *FakeCamera) IsConnected() bool {
	return atomic.LoadInt32(&f.connected) == 1
}

func (f *FakeCamera) SetConnected(connected bool) {
	if connected {
		atomic.StoreInt32(&f.connected, 1)
	} else {
		atomic.StoreInt32(&f.connected, 0)
	}
}

func (f *FakeCamera) Close() error {
	f.queue.drain()
	return nil
}

var _ Camera = (*FakeCamera)(nil)
var _ Camera = (*GocvCamera)(nil)
