package hardware

import (
	"sync"

	"github.com/synapse-vision/synapse-core/internal/pipeline"
	"github.com/synapse-vision/synapse-core/internal/runtime"
)

// Controller drives a board's PipelineActive status indicator off the
// runtime Manager's event stream: the indicator is lit while at least one
// camera holds a bound, non-invalid pipeline, and dark otherwise.
type Controller struct {
	indicators StatusIndicators

	mu     sync.Mutex
	bound  map[int]int // cameraIndex -> pipelineIndex, only while active
}

// NewController builds a Controller. Register it with a Manager via
// manager.Subscribe(controller.Listener).
func NewController(indicators StatusIndicators) *Controller {
	return &Controller{indicators: indicators, bound: map[int]int{}}
}

// Listener satisfies runtime.Listener.
func (c *Controller) Listener(e runtime.Event) {
	switch e.Kind {
	case runtime.EventPipelineChanged, runtime.EventPipelineChangedFromNT:
		c.setCameraBinding(e.CameraIndex, e.PipelineIndex)
	case runtime.EventRemovePipeline:
		c.clearCamerasBoundTo(e.PipelineIndex)
	}
}

func (c *Controller) setCameraBinding(cameraIndex, pipelineIndex int) {
	c.mu.Lock()
	if pipelineIndex == pipeline.InvalidIndex {
		delete(c.bound, cameraIndex)
	} else {
		c.bound[cameraIndex] = pipelineIndex
	}
	anyActive := len(c.bound) > 0
	c.mu.Unlock()

	c.publish(anyActive)
}

// clearCamerasBoundTo drops every camera still recorded as bound to a
// pipeline that just got removed. Manager rebinds most of these to a
// default and emits a follow-up EventPipelineChanged; a camera left with
// no default is never rebound, so this is the only signal Controller gets
// for it.
func (c *Controller) clearCamerasBoundTo(pipelineIndex int) {
	c.mu.Lock()
	for camIdx, boundPipe := range c.bound {
		if boundPipe == pipelineIndex {
			delete(c.bound, camIdx)
		}
	}
	anyActive := len(c.bound) > 0
	c.mu.Unlock()

	c.publish(anyActive)
}

func (c *Controller) publish(anyActive bool) {
	_ = c.indicators.SetStatus(PipelineActive, anyActive)
}
