package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synapse-vision/synapse-core/internal/pipeline"
	"github.com/synapse-vision/synapse-core/internal/runtime"
)

type fakeIndicators struct {
	lastStatus Status
	lastValue  bool
	calls      int
}

func (f *fakeIndicators) SetStatus(status Status, value bool) error {
	f.lastStatus = status
	f.lastValue = value
	f.calls++
	return nil
}

func TestControllerLightsStatusOnFirstBinding(t *testing.T) {
	ind := &fakeIndicators{}
	c := NewController(ind)

	c.Listener(runtime.Event{Kind: runtime.EventPipelineChanged, CameraIndex: 0, PipelineIndex: 0})

	assert.Equal(t, 1, ind.calls)
	assert.True(t, ind.lastValue)
}

func TestControllerDarkensStatusWhenLastCameraUnbound(t *testing.T) {
	ind := &fakeIndicators{}
	c := NewController(ind)

	c.Listener(runtime.Event{Kind: runtime.EventPipelineChanged, CameraIndex: 0, PipelineIndex: 0})
	c.Listener(runtime.Event{Kind: runtime.EventPipelineChanged, CameraIndex: 0, PipelineIndex: pipeline.InvalidIndex})

	assert.False(t, ind.lastValue)
}

func TestControllerKeepsStatusLitWhileAnotherCameraBound(t *testing.T) {
	ind := &fakeIndicators{}
	c := NewController(ind)

	c.Listener(runtime.Event{Kind: runtime.EventPipelineChanged, CameraIndex: 0, PipelineIndex: 0})
	c.Listener(runtime.Event{Kind: runtime.EventPipelineChanged, CameraIndex: 1, PipelineIndex: 1})
	c.Listener(runtime.Event{Kind: runtime.EventRemovePipeline, PipelineIndex: 0})

	assert.True(t, ind.lastValue)
}

func TestControllerRemovePipelineClearsAllBoundCameras(t *testing.T) {
	ind := &fakeIndicators{}
	c := NewController(ind)

	c.Listener(runtime.Event{Kind: runtime.EventPipelineChanged, CameraIndex: 0, PipelineIndex: 0})
	c.Listener(runtime.Event{Kind: runtime.EventRemovePipeline, PipelineIndex: 0})

	assert.False(t, ind.lastValue)
}
