package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestDropOldestQueueNeverExceedsCapacity(t *testing.T) {
	cam := NewFake(VideoMode{Width: 320, Height: 240, FPS: 30})

	for i := 0; i < 1000; i++ {
		cam.Push(gocv.NewMat())
		assert.LessOrEqual(t, cam.QueueLen(), queueCapacity)
	}
}

func TestDropOldestQueueDiscardsOldestOnOverflow(t *testing.T) {
	cam := NewFake(VideoMode{})

	for i := 0; i < queueCapacity+2; i++ {
		cam.Push(gocv.NewMat())
	}

	assert.Equal(t, queueCapacity, cam.QueueLen())
}

func TestFakeCameraGrabFrameEmptyWhenDrained(t *testing.T) {
	cam := NewFake(VideoMode{})

	_, ok := cam.GrabFrame()
	require.False(t, ok)

	cam.Push(gocv.NewMat())
	_, ok = cam.GrabFrame()
	require.True(t, ok)

	_, ok = cam.GrabFrame()
	require.False(t, ok)
}

func TestFakeCameraSetPropertyStoresValue(t *testing.T) {
	cam := NewFake(VideoMode{})
	require.NoError(t, cam.SetProperty("brightness", 50))

	v, ok := cam.GetProperty("brightness")
	require.True(t, ok)
	assert.Equal(t, 50.0, v)
}
