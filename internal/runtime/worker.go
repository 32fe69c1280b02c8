package runtime

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/synapse-vision/synapse-core/internal/camera"
	"github.com/synapse-vision/synapse-core/internal/pipeline"
	"github.com/synapse-vision/synapse-core/internal/settings"
)

// runWorker is the per-camera loop from spec.md §4.6's pseudocode: grab,
// fixup (rotation/black-level), process through the bound pipeline, select
// a debug view, publish it, and pace to the camera's declared max FPS.
func (m *Manager) runWorker(ctx context.Context, cameraIndex int, cam camera.Camera) {
	logger := m.logger.WithField("camera", cameraIndex)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		loopStart := time.Now()
		maxFPS := cam.MaxFPS()
		if maxFPS <= 0 {
			maxFPS = 30
		}
		frameTime := time.Duration(float64(time.Second) / maxFPS)

		frame, ok := cam.GrabFrame()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		captureLatency := time.Since(loopStart)

		fixed := m.fixtureFrame(cameraIndex, frame)

		m.syncRecording(cameraIndex)

		processStart := time.Now()
		pipeIdx, bound := m.binding(cameraIndex)
		var result pipeline.Result
		if bound {
			if p, ok := m.loader.GetPipeline(pipeIdx); ok {
				result = p.ProcessFrame(fixed, loopStart)
			} else {
				result = pipeline.SingleView(fixed)
			}
		} else {
			result = pipeline.SingleView(fixed)
		}
		processLatency := time.Since(processStart)
		m.publishLatency(cameraIndex, captureLatency, processLatency)

		selectedID, selected := m.selectView(result, cameraIndex)

		elapsed := time.Since(loopStart)
		if sleepFor := frameTime - elapsed; sleepFor > 0 {
			time.Sleep(sleepFor)
		}

		fps := 1.0
		if total := time.Since(loopStart).Seconds(); total > 0 {
			fps = 1.0 / total
		}
		overlayFPS(&selected, fps)

		if err := m.cameras.PublishFrame(cameraIndex, selected, image.Point{}); err != nil {
			logger.WithError(err).Warn("publish frame failed")
		}

		selected.Close()
		releaseResult(result, selectedID)
		fixed.Close()
		frame.Close()
	}
}

// fixtureFrame applies the bound pipeline's "orientation" setting, if it
// declares one, as a 90/180/270 rotation before the frame reaches
// ProcessFrame. Black-level adjustment is left a no-op hook: no builtin
// pipeline currently sets one.
func (m *Manager) fixtureFrame(cameraIndex int, frame gocv.Mat) gocv.Mat {
	pipeIdx, bound := m.binding(cameraIndex)
	if !bound {
		return frame.Clone()
	}
	values, ok := m.loader.GetPipelineSettings(pipeIdx)
	if !ok {
		return frame.Clone()
	}
	orientation, ok := values.Get("orientation")
	if !ok {
		return frame.Clone()
	}
	degrees, ok := orientation.ToInterface().(string)
	if !ok {
		return frame.Clone()
	}

	rotated := gocv.NewMat()
	switch degrees {
	case "90":
		gocv.Rotate(frame, &rotated, gocv.Rotate90Clockwise)
	case "180":
		gocv.Rotate(frame, &rotated, gocv.Rotate180Clockwise)
	case "270":
		gocv.Rotate(frame, &rotated, gocv.Rotate90CounterClockwise)
	default:
		rotated.Close()
		return frame.Clone()
	}
	return rotated
}

// publishLatency writes the per-frame capture and process timings to the
// telemetry bus, per spec.md §4.6's publishLatency(cameraIndex,
// captureLatency, processLatency) and §6's write list.
func (m *Manager) publishLatency(cameraIndex int, captureLatency, processLatency time.Duration) {
	if m.bus == nil {
		return
	}
	m.bus.Put(fmt.Sprintf("captureLatency/camera%d", cameraIndex), settings.FloatValue(captureLatency.Seconds()))
	m.bus.Put(fmt.Sprintf("processLatency/camera%d", cameraIndex), settings.FloatValue(processLatency.Seconds()))
}

// syncRecording mirrors the telemetry bus's per-camera "record" key into the
// camera handler's disk recorder toggle, per spec.md §3's record bool and
// §6's read list.
func (m *Manager) syncRecording(cameraIndex int) {
	if m.bus == nil {
		return
	}
	v, ok := m.bus.Get(fmt.Sprintf("record/camera%d", cameraIndex))
	if !ok {
		return
	}
	on, ok := v.ToInterface().(bool)
	if !ok {
		return
	}
	m.cameras.SetRecording(cameraIndex, on)
}

// selectView implements the view-selection rule from spec.md §4.6: a
// pipeline's result carries zero or more named views; absent a view_id
// request, "step_0" (the first) is published.
func (m *Manager) selectView(result pipeline.Result, cameraIndex int) (string, gocv.Mat) {
	if len(result.Views) == 0 {
		return "", gocv.NewMat()
	}

	requested := "step_0"
	if m.bus != nil {
		if v, ok := m.bus.Get(fmt.Sprintf("view_id/camera%d", cameraIndex)); ok {
			if s, ok := v.ToInterface().(string); ok && s != "" {
				requested = s
			}
		}
	}

	for _, view := range result.Views {
		if view.ID == requested {
			return view.ID, view.Frame
		}
	}
	return result.Views[0].ID, result.Views[0].Frame
}

// releaseResult closes every view Mat except the one identified by
// selectedID, which the caller owns from here on.
func releaseResult(result pipeline.Result, selectedID string) {
	for _, view := range result.Views {
		if view.ID != selectedID {
			view.Frame.Close()
		}
	}
}

func overlayFPS(frame *gocv.Mat, fps float64) {
	if frame.Empty() {
		return
	}
	text := fmt.Sprintf("%.1f fps", fps)
	gocv.PutText(frame, text, image.Point{X: 8, Y: 20}, gocv.FontHersheyPlain, 1.2, color.RGBA{R: 0, G: 255, B: 0, A: 255}, 2)
}
