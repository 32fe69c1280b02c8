// Package passthrough implements a trivial pipeline that returns the input
// frame unmodified, grounded on the original project's calibration
// pipeline's behavior when no detector is configured. It's used by tests
// and as a safe default binding.
package passthrough

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/synapse-vision/synapse-core/internal/pipeline"
	"github.com/synapse-vision/synapse-core/internal/settings"
)

const TypeName = "passthrough"

func init() {
	pipeline.Register(pipeline.Registration{
		TypeName: TypeName,
		Schema:   settings.Schema{},
		New: func(values *settings.Values) pipeline.Pipeline {
			return &Pipeline{values: values}
		},
	})
}

// Pipeline returns the frame it's given, unmodified.
type Pipeline struct {
	values      *settings.Values
	cameraIndex int
}

func (p *Pipeline) Bind(cameraIndex int) { p.cameraIndex = cameraIndex }

func (p *Pipeline) Settings() *settings.Values { return p.values }

func (p *Pipeline) OnSettingChanged(key string, value settings.Value) {}

func (p *Pipeline) ProcessFrame(frame gocv.Mat, timestamp time.Time) pipeline.Result {
	return pipeline.SingleView(frame)
}
