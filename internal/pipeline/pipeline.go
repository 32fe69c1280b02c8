// Package pipeline defines the Pipeline contract and the registry that
// replaces the original project's reflective, on-disk pipeline discovery:
// every pipeline implementation registers itself by name from an init()
// func, and the loader looks declared types up by that name instead of
// scanning and importing files at runtime.
package pipeline

import (
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/synapse-vision/synapse-core/internal/settings"
)

// Detection is a single typed result a pipeline publishes to the telemetry
// bus's `data/` subtree, replacing the original project's pattern of
// monkey-patching ad hoc attributes onto a detection object.
type Detection struct {
	Label      string
	Confidence float64
	BoundingBox image.Rectangle
	Center      image.Point
	Extra       map[string]settings.Value
}

// View is one debug framing a pipeline produced during a single tick. The
// telemetry bus entry `view_id` selects which one the runtime publishes.
type View struct {
	ID    string
	Frame gocv.Mat
}

// Result is everything a pipeline may hand back from ProcessFrame: zero or
// more views (conventionally "step_0", "step_1", ...) and zero or more
// structured detections.
type Result struct {
	Views      []View
	Detections []Detection
}

// SingleView builds a Result carrying exactly one view named "step_0", the
// common case for a pipeline that doesn't expose intermediate debug stages.
func SingleView(frame gocv.Mat, detections ...Detection) Result {
	return Result{
		Views:      []View{{ID: "step_0", Frame: frame}},
		Detections: detections,
	}
}

// Pipeline is the capability set the runtime expects of every pipeline
// implementation: bind to a camera, process one frame, observe setting
// changes, and expose its settings object.
type Pipeline interface {
	// Bind is called when the runtime assigns this pipeline instance to a
	// camera. It carries no required behavior beyond bookkeeping.
	Bind(cameraIndex int)

	// ProcessFrame consumes one input frame and produces a Result. The
	// pipeline must treat its Settings() object as a concurrent reader,
	// since OnSettingChanged may run concurrently with ProcessFrame.
	ProcessFrame(frame gocv.Mat, timestamp time.Time) Result

	// OnSettingChanged is an optional hook invoked after a setting write
	// validates successfully.
	OnSettingChanged(key string, value settings.Value)

	// Settings returns this instance's settings object.
	Settings() *settings.Values
}

// Factory constructs a new Pipeline instance bound to the given settings
// object, which the loader has already populated from the configuration
// store's stored values.
type Factory func(values *settings.Values) Pipeline

// Registration is what a pipeline implementation hands the registry: its
// type name, the schema used to build its settings object, and a factory.
type Registration struct {
	TypeName string
	Schema   settings.Schema
	New      Factory
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Registration{}
)

// Register installs a pipeline type under typeName. Implementations call
// this from an init() func; a name registered twice panics at program
// start, since that's a build-time programming error, not a runtime one.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[reg.TypeName]; exists {
		panic(fmt.Sprintf("pipeline type %q already registered", reg.TypeName))
	}
	registry[reg.TypeName] = reg
}

// Lookup returns the registration for typeName, if any.
func Lookup(typeName string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[typeName]
	return reg, ok
}

// RegisteredTypes returns every currently registered type name, in no
// particular order.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
