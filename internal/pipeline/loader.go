package pipeline

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/synapse-vision/synapse-core/internal/config"
	"github.com/synapse-vision/synapse-core/internal/errs"
	"github.com/synapse-vision/synapse-core/internal/settings"
)

// EventSink receives pipeline lifecycle events. The runtime manager
// implements this (alongside its broader event taxonomy) without the
// pipeline package needing to import runtime.
type EventSink interface {
	OnAddPipeline(index int, p Pipeline)
	OnRemovePipeline(index int, p Pipeline)
}

// Loader holds every loaded pipeline type, instance, and per-camera default
// binding. It's the statically-registered replacement for the original
// project's directory-scanning discovery: Setup reads declared pipelines
// from the configuration store and resolves each one against the registry
// built by package init()s.
type Loader struct {
	logger *logrus.Entry
	sink   EventSink

	mu sync.RWMutex

	typeNames map[int]string
	names     map[int]string
	settings  map[int]*settings.Values
	instances map[int]Pipeline

	defaultPipelineIndexes map[int]int // camera index -> pipeline index
}

// New builds an empty Loader. sink may be nil if no one needs pipeline
// lifecycle events (e.g. in tests).
func New(logger *logrus.Entry, sink EventSink) *Loader {
	return &Loader{
		logger:                 logger,
		sink:                   sink,
		typeNames:              map[int]string{},
		names:                  map[int]string{},
		settings:               map[int]*settings.Values{},
		instances:              map[int]Pipeline{},
		defaultPipelineIndexes: map[int]int{},
	}
}

// InvalidIndex is the sentinel pipeline index meaning "no pipeline".
const InvalidIndex = -1

// Setup reads defs (typically store.Pipelines()) and instantiates each
// declared pipeline whose type is registered. An unregistered type name is
// a KindPipelineLoad error: it's logged and that slot is skipped, never
// fatal.
func (l *Loader) Setup(defs []config.PipelineDef) {
	for index, def := range defs {
		if err := l.addPipelineLocked(index, def.Name, def.Type, def.Settings); err != nil {
			if l.logger != nil {
				l.logger.WithError(err).Warnf("skipping pipeline %q (type %q)", def.Name, def.Type)
			}
		}
	}
}

// AddPipeline instantiates a new pipeline of typeName at index, installs it
// in every lookup map, and emits onAddPipeline.
func (l *Loader) AddPipeline(index int, name, typeName string, stored map[string]interface{}) error {
	l.mu.Lock()
	err := l.addPipelineLocked(index, name, typeName, stored)
	l.mu.Unlock()
	return err
}

func (l *Loader) addPipelineLocked(index int, name, typeName string, stored map[string]interface{}) error {
	reg, ok := Lookup(typeName)
	if !ok {
		return errs.Wrap(errs.KindPipelineLoad, fmt.Sprintf("no pipeline type registered as %q", typeName), nil)
	}

	values := settings.NewValues(reg.Schema)
	for key, raw := range stored {
		if err := decodeStoredSetting(values, reg.Schema, key, raw); err != nil && l.logger != nil {
			l.logger.WithError(err).Warnf("couldn't apply stored setting %q for pipeline %q", key, name)
		}
	}

	instance := reg.New(values)

	l.typeNames[index] = typeName
	l.names[index] = name
	l.settings[index] = values
	l.instances[index] = instance

	if l.sink != nil {
		l.sink.OnAddPipeline(index, instance)
	}

	return nil
}

func findSetting(schema settings.Schema, key string) (settings.Setting, bool) {
	for _, s := range schema {
		if s.Key == key {
			return s, true
		}
	}
	return settings.Setting{}, false
}

func decodeStoredSetting(values *settings.Values, schema settings.Schema, key string, raw interface{}) error {
	setting, ok := findSetting(schema, key)
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}

	kind := valueKindOf(setting.Default)
	v, err := settings.FromInterface(kind, raw)
	if err != nil {
		return err
	}

	_, err = values.Set(key, v)
	return err
}

func valueKindOf(v settings.Value) settings.Kind {
	return v.Kind
}

// RemovePipeline removes index from every map and emits onRemovePipeline.
// Any camera whose default pipeline was index is left for the runtime
// manager's subscription to rebind (to another default, or to
// InvalidIndex).
func (l *Loader) RemovePipeline(index int) {
	l.mu.Lock()
	instance, existed := l.instances[index]
	delete(l.typeNames, index)
	delete(l.names, index)
	delete(l.settings, index)
	delete(l.instances, index)
	l.mu.Unlock()

	if existed && l.sink != nil {
		l.sink.OnRemovePipeline(index, instance)
	}
}

// GetPipeline returns the pipeline instance bound at index, if any.
func (l *Loader) GetPipeline(index int) (Pipeline, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.instances[index]
	return p, ok
}

// GetPipelineSettings returns the settings object for index.
func (l *Loader) GetPipelineSettings(index int) (*settings.Values, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.settings[index]
	return s, ok
}

// GetPipelineTypeByIndex returns the registered type name backing index.
func (l *Loader) GetPipelineTypeByIndex(index int) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.typeNames[index]
	return t, ok
}

// GetPipelineTypeByName looks a registered type up in the global registry
// directly (a pure pass-through accessor named to match the loader's other
// lookups).
func (l *Loader) GetPipelineTypeByName(name string) (Registration, bool) {
	return Lookup(name)
}

// SetDefaultPipeline records cameraIndex's default pipeline binding.
func (l *Loader) SetDefaultPipeline(cameraIndex, pipelineIndex int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.defaultPipelineIndexes[cameraIndex] = pipelineIndex
}

// GetDefaultPipeline returns cameraIndex's default pipeline index, or
// InvalidIndex if none is set.
func (l *Loader) GetDefaultPipeline(cameraIndex int) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.defaultPipelineIndexes[cameraIndex]
	if !ok {
		return InvalidIndex
	}
	return idx
}

// Indices returns every loaded pipeline index.
func (l *Loader) Indices() []int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]int, 0, len(l.instances))
	for idx := range l.instances {
		out = append(out, idx)
	}
	return out
}

// Name returns the user-facing name for index.
func (l *Loader) Name(index int) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.names[index]
	return n, ok
}
