// Package runtime implements the Runtime Manager: the scheduler that owns
// the camera-to-pipeline binding map, spawns one worker per camera, mediates
// configuration changes between pipelines/cameras and the telemetry bus, and
// coordinates clean shutdown. Grounded on the teacher's Server.Run/init
// (internal/server/server.go's predecessor) generalized from a single fixed
// camera+pipeline into the spec's multi-camera binding model, and on the
// redesign note calling for an explicit context struct instead of global
// singletons.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/synapse-vision/synapse-core/internal/camera"
	"github.com/synapse-vision/synapse-core/internal/camerahandler"
	"github.com/synapse-vision/synapse-core/internal/config"
	"github.com/synapse-vision/synapse-core/internal/errs"
	"github.com/synapse-vision/synapse-core/internal/pipeline"
	"github.com/synapse-vision/synapse-core/internal/settings"
)

// InvalidPipelineIndex mirrors pipeline.InvalidIndex; a camera bound to it
// has no active pipeline.
const InvalidPipelineIndex = pipeline.InvalidIndex

// BindingSink receives a copy of every successful camera-to-pipeline
// binding, so a caller (internal/diskstate) can persist it across
// restarts. Optional: Manager works with a nil sink.
type BindingSink interface {
	PutBinding(cameraIndex, pipelineIndex int) error
}

// Manager is the explicit context struct spec.md §9's redesign note calls
// for in place of global singletons: every collaborator it needs is a
// field, constructed once by the caller (typically cmd/synapsed) and handed
// in, rather than reached for as package state.
type Manager struct {
	logger  *logrus.Entry
	store   *config.Store
	cameras *camerahandler.Handler
	loader  *pipeline.Loader
	bus     Bus

	diskState BindingSink
	events    *eventBus

	mu            sync.RWMutex
	bindings      map[int]int // cameraIndex -> pipelineIndex
	unsubscribers map[int][]func()

	running  int32
	workerWg sync.WaitGroup

	setupComplete int32
}

// New builds a Manager. bus may be nil, in which case telemetry mirroring
// is skipped (used by tests exercising binding logic in isolation).
func New(logger *logrus.Entry, store *config.Store, cameras *camerahandler.Handler, loader *pipeline.Loader, bus Bus) *Manager {
	m := &Manager{
		logger:        logger,
		store:         store,
		cameras:       cameras,
		loader:        loader,
		bus:           bus,
		events:        newEventBus(),
		bindings:      map[int]int{},
		unsubscribers: map[int][]func(){},
	}
	return m
}

// Subscribe registers l to receive every published Event. Must be called
// before Setup to avoid racing the dispatch goroutine's startup.
func (m *Manager) Subscribe(l Listener) {
	m.events.subscribe(l)
}

// SetDiskState wires a crash-recovery sink that receives every successful
// binding change. Optional: a nil sink (the default) skips persistence.
func (m *Manager) SetDiskState(sink BindingSink) {
	m.diskState = sink
}

// SetLoader wires the pipeline Loader after construction, for callers that
// build Manager and Loader in the order New(..., nil, ...) ->
// pipeline.New(logger, manager) -> manager.SetLoader(loader), since Manager
// and Loader each need a reference to the other.
func (m *Manager) SetLoader(loader *pipeline.Loader) {
	m.loader = loader
}

// OnAddPipeline implements pipeline.EventSink.
func (m *Manager) OnAddPipeline(index int, p pipeline.Pipeline) {
	m.events.emit(Event{Kind: EventAddPipeline, PipelineIndex: index, Pipeline: p})
}

// OnRemovePipeline implements pipeline.EventSink: rebinds every camera that
// had this pipeline bound to its configured default, or to the invalid
// sentinel if the removed pipeline was itself the default.
func (m *Manager) OnRemovePipeline(index int, p pipeline.Pipeline) {
	m.events.emit(Event{Kind: EventRemovePipeline, PipelineIndex: index, Pipeline: p})

	m.mu.Lock()
	affected := []int{}
	for camIdx, pipeIdx := range m.bindings {
		if pipeIdx == index {
			affected = append(affected, camIdx)
		}
	}
	for _, camIdx := range affected {
		m.unsubscribeCameraLocked(camIdx)
		m.bindings[camIdx] = InvalidPipelineIndex
	}
	m.mu.Unlock()

	for _, camIdx := range affected {
		def := m.loader.GetDefaultPipeline(camIdx)
		if def == index {
			def = InvalidPipelineIndex
		}
		if def == InvalidPipelineIndex {
			continue
		}
		if err := m.SetPipelineByIndex(camIdx, def); err != nil {
			m.logger.WithError(err).Warnf("couldn't rebind camera %d to default after pipeline %d removed", camIdx, index)
		}
	}
}

// Setup runs the setup sequence from spec.md §4.6: camera handler setup,
// pipeline loader setup, default binding assignment, telemetry listener
// wiring, and starting the event dispatcher. It does not start the metrics
// thread or worker loops; callers start those via Run.
func (m *Manager) Setup() error {
	m.events.subscribe(func(Event) {}) // keep listeners slice non-nil even with no external subscribers
	go m.events.run()

	if err := m.cameras.Setup(); err != nil {
		return fmt.Errorf("camera handler setup: %w", err)
	}

	m.loader.Setup(m.store.Pipelines())

	m.assignDefaultBindings()

	atomic.StoreInt32(&m.setupComplete, 1)
	return nil
}

// assignDefaultBindings matches each camera's configured DefaultPipeline
// name against the loader's loaded pipeline names and binds it, logging and
// skipping cameras whose configured default doesn't resolve to a loaded
// pipeline rather than failing setup outright.
func (m *Manager) assignDefaultBindings() {
	for _, camIdx := range m.cameras.Indices() {
		cc, ok := m.store.GetCameraConfig(camIdx)
		if !ok || cc.DefaultPipeline == "" {
			continue
		}

		pipeIdx, ok := m.findPipelineIndexByName(cc.DefaultPipeline)
		if !ok {
			m.logger.Warnf("camera %d: default pipeline %q not loaded", camIdx, cc.DefaultPipeline)
			continue
		}

		m.loader.SetDefaultPipeline(camIdx, pipeIdx)
		if err := m.SetPipelineByIndex(camIdx, pipeIdx); err != nil {
			m.logger.WithError(err).Warnf("camera %d: couldn't bind default pipeline %q", camIdx, cc.DefaultPipeline)
		}
	}
}

func (m *Manager) findPipelineIndexByName(name string) (int, bool) {
	for _, idx := range m.loader.Indices() {
		if n, ok := m.loader.Name(idx); ok && n == name {
			return idx, true
		}
	}
	return 0, false
}

// SetPipelineByIndex implements the binding rule from spec.md §4.6: reject
// unknown indices (KindBadIndex) and pipelines already bound elsewhere
// (KindPipelineBusy), otherwise write the binding, mirror it to the
// telemetry bus, and wire the camera's settings/subscriptions.
func (m *Manager) SetPipelineByIndex(cameraIndex, pipelineIndex int) error {
	if _, ok := m.cameras.Get(cameraIndex); !ok {
		return errs.Wrap(errs.KindBadIndex, fmt.Sprintf("unknown camera index %d", cameraIndex), nil)
	}
	if _, ok := m.loader.GetPipeline(pipelineIndex); !ok {
		return errs.Wrap(errs.KindBadIndex, fmt.Sprintf("unknown pipeline index %d", pipelineIndex), nil)
	}

	m.mu.Lock()
	for otherCam, boundPipe := range m.bindings {
		if boundPipe == pipelineIndex && otherCam != cameraIndex {
			m.mu.Unlock()
			return errs.Wrap(errs.KindPipelineBusy, fmt.Sprintf("pipeline %d already bound to camera %d", pipelineIndex, otherCam), nil)
		}
	}
	m.unsubscribeCameraLocked(cameraIndex)
	m.bindings[cameraIndex] = pipelineIndex
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Put(fmt.Sprintf("bindings/camera%d", cameraIndex), settings.IntValue(int64(pipelineIndex)))
	}
	if m.diskState != nil {
		if err := m.diskState.PutBinding(cameraIndex, pipelineIndex); err != nil {
			m.logger.WithError(err).Warnf("camera %d: couldn't persist binding to pipeline %d", cameraIndex, pipelineIndex)
		}
	}

	if err := m.setupPipelineForCamera(cameraIndex, pipelineIndex); err != nil {
		return err
	}

	m.events.emit(Event{Kind: EventPipelineChanged, CameraIndex: cameraIndex, PipelineIndex: pipelineIndex})
	return nil
}

// setupPipelineForCamera implements __setupPipelineForCamera: bind the
// pipeline instance to the camera, push its current settings to the
// telemetry bus, apply camera-property settings to the camera, and
// register a remote-write listener per setting key.
func (m *Manager) setupPipelineForCamera(cameraIndex, pipelineIndex int) error {
	p, ok := m.loader.GetPipeline(pipelineIndex)
	if !ok {
		return errs.Wrap(errs.KindNoPipeline, fmt.Sprintf("pipeline %d has no instance", pipelineIndex), nil)
	}
	values, ok := m.loader.GetPipelineSettings(pipelineIndex)
	if !ok {
		return errs.Wrap(errs.KindNoPipeline, fmt.Sprintf("pipeline %d has no settings", pipelineIndex), nil)
	}

	p.Bind(cameraIndex)

	cam, _ := m.cameras.Get(cameraIndex)

	var subs []func()
	for _, setting := range values.Schema() {
		key := fmt.Sprintf("settings/camera%d/%s", cameraIndex, setting.Key)
		value, _ := values.Get(setting.Key)

		if m.bus != nil {
			m.bus.Put(key, value)
		}

		if setting.CameraProperty != "" && cam != nil {
			if f, ok := value.AsFloat(); ok {
				cam.SetProperty(setting.CameraProperty, f)
			}
		}

		settingKey := setting.Key
		if m.bus != nil {
			unsub := m.bus.Subscribe(key, func(v settings.Value) {
				m.updateSetting(settingKey, cameraIndex, v)
				m.events.emit(Event{Kind: EventSettingChangedFromNT, CameraIndex: cameraIndex, Key: settingKey, Value: v})
			})
			subs = append(subs, unsub)
		}
	}

	m.mu.Lock()
	m.unsubscribers[cameraIndex] = subs
	m.mu.Unlock()

	return nil
}

func (m *Manager) unsubscribeCameraLocked(cameraIndex int) {
	for _, unsub := range m.unsubscribers[cameraIndex] {
		unsub()
	}
	delete(m.unsubscribers, cameraIndex)
}

// updateSetting implements spec.md §4.6's updateSetting for settings arriving
// from the telemetry bus: rejections are logged and swallowed, since a bad
// remote write shouldn't do more than get ignored.
func (m *Manager) updateSetting(key string, cameraIndex int, value settings.Value) {
	if err := m.UpdateSetting(cameraIndex, key, value); err != nil {
		m.logger.WithError(err).Warnf("camera %d: rejected setting %q", cameraIndex, key)
	}
}

// UpdateSetting validates and stores value for key against whatever pipeline
// cameraIndex is currently bound to, applies it to the camera if it names a
// camera property, fires onSettingChanged, and echoes the normalized value
// back to the bus if the constraint changed it (e.g. Range step-snapping).
// Used by both the telemetry bus's remote-write path and the HTTP API.
func (m *Manager) UpdateSetting(cameraIndex int, key string, value settings.Value) error {
	pipeIdx, ok := m.binding(cameraIndex)
	if !ok {
		return errs.Wrap(errs.KindBadIndex, fmt.Sprintf("camera %d has no bound pipeline", cameraIndex), nil)
	}
	values, ok := m.loader.GetPipelineSettings(pipeIdx)
	if !ok {
		return errs.Wrap(errs.KindNoPipeline, fmt.Sprintf("pipeline %d has no settings", pipeIdx), nil)
	}

	normalized, err := values.Set(key, value)
	if err != nil {
		return err
	}

	for _, setting := range values.Schema() {
		if setting.Key != key || setting.CameraProperty == "" {
			continue
		}
		if cam, ok := m.cameras.Get(cameraIndex); ok {
			if f, ok := normalized.AsFloat(); ok {
				cam.SetProperty(setting.CameraProperty, f)
			}
		}
		break
	}

	if p, ok := m.loader.GetPipeline(pipeIdx); ok {
		p.OnSettingChanged(key, normalized)
	}

	m.events.emit(Event{Kind: EventSettingChanged, CameraIndex: cameraIndex, Key: key, Value: normalized})

	if m.bus != nil && !normalized.Equal(value) {
		m.bus.Put(fmt.Sprintf("settings/camera%d/%s", cameraIndex, key), normalized)
	}

	return nil
}

// Bindings returns a snapshot of every camera's current pipeline binding,
// for the HTTP API's status/introspection routes.
func (m *Manager) Bindings() map[int]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]int, len(m.bindings))
	for camIdx, pipeIdx := range m.bindings {
		out[camIdx] = pipeIdx
	}
	return out
}

func (m *Manager) binding(cameraIndex int) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.bindings[cameraIndex]
	return idx, ok
}

// Run starts one worker goroutine per currently open camera and blocks
// until ctx is canceled, then coordinates shutdown: stops workers, cleans
// up the camera handler, and closes the event dispatcher.
func (m *Manager) Run(ctx context.Context) {
	atomic.StoreInt32(&m.running, 1)

	workerCtx, cancel := context.WithCancel(ctx)
	for _, camIdx := range m.cameras.Indices() {
		cam, ok := m.cameras.Get(camIdx)
		if !ok {
			continue
		}
		m.workerWg.Add(1)
		go func(idx int, c camera.Camera) {
			defer m.workerWg.Done()
			m.runWorker(workerCtx, idx, c)
		}(camIdx, cam)
	}

	<-ctx.Done()
	atomic.StoreInt32(&m.running, 0)
	cancel()
	m.workerWg.Wait()

	m.cameras.Cleanup()
	m.events.close()
}

// IsRunning reports whether Run's worker loops are active.
func (m *Manager) IsRunning() bool {
	return atomic.LoadInt32(&m.running) == 1
}

// SetupComplete reports whether Setup has finished.
func (m *Manager) SetupComplete() bool {
	return atomic.LoadInt32(&m.setupComplete) == 1
}
