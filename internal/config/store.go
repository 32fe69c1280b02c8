package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/synapse-vision/synapse-core/internal/errs"
	"gopkg.in/yaml.v3"
)

// fileShape mirrors the top-level sections of config/settings.yml exactly,
// so Marshal/Unmarshal round-trip it without any hand-rolled key handling
// beyond what CameraConfigMap already does for camera_configs.
type fileShape struct {
	Network NetworkConfig `yaml:"network"`
	Global  struct {
		CameraConfigs CameraConfigMap `yaml:"camera_configs"`
	} `yaml:"global"`
	Pipelines []PipelineDef `yaml:"pipelines"`
}

// Store is the Configuration Store: a process-wide, thread-safe holder of
// camera hardware configuration and per-pipeline setting values, backed by
// a YAML file on disk.
type Store struct {
	mu   sync.RWMutex
	path string

	network   NetworkConfig
	cameras   *CameraConfigMap
	pipelines []PipelineDef
}

// New builds an empty Store; Load populates it from a file.
func New() *Store {
	return &Store{cameras: NewCameraConfigMap()}
}

// Load parses path, validates its structural shape, and populates the
// store. A missing file, malformed YAML, a degenerate camera intrinsic
// matrix, or two cameras sharing a device identifier all fail with
// KindConfigParse, which is fatal at startup.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.KindConfigParse, "couldn't read config file "+path, err)
	}

	var shape fileShape
	if err := yaml.Unmarshal(data, &shape); err != nil {
		return errs.Wrap(errs.KindConfigParse, "couldn't parse config file "+path, err)
	}

	if err := validateCameraConfigs(&shape.Global.CameraConfigs); err != nil {
		return errs.Wrap(errs.KindConfigParse, "invalid camera configuration", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.path = path
	s.network = shape.Network
	s.cameras = &shape.Global.CameraConfigs
	s.pipelines = shape.Pipelines

	return nil
}

// validateCameraConfigs enforces the store's invariants: every intrinsic
// matrix is nonsingular, and no two cameras share a device identifier (an
// Open Question the spec resolves in favor of rejecting at load).
func validateCameraConfigs(m *CameraConfigMap) error {
	seenDeviceIDs := make(map[string]int)

	for _, idx := range m.Indices() {
		cc, _ := m.Get(idx)

		if determinant3x3(cc.Matrix) == 0 {
			return fmt.Errorf("camera %d: intrinsic matrix is singular", idx)
		}

		if cc.DeviceID != "" {
			if other, exists := seenDeviceIDs[cc.DeviceID]; exists {
				return fmt.Errorf("cameras %d and %d share device identifier %q", other, idx, cc.DeviceID)
			}
			seenDeviceIDs[cc.DeviceID] = idx
		}
	}

	return nil
}

// Save atomically re-serializes the store to its loaded path: block style,
// 2-space indent, key order preserved, full-precision floats (yaml.v3's
// default float formatting already emits full precision).
func (s *Store) Save() error {
	s.mu.RLock()
	shape := fileShape{Network: s.network, Pipelines: s.pipelines}
	shape.Global.CameraConfigs = *s.cameras
	path := s.path
	s.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("store has no associated path; call Load first")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&shape); err != nil {
		return fmt.Errorf("couldn't encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("couldn't finalize config encoder: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("couldn't write temp config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("couldn't replace config file: %w", err)
	}

	return nil
}

// SaveAs saves to a new path, leaving the store's load path updated to it —
// used by tests that round-trip load→save into a scratch file.
func (s *Store) SaveAs(path string) error {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	return s.Save()
}

// Network returns the network section consumed by the telemetry bus.
func (s *Store) Network() NetworkConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network
}

// GetCameraConfig returns the camera config at index.
func (s *Store) GetCameraConfig(index int) (CameraConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cameras.Get(index)
}

// SetCameraConfig writes (or replaces) the camera config at index.
func (s *Store) SetCameraConfig(index int, c CameraConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras.Put(index, c)
}

// CameraIndices returns every known camera index in stable order.
func (s *Store) CameraIndices() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cameras.Indices()
}

// NextCameraIndex returns an index one past the highest known camera index,
// for auto-registering a newly discovered, unconfigured device.
func (s *Store) NextCameraIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cameras.MaxIndex() + 1
}

// Pipelines returns the declared pipeline definitions, in file order.
func (s *Store) Pipelines() []PipelineDef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PipelineDef, len(s.pipelines))
	copy(out, s.pipelines)
	return out
}

// SetPipelines replaces the declared pipeline definitions wholesale (used
// when persisting a new default pipeline assignment or settings change back
// to disk).
func (s *Store) SetPipelines(defs []PipelineDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines = defs
}

// DefaultConfigPath returns the conventional on-disk location of the
// settings file relative to a base directory.
func DefaultConfigPath(baseDir string) string {
	return filepath.Join(baseDir, "config", "settings.yml")
}
