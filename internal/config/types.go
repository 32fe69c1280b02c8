// Package config implements the Configuration Store: a process-wide,
// thread-safe key/value store holding camera hardware configuration and
// per-pipeline setting values, loaded from and saved to a YAML file with a
// deterministic round-trip.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// NetworkConfig is the `network` section consumed by the telemetry bus
// collaborator (team number, identity, and whether this process acts as
// the bus server).
type NetworkConfig struct {
	TeamNumber int    `yaml:"team_number"`
	Name       string `yaml:"name"`
	Server     bool   `yaml:"server"`
}

// Transform is a camera's robot-frame mount transform: translation in
// meters and rotation in degrees, encoded on the wire as the two-row
// [[tx,ty,tz],[rx,ry,rz]] shape the original configuration format used.
type Transform struct {
	Translation [3]float64
	RotationDeg [3]float64
}

func (t Transform) MarshalYAML() (interface{}, error) {
	return [2][3]float64{t.Translation, t.RotationDeg}, nil
}

func (t *Transform) UnmarshalYAML(value *yaml.Node) error {
	var raw [2][3]float64
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("couldn't decode transform: %w", err)
	}
	t.Translation = raw[0]
	t.RotationDeg = raw[1]
	return nil
}

// CameraConfig is the static per-camera configuration described in the data
// model: identifier, stable device id, intrinsics, resolutions, mount
// transform, and the pipeline to bind by default. DefaultPipeline holds a
// pipeline name, matched against the names in the pipelines list; a numeric
// value is compared as a name too and is not read as a pipeline index.
type CameraConfig struct {
	// Index is the logical camera index this config is keyed under; it is
	// not itself part of the YAML record (it's the mapping key), so it's
	// populated on decode and consulted on encode instead of round-tripping.
	Index int `yaml:"-"`

	Name            string     `yaml:"name"`
	DeviceID        string     `yaml:"id"`
	Transform       Transform  `yaml:"transform"`
	DefaultPipeline string     `yaml:"default_pipeline"`
	Matrix          [3][3]float64 `yaml:"matrix"`
	DistCoeffs      []float64  `yaml:"distCoeffs"`
	MeasuredRes     [2]int     `yaml:"measured_res"`
	StreamRes       [2]int     `yaml:"stream_res"`
}

// determinant3x3 is used to reject degenerate intrinsic matrices at load.
func determinant3x3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// PipelineDef is one entry of the `pipelines` list: the registered type
// name to instantiate, a user-facing display name, and its stored setting
// values (decoded lazily against the type's schema by the pipeline loader).
type PipelineDef struct {
	Type     string                 `yaml:"type"`
	Name     string                 `yaml:"name"`
	Settings map[string]interface{} `yaml:"settings"`
}

// CameraConfigMap is the `global.camera_configs` section: a mapping from
// integer camera index to CameraConfig. It preserves the exact key order it
// was decoded with (or appended in) so that load→save→load round-trips
// produce an identical file, since a plain Go map has no stable order.
type CameraConfigMap struct {
	order []int
	items map[int]CameraConfig
}

// NewCameraConfigMap builds an empty, ready-to-use CameraConfigMap.
func NewCameraConfigMap() *CameraConfigMap {
	return &CameraConfigMap{items: make(map[int]CameraConfig)}
}

func (m *CameraConfigMap) ensure() {
	if m.items == nil {
		m.items = make(map[int]CameraConfig)
	}
}

// Get returns the config stored at index, if any.
func (m *CameraConfigMap) Get(index int) (CameraConfig, bool) {
	m.ensure()
	c, ok := m.items[index]
	return c, ok
}

// Put inserts or replaces the config at index, appending it to the known
// order the first time it's seen.
func (m *CameraConfigMap) Put(index int, c CameraConfig) {
	m.ensure()
	c.Index = index
	if _, exists := m.items[index]; !exists {
		m.order = append(m.order, index)
	}
	m.items[index] = c
}

// Indices returns every known camera index in stable (decode/insertion)
// order.
func (m *CameraConfigMap) Indices() []int {
	out := make([]int, len(m.order))
	copy(out, m.order)
	return out
}

// MaxIndex returns the highest known camera index, or -1 if the map is
// empty. Used by the camera handler to allocate indices for newly
// discovered, unconfigured devices.
func (m *CameraConfigMap) MaxIndex() int {
	max := -1
	for _, idx := range m.order {
		if idx > max {
			max = idx
		}
	}
	return max
}

func (m *CameraConfigMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("camera_configs must be a mapping, got kind %d", value.Kind)
	}

	m.items = make(map[int]CameraConfig)
	m.order = nil

	for i := 0; i < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]

		var idx int
		if err := keyNode.Decode(&idx); err != nil {
			return fmt.Errorf("couldn't decode camera index %q: %w", keyNode.Value, err)
		}

		var cc CameraConfig
		if err := valNode.Decode(&cc); err != nil {
			return fmt.Errorf("couldn't decode camera config for index %d: %w", idx, err)
		}
		cc.Index = idx

		m.items[idx] = cc
		m.order = append(m.order, idx)
	}

	return nil
}

func (m CameraConfigMap) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for _, idx := range m.order {
		cc := m.items[idx]

		keyNode := &yaml.Node{}
		if err := keyNode.Encode(idx); err != nil {
			return nil, fmt.Errorf("couldn't encode camera index %d: %w", idx, err)
		}

		valNode := &yaml.Node{}
		if err := valNode.Encode(cc); err != nil {
			return nil, fmt.Errorf("couldn't encode camera config %d: %w", idx, err)
		}

		node.Content = append(node.Content, keyNode, valNode)
	}

	return node, nil
}
