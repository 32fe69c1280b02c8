package settings

import (
	"sync"

	"github.com/synapse-vision/synapse-core/internal/errs"
)

// Setting declares one named field of a pipeline's settings object: its
// constraint, default value, and optional human-facing description.
type Setting struct {
	Key         string
	Constraint  Constraint
	Default     Value
	Description string
	// CameraProperty, if non-empty, names the camera property this setting
	// mirrors (e.g. "exposure", "brightness"); the runtime manager applies
	// it to the bound camera in addition to storing it.
	CameraProperty string
}

// Schema is an ordered set of Settings, in declaration order — order is
// preserved so schema() output and config round-trips stay stable.
type Schema []Setting

func (s Schema) find(key string) (Setting, bool) {
	for _, setting := range s {
		if setting.Key == key {
			return setting, true
		}
	}
	return Setting{}, false
}

// Describe renders the schema as a UI-generation-friendly dict, keyed by
// setting name, preserving declaration order via an explicit "order" list.
func (s Schema) Describe() map[string]interface{} {
	fields := make(map[string]interface{}, len(s))
	order := make([]string, len(s))
	for i, setting := range s {
		order[i] = setting.Key
		desc := setting.Constraint.Describe()
		desc["default"] = setting.Default.ToInterface()
		if setting.Description != "" {
			desc["description"] = setting.Description
		}
		fields[setting.Key] = desc
	}
	return map[string]interface{}{"fields": fields, "order": order}
}

// Values is a typed, per-pipeline settings object: a Schema plus the
// currently stored, normalized Value for each key. Every value stored is
// the validated/normalized result of its constraint; Set never writes an
// unvalidated value.
type Values struct {
	mu     sync.RWMutex
	schema Schema
	stored map[string]Value
}

// NewValues builds a Values object with every setting initialized to its
// declared default.
func NewValues(schema Schema) *Values {
	stored := make(map[string]Value, len(schema))
	for _, setting := range schema {
		stored[setting.Key] = setting.Default
	}
	return &Values{schema: schema, stored: stored}
}

// Get returns the current normalized value for name.
func (v *Values) Get(name string) (Value, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.stored[name]
	return val, ok
}

// Set validates value against name's constraint and, on success, stores the
// normalized result. On failure the prior value is left intact and a
// *errs.Error is returned (KindUnknownSetting or KindInvalidSetting).
func (v *Values) Set(name string, value Value) (Value, error) {
	setting, ok := v.schema.find(name)
	if !ok {
		return Value{}, errs.Wrap(errs.KindUnknownSetting, "no such setting "+name, nil)
	}

	result := setting.Constraint.Validate(value)
	if !result.Valid {
		return Value{}, errs.Wrap(errs.KindInvalidSetting, result.ErrorMessage, nil)
	}

	v.mu.Lock()
	v.stored[name] = result.Normalized
	v.mu.Unlock()

	return result.Normalized, nil
}

// Schema returns the descriptor schema backing this settings object.
func (v *Values) Schema() Schema {
	return v.schema
}

// ToDict snapshots every stored value, suitable for persisting to the
// configuration store or mirroring onto the telemetry bus.
func (v *Values) ToDict() map[string]Value {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]Value, len(v.stored))
	for k, val := range v.stored {
		out[k] = val
	}
	return out
}

// FromDict loads values from a previously-saved snapshot (e.g. the
// configuration store's pipeline settings map), validating each one. A
// value for an unknown or invalid key is skipped rather than aborting the
// whole load, since a stale config shouldn't prevent pipeline setup.
func (v *Values) FromDict(values map[string]Value) []error {
	var problems []error
	for key, value := range values {
		if _, err := v.Set(key, value); err != nil {
			problems = append(problems, err)
		}
	}
	return problems
}
