// Package settings implements the declarative, typed settings schema shared
// by every pipeline: constraints, defaults, validation, and normalization.
package settings

import "fmt"

// Kind tags which field of a Value is meaningful. Settings and telemetry
// entries both use Value as their wire shape, so the constraint system only
// ever has to reason about this one closed set of kinds.
type Kind int

const (
	Int Kind = iota
	Float
	Bool
	String
	IntArray
	FloatArray
	BoolArray
	StringArray
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case String:
		return "string"
	case IntArray:
		return "int_array"
	case FloatArray:
		return "float_array"
	case BoolArray:
		return "bool_array"
	case StringArray:
		return "string_array"
	default:
		return "unknown"
	}
}

// Value is the tagged-union value type used uniformly by settings and by
// telemetry entries, replacing the dynamic typing of the original settings
// model with one closed Go shape.
type Value struct {
	Kind Kind

	IntV    int64
	FloatV  float64
	BoolV   bool
	StringV string

	IntArrayV    []int64
	FloatArrayV  []float64
	BoolArrayV   []bool
	StringArrayV []string
}

func IntValue(v int64) Value         { return Value{Kind: Int, IntV: v} }
func FloatValue(v float64) Value     { return Value{Kind: Float, FloatV: v} }
func BoolValue(v bool) Value         { return Value{Kind: Bool, BoolV: v} }
func StringValue(v string) Value     { return Value{Kind: String, StringV: v} }
func IntArrayValue(v []int64) Value  { return Value{Kind: IntArray, IntArrayV: v} }
func FloatArrayValue(v []float64) Value {
	return Value{Kind: FloatArray, FloatArrayV: v}
}
func BoolArrayValue(v []bool) Value { return Value{Kind: BoolArray, BoolArrayV: v} }
func StringArrayValue(v []string) Value {
	return Value{Kind: StringArray, StringArrayV: v}
}

// AsFloat coerces numeric kinds to float64, used by Range constraint math
// and by camera-property application.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case Int:
		return float64(v.IntV), true
	case Float:
		return v.FloatV, true
	default:
		return 0, false
	}
}

// Equal reports deep equality between two values of the same kind.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case Int:
		return v.IntV == other.IntV
	case Float:
		return v.FloatV == other.FloatV
	case Bool:
		return v.BoolV == other.BoolV
	case String:
		return v.StringV == other.StringV
	case IntArray:
		return int64SliceEqual(v.IntArrayV, other.IntArrayV)
	case FloatArray:
		return float64SliceEqual(v.FloatArrayV, other.FloatArrayV)
	case BoolArray:
		return boolSliceEqual(v.BoolArrayV, other.BoolArrayV)
	case StringArray:
		return stringSliceEqual(v.StringArrayV, other.StringArrayV)
	}
	return false
}

func int64SliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func float64SliceEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func boolSliceEqual(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ToInterface converts a Value to the plain interface{} shape yaml.v3 and
// encoding/json expect, so the configuration store and HTTP API can encode
// it without knowing about Kind.
func (v Value) ToInterface() interface{} {
	switch v.Kind {
	case Int:
		return v.IntV
	case Float:
		return v.FloatV
	case Bool:
		return v.BoolV
	case String:
		return v.StringV
	case IntArray:
		return v.IntArrayV
	case FloatArray:
		return v.FloatArrayV
	case BoolArray:
		return v.BoolArrayV
	case StringArray:
		return v.StringArrayV
	default:
		return nil
	}
}

// FromInterface builds a Value from a decoded YAML/JSON scalar or slice. The
// target kind must be known ahead of time (from the Setting's declared
// constraint), since a bare interface{} can't distinguish "1" meant as an
// int from "1" meant as a float.
func FromInterface(kind Kind, raw interface{}) (Value, error) {
	switch kind {
	case Int:
		i, ok := toInt64(raw)
		if !ok {
			return Value{}, fmt.Errorf("expected int, got %T", raw)
		}
		return IntValue(i), nil
	case Float:
		f, ok := toFloat64(raw)
		if !ok {
			return Value{}, fmt.Errorf("expected float, got %T", raw)
		}
		return FloatValue(f), nil
	case Bool:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("expected bool, got %T", raw)
		}
		return BoolValue(b), nil
	case String:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return StringValue(s), nil
	case IntArray, FloatArray, BoolArray, StringArray:
		items, ok := raw.([]interface{})
		if !ok {
			return Value{}, fmt.Errorf("expected array, got %T", raw)
		}
		return fromInterfaceArray(kind, items)
	default:
		return Value{}, fmt.Errorf("unknown value kind %v", kind)
	}
}

func fromInterfaceArray(kind Kind, items []interface{}) (Value, error) {
	switch kind {
	case IntArray:
		out := make([]int64, len(items))
		for i, item := range items {
			v, ok := toInt64(item)
			if !ok {
				return Value{}, fmt.Errorf("array element %d: expected int, got %T", i, item)
			}
			out[i] = v
		}
		return IntArrayValue(out), nil
	case FloatArray:
		out := make([]float64, len(items))
		for i, item := range items {
			v, ok := toFloat64(item)
			if !ok {
				return Value{}, fmt.Errorf("array element %d: expected float, got %T", i, item)
			}
			out[i] = v
		}
		return FloatArrayValue(out), nil
	case BoolArray:
		out := make([]bool, len(items))
		for i, item := range items {
			v, ok := item.(bool)
			if !ok {
				return Value{}, fmt.Errorf("array element %d: expected bool, got %T", i, item)
			}
			out[i] = v
		}
		return BoolArrayValue(out), nil
	case StringArray:
		out := make([]string, len(items))
		for i, item := range items {
			v, ok := item.(string)
			if !ok {
				return Value{}, fmt.Errorf("array element %d: expected string, got %T", i, item)
			}
			out[i] = v
		}
		return StringArrayValue(out), nil
	}
	return Value{}, fmt.Errorf("unknown array kind %v", kind)
}

func toInt64(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func toFloat64(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
