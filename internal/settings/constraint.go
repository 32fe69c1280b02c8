package settings

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ValidationResult is the closed result shape every Constraint returns:
// either the value is valid (with its normalized form), or it's rejected
// with a human-readable reason and the prior value is left untouched.
type ValidationResult struct {
	Valid        bool
	ErrorMessage string
	Normalized   Value
}

func invalid(format string, args ...interface{}) ValidationResult {
	return ValidationResult{Valid: false, ErrorMessage: fmt.Sprintf(format, args...)}
}

func valid(v Value) ValidationResult {
	return ValidationResult{Valid: true, Normalized: v}
}

// Constraint validates and normalizes a Value. Describe returns a schema
// dict suitable for UI generation and HTTP introspection.
type Constraint interface {
	Validate(v Value) ValidationResult
	Describe() map[string]interface{}
}

// Range validates a numeric value against an optional [Min, Max] bound and
// snaps it to the nearest Step offset from Min when Step is set.
type Range struct {
	Min  *float64
	Max  *float64
	Step *float64
}

func (r Range) Validate(v Value) ValidationResult {
	f, ok := v.AsFloat()
	if !ok {
		return invalid("expected a numeric value, got %s", v.Kind)
	}

	if r.Min != nil && f < *r.Min {
		return invalid("value %v is below minimum %v", f, *r.Min)
	}
	if r.Max != nil && f > *r.Max {
		return invalid("value %v is above maximum %v", f, *r.Max)
	}

	if r.Step != nil && *r.Step > 0 {
		base := 0.0
		if r.Min != nil {
			base = *r.Min
		}
		steps := math.Round((f - base) / *r.Step)
		f = base + steps**r.Step
		if r.Max != nil && f > *r.Max {
			f = *r.Max
		}
		if r.Min != nil && f < *r.Min {
			f = *r.Min
		}
	}

	if v.Kind == Int {
		return valid(IntValue(int64(math.Round(f))))
	}
	return valid(FloatValue(f))
}

func (r Range) Describe() map[string]interface{} {
	d := map[string]interface{}{"type": "range"}
	if r.Min != nil {
		d["min"] = *r.Min
	}
	if r.Max != nil {
		d["max"] = *r.Max
	}
	if r.Step != nil {
		d["step"] = *r.Step
	}
	return d
}

// Enumerated validates membership in a fixed option list. When AllowMultiple
// is set, the value must be a *Array kind whose elements are all members.
type Enumerated struct {
	Options       []Value
	AllowMultiple bool
}

func (e Enumerated) member(v Value) bool {
	for _, opt := range e.Options {
		if opt.Equal(v) {
			return true
		}
	}
	return false
}

func (e Enumerated) Validate(v Value) ValidationResult {
	if !e.AllowMultiple {
		if !e.member(v) {
			return invalid("value is not one of the allowed options")
		}
		return valid(v)
	}

	members, err := arrayElements(v)
	if err != nil {
		return invalid("%s", err)
	}
	for i, m := range members {
		if !e.member(m) {
			return invalid("element %d is not one of the allowed options", i)
		}
	}
	return valid(v)
}

func (e Enumerated) Describe() map[string]interface{} {
	opts := make([]interface{}, len(e.Options))
	for i, o := range e.Options {
		opts[i] = o.ToInterface()
	}
	return map[string]interface{}{
		"type":          "enumerated",
		"options":       opts,
		"allowMultiple": e.AllowMultiple,
	}
}

func arrayElements(v Value) ([]Value, error) {
	switch v.Kind {
	case IntArray:
		out := make([]Value, len(v.IntArrayV))
		for i, x := range v.IntArrayV {
			out[i] = IntValue(x)
		}
		return out, nil
	case FloatArray:
		out := make([]Value, len(v.FloatArrayV))
		for i, x := range v.FloatArrayV {
			out[i] = FloatValue(x)
		}
		return out, nil
	case BoolArray:
		out := make([]Value, len(v.BoolArrayV))
		for i, x := range v.BoolArrayV {
			out[i] = BoolValue(x)
		}
		return out, nil
	case StringArray:
		out := make([]Value, len(v.StringArrayV))
		for i, x := range v.StringArrayV {
			out[i] = StringValue(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected an array value, got %s", v.Kind)
	}
}

// Boolean accepts a real bool or any of the common truthy/falsy spellings,
// normalizing all of them to a canonical bool.
type Boolean struct{}

var truthy = map[string]bool{"true": true, "1": true, "yes": true, "on": true}
var falsy = map[string]bool{"false": false, "0": false, "no": false, "off": false}

func (Boolean) Validate(v Value) ValidationResult {
	switch v.Kind {
	case Bool:
		return valid(v)
	case Int:
		if v.IntV == 0 || v.IntV == 1 {
			return valid(BoolValue(v.IntV == 1))
		}
	case String:
		s := strings.ToLower(strings.TrimSpace(v.StringV))
		if b, ok := truthy[s]; ok {
			return valid(BoolValue(b))
		}
		if b, ok := falsy[s]; ok {
			return valid(BoolValue(b))
		}
	}
	return invalid("expected a boolean-like value, got %s", v.Kind)
}

func (Boolean) Describe() map[string]interface{} {
	return map[string]interface{}{"type": "boolean"}
}

// String validates length bounds and an optional regex pattern.
type String struct {
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
}

func (s String) Validate(v Value) ValidationResult {
	if v.Kind != String {
		return invalid("expected a string, got %s", v.Kind)
	}
	str := v.StringV
	if s.MinLength > 0 && len(str) < s.MinLength {
		return invalid("string shorter than minimum length %d", s.MinLength)
	}
	if s.MaxLength > 0 && len(str) > s.MaxLength {
		return invalid("string longer than maximum length %d", s.MaxLength)
	}
	if s.Pattern != nil && !s.Pattern.MatchString(str) {
		return invalid("string does not match required pattern %q", s.Pattern.String())
	}
	return valid(v)
}

func (s String) Describe() map[string]interface{} {
	d := map[string]interface{}{
		"type":      "string",
		"minLength": s.MinLength,
		"maxLength": s.MaxLength,
	}
	if s.Pattern != nil {
		d["pattern"] = s.Pattern.String()
	}
	return d
}

// ColorFormat enumerates the syntaxes a Color constraint can accept.
type ColorFormat string

const (
	ColorHex  ColorFormat = "hex"
	ColorRGB  ColorFormat = "rgb"
	ColorRGBA ColorFormat = "rgba"
	ColorHSL  ColorFormat = "hsl"
)

var hexColorPattern = regexp.MustCompile(`^#?[0-9A-Fa-f]{6}$`)
var rgbColorPattern = regexp.MustCompile(`^rgb\(\s*\d{1,3}\s*,\s*\d{1,3}\s*,\s*\d{1,3}\s*\)$`)
var rgbaColorPattern = regexp.MustCompile(`^rgba\(\s*\d{1,3}\s*,\s*\d{1,3}\s*,\s*\d{1,3}\s*,\s*(0|1|0?\.\d+)\s*\)$`)
var hslColorPattern = regexp.MustCompile(`^hsl\(\s*\d{1,3}\s*,\s*\d{1,3}%\s*,\s*\d{1,3}%\s*\)$`)

// Color validates a string against a single chosen color syntax.
type Color struct {
	Format ColorFormat
}

func (c Color) Validate(v Value) ValidationResult {
	if v.Kind != String {
		return invalid("expected a string, got %s", v.Kind)
	}
	s := strings.TrimSpace(v.StringV)

	switch c.Format {
	case ColorHex:
		if !hexColorPattern.MatchString(s) {
			return invalid("%q is not a valid hex color", s)
		}
		hex := strings.TrimPrefix(s, "#")
		return valid(StringValue("#" + strings.ToUpper(hex)))
	case ColorRGB:
		if !rgbColorPattern.MatchString(s) {
			return invalid("%q is not a valid rgb(...) color", s)
		}
		return valid(StringValue(s))
	case ColorRGBA:
		if !rgbaColorPattern.MatchString(s) {
			return invalid("%q is not a valid rgba(...) color", s)
		}
		return valid(StringValue(s))
	case ColorHSL:
		if !hslColorPattern.MatchString(s) {
			return invalid("%q is not a valid hsl(...) color", s)
		}
		return valid(StringValue(s))
	default:
		return invalid("unknown color format %q", c.Format)
	}
}

func (c Color) Describe() map[string]interface{} {
	return map[string]interface{}{"type": "color", "format": string(c.Format)}
}

// List validates an array element-wise through an inner constraint, with
// overall length bounds.
type List struct {
	Inner     Constraint
	MinLength int
	MaxLength int
}

func (l List) Validate(v Value) ValidationResult {
	elems, err := arrayElements(v)
	if err != nil {
		return invalid("%s", err)
	}

	if l.MinLength > 0 && len(elems) < l.MinLength {
		return invalid("list shorter than minimum length %d", l.MinLength)
	}
	if l.MaxLength > 0 && len(elems) > l.MaxLength {
		return invalid("list longer than maximum length %d", l.MaxLength)
	}

	if l.Inner == nil {
		return valid(v)
	}

	normalized := make([]Value, len(elems))
	for i, e := range elems {
		result := l.Inner.Validate(e)
		if !result.Valid {
			return invalid("element %d: %s", i, result.ErrorMessage)
		}
		normalized[i] = result.Normalized
	}

	return valid(rebuildArray(v.Kind, normalized))
}

func rebuildArray(kind Kind, elems []Value) Value {
	switch kind {
	case IntArray:
		out := make([]int64, len(elems))
		for i, e := range elems {
			out[i] = e.IntV
		}
		return IntArrayValue(out)
	case FloatArray:
		out := make([]float64, len(elems))
		for i, e := range elems {
			f, _ := e.AsFloat()
			out[i] = f
		}
		return FloatArrayValue(out)
	case BoolArray:
		out := make([]bool, len(elems))
		for i, e := range elems {
			out[i] = e.BoolV
		}
		return BoolArrayValue(out)
	case StringArray:
		out := make([]string, len(elems))
		for i, e := range elems {
			out[i] = e.StringV
		}
		return StringArrayValue(out)
	default:
		return Value{}
	}
}

func (l List) Describe() map[string]interface{} {
	d := map[string]interface{}{
		"type":      "list",
		"minLength": l.MinLength,
		"maxLength": l.MaxLength,
	}
	if l.Inner != nil {
		d["inner"] = l.Inner.Describe()
	}
	return d
}

// parseFloatLoose parses s as a float64 after trimming surrounding
// whitespace. Nothing in this module calls it.
func parseFloatLoose(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
