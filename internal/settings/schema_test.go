package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestRangeValidateSnapsToStep(t *testing.T) {
	r := Range{Min: floatPtr(0), Max: floatPtr(10), Step: floatPtr(2)}

	result := r.Validate(FloatValue(7))
	require.True(t, result.Valid)
	assert.Equal(t, 8.0, result.Normalized.FloatV)
}

func TestRangeValidateRejectsOutOfBounds(t *testing.T) {
	r := Range{Min: floatPtr(0), Max: floatPtr(10)}

	result := r.Validate(FloatValue(11))
	assert.False(t, result.Valid)
}

func TestBooleanValidateAcceptsStringSpellings(t *testing.T) {
	b := Boolean{}

	for _, s := range []string{"true", "1", "yes", "on"} {
		result := b.Validate(StringValue(s))
		require.True(t, result.Valid, s)
		assert.True(t, result.Normalized.BoolV)
	}

	for _, s := range []string{"false", "0", "no", "off"} {
		result := b.Validate(StringValue(s))
		require.True(t, result.Valid, s)
		assert.False(t, result.Normalized.BoolV)
	}
}

func TestColorHexNormalizesToUppercase(t *testing.T) {
	c := Color{Format: ColorHex}

	result := c.Validate(StringValue("#ff00aa"))
	require.True(t, result.Valid)
	assert.Equal(t, "#FF00AA", result.Normalized.StringV)
}

func TestColorHexRejectsBadSyntax(t *testing.T) {
	c := Color{Format: ColorHex}

	result := c.Validate(StringValue("not-a-color"))
	assert.False(t, result.Valid)
}

func TestListValidatesElementwise(t *testing.T) {
	l := List{Inner: Range{Min: floatPtr(0), Max: floatPtr(5)}, MaxLength: 3}

	result := l.Validate(FloatArrayValue([]float64{1, 2, 3}))
	require.True(t, result.Valid)

	result = l.Validate(FloatArrayValue([]float64{1, 9}))
	assert.False(t, result.Valid)
}

func TestValuesSetRejectsUnknownKey(t *testing.T) {
	v := NewValues(Schema{{Key: "a", Constraint: Boolean{}, Default: BoolValue(false)}})

	_, err := v.Set("b", BoolValue(true))
	assert.Error(t, err)
}

func TestValuesSetLeavesPriorValueOnFailure(t *testing.T) {
	v := NewValues(Schema{{Key: "a", Constraint: Range{Min: floatPtr(0), Max: floatPtr(10)}, Default: FloatValue(4)}})

	_, err := v.Set("a", FloatValue(99))
	require.Error(t, err)

	got, ok := v.Get("a")
	require.True(t, ok)
	assert.Equal(t, 4.0, got.FloatV)
}

func TestValuesToDictFromDictRoundTrips(t *testing.T) {
	schema := Schema{
		{Key: "a", Constraint: Range{Min: floatPtr(0), Max: floatPtr(10)}, Default: FloatValue(4)},
		{Key: "b", Constraint: Boolean{}, Default: BoolValue(false)},
	}
	v := NewValues(schema)
	_, err := v.Set("a", FloatValue(6))
	require.NoError(t, err)

	dict := v.ToDict()

	fresh := NewValues(schema)
	problems := fresh.FromDict(dict)
	assert.Empty(t, problems)

	got, _ := fresh.Get("a")
	assert.Equal(t, 6.0, got.FloatV)
}
