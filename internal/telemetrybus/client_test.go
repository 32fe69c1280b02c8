package telemetrybus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-vision/synapse-core/internal/settings"
)

func newLocalClient(t *testing.T) *Client {
	t.Helper()
	c := &Client{Config: ClientConfig{Identity: "test"}}
	require.NoError(t, c.Open(context.Background()))
	return c
}

func TestPutGetRoundTripsThroughLocalStore(t *testing.T) {
	c := newLocalClient(t)

	require.NoError(t, c.Put("settings/camera0/brightness", settings.FloatValue(0.5)))

	v, ok := c.Get("settings/camera0/brightness")
	require.True(t, ok)
	assert.Equal(t, settings.FloatValue(0.5), v)
}

func TestPutOverwritesExistingEntry(t *testing.T) {
	c := newLocalClient(t)

	require.NoError(t, c.Put("k", settings.StringValue("a")))
	require.NoError(t, c.Put("k", settings.StringValue("b")))

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "b", v.StringV)
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	c := newLocalClient(t)

	_, ok := c.Get("does-not-exist")
	assert.False(t, ok)
}

func TestSubscribeNotifiedOnRemoteStyleAssignment(t *testing.T) {
	c := newLocalClient(t)

	var got settings.Value
	var calls int
	unsubscribe := c.Subscribe("view_id/camera0", func(v settings.Value) {
		calls++
		got = v
	})
	defer unsubscribe()

	entry := Entry{Name: "view_id/camera0", Value: EntryValue{EntryType: String, String: "step_1"}}
	entry.ID = c.allocateLocalID()
	require.NoError(t, c.Store.Create(entry))
	c.notify(entry.Name, entry.Value)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "step_1", got.StringV)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	c := newLocalClient(t)

	var calls int
	unsubscribe := c.Subscribe("k", func(settings.Value) { calls++ })
	unsubscribe()

	c.notify("k", EntryValue{EntryType: Boolean, Boolean: true})

	assert.Equal(t, 0, calls)
}

func TestSettingsValueEntryValueConversionsRoundTrip(t *testing.T) {
	cases := []settings.Value{
		settings.BoolValue(true),
		settings.FloatValue(3.25),
		settings.StringValue("hello"),
		settings.BoolArrayValue([]bool{true, false}),
		settings.FloatArrayValue([]float64{1, 2, 3}),
		settings.StringArrayValue([]string{"a", "b"}),
	}

	for _, in := range cases {
		ev, err := settingsValueToEntryValue(in)
		require.NoError(t, err)
		out, err := entryValueToSettingsValue(ev)
		require.NoError(t, err)
		assert.True(t, in.Equal(out), "round trip mismatch for kind %s", in.Kind)
	}
}

func TestIntValueTravelsAsFloatOverTheBus(t *testing.T) {
	ev, err := settingsValueToEntryValue(settings.IntValue(7))
	require.NoError(t, err)
	assert.Equal(t, Double, ev.EntryType)
	assert.Equal(t, 7.0, ev.Double)
}
