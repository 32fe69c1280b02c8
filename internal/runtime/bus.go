package runtime

import "github.com/synapse-vision/synapse-core/internal/settings"

// Bus is the subset of the telemetry bus the runtime manager needs: publish
// a value, read the last published value back, and subscribe to remote
// writes on a key. internal/telemetrybus implements this against the
// adapted networktables client/wire-codec; tests use an in-memory fake.
type Bus interface {
	Put(key string, value settings.Value) error
	Get(key string) (settings.Value, bool)
	// Subscribe registers fn to run whenever key is written remotely (i.e.
	// not via this process's own Put). The returned func unsubscribes.
	Subscribe(key string, fn func(settings.Value)) func()
}
