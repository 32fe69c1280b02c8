package hardware

// Config selects and configures the board hardware.New drives. Board is
// nil when no pigpio-backed board is present (e.g. running on a dev
// machine), in which case New returns a NoOpHardware.
type Config struct {
	Board *BoardConfig
}

// BoardConfig addresses the pigpio socket interface and the PWM frequency
// to drive the LED clusters with.
type BoardConfig struct {
	PigpioAddr   string
	PWMFrequency int
}

// New builds the Hardware implementation described by cfg.
func New(cfg Config) (Hardware, error) {
	if cfg.Board == nil {
		return NoOpHardware{}, nil
	}

	return NewBoard(cfg.Board.PigpioAddr, cfg.Board.PWMFrequency)
}

// NoOpHardware is used when no board hardware is configured: every status
// or light request is accepted and silently discarded.
type NoOpHardware struct{}

func (NoOpHardware) Name() string { return "none" }

func (NoOpHardware) SetLights(on bool) error { return nil }

func (NoOpHardware) SetLightBrightness(v float64) error { return nil }

func (NoOpHardware) SetStatus(status Status, value bool) error { return nil }

var (
	_ BinaryLight      = NoOpHardware{}
	_ DimmableLight    = NoOpHardware{}
	_ StatusIndicators = NoOpHardware{}
)
