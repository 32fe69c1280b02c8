package hardware

import (
	"fmt"

	"github.com/synapse-vision/synapse-core/internal/hardware/gpio"
)

// Board is the coprocessor's onboard LED cluster and status LED, driven
// over a pigpio socket connection. Two LED clusters (left/right) mirror
// the teacher board's wiring; a single GPIO pin reports PipelineActive.
type Board struct {
	gpio         gpio.GPIO
	pwmFrequency int
}

const (
	leftClusterPin  = 13
	rightClusterPin = 18
	statusPin       = 4
)

// NewBoard dials the pigpio socket interface at pigpioAddr and returns a
// Hardware implementation driving both LED clusters and the status LED.
func NewBoard(pigpioAddr string, pwmFrequency int) (Hardware, error) {
	g, err := gpio.DialPigpio(pigpioAddr)
	if err != nil {
		return nil, fmt.Errorf("unable to dial pigpio to setup gpio: %w", err)
	}

	return &Board{gpio: g, pwmFrequency: pwmFrequency}, nil
}

func (b *Board) Name() string {
	return "synapse-board"
}

func (b *Board) SetLights(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}

	if err := b.gpio.Write(leftClusterPin, level); err != nil {
		return fmt.Errorf("can't set left LED cluster: %w", err)
	}

	if err := b.gpio.Write(rightClusterPin, level); err != nil {
		return fmt.Errorf("can't set right LED cluster: %w", err)
	}

	return nil
}

func (b *Board) SetLightBrightness(v float64) error {
	if err := b.gpio.PWM(leftClusterPin, b.pwmFrequency, v); err != nil {
		return fmt.Errorf("can't set left LED cluster brightness: %w", err)
	}

	if err := b.gpio.PWM(rightClusterPin, b.pwmFrequency, v); err != nil {
		return fmt.Errorf("can't set right LED cluster brightness: %w", err)
	}

	return nil
}

func (b *Board) SetStatus(status Status, value bool) error {
	switch status {
	case PipelineActive:
		if err := b.gpio.Write(statusPin, gpio.Level(value)); err != nil {
			return fmt.Errorf("can't set status LED: %w", err)
		}
	default:
		return ErrUnsupportedStatus{fmt.Errorf("status %d not implemented by Board", status)}
	}

	return nil
}
