// Command lightctl drives the board's light cluster standalone for bench
// testing, without the rest of the runtime — adapted from the teacher's
// cmd/gpio, which exercised the same hardware.DimmableLight fade loop
// directly against a Gloworm board.
package main

import (
	"flag"
	"time"

	"github.com/synapse-vision/synapse-core/internal/hardware"
)

func main() {
	pigpioAddr := flag.String("pigpio-addr", "localhost:8888", "pigpiod address")
	pwmFreq := flag.Int("pwm-freq", 30000, "PWM frequency in Hz")
	flag.Parse()

	board, err := hardware.New(hardware.Config{
		Board: &hardware.BoardConfig{
			PigpioAddr:   *pigpioAddr,
			PWMFrequency: *pwmFreq,
		},
	})
	if err != nil {
		panic(err)
	}

	light, ok := board.(hardware.DimmableLight)
	if !ok {
		panic("board hardware does not support dimmable lights")
	}

	for {
		for i := 0.0; i <= 1; i += 0.01 {
			light.SetLightBrightness(i)
			time.Sleep(10 * time.Millisecond)
		}
		for i := 1.0; i >= 0; i -= 0.01 {
			light.SetLightBrightness(i)
			time.Sleep(10 * time.Millisecond)
		}
	}
}
