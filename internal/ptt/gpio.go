package ptt

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIODOutput keys PTT through a libgpiod character-device line (ground:
// ptt.go's gpiod_probe/PTT_METHOD_GPIOD path — this project targets the
// modern gpiod uAPI exclusively and drops the legacy sysfs
// /sys/class/gpio/exportNN path, since every kernel this runs on today
// has gpiod and sysfs GPIO is deprecated upstream).
type GPIODOutput struct {
	line   *gpiocdev.Line
	invert bool
}

// OpenGPIOD requests offset on chip as an output line.
func OpenGPIOD(chip string, offset int, invert bool) (*GPIODOutput, error) {
	initial := 0
	if invert {
		initial = 1
	}
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(initial))
	if err != nil {
		return nil, fmt.Errorf("ptt: request %s line %d: %w", chip, offset, err)
	}
	return &GPIODOutput{line: line, invert: invert}, nil
}

// Set drives the line high (or low, if invert) for PTT on.
func (g *GPIODOutput) Set(on bool) error {
	v := 0
	if on != g.invert {
		v = 1
	}
	return g.line.SetValue(v)
}

// Close releases the GPIO line.
func (g *GPIODOutput) Close() error {
	return g.line.Close()
}

// GPIODInput reads a hardware input line — typically a transmit-inhibit
// (TXINH) signal from an external repeater controller or squelch
// circuit — through libgpiod.
type GPIODInput struct {
	line   *gpiocdev.Line
	invert bool
}

// OpenGPIODInput requests offset on chip as an input line.
func OpenGPIODInput(chip string, offset int, invert bool) (*GPIODInput, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput)
	if err != nil {
		return nil, fmt.Errorf("ptt: request %s line %d as input: %w", chip, offset, err)
	}
	return &GPIODInput{line: line, invert: invert}, nil
}

// Get reads the line's current state, true meaning asserted.
func (g *GPIODInput) Get() (bool, error) {
	v, err := g.line.Value()
	if err != nil {
		return false, fmt.Errorf("ptt: read input line: %w", err)
	}
	on := v != 0
	if g.invert {
		on = !on
	}
	return on, nil
}

// Close releases the GPIO line.
func (g *GPIODInput) Close() error {
	return g.line.Close()
}
