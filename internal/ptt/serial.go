package ptt

import (
	"fmt"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"
)

// Line selects which serial control line keys PTT.
type Line int

const (
	LineRTS Line = iota
	LineDTR
	// LineBoth drives RTS and DTR together, for interfaces that tie
	// both lines to the same PTT transistor (ptt.go: "if using both
	// RTS and DTR").
	LineBoth
)

// SerialOutput keys PTT via a serial port's RTS and/or DTR modem
// control lines using a TIOCMGET/TIOCMSET read-modify-write (ground:
// ptt.go's _TIOCM/RTS_ON/RTS_OFF/DTR_ON/DTR_OFF).
type SerialOutput struct {
	t      *term.Term
	line   Line
	invert bool
}

// OpenSerial opens device and returns a SerialOutput driving line,
// inverted if invert (an interface that is active-low on that pin).
func OpenSerial(device string, line Line, invert bool) (*SerialOutput, error) {
	t, err := term.Open(device)
	if err != nil {
		return nil, fmt.Errorf("ptt: open %s: %w", device, err)
	}
	return &SerialOutput{t: t, line: line, invert: invert}, nil
}

// Set asserts or clears the configured line(s).
func (s *SerialOutput) Set(on bool) error {
	if s.invert {
		on = !on
	}
	fd := s.t.Fd()
	switch s.line {
	case LineRTS:
		return tiocm(fd, unix.TIOCM_RTS, on)
	case LineDTR:
		return tiocm(fd, unix.TIOCM_DTR, on)
	case LineBoth:
		if err := tiocm(fd, unix.TIOCM_RTS, on); err != nil {
			return err
		}
		return tiocm(fd, unix.TIOCM_DTR, on)
	}
	return fmt.Errorf("ptt: unknown serial line %d", s.line)
}

// Close releases the underlying serial device.
func (s *SerialOutput) Close() error {
	return s.t.Close()
}

// tiocm reads the current modem control line state, sets or clears
// bit, and writes it back (ground: ptt.go's _TIOCM, TIOCMGET+TIOCMSET
// rather than the atomic TIOCMBIS/TIOCMBIC pair).
func tiocm(fd uintptr, bit int, on bool) error {
	cur, err := unix.IoctlGetInt(int(fd), unix.TIOCMGET)
	if err != nil {
		return fmt.Errorf("ptt: TIOCMGET: %w", err)
	}
	if on {
		cur |= bit
	} else {
		cur &^= bit
	}
	if err := unix.IoctlSetInt(int(fd), unix.TIOCMSET, cur); err != nil {
		return fmt.Errorf("ptt: TIOCMSET: %w", err)
	}
	return nil
}
