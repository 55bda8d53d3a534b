// Package ptt implements the push-to-talk and data-carrier-detect
// output fabric: a per-channel Output the transmit scheduler keys and
// unkeys, backed by one of several real hardware
// transports, plus a DCD matrix aggregating per-(sub-channel, slicer)
// carrier sense into one bit per channel (ground: ptt.go, dcd.go).
package ptt

import "sync/atomic"

// Output keys and unkeys one channel's transmitter.
type Output interface {
	Set(on bool) error
	Close() error
}

// Method names the transport backing an Output, matching ptt.go's
// PTT_METHOD_* enumeration.
type Method int

const (
	MethodNone Method = iota
	MethodSerial
	MethodGPIO
	MethodGPIOD
	MethodHamlib
	MethodCM108
	MethodLPT
)

// Input reads a single hardware input line, such as a transmit-inhibit
// (TXINH) signal driven by an external repeater controller or squelch
// circuit.
type Input interface {
	Get() (bool, error)
	Close() error
}

// noopInput is used for TXInhMethod "none": the line reads permanently
// deasserted.
type noopInput struct{}

func (noopInput) Get() (bool, error) { return false, nil }
func (noopInput) Close() error       { return nil }

// NewNoopInput returns the no-op Input used when no transmit-inhibit
// line is configured.
func NewNoopInput() Input { return noopInput{} }

// DCDMatrix aggregates carrier-sense bits from every (sub-channel,
// slicer) demodulator instance of a channel, OR'd with an optional
// transmit-inhibit input, into one busy bit — any slicer sensing a
// signal, or the inhibit line being asserted, marks the channel busy —
// safe for concurrent updates from each receive goroutine.
type DCDMatrix struct {
	bits    [][]atomic.Bool // [subChannel][slicer]
	inhibit Input           // nil until SetInhibit is called
}

// NewDCDMatrix allocates a matrix for numSub sub-channels each with
// numSlicers slicers.
func NewDCDMatrix(numSub, numSlicers int) *DCDMatrix {
	m := &DCDMatrix{bits: make([][]atomic.Bool, numSub)}
	for i := range m.bits {
		m.bits[i] = make([]atomic.Bool, numSlicers)
	}
	return m
}

// Set updates one slicer's carrier-sense state.
func (m *DCDMatrix) Set(sub, slicer int, on bool) {
	m.bits[sub][slicer].Store(on)
}

// SetInhibit installs the transmit-inhibit input this matrix ORs into
// Any(). Passing nil (the zero value) is equivalent to NewNoopInput.
func (m *DCDMatrix) SetInhibit(in Input) {
	m.inhibit = in
}

// Any reports whether any slicer of any sub-channel currently senses a
// carrier, or the transmit-inhibit input is asserted (the OR-reduction
// the transmit scheduler polls as DCD).
func (m *DCDMatrix) Any() bool {
	for _, row := range m.bits {
		for i := range row {
			if row[i].Load() {
				return true
			}
		}
	}
	if m.inhibit != nil {
		if on, err := m.inhibit.Get(); err == nil && on {
			return true
		}
	}
	return false
}

// DataDetectAny adapts Any to xmit.DCDSource's per-channel signature;
// channel is ignored since one DCDMatrix already scopes one channel.
func (m *DCDMatrix) DataDetectAny(int) bool {
	return m.Any()
}

// noopOutput is used for MethodNone and MethodLPT: there is no portable
// Go library for x86 parallel-port I/O (the original C pokes port 0x378
// directly via inb/outb, which has no Go equivalent outside cgo and a
// raw ioperm() syscall this project does not want to carry for a legacy
// interface real hardware has long since dropped), so LPT PTT is
// accepted in configuration but logged as unsupported and wired to a
// no-op.
type noopOutput struct{}

func (noopOutput) Set(bool) error { return nil }
func (noopOutput) Close() error   { return nil }

// NewNoop returns the no-op Output used for MethodNone and MethodLPT.
func NewNoop() Output { return noopOutput{} }
