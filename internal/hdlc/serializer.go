package hdlc

import "github.com/kb9xyz/tncd/internal/ax25"

// Serializer turns AX.25 payload octets into an NRZI-encoded,
// bit-stuffed bit stream ready for the tone generator.
// The NRZI line state is per-channel and persists across frames, so
// one Serializer is kept per transmit channel.
type Serializer struct {
	line  bool // current NRZI line state
	stuff int  // consecutive "1" data bits sent since the last stuff/reset
}

// NewSerializer creates a serializer with the NRZI line initialized to
// the given state (0 in practice).
func NewSerializer(initialLine bool) *Serializer {
	return &Serializer{line: initialLine}
}

// Sink receives one on-air bit per call, in transmission order.
type Sink interface {
	PutBit(bit int)
}

type sinkFunc func(int)

func (f sinkFunc) PutBit(bit int) { f(bit) }

// SinkFunc adapts a plain function to Sink.
func SinkFunc(f func(int)) Sink { return sinkFunc(f) }

func (s *Serializer) emit(out Sink, bit bool) {
	if !bit {
		s.line = !s.line
	}
	if s.line {
		out.PutBit(1)
	} else {
		out.PutBit(0)
	}
}

// sendFlag emits one 0x7e octet, NRZI-encoded, with no bit-stuffing,
// and resets the stuffing run counter.
func (s *Serializer) sendFlag(out Sink) int {
	const flag = byte(flagPattern)
	for i := 0; i < 8; i++ {
		s.emit(out, (flag>>i)&1 != 0)
	}
	s.stuff = 0
	return 8
}

// sendDataByte emits one octet LSB-first, NRZI-encoded, with bit
// stuffing after five consecutive "1" data bits.
func (s *Serializer) sendDataByte(out Sink, x byte) int {
	n := 0
	for i := 0; i < 8; i++ {
		bit := (x>>i)&1 != 0
		s.emit(out, bit)
		n++
		if bit {
			s.stuff++
			if s.stuff == 5 {
				s.emit(out, false) // stuffed zero
				n++
				s.stuff = 0
			}
		} else {
			s.stuff = 0
		}
	}
	return n
}

// Preamble emits nFlags contiguous 0x7e flags with no stuffing, the
// lead-in that lets the remote receiver lock its PLL.
func (s *Serializer) Preamble(out Sink, nFlags int) int {
	n := 0
	for i := 0; i < nFlags; i++ {
		n += s.sendFlag(out)
	}
	return n
}

// Postamble is identical in shape to Preamble; kept as a distinct name
// for call-site clarity in the transmit scheduler.
func (s *Serializer) Postamble(out Sink, nFlags int) int {
	return s.Preamble(out, nFlags)
}

// SerializeFrame emits a start flag, the bit-stuffed payload, the
// 2-octet FCS, and an end flag, returning the total bit count. When
// badFCS is true the transmitted check sequence is bitwise-
// complemented, simulating a corrupted frame for testing (the
// xmit_error_rate injection hook).
func (s *Serializer) SerializeFrame(out Sink, payload []byte, badFCS bool) int {
	n := s.sendFlag(out)

	for _, b := range payload {
		n += s.sendDataByte(out, b)
	}

	fcs := ax25.Compute(payload)
	if badFCS {
		fcs = ^fcs
	}
	b := fcs.Bytes()
	n += s.sendDataByte(out, b[0])
	n += s.sendDataByte(out, b[1])

	n += s.sendFlag(out)
	return n
}
