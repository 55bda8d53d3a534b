// Package hdlc implements the per-bit HDLC deframer and the AX.25/HDLC
// bit-stream serializer, grounded on hdlc_rec.go, hdlc_rec2.go and
// hdlc_send.go.
package hdlc

import (
	"math/rand"

	"github.com/kb9xyz/tncd/internal/ax25"
	"github.com/kb9xyz/tncd/internal/rrbb"
)

const (
	flagPattern  = 0x7e
	abortPattern = 0xfe // seven ones after NRZI, shifted into an 8-bit detector

	// MinFrameLen is the shortest candidate, in octets, the deframer
	// will hand to the dispatcher: the AX.25 minimum plus the 2-octet
	// FCS.
	MinFrameLen = ax25.MinPacketLen + 2
)

// Candidate is one complete flag-to-flag bit run handed to the frame
// dispatcher for CRC validation: the decoded octets (frame_buf) plus
// the raw NRZI bit buffer, kept alongside so a CRC failure can be
// retried with a single-bit flip re-decoded from the raw bits
// (ground: rrbb.go).
type Candidate struct {
	Channel, SubChannel, Slicer int
	Frame                       []byte
	Bits                        *rrbb.Buffer
}

// Dispatcher receives HDLC candidate frames. internal/dispatch
// implements this.
type Dispatcher interface {
	Dispatch(c Candidate)
}

// Deframer holds the per-(channel, sub-channel, slicer) HDLC decoder
// state and implements the single-bit decode procedure.
type Deframer struct {
	Channel, SubChannel, Slicer int

	// BitErrorRate, in [0,1], randomly inverts a raw bit before NRZI
	// decoding — a testing hook for simulating a noisy channel.
	BitErrorRate float64
	rng          *rand.Rand

	prevRaw bool
	patDet  byte // 8-bit flag/abort pattern detector

	oacc byte
	olen int // bits accumulated in oacc; -1 disables accumulation

	frameBuf [ax25.MaxFrameLen]byte
	frameLen int

	bits *rrbb.Buffer

	dispatcher Dispatcher
	fx         BitSink // optional parallel FX.25 correlator, may be nil
}

// BitSink is the per-bit interface the FX.25 correlator (internal/fx25)
// exposes so the HDLC deframer can hand it the same NRZI-decoded data
// bits in parallel.
type BitSink interface {
	OnBit(raw int)
}

// New creates a deframer for one (channel, sub-channel, slicer)
// triple. fx may be nil when FX.25 coupling is not wanted on this
// instance.
func New(channel, subChannel, slicer int, dispatcher Dispatcher, fx BitSink) *Deframer {
	d := &Deframer{
		Channel:    channel,
		SubChannel: subChannel,
		Slicer:     slicer,
		olen:       -1,
		dispatcher: dispatcher,
		fx:         fx,
		rng:        rand.New(rand.NewSource(1)),
	}
	d.bits = rrbb.New(channel, subChannel, slicer, false, 0, 0)
	return d
}

// OnBit is the per-bit entry point, corresponding to the original
// `on_bit(channel, sub, slicer, raw_bit, scrambled_flag)`. raw is 0 or 1.
func (d *Deframer) OnBit(raw int) {
	r := raw != 0

	if d.BitErrorRate > 0 && d.rng.Float64() < d.BitErrorRate {
		r = !r
	}

	// NRZI decode: a data "1" is no transition, a data "0" is a
	// transition since the previous raw bit.
	dbit := r == d.prevRaw
	d.prevRaw = r

	if d.fx != nil {
		d.fx.OnBit(boolToInt(dbit))
	}

	// Pattern detector: shift the NRZI-decoded data bit in LSB-first.
	d.patDet >>= 1
	if dbit {
		d.patDet |= 0x80
	}

	d.bits.Append(byte(boolToInt(r)))

	switch {
	case d.patDet == flagPattern:
		d.onFlag()
	case d.patDet == abortPattern:
		d.onAbort()
	case d.patDet&0xfc == 0x7c:
		// Five ones followed by a zero: the zero is a stuffed bit,
		// drop it (do not accumulate, do not reset state).
	default:
		d.accumulate(dbit)
	}
}

func (d *Deframer) onFlag() {
	d.bits.ChopLast(8)

	// olen == 0 means every bit since the last flag/abort landed in a
	// whole octet (no partial octet pending); frameLen must also clear
	// the AX.25 minimum. Without both checks, a flag arriving after an
	// abort (which disables accumulation by setting olen = -1) would
	// hand the dispatcher a garbage candidate with an empty Frame,
	// since the raw bit buffer keeps growing even while olen < 0.
	if d.olen == 0 && d.frameLen >= MinFrameLen && d.bits.Len() >= MinFrameLen*8 {
		frame := append([]byte(nil), d.frameBuf[:d.frameLen]...)
		cand := Candidate{Channel: d.Channel, SubChannel: d.SubChannel, Slicer: d.Slicer, Frame: frame, Bits: d.bits}
		d.dispatcher.Dispatch(cand)
		d.bits = rrbb.New(d.Channel, d.SubChannel, d.Slicer, false, 0, 0)
	} else {
		d.bits.Clear(false, 0, 0)
	}

	d.olen = 0
	d.frameLen = 0
	d.bits.Append(byte(boolToInt(d.prevRaw)))
}

func (d *Deframer) onAbort() {
	d.olen = -1
	d.frameLen = 0
	d.bits.Clear(false, 0, 0)
}

func (d *Deframer) accumulate(dbit bool) {
	if d.olen < 0 {
		return
	}
	d.oacc >>= 1
	if dbit {
		d.oacc |= 0x80
	}
	d.olen++
	if d.olen == 8 {
		d.olen = 0
		if d.frameLen < len(d.frameBuf) {
			d.frameBuf[d.frameLen] = d.oacc
			d.frameLen++
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
