// Package dispatch implements the frame dispatcher: CRC validation of
// HDLC candidates, an optional single-bit fixup retry,
// passall delivery of CRC-failed frames, and resolution of duplicate
// candidates arriving from multiple slicers/sub-channels for the same
// underlying transmission (ground: hdlc_rec2.go's try_decode/retry_cfg,
// dedupe.go).
package dispatch

import (
	"hash/fnv"
	"sort"

	"github.com/kb9xyz/tncd/internal/ax25"
	"github.com/kb9xyz/tncd/internal/events"
	"github.com/kb9xyz/tncd/internal/fx25"
	"github.com/kb9xyz/tncd/internal/hdlc"
)

// FECType records which decode path produced a frame.
type FECType int

const (
	FECNone FECType = iota
	FECFixup
	FECFX25
)

// Frame is a validated AX.25 frame ready for delivery: the raw octets,
// the parsed packet, and provenance for logging/metrics.
type Frame struct {
	Channel, SubChannel, Slicer int
	Raw                         []byte
	Packet                      *ax25.Packet
	FEC                         FECType
	// Effort is the number of bits fixed (FECFixup) or RS symbol errors
	// corrected (FECFX25); zero for a clean decode.
	Effort int
}

// Config holds the dispatcher's retry policy.
type Config struct {
	// FixBits enables a single-bit-flip retry on CRC failure when 1.
	// Any larger value is clamped to 1: deeper search is not worth the
	// false-positive risk, and the two-separated-bit search the
	// original C offers under RETRY_MODE_SEPARATED is not implemented.
	FixBits int

	// PassAll delivers frames whose CRC (and, when enabled, fixup) both
	// failed, tagged FECNone with Effort left at -1 by the caller's
	// convention of checking Packet's CRC separately if it cares.
	PassAll bool
}

// Dispatcher implements hdlc.Dispatcher and fx25.FrameHandler, and
// resolves duplicate candidates across slicers before enqueuing exactly
// one event per underlying transmission.
type Dispatcher struct {
	cfg   Config
	queue *events.Queue

	pending map[uint32][]Frame
	order   []uint32
}

// New creates a dispatcher delivering onto queue.
func New(cfg Config, queue *events.Queue) *Dispatcher {
	if cfg.FixBits > 1 {
		cfg.FixBits = 1
	}
	return &Dispatcher{
		cfg:     cfg,
		queue:   queue,
		pending: make(map[uint32][]Frame),
	}
}

// Dispatch is called by an hdlc.Deframer with a complete flag-to-flag
// candidate.
func (d *Dispatcher) Dispatch(c hdlc.Candidate) {
	if pkt, ok := decodeValid(c.Frame); ok {
		d.deliver(c, Frame{Channel: c.Channel, SubChannel: c.SubChannel, Slicer: c.Slicer, Raw: c.Frame, Packet: pkt, FEC: FECNone})
		return
	}

	if d.cfg.FixBits >= 1 {
		if raw := c.Bits.Bits(); len(raw) > 1 {
			for i := 1; i < len(raw); i++ {
				flipped := decodeRawBits(flipRawBit(raw, i))
				if pkt, ok := decodeValid(flipped); ok {
					d.deliver(c, Frame{Channel: c.Channel, SubChannel: c.SubChannel, Slicer: c.Slicer, Raw: flipped, Packet: pkt, FEC: FECFixup, Effort: 1})
					return
				}
			}
		}
	}

	if d.cfg.PassAll {
		d.deliver(c, Frame{Channel: c.Channel, SubChannel: c.SubChannel, Slicer: c.Slicer, Raw: c.Frame, FEC: FECNone, Effort: -1})
	}
}

// HandleFX25 is called by an fx25.Correlator with an already
// RS-corrected AX.25 payload; FX.25's parity check stands in for HDLC's
// FCS, so a failed ax25.Parse here (malformed address field, say) still
// drops the frame rather than passalling it — FX.25 carries its own
// integrity guarantee and a structurally broken payload past that point
// indicates a codec or tag false-positive, not a channel error worth
// surfacing.
func (d *Dispatcher) HandleFX25(channel, subChannel, slicer int, payload []byte, errorsCorrected int) {
	pkt, err := ax25.Parse(payload)
	if err != nil {
		return
	}
	d.deliver(hdlc.Candidate{Channel: channel, SubChannel: subChannel, Slicer: slicer},
		Frame{Channel: channel, SubChannel: subChannel, Slicer: slicer, Raw: payload, Packet: pkt, FEC: FECFX25, Effort: errorsCorrected})
}

func decodeValid(raw []byte) (*ax25.Packet, bool) {
	if len(raw) < hdlc.MinFrameLen {
		return nil, false
	}
	if !ax25.Valid(raw) {
		return nil, false
	}
	pkt, err := ax25.Parse(raw)
	if err != nil {
		return nil, false
	}
	return pkt, true
}

// deliver stages a decoded candidate for multi-slicer resolution rather
// than enqueuing it immediately. All slicers of a channel process the
// same audio samples in lockstep, so the per-device
// receive goroutine calls Flush once per sample tick after driving
// every slicer's Deframer.OnBit; that is the natural point at which
// "every slicer's opinion of this bit-time's frame" is known.
func (d *Dispatcher) deliver(c hdlc.Candidate, f Frame) {
	key := contentKey(f.Raw)
	d.pending[key] = append(d.pending[key], f)
	if !contains(d.order, key) {
		d.order = append(d.order, key)
	}
}

// Flush resolves every group of duplicate candidates staged since the
// last Flush, enqueuing exactly one Frame event per group, and clears
// the staging area. Candidates are first grouped by the exact decoded
// payload, but distinct slicers can land on different valid-CRC
// payloads for the very same over-the-air transmission (a single-bit
// fixup chasing a different bit, say), so before emitting, groups that
// share a transmission are merged using the payload agreed on by the
// most sibling candidates. Within the winning set the tie-break order
// is: fewest bits fixed / RS symbol errors corrected (best decode),
// then lowest slicer index.
func (d *Dispatcher) Flush() {
	groups := make([][]Frame, len(d.order))
	for i, key := range d.order {
		groups[i] = d.pending[key]
	}

	for _, rep := range representativeFrames(groups) {
		d.queue.Enqueue(events.Event{Kind: events.KindFrame, Frame: toEventFrame(rep)})
	}

	d.pending = make(map[uint32][]Frame)
	d.order = d.order[:0]
}

// representativeFrames picks one Frame per underlying transmission out
// of groups, where groups are partitioned by exact decoded payload.
// Every slicer of a channel processes the same audio samples in
// lockstep and Flush runs once per sample tick (see deliver), so all
// groups staged for one channel since the last Flush are candidates
// decoded from that same tick's transmission. Those groups are
// resolved to the payload with the most sibling candidates across all
// of that channel's groups before applying the effort/slicer-index
// tie-break within the winning group.
func representativeFrames(groups [][]Frame) []Frame {
	byChannel := make(map[int][][]Frame)
	var channels []int
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		ch := g[0].Channel
		if _, ok := byChannel[ch]; !ok {
			channels = append(channels, ch)
		}
		byChannel[ch] = append(byChannel[ch], g)
	}

	var out []Frame
	for _, ch := range channels {
		siblings := byChannel[ch]
		best := siblings[0]
		for _, g := range siblings[1:] {
			if len(g) > len(best) {
				best = g
			}
		}
		sort.SliceStable(best, func(i, j int) bool {
			if best[i].Effort != best[j].Effort {
				return best[i].Effort < best[j].Effort
			}
			return best[i].Slicer < best[j].Slicer
		})
		out = append(out, best[0])
	}
	return out
}

func toEventFrame(f Frame) events.Frame {
	return events.Frame{
		Channel:    f.Channel,
		SubChannel: f.SubChannel,
		Slicer:     f.Slicer,
		Raw:        f.Raw,
		Packet:     f.Packet,
		FECFixed:   f.FEC != FECNone,
		Effort:     f.Effort,
	}
}

// contentKey is a cheap grouping key for dedup, not a validity check —
// two distinct transmissions colliding on it would also collide on the
// air, so FNV-1a over the decoded octets is enough.
func contentKey(raw []byte) uint32 {
	h := fnv.New32a()
	h.Write(raw)
	return h.Sum32()
}

func contains(s []uint32, v uint32) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

var _ fx25.FrameHandler = (*Dispatcher)(nil)
var _ hdlc.Dispatcher = (*Dispatcher)(nil)
