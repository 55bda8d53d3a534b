package fx25

import "sort"

// Encoder wraps an AX.25 payload (address+control+PID+info, FCS
// included — FX.25's RS protection replaces the need for HDLC's own
// FCS check, but the payload bytes still carry it since that is what
// the receiving AX.25 stack expects once unwrapped) in FX.25 framing.
type Encoder struct {
	codec RSCodec
}

// NewEncoder wraps codec for transmit-side use.
func NewEncoder(codec RSCodec) *Encoder {
	return &Encoder{codec: codec}
}

// Strength selects which check-byte family (16/32/64) to prefer when
// more than one tag could carry the payload; Strength(0) lets Encode
// pick the shortest block that fits.
type Strength int

const (
	StrengthAuto Strength = 0
	Strength16   Strength = 16
	Strength32   Strength = 32
	Strength64   Strength = 64
)

// Encode picks the smallest tag whose data capacity fits payload (at
// the requested check-byte strength, or any strength for
// StrengthAuto) and returns the tag ID plus the RS-protected block
// ready for bit-level transmission. ok is false when the payload is
// too long for every known tag; this method never returns a truncated
// frame. Falling back to plain AX.25 is left to a caller: internal/xmit
// does not call Encode and transmits every frame as plain AX.25.
func (e *Encoder) Encode(payload []byte, strength Strength) (tagID byte, block []byte, ok bool) {
	if e.codec == nil {
		return 0, nil, false
	}

	var candidates []byte
	for id, tag := range Tags {
		if strength != StrengthAuto && tag.CheckBytes != int(strength) {
			continue
		}
		if tag.DataLen >= len(payload) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return 0, nil, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return Tags[candidates[i]].BlockLen < Tags[candidates[j]].BlockLen
	})
	best := candidates[0]
	tag := Tags[best]

	padded := make([]byte, tag.DataLen)
	copy(padded, payload)

	out, ok := e.codec.Encode(tag, padded)
	if !ok {
		return 0, nil, false
	}
	return best, out, true
}
