package hdlc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kb9xyz/tncd/internal/ax25"
)

type captureDispatcher struct {
	candidates []Candidate
}

func (c *captureDispatcher) Dispatch(cand Candidate) {
	c.candidates = append(c.candidates, cand)
}

// feed streams a Serializer's emitted bits through a Deframer.
func feed(d *Deframer, bits []int) {
	for _, b := range bits {
		d.OnBit(b)
	}
}

func serializeToBits(payload []byte) []int {
	var bits []int
	ser := NewSerializer(false)
	ser.SerializeFrame(SinkFunc(func(b int) { bits = append(bits, b) }), payload, false)
	return bits
}

// dataBits NRZI-decodes the on-air bits between the start and end flags
// (8 bits each) back into data bits, using the start flag's last line
// level as the initial state.
func dataBits(bits []int) []int {
	line := bits[7]
	var out []int
	for _, b := range bits[8 : len(bits)-8] {
		out = append(out, boolToInt(b == line))
		line = b
	}
	return out
}

// TestRoundTrip serializes a known frame, feeds the bits through the
// deframer, and expects exactly one
// candidate whose decoded octets equal the original payload.
func TestRoundTrip(t *testing.T) {
	dst, _ := ax25.ParseAddress("TEST")
	src, _ := ax25.ParseAddress("WB2OSZ-15")
	p := &ax25.Packet{
		Addrs:   []ax25.Address{dst, src},
		Control: ax25.UIFrame,
		HasPID:  true,
		PID:     ax25.PIDNoLayer3,
		Info:    []byte("The quick brown fox"),
	}
	payload, err := p.Serialize()
	require.NoError(t, err)

	bits := serializeToBits(payload)

	disp := &captureDispatcher{}
	d := New(0, 0, 0, disp, nil)
	feed(d, bits)

	require.Len(t, disp.candidates, 1)
	cand := disp.candidates[0]
	require.Len(t, cand.Frame, len(payload)+2) // + 2 FCS octets
	assert.True(t, ax25.Valid(cand.Frame))
	assert.Equal(t, payload, cand.Frame[:len(payload)])
}

// TestBitStuffing checks that an information field of 64 consecutive
// 0xFF bytes never produces a run of six consecutive "1" data bits
// (after NRZI decoding) between the two flags.
func TestBitStuffing(t *testing.T) {
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = 0xff
	}
	bits := serializeToBits(payload)

	// Strip the leading and trailing flag octets (8 bits each, no
	// stuffing there) and NRZI-decode the rest before checking for
	// six-in-a-row.
	inner := dataBits(bits)
	run := 0
	for _, b := range inner {
		if b == 1 {
			run++
			require.Less(t, run, 6, "found a run of 6+ ones in stuffed data")
		} else {
			run = 0
		}
	}
}

// TestAbort checks that injecting eight consecutive raw "0" bits
// (which decode to eight NRZI "1" data bits, the abort pattern)
// mid-frame yields no candidate.
func TestAbort(t *testing.T) {
	dst, _ := ax25.ParseAddress("TEST")
	src, _ := ax25.ParseAddress("WB2OSZ-15")
	p := &ax25.Packet{Addrs: []ax25.Address{dst, src}, Control: ax25.UIFrame, HasPID: true, PID: ax25.PIDNoLayer3, Info: []byte("hello there")}
	payload, err := p.Serialize()
	require.NoError(t, err)
	bits := serializeToBits(payload)

	require.Greater(t, len(bits), 48)
	for i := 40; i < 48; i++ {
		bits[i] = 0
	}

	disp := &captureDispatcher{}
	d := New(0, 0, 0, disp, nil)
	feed(d, bits)

	assert.Empty(t, disp.candidates)
}

// TestNRZIIdempotent checks that NRZI decode undoes NRZI encode for
// any starting line state.
func TestNRZIIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		initial := rapid.Bool().Draw(rt, "initial")
		data := rapid.SliceOfN(rapid.IntRange(0, 1), 1, 200).Draw(rt, "data")

		ser := NewSerializer(initial)
		var encoded []int
		for _, bit := range data {
			ser.emit(SinkFunc(func(b int) { encoded = append(encoded, b) }), bit != 0)
		}

		line := initial
		var decoded []int
		for _, raw := range encoded {
			dbit := (raw != 0) == line
			line = raw != 0
			decoded = append(decoded, boolToInt(dbit))
		}
		assert.Equal(rt, data, decoded)
	})
}

// TestNoFlagOrAbortInStuffedData checks the same data-bit run-length
// property over random payloads; the full length range is too slow for a
// property test at the upper bound, so it checks a representative
// range instead.
func TestNoFlagOrAbortInStuffedData(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(ax25.MinPacketLen, 512).Draw(rt, "n")
		payload := rapid.SliceOfN(rapid.Byte(), n, n).Draw(rt, "payload")
		bits := serializeToBits(payload)
		inner := dataBits(bits)
		run := 0
		for _, b := range inner {
			if b == 1 {
				run++
				require.Less(rt, run, 6)
			} else {
				run = 0
			}
		}
	})
}
