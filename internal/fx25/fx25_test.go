package fx25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCodec is a stand-in RSCodec for testing the correlator/encoder
// coupling without real Reed-Solomon math — it just strips/attaches a
// fixed-size zero check suffix, enough to exercise the protocol shape.
type fakeCodec struct{}

func (fakeCodec) Decode(tag Tag, block []byte) ([]byte, int, bool) {
	if len(block) != tag.BlockLen {
		return nil, 0, false
	}
	return block[:tag.DataLen], 0, true
}

func (fakeCodec) Encode(tag Tag, payload []byte) ([]byte, bool) {
	if len(payload) != tag.DataLen {
		return nil, false
	}
	out := make([]byte, tag.BlockLen)
	copy(out, payload)
	return out, true
}

type capture struct {
	channel, sub, slicer int
	payload               []byte
	errs                  int
	called                bool
}

func (c *capture) HandleFX25(channel, sub, slicer int, payload []byte, errs int) {
	c.channel, c.sub, c.slicer, c.payload, c.errs, c.called = channel, sub, slicer, payload, errs, true
}

// bitsOf64 returns v's bits in transmission order: LSB first.
func bitsOf64(v uint64) []int {
	bits := make([]int, 64)
	for i := 0; i < 64; i++ {
		bits[i] = int((v >> i) & 1)
	}
	return bits
}

func TestCorrelatorDecodesTaggedBlock(t *testing.T) {
	tag := Tags[0x04] // smallest block (48 bytes), quickest test
	capt := &capture{}
	c := New(0, 0, 0, fakeCodec{}, capt)

	for _, b := range bitsOf64(tag.Value) {
		c.OnBit(b)
	}
	payload := make([]byte, tag.DataLen)
	for i := range payload {
		payload[i] = byte(i)
	}
	block := make([]byte, tag.BlockLen)
	copy(block, payload)
	for _, octet := range block {
		for i := 0; i < 8; i++ {
			c.OnBit(int((octet >> i) & 1))
		}
	}

	require.True(t, capt.called)
	assert.Equal(t, payload, capt.payload)
	assert.Equal(t, 0, capt.errs)
}

func TestEncoderPicksSmallestFittingTag(t *testing.T) {
	e := NewEncoder(fakeCodec{})
	payload := make([]byte, 20)

	id, block, ok := e.Encode(payload, StrengthAuto)
	require.True(t, ok)
	tag := Tags[id]
	assert.Equal(t, tag.BlockLen, len(block))
	// Tag_04 (48,32) is the smallest block that can hold 20 bytes.
	assert.Equal(t, byte(0x04), id)
}

func TestEncoderFallsBackWhenTooLong(t *testing.T) {
	e := NewEncoder(fakeCodec{})
	_, _, ok := e.Encode(make([]byte, 1000), StrengthAuto)
	assert.False(t, ok, "payload longer than every tag's capacity must fail so the caller falls back to plain AX.25")
}
