// Package rrbb implements the raw received bit buffer: an append-only
// vector of demodulated bits kept alongside each HDLC candidate frame
// so the frame dispatcher can retry CRC failures with single-bit flips
// (ground: rrbb.go).
package rrbb

// Buffer is a growable vector of bits (0/1 stored one per byte for
// simplicity; the original C packed 8 per byte to save memory, a
// concern that doesn't carry over to a Go slice of bytes the GC
// already manages cheaply for frame-sized buffers).
type Buffer struct {
	bits []byte

	Channel    int
	SubChannel int
	Slicer     int

	// Scrambled/LFSR/PrevDescram snapshot the 9600-baud descrambler
	// state at the moment this buffer started. The dispatcher's
	// bit-fixup retry does not read them; it replays NRZI only.
	Scrambled   bool
	LFSR        int
	PrevDescram int

	SpeedError float64
}

// New allocates a buffer tagged with the (channel, sub-channel, slicer)
// identity and descrambler snapshot it was started under.
func New(channel, subChannel, slicer int, scrambled bool, lfsr, prevDescram int) *Buffer {
	return &Buffer{
		Channel:     channel,
		SubChannel:  subChannel,
		Slicer:      slicer,
		Scrambled:   scrambled,
		LFSR:        lfsr,
		PrevDescram: prevDescram,
	}
}

// Append adds one raw bit (0 or 1) to the end of the buffer.
func (b *Buffer) Append(bit byte) {
	b.bits = append(b.bits, bit&1)
}

// Len returns the number of bits currently held.
func (b *Buffer) Len() int {
	return len(b.bits)
}

// Bit returns the bit at index i.
func (b *Buffer) Bit(i int) byte {
	return b.bits[i]
}

// Set overwrites the bit at index i.
func (b *Buffer) Set(i int, bit byte) {
	b.bits[i] = bit & 1
}

// Bits returns the underlying bit slice. Callers must not retain it
// across a Clear.
func (b *Buffer) Bits() []byte {
	return b.bits
}

// ChopLast removes the last n bits — used to drop the closing HDLC
// flag once it has been recognized.
func (b *Buffer) ChopLast(n int) {
	if n >= len(b.bits) {
		b.bits = b.bits[:0]
		return
	}
	b.bits = b.bits[:len(b.bits)-n]
}

// Clear empties the buffer in place and re-snapshots the descrambler
// state, avoiding an allocation on the hot per-bit path.
func (b *Buffer) Clear(scrambled bool, lfsr, prevDescram int) {
	b.bits = b.bits[:0]
	b.Scrambled = scrambled
	b.LFSR = lfsr
	b.PrevDescram = prevDescram
}
