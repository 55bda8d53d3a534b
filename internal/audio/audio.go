// Package audio implements the external Sample Source/Sink contract:
// one byte in, one byte out, matching the PCM frame the demodulator
// and HDLC serializer already speak, with a real portaudio backend so
// the station can run against actual sound hardware (ground: audio.go's
// audio_get/audio_put byte-at-a-time model, reimplemented against
// PortAudio instead of direct ALSA cgo calls).
package audio

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// Source yields demodulator input one sample at a time. Get returns a
// non-nil error once the device can no longer be read.
type Source interface {
	Get() (byte, error)
	Close() error
}

// Sink accepts serializer output one sample at a time, buffering
// internally until Flush (or a full buffer) pushes it to the device
// (ground: audio_put_real/audio_flush_real).
type Sink interface {
	Put(b byte) error
	Flush() error
	Close() error
}

// Format describes the PCM stream both ends agree on.
type Format struct {
	SampleRate int // Hz, typically 44100 or 48000
	BitsPerSample int // 8 or 16
	Channels      int // 1 or 2
}

// BytesPerFrame returns the PCM frame size for this format.
func (f Format) BytesPerFrame() int {
	return f.Channels * (f.BitsPerSample / 8)
}

// PortAudioDevice opens a bidirectional PortAudio stream and exposes it
// as a byte-oriented Source and Sink, buffering one block of
// framesPerBuffer PCM frames of 16-bit samples in each direction.
type PortAudioDevice struct {
	stream *portaudio.Stream
	format Format

	inFrame []int16
	inPos   int

	outFrame []int16
	outPos   int
	outBuf   []int16
}

const framesPerBuffer = 1024

// Open starts a PortAudio stream for format, using the system default
// input and output devices.
func Open(format Format) (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: portaudio init: %w", err)
	}

	d := &PortAudioDevice{
		format:   format,
		inFrame:  make([]int16, framesPerBuffer*format.Channels),
		outFrame: make([]int16, framesPerBuffer*format.Channels),
		inPos:    framesPerBuffer * format.Channels, // force a read before the first Get
	}
	stream, err := portaudio.OpenDefaultStream(format.Channels, format.Channels, float64(format.SampleRate), framesPerBuffer, d.inFrame, d.outFrame)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audio: open default stream: %w", err)
	}
	d.stream = stream
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("audio: start stream: %w", err)
	}
	return d, nil
}

// Get returns the next sample byte, reading a fresh block from the
// device when the current one is exhausted.
func (d *PortAudioDevice) Get() (byte, error) {
	if d.inPos >= len(d.inFrame) {
		if err := d.stream.Read(); err != nil {
			return 0, fmt.Errorf("audio: stream read: %w", err)
		}
		d.inPos = 0
	}
	sample := d.inFrame[d.inPos]
	d.inPos++
	return byte(sample >> 8), nil
}

// Put buffers one output sample byte, widened to 16 bits, flushing a
// full block to the device automatically (ground: audio_put_real).
func (d *PortAudioDevice) Put(b byte) error {
	d.outBuf = append(d.outBuf, int16(b)<<8)
	if len(d.outBuf) >= len(d.outFrame) {
		return d.Flush()
	}
	return nil
}

// Flush writes any buffered output samples to the device, zero-padding
// a short final block to framesPerBuffer.
func (d *PortAudioDevice) Flush() error {
	if len(d.outBuf) == 0 {
		return nil
	}
	copy(d.outFrame, d.outBuf)
	for i := len(d.outBuf); i < len(d.outFrame); i++ {
		d.outFrame[i] = 0
	}
	if err := d.stream.Write(); err != nil {
		return fmt.Errorf("audio: stream write: %w", err)
	}
	d.outBuf = d.outBuf[:0]
	return nil
}

// Close stops the stream and releases PortAudio.
func (d *PortAudioDevice) Close() error {
	err := d.stream.Close()
	portaudio.Terminate()
	return err
}

var _ Source = (*PortAudioDevice)(nil)
var _ Sink = (*PortAudioDevice)(nil)
var _ io.Closer = (*PortAudioDevice)(nil)
