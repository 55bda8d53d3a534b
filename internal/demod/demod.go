// Package demod defines the external demodulator contract: demodulation
// itself (specified only by the bits it produces per slicer) is an
// external collaborator, so this package owns only the interface every
// demodulator instance implements and a registry keyed by (channel,
// sub-channel, slicer) so a receive worker can fan one audio stream out
// to every configured instance (ground: demod.go's per-channel array of
// demodulator_state).
package demod

// Demodulator consumes one 16-bit signed sample at a time and emits
// zero or more raw bits to its configured sink. A single demodulator
// instance may drive more than one slicer — a threshold-choice stage
// within a demodulator producing a bit from an analog sample — each
// reported with its own slicer index.
type Demodulator interface {
	// ProcessSample feeds one sample; implementations call their
	// BitSink once per bit produced for each slicer they drive.
	ProcessSample(sample int16)
}

// BitSink receives one decoded bit for one (channel, sub-channel,
// slicer) instance — an hdlc.Deframer satisfies this via its OnBit
// method's int-typed signature once adapted, and fx25.Correlator
// likewise; this package only names the shape so internal/station can
// wire a Demodulator's output without importing either.
type BitSink interface {
	OnBit(bit int)
}

// Instance identifies one demodulator's slot in the per-channel array.
type Instance struct {
	Channel, SubChannel, Slicer int
	Demod                       Demodulator
}

// Registry groups every demodulator instance configured for a channel,
// so a receive worker can drive them all from one sample loop, feeding
// each sample into the channel's demodulator(s).
type Registry struct {
	Channel   int
	Instances []Instance
}

// NewRegistry creates an empty registry for one channel.
func NewRegistry(channel int) *Registry {
	return &Registry{Channel: channel}
}

// Add registers a demodulator instance.
func (r *Registry) Add(subChannel, slicer int, d Demodulator) {
	r.Instances = append(r.Instances, Instance{Channel: r.Channel, SubChannel: subChannel, Slicer: slicer, Demod: d})
}

// Feed delivers one sample to every instance in the registry, the
// per-sample fan-out the receive worker relies on.
func (r *Registry) Feed(sample int16) {
	for _, inst := range r.Instances {
		inst.Demod.ProcessSample(sample)
	}
}
