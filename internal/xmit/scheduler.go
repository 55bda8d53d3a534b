// Package xmit implements the transmit scheduler: a p-persistent CSMA
// state machine that waits for a clear channel, seizes
// the shared audio device, keys PTT, sends preamble/frames/postamble,
// and unkeys, with an explicit bundling policy per frame flavor (ground:
// xmit.go's wait_for_clear_channel/xmit_thread/frame_flavor).
package xmit

import (
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kb9xyz/tncd/internal/txqueue"
)

// State names the CSMA state machine's states.
type State int

const (
	StateIdle State = iota
	StateWaitClear
	StateAcquireDevice
	StateTransmit
	StateTimeout
)

const (
	waitTimeout   = 60 * time.Second
	pollInterval  = 10 * time.Millisecond
	maxBundleAPRS = 1   // APRS-digipeat frames are never bundled.
	maxBundleAny  = 256 // effectively unbounded for everything else.
)

// Flavor classifies a queued frame for bundling/routing purposes
// (xmit.go's frame_flavor_t).
type Flavor int

const (
	FlavorAPRSNew Flavor = iota
	FlavorAPRSDigi
	FlavorOther
)

// DCDSource reports whether a channel's receiver currently senses a
// signal on the air (any sub-channel/slicer OR'd together).
type DCDSource interface {
	DataDetectAny(channel int) bool
}

// DeviceLock is the per-audio-device mutual exclusion the two channels
// sharing a stereo device contend for (xmit.go's audio_out_dev_mutex).
type DeviceLock interface {
	TryLock() bool
	Unlock()
}

// Keyer keys/unkeys PTT and serializes+writes bits for a channel.
type Keyer interface {
	PTTOn(channel int)
	PTTOff(channel int)
	SendPreamble(channel int, flags int)
	SendFrame(channel int, raw []byte)
	SendPostamble(channel int, flags int)
}

// Params holds one channel's CSMA tuning.
type Params struct {
	Channel    int
	SlotTime   time.Duration // 10ms units, e.g. 10 * 10ms = 100ms
	Persist    int           // 0-255 threshold compared against a random byte
	FullDuplex bool
	TxDelay    int // preamble flag count
	TxTail     int // postamble flag count
	// DWait is extra settling time, after the channel first reads
	// clear, for transceivers whose squelch/VOX can't turn around fast
	// enough (10ms units converted to a duration by the caller).
	DWait time.Duration
	// ErrorRate, in [0,1], is the xmit_error_rate corruption hook: with
	// this probability a transmitted frame has one random bit flipped
	// before serialization, to exercise the receive path's error
	// handling under test.
	ErrorRate float64
}

// Scheduler drives one channel's transmit state machine.
type Scheduler struct {
	Params Params

	Queue  *txqueue.Queue
	DCD    DCDSource
	Device DeviceLock
	Keyer  Keyer

	// Logger records dropped-frame diagnostics; nil disables logging.
	Logger *log.Logger

	rng   *rand.Rand
	sleep func(time.Duration)
	now   func() time.Time

	State State
}

// New creates a scheduler for one channel.
func New(p Params, q *txqueue.Queue, dcd DCDSource, dev DeviceLock, keyer Keyer) *Scheduler {
	return &Scheduler{
		Params: p,
		Queue:  q,
		DCD:    dcd,
		Device: dev,
		Keyer:  keyer,
		rng:    rand.New(rand.NewSource(1)),
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// Run drains the queue forever, transmitting as the channel allows.
// Callers typically run this in its own goroutine, one per channel.
func (s *Scheduler) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		s.State = StateIdle
		if !s.Queue.WaitWhileEmpty(pollInterval * 100) {
			continue
		}
		for !s.Queue.IsEmpty() {
			select {
			case <-stop:
				return
			default:
			}
			s.transmitOne()
		}
	}
}

// transmitOne waits for a clear channel, then sends one bundle of
// frames, drawn from either priority lane (xmit_thread's inner loop).
func (s *Scheduler) transmitOne() {
	s.State = StateWaitClear
	cleared := s.waitForClearChannel()

	item, prio, ok := s.Queue.NextReady()
	if !ok {
		return
	}

	if !cleared {
		s.State = StateTimeout
		if s.Logger != nil {
			s.Logger.Error("channel never cleared, dropping head frame", "channel", s.Params.Channel, "priority", prio)
		}
		s.Queue.Remove(prio)
		return
	}

	s.State = StateAcquireDevice
	s.Queue.Remove(prio)

	s.State = StateTransmit
	bundleCap := maxBundleAny
	if flavorOf(item) == FlavorAPRSDigi {
		bundleCap = maxBundleAPRS
	}
	s.sendBundle(item, bundleCap)

	s.Device.Unlock()
	s.State = StateIdle
}

// waitForClearChannel implements the WAIT_CLEAR state: poll DCD,
// optionally wait a random p-persistent interval unless the high
// priority lane already has something ready, and finally acquire the
// shared device lock. Returns false on the 60s hard timeout.
func (s *Scheduler) waitForClearChannel() bool {
	deadline := s.now().Add(waitTimeout)

	if !s.Params.FullDuplex {
	restart:
		for s.DCD.DataDetectAny(s.Params.Channel) {
			if s.now().After(deadline) {
				return false
			}
			s.sleep(pollInterval)
		}

		// Extra settling time for transceivers whose squelch/VOX can't
		// turn around fast enough; re-check DCD afterward since the
		// channel may have gone busy again during the sleep.
		if s.Params.DWait > 0 {
			s.sleep(s.Params.DWait)
			if s.DCD.DataDetectAny(s.Params.Channel) {
				goto restart
			}
		}

		for {
			if _, ok := s.Queue.Peek(txqueue.PriorityHigh); ok {
				break
			}
			s.sleep(s.Params.SlotTime)
			if s.DCD.DataDetectAny(s.Params.Channel) {
				goto restart
			}
			if byte(s.rng.Intn(256)) <= byte(s.Params.Persist) {
				break
			}
			if s.now().After(deadline) {
				return false
			}
		}
	}

	for !s.Device.TryLock() {
		if s.now().After(deadline) {
			return false
		}
		s.sleep(pollInterval)
	}
	return true
}

// sendBundle keys PTT once and sends up to bundleCap frames before
// unkeying. Priorities may mix within a bundle: each iteration re-peeks
// both lanes via NextReady so a high-priority frame arriving mid-bundle
// preempts the peek order rather than waiting behind whichever lane the
// bundle started from.
func (s *Scheduler) sendBundle(first txqueue.Item, bundleCap int) {
	s.Keyer.PTTOn(s.Params.Channel)
	s.Keyer.SendPreamble(s.Params.Channel, s.Params.TxDelay)

	s.sendOne(first)
	sent := 1
	for sent < bundleCap {
		it, nextPrio, ok := s.Queue.NextReady()
		if !ok {
			break
		}
		if flavorOf(it) == FlavorAPRSDigi {
			break
		}
		s.Queue.Remove(nextPrio)
		s.sendOne(it)
		sent++
	}

	s.Keyer.SendPostamble(s.Params.Channel, s.Params.TxTail)
	s.Keyer.PTTOff(s.Params.Channel)
}

func (s *Scheduler) sendOne(it txqueue.Item) {
	raw := it.Raw
	if s.Params.ErrorRate > 0 && s.rng.Float64() < s.Params.ErrorRate {
		raw = append([]byte(nil), raw...)
		bit := s.rng.Intn(len(raw) * 8)
		raw[bit/8] ^= 1 << uint(bit%8)
	}
	s.Keyer.SendFrame(s.Params.Channel, raw)
}

func flavorOf(it txqueue.Item) Flavor {
	if it.Digipeated {
		return FlavorAPRSDigi
	}
	return FlavorOther
}
