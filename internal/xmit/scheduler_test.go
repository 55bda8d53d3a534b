package xmit

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9xyz/tncd/internal/txqueue"
)

type fakeDCD struct{ busy bool }

func (f *fakeDCD) DataDetectAny(int) bool { return f.busy }

type fakeDevice struct {
	mu sync.Mutex
}

func (d *fakeDevice) TryLock() bool { return d.mu.TryLock() }
func (d *fakeDevice) Unlock()       { d.mu.Unlock() }

type fakeKeyer struct {
	mu     sync.Mutex
	frames [][]byte
	pttOn  int
	pttOff int

	// onFirstFrame, if set, runs after the first SendFrame call — a
	// hook for tests simulating a frame arriving mid-bundle.
	onFirstFrame func()
}

func (k *fakeKeyer) PTTOn(int)              { k.mu.Lock(); k.pttOn++; k.mu.Unlock() }
func (k *fakeKeyer) PTTOff(int)             { k.mu.Lock(); k.pttOff++; k.mu.Unlock() }
func (k *fakeKeyer) SendPreamble(int, int)  {}
func (k *fakeKeyer) SendPostamble(int, int) {}
func (k *fakeKeyer) SendFrame(_ int, raw []byte) {
	k.mu.Lock()
	k.frames = append(k.frames, append([]byte(nil), raw...))
	first := len(k.frames) == 1
	hook := k.onFirstFrame
	k.mu.Unlock()
	if first && hook != nil {
		hook()
	}
}

func newTestScheduler(dcd *fakeDCD, dev *fakeDevice, keyer *fakeKeyer) (*Scheduler, *txqueue.Queue) {
	q := txqueue.New()
	p := Params{Channel: 0, SlotTime: time.Millisecond, Persist: 255, TxDelay: 3, TxTail: 1}
	s := New(p, q, dcd, dev, keyer)
	s.sleep = func(time.Duration) {} // deterministic, fast tests
	return s, q
}

func TestSchedulerTransmitsWhenChannelClear(t *testing.T) {
	dcd := &fakeDCD{busy: false}
	dev := &fakeDevice{}
	keyer := &fakeKeyer{}
	s, q := newTestScheduler(dcd, dev, keyer)

	q.Append(txqueue.PriorityHigh, []byte("frame1"), false)
	s.transmitOne()

	require.Len(t, keyer.frames, 1)
	assert.Equal(t, []byte("frame1"), keyer.frames[0])
	assert.Equal(t, 1, keyer.pttOn)
	assert.Equal(t, 1, keyer.pttOff)
}

func TestSchedulerNeverBundlesDigipeatFrames(t *testing.T) {
	dcd := &fakeDCD{busy: false}
	dev := &fakeDevice{}
	keyer := &fakeKeyer{}
	s, q := newTestScheduler(dcd, dev, keyer)

	q.Append(txqueue.PriorityHigh, []byte("digi1"), true)
	q.Append(txqueue.PriorityHigh, []byte("digi2"), true)
	s.transmitOne()

	assert.Len(t, keyer.frames, 1, "APRS-digipeat frames must never be bundled")
}

func TestSchedulerBundlesOrdinaryFrames(t *testing.T) {
	dcd := &fakeDCD{busy: false}
	dev := &fakeDevice{}
	keyer := &fakeKeyer{}
	s, q := newTestScheduler(dcd, dev, keyer)

	q.Append(txqueue.PriorityLow, []byte("a"), false)
	q.Append(txqueue.PriorityLow, []byte("b"), false)
	q.Append(txqueue.PriorityLow, []byte("c"), false)
	s.transmitOne()

	assert.Len(t, keyer.frames, 3)
}

func TestSchedulerDiscardsOnTimeoutWithoutTransmitting(t *testing.T) {
	dcd := &fakeDCD{busy: true} // never clears
	dev := &fakeDevice{}
	keyer := &fakeKeyer{}
	s, q := newTestScheduler(dcd, dev, keyer)

	// Force an immediate timeout by making now() advance past the
	// deadline on the very first check.
	calls := 0
	s.now = func() time.Time {
		calls++
		base := time.Unix(0, 0)
		if calls > 1 {
			return base.Add(2 * waitTimeout)
		}
		return base
	}

	var logged bytes.Buffer
	s.Logger = log.New(&logged)

	q.Append(txqueue.PriorityLow, []byte("stale"), false)
	s.transmitOne()

	assert.Empty(t, keyer.frames)
	assert.True(t, q.IsEmpty(), "timed-out frame is discarded, not requeued")
	assert.Contains(t, logged.String(), "dropping head frame")
}

func TestSchedulerBundlePreemptsForHighPriorityMidBundle(t *testing.T) {
	dcd := &fakeDCD{busy: false}
	dev := &fakeDevice{}
	keyer := &fakeKeyer{}
	s, q := newTestScheduler(dcd, dev, keyer)

	q.Append(txqueue.PriorityLow, []byte("low1"), false)
	// sendOne for "low1" runs synchronously before the loop re-peeks,
	// so append the high-priority frame from within SendFrame to land
	// it mid-bundle.
	keyer.onFirstFrame = func() {
		q.Append(txqueue.PriorityHigh, []byte("urgent"), false)
	}
	q.Append(txqueue.PriorityLow, []byte("low2"), false)

	s.transmitOne()

	require.Len(t, keyer.frames, 3)
	assert.Equal(t, []byte("low1"), keyer.frames[0])
	assert.Equal(t, []byte("urgent"), keyer.frames[1], "high-priority frame preempts the peek order mid-bundle")
	assert.Equal(t, []byte("low2"), keyer.frames[2])
}

func TestSchedulerSleepsDWaitBeforePersistWait(t *testing.T) {
	dcd := &fakeDCD{busy: false}
	dev := &fakeDevice{}
	keyer := &fakeKeyer{}
	s, q := newTestScheduler(dcd, dev, keyer)
	s.Params.DWait = 5 * time.Millisecond

	var slept []time.Duration
	s.sleep = func(d time.Duration) { slept = append(slept, d) }

	q.Append(txqueue.PriorityHigh, []byte("frame"), false)
	s.transmitOne()

	require.Len(t, keyer.frames, 1)
	assert.Contains(t, slept, s.Params.DWait)
}

func TestSchedulerHighPriorityByPassesPersistWait(t *testing.T) {
	dcd := &fakeDCD{busy: false}
	dev := &fakeDevice{}
	keyer := &fakeKeyer{}
	s, q := newTestScheduler(dcd, dev, keyer)
	s.Params.Persist = 0 // would normally almost never break out of the wait loop

	q.Append(txqueue.PriorityHigh, []byte("urgent"), false)
	s.transmitOne()

	require.Len(t, keyer.frames, 1)
	assert.Equal(t, []byte("urgent"), keyer.frames[0])
}
