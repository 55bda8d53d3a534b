package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeueFIFOOrder(t *testing.T) {
	q := New(nil)
	q.Enqueue(Event{Kind: KindChannelBusy, Channel: 1, Busy: true})
	q.Enqueue(Event{Kind: KindChannelBusy, Channel: 2, Busy: false})

	first, ok := q.Remove()
	require.True(t, ok)
	assert.Equal(t, 1, first.Channel)

	second, ok := q.Remove()
	require.True(t, ok)
	assert.Equal(t, 2, second.Channel)

	_, ok = q.Remove()
	assert.False(t, ok)
}

func TestWaitWhileEmptyTimesOutWhenNothingArrives(t *testing.T) {
	q := New(nil)
	start := time.Now()
	got := q.WaitWhileEmpty(20 * time.Millisecond)
	assert.False(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitWhileEmptyWakesOnEnqueue(t *testing.T) {
	q := New(nil)
	done := make(chan bool, 1)
	go func() {
		done <- q.WaitWhileEmpty(time.Second)
	}()
	time.Sleep(10 * time.Millisecond)
	q.Enqueue(Event{Kind: KindSeizeConfirm, Channel: 0})
	select {
	case got := <-done:
		assert.True(t, got)
	case <-time.After(time.Second):
		t.Fatal("WaitWhileEmpty did not wake on enqueue")
	}
}
