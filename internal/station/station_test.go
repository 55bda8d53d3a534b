package station

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9xyz/tncd/internal/ax25"
	"github.com/kb9xyz/tncd/internal/config"
	"github.com/kb9xyz/tncd/internal/events"
	"github.com/kb9xyz/tncd/internal/hdlc"
)

func TestNewBuildsOneChannelPerDefaultConfig(t *testing.T) {
	st, err := New(config.Default())
	require.NoError(t, err)

	require.Len(t, st.Devices, 1)
	require.Len(t, st.Channels, 1)
	assert.Same(t, st.Channels[0], st.Devices[0].Channels[0])
	assert.Len(t, st.Channels[0].Slicers, 1)
	assert.NotNil(t, st.Channels[0].Scheduler)
	assert.NotNil(t, st.Channels[0].PTT) // PTTMethod "none" -> noop Output
}

func TestNewSplitsStereoDeviceAcrossTwoChannels(t *testing.T) {
	cfg := config.Default()
	cfg.AudioDevices[0].Channels = 2
	cfg.Channels = append(cfg.Channels, cfg.Channels[0])

	st, err := New(cfg)
	require.NoError(t, err)

	require.Len(t, st.Channels, 2)
	require.Len(t, st.Devices, 1)
	require.Len(t, st.Devices[0].Channels, 2)
	assert.Equal(t, 0, st.Channels[0].Index)
	assert.Equal(t, 1, st.Channels[1].Index)
}

// TestReceivePipelineDeliversDecodedFrame drives a channel's only
// slicer with a serialized AX.25 frame's bit stream directly (bypassing
// the external demodulator contract, which has no concrete
// implementation in this repo) and checks the event queue receives
// the decoded frame once Flush runs, end to end through the station
// wiring.
func TestReceivePipelineDeliversDecodedFrame(t *testing.T) {
	st, err := New(config.Default())
	require.NoError(t, err)
	ch := st.Channels[0]

	dst, _ := ax25.ParseAddress("TEST")
	src, _ := ax25.ParseAddress("KB9XYZ-1")
	pkt := &ax25.Packet{
		Addrs:   []ax25.Address{dst, src},
		Control: ax25.UIFrame,
		HasPID:  true,
		PID:     ax25.PIDNoLayer3,
		Info:    []byte("hello"),
	}
	payload, err := pkt.Serialize()
	require.NoError(t, err)

	var bits []int
	ser := hdlc.NewSerializer(false)
	ser.SerializeFrame(hdlc.SinkFunc(func(b int) { bits = append(bits, b) }), payload, false)

	deframer := ch.Slicers[0].Deframer
	for _, b := range bits {
		deframer.OnBit(b)
	}
	ch.Dispatcher.Flush()

	require.Equal(t, 1, st.Events.Len())
	ev, ok := st.Events.Remove()
	require.True(t, ok)
	assert.Equal(t, events.KindFrame, ev.Kind)
	assert.Equal(t, payload, ev.Frame.Raw[:len(payload)])
}

func TestOpenPTTRejectsUnknownMethod(t *testing.T) {
	_, err := openPTT(config.Channel{PTTMethod: "bogus"})
	assert.Error(t, err)
}

func TestOpenPTTNoneIsNoop(t *testing.T) {
	out, err := openPTT(config.Channel{PTTMethod: "none"})
	require.NoError(t, err)
	require.NoError(t, out.Set(true))
	require.NoError(t, out.Close())
}

func TestOpenTXInhDefaultsToNoop(t *testing.T) {
	in, err := openTXInh(config.Channel{})
	require.NoError(t, err)
	on, err := in.Get()
	require.NoError(t, err)
	assert.False(t, on)
}

func TestOpenTXInhRejectsUnknownMethod(t *testing.T) {
	_, err := openTXInh(config.Channel{TXInhMethod: "bogus"})
	assert.Error(t, err)
}

func TestNewWiresDWaitIntoSchedulerParams(t *testing.T) {
	cfg := config.Default()
	cfg.Channels[0].DWait = 3

	st, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Millisecond, st.Channels[0].Scheduler.Params.DWait)
}
