// Package station wires one running TNC together: per-channel HDLC
// decode/dispatch/transmit pipelines, the audio devices that feed and
// drain them, the PTT/DCD fabric, and the single application goroutine
// that drains the event queue (ground: direwolf.go's init sequence and
// per-channel thread layout).
package station

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kb9xyz/tncd/internal/audio"
	"github.com/kb9xyz/tncd/internal/config"
	"github.com/kb9xyz/tncd/internal/demod"
	"github.com/kb9xyz/tncd/internal/discovery"
	"github.com/kb9xyz/tncd/internal/dispatch"
	"github.com/kb9xyz/tncd/internal/events"
	"github.com/kb9xyz/tncd/internal/fx25"
	"github.com/kb9xyz/tncd/internal/hdlc"
	"github.com/kb9xyz/tncd/internal/kiss"
	"github.com/kb9xyz/tncd/internal/logging"
	"github.com/kb9xyz/tncd/internal/ptt"
	"github.com/kb9xyz/tncd/internal/txqueue"
	"github.com/kb9xyz/tncd/internal/xmit"
)

// SlicerUnit is one (sub-channel, slicer) decode instance. Deframer is
// the demod.BitSink an externally supplied Demodulator feeds: demod.go
// deliberately doesn't implement demodulation itself, so Station only
// builds and exposes this far; the caller wires a real Demodulator's
// output to Deframer.OnBit and registers it with Channel.Registry.
type SlicerUnit struct {
	SubChannel, Slicer int
	Deframer           *hdlc.Deframer
	Correlator         *fx25.Correlator
}

// Channel is one radio channel's full receive/transmit pipeline.
type Channel struct {
	Index int
	Cfg   config.Channel

	Slicers    []SlicerUnit
	Dispatcher *dispatch.Dispatcher

	// Registry is the receive-side demodulator fan-out, left nil until
	// AttachDemodulator is called: building real Demodulator instances
	// is outside this project's scope.
	Registry *demod.Registry

	DCD *ptt.DCDMatrix

	TxQueue   *txqueue.Queue
	Scheduler *xmit.Scheduler
	PTT       ptt.Output

	txSerializer *hdlc.Serializer
}

// Device is one audio input/output pair, possibly shared by two
// channels when it's a stereo device (a device's two channels never
// transmit at once, enforced by Lock).
type Device struct {
	Name     string
	Source   audio.Source
	Sink     audio.Sink
	Channels []*Channel // len 1 (mono) or 2 (stereo, index 0 = left)
	Lock     *sync.Mutex
}

// Station owns every channel and device and the single event queue the
// application goroutine drains.
type Station struct {
	Cfg    config.Station
	Events *events.Queue

	Devices  []*Device
	Channels []*Channel

	KISS kiss.Transport

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Station from cfg without opening any hardware; set each
// returned Device's Source and Sink from the caller's audio backend
// (for example audio.Open), then call Run.
func New(cfg config.Station) (*Station, error) {
	if len(cfg.AudioDevices) == 0 {
		return nil, fmt.Errorf("station: no audio devices configured")
	}

	st := &Station{Cfg: cfg, Events: events.New(logging.For(logging.AreaReceive).With("component", "events"))}

	chIdx := 0
	for devIdx, adCfg := range cfg.AudioDevices {
		dev := &Device{Name: fmt.Sprintf("adev%d", devIdx), Lock: &sync.Mutex{}}

		nChans := adCfg.Channels
		if nChans < 1 {
			nChans = 1
		}
		for i := 0; i < nChans; i++ {
			if chIdx >= len(cfg.Channels) {
				break
			}
			ch, err := newChannel(chIdx, cfg.Channels[chIdx], st.Events, dev.Lock)
			if err != nil {
				return nil, fmt.Errorf("station: channel %d: %w", chIdx, err)
			}
			st.Channels = append(st.Channels, ch)
			dev.Channels = append(dev.Channels, ch)
			chIdx++
		}
		st.Devices = append(st.Devices, dev)
	}

	return st, nil
}

// newChannel builds one channel's decode/dispatch/transmit pipeline
// and PTT transport, leaving the receive-side Demodulator wiring to the
// caller.
func newChannel(index int, cfg config.Channel, queue *events.Queue, devLock *sync.Mutex) (*Channel, error) {
	ch := &Channel{Index: index, Cfg: cfg, TxQueue: txqueue.New(), txSerializer: hdlc.NewSerializer(false)}
	ch.TxQueue.TimestampFormat = cfg.TimestampFormat

	ch.Dispatcher = dispatch.New(dispatch.Config{FixBits: cfg.FixBits, PassAll: cfg.PassAll}, queue)

	numSub := 1
	numSlicers := cfg.Slicers
	if numSlicers < 1 {
		numSlicers = 1
	}
	ch.DCD = ptt.NewDCDMatrix(numSub, numSlicers)
	txinh, err := openTXInh(cfg)
	if err != nil {
		return nil, err
	}
	ch.DCD.SetInhibit(txinh)

	for sub := 0; sub < numSub; sub++ {
		for slicer := 0; slicer < numSlicers; slicer++ {
			var corr *fx25.Correlator
			var fxSink hdlc.BitSink // left nil (not a typed-nil *Correlator) when FX.25 is off, so hdlc.Deframer's "d.fx != nil" skip actually holds
			if cfg.FX25Enabled {
				// RS decoding is an Open Question left pluggable
				// (DESIGN.md): no RSCodec implementation ships here,
				// so the correlator detects tags but never decodes a
				// block until a real codec is wired in.
				corr = fx25.New(index, sub, slicer, nil, ch.Dispatcher)
				fxSink = corr
			}
			deframer := hdlc.New(index, sub, slicer, ch.Dispatcher, fxSink)
			ch.Slicers = append(ch.Slicers, SlicerUnit{SubChannel: sub, Slicer: slicer, Deframer: deframer, Correlator: corr})
		}
	}

	pttOut, err := openPTT(cfg)
	if err != nil {
		return nil, err
	}
	ch.PTT = pttOut

	keyer := &toneKeyer{channel: index, serializer: ch.txSerializer, output: pttOut, logger: logging.For(logging.AreaXmit).With("channel", index)}

	params := xmit.Params{
		Channel:    index,
		SlotTime:   time.Duration(cfg.SlotTime) * 10 * time.Millisecond,
		Persist:    cfg.Persist,
		FullDuplex: cfg.FullDuplex,
		TxDelay:    cfg.TxDelay,
		TxTail:     cfg.TxTail,
		DWait:      time.Duration(cfg.DWait) * 10 * time.Millisecond,
		ErrorRate:  cfg.ErrorRate,
	}
	ch.Scheduler = xmit.New(params, ch.TxQueue, ch.DCD, devLock, keyer)
	ch.Scheduler.Logger = logging.For(logging.AreaXmit).With("channel", index)

	return ch, nil
}

// AttachDemodulator registers a real Demodulator for one
// (sub-channel, slicer) instance, wiring the corresponding
// SlicerUnit.Deframer as its bit sink is the caller's responsibility at
// construction time; this only adds it to the per-sample fan-out.
func (c *Channel) AttachDemodulator(subChannel, slicer int, d demod.Demodulator) {
	if c.Registry == nil {
		c.Registry = demod.NewRegistry(c.Index)
	}
	c.Registry.Add(subChannel, slicer, d)
}

// SetTxSink installs the real tone-generator BitSink (modulation
// waveform synthesis beyond the tone-generation contract is out of
// scope here) that turns this channel's serialized bits into audio
// samples.
func (c *Channel) SetTxSink(sink hdlc.Sink) {
	if k, ok := c.Scheduler.Keyer.(*toneKeyer); ok {
		k.sink = sink
	}
}

// openPTT selects and opens the configured PTT transport for one
// channel, matching ptt.go's PTT_METHOD_* dispatch.
func openPTT(cfg config.Channel) (ptt.Output, error) {
	logger := logging.For(logging.AreaPTT)
	switch cfg.PTTMethod {
	case "", "none":
		return ptt.NewNoop(), nil
	case "serial":
		line := ptt.LineRTS
		switch cfg.PTTLine {
		case "dtr":
			line = ptt.LineDTR
		case "both":
			line = ptt.LineBoth
		}
		return ptt.OpenSerial(cfg.PTTDevice, line, cfg.PTTInvert)
	case "gpio", "gpiod":
		return ptt.OpenGPIOD(cfg.PTTDevice, cfg.PTTGPIO, cfg.PTTInvert)
	case "hamlib":
		return ptt.OpenHamlib(cfg.HamlibModel, cfg.PTTDevice, cfg.HamlibRate)
	case "cm108":
		return ptt.OpenCM108(cfg.PTTDevice, cfg.PTTGPIO)
	case "lpt":
		logger.Warn("parallel-port PTT is not supported on this platform, using no-op", "channel", cfg.MyCall)
		return ptt.NewNoop(), nil
	default:
		return nil, fmt.Errorf("ptt: unknown method %q", cfg.PTTMethod)
	}
}

// openTXInh selects and opens the configured transmit-inhibit input for
// one channel, matching openPTT's transport dispatch.
func openTXInh(cfg config.Channel) (ptt.Input, error) {
	switch cfg.TXInhMethod {
	case "", "none":
		return ptt.NewNoopInput(), nil
	case "gpio", "gpiod":
		return ptt.OpenGPIODInput(cfg.TXInhDevice, cfg.TXInhGPIO, cfg.TXInhInvert)
	default:
		return nil, fmt.Errorf("ptt: unknown txinh method %q", cfg.TXInhMethod)
	}
}

// toneKeyer implements xmit.Keyer by serializing AX.25 octets through
// an hdlc.Serializer onto an externally supplied tone-generation Sink,
// and keying the channel's PTT Output around the transmission (ground:
// xmit.go's ptt_set/tx calls bracketing send_ax25_frame).
type toneKeyer struct {
	channel    int
	serializer *hdlc.Serializer
	sink       hdlc.Sink
	output     ptt.Output
	logger     *log.Logger
}

func (k *toneKeyer) PTTOn(int) {
	if err := k.output.Set(true); err != nil {
		k.logger.Warn("ptt on failed", "err", err)
	}
}

func (k *toneKeyer) PTTOff(int) {
	if err := k.output.Set(false); err != nil {
		k.logger.Warn("ptt off failed", "err", err)
	}
}

func (k *toneKeyer) SendPreamble(_, flags int) {
	if k.sink != nil {
		k.serializer.Preamble(k.sink, flags)
	}
}

func (k *toneKeyer) SendFrame(_ int, raw []byte) {
	if k.sink != nil {
		k.serializer.SerializeFrame(k.sink, raw, false)
	}
}

func (k *toneKeyer) SendPostamble(_, flags int) {
	if k.sink != nil {
		k.serializer.Postamble(k.sink, flags)
	}
}

var _ xmit.Keyer = (*toneKeyer)(nil)

// Run starts one receive goroutine per audio device, one transmit
// goroutine per channel, the application goroutine draining Events,
// and (if configured) mDNS discovery and the KISS client loop. It
// returns once every goroutine has been started; call Stop to shut
// down.
func (st *Station) Run(ctx context.Context) error {
	st.stop = make(chan struct{})

	for _, dev := range st.Devices {
		if dev.Source == nil {
			return fmt.Errorf("station: device %s has no audio Source open", dev.Name)
		}
		st.wg.Add(1)
		go func(d *Device) {
			defer st.wg.Done()
			d.receiveLoop(st.stop)
		}(dev)
	}

	for _, ch := range st.Channels {
		st.wg.Add(1)
		go func(c *Channel) {
			defer st.wg.Done()
			c.Scheduler.Run(st.stop)
		}(ch)
	}

	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		st.drainEvents(st.stop)
	}()

	if st.KISS != nil {
		st.wg.Add(1)
		go func() {
			defer st.wg.Done()
			st.kissReadLoop(st.stop)
		}()
	}

	if st.Cfg.DiscoveryEnabled {
		if err := discovery.Announce(ctx, st.Cfg.DiscoveryName, 8001); err != nil {
			logging.For(logging.AreaStation).Warn("discovery announce failed", "err", err)
		}
	}

	return nil
}

// Stop signals every Station goroutine to exit, waits for them, and
// releases each channel's PTT transport.
func (st *Station) Stop() {
	if st.stop == nil {
		return
	}
	close(st.stop)
	st.wg.Wait()
	for _, ch := range st.Channels {
		if err := ch.PTT.Close(); err != nil {
			logging.For(logging.AreaPTT).Warn("close failed", "channel", ch.Index, "err", err)
		}
	}
}

// receiveLoop feeds samples from the device into each of its channels'
// demodulator registries, flushing that channel's dispatcher once per
// sample so duplicate candidates from every slicer of that bit-time
// are resolved together.
func (d *Device) receiveLoop(stop <-chan struct{}) {
	logger := logging.For(logging.AreaReceive).With("device", d.Name)
	for {
		select {
		case <-stop:
			return
		default:
		}
		for _, ch := range d.Channels {
			b, err := d.Source.Get()
			if err != nil {
				logger.Error("audio read failed", "err", err)
				return
			}
			sample := int16(b) << 8
			if ch.Registry != nil {
				ch.Registry.Feed(sample)
			}
			ch.Dispatcher.Flush()
		}
	}
}

// drainEvents is the single application goroutine: it pops decoded
// frames and delivers them to the configured KISS transport.
func (st *Station) drainEvents(stop <-chan struct{}) {
	logger := logging.For(logging.AreaDecoded)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !st.Events.WaitWhileEmpty(200 * time.Millisecond) {
			continue
		}
		ev, ok := st.Events.Remove()
		if !ok {
			continue
		}
		switch ev.Kind {
		case events.KindFrame:
			logger.Info("frame", "channel", ev.Frame.Channel, "slicer", ev.Frame.Slicer, "fec", ev.Frame.FECFixed, "effort", ev.Frame.Effort, "len", len(ev.Frame.Raw))
			if st.KISS != nil {
				f := kiss.Frame{Port: byte(ev.Frame.Channel), Command: kiss.CmdData, Payload: ev.Frame.Raw}
				if err := st.KISS.WriteFrame(f); err != nil {
					logger.Warn("kiss write failed", "err", err)
				}
			}
		case events.KindChannelBusy:
			logger.Debug("channel busy", "channel", ev.Channel, "busy", ev.Busy)
		case events.KindSeizeConfirm:
			logger.Debug("seize confirm", "channel", ev.Channel)
		}
	}
}

// kissReadLoop accepts outbound frames and control commands from the
// KISS client and applies them to the matching channel's transmit
// queue or runtime parameters (ground: kiss_frame.go's kiss_process_msg
// command dispatch).
func (st *Station) kissReadLoop(stop <-chan struct{}) {
	logger := logging.For(logging.AreaKISS)
	for {
		select {
		case <-stop:
			return
		default:
		}
		f, err := st.KISS.ReadFrame()
		if err != nil {
			logger.Error("kiss read failed", "err", err)
			return
		}
		ch := st.channelByPort(int(f.Port))
		if ch == nil {
			logger.Warn("frame for unconfigured port", "port", f.Port)
			continue
		}
		switch f.Command {
		case kiss.CmdData:
			ch.TxQueue.Append(txqueue.PriorityLow, f.Payload, false)
		case kiss.CmdTXDelay:
			if len(f.Payload) > 0 {
				ch.Cfg.TxDelay = int(f.Payload[0])
				ch.Scheduler.Params.TxDelay = ch.Cfg.TxDelay
			}
		case kiss.CmdPersist:
			if len(f.Payload) > 0 {
				ch.Cfg.Persist = int(f.Payload[0])
				ch.Scheduler.Params.Persist = ch.Cfg.Persist
			}
		case kiss.CmdSlotTime:
			if len(f.Payload) > 0 {
				ch.Cfg.SlotTime = int(f.Payload[0])
				ch.Scheduler.Params.SlotTime = time.Duration(ch.Cfg.SlotTime) * 10 * time.Millisecond
			}
		case kiss.CmdTXTail:
			if len(f.Payload) > 0 {
				ch.Cfg.TxTail = int(f.Payload[0])
				ch.Scheduler.Params.TxTail = ch.Cfg.TxTail
			}
		case kiss.CmdFullDup:
			if len(f.Payload) > 0 {
				ch.Cfg.FullDuplex = f.Payload[0] != 0
				ch.Scheduler.Params.FullDuplex = ch.Cfg.FullDuplex
			}
		}
	}
}

func (st *Station) channelByPort(port int) *Channel {
	for _, ch := range st.Channels {
		if ch.Index == port {
			return ch
		}
	}
	return nil
}
