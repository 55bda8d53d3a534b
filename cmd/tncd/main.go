// Command tncd is a software TNC: it demodulates AX.25 packets off one
// or more sound cards (or whatever audio.Source/Sink the build wires
// in), dispatches decoded frames to a KISS client, and transmits
// queued frames back out under p-persistent CSMA control (ground:
// direwolf/main.go's startup sequence).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kb9xyz/tncd/internal/audio"
	"github.com/kb9xyz/tncd/internal/config"
	"github.com/kb9xyz/tncd/internal/kiss"
	"github.com/kb9xyz/tncd/internal/logging"
	"github.com/kb9xyz/tncd/internal/station"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tncd:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := config.ParseFlags(os.Args[1:])

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		cfg = config.Default()
		logging.For(logging.AreaConfig).Warn("using built-in defaults", "reason", err)
	}
	cfg = flags.Apply(cfg)
	logging.SetLevel(cfg.LogLevel)

	logger := logging.For(logging.AreaStation)

	st, err := station.New(cfg)
	if err != nil {
		return fmt.Errorf("build station: %w", err)
	}

	for i, dev := range st.Devices {
		adCfg := cfg.AudioDevices[i]
		format := audio.Format{SampleRate: adCfg.SampleRate, BitsPerSample: 16, Channels: len(dev.Channels)}
		pa, err := audio.Open(format)
		if err != nil {
			return fmt.Errorf("open audio device %s: %w", dev.Name, err)
		}
		dev.Source = pa
		dev.Sink = pa
		txSink := &audioBitSink{sink: pa}
		for _, ch := range dev.Channels {
			ch.SetTxSink(txSink)
		}
	}

	var pty *kiss.PtyTransport
	if cfg.KISSPtyEnabled {
		pty, err = kiss.OpenPty()
		if err != nil {
			return fmt.Errorf("open kiss pty: %w", err)
		}
		defer pty.Close()
		st.KISS = pty
		logger.Info("kiss pty ready", "path", pty.SlavePath())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.Run(ctx); err != nil {
		return fmt.Errorf("start station: %w", err)
	}
	logger.Info("tncd running", "channels", len(st.Channels), "devices", len(st.Devices))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	st.Stop()
	for _, dev := range st.Devices {
		if dev.Source != nil {
			_ = dev.Source.Close()
		}
	}
	return nil
}

// audioBitSink adapts an audio.Sink's byte-at-a-time Put/Flush to the
// hdlc.Sink bit-at-a-time interface the transmit serializer writes to.
// Real tone-generation (turning a bit into a waveform sample) is the
// same kind of external collaborator as demodulation; in the absence
// of one, each bit is written through as a single already-at-line-rate
// sample so the pipeline runs end to end without a production
// modulator.
type audioBitSink struct {
	sink audio.Sink
	acc  byte
}

func (a *audioBitSink) PutBit(bit int) {
	b := byte(0x00)
	if bit != 0 {
		b = 0xff
	}
	if err := a.sink.Put(b); err != nil {
		logging.For(logging.AreaXmit).Warn("audio write failed", "err", err)
	}
}
