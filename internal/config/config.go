// Package config implements the station configuration: a YAML file
// mirroring the traditional per-channel tag names (MYCALL, ADEVICE,
// PERSIST, SLOTTIME, TXDELAY, TXTAIL, FULLDUP, PTT, ...), overridable
// by command-line flags (ground: config.go's tag grammar, translated
// from its line-oriented parser to a struct tree parsed with a real
// YAML library instead of a hand-rolled parser).
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Channel holds one radio channel's modem and CSMA tuning (ground:
// config.go's achan_s fields).
type Channel struct {
	MyCall string `yaml:"mycall"`

	Modem    string `yaml:"modem"`    // "afsk", "9600", "il2p" etc.
	Baud     int    `yaml:"baud"`
	MarkHz   int    `yaml:"mark_hz"`
	SpaceHz  int    `yaml:"space_hz"`
	Slicers  int    `yaml:"slicers"`

	SlotTime   int     `yaml:"slottime"`   // 10ms units
	Persist    int     `yaml:"persist"`    // 0..255
	TxDelay    int     `yaml:"txdelay"`    // 10ms units
	TxTail     int     `yaml:"txtail"`     // 10ms units
	DWait      int     `yaml:"dwait"`      // 10ms units, squelch/VOX settling delay once WAIT_CLEAR first sees DCD clear
	FullDuplex bool    `yaml:"fulldup"`
	ErrorRate  float64 `yaml:"xmit_error_rate"`

	FX25Enabled  bool   `yaml:"fx25"`
	FX25Strength string `yaml:"fx25_strength"` // "auto", "16", "32", "64"

	FixBits int  `yaml:"fix_bits"`
	PassAll bool `yaml:"passall"`

	PTTMethod string `yaml:"ptt_method"` // "serial", "gpio", "gpiod", "hamlib", "cm108", "none"
	PTTDevice string `yaml:"ptt_device"`
	PTTLine   string `yaml:"ptt_line"` // "rts", "dtr", "both" (serial only)
	PTTInvert bool   `yaml:"ptt_invert"`
	PTTGPIO   int    `yaml:"ptt_gpio"`
	HamlibModel int  `yaml:"hamlib_model"`
	HamlibRate  int  `yaml:"hamlib_rate"`

	// TXInhMethod names the transmit-inhibit input transport: "gpio" or
	// "none" (the default). When asserted, the channel is treated as
	// busy regardless of the DCD matrix, the way an external repeater
	// controller or squelch line holds a station off the air.
	TXInhMethod string `yaml:"txinh_method"`
	TXInhDevice string `yaml:"txinh_device"`
	TXInhGPIO   int    `yaml:"txinh_gpio"`
	TXInhInvert bool   `yaml:"txinh_invert"`

	TimestampFormat string `yaml:"timestamp_format"`
}

// AudioDevice names one input/output sound device pair (ground:
// config.go's ADEVICE command).
type AudioDevice struct {
	In       string `yaml:"in"`
	Out      string `yaml:"out"`
	Channels int    `yaml:"channels"` // 1 mono, 2 stereo
	SampleRate int  `yaml:"sample_rate"`
}

// Station is the top-level configuration tree loaded from YAML.
type Station struct {
	AudioDevices []AudioDevice `yaml:"audio_devices"`
	Channels     []Channel     `yaml:"channels"`

	KISSPtyEnabled bool `yaml:"kiss_pty"`

	DiscoveryEnabled bool   `yaml:"discovery"`
	DiscoveryName    string `yaml:"discovery_name"`

	LogLevel string `yaml:"log_level"`
}

// Default returns a Station with the documented defaults
// (DEFAULT_SLOTTIME=10, DEFAULT_PERSIST=63, DEFAULT_TXDELAY=30,
// DEFAULT_TXTAIL=10, DEFAULT_FULLDUP=false).
func Default() Station {
	return Station{
		AudioDevices: []AudioDevice{{In: "default", Out: "default", Channels: 1, SampleRate: 44100}},
		Channels: []Channel{{
			Modem: "afsk", Baud: 1200, MarkHz: 1200, SpaceHz: 2200, Slicers: 1,
			SlotTime: 10, Persist: 63, TxDelay: 30, TxTail: 10,
			PTTMethod: "none",
		}},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML station config from path.
func Load(path string) (Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Station{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	st := Default()
	if err := yaml.Unmarshal(data, &st); err != nil {
		return Station{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return st, nil
}

// Flags describes the command-line overrides this system accepts,
// layered over a file-loaded Station (ground: main.go's getopt usage,
// swapped for pflag per the ambient stack).
type Flags struct {
	ConfigPath string
	MyCall     string
	LogLevel   string
	Debug      bool
}

// ParseFlags registers and parses the process's command-line flags.
func ParseFlags(args []string) Flags {
	fs := pflag.NewFlagSet("tncd", pflag.ContinueOnError)
	f := Flags{}
	fs.StringVarP(&f.ConfigPath, "config", "c", "tncd.yaml", "path to station configuration file")
	fs.StringVar(&f.MyCall, "mycall", "", "override MYCALL for every channel")
	fs.StringVar(&f.LogLevel, "log-level", "", "override configured log level")
	fs.BoolVarP(&f.Debug, "debug", "d", false, "shorthand for --log-level=debug")
	_ = fs.Parse(args)
	return f
}

// Apply layers command-line overrides onto a loaded Station.
func (f Flags) Apply(st Station) Station {
	if f.Debug {
		st.LogLevel = "debug"
	} else if f.LogLevel != "" {
		st.LogLevel = f.LogLevel
	}
	if f.MyCall != "" {
		for i := range st.Channels {
			st.Channels[i].MyCall = f.MyCall
		}
	}
	return st
}
