// Package logging provides the structured loggers used throughout this
// system, one per functional area that used to get its own terminal
// color (INFO/ERROR/REC/DECODED/XMIT/DEBUG in textcolor.go), replacing
// ANSI color switching with charmbracelet/log's leveled, key-value
// structured output.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Area names a subsystem whose logger gets its own prefix, the
// structured-logging equivalent of textcolor.go's color-per-category
// scheme (REC for received frames, XMIT for transmitted ones, DECODED
// for dispatcher output).
type Area string

const (
	AreaReceive  Area = "rec"
	AreaXmit     Area = "xmit"
	AreaDecoded  Area = "decoded"
	AreaPTT      Area = "ptt"
	AreaConfig   Area = "config"
	AreaKISS     Area = "kiss"
	AreaStation  Area = "station"
)

// Root is the process-wide base logger; For creates per-area children
// from it so every log line carries an "area" field callers can filter
// on.
var Root = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      "15:04:05.000",
})

// For returns a logger scoped to area.
func For(area Area) *log.Logger {
	return Root.With("area", string(area))
}

// SetLevel parses a level name ("debug", "info", "warn", "error") and
// applies it to Root, defaulting to Info on an unrecognized name.
func SetLevel(name string) {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		lvl = log.InfoLevel
	}
	Root.SetLevel(lvl)
}
