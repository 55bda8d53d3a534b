// Package ax25 implements the AX.25 link-layer frame: address fields,
// control/PID, the CCITT-16 frame check sequence, and serialization
// to and from the raw octet form carried over HDLC.
package ax25

import "fmt"

// Field-count and size limits from the AX.25 2.0 spec, as recognized by
// the HDLC deframer and serializer.
const (
	MaxAddrs    = 10   // destination, source, up to 8 digipeaters
	MaxInfoLen  = 2048 // maximum information field length (APRS-sized)
	MinPacketLen = 2*7 + 1
	MaxPacketLen = MaxAddrs*7 + 2 + 3 + MaxInfoLen

	// MaxFrameLen is the largest candidate frame the HDLC deframer will
	// accumulate, payload plus the two FCS octets.
	MaxFrameLen = MaxPacketLen + 2
)

// Address position indices within Packet.Addrs.
const (
	Destination = 0
	Source      = 1
	Repeater1   = 2
)

const (
	UIFrame           = 0x03
	PIDNoLayer3       = 0xf0
	PIDNetROM         = 0xcf
	PIDSegmentFragment = 0x08
	PIDEscape         = 0xff
)

// Address is one AX.25 address field: a callsign, SSID, and the two
// flag bits digipeaters and command/response use.
type Address struct {
	Call       string // up to 6 characters, upper case
	SSID       int    // 0..15
	HBit       bool   // command/response bit on src+dst; "has been repeated" on digipeaters
	Reserved   byte   // the two reserved bits, normally 0b11
}

// String renders CALL-SSID, omitting -0, with a '*' suffix whenever
// HBit is set (on a digipeater address, the "has been repeated"
// marker; the suffix is added for any address position).
func (a Address) String() string {
	s := a.Call
	if a.SSID != 0 {
		s += fmt.Sprintf("-%d", a.SSID)
	}
	if a.HBit {
		s += "*"
	}
	return s
}

// Packet is a decoded AX.25 frame: the address field, control and PID
// octets (for U/UI frames, which is all this system originates or
// needs to fully decode), and the information field.
type Packet struct {
	Addrs   []Address // len 2..MaxAddrs, Destination/Source first
	Control byte
	HasPID  bool
	PID     byte
	Info    []byte
}

// IsUI reports whether this is an unnumbered information frame, the
// only frame type the transmit scheduler and digipeat bundling logic
// care about distinguishing.
func (p *Packet) IsUI() bool {
	return p.Control&0xef == UIFrame
}

// Repeated reports whether the first digipeater in the address field
// has its "has-been-repeated" bit set — the APRS convention that marks
// a frame as already digipeated, which the transmit scheduler (§4.6)
// never bundles.
func (p *Packet) Repeated() bool {
	if len(p.Addrs) <= Repeater1 {
		return false
	}
	return p.Addrs[Repeater1].HBit
}
