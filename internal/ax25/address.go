package ax25

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAddress parses a "CALL-SSID" string (SSID optional, 0..15).
func ParseAddress(s string) (Address, error) {
	call, ssidStr, hasSSID := strings.Cut(s, "-")
	call = strings.ToUpper(strings.TrimSpace(call))
	if len(call) == 0 || len(call) > 6 {
		return Address{}, fmt.Errorf("ax25: invalid callsign %q", s)
	}
	ssid := 0
	if hasSSID {
		n, err := strconv.Atoi(ssidStr)
		if err != nil || n < 0 || n > 15 {
			return Address{}, fmt.Errorf("ax25: invalid SSID in %q", s)
		}
		ssid = n
	}
	return Address{Call: call, SSID: ssid, Reserved: 0x3}, nil
}

// encode writes the 7-octet on-air address field: six shifted-ASCII
// callsign characters (space padded) then the SSID octet, whose low
// bit (SSID_LAST_MASK) the caller sets on the final address.
func (a Address) encode(last bool) [7]byte {
	var out [7]byte
	call := a.Call
	for i := 0; i < 6; i++ {
		c := byte(' ')
		if i < len(call) {
			c = call[i]
		}
		out[i] = c << 1
	}
	b := byte(a.SSID<<1) & 0x1e
	b |= (a.Reserved << 5) & 0x60
	if a.HBit {
		b |= 0x80
	}
	if last {
		b |= 0x01
	}
	out[6] = b
	return out
}

// decodeAddress reads one 7-octet on-air address field.
func decodeAddress(raw []byte) (addr Address, last bool) {
	var call strings.Builder
	for i := 0; i < 6; i++ {
		c := raw[i] >> 1
		if c != ' ' {
			call.WriteByte(c)
		}
	}
	addr.Call = call.String()
	addr.SSID = int(raw[6]&0x1e) >> 1
	addr.Reserved = (raw[6] & 0x60) >> 5
	addr.HBit = raw[6]&0x80 != 0
	last = raw[6]&0x01 != 0
	return addr, last
}
