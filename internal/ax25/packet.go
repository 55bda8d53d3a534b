package ax25

import "fmt"

// Serialize renders the packet as the raw octet stream that HDLC will
// bit-stuff and NRZI-encode: address field, control, optional PID,
// information — without the trailing FCS (callers append that via
// Compute/Bytes, mirroring the split between serializer and CRC).
func (p *Packet) Serialize() ([]byte, error) {
	if len(p.Addrs) < 2 || len(p.Addrs) > MaxAddrs {
		return nil, fmt.Errorf("ax25: %d addresses, need 2..%d", len(p.Addrs), MaxAddrs)
	}
	if len(p.Info) > MaxInfoLen {
		return nil, fmt.Errorf("ax25: info field %d bytes exceeds max %d", len(p.Info), MaxInfoLen)
	}

	out := make([]byte, 0, len(p.Addrs)*7+2+len(p.Info))
	for i, a := range p.Addrs {
		enc := a.encode(i == len(p.Addrs)-1)
		out = append(out, enc[:]...)
	}
	out = append(out, p.Control)
	if p.HasPID {
		out = append(out, p.PID)
	}
	out = append(out, p.Info...)

	if len(out) < MinPacketLen {
		return nil, fmt.Errorf("ax25: serialized frame %d bytes below minimum %d", len(out), MinPacketLen)
	}
	if len(out) > MaxPacketLen {
		return nil, fmt.Errorf("ax25: serialized frame %d bytes exceeds maximum %d", len(out), MaxPacketLen)
	}
	return out, nil
}

// Parse decodes a raw octet stream (payload only, FCS already removed
// and verified by the caller) into a Packet.
func Parse(raw []byte) (*Packet, error) {
	if len(raw) < MinPacketLen {
		return nil, fmt.Errorf("ax25: frame %d bytes below minimum %d", len(raw), MinPacketLen)
	}

	p := &Packet{}
	pos := 0
	for {
		if pos+7 > len(raw) {
			return nil, fmt.Errorf("ax25: truncated address field at offset %d", pos)
		}
		if len(p.Addrs) >= MaxAddrs {
			return nil, fmt.Errorf("ax25: more than %d addresses", MaxAddrs)
		}
		addr, last := decodeAddress(raw[pos : pos+7])
		p.Addrs = append(p.Addrs, addr)
		pos += 7
		if last {
			break
		}
	}
	if len(p.Addrs) < 2 {
		return nil, fmt.Errorf("ax25: need at least destination and source addresses")
	}
	if pos >= len(raw) {
		return nil, fmt.Errorf("ax25: missing control field")
	}
	p.Control = raw[pos]
	pos++

	if p.Control&0x01 == 0 || p.Control&0xef == UIFrame {
		// I frames (low bit 0) and UI frames carry a PID octet.
		if pos >= len(raw) {
			return nil, fmt.Errorf("ax25: missing PID field")
		}
		p.HasPID = true
		p.PID = raw[pos]
		pos++
	}

	p.Info = append([]byte{}, raw[pos:]...)
	return p, nil
}
