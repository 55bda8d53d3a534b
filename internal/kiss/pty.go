package kiss

import (
	"bufio"
	"fmt"
	"os"

	"github.com/creack/pty"
)

// Transport is a byte-stream endpoint a KISS client can connect to:
// ReadFrame blocks for the next complete, unwrapped frame; WriteFrame
// sends an already-built Frame.
type Transport interface {
	ReadFrame() (Frame, error)
	WriteFrame(f Frame) error
	SlavePath() string
	Close() error
}

// PtyTransport exposes a KISS endpoint as a Linux pseudo-terminal, so
// any client that expects a serial TNC (e.g. Xastir, APRS clients) can
// open the reported slave path directly (ground: kiss.go's
// kisspt_open_pt, reimplemented without the FIXME'd raw-mode/O_NONBLOCK
// gaps left unfinished there).
type PtyTransport struct {
	master *os.File
	slave  *os.File
	reader *bufio.Reader
}

// OpenPty creates a new master/slave pty pair for KISS traffic.
func OpenPty() (*PtyTransport, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("kiss: open pty: %w", err)
	}
	return &PtyTransport{master: master, slave: slave, reader: bufio.NewReader(master)}, nil
}

// SlavePath is the path a client opens, e.g. /dev/pts/4.
func (p *PtyTransport) SlavePath() string {
	return p.slave.Name()
}

// ReadFrame reads bytes from the master side until a complete
// FEND-delimited frame arrives, unwraps and decodes it.
func (p *PtyTransport) ReadFrame() (Frame, error) {
	raw, err := p.reader.ReadBytes(FEND)
	if err != nil {
		return Frame{}, fmt.Errorf("kiss: pty read: %w", err)
	}
	// A lone leading FEND (frame separator with nothing before it)
	// yields an empty slice once the leading byte is stripped; read
	// again for the real frame.
	for len(raw) == 1 && raw[0] == FEND {
		raw, err = p.reader.ReadBytes(FEND)
		if err != nil {
			return Frame{}, fmt.Errorf("kiss: pty read: %w", err)
		}
	}
	unwrapped := Unwrap(raw)
	f, ok := Decode(unwrapped)
	if !ok {
		return Frame{}, fmt.Errorf("kiss: empty frame")
	}
	return f, nil
}

// WriteFrame encodes and writes f to the master side for the client to
// read.
func (p *PtyTransport) WriteFrame(f Frame) error {
	_, err := p.master.Write(Encode(f))
	if err != nil {
		return fmt.Errorf("kiss: pty write: %w", err)
	}
	return nil
}

// Close closes both ends of the pty.
func (p *PtyTransport) Close() error {
	slaveErr := p.slave.Close()
	masterErr := p.master.Close()
	if masterErr != nil {
		return masterErr
	}
	return slaveErr
}

var _ Transport = (*PtyTransport)(nil)
