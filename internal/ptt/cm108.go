package ptt

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CM108Output keys PTT via one GPIO pin of a C-Media CM108/CM119 USB
// audio chip's HID interface, raw hidraw ioctl/write — no cgo or HID
// library needed since the protocol is five plain bytes (ground:
// cm108.go's cm108_set_gpio_pin/cm108_write).
type CM108Output struct {
	path string
	pin  int // 1..8
}

// knownVendorIDs are the USB vendor IDs cm108.go recognizes as C-Media
// chips worth a supported-device check.
var knownVendorIDs = map[uint16]bool{0x0d8c: true}

// OpenCM108 targets GPIO pin (1..8) of the hidraw device at path.
func OpenCM108(path string, pin int) (*CM108Output, error) {
	if pin < 1 || pin > 8 {
		return nil, fmt.Errorf("ptt: CM108 GPIO number %d must be in range 1..8", pin)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("ptt: open %s: %w", path, err)
	}
	defer f.Close()

	if info, err := unix.IoctlHIDGetRawInfo(int(f.Fd())); err == nil {
		if !knownVendorIDs[uint16(info.Vendor)] {
			fmt.Fprintf(os.Stderr, "ptt: %s is not a recognized CM108-family device (vid=%04x pid=%04x), proceeding anyway\n", path, info.Vendor, info.Product)
		}
	}

	return &CM108Output{path: path, pin: pin}, nil
}

// Set drives the configured GPIO pin high (on) or low (off).
func (c *CM108Output) Set(on bool) error {
	iomask := 1 << (c.pin - 1)
	iodata := 0
	if on {
		iodata = 1 << (c.pin - 1)
	}
	return c.write(iomask, iodata)
}

// Close is a no-op: each Set reopens the device for its single report
// write, matching cm108_write's open-write-close pattern.
func (c *CM108Output) Close() error { return nil }

func (c *CM108Output) write(iomask, iodata int) error {
	f, err := os.OpenFile(c.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("ptt: open %s for write: %w", c.path, err)
	}
	defer f.Close()

	// First two bytes 0, then data, mask, 0 — five bytes total; four
	// fails with EPIPE on real hardware for reasons cm108.go's author
	// never resolved either.
	data := []byte{0, 0, byte(iodata), byte(iomask), 0}
	n, err := f.Write(data)
	if err != nil || n != len(data) {
		return fmt.Errorf("ptt: write %s: %w", c.path, err)
	}
	return nil
}
