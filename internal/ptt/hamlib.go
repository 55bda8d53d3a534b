package ptt

import (
	"fmt"

	"github.com/xylo04/goHamlib"
)

// HamlibOutput keys PTT through a hamlib-controlled rig's CAT interface
// rather than a hardware control line (ground: ptt.go's rig_set_ptt
// path, PTT_METHOD_HAMLIB).
type HamlibOutput struct {
	rig *goHamlib.Rig
}

// OpenHamlib opens rig model on device at the given baud rate.
func OpenHamlib(model int, device string, rate int) (*HamlibOutput, error) {
	rig := &goHamlib.Rig{}
	rig.SetModel(model)
	rig.SetConf("rig_pathname", device)
	if rate > 0 {
		rig.SetConf("serial_speed", fmt.Sprint(rate))
	}
	if err := rig.Open(); err != nil {
		return nil, fmt.Errorf("ptt: hamlib open %s: %w", device, err)
	}
	return &HamlibOutput{rig: rig}, nil
}

// Set issues rig_set_ptt for RIG_VFO_CURR.
func (h *HamlibOutput) Set(on bool) error {
	state := goHamlib.RIG_PTT_OFF
	if on {
		state = goHamlib.RIG_PTT_ON
	}
	if err := h.rig.SetPTT(goHamlib.RIG_VFO_CURR, state); err != nil {
		return fmt.Errorf("ptt: rig_set_ptt: %w", err)
	}
	return nil
}

// Close closes the rig's CAT connection.
func (h *HamlibOutput) Close() error {
	return h.rig.Close()
}
