package ptt

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// FindCM108ForSoundCard enumerates the "sound" subsystem looking for the
// ALSA card that shares a USB parent device with a hidraw node, so a
// config file can name an audio device and have its CM108 PTT sibling
// found automatically rather than hand-entered (ground: cm108.go's
// cm108_find_ptt, reimplemented against go-udev's enumerator instead of
// libudev cgo bindings).
func FindCM108ForSoundCard(cardName string) (hidrawPath string, err error) {
	u := udev.Udev{}
	enum := u.NewEnumerateFromUdev(&u)
	if err := enum.AddMatchSubsystem("sound"); err != nil {
		return "", fmt.Errorf("ptt: udev match sound: %w", err)
	}
	devices, err := enum.Devices()
	if err != nil {
		return "", fmt.Errorf("ptt: udev enumerate: %w", err)
	}

	var parent *udev.Device
	for _, dev := range devices {
		if dev.PropertyValue("ID_PATH") == "" {
			continue
		}
		if dev.Sysname() == cardName || dev.PropertyValue("SOUND_CARD_NAME") == cardName {
			parent = dev.ParentWithSubsystemDevtype("usb", "usb_device")
			break
		}
	}
	if parent == nil {
		return "", fmt.Errorf("ptt: no USB parent found for sound card %q", cardName)
	}

	hidEnum := u.NewEnumerateFromUdev(&u)
	if err := hidEnum.AddMatchSubsystem("hidraw"); err != nil {
		return "", fmt.Errorf("ptt: udev match hidraw: %w", err)
	}
	hidDevices, err := hidEnum.Devices()
	if err != nil {
		return "", fmt.Errorf("ptt: udev enumerate hidraw: %w", err)
	}
	for _, dev := range hidDevices {
		if p := dev.ParentWithSubsystemDevtype("usb", "usb_device"); p != nil && p.Syspath() == parent.Syspath() {
			return dev.Devnode(), nil
		}
	}
	return "", fmt.Errorf("ptt: no hidraw sibling found for sound card %q", cardName)
}
