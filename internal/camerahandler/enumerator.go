package camerahandler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// v4l2Enumerator discovers devices under /dev/video* on Linux, using the
// /sys/class/video4linux symlink target (stable across reboots/enumeration
// order changes) as the device identifier, matching cscore's UsbCamera
// enumeration in spirit.
type v4l2Enumerator struct {
	sysClassDir string
	devDir      string
}

// NewV4L2Enumerator builds the production Enumerator backend.
func NewV4L2Enumerator() Enumerator {
	return &v4l2Enumerator{
		sysClassDir: "/sys/class/video4linux",
		devDir:      "/dev",
	}
}

func (e *v4l2Enumerator) Enumerate() ([]Device, error) {
	entries, err := os.ReadDir(e.sysClassDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", e.sysClassDir, err)
	}

	var devices []Device
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}

		devPath := filepath.Join(e.devDir, name)
		if _, err := os.Stat(devPath); err != nil {
			continue
		}

		id, err := stableDeviceID(filepath.Join(e.sysClassDir, name))
		if err != nil {
			id = name
		}

		devices = append(devices, Device{DeviceID: id, Path: devPath})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// stableDeviceID resolves the sysfs device symlink target (e.g. the USB bus
// path) so the same physical camera keeps its identifier across reboots,
// even if Linux renumbers /dev/videoN.
func stableDeviceID(sysPath string) (string, error) {
	target, err := os.Readlink(filepath.Join(sysPath, "device"))
	if err != nil {
		return "", err
	}
	return filepath.Base(target), nil
}

// FixedEnumerator is a test/static Enumerator that always returns the same
// device list, used in tests and for bench setups with no real hardware.
type FixedEnumerator struct {
	Devices []Device
}

func (e FixedEnumerator) Enumerate() ([]Device, error) {
	return e.Devices, nil
}
