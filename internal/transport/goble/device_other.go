//go:build !darwin && !linux

package goble

import "github.com/go-ble/ble"

// DeviceFactory creates the host's ble.Device (can be overridden in tests)
var DeviceFactory = func() (ble.Device, error) {
	return nil, ErrUnsupportedPlatform
}
