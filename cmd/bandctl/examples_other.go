//go:build !darwin

package main

const (
	exampleDeviceAddress = "C8:0F:10:11:22:33"
	deviceAddressNote    = "Device address format: MAC address, colon separated\n  Example: C8:0F:10:11:22:33"
)
