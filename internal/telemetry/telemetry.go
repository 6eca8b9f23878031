// Package telemetry decodes the band's sensor payloads into typed samples.
package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortPayload is returned when a payload is too short for its layout.
var ErrShortPayload = errors.New("payload too short")

const (
	heartRateSize = 2
	batterySize   = 2
	activitySize  = 13
)

// Activity holds the band's cumulative daily counters.
type Activity struct {
	Steps          uint32
	DistanceMeters uint32
	Calories       uint32
}

// DecodeHeartRate reads the first two bytes as a signed big-endian integer, as delivered.
func DecodeHeartRate(payload []byte) (int16, error) {
	if err := checkSize("heart rate", payload, heartRateSize); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(payload)), nil
}

// DecodeBattery reads the power level at offset 1. Offset 0 is reserved.
func DecodeBattery(payload []byte) (int8, error) {
	if err := checkSize("battery", payload, batterySize); err != nil {
		return 0, err
	}
	return int8(payload[1]), nil
}

// DecodeActivity reads steps, distance and calories from the little-endian
// 4-byte fields at offsets 1, 5 and 9.
func DecodeActivity(payload []byte) (Activity, error) {
	if err := checkSize("activity", payload, activitySize); err != nil {
		return Activity{}, err
	}
	return Activity{
		Steps:          binary.LittleEndian.Uint32(payload[1:5]),
		DistanceMeters: binary.LittleEndian.Uint32(payload[5:9]),
		Calories:       binary.LittleEndian.Uint32(payload[9:13]),
	}, nil
}

func checkSize(kind string, payload []byte, want int) error {
	if len(payload) < want {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortPayload, kind, want, len(payload))
	}
	return nil
}
