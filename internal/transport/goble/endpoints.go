package goble

import (
	"fmt"
	"strings"

	"github.com/go-ble/ble"
	"github.com/srg/bandlink/internal/transport"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// CharacteristicRef locates one characteristic in the band's GATT profile.
type CharacteristicRef struct {
	Service        string
	Characteristic string
}

func (r CharacteristicRef) String() string {
	return fmt.Sprintf("%s/%s", r.Service, r.Characteristic)
}

// EndpointMap maps logical endpoints to characteristics, in display order.
type EndpointMap = orderedmap.OrderedMap[transport.Endpoint, CharacteristicRef]

const (
	serviceMiBand1   = "fee0"
	serviceMiBand2   = "fee1"
	serviceHeartRate = "180d"
	serviceAlert     = "1802"
	serviceAlertNtf  = "1811"
)

// DefaultEndpoints returns the Mi Band 4/5 characteristic layout.
func DefaultEndpoints() *EndpointMap {
	m := orderedmap.New[transport.Endpoint, CharacteristicRef]()
	m.Set(transport.Auth, CharacteristicRef{serviceMiBand2, "00000009-0000-3512-2118-0009af100700"})
	m.Set(transport.HeartRateControl, CharacteristicRef{serviceHeartRate, "2a39"})
	m.Set(transport.HeartRateMeasurement, CharacteristicRef{serviceHeartRate, "2a37"})
	m.Set(transport.Battery, CharacteristicRef{serviceMiBand1, "00000006-0000-3512-2118-0009af100700"})
	m.Set(transport.Steps, CharacteristicRef{serviceMiBand1, "00000007-0000-3512-2118-0009af100700"})
	m.Set(transport.Vibration, CharacteristicRef{serviceAlert, "2a06"})
	m.Set(transport.Notification, CharacteristicRef{serviceAlertNtf, "2a46"})
	return m
}

// bluetoothBaseSuffix is the tail of 16-bit UUIDs expanded onto the Bluetooth base UUID.
const bluetoothBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID to lowercase hex without dashes or a 0x prefix.
// Bluetooth base UUIDs (0000xxxx-0000-1000-8000-00805f9b34fb) collapse to their 16-bit form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, bluetoothBaseSuffix) {
		return u[4:8]
	}
	return u
}

// ValidateEndpoints checks that every endpoint the engine uses is mapped to parseable UUIDs.
func ValidateEndpoints(m *EndpointMap) error {
	for _, ep := range transport.Endpoints() {
		ref, ok := m.Get(ep)
		if !ok {
			return fmt.Errorf("%w: %s is not mapped", transport.ErrUnknownEndpoint, ep)
		}
		for _, u := range []string{ref.Service, ref.Characteristic} {
			if _, err := ble.Parse(u); err != nil {
				return fmt.Errorf("endpoint %s: invalid UUID %q: %w", ep, u, err)
			}
		}
	}
	return nil
}
