package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeActivity(t *testing.T) {
	t.Run("little-endian fields", func(t *testing.T) {
		payload := []byte{0x00, 0x05, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x00, 0x0f, 0x00, 0x00, 0x00}

		a, err := DecodeActivity(payload)

		require.NoError(t, err)
		assert.Equal(t, Activity{Steps: 5, DistanceMeters: 10, Calories: 15}, a)
	})

	t.Run("multi-byte values", func(t *testing.T) {
		payload := []byte{
			0x0c,
			0x10, 0x27, 0x00, 0x00, // 10000
			0x40, 0x1f, 0x00, 0x00, // 8000
			0x01, 0x02, 0x03, 0x04, // 0x04030201
			0xff, 0xff, // trailing bytes are ignored
		}

		a, err := DecodeActivity(payload)

		require.NoError(t, err)
		assert.Equal(t, uint32(10000), a.Steps)
		assert.Equal(t, uint32(8000), a.DistanceMeters)
		assert.Equal(t, uint32(0x04030201), a.Calories)
	})

	t.Run("full range is unsigned", func(t *testing.T) {
		payload := make([]byte, 13)
		for i := 1; i < 5; i++ {
			payload[i] = 0xff
		}

		a, err := DecodeActivity(payload)

		require.NoError(t, err)
		assert.Equal(t, uint32(0xffffffff), a.Steps)
	})

	t.Run("short payload is an error", func(t *testing.T) {
		_, err := DecodeActivity(make([]byte, 12))
		assert.ErrorIs(t, err, ErrShortPayload)
	})
}

func TestDecodeBattery(t *testing.T) {
	level, err := DecodeBattery([]byte{0x00, 0x63})
	require.NoError(t, err)
	assert.Equal(t, int8(99), level)

	level, err = DecodeBattery([]byte{0x0f, 0x32, 0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, int8(50), level, "offset 0 MUST be ignored")

	level, err = DecodeBattery([]byte{0x00, 0xff})
	require.NoError(t, err)
	assert.Equal(t, int8(-1), level, "level MUST be signed")

	_, err = DecodeBattery([]byte{0x63})
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestDecodeHeartRate(t *testing.T) {
	hr, err := DecodeHeartRate([]byte{0x00, 0x4b})
	require.NoError(t, err)
	assert.Equal(t, int16(75), hr)

	hr, err = DecodeHeartRate([]byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, int16(0x0102), hr, "bytes MUST NOT be reversed")

	hr, err = DecodeHeartRate([]byte{0xff, 0xfe})
	require.NoError(t, err)
	assert.Equal(t, int16(-2), hr)

	_, err = DecodeHeartRate(nil)
	assert.ErrorIs(t, err, ErrShortPayload)
}
