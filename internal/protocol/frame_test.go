package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	t.Run("opcode and payload", func(t *testing.T) {
		buf := []byte{0x10, 0x02, 0x01, 0xaa, 0xbb}

		f, err := DecodeFrame(buf)

		require.NoError(t, err)
		assert.Equal(t, OpChallenge, f.Opcode)
		assert.Equal(t, "100201", f.Opcode.String())
		assert.Equal(t, []byte{0xaa, 0xbb}, f.Payload)
	})

	t.Run("opcode only", func(t *testing.T) {
		f, err := DecodeFrame([]byte{0x10, 0x03, 0x01})

		require.NoError(t, err)
		assert.Equal(t, OpAuthenticated, f.Opcode)
		assert.Empty(t, f.Payload)
	})

	t.Run("payload does not alias source buffer", func(t *testing.T) {
		buf := []byte{0x10, 0x02, 0x01, 0x01}
		f, err := DecodeFrame(buf)
		require.NoError(t, err)

		buf[3] = 0xff

		assert.Equal(t, []byte{0x01}, f.Payload, "frame MUST be immutable")
	})

	for _, n := range []int{0, 1, 2} {
		t.Run("short buffer", func(t *testing.T) {
			_, err := DecodeFrame(make([]byte, n))
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestEncodeCommand(t *testing.T) {
	assert.Equal(t, []byte{0x02, 0x00}, EncodeCommand(CmdRequestChallenge[:], nil))
	assert.Equal(t, []byte{0x15, 0x02, 0x01}, EncodeCommand(CmdEnableHeartRate[:], nil))
	assert.Equal(t, []byte{0x03, 0x00, 0x01, 0x02}, EncodeCommand(CmdAuthResponse[:], []byte{0x01, 0x02}))

	t.Run("does not alias inputs", func(t *testing.T) {
		op := []byte{0x01}
		payload := []byte{0x02}
		out := EncodeCommand(op, payload)
		out[0], out[1] = 0xff, 0xff

		assert.Equal(t, []byte{0x01}, op)
		assert.Equal(t, []byte{0x02}, payload)
	})
}

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{0x00},
		{0xde, 0xad, 0xbe, 0xef},
		make([]byte, 16),
		[]byte("hello band"),
	}
	opcodes := []Opcode{OpSetKeyAck, OpChallenge, OpAuthenticated, OpAuthFailed, {0xff, 0x00, 0x7f}}

	for _, op := range opcodes {
		for _, payload := range payloads {
			f, err := DecodeFrame(EncodeCommand(op[:], payload))

			require.NoError(t, err)
			assert.Equal(t, op, f.Opcode)
			assert.Equal(t, payload, f.Payload)
		}
	}
}

func TestEncodeNotification(t *testing.T) {
	assert.Equal(t, []byte{0x05, 'h', 'i'}, EncodeNotification(CategorySMS, "hi"))
	assert.Equal(t, []byte{0xfa, 0xc3, 0xa9}, EncodeNotification(CategoryCustom, "é"))
	assert.Equal(t, []byte{0x00}, EncodeNotification(CategorySimple, ""))
	assert.Equal(t, []byte{0x00, 0xef, 0xbf, 0xbd}, EncodeNotification(CategorySimple, "\xff"), "invalid UTF-8 MUST be replaced")
}

func TestParseAlertCategory(t *testing.T) {
	c, ok := ParseAlertCategory("SMS")
	assert.True(t, ok)
	assert.Equal(t, CategorySMS, c)

	_, ok = ParseAlertCategory("fax")
	assert.False(t, ok)
}
