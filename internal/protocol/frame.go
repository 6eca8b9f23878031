package protocol

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// OpcodeSize is the length of the opcode prefix on inbound frames.
const OpcodeSize = 3

// Opcode identifies an inbound frame.
type Opcode [OpcodeSize]byte

// String returns the opcode as lowercase hex, e.g. "100201".
func (o Opcode) String() string {
	return hex.EncodeToString(o[:])
}

// Frame is an opcode and its payload. DecodeFrame returns frames that do not
// share memory with the source buffer.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// DecodeFrame splits a notification buffer into opcode and payload.
func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) < OpcodeSize {
		return Frame{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedFrame, len(buf), OpcodeSize)
	}

	var f Frame
	copy(f.Opcode[:], buf[:OpcodeSize])
	f.Payload = bytes.Clone(buf[OpcodeSize:])
	return f, nil
}

// EncodeCommand concatenates opcode and payload into a fresh buffer.
func EncodeCommand(opcode, payload []byte) []byte {
	out := make([]byte, 0, len(opcode)+len(payload))
	out = append(out, opcode...)
	return append(out, payload...)
}
