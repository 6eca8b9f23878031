package protocol

import (
	"encoding/hex"
	"fmt"
)

// AuthKeySize is the size of the shared secret in bytes.
const AuthKeySize = 16

// AuthKey is the 16-byte secret shared with the band.
type AuthKey [AuthKeySize]byte

// ParseAuthKey decodes a 32-character hexadecimal key such as
// "94359d5b8b092e1286a43cfb62ee7923". Anything else is rejected with ErrInvalidKey.
func ParseAuthKey(s string) (AuthKey, error) {
	var key AuthKey
	if len(s) != hex.EncodedLen(AuthKeySize) {
		return key, fmt.Errorf("%w: must be %d hex characters, got %d", ErrInvalidKey, hex.EncodedLen(AuthKeySize), len(s))
	}
	if _, err := hex.Decode(key[:], []byte(s)); err != nil {
		return AuthKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// String masks the key so it never ends up in logs verbatim.
func (k AuthKey) String() string {
	s := hex.EncodeToString(k[:])
	return s[:4] + "…" + s[len(s)-4:]
}
