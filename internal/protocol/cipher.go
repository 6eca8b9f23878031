package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// EncryptChallenge encrypts a challenge with AES-128 in CBC mode using a zero IV and
// no padding. The challenge must be a non-empty multiple of the block size.
// Identical inputs always produce identical output.
func EncryptChallenge(key AuthKey, challenge []byte) ([]byte, error) {
	if len(challenge) == 0 || len(challenge)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: challenge of %d bytes is not a multiple of %d", ErrMalformedFrame, len(challenge), aes.BlockSize)
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	var iv [aes.BlockSize]byte
	out := make([]byte, len(challenge))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(out, challenge)
	return out, nil
}
