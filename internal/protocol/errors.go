package protocol

import (
	"errors"
	"fmt"
)

// Protocol errors
var (
	ErrInvalidKey           = errors.New("invalid auth key")
	ErrMalformedFrame       = errors.New("malformed frame")
	ErrUnknownFrame         = errors.New("unknown frame")
	ErrUnexpectedFrame      = errors.New("unexpected frame")
	ErrUnexpectedChallenge  = errors.New("unexpected challenge")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// UnknownFrameError reports an opcode the auth channel does not define.
type UnknownFrameError struct {
	Opcode Opcode
}

func (e *UnknownFrameError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: opcode %s", ErrUnknownFrame, e.Opcode)
}

// Is allows errors.Is(err, ErrUnknownFrame)
func (e *UnknownFrameError) Is(target error) bool {
	return target == ErrUnknownFrame
}
