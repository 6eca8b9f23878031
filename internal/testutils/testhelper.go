package testutils

import (
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug-level logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// TestAuthKey is the key every test handshake uses.
const TestAuthKey = "94359d5b8b092e1286a43cfb62ee7923"

// Challenge returns a deterministic 16-byte challenge seeded by b.
func Challenge(b byte) []byte {
	c := make([]byte, 16)
	for i := range c {
		c[i] = b + byte(i)
	}
	return c
}
