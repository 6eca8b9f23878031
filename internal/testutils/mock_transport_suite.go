//go:build test

package testutils

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/bandlink/internal/protocol"
	"github.com/srg/bandlink/internal/transport"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// MockTransportSuite provides a fresh MockTransport, EventRecorder and auth key per test.
//
//	type HandshakeSuite struct {
//	    testutils.MockTransportSuite
//	}
//
//	func (s *HandshakeSuite) SetupTest() {
//	    s.MockTransportSuite.SetupTest() // call parent first
//	    s.Transport.On("Write", mock.Anything, mock.Anything).Return(nil)
//	}
type MockTransportSuite struct {
	suite.Suite

	Helper *TestHelper    // Test helper with logging
	Logger *logrus.Logger // Structured logger for test output

	Key       protocol.AuthKey
	Transport *MockTransport
	Events    *EventRecorder
}

// SetupSuite creates the shared logger and key.
func (s *MockTransportSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger

	key, err := protocol.ParseAuthKey(TestAuthKey)
	s.Require().NoError(err, "test key MUST parse")
	s.Key = key
}

// SetupTest replaces the transport double and event recorder.
func (s *MockTransportSuite) SetupTest() {
	s.Transport = NewMockTransport()
	s.Events = NewEventRecorder()
}

// TearDownTest simulates link loss so no background reader outlives the test.
func (s *MockTransportSuite) TearDownTest() {
	if s.Transport != nil {
		s.Transport.Disconnect()
	}
}

// ExpectedResponse returns the bytes a correct handshake writes for challenge.
func (s *MockTransportSuite) ExpectedResponse(challenge []byte) []byte {
	ciphertext, err := protocol.EncryptChallenge(s.Key, challenge)
	s.Require().NoError(err, "challenge MUST encrypt")
	return protocol.EncodeAuthResponse(ciphertext)
}

// ChallengeFrame returns a "challenge issued" notification carrying challenge.
func ChallengeFrame(challenge []byte) []byte {
	return protocol.EncodeCommand(protocol.OpChallenge[:], challenge)
}

// RespondToHandshake makes the band answer the challenge request with challenge and
// the response with outcome (protocol.OpAuthenticated or protocol.OpAuthFailed).
// Register before any permissive Write expectation.
func (s *MockTransportSuite) RespondToHandshake(challenge []byte, outcome protocol.Opcode) {
	m := s.Transport
	m.On("Write", transport.Auth, protocol.EncodeCommand(protocol.CmdRequestChallenge[:], nil)).Run(func(mock.Arguments) {
		go m.Notify(transport.Auth, ChallengeFrame(challenge))
	}).Return(nil)
	m.On("Write", transport.Auth, s.ExpectedResponse(challenge)).Run(func(mock.Arguments) {
		go m.Notify(transport.Auth, outcome[:])
	}).Return(nil)
}
