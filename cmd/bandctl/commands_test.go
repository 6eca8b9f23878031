//go:build test

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/srg/bandlink/internal/events"
	"github.com/srg/bandlink/internal/protocol"
	"github.com/srg/bandlink/internal/testutils"
	"github.com/srg/bandlink/internal/transport"
	"github.com/srg/bandlink/pkg/config"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type CommandsTestSuite struct {
	CommandTestSuite
}

func (suite *CommandsTestSuite) allowTelemetry() {
	suite.Transport.On("Write", mock.Anything, mock.Anything).Return(nil)
	suite.Transport.On("Read", transport.Battery).Return([]byte{0x00, 0x50}, nil)
	suite.Transport.On("Read", transport.Steps).Return(
		[]byte{0x00, 0xe8, 0x03, 0x00, 0x00, 0xbc, 0x02, 0x00, 0x00, 0x2a, 0x00, 0x00, 0x00}, nil)
}

func (suite *CommandsTestSuite) TestEndpoints() {
	// GOAL: Verify the endpoints command prints the default layout without connecting
	//
	// TEST SCENARIO: Run endpoints → header + one row per endpoint in order → no dial

	out, err := suite.ExecuteCommand(rootCmd, "endpoints")
	suite.Require().NoError(err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	suite.Require().Len(lines, 1+len(transport.Endpoints()), "MUST print header and every endpoint")
	suite.Assert().True(strings.HasPrefix(lines[0], "ENDPOINT"))
	for i, ep := range transport.Endpoints() {
		suite.Assert().True(strings.HasPrefix(lines[i+1], string(ep)), "row %d MUST be %s", i+1, ep)
	}
	suite.Assert().Contains(out, "00000009-0000-3512-2118-0009af100700")
	suite.Assert().Empty(suite.Dialed, "MUST NOT connect")
}

func (suite *CommandsTestSuite) TestVibrate() {
	// GOAL: Verify vibrate authenticates and writes the alert count times
	//
	// TEST SCENARIO: vibrate --count 2 --interval 1ms → two 03 writes on vibration

	suite.RespondToHandshake(testutils.Challenge(0x20), protocol.OpAuthenticated)
	suite.allowTelemetry()

	out, err := suite.ExecuteCommand(rootCmd, "vibrate", TestDeviceAddress, "--key", testutils.TestAuthKey, "--count", "2", "--interval", "1ms")
	suite.Require().NoError(err)

	suite.Assert().Contains(out, "Sent 2 vibration alert(s)")
	suite.Assert().Equal([]string{TestDeviceAddress}, suite.Dialed)
	suite.Assert().Equal([][]byte{{0x03}, {0x03}}, suite.Transport.Writes(transport.Vibration))
}

func (suite *CommandsTestSuite) TestNotify() {
	suite.Run("sends encoded message", func() {
		// GOAL: Verify notify writes category byte + UTF-8 text
		//
		// TEST SCENARIO: notify --message hi --category sms → 05 68 69 on notification

		suite.SetupTest()
		suite.RespondToHandshake(testutils.Challenge(0x30), protocol.OpAuthenticated)
		suite.allowTelemetry()

		out, err := suite.ExecuteCommand(rootCmd, "notify", TestDeviceAddress, "--key", testutils.TestAuthKey, "--message", "hi", "--category", "sms")
		suite.Require().NoError(err)
		suite.Assert().Contains(out, "Notification sent")
		suite.Assert().Equal([][]byte{{0x05, 'h', 'i'}}, suite.Transport.Writes(transport.Notification))
	})

	suite.Run("unknown category", func() {
		suite.SetupTest()

		_, err := suite.ExecuteCommand(rootCmd, "notify", TestDeviceAddress, "--key", testutils.TestAuthKey, "--message", "hi", "--category", "fax")
		suite.Assert().ErrorContains(err, "unknown category")
		suite.Assert().Empty(suite.Dialed, "MUST NOT connect with invalid arguments")
	})
}

func (suite *CommandsTestSuite) TestMonitor() {
	// GOAL: Verify monitor prints the selected events until the duration elapses
	//
	// TEST SCENARIO: monitor --events power,steps --duration → power and steps lines, no heartrate lines

	suite.RespondToHandshake(testutils.Challenge(0x40), protocol.OpAuthenticated)
	suite.allowTelemetry()

	dir := suite.T().TempDir()
	cfgPath := filepath.Join(dir, "bandlink.yaml")
	suite.Require().NoError(os.WriteFile(cfgPath, []byte("poll_interval: 20ms\nheart_rate_ping_interval: 20ms\nlog_level: error\n"), 0o600))

	out, err := suite.ExecuteCommand(rootCmd, "monitor", TestDeviceAddress,
		"--config", cfgPath, "--key", testutils.TestAuthKey,
		"--events", "power,steps", "--duration", "300ms")
	suite.Require().NoError(err)

	suite.Assert().Contains(out, "power", "MUST print battery events")
	suite.Assert().Contains(out, "80%")
	suite.Assert().Contains(out, "steps")
	suite.Assert().Contains(out, "1000")
	suite.Assert().NotContains(out, "calories", "MUST only print selected events")
	suite.Assert().True(suite.Transport.Closed(), "MUST disconnect on exit")
}

func (suite *CommandsTestSuite) TestMonitorConnectionLost() {
	// GOAL: Verify monitor reports a dropped link as ErrConnectionLost
	//
	// TEST SCENARIO: authenticated → link drops → ErrConnectionLost

	suite.RespondToHandshake(testutils.Challenge(0x50), protocol.OpAuthenticated)
	suite.allowTelemetry()

	link := suite.Transport
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for len(link.Writes(transport.HeartRateControl)) == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		link.Disconnect()
	}()

	_, err := suite.ExecuteCommand(rootCmd, "monitor", TestDeviceAddress, "--key", testutils.TestAuthKey)
	suite.Assert().ErrorIs(err, ErrConnectionLost)
	suite.Assert().ErrorIs(err, transport.ErrDisconnected)
	suite.Assert().Equal("connection to the band was lost", FormatUserError(err))
}

func (suite *CommandsTestSuite) TestMissingKey() {
	// GOAL: Verify commands refuse to connect without a key
	//
	// TEST SCENARIO: no flag, config, env or terminal → ErrNoKey, no dial

	_, err := suite.ExecuteCommand(rootCmd, "vibrate", TestDeviceAddress)
	suite.Assert().ErrorIs(err, ErrNoKey)
	suite.Assert().Empty(suite.Dialed)
}

func (suite *CommandsTestSuite) TestKeyResolution() {
	suite.Run("environment", func() {
		suite.SetupTest()
		suite.T().Setenv(authKeyEnv, testutils.TestAuthKey)

		key, err := resolveKey(vibrateCmd, config.DefaultConfig())
		suite.Require().NoError(err)
		suite.Assert().Equal(testutils.TestAuthKey, key)
	})

	suite.Run("prompt", func() {
		suite.SetupTest()
		promptKey = func() (string, error) { return " " + testutils.TestAuthKey + "\n", nil }

		key, err := resolveKey(vibrateCmd, config.DefaultConfig())
		suite.Require().NoError(err)
		suite.Assert().Equal(testutils.TestAuthKey, key, "prompted key MUST be trimmed")
	})

	suite.Run("config beats environment", func() {
		suite.SetupTest()
		suite.T().Setenv(authKeyEnv, "00000000000000000000000000000000")

		cfg := config.DefaultConfig()
		cfg.AuthKey = testutils.TestAuthKey
		key, err := resolveKey(vibrateCmd, cfg)
		suite.Require().NoError(err)
		suite.Assert().Equal(testutils.TestAuthKey, key)
	})
}

func (suite *CommandsTestSuite) TestParseEventNames() {
	names, err := parseEventNames([]string{"HeartRate", " power ", ""})
	suite.Require().NoError(err)
	suite.Assert().Equal([]events.Name{events.HeartRate, events.Power}, names)

	_, err = parseEventNames([]string{"spo2"})
	suite.Assert().ErrorContains(err, "unknown event")
}

func TestCommandsTestSuite(t *testing.T) {
	suite.Run(t, new(CommandsTestSuite))
}
