//go:build test

package main

import (
	"bytes"
	"context"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/bandlink/internal/testutils"
	"github.com/srg/bandlink/internal/transport/goble"
	"github.com/srg/bandlink/pkg/band"
)

// TestDeviceAddress is the address every command test dials.
const TestDeviceAddress = "C8:0F:10:11:22:33"

// CommandTestSuite extends MockTransportSuite with command testing utilities.
// band.Dial is redirected to the suite's MockTransport for every test.
type CommandTestSuite struct {
	testutils.MockTransportSuite

	originalDial   func(context.Context, string, *goble.DialOptions, *logrus.Logger) (band.Link, error)
	originalPrompt func() (string, error)
	Dialed         []string
}

func (s *CommandTestSuite) SetupSuite() {
	s.MockTransportSuite.SetupSuite()
	s.originalDial = band.Dial
	s.originalPrompt = promptKey
	color.NoColor = true
}

func (s *CommandTestSuite) TearDownSuite() {
	band.Dial = s.originalDial
	promptKey = s.originalPrompt
}

func (s *CommandTestSuite) SetupTest() {
	s.MockTransportSuite.SetupTest()
	s.Dialed = nil
	band.Dial = func(_ context.Context, address string, _ *goble.DialOptions, _ *logrus.Logger) (band.Link, error) {
		s.Dialed = append(s.Dialed, address)
		return s.Transport, nil
	}
	promptKey = func() (string, error) { return "", ErrNoKey }
	s.T().Setenv(authKeyEnv, "")

	// cobra keeps flag values between executions
	resetFlags(rootCmd)
	for _, c := range rootCmd.Commands() {
		resetFlags(c)
	}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
}

// ExecuteCommand runs a cobra command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
