package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/bandlink/pkg/config"
	"golang.org/x/term"
)

// authKeyEnv names the environment variable consulted for the auth key.
const authKeyEnv = "BANDLINK_AUTH_KEY"

// promptKey reads the key from the terminal without echo (can be overridden in tests)
var promptKey = func() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoKey
	}

	fmt.Fprint(os.Stderr, "Auth key: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read auth key: %w", err)
	}
	return string(raw), nil
}

// loadSettings builds the configuration for a band command: defaults, then the
// --config file, then flags. The address comes from args[0] when present.
func loadSettings(cmd *cobra.Command, args []string) (*config.Config, *logrus.Logger, error) {
	cfg := config.DefaultConfig()

	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	logger, err := configureLogger(cmd, cfg, path != "")
	if err != nil {
		return nil, nil, err
	}

	if len(args) > 0 {
		cfg.Address = args[0]
	}
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, nil, fmt.Errorf("device address is required (argument or address in config)")
	}

	if cmd.Flags().Changed("timeout") {
		cfg.ConnectTimeout, _ = cmd.Flags().GetDuration("timeout")
	}

	key, err := resolveKey(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	cfg.AuthKey = key

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// resolveKey returns the first key found in --key, the config, the environment, or the prompt.
func resolveKey(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if key, _ := cmd.Flags().GetString("key"); key != "" {
		return strings.TrimSpace(key), nil
	}
	if cfg.AuthKey != "" {
		return cfg.AuthKey, nil
	}
	if key := os.Getenv(authKeyEnv); key != "" {
		return strings.TrimSpace(key), nil
	}

	key, err := promptKey()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// addConnectFlags registers the flags shared by commands that talk to a band.
func addConnectFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", config.DefaultConfig().ConnectTimeout, "Connection and authentication timeout")
}
