package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bandctl",
	Short: "Xiaomi Mi Band command-line client",
	Long: `Command-line client for Xiaomi Mi Band fitness trackers that provides:

- Authentication with the band's 16-byte auth key
- Live heart rate, battery and activity (steps, distance, calories) monitoring
- Vibration alerts and text notifications
- The band's endpoint to GATT characteristic layout

The auth key can be given with --key, the auth_key config entry, or the
BANDLINK_AUTH_KEY environment variable; otherwise it is prompted for.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		// Print user-friendly error message
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("bandctl {{.Version}} (commit %s, built %s)\n", commit, date))

	// Add subcommands
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(vibrateCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(endpointsCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("key", "", "Auth key as 32 hex characters")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
