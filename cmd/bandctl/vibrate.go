package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/bandlink/pkg/band"
)

// vibrateCmd represents the vibrate command
var vibrateCmd = &cobra.Command{
	Use:   "vibrate [device-address]",
	Short: "Trigger the band's vibration alert",
	Long: fmt.Sprintf(`Authenticates to the band and triggers its vibration alert.

Examples:
  # Single alert
  bandctl vibrate %s

  # Three alerts, two seconds apart
  bandctl vibrate %s --count 3 --interval 2s

%s`, exampleDeviceAddress, exampleDeviceAddress, deviceAddressNote),
	Args: cobra.MaximumNArgs(1),
	RunE: runVibrate,
}

var (
	vibrateCount    int
	vibrateInterval time.Duration
)

func init() {
	vibrateCmd.Flags().IntVar(&vibrateCount, "count", 1, "Number of alerts")
	vibrateCmd.Flags().DurationVar(&vibrateInterval, "interval", time.Second, "Pause between alerts")
	addConnectFlags(vibrateCmd)
}

func runVibrate(cmd *cobra.Command, args []string) error {
	if vibrateCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	cfg, logger, err := loadSettings(cmd, args)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := NewProgressPrinter(os.Stderr, fmt.Sprintf("Connecting to %s", cfg.Address), band.PhaseConnecting, band.PhaseReady, band.PhaseFailed)
	progress.Start()
	defer progress.Stop()

	_, err = band.WithBand(ctx, cfg, nil, logger, progress.Callback(), func(ctx context.Context, b *band.Band) (int, error) {
		for i := 0; i < vibrateCount; i++ {
			if i > 0 {
				select {
				case <-ctx.Done():
					return i, ctx.Err()
				case <-time.After(vibrateInterval):
				}
			}
			if err := b.Session.SendVibration(ctx); err != nil {
				return i, fmt.Errorf("vibration %d/%d: %w", i+1, vibrateCount, err)
			}
			logger.WithField("alert", i+1).Debug("Vibration sent")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %d vibration alert(s)\n", vibrateCount)
		return vibrateCount, nil
	})
	return err
}
