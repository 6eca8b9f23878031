package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/srg/bandlink/internal/protocol"
	"github.com/srg/bandlink/pkg/band"
)

// notifyCmd represents the notify command
var notifyCmd = &cobra.Command{
	Use:   "notify [device-address] --message <text>",
	Short: "Show a text notification on the band",
	Long: fmt.Sprintf(`Authenticates to the band and sends a text notification.

Categories: %s.

Examples:
  # Plain message
  bandctl notify %s --message "Stand up"

  # As an SMS
  bandctl notify %s --message "Dinner at 8" --category sms

%s`, strings.Join(categoryNames(), ", "), exampleDeviceAddress, exampleDeviceAddress, deviceAddressNote),
	Args: cobra.MaximumNArgs(1),
	RunE: runNotify,
}

var (
	notifyMessage  string
	notifyCategory string
)

func init() {
	notifyCmd.Flags().StringVarP(&notifyMessage, "message", "m", "", "Notification text (required)")
	notifyCmd.Flags().StringVar(&notifyCategory, "category", "custom", "Notification category")
	_ = notifyCmd.MarkFlagRequired("message")
	addConnectFlags(notifyCmd)
}

// knownCategories lists the names accepted by --category.
var knownCategories = []string{"simple", "email", "news", "call", "missed", "sms", "voicemail", "schedule", "high", "im", "custom"}

func categoryNames() []string {
	names := append([]string(nil), knownCategories...)
	sort.Strings(names)
	return names
}

func runNotify(cmd *cobra.Command, args []string) error {
	category, ok := protocol.ParseAlertCategory(notifyCategory)
	if !ok {
		return fmt.Errorf("unknown category %q: use %s", notifyCategory, strings.Join(categoryNames(), ", "))
	}
	if strings.TrimSpace(notifyMessage) == "" {
		return fmt.Errorf("message must not be empty")
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

	_, err = band.WithBand(ctx, cfg, nil, logger, progress.Callback(), func(ctx context.Context, b *band.Band) (any, error) {
		if err := b.Session.SendNotification(ctx, category, notifyMessage); err != nil {
			return nil, fmt.Errorf("failed to send notification: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Notification sent")
		return nil, nil
	})
	return err
}
