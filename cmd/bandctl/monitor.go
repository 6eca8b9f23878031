package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/bandlink/internal/events"
	"github.com/srg/bandlink/pkg/band"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor [device-address]",
	Short: "Stream heart rate, battery and activity from the band",
	Long: fmt.Sprintf(`Authenticates to the band and prints its events as they arrive.

Heart rate is streamed by the band; battery and activity counters are polled
(see poll_interval). Events: %s.

Examples:
  # Everything, until Ctrl+C
  bandctl monitor %s --key 94359d5b8b092e1286a43cfb62ee7923

  # Heart rate only, for one minute
  bandctl monitor %s --events heartrate --duration 1m

%s`, joinNames(events.Names()), exampleDeviceAddress, exampleDeviceAddress, deviceAddressNote),
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

var (
	monitorEvents   []string
	monitorDuration time.Duration
	monitorNoColor  bool
)

func init() {
	monitorCmd.Flags().StringSliceVar(&monitorEvents, "events", nil, "Events to print, comma-separated (default: all)")
	monitorCmd.Flags().DurationVar(&monitorDuration, "duration", 0, "Stop after this long (default: until Ctrl+C)")
	monitorCmd.Flags().BoolVar(&monitorNoColor, "no-color", false, "Disable colored output")
	addConnectFlags(monitorCmd)
}

// parseEventNames validates event names given on the command line.
func parseEventNames(raw []string) ([]events.Name, error) {
	var names []events.Name
	for _, r := range raw {
		n := events.Name(strings.ToLower(strings.TrimSpace(r)))
		if n == "" {
			continue
		}
		if !n.Valid() {
			return nil, fmt.Errorf("unknown event %q: use %s", r, joinNames(events.Names()))
		}
		names = append(names, n)
	}
	return names, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	names, err := parseEventNames(monitorEvents)
	if err != nil {
		return err
	}

	cfg, logger, err := loadSettings(cmd, args)
	if err != nil {
		return err
	}
	if monitorNoColor {
		color.NoColor = true
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	bus := events.NewBus(cfg.EventBuffer, logger)
	sub := bus.Subscribe(names...)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for ev := range sub.C {
			fmt.Fprintln(cmd.OutOrStdout(), formatEvent(ev))
		}
	}()
	defer func() {
		bus.Close()
		<-printed
	}()

	progress := NewProgressPrinter(os.Stderr, fmt.Sprintf("Connecting to %s", cfg.Address), band.PhaseConnecting, band.PhaseReady, band.PhaseFailed)
	progress.Start()
	defer progress.Stop()

	_, err = band.WithBand(ctx, cfg, bus, logger, progress.Callback(), func(ctx context.Context, b *band.Band) (any, error) {
		fmt.Fprintln(os.Stderr, "Authenticated. Press Ctrl+C to stop...")

		var timeout <-chan time.Time
		if monitorDuration > 0 {
			timer := time.NewTimer(monitorDuration)
			defer timer.Stop()
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			return nil, nil
		case <-timeout:
			return nil, nil
		case <-b.Session.Done():
			if ctx.Err() != nil {
				return nil, nil
			}
			if err := b.Session.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
			}
			return nil, ErrConnectionLost
		}
	})
	return err
}

var (
	heartRateColor = color.New(color.FgRed)
	powerColor     = color.New(color.FgGreen)
	activityColor  = color.New(color.FgCyan)
	lifecycleColor = color.New(color.FgYellow)
	failureColor   = color.New(color.FgRed, color.Bold)
)

// formatEvent renders one event as "<time> <name> <value>".
func formatEvent(ev events.Event) string {
	var value string
	c := lifecycleColor
	switch ev.Name {
	case events.HeartRate:
		c, value = heartRateColor, fmt.Sprintf("%v bpm", ev.Payload)
	case events.Power:
		c, value = powerColor, fmt.Sprintf("%v%%", ev.Payload)
	case events.Steps:
		c, value = activityColor, fmt.Sprintf("%v", ev.Payload)
	case events.Distance:
		c, value = activityColor, fmt.Sprintf("%v m", ev.Payload)
	case events.Calories:
		c, value = activityColor, fmt.Sprintf("%v kcal", ev.Payload)
	case events.Failure:
		c, value = failureColor, fmt.Sprintf("%v", ev.Payload)
	}

	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf("%s %-13s %s", ts.Format("15:04:05"), ev.Name, value)
	return c.Sprint(strings.TrimRight(line, " "))
}

func joinNames(names []events.Name) string {
	s := make([]string, len(names))
	for i, n := range names {
		s[i] = string(n)
	}
	return strings.Join(s, ", ")
}
