// Package goble implements transport.Transport on top of go-ble/ble: it dials the
// band, discovers its GATT profile and binds each logical endpoint to a characteristic.
package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/bandlink/internal/groutine"
	"github.com/srg/bandlink/internal/transport"
)

// DialOptions configures Dial.
type DialOptions struct {
	ConnectTimeout time.Duration `default:"30s"`
	// Endpoints overrides DefaultEndpoints when set.
	Endpoints *EndpointMap
}

// Transport is a connected band.
type Transport struct {
	client ble.Client
	logger *logrus.Logger

	chars *hashmap.Map[string, *ble.Characteristic]
	subs  *hashmap.Map[string, transport.Handler]

	writeMu      sync.Mutex
	disconnected chan struct{}
	discOnce     sync.Once
	closeOnce    sync.Once
}

var _ transport.Transport = (*Transport)(nil)
var _ transport.DisconnectNotifier = (*Transport)(nil)

// Dial connects to the band at address and resolves every endpoint.
func Dial(ctx context.Context, address string, opts *DialOptions, logger *logrus.Logger) (*Transport, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = &DialOptions{}
	}
	defaults.SetDefaults(opts)

	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("device address is empty")
	}

	logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": opts.ConnectTimeout,
	}).Info("Connecting to band...")

	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	ble.SetDefaultDevice(dev)

	connCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := ble.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}

	logger.WithField("address", address).Debug("Discovering services and characteristics...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	t, err := New(client, profile, opts.Endpoints, logger)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection")
		}
		return nil, err
	}

	logger.WithField("address", address).Info("Band connected")
	return t, nil
}

// New binds endpoints to the characteristics of an already discovered profile.
// A nil endpoints map uses DefaultEndpoints.
func New(client ble.Client, profile *ble.Profile, endpoints *EndpointMap, logger *logrus.Logger) (*Transport, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if endpoints == nil {
		endpoints = DefaultEndpoints()
	}
	if err := ValidateEndpoints(endpoints); err != nil {
		return nil, err
	}

	t := &Transport{
		client:       client,
		logger:       logger,
		chars:        hashmap.New[string, *ble.Characteristic](),
		subs:         hashmap.New[string, transport.Handler](),
		disconnected: make(chan struct{}),
	}

	var missing []string
	for pair := endpoints.Oldest(); pair != nil; pair = pair.Next() {
		char := findCharacteristic(profile, pair.Value)
		if char == nil {
			missing = append(missing, fmt.Sprintf("%s (%s)", pair.Key, pair.Value))
			continue
		}
		t.chars.Set(string(pair.Key), char)
		logger.WithFields(logrus.Fields{
			"endpoint":     pair.Key,
			"service_uuid": NormalizeUUID(pair.Value.Service),
			"char_uuid":    NormalizeUUID(pair.Value.Characteristic),
		}).Debug("Endpoint bound")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: characteristics not found: %s", transport.ErrUnknownEndpoint, strings.Join(missing, ", "))
	}

	groutine.Go(context.Background(), "ble-connection-monitor", func(context.Context) {
		select {
		case <-client.Disconnected():
			logger.Warn("Band reported disconnection")
			t.markDisconnected()
		case <-t.disconnected:
		}
	})
	return t, nil
}

func findCharacteristic(profile *ble.Profile, ref CharacteristicRef) *ble.Characteristic {
	if profile == nil {
		return nil
	}
	svcUUID := NormalizeUUID(ref.Service)
	charUUID := NormalizeUUID(ref.Characteristic)
	for _, svc := range profile.Services {
		if NormalizeUUID(svc.UUID.String()) != svcUUID {
			continue
		}
		for _, c := range svc.Characteristics {
			if NormalizeUUID(c.UUID.String()) == charUUID {
				return c
			}
		}
	}
	return nil
}

func (t *Transport) characteristic(ep transport.Endpoint) (*ble.Characteristic, error) {
	select {
	case <-t.disconnected:
		return nil, transport.ErrDisconnected
	default:
	}
	c, ok := t.chars.Get(string(ep))
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnknownEndpoint, ep)
	}
	return c, nil
}

// Write writes data to ep with a write request. Writes are serialized.
func (t *Transport) Write(ctx context.Context, ep transport.Endpoint, data []byte) error {
	c, err := t.characteristic(ep)
	if err != nil {
		return transport.Wrap("write", ep, err)
	}
	if err := ctx.Err(); err != nil {
		return transport.Wrap("write", ep, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"endpoint": ep,
		"bytes":    len(data),
	}).Trace("Writing characteristic")
	return transport.Wrap("write", ep, NormalizeError(t.client.WriteCharacteristic(c, data, false)))
}

// Read reads the current value of ep.
func (t *Transport) Read(ctx context.Context, ep transport.Endpoint) ([]byte, error) {
	c, err := t.characteristic(ep)
	if err != nil {
		return nil, transport.Wrap("read", ep, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, transport.Wrap("read", ep, err)
	}

	data, err := t.client.ReadCharacteristic(c)
	if err != nil {
		return nil, transport.Wrap("read", ep, NormalizeError(err))
	}
	return data, nil
}

// Subscribe enables notifications on ep. Subscribing twice replaces the handler.
func (t *Transport) Subscribe(ctx context.Context, ep transport.Endpoint, h transport.Handler) error {
	c, err := t.characteristic(ep)
	if err != nil {
		return transport.Wrap("subscribe", ep, err)
	}
	if err := ctx.Err(); err != nil {
		return transport.Wrap("subscribe", ep, err)
	}

	if _, ok := t.subs.Get(string(ep)); ok {
		t.subs.Set(string(ep), h)
		return nil
	}
	t.subs.Set(string(ep), h)

	err = t.client.Subscribe(c, false, func(data []byte) {
		if handler, ok := t.subs.Get(string(ep)); ok {
			handler(data)
		}
	})
	if err != nil {
		t.subs.Del(string(ep))
		return transport.Wrap("subscribe", ep, NormalizeError(err))
	}

	t.logger.WithField("endpoint", ep).Debug("Subscribed to notifications")
	return nil
}

// Unsubscribe disables notifications on ep.
func (t *Transport) Unsubscribe(ctx context.Context, ep transport.Endpoint) error {
	c, err := t.characteristic(ep)
	if err != nil {
		return transport.Wrap("unsubscribe", ep, err)
	}
	if !t.subs.Del(string(ep)) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return transport.Wrap("unsubscribe", ep, err)
	}
	return transport.Wrap("unsubscribe", ep, NormalizeError(t.client.Unsubscribe(c, false)))
}

// Disconnected is closed when the link is lost or Close is called.
func (t *Transport) Disconnected() <-chan struct{} {
	return t.disconnected
}

// Endpoints returns the bound endpoints.
func (t *Transport) Endpoints() []transport.Endpoint {
	var out []transport.Endpoint
	for _, ep := range transport.Endpoints() {
		if _, ok := t.chars.Get(string(ep)); ok {
			out = append(out, ep)
		}
	}
	return out
}

// Close drops remaining subscriptions and cancels the connection.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		var active []string
		t.subs.Range(func(ep string, _ transport.Handler) bool {
			active = append(active, ep)
			return true
		})
		for _, ep := range active {
			t.subs.Del(ep)
		}

		if len(active) > 0 {
			if clearErr := t.client.ClearSubscriptions(); clearErr != nil {
				t.logger.WithField("error", clearErr).Warn("Failed to clear subscriptions during disconnect")
			}
		}

		t.markDisconnected()
		err = NormalizeError(t.client.CancelConnection())
		if err != nil {
			t.logger.WithField("error", err).Warn("Band disconnected with errors")
		} else {
			t.logger.Info("Band disconnected")
		}
	})
	return err
}

func (t *Transport) markDisconnected() {
	t.discOnce.Do(func() { close(t.disconnected) })
}
