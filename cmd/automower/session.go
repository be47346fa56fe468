package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/enicky/automower-ble/internal/config"
	"github.com/enicky/automower-ble/internal/discovery"
	"github.com/enicky/automower-ble/internal/logging"
	"github.com/enicky/automower-ble/internal/mower"
	"github.com/enicky/automower-ble/internal/protocol"
	"github.com/enicky/automower-ble/internal/transport"
)

// session is a connected client plus what is needed to remember it
type session struct {
	client  *mower.Client
	address string
	target  string
}

// effectivePreferences merges command line flags over the config file
func effectivePreferences() config.Preferences {
	p := *registry.Preferences
	if transportKind != "" {
		p.Transport = transportKind
	}
	if bridgeURL != "" {
		p.BridgeURL = bridgeURL
	}
	if serialPort != "" {
		p.SerialPort = serialPort
	}
	if baudRate > 0 {
		p.BaudRate = baudRate
	}
	if timeout > 0 {
		p.RequestTimeout = timeout
	}
	if retries >= 0 {
		p.Retries = retries
	}
	return p
}

// parseChannel accepts decimal or 0x-prefixed hex
func parseChannel(s string) (protocol.ChannelID, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid channel id %q: %w", s, err)
	}
	return protocol.ChannelID(n), nil
}

// sessionOptions builds the client options for address from flags and the
// registry
func sessionOptions(address string, prefs config.Preferences) ([]mower.Option, error) {
	overrides, err := registry.CommandOverrides()
	if err != nil {
		return nil, err
	}

	brand := registry.BrandOf(address)
	if brandFlag != "" {
		if brand, err = protocol.ParseBrand(brandFlag); err != nil {
			return nil, err
		}
	}

	opts := []mower.Option{
		mower.WithBrand(brand),
		mower.WithCommands(overrides),
		mower.WithTimeout(prefs.RequestTimeoutDuration()),
		mower.WithRetries(prefs.Retries),
	}

	switch {
	case channelFlag != "":
		ch, err := parseChannel(channelFlag)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mower.WithChannel(ch))
	case registry.GetMower(address) != nil && registry.GetMower(address).ChannelID != 0:
		opts = append(opts, mower.WithChannel(protocol.ChannelID(registry.GetMower(address).ChannelID)))
	}
	return opts, nil
}

// resolveBridge returns the configured bridge URL, or discovers one
func resolveBridge(ctx context.Context, prefs config.Preferences) (string, error) {
	if prefs.BridgeURL != "" {
		return prefs.BridgeURL, nil
	}

	logging.Info("No bridge URL configured, browsing for one", zap.String("service", discovery.ServiceType))
	scanner := discovery.NewScanner()
	if prefs.DiscoverTimeout > 0 {
		scanner.Timeout = time.Duration(prefs.DiscoverTimeout) * time.Second
	}
	bridge, err := scanner.FirstBridge(ctx)
	if err != nil {
		return "", fmt.Errorf("no bridge URL configured and discovery failed: %w", err)
	}
	logging.Info("Using discovered bridge", zap.String("bridge", bridge.String()))
	return bridge.URL(), nil
}

// openSession connects to the mower named by --address
func openSession(ctx context.Context, extra ...mower.Option) (*session, error) {
	if mowerAddress == "" {
		return nil, fmt.Errorf("no mower given (use --address)")
	}
	address := registry.Resolve(mowerAddress)
	prefs := effectivePreferences()

	opts := transport.Options{
		Kind:       prefs.Transport,
		Address:    address,
		SerialPort: prefs.SerialPort,
		BaudRate:   prefs.BaudRate,
	}
	if prefs.Transport != transport.KindSerial {
		url, err := resolveBridge(ctx, prefs)
		if err != nil {
			return nil, err
		}
		opts.BridgeURL = url
	}

	t, err := transport.New(opts)
	if err != nil {
		return nil, err
	}

	clientOpts, err := sessionOptions(address, prefs)
	if err != nil {
		return nil, err
	}
	client, err := mower.NewClient(t, append(clientOpts, extra...)...)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s via %s: %w", address, t, err)
	}

	return &session{client: client, address: address, target: t.String()}, nil
}

// close disconnects and records the session in the registry. Failing to
// save is logged, not returned.
func (s *session) close() {
	if err := s.client.Close(); err != nil {
		logging.Debug("Disconnect failed", zap.Error(err))
	}

	registry.UpdateMowerLastSeen(s.address, s.client.Channel())
	if model, ok := s.client.KnownModel(); ok {
		registry.SetMowerModel(s.address, model)
	}
	if err := saveRegistry(); err != nil {
		logging.Warn("Failed to save config", zap.Error(err))
	}
}

// displayName is the nickname if one is set, otherwise the address
func (s *session) displayName() string {
	if m := registry.GetMower(s.address); m != nil && m.Nickname != "" {
		return m.Nickname
	}
	return s.address
}
