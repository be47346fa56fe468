package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/enicky/automower-ble/internal/logging"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type advertised by BLE bridges
	ServiceType = "_automower-bridge._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for bridge discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when the advertisement carries no port
	DefaultPort = 8080

	// DefaultPath is used when the advertisement has no "path" TXT record
	DefaultPath = "/ble"
)

// Scanner handles mDNS bridge discovery
type Scanner struct {
	// Timeout is the maximum time to wait for bridge discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForBridges discovers every bridge that answers within the timeout
func (s *Scanner) ScanForBridges(ctx context.Context) ([]*Bridge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	bridges := make([]*Bridge, 0)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			if bridge := parseServiceEntry(entry); bridge != nil {
				logging.Debug("Bridge discovered", zap.String("bridge", bridge.String()))
				mu.Lock()
				bridges = append(bridges, bridge)
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Bridge(nil), bridges...), nil
}

// FirstBridge returns the first bridge that answers
func (s *Scanner) FirstBridge(ctx context.Context) (*Bridge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Bridge, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			if bridge := parseServiceEntry(entry); bridge != nil {
				select {
				case found <- bridge:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case bridge := <-found:
		return bridge, nil
	case <-ctx.Done():
		select {
		case bridge := <-found:
			return bridge, nil
		default:
		}
		return nil, fmt.Errorf("no bridge found within %s", s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Bridge.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Bridge {
	if entry == nil {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	path := metadata["path"]
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return &Bridge{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Path:         path,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// ScanForBridges is a convenience function to scan with a custom timeout
func ScanForBridges(ctx context.Context, timeout time.Duration) ([]*Bridge, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForBridges(ctx)
}
