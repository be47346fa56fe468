package discovery

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Bridge represents a BLE bridge discovered on the network
type Bridge struct {
	// Instance is the mDNS service instance name (e.g., "garage-bridge")
	Instance string

	// Hostname is the mDNS hostname (e.g., "garage-bridge.local.")
	Hostname string

	// IP is the bridge address, IPv4 preferred
	IP string

	// Port is the websocket port
	Port int

	// Path is the websocket endpoint from the "path" TXT record
	Path string

	// Metadata contains every mDNS TXT record
	Metadata map[string]string

	// DiscoveredAt is when the bridge was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the bridge
func (b *Bridge) String() string {
	return fmt.Sprintf("Bridge %s (%s) at %s", b.Instance, b.Hostname, net.JoinHostPort(b.IP, strconv.Itoa(b.Port)))
}

// URL returns the websocket URL of the bridge
func (b *Bridge) URL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(b.IP, strconv.Itoa(b.Port)),
		Path:   b.Path,
	}
	if b.GetMetadata("tls") == "1" {
		u.Scheme = "wss"
	}
	return u.String()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
