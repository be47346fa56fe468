package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/enicky/automower-ble/internal/protocol"
)

// Transport kinds accepted in Preferences.Transport
const (
	TransportWebSocket = "websocket"
	TransportSerial    = "serial"
)

// Registry represents the entire user configuration file.
// This stores user-defined metadata for mowers and application preferences.
type Registry struct {
	Version     int               `yaml:"version"`
	Mowers      map[string]*Mower `yaml:"mowers,omitempty"` // Keyed by BLE address
	Preferences *Preferences      `yaml:"preferences,omitempty"`
	Commands    map[string]string `yaml:"commands,omitempty"` // Response kind -> request command id (hex)
}

// Mower represents what we remember about a single mower.
// This is keyed by the mower's BLE address in the Registry.
type Mower struct {
	Nickname  string    `yaml:"nickname,omitempty"`   // User-friendly name
	ChannelID uint32    `yaml:"channel_id,omitempty"` // Session channel id, reused across runs
	Brand     string    `yaml:"brand,omitempty"`      // "husqvarna" or "gardena"
	Model     string    `yaml:"model,omitempty"`      // Last decoded model name
	LastSeen  time.Time `yaml:"last_seen,omitempty"`  // Last successful session
	// The operator PIN is NEVER stored in the config file
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	Transport       string `yaml:"transport"`            // "websocket" or "serial"
	BridgeURL       string `yaml:"bridge_url,omitempty"` // ws:// URL of the BLE bridge
	SerialPort      string `yaml:"serial_port,omitempty"`
	BaudRate        int    `yaml:"baud_rate"`
	RequestTimeout  int    `yaml:"request_timeout"`  // Seconds to wait for a response
	Retries         int    `yaml:"retries"`          // Retries for transient failures
	DiscoverTimeout int    `yaml:"discover_timeout"` // mDNS discovery timeout in seconds
	PollInterval    int    `yaml:"poll_interval"`    // Seconds between status polls
}

func defaultPreferences() *Preferences {
	return &Preferences{
		Transport:       TransportWebSocket,
		BaudRate:        115200,
		RequestTimeout:  5,
		Retries:         3,
		DiscoverTimeout: 5,
		PollInterval:    30,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Mowers:      make(map[string]*Mower),
		Preferences: defaultPreferences(),
		Commands:    make(map[string]string),
	}
}

// GetMower retrieves mower metadata by BLE address.
// Returns nil if the mower doesn't exist in the registry.
func (r *Registry) GetMower(address string) *Mower {
	return r.Mowers[normalizeAddress(address)]
}

// Resolve maps a nickname to the BLE address it was given to. Anything that
// is not a known nickname is returned as a normalised address.
func (r *Registry) Resolve(nameOrAddress string) string {
	for address, m := range r.Mowers {
		if m.Nickname != "" && strings.EqualFold(m.Nickname, strings.TrimSpace(nameOrAddress)) {
			return address
		}
	}
	return normalizeAddress(nameOrAddress)
}

// EnsureMower ensures a mower entry exists in the registry.
// Returns the mower entry (existing or newly created).
func (r *Registry) EnsureMower(address string) *Mower {
	if r.Mowers == nil {
		r.Mowers = make(map[string]*Mower)
	}

	address = normalizeAddress(address)
	if mower, exists := r.Mowers[address]; exists {
		return mower
	}

	mower := &Mower{Brand: protocol.BrandHusqvarna.String()}
	r.Mowers[address] = mower
	return mower
}

// UpdateMowerLastSeen records a successful session with the mower.
func (r *Registry) UpdateMowerLastSeen(address string, channel protocol.ChannelID) {
	mower := r.EnsureMower(address)
	mower.LastSeen = time.Now()
	mower.ChannelID = uint32(channel)
}

// SetMowerModel stores the decoded model and the brand it implies.
func (r *Registry) SetMowerModel(address string, model protocol.MowerModel) {
	mower := r.EnsureMower(address)
	mower.Model = model.Name
	mower.Brand = model.Brand().String()
}

// SetMowerNickname sets a user-friendly nickname for a mower.
func (r *Registry) SetMowerNickname(address, nickname string) {
	r.EnsureMower(address).Nickname = nickname
}

// BrandOf returns the stored brand for a mower, defaulting to Husqvarna.
func (r *Registry) BrandOf(address string) protocol.Brand {
	mower := r.GetMower(address)
	if mower == nil || mower.Brand == "" {
		return protocol.BrandHusqvarna
	}
	brand, err := protocol.ParseBrand(mower.Brand)
	if err != nil {
		return protocol.BrandHusqvarna
	}
	return brand
}

// CommandOverrides parses the commands section. Entries are keyed by
// response kind name ("battery-level") and hold a 6-digit hex command id.
func (r *Registry) CommandOverrides() (map[protocol.ResponseKind]protocol.CommandID, error) {
	out := make(map[protocol.ResponseKind]protocol.CommandID, len(r.Commands))
	for name, hexID := range r.Commands {
		kind, err := protocol.ParseResponseKind(name)
		if err != nil {
			return nil, fmt.Errorf("commands: %w", err)
		}
		cmd, err := protocol.ParseCommandID(hexID)
		if err != nil {
			return nil, fmt.Errorf("commands.%s: %w", name, err)
		}
		out[kind] = cmd
	}
	return out, nil
}

// Set updates a single setting from its dotted key, as used by
// "automower config set". Values are validated before they are stored.
func (r *Registry) Set(key, value string) error {
	if r.Preferences == nil {
		r.Preferences = defaultPreferences()
	}
	p := r.Preferences

	if name, ok := strings.CutPrefix(key, "commands."); ok {
		if _, err := protocol.ParseResponseKind(name); err != nil {
			return err
		}
		if _, err := protocol.ParseCommandID(value); err != nil {
			return err
		}
		if r.Commands == nil {
			r.Commands = make(map[string]string)
		}
		r.Commands[name] = strings.ToLower(value)
		return nil
	}

	switch key {
	case "transport":
		if value != TransportWebSocket && value != TransportSerial {
			return fmt.Errorf("transport must be %q or %q, got %q", TransportWebSocket, TransportSerial, value)
		}
		p.Transport = value
	case "bridge_url":
		p.BridgeURL = value
	case "serial_port":
		p.SerialPort = value
	case "baud_rate", "request_timeout", "retries", "discover_timeout", "poll_interval":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
		}
		*p.intField(key) = n
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func (p *Preferences) intField(key string) *int {
	switch key {
	case "baud_rate":
		return &p.BaudRate
	case "request_timeout":
		return &p.RequestTimeout
	case "retries":
		return &p.Retries
	case "discover_timeout":
		return &p.DiscoverTimeout
	default:
		return &p.PollInterval
	}
}

// RequestTimeoutDuration returns the request timeout as a time.Duration
func (p *Preferences) RequestTimeoutDuration() time.Duration {
	return time.Duration(p.RequestTimeout) * time.Second
}

// PollIntervalDuration returns the poll interval as a time.Duration
func (p *Preferences) PollIntervalDuration() time.Duration {
	return time.Duration(p.PollInterval) * time.Second
}

func normalizeAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}
