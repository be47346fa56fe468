package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/enicky/automower-ble/internal/protocol"
)

func TestGetConfigDir(t *testing.T) {
	t.Setenv(ConfigDirEnvVar, "")
	t.Setenv("XDG_CONFIG_HOME", "")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "automower") {
		t.Errorf("GetConfigDir() = %v, should contain 'automower'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") {
			t.Errorf("Windows config dir should be under AppData, got: %v", configDir)
		}
	case "darwin", "linux":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG_CONFIG_HOME is not honoured on Windows")
	}
	t.Setenv(ConfigDirEnvVar, "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if want := filepath.Join("/tmp/xdg", "automower", "config.yaml"); configPath != want {
		t.Errorf("GetConfigPath() = %v, want %v", configPath, want)
	}
}

func TestGetConfigDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigDirEnvVar, dir)

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if want := filepath.Join(dir, "config.yaml"); configPath != want {
		t.Errorf("GetConfigPath() = %v, want %v", configPath, want)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Mowers == nil || reg.Commands == nil {
		t.Error("NewRegistry() maps should not be nil")
	}
	if reg.Preferences.Transport != TransportWebSocket {
		t.Errorf("Transport = %v, want websocket", reg.Preferences.Transport)
	}
	if reg.Preferences.RequestTimeoutDuration() != 5*time.Second {
		t.Errorf("RequestTimeoutDuration() = %v, want 5s", reg.Preferences.RequestTimeoutDuration())
	}
}

func TestRegistryEnsureMower(t *testing.T) {
	reg := NewRegistry()

	mower1 := reg.EnsureMower("aa:bb:cc:dd:ee:ff")
	if mower1 == nil {
		t.Fatal("EnsureMower() returned nil")
	}

	// Addresses are case-insensitive
	if mower2 := reg.EnsureMower("AA:BB:CC:DD:EE:FF"); mower1 != mower2 {
		t.Error("EnsureMower() should return same instance for same address")
	}

	if mower3 := reg.EnsureMower("11:22:33:44:55:66"); mower1 == mower3 {
		t.Error("EnsureMower() should create new instance for different address")
	}

	if reg.BrandOf("aa:bb:cc:dd:ee:ff") != protocol.BrandHusqvarna {
		t.Error("new mowers should default to husqvarna")
	}
}

func TestRegistryUpdateMowerLastSeen(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	reg.UpdateMowerLastSeen("AA:BB:CC:DD:EE:FF", 0x47603bb6)
	after := time.Now()

	mower := reg.GetMower("AA:BB:CC:DD:EE:FF")
	if mower == nil {
		t.Fatal("Mower should exist after UpdateMowerLastSeen()")
	}
	if mower.ChannelID != 0x47603bb6 {
		t.Errorf("ChannelID = %x, want 47603bb6", mower.ChannelID)
	}
	if mower.LastSeen.Before(before) || mower.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", mower.LastSeen, before, after)
	}
}

func TestRegistrySetMowerModel(t *testing.T) {
	reg := NewRegistry()
	minimo, ok := protocol.LookupModel([2]byte{0x1D, 0x02})
	if !ok {
		t.Fatal("Minimo missing from model table")
	}

	reg.SetMowerModel("AA:BB", minimo)
	reg.SetMowerNickname("AA:BB", "Front lawn")

	mower := reg.GetMower("aa:bb")
	if mower.Model != "Minimo" || mower.Nickname != "Front lawn" {
		t.Errorf("mower = %+v", mower)
	}
	if reg.BrandOf("AA:BB") != protocol.BrandGardena {
		t.Errorf("BrandOf() = %v, want gardena", reg.BrandOf("AA:BB"))
	}
}

func TestRegistrySet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(r *Registry) bool
	}{
		{key: "transport", value: "serial", check: func(r *Registry) bool { return r.Preferences.Transport == TransportSerial }},
		{key: "transport", value: "bluetooth", wantErr: true},
		{key: "bridge_url", value: "ws://bridge.local:8080/ble", check: func(r *Registry) bool { return r.Preferences.BridgeURL == "ws://bridge.local:8080/ble" }},
		{key: "serial_port", value: "/dev/ttyUSB0", check: func(r *Registry) bool { return r.Preferences.SerialPort == "/dev/ttyUSB0" }},
		{key: "baud_rate", value: "9600", check: func(r *Registry) bool { return r.Preferences.BaudRate == 9600 }},
		{key: "retries", value: "0", check: func(r *Registry) bool { return r.Preferences.Retries == 0 }},
		{key: "poll_interval", value: "60", check: func(r *Registry) bool { return r.Preferences.PollIntervalDuration() == time.Minute }},
		{key: "request_timeout", value: "-1", wantErr: true},
		{key: "retries", value: "many", wantErr: true},
		{key: "commands.battery-level", value: "0A1014", check: func(r *Registry) bool { return r.Commands["battery-level"] == "0a1014" }},
		{key: "commands.battery", value: "0a1014", wantErr: true},
		{key: "commands.mode", value: "0a10", wantErr: true},
		{key: "colour", value: "green", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			reg := NewRegistry()
			err := reg.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(reg) {
				t.Errorf("Set(%s, %s) did not apply", tt.key, tt.value)
			}
		})
	}
}

func TestRegistryCommandOverrides(t *testing.T) {
	reg := NewRegistry()
	reg.Commands["battery-level"] = "0a1014"

	overrides, err := reg.CommandOverrides()
	if err != nil {
		t.Fatalf("CommandOverrides() error = %v", err)
	}
	if got := overrides[protocol.KindBatteryLevel]; got != (protocol.CommandID{0x0a, 0x10, 0x14}) {
		t.Errorf("battery-level = %s, want 0a1014", got)
	}

	reg.Commands["bogus"] = "000000"
	if _, err := reg.CommandOverrides(); err == nil {
		t.Error("CommandOverrides() accepted an unknown kind")
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	reg := NewRegistry()
	reg.SetMowerNickname("AA:BB:CC:DD:EE:FF", "Back garden")
	reg.UpdateMowerLastSeen("AA:BB:CC:DD:EE:FF", 0x6a24be25)
	if err := reg.Set("commands.mode", "1a2b3c"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := reg.SaveFile(configPath); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(configPath))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary file left behind: %d entries", len(entries))
	}

	loaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	mower := loaded.GetMower("AA:BB:CC:DD:EE:FF")
	if mower == nil {
		t.Fatal("Mower should exist in loaded registry")
	}
	if mower.Nickname != "Back garden" || mower.ChannelID != 0x6a24be25 {
		t.Errorf("loaded mower = %+v", mower)
	}
	if loaded.Commands["mode"] != "1a2b3c" {
		t.Errorf("loaded commands = %v", loaded.Commands)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	reg, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile(missing) error = %v", err)
	}
	if reg.Preferences == nil {
		t.Error("missing file should give default registry")
	}

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "minimal", content: "version: 1\n"},
		{name: "wrong version", content: "version: 2\n", wantErr: true},
		{name: "bad yaml", content: "version: [1\n", wantErr: true},
		{name: "bad command id", content: "version: 1\ncommands:\n  mode: xyz\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("write: %v", err)
			}
			reg, err := LoadFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (reg.Mowers == nil || reg.Preferences == nil) {
				t.Error("LoadFile() left maps or preferences nil")
			}
		})
	}
}

func BenchmarkEnsureMower(b *testing.B) {
	reg := NewRegistry()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.EnsureMower("AA:BB:CC:DD:EE:FF")
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.SetMowerNickname("aa:bb:cc:dd:ee:ff", "Front lawn")

	tests := []struct {
		in   string
		want string
	}{
		{in: "Front lawn", want: "AA:BB:CC:DD:EE:FF"},
		{in: "front LAWN", want: "AA:BB:CC:DD:EE:FF"},
		{in: " 11:22:33:44:55:66 ", want: "11:22:33:44:55:66"},
		{in: "back lawn", want: "BACK LAWN"},
	}
	for _, tt := range tests {
		if got := r.Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
