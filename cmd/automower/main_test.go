package main

import (
	"bytes"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/enicky/automower-ble/internal/config"
	"github.com/enicky/automower-ble/internal/protocol"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "02fd13", want: "02fd13"},
		{in: "0x02FD13", want: "02fd13"},
		{in: "0X02FD13", want: "02fd13"},
		{in: "02 fd 13", want: "02fd13"},
		{in: "02:fd:13", want: "02fd13"},
		{in: "02f", wantErr: true},
		{in: "zz", wantErr: true},
		{in: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseHex(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHex(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && hex.EncodeToString(got) != tt.want {
				t.Errorf("parseHex(%q) = %x, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseChannel(t *testing.T) {
	for in, want := range map[string]protocol.ChannelID{
		"0x47603bb6": 0x47603bb6,
		"1197489078": 0x47603bb6,
	} {
		got, err := parseChannel(in)
		if err != nil || got != want {
			t.Errorf("parseChannel(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := parseChannel("0x1ffffffff"); err == nil {
		t.Error("parseChannel() accepted a value wider than 32 bits")
	}
}

// run executes the root command against a temporary config file
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	channelFlag, brandFlag, outputFormat = "", "", "box"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "config.yaml")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDecodeCommand(t *testing.T) {
	const frame = "02fd1300b63b604701e601af5a1209000002001701c803"

	out, err := run(t, "decode", "device-type", frame, "--format", "plain")
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !strings.HasPrefix(out, "device-type:") || !strings.Contains(out, "305") {
		t.Errorf("decode output = %q", out)
	}

	if _, err := run(t, "decode", "device-type", frame, "--channel", "0x47603bb7", "--format", "plain"); err == nil {
		t.Error("decode accepted a frame from another session")
	}

	if _, err := run(t, "decode", "no-such-kind", frame); err == nil {
		t.Error("decode accepted an unknown kind")
	}
}

func TestConfigSetCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"config", "set", "commands.battery-level", "0a1014", "--config", path})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config set error = %v", err)
	}

	reg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	overrides, err := reg.CommandOverrides()
	if err != nil {
		t.Fatalf("CommandOverrides() error = %v", err)
	}
	if got := overrides[protocol.KindBatteryLevel]; got != (protocol.CommandID{0x0a, 0x10, 0x14}) {
		t.Errorf("battery-level override = %s", got)
	}
}

func TestStatusRequiresAddress(t *testing.T) {
	mowerAddress = ""
	if _, err := run(t, "status"); err == nil || !strings.Contains(err.Error(), "--address") {
		t.Errorf("status without address: error = %v", err)
	}
}

func TestParsePin(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{in: "1331", want: 1331},
		{in: " 0042\n", want: 42},
		{in: "65535", want: 65535},
		{in: "65536", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "12a4", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parsePin(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePin(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePin(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGetPin_Environment(t *testing.T) {
	t.Setenv(pinEnvVar, "1331")
	pin, err := getPin()
	if err != nil || pin != 1331 {
		t.Errorf("getPin() = %d, %v, want 1331", pin, err)
	}
}

func TestParkRejectsBadPin(t *testing.T) {
	t.Setenv(pinEnvVar, "12ab")
	if _, err := run(t, "park"); err == nil || !strings.Contains(err.Error(), "digits") {
		t.Errorf("park with a bad PIN: error = %v", err)
	}
}
