package protocol

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// Responses captured from real controllers. Each frame carries the channel id
// of the session it was captured in.
var capturedFrames = []struct {
	name    string
	kind    ResponseKind
	channel ChannelID
	hex     string
	want    string
}{
	{"device type 305", KindDeviceType, 0x47603bb6, "02fd1300b63b604701e601af5a1209000002001701c803", `DeviceType{model="305", manufacturer="Husqvarna", husqvarna=true}`},
	{"device type 315", KindDeviceType, 0x0b8fe338, "02fd130038e38f0b01dc01af5a1209000002000c005903", `DeviceType{model="315", manufacturer="Husqvarna", husqvarna=true}`},
	{"device type minimo", KindDeviceType, 0x13a51453, "02fd13005314a513012e01af5a1209000002001d02cd03", `DeviceType{model="Minimo", manufacturer="Gardena", husqvarna=false}`},
	{"charging", KindIsCharging, 0x47603bb6, "02fd1200b63b604701db01af0a101500000100011603", "is-charging{value=true}"},
	{"not charging", KindIsCharging, 0x47603bb6, "02fd1200b63b604701db01af0a101500000100004803", "is-charging{value=false}"},
	{"state unassigned", KindMowerState, 0x47603bb3, "02fd1200b33b6047010901afea110100000100008103", "mower-state{unknown}"},
	{"state error", KindMowerState, 0x3438e1d5, "02fd1200d5e13834012301afea110200000100033a03", "mower-state{error}"},
	{"activity going out", KindMowerActivity, 0x47603bb3, "02fd1200b33b6047010901afea110200000100026403", "mower-activity{goingOut}"},
	{"number of tasks", KindNumberOfTasks, 0x6a24be25, "02fd150025be246a012e01af52120400000400010000004f03", "number-of-tasks{value=1}"},
	{"task info", KindTaskInfo, 0x6a24be25, "02fd240025be246a010701af5212050000130000e100003831000001000101000101000000003003", "task-info{start=16:00:00 duration=3h30m0s days=Mon,Wed,Thu,Sat,Sun}"},
}

func TestDecode_CapturedFrames(t *testing.T) {
	for _, tt := range capturedFrames {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(tt.channel, BrandHusqvarna)
			resp, err := dec.Decode(tt.kind, mustHex(t, tt.hex))
			if err != nil {
				t.Fatalf("Decode(%s) error = %v", tt.kind, err)
			}
			if resp.Kind() != tt.kind {
				t.Errorf("Kind() = %s, want %s", resp.Kind(), tt.kind)
			}
			if resp.String() != tt.want {
				t.Errorf("String() = %s, want %s", resp.String(), tt.want)
			}
		})
	}
}

func TestBuildFrame_ReproducesCaptures(t *testing.T) {
	for _, tt := range capturedFrames {
		t.Run(tt.name, func(t *testing.T) {
			captured := mustHex(t, tt.hex)
			var cmd CommandID
			copy(cmd[:], captured[offCommand:offCommand+3])

			built := mustBuild(t, tt.channel, cmd, captured[offPayload:len(captured)-2])
			if !bytes.Equal(built, captured) {
				t.Errorf("BuildFrame() = %x, want %x", built, captured)
			}
		})
	}
}

func TestDeviceType(t *testing.T) {
	const channel = ChannelID(0x13a51453)
	dec := NewDecoder(channel, BrandHusqvarna)

	model, err := dec.DeviceType(mustHex(t, "02fd13005314a513012e01af5a1209000002001d02cd03"))
	if err != nil {
		t.Fatalf("DeviceType() error = %v", err)
	}
	if model.Brand() != BrandGardena {
		t.Errorf("Brand() = %s, want gardena", model.Brand())
	}

	for _, m := range Models() {
		got, err := dec.DeviceType(mustBuild(t, channel, CommandID{0x5a, 0x12, 0x09}, m.Code[:]))
		if err != nil {
			t.Errorf("DeviceType(%x) error = %v", m.Code, err)
			continue
		}
		if got != m {
			t.Errorf("DeviceType(%x) = %+v, want %+v", m.Code, got, m)
		}
	}

	_, err = dec.DeviceType(mustBuild(t, channel, CommandID{0x5a, 0x12, 0x09}, []byte{0xff, 0xff}))
	if !errors.Is(err, ErrUnknownCode) {
		t.Errorf("unregistered model: error = %v, want ErrUnknownCode", err)
	}
}

func TestMowerState_Brands(t *testing.T) {
	const channel = ChannelID(0x47603bb3)
	dec := NewDecoder(channel, BrandHusqvarna)
	cmd := CommandID{0xea, 0x11, 0x01}

	for code := 0; code < 256; code++ {
		frame := mustBuild(t, channel, cmd, []byte{byte(code)})
		for _, brand := range []Brand{BrandHusqvarna, BrandGardena} {
			got, err := dec.MowerState(frame, brand)
			if err != nil {
				t.Fatalf("MowerState(%d, %s) error = %v", code, brand, err)
			}
			if want := StateForCode(byte(code), brand); got != want {
				t.Errorf("MowerState(%d, %s) = %s, want %s", code, brand, got, want)
			}
		}
	}

	tests := []struct {
		code  byte
		brand Brand
		want  MowerState
	}{
		{0, BrandHusqvarna, StateUnknown},
		{3, BrandHusqvarna, StateError},
		{10, BrandHusqvarna, StateInOperation},
		{11, BrandHusqvarna, StateUnknown},
		{14, BrandHusqvarna, StateDisconnected},
		{15, BrandHusqvarna, StateUnknown},
		{0, BrandGardena, StateOff},
		{3, BrandGardena, StateFatalError},
		{8, BrandGardena, StateError},
		{9, BrandGardena, StateUnknown},
	}
	for _, tt := range tests {
		if got := StateForCode(tt.code, tt.brand); got != tt.want {
			t.Errorf("StateForCode(%d, %s) = %s, want %s", tt.code, tt.brand, got, tt.want)
		}
	}
}

func TestDecode_ByteValues(t *testing.T) {
	const channel = ChannelID(0x1234abcd)
	dec := NewDecoder(channel, BrandGardena)
	cmd := CommandID{0x01, 0x02, 0x03}

	tests := []struct {
		name    string
		kind    ResponseKind
		payload []byte
		want    string
		wantErr error
	}{
		{"battery level", KindBatteryLevel, []byte{87}, "battery-level{value=87}", nil},
		{"charging flag out of range", KindIsCharging, []byte{0x02}, "", ErrUnknownCode},
		{"mode auto", KindMode, []byte{0}, "mode{auto}", nil},
		{"mode demo", KindMode, []byte{3}, "mode{demo}", nil},
		{"mode undefined", KindMode, []byte{4}, "", ErrUnknownCode},
		{"restriction none", KindRestrictionReason, []byte{0}, "restriction-reason{none}", nil},
		{"restriction frost", KindRestrictionReason, []byte{6}, "restriction-reason{frost_sensor}", nil},
		{"restriction undefined", KindRestrictionReason, []byte{8}, "", ErrUnknownCode},
		{"activity parked", KindMowerActivity, []byte{5}, "mower-activity{parked}", nil},
		{"activity out of range", KindMowerActivity, []byte{200}, "mower-activity{unknown}", nil},
		{"gardena state from decoder brand", KindMowerState, []byte{6}, "mower-state{inOperation}", nil},
		{"serial number", KindSerialNumber, []byte{0x15, 0xcd, 0x5b, 0x07}, "serial-number{value=123456789}", nil},
		{"battery level declared length", KindBatteryLevel, []byte{87, 0}, "", ErrStructuralMismatch},
		{"start time none", KindStartTime, []byte{0, 0, 0, 0}, "start-time{none}", nil},
		{"start time", KindStartTime, []byte{0x00, 0x5e, 0xd0, 0xb2}, "start-time{2065-01-24T05:20:00Z}", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := dec.Decode(tt.kind, mustBuild(t, channel, cmd, tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if resp.String() != tt.want {
				t.Errorf("String() = %s, want %s", resp.String(), tt.want)
			}
		})
	}
}

func TestStartTime_UTC(t *testing.T) {
	const channel = ChannelID(7)
	got, err := NewDecoder(channel, BrandHusqvarna).StartTime(mustBuild(t, channel, CommandID{}, []byte{0x00, 0xe1, 0x00, 0x00}))
	if err != nil {
		t.Fatalf("StartTime() error = %v", err)
	}
	want := time.Date(1970, 1, 1, 16, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("StartTime() = %v, want %v", got, want)
	}
}

func TestAcknowledgements(t *testing.T) {
	const channel = ChannelID(0x6a24be25)
	dec := NewDecoder(channel, BrandHusqvarna)

	if err := dec.Keepalive(mustBuild(t, channel, CommandKeepalive, nil)); err != nil {
		t.Errorf("Keepalive() error = %v", err)
	}
	if err := dec.Keepalive(mustBuild(t, channel, CommandID{0x42, 0x12, 0x03}, nil)); !errors.Is(err, ErrStructuralMismatch) {
		t.Errorf("Keepalive(wrong command) error = %v, want ErrStructuralMismatch", err)
	}

	if err := dec.OverrideMow(mustBuild(t, channel, CommandOverrideMow, nil)); err != nil {
		t.Errorf("OverrideMow() error = %v", err)
	}
	if err := dec.OverrideMow(mustBuild(t, channel, CommandKeepalive, nil)); !errors.Is(err, ErrStructuralMismatch) {
		t.Errorf("OverrideMow(wrong command) error = %v, want ErrStructuralMismatch", err)
	}
	bad := mustBuild(t, channel, CommandOverrideMow, nil)
	bad[len(bad)-2] ^= 0xFF
	if err := dec.OverrideMow(bad); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("OverrideMow(bad checksum) error = %v, want ErrChecksumMismatch", err)
	}

	if err := dec.Park(mustBuild(t, channel, CommandID{0x12, 0x34, 0x56}, nil)); err != nil {
		t.Errorf("Park() error = %v", err)
	}
}

func TestAcknowledgements_ManualSequence(t *testing.T) {
	const channel = ChannelID(0x6a24be25)
	dec := NewDecoder(channel, BrandHusqvarna)
	cmd := CommandID{0x12, 0x34, 0x57}

	for _, kind := range []ResponseKind{KindOperatorPin, KindSetMode, KindStartTrigger} {
		t.Run(kind.String(), func(t *testing.T) {
			resp, err := dec.Decode(kind, mustBuild(t, channel, cmd, nil))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if want := kind.String() + "{ok}"; resp.String() != want {
				t.Errorf("String() = %s, want %s", resp.String(), want)
			}

			if _, err := dec.Decode(kind, mustBuild(t, channel, cmd, []byte{0x01})); !errors.Is(err, ErrStructuralMismatch) {
				t.Errorf("Decode(with payload) error = %v, want ErrStructuralMismatch", err)
			}

			bad := mustBuild(t, channel, cmd, nil)
			bad[len(bad)-2] ^= 0xFF
			if _, err := dec.Decode(kind, bad); !errors.Is(err, ErrChecksumMismatch) {
				t.Errorf("Decode(bad checksum) error = %v, want ErrChecksumMismatch", err)
			}
		})
	}
}

func TestModeCode(t *testing.T) {
	for code := byte(0); code < 4; code++ {
		mode, ok := ModeForCode(code)
		if !ok {
			t.Fatalf("ModeForCode(%d) undefined", code)
		}
		got, ok := ModeCode(mode)
		if !ok || got != code {
			t.Errorf("ModeCode(%s) = %d, %v, want %d", mode, got, ok, code)
		}
	}
	if _, ok := ModeCode(Mode("mulching")); ok {
		t.Error("ModeCode(mulching) succeeded")
	}
}

func TestFlagAt17(t *testing.T) {
	const channel = ChannelID(0xcafe)
	dec := NewDecoder(channel, BrandHusqvarna)

	frame := mustBuild(t, channel, CommandID{}, []byte{0x00})
	frame[offPayloadLength] = 0x01
	// byte 17 is not covered by a checksum the decoder checks
	if got, err := dec.StartupSequenceRequired(frame); err != nil || !got {
		t.Errorf("StartupSequenceRequired() = %v, %v, want true", got, err)
	}
	if got, err := dec.OperatorLoggedIn(frame[:HeaderSize+1]); err != nil || !got {
		t.Errorf("OperatorLoggedIn() = %v, %v, want true", got, err)
	}

	frame[offPayloadLength] = 0x00
	if got, err := dec.OperatorLoggedIn(frame); err != nil || got {
		t.Errorf("OperatorLoggedIn() = %v, %v, want false", got, err)
	}

	if _, err := dec.StartupSequenceRequired(frame[:HeaderSize]); !errors.Is(err, ErrTooShort) {
		t.Errorf("StartupSequenceRequired(17 bytes) error = %v, want ErrTooShort", err)
	}
}

func TestDecode_ChecksumCoversPayload(t *testing.T) {
	tests := []struct {
		name    string
		kind    ResponseKind
		channel ChannelID
		hex     string
	}{
		{"device type", KindDeviceType, 0x47603bb6, "02fd1300b63b604701e601af5a1209000002001701c803"},
		{"is charging", KindIsCharging, 0x47603bb6, "02fd1200b63b604701db01af0a101500000100011603"},
		{"mower state", KindMowerState, 0x3438e1d5, "02fd1200d5e13834012301afea110200000100033a03"},
		{"number of tasks", KindNumberOfTasks, 0x6a24be25, "02fd150025be246a012e01af52120400000400010000004f03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(tt.channel, BrandHusqvarna)
			size := len(mustHex(t, tt.hex))
			// Command id, payload length and payload. Bytes 15..16 are
			// rejected by the envelope check first.
			for i := offCommand; i <= size-3; i++ {
				if i == offReserved1 || i == offReserved2 {
					continue
				}
				buf := mustHex(t, tt.hex)
				buf[i] ^= 0xFF
				_, err := dec.Decode(tt.kind, buf)
				if !errors.Is(err, ErrChecksumMismatch) {
					t.Errorf("byte %d flipped: error = %v, want ErrChecksumMismatch", i, err)
				}
			}
		})
	}
}

func TestDecode_Trailer(t *testing.T) {
	const channel = ChannelID(0x47603bb6)
	dec := NewDecoder(channel, BrandHusqvarna)

	frame := mustHex(t, "02fd1200b63b604701db01af0a101500000100011603")
	frame[len(frame)-1] = 0x04
	if _, err := dec.IsCharging(frame); !errors.Is(err, ErrStructuralMismatch) {
		t.Errorf("bad terminator: error = %v, want ErrStructuralMismatch", err)
	}

	var de *DecodeError
	_, err := dec.IsCharging(frame)
	if !errors.As(err, &de) || de.Kind != KindIsCharging || de.Offset != len(frame)-1 {
		t.Errorf("bad terminator: error = %#v, want is-charging at offset %d", err, len(frame)-1)
	}

	short := mustHex(t, "02fd1200b63b604701db01af0a101500000100011603")[:20]
	if _, err := dec.IsCharging(short); !errors.Is(err, ErrTooShort) {
		t.Errorf("20 bytes: error = %v, want ErrTooShort", err)
	}
}

func TestDecode_ShortBuffers(t *testing.T) {
	full := mustHex(t, capturedDeviceType305)
	dec := NewDecoder(capturedChannel305, BrandHusqvarna)

	for _, kind := range ResponseKinds() {
		for n := 0; n < HeaderSize; n++ {
			_, err := dec.Decode(kind, full[:n])
			if !errors.Is(err, ErrTooShort) {
				t.Errorf("Decode(%s, %d bytes) error = %v, want ErrTooShort", kind, n, err)
			}
		}
	}
}

func TestDecode_EnvelopeErrorsCarryKind(t *testing.T) {
	dec := NewDecoder(capturedChannel305+1, BrandHusqvarna)
	_, err := dec.Decode(KindDeviceType, mustHex(t, capturedDeviceType305))

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Decode() error = %v, want *DecodeError", err)
	}
	if de.Kind != KindDeviceType || de.Type != ErrTypeStructuralMismatch || de.Offset != offChannel {
		t.Errorf("Decode() error = %+v", de)
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	if _, err := NewDecoder(1, BrandHusqvarna).Decode(KindNone, nil); err == nil {
		t.Error("Decode(KindNone) succeeded")
	}
}

func TestResponseKinds(t *testing.T) {
	kinds := ResponseKinds()
	if len(kinds) != len(decoders) {
		t.Fatalf("ResponseKinds() has %d kinds, registry has %d", len(kinds), len(decoders))
	}
	for _, k := range kinds {
		parsed, err := ParseResponseKind(k.String())
		if err != nil || parsed != k {
			t.Errorf("ParseResponseKind(%q) = %v, %v", k.String(), parsed, err)
		}
	}
	if _, err := ParseResponseKind("battery"); err == nil {
		t.Error("ParseResponseKind(battery) succeeded")
	}
}
