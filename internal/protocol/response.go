package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Fixed command ids checked by the decoders that verify them
var (
	CommandKeepalive   = CommandID{0x42, 0x12, 0x02}
	CommandOverrideMow = CommandID{0x32, 0x12, 0x03}
	CommandTaskInfo    = CommandID{0x52, 0x12, 0x05}
)

// Payload lengths declared at offsets 17..18 for each fixed-size kind
const (
	payloadLenDeviceType = 2
	payloadLenByte       = 1
	payloadLenUint32     = 4
	payloadLenTaskInfo   = 0x13
)

// Decoder decodes responses for one session. It carries the session's channel
// id and the brand used when Decode is asked for a MowerState. A Decoder is a
// plain value and safe for concurrent use.
type Decoder struct {
	Channel ChannelID
	Brand   Brand
}

// NewDecoder returns a decoder for the given channel and brand
func NewDecoder(channel ChannelID, brand Brand) Decoder {
	return Decoder{Channel: channel, Brand: brand}
}

// validate runs the envelope checks and tags any failure with kind
func (d Decoder) validate(kind ResponseKind, buf []byte) (*ValidatedFrame, error) {
	frame, err := Validate(buf, d.Channel)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			tagged := *de
			tagged.Kind = kind
			return nil, &tagged
		}
		return nil, err
	}
	return frame, nil
}

// payload validates the frame and the kind-specific trailer, returning the n
// payload bytes. Order: envelope, bounds, payload checksum, declared length,
// total size, terminator. checkLength is false for kinds whose responses do
// not carry a meaningful length field.
func (d Decoder) payload(kind ResponseKind, buf []byte, n int, checkLength bool) ([]byte, error) {
	if _, err := d.validate(kind, buf); err != nil {
		return nil, err
	}

	need := offPayload + n + 2
	if len(buf) < need {
		return nil, tooShort(kind, len(buf), need)
	}

	crcOff := len(buf) - 2
	if crc := Checksum(buf, 1, len(buf)-3); buf[crcOff] != crc {
		return nil, checksumMismatch(kind, crcOff, buf[crcOff], crc)
	}

	if checkLength {
		if declared := binary.LittleEndian.Uint16(buf[offPayloadLength:offPayload]); int(declared) != n {
			return nil, structural(kind, offPayloadLength, "payload length %d (expected %d)", declared, n)
		}
	}

	if len(buf) != need {
		return nil, structural(kind, need-1, "frame is %d bytes (expected %d)", len(buf), need)
	}
	if buf[need-1] != Terminator {
		return nil, structural(kind, need-1, "terminator 0x%02x (expected 0x%02x)", buf[need-1], Terminator)
	}

	return buf[offPayload : offPayload+n], nil
}

func expectCommand(kind ResponseKind, frame *ValidatedFrame, want CommandID) error {
	if got := frame.Command(); got != want {
		return structural(kind, offCommand, "command %s (expected %s)", got, want)
	}
	return nil
}

// DeviceType decodes the model code pair and looks it up in the model table
func (d Decoder) DeviceType(buf []byte) (MowerModel, error) {
	p, err := d.payload(KindDeviceType, buf, payloadLenDeviceType, true)
	if err != nil {
		return MowerModel{}, err
	}
	code := [2]byte{p[0], p[1]}
	model, ok := LookupModel(code)
	if !ok {
		return MowerModel{}, unknownCode(KindDeviceType, offPayload, "model code %02x %02x", code[0], code[1])
	}
	return model, nil
}

// BatteryLevel decodes the battery percentage
func (d Decoder) BatteryLevel(buf []byte) (uint8, error) {
	p, err := d.payload(KindBatteryLevel, buf, payloadLenByte, true)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// IsCharging decodes the charging flag (0x00 or 0x01)
func (d Decoder) IsCharging(buf []byte) (bool, error) {
	p, err := d.payload(KindIsCharging, buf, payloadLenByte, true)
	if err != nil {
		return false, err
	}
	switch p[0] {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, unknownCode(KindIsCharging, offPayload, "charging flag 0x%02x", p[0])
	}
}

// StartTime decodes the next scheduled start. The mower has no time zone, so
// the timestamp is interpreted as UTC. A zero timestamp means nothing is
// scheduled and yields the zero time.Time.
func (d Decoder) StartTime(buf []byte) (time.Time, error) {
	p, err := d.payload(KindStartTime, buf, payloadLenUint32, true)
	if err != nil {
		return time.Time{}, err
	}
	ts := binary.LittleEndian.Uint32(p)
	if ts == 0 {
		return time.Time{}, nil
	}
	return time.Unix(int64(ts), 0).UTC(), nil
}

// MowerState decodes the state byte through the table for brand
func (d Decoder) MowerState(buf []byte, brand Brand) (MowerState, error) {
	p, err := d.payload(KindMowerState, buf, payloadLenByte, true)
	if err != nil {
		return "", err
	}
	return StateForCode(p[0], brand), nil
}

// MowerActivity decodes the activity byte
func (d Decoder) MowerActivity(buf []byte) (MowerActivity, error) {
	p, err := d.payload(KindMowerActivity, buf, payloadLenByte, true)
	if err != nil {
		return "", err
	}
	return ActivityForCode(p[0]), nil
}

// Keepalive checks that buf acknowledges a keepalive request
func (d Decoder) Keepalive(buf []byte) error {
	frame, err := d.validate(KindKeepalive, buf)
	if err != nil {
		return err
	}
	return expectCommand(KindKeepalive, frame, CommandKeepalive)
}

// Park checks the acknowledgement of a park command
func (d Decoder) Park(buf []byte) error {
	_, err := d.payload(KindPark, buf, 0, false)
	return err
}

// OperatorPin checks the acknowledgement of an operator PIN request. Whether
// the PIN was accepted is read with OperatorLoggedIn.
func (d Decoder) OperatorPin(buf []byte) error {
	_, err := d.payload(KindOperatorPin, buf, 0, false)
	return err
}

// SetMode checks the acknowledgement of a mode change
func (d Decoder) SetMode(buf []byte) error {
	_, err := d.payload(KindSetMode, buf, 0, false)
	return err
}

// StartTrigger checks the acknowledgement of a start trigger, which makes
// the controller act on the preceding park or override command
func (d Decoder) StartTrigger(buf []byte) error {
	_, err := d.payload(KindStartTrigger, buf, 0, false)
	return err
}

// StartupSequenceRequired reports whether the controller wants the startup
// sequence. The answer is read from byte 17 and no payload checksum is
// verified, matching observed firmware responses.
func (d Decoder) StartupSequenceRequired(buf []byte) (bool, error) {
	return d.flagAt17(KindStartupSequenceRequired, buf)
}

// OperatorLoggedIn reports whether the operator PIN has been accepted. Like
// StartupSequenceRequired it reads byte 17 without a payload checksum.
func (d Decoder) OperatorLoggedIn(buf []byte) (bool, error) {
	return d.flagAt17(KindOperatorLoggedIn, buf)
}

func (d Decoder) flagAt17(kind ResponseKind, buf []byte) (bool, error) {
	if _, err := d.validate(kind, buf); err != nil {
		return false, err
	}
	if len(buf) <= offPayloadLength {
		return false, tooShort(kind, len(buf), offPayloadLength+1)
	}
	return buf[offPayloadLength] == 0x01, nil
}

// Mode decodes the mode of operation. Undefined codes are UnknownCode errors.
func (d Decoder) Mode(buf []byte) (Mode, error) {
	p, err := d.payload(KindMode, buf, payloadLenByte, true)
	if err != nil {
		return "", err
	}
	mode, ok := ModeForCode(p[0])
	if !ok {
		return "", unknownCode(KindMode, offPayload, "mode code %d", p[0])
	}
	return mode, nil
}

// SerialNumber decodes the controller serial number
func (d Decoder) SerialNumber(buf []byte) (uint32, error) {
	p, err := d.payload(KindSerialNumber, buf, payloadLenUint32, true)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// RestrictionReason decodes why mowing is restricted. Undefined codes are
// UnknownCode errors.
func (d Decoder) RestrictionReason(buf []byte) (RestrictionReason, error) {
	p, err := d.payload(KindRestrictionReason, buf, payloadLenByte, true)
	if err != nil {
		return "", err
	}
	reason, ok := RestrictionReasonForCode(p[0])
	if !ok {
		return "", unknownCode(KindRestrictionReason, offPayload, "restriction reason code %d", p[0])
	}
	return reason, nil
}

// NumberOfTasks decodes how many schedule entries the mower holds
func (d Decoder) NumberOfTasks(buf []byte) (uint32, error) {
	p, err := d.payload(KindNumberOfTasks, buf, payloadLenUint32, true)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// OverrideMow checks the acknowledgement of an override-mow command
func (d Decoder) OverrideMow(buf []byte) error {
	frame, err := d.validate(KindOverrideMow, buf)
	if err != nil {
		return err
	}
	if err := expectCommand(KindOverrideMow, frame, CommandOverrideMow); err != nil {
		return err
	}
	_, err = d.payload(KindOverrideMow, buf, 0, false)
	return err
}

// Response is a decoded value of a known kind
type Response interface {
	Kind() ResponseKind
	String() string
}

// ModelResponse carries a decoded DeviceType
type ModelResponse struct {
	Model MowerModel
}

func (r *ModelResponse) Kind() ResponseKind { return KindDeviceType }

func (r *ModelResponse) String() string {
	return fmt.Sprintf("DeviceType{model=%q, manufacturer=%q, husqvarna=%v}", r.Model.Name, r.Model.Manufacturer, r.Model.IsHusqvarna)
}

// NumberResponse carries an integer value (battery level, serial number,
// number of tasks)
type NumberResponse struct {
	ResponseKind ResponseKind
	Value        uint32
}

func (r *NumberResponse) Kind() ResponseKind { return r.ResponseKind }

func (r *NumberResponse) String() string {
	return fmt.Sprintf("%s{value=%d}", r.ResponseKind, r.Value)
}

// FlagResponse carries a boolean value
type FlagResponse struct {
	ResponseKind ResponseKind
	Value        bool
}

func (r *FlagResponse) Kind() ResponseKind { return r.ResponseKind }

func (r *FlagResponse) String() string {
	return fmt.Sprintf("%s{value=%v}", r.ResponseKind, r.Value)
}

// TimeResponse carries the next start time
type TimeResponse struct {
	Time time.Time
}

func (r *TimeResponse) Kind() ResponseKind { return KindStartTime }

func (r *TimeResponse) String() string {
	if r.Time.IsZero() {
		return "start-time{none}"
	}
	return fmt.Sprintf("start-time{%s}", r.Time.Format(time.RFC3339))
}

// NameResponse carries an enumerated value (state, activity, mode,
// restriction reason)
type NameResponse struct {
	ResponseKind ResponseKind
	Name         string
}

func (r *NameResponse) Kind() ResponseKind { return r.ResponseKind }

func (r *NameResponse) String() string {
	return fmt.Sprintf("%s{%s}", r.ResponseKind, r.Name)
}

// AckResponse marks a successfully acknowledged command
type AckResponse struct {
	ResponseKind ResponseKind
}

func (r *AckResponse) Kind() ResponseKind { return r.ResponseKind }

func (r *AckResponse) String() string {
	return fmt.Sprintf("%s{ok}", r.ResponseKind)
}

// TaskResponse carries one schedule entry
type TaskResponse struct {
	Task TaskInformation
}

func (r *TaskResponse) Kind() ResponseKind { return KindTaskInfo }

func (r *TaskResponse) String() string {
	return fmt.Sprintf("task-info{%s}", r.Task)
}

type decodeFunc func(d Decoder, buf []byte) (Response, error)

// decoders is the response registry, one entry per kind
var decoders = map[ResponseKind]decodeFunc{
	KindDeviceType: func(d Decoder, buf []byte) (Response, error) {
		m, err := d.DeviceType(buf)
		if err != nil {
			return nil, err
		}
		return &ModelResponse{Model: m}, nil
	},
	KindBatteryLevel: func(d Decoder, buf []byte) (Response, error) {
		v, err := d.BatteryLevel(buf)
		if err != nil {
			return nil, err
		}
		return &NumberResponse{ResponseKind: KindBatteryLevel, Value: uint32(v)}, nil
	},
	KindIsCharging: func(d Decoder, buf []byte) (Response, error) {
		return flag(KindIsCharging)(d.IsCharging(buf))
	},
	KindStartTime: func(d Decoder, buf []byte) (Response, error) {
		t, err := d.StartTime(buf)
		if err != nil {
			return nil, err
		}
		return &TimeResponse{Time: t}, nil
	},
	KindMowerState: func(d Decoder, buf []byte) (Response, error) {
		s, err := d.MowerState(buf, d.Brand)
		return name(KindMowerState)(string(s), err)
	},
	KindMowerActivity: func(d Decoder, buf []byte) (Response, error) {
		a, err := d.MowerActivity(buf)
		return name(KindMowerActivity)(string(a), err)
	},
	KindKeepalive: func(d Decoder, buf []byte) (Response, error) {
		return ack(KindKeepalive)(d.Keepalive(buf))
	},
	KindPark: func(d Decoder, buf []byte) (Response, error) {
		return ack(KindPark)(d.Park(buf))
	},
	KindStartupSequenceRequired: func(d Decoder, buf []byte) (Response, error) {
		return flag(KindStartupSequenceRequired)(d.StartupSequenceRequired(buf))
	},
	KindOperatorLoggedIn: func(d Decoder, buf []byte) (Response, error) {
		return flag(KindOperatorLoggedIn)(d.OperatorLoggedIn(buf))
	},
	KindMode: func(d Decoder, buf []byte) (Response, error) {
		m, err := d.Mode(buf)
		return name(KindMode)(string(m), err)
	},
	KindSerialNumber: func(d Decoder, buf []byte) (Response, error) {
		return number(KindSerialNumber)(d.SerialNumber(buf))
	},
	KindRestrictionReason: func(d Decoder, buf []byte) (Response, error) {
		r, err := d.RestrictionReason(buf)
		return name(KindRestrictionReason)(string(r), err)
	},
	KindNumberOfTasks: func(d Decoder, buf []byte) (Response, error) {
		return number(KindNumberOfTasks)(d.NumberOfTasks(buf))
	},
	KindOverrideMow: func(d Decoder, buf []byte) (Response, error) {
		return ack(KindOverrideMow)(d.OverrideMow(buf))
	},
	KindTaskInfo: func(d Decoder, buf []byte) (Response, error) {
		t, err := d.TaskInfo(buf)
		if err != nil {
			return nil, err
		}
		return &TaskResponse{Task: t}, nil
	},
	KindOperatorPin: func(d Decoder, buf []byte) (Response, error) {
		return ack(KindOperatorPin)(d.OperatorPin(buf))
	},
	KindSetMode: func(d Decoder, buf []byte) (Response, error) {
		return ack(KindSetMode)(d.SetMode(buf))
	},
	KindStartTrigger: func(d Decoder, buf []byte) (Response, error) {
		return ack(KindStartTrigger)(d.StartTrigger(buf))
	},
}

func flag(kind ResponseKind) func(bool, error) (Response, error) {
	return func(v bool, err error) (Response, error) {
		if err != nil {
			return nil, err
		}
		return &FlagResponse{ResponseKind: kind, Value: v}, nil
	}
}

func number(kind ResponseKind) func(uint32, error) (Response, error) {
	return func(v uint32, err error) (Response, error) {
		if err != nil {
			return nil, err
		}
		return &NumberResponse{ResponseKind: kind, Value: v}, nil
	}
}

func name(kind ResponseKind) func(string, error) (Response, error) {
	return func(v string, err error) (Response, error) {
		if err != nil {
			return nil, err
		}
		return &NameResponse{ResponseKind: kind, Name: v}, nil
	}
}

func ack(kind ResponseKind) func(error) (Response, error) {
	return func(err error) (Response, error) {
		if err != nil {
			return nil, err
		}
		return &AckResponse{ResponseKind: kind}, nil
	}
}

// Decode runs the decoder registered for kind. MowerState responses use the
// decoder's Brand.
func (d Decoder) Decode(kind ResponseKind, buf []byte) (Response, error) {
	fn, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("no decoder for response kind %s", kind)
	}
	return fn(d, buf)
}
