package simulator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/enicky/automower-ble/internal/logging"
	"github.com/enicky/automower-ble/internal/protocol"
)

// ErrUnknownCommand is returned for requests the simulated mower does not
// answer. A real controller stays silent in that case, so the server drops
// the request.
var ErrUnknownCommand = errors.New("unknown command")

// Battery drain and charge per Step
const (
	drainPerStep  = 1
	chargePerStep = 2
	lowBattery    = 20
)

// Mower is the state of a simulated controller. All methods are safe for
// concurrent use.
type Mower struct {
	mu sync.Mutex

	modelCode   [2]byte
	brand       protocol.Brand
	battery     uint8
	charging    bool
	state       protocol.MowerState
	activity    protocol.MowerActivity
	mode        byte
	restriction byte
	serial      uint32
	nextStart   time.Time
	overrideEnd time.Time
	tasks       []protocol.TaskInformation
	loggedIn    bool
	startup     bool
	pin         uint16
	triggers    int

	// commands maps request command ids to the kind being answered
	commands map[protocol.CommandID]protocol.ResponseKind
}

// NewMower returns a parked, fully charged mower of the given model. It
// answers every known command id plus the extra ids in commands.
func NewMower(modelCode [2]byte, commands map[protocol.ResponseKind]protocol.CommandID) (*Mower, error) {
	model, ok := protocol.LookupModel(modelCode)
	if !ok {
		return nil, fmt.Errorf("unknown model code %02x %02x", modelCode[0], modelCode[1])
	}

	m := &Mower{
		modelCode: modelCode,
		brand:     model.Brand(),
		battery:   100,
		charging:  true,
		state:     protocol.StateRestricted,
		activity:  protocol.ActivityParked,
		serial:    0x12345678,
		loggedIn:  true,
		commands:  make(map[protocol.CommandID]protocol.ResponseKind),
	}
	for _, kind := range protocol.ResponseKinds() {
		if cmd, ok := protocol.KnownCommand(kind); ok {
			m.commands[cmd] = kind
		}
	}
	for kind, cmd := range commands {
		m.commands[cmd] = kind
	}
	return m, nil
}

// SetTasks replaces the schedule. The next start time follows the first task.
func (m *Mower) SetTasks(tasks []protocol.TaskInformation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append([]protocol.TaskInformation(nil), tasks...)
	m.nextStart = time.Time{}
	if len(tasks) > 0 {
		m.nextStart = tasks[0].NextStartTime
	}
}

// SetPin requires the operator PIN before mode changes are accepted. The
// operator starts logged out.
func (m *Mower) SetPin(pin uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pin = pin
	m.loggedIn = false
}

// Mode returns the current mode of operation and how many start triggers
// have been received
func (m *Mower) Mode() (protocol.Mode, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mode, _ := protocol.ModeForCode(m.mode)
	return mode, m.triggers
}

// SetBattery sets the battery level, capped at 100
func (m *Mower) SetBattery(level uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.battery = min(level, 100)
}

// Status returns the current state and activity
func (m *Mower) Status() (protocol.MowerState, protocol.MowerActivity, uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.activity, m.battery
}

// Handle answers one request frame. The response is sent on the request's
// channel with the request's command id.
func (m *Mower) Handle(req []byte) ([]byte, error) {
	if len(req) < protocol.MinFrameSize {
		return nil, fmt.Errorf("request too short: %d bytes", len(req))
	}
	channel := protocol.ChannelID(binary.LittleEndian.Uint32(req[4:8]))
	frame, err := protocol.Validate(req, channel)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := frame.Command()
	kind, ok := m.commands[cmd]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownCommand, cmd)
	}

	declared := int(binary.LittleEndian.Uint16(req[17:19]))
	var payload []byte
	if len(req) >= protocol.MinFrameSize+declared {
		payload = req[19 : 19+declared]
	}

	resp, err := m.respond(kind, payload)
	if err != nil {
		return nil, err
	}
	logging.Debug("Simulated response",
		zap.Stringer("kind", kind),
		zap.Stringer("channel", channel),
		zap.Int("payload_len", len(resp)),
	)
	return protocol.BuildFrame(channel, cmd, resp)
}

// respond returns the response payload for kind, applying any state change
// the request causes. Called with mu held.
func (m *Mower) respond(kind protocol.ResponseKind, req []byte) ([]byte, error) {
	switch kind {
	case protocol.KindDeviceType:
		return m.modelCode[:], nil
	case protocol.KindBatteryLevel:
		return []byte{m.battery}, nil
	case protocol.KindIsCharging:
		return []byte{boolByte(m.charging)}, nil
	case protocol.KindStartTime:
		return uint32Bytes(uint32(unixOrZero(m.nextStart))), nil
	case protocol.KindMowerState:
		return []byte{stateCode(m.state, m.brand)}, nil
	case protocol.KindMowerActivity:
		return []byte{activityCode(m.activity)}, nil
	case protocol.KindMode:
		return []byte{m.mode}, nil
	case protocol.KindRestrictionReason:
		return []byte{m.restriction}, nil
	case protocol.KindSerialNumber:
		return uint32Bytes(m.serial), nil
	case protocol.KindNumberOfTasks:
		return uint32Bytes(uint32(len(m.tasks))), nil
	case protocol.KindStartupSequenceRequired:
		return flagPayload(m.startup), nil
	case protocol.KindOperatorLoggedIn:
		return flagPayload(m.loggedIn), nil
	case protocol.KindTaskInfo:
		if len(req) < 1 || int(req[0]) >= len(m.tasks) {
			return nil, fmt.Errorf("no task at index %v", req)
		}
		return taskPayload(m.tasks[req[0]]), nil
	case protocol.KindKeepalive:
		return nil, nil
	case protocol.KindOperatorPin:
		if len(req) < 2 {
			return nil, fmt.Errorf("operator PIN without digits")
		}
		m.loggedIn = binary.LittleEndian.Uint16(req) == m.pin
		return nil, nil
	case protocol.KindSetMode:
		if !m.loggedIn {
			return nil, fmt.Errorf("mode change while logged out")
		}
		if len(req) < 1 {
			return nil, fmt.Errorf("mode change without mode")
		}
		if _, ok := protocol.ModeForCode(req[0]); !ok {
			return nil, fmt.Errorf("undefined mode code %d", req[0])
		}
		m.mode = req[0]
		return nil, nil
	case protocol.KindStartTrigger:
		m.triggers++
		return nil, nil
	case protocol.KindPark:
		m.overrideEnd = time.Time{}
		m.state = protocol.StateInOperation
		m.activity = protocol.ActivityGoingHome
		return nil, nil
	case protocol.KindOverrideMow:
		if len(req) < 4 {
			return nil, fmt.Errorf("override without duration")
		}
		d := time.Duration(binary.LittleEndian.Uint32(req)) * time.Second
		m.overrideEnd = time.Now().Add(d)
		m.charging = false
		m.restriction = 0
		m.state = protocol.StateInOperation
		m.activity = protocol.ActivityGoingOut
		return nil, nil
	default:
		return nil, fmt.Errorf("%w for %s", ErrUnknownCommand, kind)
	}
}

// Step advances the simulation by one tick: mowing drains the battery,
// docking charges it, and the mower heads home when the battery runs low or
// an override ends.
func (m *Mower) Step(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.activity {
	case protocol.ActivityGoingOut:
		m.activity = protocol.ActivityMowing
	case protocol.ActivityMowing:
		m.battery -= min(m.battery, drainPerStep)
		if m.battery <= lowBattery || (!m.overrideEnd.IsZero() && now.After(m.overrideEnd)) {
			m.overrideEnd = time.Time{}
			m.activity = protocol.ActivityGoingHome
		}
	case protocol.ActivityGoingHome:
		m.activity = protocol.ActivityCharging
		m.charging = true
	case protocol.ActivityCharging, protocol.ActivityParked:
		m.charging = true
		m.battery = min(m.battery+chargePerStep, 100)
		if m.battery == 100 {
			m.activity = protocol.ActivityParked
			m.state = protocol.StateRestricted
		}
	}
}

func boolByte(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}

// flagPayload encodes a flag in the payload length byte the way the
// controller does: one payload byte for true, none for false
func flagPayload(b bool) []byte {
	if b {
		return []byte{0x01}
	}
	return nil
}

func uint32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func taskPayload(t protocol.TaskInformation) []byte {
	p := make([]byte, 0x13)
	binary.LittleEndian.PutUint32(p[0:4], uint32(unixOrZero(t.NextStartTime)))
	binary.LittleEndian.PutUint32(p[4:8], t.DurationSeconds)
	days := []bool{t.OnMonday, t.OnTuesday, t.OnWednesday, t.OnThursday, t.OnFriday, t.OnSaturday, t.OnSunday}
	for i, on := range days {
		p[8+i] = boolByte(on)
	}
	return p
}

// stateCode is the inverse of protocol.StateForCode
func stateCode(state protocol.MowerState, brand protocol.Brand) byte {
	for code := 0; code < 256; code++ {
		if protocol.StateForCode(byte(code), brand) == state {
			return byte(code)
		}
	}
	return 0
}

// activityCode is the inverse of protocol.ActivityForCode
func activityCode(activity protocol.MowerActivity) byte {
	for code := 0; code < 256; code++ {
		if protocol.ActivityForCode(byte(code)) == activity {
			return byte(code)
		}
	}
	return 0
}
