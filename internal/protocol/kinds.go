package protocol

import "fmt"

// ResponseKind identifies which decoder a response buffer should go through.
// The header does not say which kind a frame is; callers select the kind
// from the request they are waiting on.
type ResponseKind int

const (
	KindNone ResponseKind = iota
	KindDeviceType
	KindBatteryLevel
	KindIsCharging
	KindStartTime
	KindMowerState
	KindMowerActivity
	KindKeepalive
	KindPark
	KindStartupSequenceRequired
	KindOperatorLoggedIn
	KindMode
	KindSerialNumber
	KindRestrictionReason
	KindNumberOfTasks
	KindOverrideMow
	KindTaskInfo
	KindOperatorPin
	KindSetMode
	KindStartTrigger
)

var kindNames = map[ResponseKind]string{
	KindDeviceType:              "device-type",
	KindBatteryLevel:            "battery-level",
	KindIsCharging:              "is-charging",
	KindStartTime:               "start-time",
	KindMowerState:              "mower-state",
	KindMowerActivity:           "mower-activity",
	KindKeepalive:               "keepalive",
	KindPark:                    "park",
	KindStartupSequenceRequired: "startup-sequence-required",
	KindOperatorLoggedIn:        "operator-logged-in",
	KindMode:                    "mode",
	KindSerialNumber:            "serial-number",
	KindRestrictionReason:       "restriction-reason",
	KindNumberOfTasks:           "number-of-tasks",
	KindOverrideMow:             "override-mow",
	KindTaskInfo:                "task-info",
	KindOperatorPin:             "operator-pin",
	KindSetMode:                 "set-mode",
	KindStartTrigger:            "start-trigger",
}

// String returns the kebab-case kind name used on the command line and in
// the config file
func (k ResponseKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	if k == KindNone {
		return "none"
	}
	return fmt.Sprintf("ResponseKind(%d)", int(k))
}

// ParseResponseKind converts a kind name back to a ResponseKind
func ParseResponseKind(s string) (ResponseKind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown response kind %q", s)
}

// ResponseKinds returns every decodable kind in declaration order
func ResponseKinds() []ResponseKind {
	out := make([]ResponseKind, 0, len(kindNames))
	for k := KindDeviceType; k <= KindStartTrigger; k++ {
		out = append(out, k)
	}
	return out
}
