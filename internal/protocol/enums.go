package protocol

// MowerState is the controller's operational state, normalised across brands
type MowerState string

const (
	StatePaused           MowerState = "paused"
	StateStopped          MowerState = "stopped"
	StateError            MowerState = "error"
	StateFatalError       MowerState = "fatalError"
	StateOff              MowerState = "off"
	StateCheckSafety      MowerState = "checkSafety"
	StatePendingStart     MowerState = "pendingStart"
	StateWaitForSafetyPin MowerState = "waitForSafetyPin"
	StateRestricted       MowerState = "restricted"
	StateInOperation      MowerState = "inOperation"
	StateUnknown          MowerState = "unknown"
	StateConnecting       MowerState = "connecting"
	StatePending          MowerState = "pending"
	StateDisconnected     MowerState = "disconnected"
)

// husqvarnaStates is indexed by state code. Code 0 and 11 are unassigned.
var husqvarnaStates = [...]MowerState{
	0:  StateUnknown,
	1:  StatePaused,
	2:  StateStopped,
	3:  StateError,
	4:  StateFatalError,
	5:  StateOff,
	6:  StateCheckSafety,
	7:  StatePendingStart,
	8:  StateWaitForSafetyPin,
	9:  StateRestricted,
	10: StateInOperation,
	11: StateUnknown,
	12: StateConnecting,
	13: StatePending,
	14: StateDisconnected,
}

var gardenaStates = [...]MowerState{
	0: StateOff,
	1: StateWaitForSafetyPin,
	2: StateStopped,
	3: StateFatalError,
	4: StatePendingStart,
	5: StatePaused,
	6: StateInOperation,
	7: StateRestricted,
	8: StateError,
}

// StateForCode maps a raw state byte through the brand's table. Codes outside
// the table map to StateUnknown.
func StateForCode(code byte, brand Brand) MowerState {
	var table []MowerState
	switch brand {
	case BrandHusqvarna:
		table = husqvarnaStates[:]
	case BrandGardena:
		table = gardenaStates[:]
	default:
		return StateUnknown
	}
	if int(code) >= len(table) {
		return StateUnknown
	}
	return table[code]
}

// MowerActivity is what the mower is currently doing
type MowerActivity string

const (
	ActivityNone            MowerActivity = "none"
	ActivityCharging        MowerActivity = "charging"
	ActivityGoingOut        MowerActivity = "goingOut"
	ActivityMowing          MowerActivity = "mowing"
	ActivityGoingHome       MowerActivity = "goingHome"
	ActivityParked          MowerActivity = "parked"
	ActivityStoppedInGarden MowerActivity = "stoppedInGarden"
	ActivityUnknown         MowerActivity = "unknown"
)

var activities = [...]MowerActivity{
	ActivityNone,
	ActivityCharging,
	ActivityGoingOut,
	ActivityMowing,
	ActivityGoingHome,
	ActivityParked,
	ActivityStoppedInGarden,
}

// ActivityForCode maps a raw activity byte; unmapped codes give ActivityUnknown
func ActivityForCode(code byte) MowerActivity {
	if int(code) >= len(activities) {
		return ActivityUnknown
	}
	return activities[code]
}

// Mode is the mower's mode of operation
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
	ModeHome   Mode = "home"
	ModeDemo   Mode = "demo"
)

var modes = [...]Mode{ModeAuto, ModeManual, ModeHome, ModeDemo}

// ModeForCode maps a raw mode byte. ok is false for undefined codes.
func ModeForCode(code byte) (Mode, bool) {
	if int(code) >= len(modes) {
		return "", false
	}
	return modes[code], true
}

// ModeCode is the inverse of ModeForCode
func ModeCode(m Mode) (byte, bool) {
	for code, mode := range modes {
		if mode == m {
			return byte(code), true
		}
	}
	return 0, false
}

// RestrictionReason explains why the mower is not mowing
type RestrictionReason string

const (
	RestrictionNone                RestrictionReason = "none"
	RestrictionWeekSchedule        RestrictionReason = "week_schedule"
	RestrictionParkOverride        RestrictionReason = "park_override"
	RestrictionSensor              RestrictionReason = "sensor"
	RestrictionDailyLimit          RestrictionReason = "daily_limit"
	RestrictionFOTA                RestrictionReason = "fota"
	RestrictionFrostSensor         RestrictionReason = "frost_sensor"
	RestrictionAllMissionsComplete RestrictionReason = "all_missions_complete"
)

var restrictionReasons = [...]RestrictionReason{
	RestrictionNone,
	RestrictionWeekSchedule,
	RestrictionParkOverride,
	RestrictionSensor,
	RestrictionDailyLimit,
	RestrictionFOTA,
	RestrictionFrostSensor,
	RestrictionAllMissionsComplete,
}

// RestrictionReasonForCode maps a raw reason byte. ok is false for undefined codes.
func RestrictionReasonForCode(code byte) (RestrictionReason, bool) {
	if int(code) >= len(restrictionReasons) {
		return "", false
	}
	return restrictionReasons[code], true
}
