package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// TaskInfo payload layout (offsets relative to the frame):
//
//	[19-22] start      Next start, seconds since epoch (LE, UTC)
//	[23-26] duration   Duration in seconds (LE)
//	[27-33] weekdays   One byte per day, Monday first, 0x01 = enabled
//	[34-37]            Unused
const (
	offTaskStart    = offPayload
	offTaskDuration = offPayload + 4
	offTaskWeekdays = offPayload + 8
	taskMinSize     = offTaskWeekdays + 7
)

// TaskInformation is one weekly recurring schedule entry
type TaskInformation struct {
	NextStartTime   time.Time
	DurationSeconds uint32
	OnMonday        bool
	OnTuesday       bool
	OnWednesday     bool
	OnThursday      bool
	OnFriday        bool
	OnSaturday      bool
	OnSunday        bool
}

// Duration returns the task duration as a time.Duration
func (t TaskInformation) Duration() time.Duration {
	return time.Duration(t.DurationSeconds) * time.Second
}

// Weekdays returns the enabled days, Monday first
func (t TaskInformation) Weekdays() []time.Weekday {
	flags := []struct {
		on  bool
		day time.Weekday
	}{
		{t.OnMonday, time.Monday},
		{t.OnTuesday, time.Tuesday},
		{t.OnWednesday, time.Wednesday},
		{t.OnThursday, time.Thursday},
		{t.OnFriday, time.Friday},
		{t.OnSaturday, time.Saturday},
		{t.OnSunday, time.Sunday},
	}
	var days []time.Weekday
	for _, f := range flags {
		if f.on {
			days = append(days, f.day)
		}
	}
	return days
}

// String returns "start=15:04:05 duration=3h30m0s days=Mon,Wed"
func (t TaskInformation) String() string {
	names := make([]string, 0, 7)
	for _, d := range t.Weekdays() {
		names = append(names, d.String()[:3])
	}
	return fmt.Sprintf("start=%s duration=%s days=%s",
		t.NextStartTime.Format("15:04:05"), t.Duration(), strings.Join(names, ","))
}

// TaskInfo decodes a schedule entry. The command id and declared length are
// checked; the trailing payload checksum is not, matching observed firmware.
func (d Decoder) TaskInfo(buf []byte) (TaskInformation, error) {
	frame, err := d.validate(KindTaskInfo, buf)
	if err != nil {
		return TaskInformation{}, err
	}
	if err := expectCommand(KindTaskInfo, frame, CommandTaskInfo); err != nil {
		return TaskInformation{}, err
	}
	if len(buf) < taskMinSize {
		return TaskInformation{}, tooShort(KindTaskInfo, len(buf), taskMinSize)
	}
	if declared := binary.LittleEndian.Uint16(buf[offPayloadLength:offPayload]); declared != payloadLenTaskInfo {
		return TaskInformation{}, structural(KindTaskInfo, offPayloadLength, "payload length %d (expected %d)", declared, payloadLenTaskInfo)
	}

	start := binary.LittleEndian.Uint32(buf[offTaskStart : offTaskStart+4])
	w := buf[offTaskWeekdays : offTaskWeekdays+7]

	return TaskInformation{
		NextStartTime:   time.Unix(int64(start), 0).UTC(),
		DurationSeconds: binary.LittleEndian.Uint32(buf[offTaskDuration : offTaskDuration+4]),
		OnMonday:        w[0] == 0x01,
		OnTuesday:       w[1] == 0x01,
		OnWednesday:     w[2] == 0x01,
		OnThursday:      w[3] == 0x01,
		OnFriday:        w[4] == 0x01,
		OnSaturday:      w[5] == 0x01,
		OnSunday:        w[6] == 0x01,
	}, nil
}
