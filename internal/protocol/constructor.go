package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// MaxPayloadSize keeps the total frame size within the one-byte length field
// at offset 2 (total size - 4 <= 255)
const MaxPayloadSize = 255 + lengthBias - MinFrameSize

// BuildFrame constructs a complete frame. Requests and responses share the
// same envelope:
//
//	[0]     0x02           Preamble
//	[1]     0xFD           Frame type
//	[2]     len-4          Length byte
//	[3]     0x00           Reserved
//	[4-7]   channel        Channel id (little-endian)
//	[8]     0x01           Category
//	[9]     crc(1..8)      Header checksum
//	[10-11] 0x01 0xAF      Addressing
//	[12-14] command        Command id
//	[15-16] 0x00 0x00      Reserved
//	[17-18] n              Payload length (little-endian)
//	[19..]  payload
//	[len-2] crc(1..len-3)  Payload checksum
//	[len-1] 0x03           Terminator
func BuildFrame(channel ChannelID, cmd CommandID, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}

	size := MinFrameSize + len(payload)
	frame := make([]byte, size)

	frame[offPreamble] = Preamble
	frame[offType] = FrameType
	frame[offLength] = byte(size - lengthBias)
	binary.LittleEndian.PutUint32(frame[offChannel:offChannel+4], uint32(channel))
	frame[offCategory] = CategoryReply
	frame[offHeaderChecksum] = Checksum(frame, 1, 8)
	frame[offAddressHigh] = AddressHigh
	frame[offAddressLow] = AddressLow
	copy(frame[offCommand:offCommand+3], cmd[:])
	binary.LittleEndian.PutUint16(frame[offPayloadLength:offPayload], uint16(len(payload)))
	copy(frame[offPayload:], payload)
	frame[size-2] = Checksum(frame, 1, size-3)
	frame[size-1] = Terminator

	return frame, nil
}

// BuildRequest constructs a request frame for cmd on the given channel
func BuildRequest(channel ChannelID, cmd CommandID, payload []byte) ([]byte, error) {
	return BuildFrame(channel, cmd, payload)
}

// GenerateChannelID returns a random non-zero channel id for a new session
func GenerateChannelID() (ChannelID, error) {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("failed to generate channel id: %w", err)
		}
		if id := ChannelID(binary.LittleEndian.Uint32(b[:])); id != 0 {
			return id, nil
		}
	}
}

// ParseCommandID parses a 6-digit hex command id such as "5a1209"
func ParseCommandID(s string) (CommandID, error) {
	var cmd CommandID
	b, err := hex.DecodeString(s)
	if err != nil {
		return cmd, fmt.Errorf("invalid command id %q: %w", s, err)
	}
	if len(b) != len(cmd) {
		return cmd, fmt.Errorf("invalid command id %q: need %d bytes, got %d", s, len(cmd), len(b))
	}
	copy(cmd[:], b)
	return cmd, nil
}

// knownCommands holds the request command ids captured from real controllers.
// Kinds missing here have to be supplied by the caller.
var knownCommands = map[ResponseKind]CommandID{
	KindDeviceType:    {0x5a, 0x12, 0x09},
	KindIsCharging:    {0x0a, 0x10, 0x15},
	KindMowerState:    {0xea, 0x11, 0x01},
	KindMowerActivity: {0xea, 0x11, 0x02},
	KindNumberOfTasks: {0x52, 0x12, 0x04},
	KindTaskInfo:      CommandTaskInfo,
	KindKeepalive:     CommandKeepalive,
	KindOverrideMow:   CommandOverrideMow,
}

// KnownCommand returns the captured request command id for kind
func KnownCommand(kind ResponseKind) (CommandID, bool) {
	cmd, ok := knownCommands[kind]
	return cmd, ok
}
