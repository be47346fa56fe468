package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame envelope constants
const (
	Preamble      = 0x02
	FrameType     = 0xFD
	Terminator    = 0x03
	CategoryReply = 0x01 // The only response category we decode
	AddressHigh   = 0x01
	AddressLow    = 0xAF

	HeaderSize   = 17 // Preamble through the second reserved byte
	MinFrameSize = 21 // Header + 2-byte payload length + checksum + terminator

	// lengthBias is the difference between the total frame size and the
	// length byte at offset 2
	lengthBias = 4
)

// Byte offsets within a frame
const (
	offPreamble       = 0
	offType           = 1
	offLength         = 2
	offReserved0      = 3
	offChannel        = 4
	offCategory       = 8
	offHeaderChecksum = 9
	offAddressHigh    = 10
	offAddressLow     = 11
	offCommand        = 12
	offReserved1      = 15
	offReserved2      = 16
	offPayloadLength  = 17
	offPayload        = 19
)

// ChannelID is the 32-bit session identifier correlating a request with its
// response. It is written little-endian at offsets 4..7.
type ChannelID uint32

// Bytes returns the little-endian wire encoding of the channel id
func (c ChannelID) Bytes() [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(c))
	return b
}

// String returns the channel id as hex
func (c ChannelID) String() string {
	return fmt.Sprintf("0x%08x", uint32(c))
}

// CommandID is the 3-byte command identifier at offsets 12..14
type CommandID [3]byte

// String returns the command id as lowercase hex
func (c CommandID) String() string {
	return fmt.Sprintf("%02x%02x%02x", c[0], c[1], c[2])
}

// ValidatedFrame is a buffer whose envelope passed Validate. It wraps the
// original bytes without copying.
type ValidatedFrame struct {
	raw []byte
}

// Bytes returns the underlying buffer
func (f *ValidatedFrame) Bytes() []byte { return f.raw }

// Len returns the buffer length
func (f *ValidatedFrame) Len() int { return len(f.raw) }

// ChannelID returns the channel id carried in the header
func (f *ValidatedFrame) ChannelID() ChannelID {
	return ChannelID(binary.LittleEndian.Uint32(f.raw[offChannel : offChannel+4]))
}

// Command returns the command id at offsets 12..14
func (f *ValidatedFrame) Command() CommandID {
	return CommandID{f.raw[offCommand], f.raw[offCommand+1], f.raw[offCommand+2]}
}

// String returns a debug representation of the frame
func (f *ValidatedFrame) String() string {
	return fmt.Sprintf("Frame{channel=%s, command=%s, len=%d}", f.ChannelID(), f.Command(), len(f.raw))
}

// Validate checks the response envelope and returns the buffer tagged as
// validated. Checks run in wire order and stop at the first failure:
//
//	[0]     0x02        Preamble
//	[1]     0xFD        Frame type
//	[3]     0x00        Reserved
//	[4-7]   channel     Channel id (little-endian), must equal id
//	[8]     0x01        Category (anything else is Unsupported)
//	[9]     crc         Checksum over bytes 1..8
//	[10-11] 0x01 0xAF   Fixed addressing bytes
//	[15-16] 0x00 0x00   Reserved
//
// The buffer is never modified.
func Validate(buf []byte, id ChannelID) (*ValidatedFrame, error) {
	if len(buf) < HeaderSize {
		return nil, tooShort(KindNone, len(buf), HeaderSize)
	}
	if buf[offPreamble] != Preamble {
		return nil, structural(KindNone, offPreamble, "invalid preamble 0x%02x (expected 0x%02x)", buf[offPreamble], Preamble)
	}
	if buf[offType] != FrameType {
		return nil, structural(KindNone, offType, "invalid frame type 0x%02x (expected 0x%02x)", buf[offType], FrameType)
	}
	if buf[offReserved0] != 0x00 {
		return nil, structural(KindNone, offReserved0, "reserved byte is 0x%02x", buf[offReserved0])
	}

	want := id.Bytes()
	for i := 0; i < 4; i++ {
		if buf[offChannel+i] != want[i] {
			got := ChannelID(binary.LittleEndian.Uint32(buf[offChannel : offChannel+4]))
			return nil, structural(KindNone, offChannel+i, "channel id %s does not match session %s", got, id)
		}
	}

	if buf[offCategory] != CategoryReply {
		// Documented by the firmware but not implemented here
		return nil, &DecodeError{
			Type:    ErrTypeUnsupported,
			Kind:    KindNone,
			Offset:  offCategory,
			Message: fmt.Sprintf("category 0x%02x", buf[offCategory]),
		}
	}

	if crc := Checksum(buf, 1, 8); buf[offHeaderChecksum] != crc {
		return nil, checksumMismatch(KindNone, offHeaderChecksum, buf[offHeaderChecksum], crc)
	}

	if buf[offAddressHigh] != AddressHigh {
		return nil, structural(KindNone, offAddressHigh, "addressing byte 0x%02x (expected 0x%02x)", buf[offAddressHigh], AddressHigh)
	}
	if buf[offAddressLow] != AddressLow {
		return nil, structural(KindNone, offAddressLow, "addressing byte 0x%02x (expected 0x%02x)", buf[offAddressLow], AddressLow)
	}
	for _, off := range []int{offReserved1, offReserved2} {
		if buf[off] != 0x00 {
			return nil, structural(KindNone, off, "reserved byte is 0x%02x", buf[off])
		}
	}

	return &ValidatedFrame{raw: buf}, nil
}
