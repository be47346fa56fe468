// Package protocol implements the binary protocol spoken by Husqvarna and
// Gardena robotic mower controllers over their BLE serial characteristic.
//
// This package handles validation, decoding and construction of frames. It
// does not talk to a radio: transports hand it complete response buffers and
// send the request buffers it builds.
//
// # Frame Format
//
// Requests and responses share one envelope:
//   - Preamble: 0x02
//   - Frame type: 0xFD
//   - Length byte: total size - 4
//   - Channel id: 4 bytes (little-endian), chosen per session
//   - Category: 0x01 for the responses decoded here
//   - Header checksum: CRC-8 over bytes 1..8
//   - Command id: 3 bytes at offsets 12..14
//   - Payload length: 2 bytes (little-endian) at offsets 17..18
//   - Payload, payload checksum (CRC-8 over bytes 1..len-3), terminator 0x03
//
// The checksum is the Dallas/Maxim CRC-8 (reflected polynomial 0x8C, zero
// initial value).
//
// # Decoding
//
// A response does not identify its own kind; the caller knows which request
// it sent and picks the decoder for it:
//
//	dec := protocol.NewDecoder(channel, protocol.BrandHusqvarna)
//	model, err := dec.DeviceType(buf)
//	if err != nil {
//	    var de *protocol.DecodeError
//	    if errors.As(err, &de) {
//	        log.Printf("%s at offset %d", de.Type, de.Offset)
//	    }
//	}
//
// Decode selects a decoder by ResponseKind and returns a Response.
//
// # Construction
//
//	cmd, _ := protocol.KnownCommand(protocol.KindDeviceType)
//	req, err := protocol.BuildRequest(channel, cmd, nil)
//
// # Error Handling
//
// Every decode failure is a *DecodeError carrying one of:
//   - StructuralMismatch: a fixed byte, command id or declared length is wrong
//   - ChecksumMismatch: the header or payload CRC does not match
//   - UnknownCode: a model, mode or restriction code is not in its table
//   - TooShort: the buffer cannot hold the offsets the decoder reads
//   - Unsupported: the header category is not 0x01
//
// DecodeError unwraps to a sentinel (ErrChecksumMismatch and so on) for use
// with errors.Is.
//
// # Thread Safety
//
// Decoders are plain values and every function is stateless, so all of them
// are safe for concurrent use.
package protocol
