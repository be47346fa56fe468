// Package transport carries protocol frames between the host and a mower.
//
// Two transports are provided:
//
//   - WebSocket: a BLE bridge reachable over a websocket. The mower address is
//     passed as the "address" query parameter, every binary message the bridge
//     sends is appended to a FrameReader, and every frame written is sent as one
//     binary message.
//   - Serial: a transparent UART bridge (for example an ESP32 running a BLE
//     client). Bytes are read with a short timeout so that a cancelled context
//     is noticed promptly.
//
// BLE notifications are limited by the link MTU, so a response may arrive in
// several pieces. FrameReader reassembles them using the preamble and the
// header length byte; it does not check checksums, which is left to the
// protocol package.
//
// Transports are not safe for concurrent use. The mower session serialises
// access to them.
package transport
