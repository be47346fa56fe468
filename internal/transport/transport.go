package transport

import (
	"context"
	"errors"
	"fmt"
)

// Transport kinds
const (
	KindWebSocket = "websocket"
	KindSerial    = "serial"
)

var (
	// ErrNotConnected is returned by Read and Write before Connect succeeds
	ErrNotConnected = errors.New("transport not connected")
	// ErrClosed is returned once the underlying link has failed or been closed
	ErrClosed = errors.New("transport closed")
)

// Transport carries request frames to a mower and complete response frames
// back. Implementations reassemble frames split across notifications.
type Transport interface {
	// Connect opens the link to the mower
	Connect(ctx context.Context) error
	// Write sends one complete request frame
	Write(ctx context.Context, frame []byte) error
	// Read blocks until one complete response frame has arrived
	Read(ctx context.Context) ([]byte, error)
	// Disconnect closes the link. It is safe to call more than once.
	Disconnect() error
	// String describes the endpoint for logs
	String() string
}

// Options selects and configures a transport
type Options struct {
	Kind       string // KindWebSocket or KindSerial
	BridgeURL  string // ws:// or wss:// URL of the BLE bridge
	Address    string // BLE address of the mower, passed to the bridge
	SerialPort string // Serial device such as /dev/ttyUSB0
	BaudRate   int
}

// New creates an unconnected transport from opts
func New(opts Options) (Transport, error) {
	switch opts.Kind {
	case KindWebSocket, "":
		if opts.BridgeURL == "" {
			return nil, fmt.Errorf("websocket transport needs a bridge URL")
		}
		if opts.Address == "" {
			return nil, fmt.Errorf("websocket transport needs a mower address")
		}
		return NewWebSocket(opts.BridgeURL, opts.Address), nil
	case KindSerial:
		if opts.SerialPort == "" {
			return nil, fmt.Errorf("serial transport needs a port")
		}
		return NewSerial(opts.SerialPort, opts.BaudRate), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (expected %s or %s)", opts.Kind, KindWebSocket, KindSerial)
	}
}
