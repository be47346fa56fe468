package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/enicky/automower-ble/internal/logging"
	"github.com/enicky/automower-ble/internal/version"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	handshakeTimeout = 10 * time.Second
	// AddressParam is the query parameter naming the mower the bridge should
	// connect to
	AddressParam = "address"
)

// WebSocket talks to a mower through a BLE bridge. The bridge relays each
// notification from the mower as one binary message and writes each binary
// message it receives to the mower's write characteristic.
type WebSocket struct {
	url     string
	address string
	dialer  websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	frames *FrameReader
	msgs   *messageReader
}

// NewWebSocket creates an unconnected transport for the mower at address
func NewWebSocket(bridgeURL, address string) *WebSocket {
	return &WebSocket{
		url:     bridgeURL,
		address: address,
		dialer:  websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// Connect dials the bridge
func (w *WebSocket) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		return nil
	}

	u, err := url.Parse(w.url)
	if err != nil {
		return fmt.Errorf("invalid bridge URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}
	q := u.Query()
	q.Set(AddressParam, w.address)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, resp, err := w.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("bridge connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("bridge connection failed: %w", err)
	}

	w.conn = conn
	w.msgs = &messageReader{conn: conn}
	w.frames = NewFrameReader(w.msgs)
	logging.LogConnection(w.String(), "connected")
	return nil
}

// Write sends frame as one binary message
func (w *WebSocket) Write(ctx context.Context, frame []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	deadline, _ := ctx.Deadline()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Read returns the next complete frame. Cancelling ctx unblocks the read,
// after which the connection is unusable and must be reconnected.
func (w *WebSocket) Read(ctx context.Context) ([]byte, error) {
	w.mu.Lock()
	conn, frames := w.conn, w.frames
	w.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("failed to clear read deadline: %w", err)
	}
	// The deadline is only set once ctx is done, so ctx.Err is always
	// non-nil when it fires
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	frame, err := frames.ReadFrame()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return frame, nil
}

// Disconnect closes the bridge connection
func (w *WebSocket) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	w.frames = nil
	w.msgs = nil
	logging.LogConnection(w.String(), "disconnected")
	return err
}

// String returns "bridge-url (address)"
func (w *WebSocket) String() string {
	return fmt.Sprintf("%s (%s)", w.url, w.address)
}

// messageReader exposes the binary messages of a websocket as a byte stream
type messageReader struct {
	conn   *websocket.Conn
	buf    []byte
	off    int
	closed bool
}

func (m *messageReader) Read(p []byte) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}

	if m.off < len(m.buf) {
		n := copy(p, m.buf[m.off:])
		m.off += n
		return n, nil
	}

	for {
		messageType, data, err := m.conn.ReadMessage()
		if err != nil {
			m.closed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, ErrClosed
			}
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return 0, fmt.Errorf("read timed out: %w", err)
			}
			return 0, err
		}

		if messageType != websocket.BinaryMessage {
			logging.Debug("Skipping non-binary message", zap.Int("message_type", messageType))
			continue
		}

		m.buf = data
		n := copy(p, m.buf)
		m.off = n
		return n, nil
	}
}
