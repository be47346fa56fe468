package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/enicky/automower-ble/internal/logging"
	"go.bug.st/serial"
)

// pollInterval bounds how long a serial read blocks before ctx is checked
const pollInterval = 100 * time.Millisecond

// openPort is replaced in tests
var openPort = serial.Open

// Serial talks to a mower through a transparent BLE-to-UART bridge. Frames
// are written as-is and the response stream is reassembled with a
// FrameReader.
type Serial struct {
	portName string
	baudRate int

	mu     sync.Mutex
	port   serial.Port
	reader *portReader
	frames *FrameReader
}

// NewSerial creates an unconnected transport on portName
func NewSerial(portName string, baudRate int) *Serial {
	if baudRate <= 0 {
		baudRate = 115200
	}
	return &Serial{portName: portName, baudRate: baudRate}
}

// Connect opens the serial port. ctx is not used; opening a port does not block.
func (s *Serial) Connect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := openPort(s.portName, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.portName, err)
	}
	if err := port.SetReadTimeout(pollInterval); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", s.portName, err)
	}
	// Drop anything left over from a previous session
	_ = port.ResetInputBuffer()

	s.port = port
	s.reader = &portReader{port: port}
	s.frames = NewFrameReader(s.reader)
	logging.LogConnection(s.String(), "connected")
	return nil
}

// Write sends frame to the port
func (s *Serial) Write(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return ErrNotConnected
	}
	for written := 0; written < len(frame); {
		n, err := s.port.Write(frame[written:])
		if err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
		written += n
	}
	return nil
}

// Read returns the next complete frame, or ctx's error once it is done
func (s *Serial) Read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil, ErrNotConnected
	}
	s.reader.ctx = ctx
	defer func() { s.reader.ctx = nil }()

	return s.frames.ReadFrame()
}

// Disconnect closes the port
func (s *Serial) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.reader = nil
	s.frames = nil
	logging.LogConnection(s.String(), "disconnected")
	return err
}

// String returns "port@baud"
func (s *Serial) String() string {
	return fmt.Sprintf("%s@%d", s.portName, s.baudRate)
}

// portReader turns the port's read timeouts into ctx checks
type portReader struct {
	port serial.Port
	ctx  context.Context
}

func (p *portReader) Read(b []byte) (int, error) {
	for {
		if p.ctx != nil {
			if err := p.ctx.Err(); err != nil {
				return 0, err
			}
		}
		n, err := p.port.Read(b)
		if err != nil {
			return n, err
		}
		if n > 0 {
			return n, nil
		}
		// n == 0 and no error: the read timed out
	}
}

// ListPorts returns the serial ports present on this machine
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
