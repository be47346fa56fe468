package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"
)

// fakePort replays canned reads. Methods not overridden here panic through
// the nil embedded interface.
type fakePort struct {
	serial.Port
	reads   [][]byte
	written bytes.Buffer
	closed  bool
	timeout time.Duration
}

func (f *fakePort) Read(p []byte) (int, error) {
	if len(f.reads) == 0 {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(p, f.reads[0])
	f.reads = f.reads[1:]
	return n, nil
}

func (f *fakePort) Write(p []byte) (int, error) { return f.written.Write(p) }

func (f *fakePort) SetReadTimeout(t time.Duration) error {
	f.timeout = t
	return nil
}

func (f *fakePort) ResetInputBuffer() error { return nil }

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func withFakePort(t *testing.T, port *fakePort) {
	t.Helper()
	orig := openPort
	openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		if mode.BaudRate != 9600 {
			t.Errorf("baud rate = %d, want 9600", mode.BaudRate)
		}
		return port, nil
	}
	t.Cleanup(func() { openPort = orig })
}

func TestSerial_RoundTrip(t *testing.T) {
	response := mustHex(t, capturedCharging)
	port := &fakePort{reads: [][]byte{{0x00}, response[:7], {}, response[7:]}}
	withFakePort(t, port)

	s := NewSerial("/dev/ttyUSB0", 9600)
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if port.timeout != pollInterval {
		t.Errorf("read timeout = %v, want %v", port.timeout, pollInterval)
	}

	request := []byte{0x02, 0xfd, 0x11}
	if err := s.Write(ctx, request); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.Equal(port.written.Bytes(), request) {
		t.Errorf("written = %x, want %x", port.written.Bytes(), request)
	}

	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, response) {
		t.Errorf("Read() = %x, want %x", got, response)
	}

	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
	if _, err := s.Read(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Read() after Disconnect error = %v, want ErrNotConnected", err)
	}
}

func TestSerial_ReadCancelled(t *testing.T) {
	withFakePort(t, &fakePort{})

	s := NewSerial("/dev/ttyUSB0", 9600)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer s.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Read() error = %v, want DeadlineExceeded", err)
	}
}

func TestSerial_OpenFails(t *testing.T) {
	orig := openPort
	openPort = func(string, *serial.Mode) (serial.Port, error) {
		return nil, errors.New("no such file or directory")
	}
	t.Cleanup(func() { openPort = orig })

	if err := NewSerial("/dev/missing", 9600).Connect(context.Background()); err == nil {
		t.Error("Connect() succeeded on a missing port")
	}
}
