package transport

import (
	"fmt"
	"io"

	"github.com/enicky/automower-ble/internal/logging"
	"github.com/enicky/automower-ble/internal/protocol"
	"go.uber.org/zap"
)

// lengthBias is the difference between a frame's total size and the length
// byte at offset 2
const lengthBias = 4

// FrameReader reassembles frames from a byte stream. BLE notifications are
// limited by the MTU, so one response frame often arrives in several pieces.
// Bytes before a preamble are discarded.
type FrameReader struct {
	r   io.Reader
	buf []byte
	tmp []byte
}

// NewFrameReader returns a FrameReader reading from r
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, tmp: make([]byte, 512)}
}

// ReadFrame returns the next complete frame. The returned slice is owned by
// the caller.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	for {
		if frame, ok := f.extract(); ok {
			return frame, nil
		}

		n, err := f.r.Read(f.tmp)
		if n > 0 {
			f.buf = append(f.buf, f.tmp[:n]...)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

// Buffered returns the number of bytes waiting for the rest of a frame
func (f *FrameReader) Buffered() int {
	return len(f.buf)
}

// Reset drops any partially received frame
func (f *FrameReader) Reset() {
	f.buf = f.buf[:0]
}

// extract pulls one frame off the front of the buffer if it is complete
func (f *FrameReader) extract() ([]byte, bool) {
	for {
		start := f.findPreamble()
		if start < 0 {
			if len(f.buf) > 0 {
				logging.Debug("Discarding bytes without preamble", zap.Int("length", len(f.buf)))
			}
			f.buf = f.buf[:0]
			return nil, false
		}
		if start > 0 {
			logging.LogRawBytes("Discarding bytes before preamble", f.buf[:start])
			f.buf = append(f.buf[:0], f.buf[start:]...)
		}

		if len(f.buf) < 3 {
			return nil, false
		}

		size := int(f.buf[2]) + lengthBias
		if size < protocol.MinFrameSize {
			// Not a real frame start; resync after this byte
			f.buf = append(f.buf[:0], f.buf[1:]...)
			continue
		}
		if len(f.buf) < size {
			return nil, false
		}

		frame := make([]byte, size)
		copy(frame, f.buf[:size])
		f.buf = append(f.buf[:0], f.buf[size:]...)
		return frame, true
	}
}

// findPreamble returns the offset of the first preamble/frame-type pair, or
// of a trailing preamble byte that may start one
func (f *FrameReader) findPreamble() int {
	for i, b := range f.buf {
		if b != protocol.Preamble {
			continue
		}
		if i+1 == len(f.buf) || f.buf[i+1] == protocol.FrameType {
			return i
		}
	}
	return -1
}

// String returns a debug representation of the reader state
func (f *FrameReader) String() string {
	return fmt.Sprintf("FrameReader{buffered=%d}", len(f.buf))
}
