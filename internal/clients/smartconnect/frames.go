package smartconnect

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	json "github.com/goccy/go-json"

	"cardlink/internal/terminal/domain"
)

// FrameType names a message of the SmartConnect socket protocol
type FrameType string

// Client to service
const (
	FrameBind        FrameType = "bind"
	FrameTransaction FrameType = "transaction"
	FrameDeviceInfo  FrameType = "device_info"
	FrameUnbind      FrameType = "unbind"
)

// Service to client. device_info is answered with a frame of the same type.
const (
	FrameBound             FrameType = "bound"
	FrameBindFailed        FrameType = "bind_failed"
	FrameTransactionResult FrameType = "transaction_result"
	FrameStatus            FrameType = "status"
	FrameError             FrameType = "error"
)

// maxFrameSize bounds a single line on the wire
const maxFrameSize = 1 << 20

// ErrMalformedFrame is returned for a line that is not a valid frame. The
// reader stays usable after it.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one newline-terminated JSON message
type Frame struct {
	Type      FrameType                        `json:"type"`
	ID        string                           `json:"id,omitempty"`
	Component string                           `json:"component,omitempty"`
	Request   *domain.TransactionRequestEntity `json:"request,omitempty"`
	Result    json.RawMessage                  `json:"result,omitempty"`
	Device    *domain.DeviceInfo               `json:"device,omitempty"`
	Message   string                           `json:"message,omitempty"`
}

// FrameWriter serialises frames onto a stream. It is safe for concurrent use.
type FrameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFrameWriter wraps w
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// Write encodes f and terminates it with a newline
func (fw *FrameWriter) Write(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	data = append(data, '\n')

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, err := fw.w.Write(data); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Type, err)
	}
	return nil
}

// FrameReader decodes frames from a stream
type FrameReader struct {
	scanner *bufio.Scanner
}

// NewFrameReader wraps r
func NewFrameReader(r io.Reader) *FrameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameSize)
	return &FrameReader{scanner: scanner}
}

// Read returns the next frame. Blank lines are skipped; io.EOF marks a clean close.
func (fr *FrameReader) Read() (Frame, error) {
	for fr.scanner.Scan() {
		line := fr.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if f.Type == "" {
			return Frame{}, fmt.Errorf("%w: no type in %s", ErrMalformedFrame, line)
		}
		return f, nil
	}
	if err := fr.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}
