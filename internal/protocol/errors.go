package protocol

import (
	"errors"
	"fmt"
)

// ErrorType is the category of a decode failure
type ErrorType int

const (
	// ErrTypeStructuralMismatch indicates a fixed byte or field check failed
	ErrTypeStructuralMismatch ErrorType = iota
	// ErrTypeChecksumMismatch indicates a header or payload checksum did not match
	ErrTypeChecksumMismatch
	// ErrTypeUnknownCode indicates a model/state/mode/reason code absent from its table
	ErrTypeUnknownCode
	// ErrTypeTooShort indicates the buffer cannot hold the offsets a decoder needs
	ErrTypeTooShort
	// ErrTypeUnsupported indicates a header category the decoder does not implement
	ErrTypeUnsupported
)

// Sentinel errors, one per ErrorType. DecodeError unwraps to these so callers
// can use errors.Is without inspecting the concrete type.
var (
	ErrStructuralMismatch = errors.New("structural mismatch")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrUnknownCode        = errors.New("unknown code")
	ErrTooShort           = errors.New("frame too short")
	ErrUnsupported        = errors.New("unsupported response category")
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeStructuralMismatch:
		return "StructuralMismatch"
	case ErrTypeChecksumMismatch:
		return "ChecksumMismatch"
	case ErrTypeUnknownCode:
		return "UnknownCode"
	case ErrTypeTooShort:
		return "TooShort"
	case ErrTypeUnsupported:
		return "Unsupported"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

func (et ErrorType) sentinel() error {
	switch et {
	case ErrTypeStructuralMismatch:
		return ErrStructuralMismatch
	case ErrTypeChecksumMismatch:
		return ErrChecksumMismatch
	case ErrTypeUnknownCode:
		return ErrUnknownCode
	case ErrTypeTooShort:
		return ErrTooShort
	case ErrTypeUnsupported:
		return ErrUnsupported
	default:
		return nil
	}
}

// DecodeError reports why a buffer could not be classified as the expected
// response kind. Kind is KindNone when the envelope itself was rejected.
type DecodeError struct {
	Type    ErrorType    // Category of failure
	Kind    ResponseKind // Response kind being decoded
	Offset  int          // Byte offset that failed the check, -1 if not applicable
	Message string       // Human-readable detail
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	prefix := e.Type.String()
	if e.Kind != KindNone {
		prefix = fmt.Sprintf("%s %s", e.Kind, e.Type)
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset %d: %s", prefix, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the sentinel error for the failure category
func (e *DecodeError) Unwrap() error {
	return e.Type.sentinel()
}

// ErrorTypeOf extracts the ErrorType from err. ok is false when err is not
// (and does not wrap) a *DecodeError.
func ErrorTypeOf(err error) (ErrorType, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Type, true
	}
	return 0, false
}

func structural(kind ResponseKind, offset int, format string, args ...any) *DecodeError {
	return &DecodeError{Type: ErrTypeStructuralMismatch, Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...)}
}

func checksumMismatch(kind ResponseKind, offset int, got, want byte) *DecodeError {
	return &DecodeError{
		Type:    ErrTypeChecksumMismatch,
		Kind:    kind,
		Offset:  offset,
		Message: fmt.Sprintf("got 0x%02x, calculated 0x%02x", got, want),
	}
}

func tooShort(kind ResponseKind, got, need int) *DecodeError {
	return &DecodeError{
		Type:    ErrTypeTooShort,
		Kind:    kind,
		Offset:  -1,
		Message: fmt.Sprintf("%d bytes (minimum %d)", got, need),
	}
}

func unknownCode(kind ResponseKind, offset int, format string, args ...any) *DecodeError {
	return &DecodeError{Type: ErrTypeUnknownCode, Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...)}
}
