package protocol

import (
	"errors"
	"fmt"

	"github.com/danmuck/thriftsniff/internal/protocol/frame"
	"github.com/danmuck/thriftsniff/internal/protocol/varint"
)

var (
	ErrTruncated              = errors.New("protocol: truncated data")
	ErrUnsupportedVersion     = errors.New("protocol: unsupported protocol version")
	ErrUnrecognizedEnvelope   = errors.New("protocol: unrecognized transport envelope")
	ErrUnsupportedFieldType   = errors.New("protocol: unsupported field type")
	ErrRecursionLimitExceeded = errors.New("protocol: recursion limit exceeded")
	ErrVarintOverflow         = errors.New("protocol: varint overflow")

	// ErrCountOverflow and ErrMissingStop are truncation-class failures.
	ErrCountOverflow = fmt.Errorf("%w: declared count exceeds remaining bytes", ErrTruncated)
	ErrMissingStop   = fmt.Errorf("%w: field list ended without stop", ErrTruncated)
)

// Stage identifies the decode step that failed.
type Stage int

const (
	StageEnvelope Stage = iota + 1
	StageDetect
	StageHeader
	StageFields
)

func (s Stage) String() string {
	switch s {
	case StageEnvelope:
		return "envelope"
	case StageDetect:
		return "detect"
	case StageHeader:
		return "header"
	case StageFields:
		return "fields"
	default:
		return "unknown"
	}
}

// DecodeError reports which stage failed and at what offset of the original
// payload.
type DecodeError struct {
	Stage  Stage
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: %s failed at offset %d: %v", e.Stage, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Class returns a short stable label for err, suitable for metrics.
func Class(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrCountOverflow):
		return "count_overflow"
	case errors.Is(err, ErrMissingStop):
		return "missing_stop"
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, ErrUnrecognizedEnvelope):
		return "unrecognized_envelope"
	case errors.Is(err, ErrUnsupportedFieldType):
		return "unsupported_field_type"
	case errors.Is(err, ErrRecursionLimitExceeded):
		return "recursion_limit"
	case errors.Is(err, ErrVarintOverflow):
		return "varint_overflow"
	default:
		return "other"
	}
}

// StageOf returns the failing stage of err, or 0 when err is not a
// DecodeError.
func StageOf(err error) Stage {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Stage
	}
	return 0
}

func mapVarintErr(err error) error {
	switch {
	case errors.Is(err, varint.ErrTruncated):
		return ErrTruncated
	case errors.Is(err, varint.ErrOverflow):
		return ErrVarintOverflow
	default:
		return err
	}
}

func mapFrameErr(err error) error {
	switch {
	case errors.Is(err, frame.ErrTruncated):
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	case errors.Is(err, frame.ErrUnrecognizedEnvelope):
		return fmt.Errorf("%w: %w", ErrUnrecognizedEnvelope, err)
	default:
		return err
	}
}
