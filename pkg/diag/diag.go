// Package diag defines the error kinds shared by the BIN and WAD decoders.
//
// Fatal conditions are returned as *Error values that wrap one of the
// sentinel errors below, so callers can test them with errors.Is and recover
// the byte offset with errors.As. Non-fatal conditions are collected as
// Diagnostic values next to an otherwise successful result.
package diag

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Kind identifies a class of decode problem.
type Kind int

const (
	KindBadMagic Kind = iota + 1
	KindUnsupportedVersion
	KindUnknownFieldType
	KindTruncatedData
	KindUnsupportedCompression
	KindDuplicateKey
	KindIntegrityMismatch
	KindEncoding
	KindSizeMismatch
)

func (k Kind) String() string {
	switch k {
	case KindBadMagic:
		return "BadMagic"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindUnknownFieldType:
		return "UnknownFieldType"
	case KindTruncatedData:
		return "TruncatedData"
	case KindUnsupportedCompression:
		return "UnsupportedCompression"
	case KindDuplicateKey:
		return "DuplicateKey"
	case KindIntegrityMismatch:
		return "IntegrityMismatch"
	case KindEncoding:
		return "EncodingError"
	case KindSizeMismatch:
		return "SizeMismatch"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinel errors, one per kind.
var (
	ErrBadMagic               = errors.New("bad magic")
	ErrUnsupportedVersion     = errors.New("unsupported version")
	ErrUnknownFieldType       = errors.New("unknown field type")
	ErrTruncatedData          = errors.New("truncated data")
	ErrUnsupportedCompression = errors.New("unsupported compression")
	ErrDuplicateKey           = errors.New("duplicate key")
	ErrIntegrityMismatch      = errors.New("integrity mismatch")
	ErrEncoding               = errors.New("encoding error")
	ErrSizeMismatch           = errors.New("size mismatch")
)

// Sentinel returns the sentinel error for k.
func (k Kind) Sentinel() error {
	switch k {
	case KindBadMagic:
		return ErrBadMagic
	case KindUnsupportedVersion:
		return ErrUnsupportedVersion
	case KindUnknownFieldType:
		return ErrUnknownFieldType
	case KindTruncatedData:
		return ErrTruncatedData
	case KindUnsupportedCompression:
		return ErrUnsupportedCompression
	case KindDuplicateKey:
		return ErrDuplicateKey
	case KindIntegrityMismatch:
		return ErrIntegrityMismatch
	case KindEncoding:
		return ErrEncoding
	case KindSizeMismatch:
		return ErrSizeMismatch
	default:
		return nil
	}
}

// Error is a fatal decode failure.
// Offset is the byte position in the input where the failure was detected,
// or -1 when no position applies.
type Error struct {
	Kind   Kind
	Op     string
	Offset int64
	Detail string
	Err    error // optional underlying cause
}

// Errorf builds an *Error of kind k at offset.
func Errorf(k Kind, op string, offset int64, format string, args ...any) *Error {
	return &Error{Kind: k, Op: op, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.Sentinel().Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.Sentinel()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind carried by err, or 0 if err is not a decode error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for k := KindBadMagic; k <= KindSizeMismatch; k++ {
		if errors.Is(err, k.Sentinel()) {
			return k
		}
	}
	return 0
}

// Diagnostic is a non-fatal condition reported alongside a successful result.
type Diagnostic struct {
	Kind    Kind
	Offset  int64  // -1 when not tied to a byte position
	Key     string // the duplicated key or the entry hash, when relevant
	Message string
}

func (d Diagnostic) String() string {
	s := d.Kind.String()
	if d.Key != "" {
		s += " [" + d.Key + "]"
	}
	if d.Offset >= 0 {
		s += fmt.Sprintf(" at offset %d", d.Offset)
	}
	if d.Message != "" {
		s += ": " + d.Message
	}
	return s
}

// Err converts d into a fatal *Error, used when a caller asked for strict mode.
func (d Diagnostic) Err(op string) *Error {
	return &Error{Kind: d.Kind, Op: op, Offset: d.Offset, Detail: d.Message}
}

// Report collects diagnostics and logs each one at warn level.
// It is safe for concurrent use.
type Report struct {
	mu     sync.Mutex
	items  []Diagnostic
	logger *slog.Logger
}

// NewReport returns a Report that logs through logger.
// A nil logger discards log output.
func NewReport(logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Report{logger: logger}
}

// Add records d.
func (r *Report) Add(d Diagnostic) {
	r.mu.Lock()
	r.items = append(r.items, d)
	r.mu.Unlock()

	attrs := []any{slog.String("kind", d.Kind.String())}
	if d.Key != "" {
		attrs = append(attrs, slog.String("key", d.Key))
	}
	if d.Offset >= 0 {
		attrs = append(attrs, slog.Int64("offset", d.Offset))
	}
	r.logger.Warn(d.Message, attrs...)
}

// Items returns a copy of the collected diagnostics in report order.
func (r *Report) Items() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Diagnostic, len(r.items))
	copy(out, r.items)
	return out
}

// Has reports whether any diagnostic of kind k was collected.
func (r *Report) Has(k Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.items {
		if d.Kind == k {
			return true
		}
	}
	return false
}
