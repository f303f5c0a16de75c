// Package kerr is the single error taxonomy used from the file manager
// up through the DML executor.
//
// The original engine threw a DatabaseException carrying a StatusCode
// drawn from banded ranges (general 1-99, I/O 100-199, storage 200-299,
// record 300-399, index 400-499, transaction 500-599, query 600-699,
// network 700-799). Error is the Go rendering of that same shape,
// grounded on the structured-error package the wider example pack uses
// for exactly this purpose (a *DBError with Code/Category/Message/
// Detail/Operation/Cause, formatted as "[CODE] message (context)").
package kerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of failure. The numeric bands below
// match the external error-code ranges in spec.md §6.
type Kind string

const (
	// General (1-99)
	InvalidArgument Kind = "INVALID_ARGUMENT"
	NotImplemented  Kind = "NOT_IMPLEMENTED"
	InternalError   Kind = "INTERNAL_ERROR"

	// I/O (100-199)
	FileNotFound     Kind = "FILE_NOT_FOUND"
	FileAlreadyExist Kind = "FILE_ALREADY_EXISTS"
	PermissionDenied Kind = "PERMISSION_DENIED"
	DiskFull         Kind = "DISK_FULL"
	ReadError        Kind = "READ_ERROR"
	WriteError       Kind = "WRITE_ERROR"
	SeekError        Kind = "SEEK_ERROR"
	IOError          Kind = "IO_ERROR"
	FileCorrupted    Kind = "FILE_CORRUPTED"

	// Storage (200-299)
	PageNotFound    Kind = "PAGE_NOT_FOUND"
	PageCorrupted   Kind = "PAGE_CORRUPTED"
	PageFull        Kind = "PAGE_FULL"
	InvalidPageType Kind = "INVALID_PAGE_TYPE"
	CacheFull       Kind = "CACHE_FULL"
	InvalidOffset   Kind = "INVALID_OFFSET"
	PageLocked      Kind = "PAGE_LOCKED"

	// Record (300-399)
	RecordNotFound       Kind = "RECORD_NOT_FOUND"
	RecordTooLarge       Kind = "RECORD_TOO_LARGE"
	InvalidRecordFormat  Kind = "INVALID_RECORD_FORMAT"
	SchemaMismatch       Kind = "SCHEMA_MISMATCH"
	DuplicateRecord      Kind = "DUPLICATE_RECORD"

	// Transaction (500-599) — carried for completeness; unused by this
	// engine (no transaction manager, per spec.md non-goals), but kept
	// so a future WAL/lock manager does not need a new taxonomy.
	LockTimeout      Kind = "LOCK_TIMEOUT"
	DeadlockDetected Kind = "DEADLOCK_DETECTED"

	// Query (600-699)
	SyntaxError          Kind = "SYNTAX_ERROR"
	SemanticError        Kind = "SEMANTIC_ERROR"
	TypeError            Kind = "TYPE_ERROR"
	TableNotFound        Kind = "TABLE_NOT_FOUND"
	TableExists          Kind = "TABLE_EXISTS"
	ColumnNotFound       Kind = "COLUMN_NOT_FOUND"
	ColumnCountMismatch  Kind = "COLUMN_COUNT_MISMATCH"
	ConstraintViolation  Kind = "CONSTRAINT_VIOLATION"
	UnsupportedType      Kind = "UNSUPPORTED_TYPE"

	// Network/Connection (700-799) — unused, carried for parity with
	// spec.md's banded taxonomy.
	Timeout Kind = "TIMEOUT"
)

// recoverable lists the kinds spec.md §6 calls out as recoverable: a
// caller may retry or otherwise work around these without it being a
// programming error.
var recoverable = map[Kind]bool{
	Timeout:          true,
	LockTimeout:      true,
	DeadlockDetected: true,
	CacheFull:        true,
	PageFull:         true,
	FileAlreadyExist: true,
}

// Error is a structured failure carrying a Kind, a human message,
// optional key/value context, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

// New builds an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind/message context to an underlying error, preserving
// it as Cause for errors.Is/errors.As.
func Wrap(cause error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// With attaches a context key/value pair and returns the receiver, so
// call sites can chain: kerr.New(...).With("page_id", id).
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Error implements the error interface as "[KIND] message (k=v, ...)".
func (e *Error) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if len(e.Context) > 0 {
		s += " ("
		first := true
		for k, v := range e.Context {
			if !first {
				s += ", "
			}
			s += fmt.Sprintf("%s=%v", k, v)
			first = false
		}
		s += ")"
	}
	if e.Cause != nil {
		s += fmt.Sprintf(": %v", e.Cause)
	}
	return s
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRecoverable reports whether a caller can reasonably retry or work
// around this failure rather than treating it as a bug.
func (e *Error) IsRecoverable() bool {
	return recoverable[e.Kind]
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, or
// InternalError otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}
