// Package coreerr defines the single opaque error type shared across the
// store directory, archive, registry, index, ingest, query, hierarchy and
// duplicate-analysis packages. Every error that crosses one of those
// package boundaries is wrapped in an *Error carrying a Kind so callers can
// branch on category without parsing messages.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// Unknown is the zero value and should never be returned deliberately.
	Unknown Kind = iota
	// NotFound means a file, entity, or key was absent.
	NotFound
	// AlreadyExists means a duplicate alias was submitted to the registry.
	AlreadyExists
	// Invalid means validation failed (coordinates, timezone, pattern, ...).
	Invalid
	// ArchiveCorrupt means a ZIP or payload JSON parse failed.
	ArchiveCorrupt
	// RegistryCorrupt means the manifest JSON failed to parse.
	RegistryCorrupt
	// IndexBusy means the index file is lock-contended.
	IndexBusy
	// ArchiveBusy means a concurrent update to the same archive was attempted.
	ArchiveBusy
	// Io means an underlying filesystem error occurred.
	Io
	// Internal means an invariant was violated (orphan row, cycle, ...).
	Internal
)

// String renders the Kind the way it is named in the specification.
func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case Invalid:
		return "Invalid"
	case ArchiveCorrupt:
		return "ArchiveCorrupt"
	case RegistryCorrupt:
		return "RegistryCorrupt"
	case IndexBusy:
		return "IndexBusy"
	case ArchiveBusy:
		return "ArchiveBusy"
	case Io:
		return "Io"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the opaque error type surfaced at every core API boundary.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that wraps cause. If cause is already an *Error of
// the same Kind it is returned unchanged to avoid onion-layering identical
// categories.
func Wrap(kind Kind, message string, cause error) *Error {
	var existing *Error
	if errors.As(cause, &existing) && existing.Kind == kind {
		return existing
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether the first *Error found in err's chain (err itself or
// an error it wraps) has the given Kind. *Errors nested deeper than the
// first one are not inspected.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
