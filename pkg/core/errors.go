package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Common errors.
var (
	ErrNotFound         = errors.New("entity not found")
	ErrIllegalOperation = errors.New("illegal operation")
	ErrInvalidValue     = errors.New("invalid value")
	ErrDestroyed        = errors.New("document destroyed")
	ErrReadOnly         = errors.New("repository is in read-only mode")
)

// ErrorCode is the transport-level code carried by repository failures.
type ErrorCode string

const (
	CodeVersionMismatch ErrorCode = "VersionMismatch"
	CodeAccessDenied    ErrorCode = "AccessDenied"
	CodeBadRequest      ErrorCode = "BadRequest"
	CodeServerError     ErrorCode = "ServerError"
	CodeNotFound        ErrorCode = "NotFound"
	CodeDisconnected    ErrorCode = "-1"
)

// RepositoryError is returned by entity repositories.
type RepositoryError struct {
	Code    ErrorCode
	Message string
}

func (e *RepositoryError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match a NotFound repository error.
func (e *RepositoryError) Is(target error) bool {
	return target == ErrNotFound && e.Code == CodeNotFound
}

// ErrorKind is the closed set of failure kinds the document reports.
type ErrorKind int

const (
	KindVersionMismatch ErrorKind = iota + 1
	KindDisconnected
	KindOpenForbidden
	KindArchived
	KindInternalServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindVersionMismatch:
		return "VersionMismatch"
	case KindDisconnected:
		return "Disconnected"
	case KindOpenForbidden:
		return "OpenForbidden"
	case KindArchived:
		return "Archived"
	case KindInternalServer:
		return "CmaInternalServerError"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// SyncError is a classified save or fetch failure.
type SyncError struct {
	Kind ErrorKind
	Err  error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrVersionMismatch        = &SyncError{Kind: KindVersionMismatch}
	ErrDisconnected           = &SyncError{Kind: KindDisconnected}
	ErrOpenForbidden          = &SyncError{Kind: KindOpenForbidden}
	ErrArchived               = &SyncError{Kind: KindArchived}
	ErrCmaInternalServerError = &SyncError{Kind: KindInternalServer}
)

func (e *SyncError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Is matches sentinels of the same kind.
func (e *SyncError) Is(target error) bool {
	t, ok := target.(*SyncError)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// Classify converts any repository failure into exactly one ErrorKind.
// It returns nil for a nil error and passes already classified errors through.
func Classify(err error) *SyncError {
	if err == nil {
		return nil
	}

	var se *SyncError
	if errors.As(err, &se) {
		return se
	}

	var re *RepositoryError
	if errors.As(err, &re) {
		switch re.Code {
		case CodeVersionMismatch:
			return &SyncError{Kind: KindVersionMismatch, Err: err}
		case CodeAccessDenied:
			return &SyncError{Kind: KindOpenForbidden, Err: err}
		case CodeDisconnected:
			return &SyncError{Kind: KindDisconnected, Err: err}
		case CodeBadRequest:
			if strings.Contains(strings.ToLower(re.Message), "archived") {
				return &SyncError{Kind: KindArchived, Err: err}
			}
			return &SyncError{Kind: KindInternalServer, Err: err}
		default:
			return &SyncError{Kind: KindInternalServer, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &SyncError{Kind: KindDisconnected, Err: err}
	}

	return &SyncError{Kind: KindInternalServer, Err: err}
}

// KindOf reports the kind of a classified error.
func KindOf(err error) (ErrorKind, bool) {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsDisconnected reports whether err is a transient transport failure.
func IsDisconnected(err error) bool {
	return errors.Is(err, ErrDisconnected)
}

// IsVersionMismatch reports whether err is an unresolved version conflict.
func IsVersionMismatch(err error) bool {
	return errors.Is(err, ErrVersionMismatch)
}
