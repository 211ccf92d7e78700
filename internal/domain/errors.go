package domain

import (
	"errors"
	"fmt"
)

type StorageError struct {
	Type    ErrorType
	Key     string
	Message string
}

func (e *StorageError) Error() string {
	return e.Message
}

type ErrorType int

const (
	ErrKeyNotFound ErrorType = iota
	ErrVersionMismatch
	ErrClosed
	ErrCorrupted
)

func NewKeyNotFoundError(key string) *StorageError {
	return &StorageError{
		Type:    ErrKeyNotFound,
		Key:     key,
		Message: "key not found: " + key,
	}
}

func NewVersionMismatchError(key string, expected, actual int64) *StorageError {
	return &StorageError{
		Type:    ErrVersionMismatch,
		Key:     key,
		Message: fmt.Sprintf("version mismatch for key %s: expected %d, got %d", key, expected, actual),
	}
}

func IsKeyNotFound(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr) && storageErr.Type == ErrKeyNotFound
}

func IsVersionMismatch(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr) && storageErr.Type == ErrVersionMismatch
}

// ConfigError marks an unresolvable configuration: an includes cycle, an
// unknown spec block or handler identifier, a malformed document. Fatal at
// creation time, never auto-retried.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error { return e.Err }

func NewConfigError(message string) *ConfigError {
	return &ConfigError{Message: message}
}

func WrapConfigError(message string, err error) *ConfigError {
	return &ConfigError{Message: message, Err: err}
}

func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// TransientError marks a failure worth retrying on a later poll cycle, up to
// the node's retry budget.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var transientErr *TransientError
	return errors.As(err, &transientErr)
}

// WorkFailureError marks definitive failure of issued external work. Surfaced
// to the operator, never auto-retried.
type WorkFailureError struct {
	Handle  string
	Message string
}

func (e *WorkFailureError) Error() string {
	if e.Handle != "" {
		return fmt.Sprintf("external work %s failed: %s", e.Handle, e.Message)
	}
	return "external work failed: " + e.Message
}

func NewWorkFailureError(handle, message string) *WorkFailureError {
	return &WorkFailureError{Handle: handle, Message: message}
}

func IsWorkFailure(err error) bool {
	var workErr *WorkFailureError
	return errors.As(err, &workErr)
}

// StallError marks external work that is held up but recoverable; the node is
// flagged blocked until an operator acknowledges it or a later check clears.
type StallError struct {
	Handle  string
	Message string
}

func (e *StallError) Error() string {
	return fmt.Sprintf("external work %s stalled: %s", e.Handle, e.Message)
}

func NewStallError(handle, message string) *StallError {
	return &StallError{Handle: handle, Message: message}
}

func IsStall(err error) bool {
	var stallErr *StallError
	return errors.As(err, &stallErr)
}

var (
	ErrNodeNotFound      = errors.New("node not found")
	ErrEntryNotFound     = errors.New("queue entry not found")
	ErrNotClaimed        = errors.New("queue entry not claimed by this daemon")
	ErrSuperseded        = errors.New("node is superseded")
	ErrInvalidTransition = errors.New("invalid status transition")
)
