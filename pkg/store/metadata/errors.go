package metadata

import "errors"

// StoreError represents a domain error from metadata store operations.
//
// These are business logic errors (resource not found, parent missing, etc.)
// as opposed to infrastructure errors (disk failure, corrupt database).
//
// Protocol handlers translate StoreError codes to protocol-specific status
// codes (e.g. WebDAV 404, 405, 409).
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the resource path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested resource doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a resource already exists at the path
	ErrAlreadyExists

	// ErrParentNotFound indicates the parent collection of a path doesn't exist
	ErrParentNotFound

	// ErrNotDirectory indicates the operation expected a collection
	ErrNotDirectory

	// ErrIsDirectory indicates the operation expected a file
	ErrIsDirectory

	// ErrNotEmpty indicates a collection still has members
	ErrNotEmpty

	// ErrInvalidArgument indicates invalid parameters were provided
	ErrInvalidArgument

	// ErrIOError indicates the backing storage failed
	ErrIOError
)

// String returns the code name, used in logs.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrParentNotFound:
		return "ParentNotFound"
	case ErrNotDirectory:
		return "NotDirectory"
	case ErrIsDirectory:
		return "IsDirectory"
	case ErrNotEmpty:
		return "NotEmpty"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrIOError:
		return "IOError"
	default:
		return "Unknown"
	}
}

// NewError creates a StoreError.
func NewError(code ErrorCode, message, path string) *StoreError {
	return &StoreError{Code: code, Message: message, Path: path}
}

// CodeOf extracts the ErrorCode from err. The second return value is false when
// err is not (and does not wrap) a *StoreError.
func CodeOf(err error) (ErrorCode, bool) {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code, true
	}
	return 0, false
}

// IsNotFound reports whether err is a StoreError with code ErrNotFound.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrNotFound
}

// HasCode reports whether err is a StoreError with the given code.
func HasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
