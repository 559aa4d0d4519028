package index

import "fmt"

// Code is a stable integer-coded error category, the Go-idiomatic rendering
// of the original source's ErrorCode/victor_strerror table.
type Code int

const (
	Success Code = iota
	InvalidInit
	InvalidIndex
	InvalidVector
	InvalidResult
	InvalidDimensions
	InvalidArgument
	InvalidIndexType
	InvalidID
	InvalidRef
	InvalidMethod
	DuplicatedEntry
	NotFoundID
	IndexEmpty
	ThreadError
	SystemError
	FileIOError
	NotImplemented
	InvalidFile
)

var codeStrings = map[Code]string{
	Success:           "success",
	InvalidInit:       "invalid initialization",
	InvalidIndex:      "invalid index",
	InvalidVector:     "invalid vector",
	InvalidResult:     "invalid result",
	InvalidDimensions: "invalid dimensions",
	InvalidArgument:   "invalid argument",
	InvalidIndexType:  "invalid index type",
	InvalidID:         "invalid id",
	InvalidRef:        "invalid reference",
	InvalidMethod:     "invalid method",
	DuplicatedEntry:   "duplicated entry",
	NotFoundID:        "id not found",
	IndexEmpty:        "index is empty",
	ThreadError:       "thread error",
	SystemError:       "system error",
	FileIOError:       "file I/O error",
	NotImplemented:    "not implemented",
	InvalidFile:       "invalid file",
}

func (c Code) String() string {
	if s, ok := codeStrings[c]; ok {
		return s
	}
	return "unknown error"
}

// Error is the error type every façade operation returns. It carries a
// stable Code so callers can branch with errors.Is against the package
// sentinels below, plus an optional message giving call-specific detail.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code.String(), e.Message)
}

// Is reports whether target is an *Error with the same Code, so that
// errors.Is(err, index.ErrNotFoundID) works regardless of Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Package-level sentinels, one per code, for use with errors.Is.
var (
	ErrInvalidInit       = &Error{Code: InvalidInit}
	ErrInvalidIndex      = &Error{Code: InvalidIndex}
	ErrInvalidVector     = &Error{Code: InvalidVector}
	ErrInvalidResult     = &Error{Code: InvalidResult}
	ErrInvalidDimensions = &Error{Code: InvalidDimensions}
	ErrInvalidArgument   = &Error{Code: InvalidArgument}
	ErrInvalidIndexType  = &Error{Code: InvalidIndexType}
	ErrInvalidID         = &Error{Code: InvalidID}
	ErrInvalidRef        = &Error{Code: InvalidRef}
	ErrInvalidMethod     = &Error{Code: InvalidMethod}
	ErrDuplicatedEntry   = &Error{Code: DuplicatedEntry}
	ErrNotFoundID        = &Error{Code: NotFoundID}
	ErrIndexEmpty        = &Error{Code: IndexEmpty}
	ErrThreadError       = &Error{Code: ThreadError}
	ErrSystem            = &Error{Code: SystemError}
	ErrFileIO            = &Error{Code: FileIOError}
	ErrNotImplemented    = &Error{Code: NotImplemented}
	ErrInvalidFile       = &Error{Code: InvalidFile}
)
