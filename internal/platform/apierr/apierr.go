package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound         = "not_found"
	CodeCacheMiss        = "cache_miss"
	CodeInvalidArgument  = "invalid_argument"
	CodeConflict         = "conflict"
	CodeStoreUnavailable = "store_unavailable"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

// CacheMiss is an expected, recoverable state: the caller is meant to trigger
// a recompute, not to surface the status to the client. The status here is a
// fallback for callers that fail to branch on IsCacheMiss.
func CacheMiss(err error) *Error {
	return New(http.StatusNotFound, CodeCacheMiss, err)
}

func InvalidArgument(err error) *Error {
	return New(http.StatusUnprocessableEntity, CodeInvalidArgument, err)
}

func Conflict(err error) *Error {
	return New(http.StatusConflict, CodeConflict, err)
}

func StoreUnavailable(err error) *Error {
	return New(http.StatusServiceUnavailable, CodeStoreUnavailable, err)
}

func hasCode(err error, code string) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

func IsNotFound(err error) bool         { return hasCode(err, CodeNotFound) }
func IsCacheMiss(err error) bool        { return hasCode(err, CodeCacheMiss) }
func IsInvalidArgument(err error) bool  { return hasCode(err, CodeInvalidArgument) }
func IsConflict(err error) bool         { return hasCode(err, CodeConflict) }
func IsStoreUnavailable(err error) bool { return hasCode(err, CodeStoreUnavailable) }

// HTTPStatus maps any error to the status the orchestrator should respond
// with. Unknown errors map to 500.
func HTTPStatus(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// Code extracts the taxonomy code, or "internal" for unclassified errors.
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return "internal"
}
