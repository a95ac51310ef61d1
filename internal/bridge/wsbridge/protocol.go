// Package wsbridge lets foreign callers drive a binding.Module over a
// WebSocket connection using JSON request/response messages.
package wsbridge

import (
	"errors"
	"fmt"

	"github.com/meandmytram/pybind-example/internal/binding"
)

// Request types.
const (
	TypeConstruct = "construct"
	TypeCall      = "call"
	TypeRelease   = "release"
	TypeInvoke    = "invoke"
	TypeDescribe  = "describe"

	TypeResponse = "response"
)

// Error codes carried in failed responses.
const (
	CodeBadRequest    = "bad_request"
	CodeUnknownClass  = "unknown_class"
	CodeUnknownMethod = "unknown_method"
	CodeUnknownHandle = "unknown_handle"
	CodeArity         = "arity"
	CodeNonFinite     = "non_finite"
	CodeInternal      = "internal"
)

var (
	// ErrNonFinite is reported when a result is NaN or infinite and so has
	// no JSON representation.
	ErrNonFinite = errors.New("result is not a finite number")

	// ErrBadRequest is reported for undecodable or incomplete requests.
	ErrBadRequest = errors.New("bad request")
)

// Request is sent by the foreign caller.
type Request struct {
	Type      string    `json:"type"`             // one of the Type* request constants
	RequestID string    `json:"requestId"`        // echoed in the response
	Class     string    `json:"class,omitempty"`  // construct, invoke
	Handle    string    `json:"handle,omitempty"` // call, release
	Method    string    `json:"method,omitempty"` // call, invoke
	Args      []float64 `json:"args,omitempty"`   // call, invoke
}

// Response answers exactly one Request.
type Response struct {
	Type      string              `json:"type"` // "response"
	RequestID string              `json:"requestId"`
	Success   bool                `json:"success"`
	Handle    string              `json:"handle,omitempty"`
	Result    *float64            `json:"result,omitempty"`
	Module    string              `json:"module,omitempty"`
	Classes   []binding.ClassInfo `json:"classes,omitempty"`
	Code      string              `json:"code,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// RemoteError is a failed Response surfaced on the client side. It matches
// the binding sentinel errors with errors.Is.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Code, e.Message)
}

// Is maps wire codes back onto sentinel errors.
func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case CodeUnknownClass:
		return target == binding.ErrUnknownClass
	case CodeUnknownMethod:
		return target == binding.ErrUnknownMethod
	case CodeUnknownHandle:
		return target == binding.ErrUnknownHandle
	case CodeArity:
		return target == binding.ErrArity
	case CodeNonFinite:
		return target == ErrNonFinite
	case CodeBadRequest:
		return target == ErrBadRequest
	}
	return false
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, binding.ErrUnknownClass):
		return CodeUnknownClass
	case errors.Is(err, binding.ErrUnknownMethod):
		return CodeUnknownMethod
	case errors.Is(err, binding.ErrUnknownHandle):
		return CodeUnknownHandle
	case errors.Is(err, binding.ErrArity):
		return CodeArity
	case errors.Is(err, ErrNonFinite):
		return CodeNonFinite
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}

func failure(requestID string, err error) Response {
	return Response{
		Type:      TypeResponse,
		RequestID: requestID,
		Code:      errorCode(err),
		Error:     err.Error(),
	}
}
