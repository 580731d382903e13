package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// RPCError is a JSON-RPC error object exactly as the server sent it.
// Callers branch on Code and Message; nothing is added to either.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%d: %s: %s", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// ProviderError reports that a request did not complete within the client timeout.
type ProviderError struct {
	Message string
	Timeout time.Duration
	Cause   error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return e.Message
}

// Unwrap returns the underlying transport error
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

func newTimeoutError(method string, timeout time.Duration, cause error) *ProviderError {
	return &ProviderError{
		Message: fmt.Sprintf("%s timed out after %s. Try specifying a greater timeout when creating the client (rpc.WithTimeout).", method, timeout),
		Timeout: timeout,
		Cause:   cause,
	}
}

// MalformedResponseError is returned when a response carries neither result nor error.
type MalformedResponseError struct {
	StatusCode int
	Body       []byte
	Cause      error
}

// Error implements the error interface
func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed JSON-RPC response (status %d): %v: %s", e.StatusCode, e.Cause, string(e.Body))
	}
	return fmt.Sprintf("malformed JSON-RPC response (status %d): %s", e.StatusCode, string(e.Body))
}

// Unwrap returns the decoding error, if any
func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

// IsRPCError checks if an error was reported by the server
func IsRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}

// IsProviderError checks if a request timed out
func IsProviderError(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr)
}

// IsMalformedResponseError checks if the server answered with something other than JSON-RPC
func IsMalformedResponseError(err error) bool {
	var malformedErr *MalformedResponseError
	return errors.As(err, &malformedErr)
}

// AsRPCError returns the server-supplied error, if err carries one.
func AsRPCError(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
