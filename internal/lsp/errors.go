package lsp

import (
	"errors"
	"fmt"
)

// Sentinel errors for LSP operations.
var (
	// ErrServerNotRunning indicates the server is not in the ready state.
	ErrServerNotRunning = errors.New("lsp server not running")

	// ErrServerNotInstalled indicates the server binary was not found.
	ErrServerNotInstalled = errors.New("lsp server not installed")

	// ErrInitializeFailed indicates the initialize handshake failed.
	ErrInitializeFailed = errors.New("lsp initialize failed")

	// ErrRequestTimeout indicates a request exceeded its deadline.
	ErrRequestTimeout = errors.New("lsp request timeout")

	// ErrServerCrashed indicates the server closed its output unexpectedly.
	ErrServerCrashed = errors.New("lsp server crashed")

	// ErrInvalidResponse indicates a response could not be decoded.
	ErrInvalidResponse = errors.New("invalid lsp response")

	// ErrServerAlreadyStarted indicates Start was called twice.
	ErrServerAlreadyStarted = errors.New("lsp server already started")
)

// Error is a JSON-RPC error returned by the language server.
type Error struct {
	Code    int
	Message string
	Data    any
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("lsp error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("lsp error %d: %s", e.Code, e.Message)
}

// JSON-RPC and LSP error codes.
const (
	CodeMethodNotFound       = -32601
	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
)

// IsMethodNotFound reports whether the server does not implement the method.
func (e *Error) IsMethodNotFound() bool {
	return e.Code == CodeMethodNotFound
}
