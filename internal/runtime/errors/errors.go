package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrEngineRequired   = sterrors.New("routewire: engine is required")
	ErrHandlerRequired  = sterrors.New("routewire: handler function is required")
	ErrRouteRequired    = sterrors.New("routewire: route identifier is required")
	ErrLoggerRequired   = sterrors.New("routewire: logger is required")
	ErrConfigRequired   = sterrors.New("routewire: configuration is required")
	ErrPointerNeeded    = sterrors.New("routewire: payload type must be a pointer")
	ErrMessageRequired  = sterrors.New("routewire: message is required")
	ErrResponderNeeded  = sterrors.New("routewire: responder is required")
	ErrTransportUnknown = sterrors.New("routewire: unknown transport")
)

// CodeNotImplemented is the fixed client-visible code for the streamed-response
// and bidirectional-channel modes, which this engine never implements.
const CodeNotImplemented int32 = 501

// ResponseError is the canonical error shape crossing the wire. Handlers raise
// it (or return it as a value) to send a structured business error to the
// caller.
type ResponseError struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

func NewResponseError(code int32, message string) *ResponseError {
	return &ResponseError{Code: code, Message: message}
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("routewire: response error %d: %s", e.Code, e.Message)
}

// SilentError marks an expected internal failure, such as a deliberate
// short-circuit. It is reported to the caller as the wrapped failure's type
// name and message, without server-side diagnostics.
type SilentError struct {
	Err error
}

// Silent wraps err so the dispatcher treats it as an expected failure.
func Silent(err error) error {
	if err == nil {
		return nil
	}
	return &SilentError{Err: err}
}

func (e *SilentError) Error() string { return e.Err.Error() }

func (e *SilentError) Unwrap() error { return e.Err }

// IsSilent reports whether err is (or wraps) a SilentError.
func IsSilent(err error) bool {
	var silent *SilentError
	return sterrors.As(err, &silent)
}

// RouteNotFoundError is returned when an inbound message names a route with no
// registered handler. It is classified as an unexpected failure, not a
// business error.
type RouteNotFoundError struct {
	Route string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("routewire: no handler registered for route %q", e.Route)
}

// MissingMetadataError is returned when a handler declares a typed metadata
// parameter but the composite metadata carries no typed entry.
type MissingMetadataError struct {
	Route string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("routewire: route %q requires typed metadata but none was sent", e.Route)
}

// NotImplementedError is the fixed condition produced by the streamed-response
// and bidirectional-channel modes.
type NotImplementedError struct {
	Mode string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("routewire: %s is not implemented", e.Mode)
}

// Response converts the condition into its canonical wire shape.
func (e *NotImplementedError) Response() *ResponseError {
	return &ResponseError{Code: CodeNotImplemented, Message: e.Error()}
}

// ConstructionError wraps the violations found while validating the declared
// handler set. It is fatal: the engine refuses to start.
type ConstructionError struct {
	Err error
}

// NewConstructionError wraps err in a ConstructionError, or returns nil when
// err is nil.
func NewConstructionError(err error) error {
	if err == nil {
		return nil
	}
	return ConstructionError{Err: err}
}

func (e ConstructionError) Error() string {
	return "routewire: invalid handler set: " + e.Err.Error()
}

func (e ConstructionError) Unwrap() error { return e.Err }
