// Package routewire is a request-routing and dispatch engine on top of a
// bidirectional, multi-mode messaging transport. Handlers are registered per
// route with typed payload and metadata parameters; the engine resolves
// inbound frames, binds their payloads, runs the handler through an
// interceptor chain, and encodes exactly one reply for request-response
// traffic.
//
// Four interaction modes are dispatched:
//   - metadata push: a broadcast frame delivered to every registered
//     metadata handler, each on its own copy of the raw bytes
//   - fire-and-forget: one-way frames with no reply; business errors are
//     silently dropped, unexpected failures are logged
//   - request-response: exactly one reply per request, a response frame on
//     success or an error frame carrying a code and message on failure
//   - request-stream and request-channel: accepted and released, then
//     rejected with a fixed not-implemented error (code 501)
//
// # Handlers
//
// BuildRouteBinding converts a typed registration into the untyped form the
// engine stores. Payload and metadata parameters follow the same rules: None
// skips binding, []byte passes raw bytes through, any other type is
// JSON-decoded. BuildProtoRouteBinding does the same for protobuf payloads
// using protojson, so the wire format stays JSON.
//
// # Errors
//
// Returning a *ResponseError from a handler sends a business error frame
// with the given code and message. Wrapping an error with Silent marks it as
// expected, keeping it out of the error log while the caller still receives
// a derived error frame. Any other error is logged and summarised into an
// error frame whose code is derived by hashing the failure summary, so the
// same failure always yields the same code. Cancellation always propagates
// to the transport and never produces an error frame.
//
// # Interceptors and hooks
//
// The default interceptor chain adds request logging, OpenTelemetry tracing,
// Prometheus metrics, and panic recovery. Dependencies.Hook wraps every
// invocation for custom tracking; RequestHooks provides ready-made start,
// done, and error callbacks.
//
// # Transports
//
// Transports live in sub-packages of transport/ and self-register: channel
// (in-memory, for tests and local development) and nats (NATS Core with
// request/reply). Serve builds the configured transport and pumps frames
// into the engine until the context is cancelled.
package routewire
