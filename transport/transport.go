// Package transport defines the core interfaces for routewire transports.
// Each transport implementation (channel, nats) lives in its own sub-package
// and registers itself with the transport registry.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Responder is the dispatch surface a transport feeds inbound frames into.
// It is implemented by the engine; all methods are safe for concurrent use.
type Responder interface {
	// MetadataPush delivers a broadcast metadata frame. There is no reply.
	MetadataPush(ctx context.Context, raw []byte) error

	// FireAndForget delivers a one-way frame. There is no reply.
	FireAndForget(ctx context.Context, msg *message.Message) error

	// RequestResponse delivers a request frame and returns the single reply
	// to send back, or an error when no reply must be produced.
	RequestResponse(ctx context.Context, msg *message.Message) (*message.Message, error)

	// RequestStream delivers a streamed-response request.
	RequestStream(ctx context.Context, msg *message.Message) (*message.Message, error)

	// RequestChannel delivers the buffered frames of a bidirectional channel
	// request.
	RequestChannel(ctx context.Context, msgs []*message.Message) (*message.Message, error)
}

// Server pumps frames from a concrete transport into a Responder.
type Server interface {
	// Serve blocks until the context is cancelled or the transport fails.
	Serve(ctx context.Context, responder Responder) error
}

// Builder is the function signature for creating a transport server from
// config. Each transport package provides a Builder that can be registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Server, error)

// Config provides the configuration values needed by transports. The
// interface lets transports access only the keys they need without depending
// on the full config package.
type Config interface {
	// GetTransport returns the transport type name.
	GetTransport() string

	// NATS
	GetNATSURL() string
	GetNATSSubject() string

	// Channel
	GetChannelBuffer() int64
}
