package handlers

import (
	"context"
	"fmt"

	errspkg "github.com/drblury/routewire/internal/runtime/errors"
	loggingpkg "github.com/drblury/routewire/internal/runtime/logging"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

// RequestContext exposes the bound payload and metadata parameters for a
// route handler. P and M follow the binding rules in payloadBinderFor and
// metadataBinderFor; use None for a parameter the handler does not declare.
type RequestContext[P any, M any] struct {
	MessageContextBase
	Payload       P
	TypedMetadata M
}

// RequestHandler processes a bound request and returns its result. Returning
// a *ResponseError as the error sends a business error to the caller; the
// result value O may be None (empty response), []byte (raw passthrough), a
// ResponseError (encoded as the error payload), or any JSON-encodable value.
type RequestHandler[P any, M any, O any] func(ctx context.Context, req RequestContext[P, M]) (O, error)

// RequestRegistration wires a typed route handler.
type RequestRegistration[P any, M any, O any] struct {
	Route   string
	Handler RequestHandler[P, M, O]
}

// BuildRouteBinding converts the typed registration into an untyped registry
// entry, building the decode closures once.
func BuildRouteBinding[P any, M any, O any](cfg RequestRegistration[P, M, O], logger loggingpkg.ServiceLogger) (RouteBinding, error) {
	if cfg.Handler == nil {
		return RouteBinding{}, errspkg.ErrHandlerRequired
	}
	if cfg.Route == "" {
		return RouteBinding{}, errspkg.ErrRouteRequired
	}

	bindPayload := payloadBinderFor[P]()
	bindMetadata := metadataBinderFor[M](cfg.Route)

	invoke := func(ctx context.Context, payload []byte, md metadatapkg.Metadata) (any, error) {
		boundPayload, err := bindPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to bind payload for route %q: %w", cfg.Route, err)
		}

		boundMetadata, err := bindMetadata(md)
		if err != nil {
			return nil, err
		}

		req := RequestContext[P, M]{
			MessageContextBase: MessageContextBase{
				Metadata: md,
				Logger:   logger,
			},
			Payload:       boundPayload,
			TypedMetadata: boundMetadata,
		}

		out, err := cfg.Handler(ctx, req)
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	return RouteBinding{Route: cfg.Route, Invoke: invoke}, nil
}
