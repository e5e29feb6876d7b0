package runtime

import (
	"context"
	"time"

	loggingpkg "github.com/drblury/routewire/internal/runtime/logging"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

// InvocationFunc runs a bound handler and returns its untyped result.
type InvocationFunc func(ctx context.Context) (any, error)

// TrackingHook wraps a single handler invocation, keyed by route. A hook must
// call next exactly once, return its result unchanged, and propagate any
// error (cancellation included) unchanged. It runs inside the interceptor
// chain, directly around the handler.
type TrackingHook func(ctx context.Context, route string, next InvocationFunc) (any, error)

// HookContext provides information about a dispatch to lifecycle hooks.
type HookContext struct {
	// Route is the route identifier of the invoked handler.
	Route string
	// StartedAt is when the invocation began.
	StartedAt time.Time
	// Duration is how long the invocation took (only set in OnDone and OnError).
	Duration time.Duration
	// Metadata is the composite metadata of the request frame.
	Metadata metadatapkg.Metadata
}

// RequestHooks defines callbacks for dispatch lifecycle events.
// All hooks are optional; nil hooks are simply not called.
type RequestHooks struct {
	// OnStart is called before the handler is invoked.
	OnStart func(ctx HookContext)
	// OnDone is called after the handler returns without error.
	OnDone func(ctx HookContext)
	// OnError is called after the handler returns an error.
	OnError func(ctx HookContext, err error)
}

// Merge combines two RequestHooks, creating a new set that calls both.
// The hooks from other run after the hooks from h.
func (h RequestHooks) Merge(other RequestHooks) RequestHooks {
	return RequestHooks{
		OnStart: chainHooks(h.OnStart, other.OnStart),
		OnDone:  chainHooks(h.OnDone, other.OnDone),
		OnError: chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainHooks(a, b func(HookContext)) func(HookContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx HookContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(HookContext, error)) func(HookContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx HookContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// Hook converts the callbacks into a TrackingHook suitable for Dependencies.
func (h RequestHooks) Hook() TrackingHook {
	return func(ctx context.Context, route string, next InvocationFunc) (any, error) {
		hookCtx := HookContext{
			Route:     route,
			StartedAt: time.Now(),
			Metadata:  metadataFromContext(ctx),
		}

		if h.OnStart != nil {
			h.OnStart(hookCtx)
		}

		value, err := next(ctx)

		hookCtx.Duration = time.Since(hookCtx.StartedAt)
		if err != nil {
			if h.OnError != nil {
				h.OnError(hookCtx, err)
			}
		} else {
			if h.OnDone != nil {
				h.OnDone(hookCtx)
			}
		}

		return value, err
	}
}

// LoggingHooks returns pre-built hooks that log dispatch lifecycle events.
func LoggingHooks(logger loggingpkg.ServiceLogger) RequestHooks {
	return RequestHooks{
		OnStart: func(ctx HookContext) {
			logger.Debug("Dispatch started", loggingpkg.LogFields{
				"route": ctx.Route,
			})
		},
		OnDone: func(ctx HookContext) {
			logger.Debug("Dispatch completed", loggingpkg.LogFields{
				"route":       ctx.Route,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
		OnError: func(ctx HookContext, err error) {
			logger.Error("Dispatch failed", err, loggingpkg.LogFields{
				"route":       ctx.Route,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks returns pre-built hooks that feed dispatch counters.
func MetricsHooks(onStart, onDone, onError func(route string)) RequestHooks {
	return RequestHooks{
		OnStart: func(ctx HookContext) {
			if onStart != nil {
				onStart(ctx.Route)
			}
		},
		OnDone: func(ctx HookContext) {
			if onDone != nil {
				onDone(ctx.Route)
			}
		},
		OnError: func(ctx HookContext, err error) {
			if onError != nil {
				onError(ctx.Route)
			}
		},
	}
}

type metadataContextKey struct{}

func contextWithMetadata(ctx context.Context, md metadatapkg.Metadata) context.Context {
	return context.WithValue(ctx, metadataContextKey{}, md)
}

func metadataFromContext(ctx context.Context) metadatapkg.Metadata {
	md, _ := ctx.Value(metadataContextKey{}).(metadatapkg.Metadata)
	return md
}
