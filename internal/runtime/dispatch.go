package runtime

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/routewire/internal/runtime/errors"
	loggingpkg "github.com/drblury/routewire/internal/runtime/logging"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

// Dispatch mode identifiers, used for interceptor info and metrics labels.
const (
	ModeMetadataPush    = "metadata-push"
	ModeFireAndForget   = "fire-and-forget"
	ModeRequestResponse = "request-response"
	ModeRequestStream   = "request-stream"
	ModeRequestChannel  = "request-channel"
)

// MetadataPush runs every registered metadata handler in registration order,
// each on an independent copy of the raw metadata bytes. Handler failures are
// logged and do not stop the remaining handlers; only cancellation aborts the
// sweep.
func (e *Engine) MetadataPush(ctx context.Context, raw []byte) error {
	for _, binding := range e.registry.MetadataHandlers() {
		if err := ctx.Err(); err != nil {
			return err
		}

		snapshot := append([]byte(nil), raw...)
		if err := binding.Handler(ctx, snapshot); err != nil {
			if isCancellation(ctx, err) {
				return err
			}
			e.Logger.Error("Metadata handler failed", err, loggingpkg.LogFields{
				"handler": binding.Name,
			})
		}
	}
	return nil
}

// FireAndForget dispatches a one-way frame. The message is released exactly
// once regardless of the handler result. Business errors are discarded
// without a trace; unexpected failures are logged with the route identifier.
// Cancellation propagates to the caller.
func (e *Engine) FireAndForget(ctx context.Context, msg *message.Message) error {
	if msg == nil {
		return errspkg.ErrMessageRequired
	}
	defer msg.Ack()

	md := metadatapkg.FromWatermill(msg.Metadata)

	entry, err := e.registry.Resolve(md.Route())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.Logger.Error("Fire-and-forget dispatch failed", err, loggingpkg.LogFields{
			"route": md.Route(),
		})
		return nil
	}

	_, invokeErr := e.invoke(ctx, ModeFireAndForget, entry, msg, md)

	out := classify(ctx, nil, invokeErr)
	switch out.kind {
	case outcomeCancelled:
		return out.cause
	case outcomeBusiness:
		// One-way callers get no response channel, so business errors are
		// dropped without logging.
	case outcomeSilent:
		e.Logger.Debug("Fire-and-forget handler reported an expected failure", loggingpkg.LogFields{
			"route": entry.binding.Route,
			"error": out.response.Message,
		})
	case outcomeFatal:
		e.Logger.Error("Fire-and-forget handler failed", out.cause, loggingpkg.LogFields{
			"route": entry.binding.Route,
		})
	}
	return nil
}

// RequestResponse dispatches a request frame and returns exactly one reply
// message, a response frame on success or an error frame on failure. The
// request is released exactly once. Cancellation returns (nil, err) and never
// produces an error frame.
func (e *Engine) RequestResponse(ctx context.Context, msg *message.Message) (*message.Message, error) {
	if msg == nil {
		return nil, errspkg.ErrMessageRequired
	}
	defer msg.Ack()

	md := metadatapkg.FromWatermill(msg.Metadata)

	entry, err := e.registry.Resolve(md.Route())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return e.unexpectedResponse(md, md.Route(), err)
	}

	value, invokeErr := e.invoke(ctx, ModeRequestResponse, entry, msg, md)

	out := classify(ctx, value, invokeErr)
	switch out.kind {
	case outcomeCancelled:
		return nil, out.cause

	case outcomeSuccess:
		resp, encErr := encodeResult(md, out.value)
		if encErr != nil {
			return e.unexpectedResponse(md, entry.binding.Route, encErr)
		}
		return resp, nil

	case outcomeBusiness:
		return encodeResponseError(md, out.response)

	case outcomeSilent:
		e.Logger.Debug("Request handler reported an expected failure", loggingpkg.LogFields{
			"route": entry.binding.Route,
			"error": out.response.Message,
		})
		return encodeResponseError(md, out.response)

	default:
		e.Logger.Error("Request handler failed", out.cause, loggingpkg.LogFields{
			"route": entry.binding.Route,
			"code":  out.response.Code,
		})
		return encodeResponseError(md, out.response)
	}
}

// RequestStream is not supported. The request is released exactly once before
// the failure is reported, so transports never leak the input frame.
func (e *Engine) RequestStream(ctx context.Context, msg *message.Message) (*message.Message, error) {
	if msg != nil {
		msg.Ack()
	}
	return nil, &errspkg.NotImplementedError{Mode: ModeRequestStream}
}

// RequestChannel is not supported. Every buffered request frame is released
// exactly once before the failure is reported.
func (e *Engine) RequestChannel(ctx context.Context, msgs []*message.Message) (*message.Message, error) {
	for _, msg := range msgs {
		if msg != nil {
			msg.Ack()
		}
	}
	return nil, &errspkg.NotImplementedError{Mode: ModeRequestChannel}
}

// unexpectedResponse logs an unexpected dispatch failure and converts it into
// an error frame with a derived code.
func (e *Engine) unexpectedResponse(md metadatapkg.Metadata, route string, err error) (*message.Message, error) {
	summary := failureSummary(err)
	respErr := &errspkg.ResponseError{Code: errorCode(summary), Message: summary}

	e.Logger.Error("Dispatch failed", err, loggingpkg.LogFields{
		"route": route,
		"code":  respErr.Code,
	})
	return encodeResponseError(md, respErr)
}

func isCancellation(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return ctx.Err() != nil
}
