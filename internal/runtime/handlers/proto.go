package handlers

import (
	"context"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	errspkg "github.com/drblury/routewire/internal/runtime/errors"
	loggingpkg "github.com/drblury/routewire/internal/runtime/logging"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

var protoJSONMarshalOptions = protojson.MarshalOptions{
	EmitUnpopulated: true,
}

// ProtoRequestContext provides strongly typed access to a protobuf payload.
// The wire form stays JSON; protojson bridges it to the message type.
type ProtoRequestContext[P proto.Message] struct {
	MessageContextBase
	Payload P
}

// ProtoRequestHandler processes a typed protobuf payload. Returning a nil
// message produces an empty response payload.
type ProtoRequestHandler[P proto.Message] func(ctx context.Context, req ProtoRequestContext[P]) (proto.Message, error)

// ProtoRequestRegistration wires a protobuf-typed route handler.
type ProtoRequestRegistration[P proto.Message] struct {
	Route   string
	Handler ProtoRequestHandler[P]
}

// BuildProtoRouteBinding converts the typed registration into an untyped
// registry entry. The response message is protojson-encoded at invocation and
// passed through the encoder as a raw payload.
func BuildProtoRouteBinding[P proto.Message](cfg ProtoRequestRegistration[P], logger loggingpkg.ServiceLogger) (RouteBinding, error) {
	if cfg.Handler == nil {
		return RouteBinding{}, errspkg.ErrHandlerRequired
	}
	if cfg.Route == "" {
		return RouteBinding{}, errspkg.ErrRouteRequired
	}

	var zero P
	prototype, err := ensurePrototype(zero)
	if err != nil {
		return RouteBinding{}, err
	}

	invoke := func(ctx context.Context, payload []byte, md metadatapkg.Metadata) (any, error) {
		typed, err := clonePrototype(prototype)
		if err != nil {
			return nil, err
		}

		if err := protojson.Unmarshal(payload, typed); err != nil {
			return nil, fmt.Errorf("failed to bind %T payload for route %q: %w", prototype, cfg.Route, err)
		}

		req := ProtoRequestContext[P]{
			MessageContextBase: MessageContextBase{
				Metadata: md,
				Logger:   logger,
			},
			Payload: typed,
		}

		out, err := cfg.Handler(ctx, req)
		if err != nil {
			return nil, err
		}
		if isNilProto(out) {
			return None{}, nil
		}

		encoded, err := protoJSONMarshalOptions.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T response for route %q: %w", out, cfg.Route, err)
		}
		return encoded, nil
	}

	return RouteBinding{Route: cfg.Route, Invoke: invoke}, nil
}

func clonePrototype[P proto.Message](prototype P) (P, error) {
	if isNilProto(prototype) {
		var zero P
		return zero, errspkg.ErrHandlerRequired
	}

	cloned := proto.Clone(prototype)
	proto.Reset(cloned)

	typed, ok := cloned.(P)
	if !ok {
		var zero P
		return zero, fmt.Errorf("unexpected prototype type %T", cloned)
	}

	return typed, nil
}

func ensurePrototype[P proto.Message](candidate P) (P, error) {
	if !isNilProto(candidate) {
		return candidate, nil
	}

	var zero P
	typ := reflect.TypeOf(candidate)
	if typ == nil {
		return zero, errspkg.ErrPointerNeeded
	}
	if typ.Kind() != reflect.Ptr {
		return zero, errspkg.ErrPointerNeeded
	}

	inst := reflect.New(typ.Elem()).Interface()
	typed, ok := inst.(P)
	if !ok {
		return zero, fmt.Errorf("unexpected prototype type %s", typ)
	}
	return typed, nil
}

func isNilProto[P proto.Message](prototype P) bool {
	msg := proto.Message(prototype)
	if msg == nil {
		return true
	}

	val := reflect.ValueOf(msg)
	switch val.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}
