package handlers

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	errspkg "github.com/drblury/routewire/internal/runtime/errors"
	loggingpkg "github.com/drblury/routewire/internal/runtime/logging"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

func TestBuildProtoRouteBindingValidation(t *testing.T) {
	_, err := BuildProtoRouteBinding(ProtoRequestRegistration[*structpb.Struct]{Route: "a"}, loggingpkg.Nop())
	if !errors.Is(err, errspkg.ErrHandlerRequired) {
		t.Fatalf("expected ErrHandlerRequired, got %v", err)
	}

	_, err = BuildProtoRouteBinding(ProtoRequestRegistration[*structpb.Struct]{
		Handler: func(ctx context.Context, req ProtoRequestContext[*structpb.Struct]) (proto.Message, error) {
			return nil, nil
		},
	}, loggingpkg.Nop())
	if !errors.Is(err, errspkg.ErrRouteRequired) {
		t.Fatalf("expected ErrRouteRequired, got %v", err)
	}
}

func TestProtoBindingRoundTrip(t *testing.T) {
	binding, err := BuildProtoRouteBinding(ProtoRequestRegistration[*structpb.Struct]{
		Route: "echo.proto",
		Handler: func(ctx context.Context, req ProtoRequestContext[*structpb.Struct]) (proto.Message, error) {
			name := req.Payload.Fields["name"].GetStringValue()
			return wrapperspb.String("hello " + name), nil
		},
	}, loggingpkg.Nop())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	out, err := binding.Invoke(context.Background(), []byte(`{"name":"routewire"}`), metadatapkg.Metadata{})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}

	encoded, ok := out.([]byte)
	if !ok {
		t.Fatalf("expected raw encoded response, got %T", out)
	}
	if string(encoded) != `"hello routewire"` {
		t.Fatalf("unexpected encoded response %s", encoded)
	}
}

func TestProtoBindingNilResponseIsEmpty(t *testing.T) {
	binding, err := BuildProtoRouteBinding(ProtoRequestRegistration[*structpb.Struct]{
		Route: "drop",
		Handler: func(ctx context.Context, req ProtoRequestContext[*structpb.Struct]) (proto.Message, error) {
			return nil, nil
		},
	}, loggingpkg.Nop())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	out, err := binding.Invoke(context.Background(), []byte(`{}`), metadatapkg.Metadata{})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if _, ok := out.(None); !ok {
		t.Fatalf("expected None for nil response, got %T", out)
	}
}

func TestProtoBindingDecodeFailure(t *testing.T) {
	binding, err := BuildProtoRouteBinding(ProtoRequestRegistration[*structpb.Struct]{
		Route: "echo.proto",
		Handler: func(ctx context.Context, req ProtoRequestContext[*structpb.Struct]) (proto.Message, error) {
			t.Fatal("handler must not run when binding fails")
			return nil, nil
		},
	}, loggingpkg.Nop())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if _, err := binding.Invoke(context.Background(), []byte(`{`), metadatapkg.Metadata{}); err == nil {
		t.Fatal("expected decode failure")
	}
}

func TestProtoBindingAllocatesPerMessage(t *testing.T) {
	var payloads []*structpb.Struct
	binding, err := BuildProtoRouteBinding(ProtoRequestRegistration[*structpb.Struct]{
		Route: "collect",
		Handler: func(ctx context.Context, req ProtoRequestContext[*structpb.Struct]) (proto.Message, error) {
			payloads = append(payloads, req.Payload)
			return nil, nil
		},
	}, loggingpkg.Nop())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	for _, raw := range []string{`{"n":1}`, `{"n":2}`} {
		if _, err := binding.Invoke(context.Background(), []byte(raw), metadatapkg.Metadata{}); err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
	}

	if payloads[0] == payloads[1] {
		t.Fatal("expected a fresh message per invocation")
	}
	if payloads[0].Fields["n"].GetNumberValue() != 1 || payloads[1].Fields["n"].GetNumberValue() != 2 {
		t.Fatalf("unexpected payloads %v %v", payloads[0], payloads[1])
	}
}
