package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	runtimepkg "github.com/drblury/routewire/internal/runtime"
	configpkg "github.com/drblury/routewire/internal/runtime/config"
	errspkg "github.com/drblury/routewire/internal/runtime/errors"
	handlerspkg "github.com/drblury/routewire/internal/runtime/handlers"
	"github.com/drblury/routewire/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/routewire/internal/runtime/logging"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
	"github.com/drblury/routewire/transport"
)

func startServer(t *testing.T, routes []handlerspkg.RouteBinding, metadataHandlers []handlerspkg.MetadataBinding) (*Server, context.CancelFunc) {
	t.Helper()

	conf := &configpkg.Config{Transport: TransportName}
	engine, err := runtimepkg.TryNewEngine(conf, loggingpkg.Nop(), routes, metadataHandlers, runtimepkg.Dependencies{
		DisableDefaultInterceptors: true,
	})
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	server, err := Build(ctx, conf, watermill.NopLogger{})
	if err != nil {
		cancel()
		t.Fatalf("failed to build transport: %v", err)
	}

	channelServer := server.(*Server)
	go func() {
		_ = channelServer.Serve(ctx, engine)
	}()

	select {
	case <-channelServer.Ready():
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("server did not become ready")
	}

	return channelServer, cancel
}

func TestTransportRegistered(t *testing.T) {
	if !transport.DefaultRegistry.Has(TransportName) {
		t.Fatal("expected the channel transport to self-register")
	}
}

func TestEndToEndRequestResponse(t *testing.T) {
	type greeting struct {
		Name string `json:"name"`
	}
	type reply struct {
		Message string `json:"message"`
	}

	binding, err := handlerspkg.BuildRouteBinding(handlerspkg.RequestRegistration[greeting, handlerspkg.None, reply]{
		Route: "greet",
		Handler: func(ctx context.Context, req handlerspkg.RequestContext[greeting, handlerspkg.None]) (reply, error) {
			return reply{Message: "hello " + req.Payload.Name}, nil
		},
	}, loggingpkg.Nop())
	if err != nil {
		t.Fatalf("failed to build binding: %v", err)
	}

	server, cancel := startServer(t, []handlerspkg.RouteBinding{binding}, nil)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()

	resp, err := NewRequester(server).Request(ctx, "greet", []byte(`{"name":"wire"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if got := resp.Metadata.Get(metadatapkg.KeyFrame); got != metadatapkg.FrameResponse {
		t.Fatalf("expected a response frame, got %q", got)
	}
	if resp.Metadata.Get(metadatapkg.KeyCorrelationID) == "" {
		t.Fatal("expected the correlation id to carry over")
	}

	var decoded reply
	if err := jsoncodec.Unmarshal(resp.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	if decoded.Message != "hello wire" {
		t.Fatalf("unexpected reply %+v", decoded)
	}
}

func TestEndToEndBusinessError(t *testing.T) {
	binding, err := handlerspkg.BuildRouteBinding(handlerspkg.RequestRegistration[handlerspkg.None, handlerspkg.None, handlerspkg.None]{
		Route: "deny",
		Handler: func(ctx context.Context, req handlerspkg.RequestContext[handlerspkg.None, handlerspkg.None]) (handlerspkg.None, error) {
			return handlerspkg.None{}, &errspkg.ResponseError{Code: 42, Message: "quota exceeded"}
		},
	}, loggingpkg.Nop())
	if err != nil {
		t.Fatalf("failed to build binding: %v", err)
	}

	server, cancel := startServer(t, []handlerspkg.RouteBinding{binding}, nil)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()

	resp, err := NewRequester(server).Request(ctx, "deny", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if got := resp.Metadata.Get(metadatapkg.KeyFrame); got != metadatapkg.FrameError {
		t.Fatalf("expected an error frame, got %q", got)
	}

	var decoded errspkg.ResponseError
	if err := jsoncodec.Unmarshal(resp.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if decoded.Code != 42 || decoded.Message != "quota exceeded" {
		t.Fatalf("unexpected error payload %+v", decoded)
	}
}

func TestEndToEndStreamAndChannelNotImplemented(t *testing.T) {
	server, cancel := startServer(t, nil, nil)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()

	requester := NewRequester(server)
	for name, request := range map[string]func() (*decodedReply, error){
		"stream": func() (*decodedReply, error) {
			resp, err := requester.RequestStream(ctx, "any", nil)
			return decodeReply(resp), err
		},
		"channel": func() (*decodedReply, error) {
			resp, err := requester.RequestChannel(ctx, "any", nil)
			return decodeReply(resp), err
		},
	} {
		reply, err := request()
		if err != nil {
			t.Fatalf("%s: request failed: %v", name, err)
		}
		if reply.frame != metadatapkg.FrameError {
			t.Fatalf("%s: expected an error frame, got %q", name, reply.frame)
		}
		if reply.response.Code != errspkg.CodeNotImplemented {
			t.Fatalf("%s: expected code %d, got %d", name, errspkg.CodeNotImplemented, reply.response.Code)
		}
	}
}

type decodedReply struct {
	frame    string
	response errspkg.ResponseError
}

func decodeReply(resp *message.Message) *decodedReply {
	if resp == nil {
		return &decodedReply{}
	}
	decoded := &decodedReply{frame: resp.Metadata.Get(metadatapkg.KeyFrame)}
	_ = jsoncodec.Unmarshal(resp.Payload, &decoded.response)
	return decoded
}

func TestEndToEndFireAndForget(t *testing.T) {
	handled := make(chan []byte, 1)

	binding, err := handlerspkg.BuildRouteBinding(handlerspkg.RequestRegistration[[]byte, handlerspkg.None, handlerspkg.None]{
		Route: "audit",
		Handler: func(ctx context.Context, req handlerspkg.RequestContext[[]byte, handlerspkg.None]) (handlerspkg.None, error) {
			handled <- req.Payload
			return handlerspkg.None{}, nil
		},
	}, loggingpkg.Nop())
	if err != nil {
		t.Fatalf("failed to build binding: %v", err)
	}

	server, cancel := startServer(t, []handlerspkg.RouteBinding{binding}, nil)
	defer cancel()

	if err := NewRequester(server).Fire(context.Background(), "audit", []byte("event")); err != nil {
		t.Fatalf("fire failed: %v", err)
	}

	select {
	case payload := <-handled:
		if string(payload) != "event" {
			t.Fatalf("unexpected payload %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestEndToEndMetadataPush(t *testing.T) {
	received := make(chan metadatapkg.Metadata, 1)

	server, cancel := startServer(t, nil, []handlerspkg.MetadataBinding{
		{Name: "collector", Handler: func(ctx context.Context, raw []byte) error {
			md, err := metadatapkg.DecodeRaw(raw)
			if err != nil {
				return err
			}
			received <- md
			return nil
		}},
	})
	defer cancel()

	md := metadatapkg.New("region", "eu-west-1")
	if err := NewRequester(server).PushMetadata(context.Background(), md); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	select {
	case got := <-received:
		if got["region"] != "eu-west-1" {
			t.Fatalf("unexpected metadata %v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("metadata handler was not invoked")
	}
}
