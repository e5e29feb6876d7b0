package runtime

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	configpkg "github.com/drblury/routewire/internal/runtime/config"
	handlerspkg "github.com/drblury/routewire/internal/runtime/handlers"
	loggingpkg "github.com/drblury/routewire/internal/runtime/logging"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

func newTestEngine(t *testing.T, routes []handlerspkg.RouteBinding, metadataHandlers []handlerspkg.MetadataBinding, deps Dependencies) *Engine {
	t.Helper()

	e, err := TryNewEngine(&configpkg.Config{Transport: "channel"}, loggingpkg.Nop(), routes, metadataHandlers, deps)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return e
}

func newCaptureEngine(t *testing.T, routes []handlerspkg.RouteBinding, metadataHandlers []handlerspkg.MetadataBinding) (*Engine, *watermill.CaptureLoggerAdapter) {
	t.Helper()

	capture := watermill.NewCaptureLogger()
	e, err := TryNewEngine(
		&configpkg.Config{Transport: "channel"},
		loggingpkg.NewWatermillServiceLogger(capture),
		routes,
		metadataHandlers,
		Dependencies{DisableDefaultInterceptors: true},
	)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return e, capture
}

func routeBinding(route string, fn func(ctx context.Context, payload []byte) (any, error)) handlerspkg.RouteBinding {
	return handlerspkg.RouteBinding{
		Route: route,
		Invoke: func(ctx context.Context, payload []byte, md metadatapkg.Metadata) (any, error) {
			return fn(ctx, payload)
		},
	}
}

func newRequestMessage(route string, payload []byte) *message.Message {
	msg := message.NewMessage("req-1", payload)
	msg.Metadata.Set(metadatapkg.KeyRoute, route)
	msg.Metadata.Set(metadatapkg.KeyFrame, metadatapkg.FrameRequest)
	msg.Metadata.Set(metadatapkg.KeyCorrelationID, "corr-1")
	return msg
}

func assertReleased(t *testing.T, msg *message.Message) {
	t.Helper()

	select {
	case <-msg.Acked():
	default:
		t.Fatal("expected the message to be released")
	}
}

func capturedErrorCount(capture *watermill.CaptureLoggerAdapter) int {
	return len(capture.Captured()[watermill.ErrorLogLevel])
}
