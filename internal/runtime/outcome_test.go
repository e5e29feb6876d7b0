package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	errspkg "github.com/drblury/routewire/internal/runtime/errors"
)

func TestClassifySuccess(t *testing.T) {
	out := classify(context.Background(), "value", nil)
	if out.kind != outcomeSuccess {
		t.Fatalf("expected success, got %d", out.kind)
	}
	if out.value != "value" {
		t.Fatalf("unexpected value %v", out.value)
	}
}

func TestClassifyCancellationWinsOverResponseError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fmt.Errorf("wrapped: %w", context.Canceled)
	out := classify(ctx, nil, err)
	if out.kind != outcomeCancelled {
		t.Fatalf("expected cancelled, got %d", out.kind)
	}
	if !errors.Is(out.cause, context.Canceled) {
		t.Fatalf("expected the cancellation cause, got %v", out.cause)
	}

	// Even a business error is treated as cancellation once the context is done.
	out = classify(ctx, nil, &errspkg.ResponseError{Code: 1, Message: "too late"})
	if out.kind != outcomeCancelled {
		t.Fatalf("expected cancelled for failure under a done context, got %d", out.kind)
	}
}

func TestClassifyBusinessError(t *testing.T) {
	respErr := &errspkg.ResponseError{Code: 42, Message: "quota exceeded"}
	out := classify(context.Background(), nil, fmt.Errorf("handler: %w", respErr))
	if out.kind != outcomeBusiness {
		t.Fatalf("expected business, got %d", out.kind)
	}
	if out.response != respErr {
		t.Fatalf("expected the original response error, got %+v", out.response)
	}
}

func TestClassifySilentError(t *testing.T) {
	cause := errors.New("record not found")
	out := classify(context.Background(), nil, errspkg.Silent(cause))
	if out.kind != outcomeSilent {
		t.Fatalf("expected silent, got %d", out.kind)
	}
	if out.response.Message != failureSummary(cause) {
		t.Fatalf("expected the inner error summary, got %q", out.response.Message)
	}
}

func TestClassifyFatalError(t *testing.T) {
	err := errors.New("boom")
	out := classify(context.Background(), nil, err)
	if out.kind != outcomeFatal {
		t.Fatalf("expected fatal, got %d", out.kind)
	}
	if out.response.Code != errorCode(failureSummary(err)) {
		t.Fatalf("unexpected code %d", out.response.Code)
	}
}

func TestFailureSummaryKeepsFirstLineOnly(t *testing.T) {
	err := errors.New("boom\nsecret stack frame")
	summary := failureSummary(err)
	if summary != "*errors.errorString: boom" {
		t.Fatalf("unexpected summary %q", summary)
	}
	if strings.Contains(summary, "stack") {
		t.Fatal("summary must not contain anything past the first line")
	}
}

func TestFailureSummaryTruncates(t *testing.T) {
	err := errors.New(strings.Repeat("x", 500))
	summary := failureSummary(err)
	if len(summary) != summaryLimit {
		t.Fatalf("expected %d bytes, got %d", summaryLimit, len(summary))
	}
}

func TestErrorCodeStableAndNonNegative(t *testing.T) {
	a := errorCode("*errors.errorString: boom")
	b := errorCode("*errors.errorString: boom")
	if a != b {
		t.Fatalf("expected a stable code, got %d and %d", a, b)
	}
	if a < 0 {
		t.Fatalf("expected a non-negative code, got %d", a)
	}
	if errorCode("a different failure") == a {
		t.Fatal("expected different summaries to map to different codes")
	}
}
