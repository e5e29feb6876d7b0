package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	errspkg "github.com/drblury/routewire/internal/runtime/errors"
)

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeBusiness
	outcomeCancelled
	outcomeSilent
	outcomeFatal
)

// outcome is the classified result of a handler invocation. Exactly one of
// value (success) or response (any failure other than cancellation) carries
// the data that reaches the caller.
type outcome struct {
	kind     outcomeKind
	value    any
	response *errspkg.ResponseError
	cause    error
}

// classify maps an invocation result onto the dispatch taxonomy. Cancellation
// is checked before anything else so it can never be converted into an error
// response.
func classify(ctx context.Context, value any, err error) outcome {
	if err == nil {
		return outcome{kind: outcomeSuccess, value: value}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return outcome{kind: outcomeCancelled, cause: err}
	}

	var respErr *errspkg.ResponseError
	if errors.As(err, &respErr) {
		return outcome{kind: outcomeBusiness, response: respErr, cause: err}
	}

	var silent *errspkg.SilentError
	if errors.As(err, &silent) {
		summary := failureSummary(silent.Err)
		return outcome{
			kind:     outcomeSilent,
			response: &errspkg.ResponseError{Code: errorCode(summary), Message: summary},
			cause:    err,
		}
	}

	summary := failureSummary(err)
	return outcome{
		kind:     outcomeFatal,
		response: &errspkg.ResponseError{Code: errorCode(summary), Message: summary},
		cause:    err,
	}
}

const summaryLimit = 160

// failureSummary renders a short fixed-format description of a failure: the
// concrete type name and the first line of its message. Stack traces and
// wrapped internals never reach the client.
func failureSummary(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	summary := fmt.Sprintf("%T: %s", err, msg)
	if len(summary) > summaryLimit {
		summary = summary[:summaryLimit]
	}
	return summary
}

// errorCode derives the client-visible code from a failure summary. The same
// failure always maps to the same code, so clients can match on it without
// the server leaking error internals.
func errorCode(summary string) int32 {
	return int32(xxhash.Sum64String(summary) & 0x7fffffff)
}
