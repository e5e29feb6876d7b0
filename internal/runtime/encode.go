package runtime

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/routewire/internal/runtime/errors"
	handlerspkg "github.com/drblury/routewire/internal/runtime/handlers"
	idspkg "github.com/drblury/routewire/internal/runtime/ids"
	"github.com/drblury/routewire/internal/runtime/jsoncodec"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

// encodeResult builds the outbound message for a successfully handled
// request. A handler may short-circuit encoding by returning raw bytes or a
// ResponseError value directly.
func encodeResult(md metadatapkg.Metadata, value any) (*message.Message, error) {
	switch v := value.(type) {
	case nil:
		return newOutbound(md, metadatapkg.FrameResponse, nil), nil
	case handlerspkg.None:
		return newOutbound(md, metadatapkg.FrameResponse, nil), nil
	case []byte:
		return newOutbound(md, metadatapkg.FrameResponse, v), nil
	case *errspkg.ResponseError:
		return encodeResponseError(md, v)
	case errspkg.ResponseError:
		return encodeResponseError(md, &v)
	default:
		payload, err := jsoncodec.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode response payload of type %T: %w", v, err)
		}
		return newOutbound(md, metadatapkg.FrameResponse, payload), nil
	}
}

// encodeResponseError builds an error frame carrying the code and message as
// a JSON payload.
func encodeResponseError(md metadatapkg.Metadata, respErr *errspkg.ResponseError) (*message.Message, error) {
	payload, err := jsoncodec.Marshal(respErr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode error payload: %w", err)
	}
	return newOutbound(md, metadatapkg.FrameError, payload), nil
}

// ErrorFrame builds an error reply for a failure raised outside a handler
// invocation, for transports that need to answer frames the engine rejected.
func ErrorFrame(md metadatapkg.Metadata, err error) (*message.Message, error) {
	var notImplemented *errspkg.NotImplementedError
	if errors.As(err, &notImplemented) {
		return encodeResponseError(md, notImplemented.Response())
	}

	var respErr *errspkg.ResponseError
	if errors.As(err, &respErr) {
		return encodeResponseError(md, respErr)
	}

	summary := failureSummary(err)
	return encodeResponseError(md, &errspkg.ResponseError{Code: errorCode(summary), Message: summary})
}

// newOutbound stamps a fresh ULID on the reply and copies the correlation id
// and route from the request frame so callers can match responses.
func newOutbound(md metadatapkg.Metadata, frame string, payload []byte) *message.Message {
	msg := message.NewMessage(idspkg.CreateULID(), payload)

	out := metadatapkg.New(metadatapkg.KeyFrame, frame)
	if corr := md.CorrelationID(); corr != "" {
		out[metadatapkg.KeyCorrelationID] = corr
	}
	if route := md.Route(); route != "" {
		out[metadatapkg.KeyRoute] = route
	}

	msg.Metadata = metadatapkg.ToWatermill(out)
	return msg
}
