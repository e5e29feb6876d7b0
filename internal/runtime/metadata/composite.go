package metadata

import (
	jsoncodec "github.com/drblury/routewire/internal/runtime/jsoncodec"
)

// Well-known composite metadata keys. These keys are reserved and should not
// be used for custom entries.
const (
	// KeyRoute carries the route tag selecting the handler.
	KeyRoute = "rw_route"

	// KeyFrame identifies the interaction mode of a frame on the wire.
	KeyFrame = "rw_frame"

	// KeyReplyTo names the topic or subject a response should be sent to.
	KeyReplyTo = "rw_reply_to"

	// KeyCorrelationID tracks a response back to its request.
	KeyCorrelationID = "correlation_id"

	// MimeJSON keys the typed metadata entry inside the composite frame.
	MimeJSON = "application/json"
)

// Frame kinds carried under KeyFrame.
const (
	FrameMetadataPush   = "metadata"
	FrameFireAndForget  = "fnf"
	FrameRequest        = "request"
	FrameRequestStream  = "stream"
	FrameRequestChannel = "channel"
	FrameResponse       = "response"
	FrameError          = "error"
)

// Route returns the route tag, or "" when absent.
func (m Metadata) Route() string {
	return m[KeyRoute]
}

// Frame returns the frame kind, or "" when absent.
func (m Metadata) Frame() string {
	return m[KeyFrame]
}

// CorrelationID returns the correlation identifier, or "" when absent.
func (m Metadata) CorrelationID() string {
	return m[KeyCorrelationID]
}

// TypedEntry returns the JSON typed metadata entry and whether one was sent.
func (m Metadata) TypedEntry() (string, bool) {
	entry, ok := m[MimeJSON]
	return entry, ok
}

// EncodeRaw renders the composite metadata as raw bytes. Each call produces an
// independent buffer, so metadata handlers can never observe each other's
// mutations.
func EncodeRaw(m Metadata) ([]byte, error) {
	if m == nil {
		m = Metadata{}
	}
	return jsoncodec.Marshal(m)
}

// DecodeRaw parses raw metadata bytes produced by EncodeRaw.
func DecodeRaw(raw []byte) (Metadata, error) {
	md := Metadata{}
	if len(raw) == 0 {
		return md, nil
	}
	if err := jsoncodec.Unmarshal(raw, &md); err != nil {
		return nil, err
	}
	return md, nil
}
