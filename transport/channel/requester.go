package channel

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	idspkg "github.com/drblury/routewire/internal/runtime/ids"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

// Requester is a small client for the in-memory transport. Embedding
// applications and tests use it to push frames into a running Server.
type Requester struct {
	server *Server
}

// NewRequester creates a client bound to the server's pub/sub.
func NewRequester(server *Server) *Requester {
	return &Requester{server: server}
}

// Request sends a request frame and blocks until the reply arrives or the
// context is cancelled. The reply carries either a response or an error
// frame; inspect its frame metadata to tell them apart.
func (r *Requester) Request(ctx context.Context, route string, payload []byte) (*message.Message, error) {
	return r.roundTrip(ctx, metadatapkg.FrameRequest, route, payload)
}

// RequestStream sends a streamed-response request frame. The transport
// answers with an error frame carrying the not-implemented condition.
func (r *Requester) RequestStream(ctx context.Context, route string, payload []byte) (*message.Message, error) {
	return r.roundTrip(ctx, metadatapkg.FrameRequestStream, route, payload)
}

// RequestChannel sends a bidirectional-channel request frame. The transport
// answers with an error frame carrying the not-implemented condition.
func (r *Requester) RequestChannel(ctx context.Context, route string, payload []byte) (*message.Message, error) {
	return r.roundTrip(ctx, metadatapkg.FrameRequestChannel, route, payload)
}

// Fire sends a one-way frame. There is no reply.
func (r *Requester) Fire(ctx context.Context, route string, payload []byte) error {
	msg := r.newFrame(metadatapkg.FrameFireAndForget, route, payload)
	if err := r.server.PubSub().Publish(r.server.topic, msg); err != nil {
		return fmt.Errorf("failed to publish frame: %w", err)
	}
	return nil
}

// PushMetadata broadcasts a metadata frame to all registered metadata
// handlers.
func (r *Requester) PushMetadata(ctx context.Context, md metadatapkg.Metadata) error {
	raw, err := metadatapkg.EncodeRaw(md)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	msg := message.NewMessage(idspkg.CreateULID(), raw)
	msg.Metadata.Set(metadatapkg.KeyFrame, metadatapkg.FrameMetadataPush)

	if err := r.server.PubSub().Publish(r.server.topic, msg); err != nil {
		return fmt.Errorf("failed to publish frame: %w", err)
	}
	return nil
}

func (r *Requester) roundTrip(ctx context.Context, frame, route string, payload []byte) (*message.Message, error) {
	replyTopic := "routewire.replies." + idspkg.CreateULID()
	replies, err := r.server.PubSub().Subscribe(ctx, replyTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply topic: %w", err)
	}

	msg := r.newFrame(frame, route, payload)
	msg.Metadata.Set(metadatapkg.KeyReplyTo, replyTopic)

	if err := r.server.PubSub().Publish(r.server.topic, msg); err != nil {
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply, ok := <-replies:
		if !ok {
			return nil, ctx.Err()
		}
		reply.Ack()
		return reply, nil
	}
}

func (r *Requester) newFrame(frame, route string, payload []byte) *message.Message {
	msg := message.NewMessage(idspkg.CreateULID(), payload)
	msg.Metadata.Set(metadatapkg.KeyFrame, frame)
	msg.Metadata.Set(metadatapkg.KeyRoute, route)
	msg.Metadata.Set(metadatapkg.KeyCorrelationID, msg.UUID)
	return msg
}
