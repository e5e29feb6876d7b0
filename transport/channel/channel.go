// Package channel provides an in-memory Go channel transport for routewire.
// This transport is useful for testing and local development.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	runtimepkg "github.com/drblury/routewire/internal/runtime"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
	"github.com/drblury/routewire/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// RequestTopic is the in-memory topic inbound frames arrive on.
const RequestTopic = "routewire.requests"

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(cfg, logger)
}

func init() {
	transport.Register(TransportName, Build)
}

// Build creates a new Go channel transport server.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Server, error) {
	pubSub := Factory(gochannel.Config{OutputChannelBuffer: cfg.GetChannelBuffer()}, logger)
	return &Server{
		pubSub: pubSub,
		logger: logger,
		topic:  RequestTopic,
		ready:  make(chan struct{}),
	}, nil
}

// Server reads frames from the request topic and feeds them into a
// Responder. Replies are published to the topic named in the frame's
// reply-to metadata entry.
type Server struct {
	pubSub *gochannel.GoChannel
	logger watermill.LoggerAdapter
	topic  string
	ready  chan struct{}
}

// PubSub exposes the underlying in-memory pub/sub so embedding applications
// can publish frames and subscribe to replies.
func (s *Server) PubSub() *gochannel.GoChannel { return s.pubSub }

// Ready is closed once the server is subscribed to the request topic.
// Frames published before that are dropped by the in-memory pub/sub.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Serve blocks until the context is cancelled or the subscription closes.
func (s *Server) Serve(ctx context.Context, responder transport.Responder) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", s.topic, err)
	}
	close(s.ready)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.handle(ctx, responder, msg)
		}
	}
}

func (s *Server) handle(ctx context.Context, responder transport.Responder, msg *message.Message) {
	switch msg.Metadata.Get(metadatapkg.KeyFrame) {
	case metadatapkg.FrameMetadataPush:
		if err := responder.MetadataPush(ctx, msg.Payload); err != nil {
			s.logger.Error("Metadata push failed", err, watermill.LogFields{"uuid": msg.UUID})
		}
		msg.Ack()

	case metadatapkg.FrameFireAndForget:
		if err := responder.FireAndForget(ctx, msg); err != nil {
			s.logger.Error("Fire-and-forget dispatch failed", err, watermill.LogFields{"uuid": msg.UUID})
		}

	case metadatapkg.FrameRequest:
		resp, err := responder.RequestResponse(ctx, msg)
		s.reply(ctx, msg, resp, err)

	case metadatapkg.FrameRequestStream:
		resp, err := responder.RequestStream(ctx, msg)
		s.reply(ctx, msg, resp, err)

	case metadatapkg.FrameRequestChannel:
		resp, err := responder.RequestChannel(ctx, []*message.Message{msg})
		s.reply(ctx, msg, resp, err)

	default:
		s.logger.Error("Unknown frame kind", errors.New("unknown frame kind"), watermill.LogFields{
			"uuid":  msg.UUID,
			"frame": msg.Metadata.Get(metadatapkg.KeyFrame),
		})
		msg.Ack()
	}
}

// reply publishes the response, converting dispatch errors into error frames.
// Cancellation produces no reply.
func (s *Server) reply(ctx context.Context, req *message.Message, resp *message.Message, err error) {
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		md := metadatapkg.FromWatermill(req.Metadata)
		frame, buildErr := runtimepkg.ErrorFrame(md, err)
		if buildErr != nil {
			s.logger.Error("Failed to build error frame", buildErr, watermill.LogFields{"uuid": req.UUID})
			return
		}
		resp = frame
	}
	if resp == nil {
		return
	}

	replyTo := req.Metadata.Get(metadatapkg.KeyReplyTo)
	if replyTo == "" {
		s.logger.Error("Request frame has no reply-to", errors.New("missing reply-to"), watermill.LogFields{
			"uuid": req.UUID,
		})
		return
	}

	if pubErr := s.pubSub.Publish(replyTo, resp); pubErr != nil {
		s.logger.Error("Failed to publish reply", pubErr, watermill.LogFields{"topic": replyTo})
	}
}
