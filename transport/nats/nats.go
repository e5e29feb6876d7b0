// Package nats provides a NATS Core transport for routewire. Replies are
// sent to the per-message reply subject, so request frames work with plain
// NATS request/reply semantics.
package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	runtimepkg "github.com/drblury/routewire/internal/runtime"
	idspkg "github.com/drblury/routewire/internal/runtime/ids"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
	"github.com/drblury/routewire/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

// QueueGroup is the queue group all servers join, so a subject is load
// balanced across instances.
const QueueGroup = "routewire"

// headerUUID carries the watermill message id across the wire.
const headerUUID = "rw_uuid"

// ConnectFactory allows overriding the connection creation for testing.
var ConnectFactory = func(url string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name("routewire"))
}

// Register registers the NATS transport with the default registry.
// Call it from an init() function in an importing package, or explicitly
// before building the transport.
func Register() {
	transport.Register(TransportName, Build)
}

// Build creates a new NATS transport server.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Server, error) {
	if cfg.GetNATSURL() == "" {
		return nil, errors.New("nats: URL is required")
	}
	return &Server{
		url:     cfg.GetNATSURL(),
		subject: cfg.GetNATSSubject(),
		logger:  logger,
	}, nil
}

// Server subscribes to the configured subject and feeds inbound frames into
// a Responder.
type Server struct {
	url     string
	subject string
	logger  watermill.LoggerAdapter
}

// Serve connects, subscribes, and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context, responder transport.Responder) error {
	conn, err := ConnectFactory(s.url)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	defer func() {
		if drainErr := conn.Drain(); drainErr != nil {
			s.logger.Error("Failed to drain nats connection", drainErr, nil)
		}
	}()

	sub, err := conn.QueueSubscribe(s.subject, QueueGroup, func(natsMsg *nats.Msg) {
		s.handle(ctx, responder, natsMsg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", s.subject, err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	s.logger.Info("NATS transport serving", watermill.LogFields{"subject": s.subject})
	<-ctx.Done()
	return ctx.Err()
}

func (s *Server) handle(ctx context.Context, responder transport.Responder, natsMsg *nats.Msg) {
	msg := toWatermill(natsMsg)

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
		s.reply(ctx, natsMsg, msg, resp, err)

	case metadatapkg.FrameRequestStream:
		resp, err := responder.RequestStream(ctx, msg)
		s.reply(ctx, natsMsg, msg, resp, err)

	case metadatapkg.FrameRequestChannel:
		resp, err := responder.RequestChannel(ctx, []*message.Message{msg})
		s.reply(ctx, natsMsg, msg, resp, err)

	default:
		s.logger.Error("Unknown frame kind", errors.New("unknown frame kind"), watermill.LogFields{
			"uuid":  msg.UUID,
			"frame": msg.Metadata.Get(metadatapkg.KeyFrame),
		})
		msg.Ack()
	}
}

// reply answers on the NATS reply subject, converting dispatch errors into
// error frames. Cancellation produces no reply.
func (s *Server) reply(ctx context.Context, natsMsg *nats.Msg, req *message.Message, resp *message.Message, err error) {
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

	if natsMsg.Reply == "" {
		s.logger.Error("Request frame has no reply subject", errors.New("missing reply subject"), watermill.LogFields{
			"uuid": req.UUID,
		})
		return
	}

	if respondErr := natsMsg.RespondMsg(fromWatermill(natsMsg.Reply, resp)); respondErr != nil {
		s.logger.Error("Failed to publish reply", respondErr, watermill.LogFields{"subject": natsMsg.Reply})
	}
}

// toWatermill converts an inbound NATS message. Header keys are read from
// the map directly because nats.Header.Get canonicalises keys, which would
// break the lower-case metadata keys.
func toWatermill(natsMsg *nats.Msg) *message.Message {
	uuid := ""
	if values := natsMsg.Header[headerUUID]; len(values) > 0 {
		uuid = values[0]
	}
	if uuid == "" {
		uuid = idspkg.CreateULID()
	}

	msg := message.NewMessage(uuid, natsMsg.Data)
	for key, values := range natsMsg.Header {
		if key == headerUUID || len(values) == 0 {
			continue
		}
		msg.Metadata.Set(key, values[0])
	}
	return msg
}

// fromWatermill converts an outbound message to NATS, writing header keys
// into the map directly to keep their exact case.
func fromWatermill(subject string, msg *message.Message) *nats.Msg {
	out := nats.NewMsg(subject)
	out.Data = msg.Payload
	out.Header[headerUUID] = []string{msg.UUID}
	for key, value := range msg.Metadata {
		out.Header[key] = []string{value}
	}
	return out
}
