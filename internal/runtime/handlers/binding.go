package handlers

import (
	"context"

	errspkg "github.com/drblury/routewire/internal/runtime/errors"
	jsoncodec "github.com/drblury/routewire/internal/runtime/jsoncodec"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

// None marks an absent parameter or a no-value return. A handler registered
// with None for its payload or metadata type declares that it does not bind
// that parameter; a handler returning None produces an empty response payload.
type None struct{}

// RouteBinding is the untyped registry entry for a route handler. Invoke
// carries the decode closures built at registration time, so dispatch never
// inspects parameter types per message.
type RouteBinding struct {
	Route  string
	Invoke func(ctx context.Context, payload []byte, md metadatapkg.Metadata) (any, error)
}

// MetadataBinding is the registry entry for a metadata-broadcast handler. The
// handler takes exactly one raw-bytes parameter; this shape is enforced by the
// registration type itself.
type MetadataBinding struct {
	Name    string
	Handler MetadataHandler
}

// MetadataHandler consumes an independent copy of the raw composite metadata
// bytes during a metadata broadcast.
type MetadataHandler func(ctx context.Context, raw []byte) error

// MetadataRegistration wires a metadata-broadcast handler.
type MetadataRegistration struct {
	Name    string
	Handler MetadataHandler
}

// BuildMetadataBinding validates the registration shape and returns the
// registry entry.
func BuildMetadataBinding(cfg MetadataRegistration) (MetadataBinding, error) {
	if cfg.Handler == nil {
		return MetadataBinding{}, errspkg.ErrHandlerRequired
	}
	name := cfg.Name
	if name == "" {
		name = "metadata-handler"
	}
	return MetadataBinding{Name: name, Handler: cfg.Handler}, nil
}

// payloadBinderFor builds the payload binding for P at registration time:
// []byte passes the payload buffer through unchanged, None skips binding, and
// anything else decodes through the JSON codec.
func payloadBinderFor[P any]() func([]byte) (P, error) {
	var zero P
	switch any(zero).(type) {
	case []byte:
		return func(payload []byte) (P, error) {
			return any(payload).(P), nil
		}
	case None:
		return func([]byte) (P, error) {
			var none P
			return none, nil
		}
	default:
		return jsoncodec.DecoderFor[P]()
	}
}

// metadataBinderFor builds the metadata binding for M at registration time:
// []byte receives the raw composite bytes, None skips binding, and anything
// else decodes the JSON typed-metadata entry, failing when none was sent.
func metadataBinderFor[M any](route string) func(metadatapkg.Metadata) (M, error) {
	var zero M
	switch any(zero).(type) {
	case []byte:
		return func(md metadatapkg.Metadata) (M, error) {
			raw, err := metadatapkg.EncodeRaw(md)
			if err != nil {
				var empty M
				return empty, err
			}
			return any(raw).(M), nil
		}
	case None:
		return func(metadatapkg.Metadata) (M, error) {
			var none M
			return none, nil
		}
	default:
		decode := jsoncodec.DecoderFor[M]()
		return func(md metadatapkg.Metadata) (M, error) {
			entry, ok := md.TypedEntry()
			if !ok {
				var empty M
				return empty, &errspkg.MissingMetadataError{Route: route}
			}
			return decode([]byte(entry))
		}
	}
}
