package routewire

import (
	"context"

	"google.golang.org/protobuf/proto"

	runtimepkg "github.com/drblury/routewire/internal/runtime"
	configpkg "github.com/drblury/routewire/internal/runtime/config"
	errspkg "github.com/drblury/routewire/internal/runtime/errors"
	handlerpkg "github.com/drblury/routewire/internal/runtime/handlers"
	idspkg "github.com/drblury/routewire/internal/runtime/ids"
	jsoncodecpkg "github.com/drblury/routewire/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/routewire/internal/runtime/logging"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
	transportpkg "github.com/drblury/routewire/transport"
)

type (
	Config       = configpkg.Config
	Engine       = runtimepkg.Engine
	Dependencies = runtimepkg.Dependencies

	None                                     = handlerpkg.None
	MessageContextBase                       = handlerpkg.MessageContextBase
	RouteBinding                             = handlerpkg.RouteBinding
	RequestContext[P any, M any]             = handlerpkg.RequestContext[P, M]
	RequestHandler[P any, M any, O any]      = handlerpkg.RequestHandler[P, M, O]
	RequestRegistration[P any, M any, O any] = handlerpkg.RequestRegistration[P, M, O]

	MetadataBinding      = handlerpkg.MetadataBinding
	MetadataHandler      = handlerpkg.MetadataHandler
	MetadataRegistration = handlerpkg.MetadataRegistration

	ProtoRequestContext[P proto.Message]      = handlerpkg.ProtoRequestContext[P]
	ProtoRequestHandler[P proto.Message]      = handlerpkg.ProtoRequestHandler[P]
	ProtoRequestRegistration[P proto.Message] = handlerpkg.ProtoRequestRegistration[P]

	InvocationFunc          = runtimepkg.InvocationFunc
	TrackingHook            = runtimepkg.TrackingHook
	HookContext             = runtimepkg.HookContext
	RequestHooks            = runtimepkg.RequestHooks
	RequestInfo             = runtimepkg.RequestInfo
	Interceptor             = runtimepkg.Interceptor
	InterceptorBuilder      = runtimepkg.InterceptorBuilder
	InterceptorRegistration = runtimepkg.InterceptorRegistration

	RouteInfo      = runtimepkg.RouteInfo
	RouteStats     = runtimepkg.RouteStats
	LatencyMetrics = runtimepkg.LatencyMetrics

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ResponseError        = errspkg.ResponseError
	SilentError          = errspkg.SilentError
	RouteNotFoundError   = errspkg.RouteNotFoundError
	MissingMetadataError = errspkg.MissingMetadataError
	NotImplementedError  = errspkg.NotImplementedError
	ConstructionError    = errspkg.ConstructionError

	// Modular transport types
	TransportServer    = transportpkg.Server
	TransportResponder = transportpkg.Responder
	TransportBuilder   = transportpkg.Builder
	TransportConfig    = transportpkg.Config
	TransportRegistry  = transportpkg.Registry
)

var (
	NewEngine      = runtimepkg.NewEngine
	TryNewEngine   = runtimepkg.TryNewEngine
	ValidateConfig = configpkg.ValidateConfig

	BuildMetadataBinding = handlerpkg.BuildMetadataBinding

	DefaultInterceptors    = runtimepkg.DefaultInterceptors
	LogRequestsInterceptor = runtimepkg.LogRequestsInterceptor
	TracerInterceptor      = runtimepkg.TracerInterceptor
	MetricsInterceptor     = runtimepkg.MetricsInterceptor
	RecovererInterceptor   = runtimepkg.RecovererInterceptor

	// Dispatch lifecycle hooks
	LoggingHooks = runtimepkg.LoggingHooks
	MetricsHooks = runtimepkg.MetricsHooks

	// Errors
	NewResponseError = errspkg.NewResponseError
	Silent           = errspkg.Silent
	IsSilent         = errspkg.IsSilent

	// Logging
	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter
	NopLogger                 = loggingpkg.Nop

	// Metadata and identifiers
	NewMetadata       = metadatapkg.New
	EncodeRawMetadata = metadatapkg.EncodeRaw
	DecodeRawMetadata = metadatapkg.DecodeRaw
	CreateULID        = idspkg.CreateULID

	// Encoding
	Marshal       = jsoncodecpkg.Marshal
	MarshalIndent = jsoncodecpkg.MarshalIndent
	Unmarshal     = jsoncodecpkg.Unmarshal
)

// Error codes and sentinel errors.
var (
	ErrEngineRequired   = errspkg.ErrEngineRequired
	ErrHandlerRequired  = errspkg.ErrHandlerRequired
	ErrRouteRequired    = errspkg.ErrRouteRequired
	ErrLoggerRequired   = errspkg.ErrLoggerRequired
	ErrConfigRequired   = errspkg.ErrConfigRequired
	ErrMessageRequired  = errspkg.ErrMessageRequired
	ErrPointerNeeded    = errspkg.ErrPointerNeeded
	ErrResponderNeeded  = errspkg.ErrResponderNeeded
	ErrTransportUnknown = errspkg.ErrTransportUnknown
)

const CodeNotImplemented = errspkg.CodeNotImplemented

// Dispatch mode identifiers.
const (
	ModeMetadataPush    = runtimepkg.ModeMetadataPush
	ModeFireAndForget   = runtimepkg.ModeFireAndForget
	ModeRequestResponse = runtimepkg.ModeRequestResponse
	ModeRequestStream   = runtimepkg.ModeRequestStream
	ModeRequestChannel  = runtimepkg.ModeRequestChannel
)

// Composite metadata keys and frame kinds.
const (
	KeyRoute         = metadatapkg.KeyRoute
	KeyFrame         = metadatapkg.KeyFrame
	KeyReplyTo       = metadatapkg.KeyReplyTo
	KeyCorrelationID = metadatapkg.KeyCorrelationID
	MimeJSON         = metadatapkg.MimeJSON

	FrameMetadataPush   = metadatapkg.FrameMetadataPush
	FrameFireAndForget  = metadatapkg.FrameFireAndForget
	FrameRequest        = metadatapkg.FrameRequest
	FrameRequestStream  = metadatapkg.FrameRequestStream
	FrameRequestChannel = metadatapkg.FrameRequestChannel
	FrameResponse       = metadatapkg.FrameResponse
	FrameError          = metadatapkg.FrameError
)

// BuildRouteBinding converts a typed route registration into the untyped form
// the engine consumes. Generic functions cannot be aliased, so this wraps the
// handlers package directly.
func BuildRouteBinding[P any, M any, O any](cfg RequestRegistration[P, M, O], logger ServiceLogger) (RouteBinding, error) {
	return handlerpkg.BuildRouteBinding(cfg, logger)
}

// BuildProtoRouteBinding converts a protobuf-typed route registration into
// the untyped form the engine consumes.
func BuildProtoRouteBinding[P proto.Message](cfg ProtoRequestRegistration[P], logger ServiceLogger) (RouteBinding, error) {
	return handlerpkg.BuildProtoRouteBinding(cfg, logger)
}

// Serve builds the configured transport from the registry and runs it
// against the engine until the context is cancelled. HTTP side servers
// (metrics, debug) are started first.
func Serve(ctx context.Context, e *Engine, registry *TransportRegistry) error {
	if e == nil {
		return ErrEngineRequired
	}
	if registry == nil {
		registry = transportpkg.DefaultRegistry
	}

	server, err := registry.Build(ctx, e.Conf, NewWatermillAdapter(e.Logger))
	if err != nil {
		return err
	}

	e.StartHTTPServers()
	return server.Serve(ctx, e)
}

// ServeWith runs a pre-built transport server against the engine.
func ServeWith(ctx context.Context, e *Engine, server TransportServer) error {
	if e == nil {
		return ErrEngineRequired
	}
	if server == nil {
		return errspkg.ErrResponderNeeded
	}

	e.StartHTTPServers()
	return server.Serve(ctx, e)
}

// compile-time check that the engine satisfies the transport contract.
var _ transportpkg.Responder = (*Engine)(nil)
