package runtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	configpkg "github.com/drblury/routewire/internal/runtime/config"
	errspkg "github.com/drblury/routewire/internal/runtime/errors"
	handlerspkg "github.com/drblury/routewire/internal/runtime/handlers"
	loggingpkg "github.com/drblury/routewire/internal/runtime/logging"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

// Dependencies carries optional collaborators for an Engine.
type Dependencies struct {
	// Hook wraps every handler invocation. See TrackingHook for the contract.
	Hook TrackingHook
	// Interceptors are registered after the default chain.
	Interceptors []InterceptorRegistration
	// DisableDefaultInterceptors skips the standard chain entirely.
	DisableDefaultInterceptors bool
}

// Engine resolves incoming frames to registered handlers and runs them
// through the interceptor chain. The handler set is fixed at construction;
// dispatch methods are safe for concurrent use.
type Engine struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	registry *Registry
	hook     TrackingHook
	chain    []Interceptor

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewEngine constructs an Engine and panics on invalid input. Use
// TryNewEngine when construction failures should be handled by the caller.
func NewEngine(conf *configpkg.Config, log loggingpkg.ServiceLogger, routes []handlerspkg.RouteBinding, metadataHandlers []handlerspkg.MetadataBinding, deps Dependencies) *Engine {
	e, err := TryNewEngine(conf, log, routes, metadataHandlers, deps)
	if err != nil {
		panic(err)
	}
	return e
}

// TryNewEngine constructs an Engine, validating the full handler set before
// anything is registered. All violations are reported together in a single
// ConstructionError.
func TryNewEngine(conf *configpkg.Config, log loggingpkg.ServiceLogger, routes []handlerspkg.RouteBinding, metadataHandlers []handlerspkg.MetadataBinding, deps Dependencies) (*Engine, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConstructionError(err)
	}

	registry, err := newRegistry(routes, metadataHandlers)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Conf:     conf,
		Logger:   log,
		registry: registry,
		hook:     deps.Hook,
	}

	if err := e.registerConfiguredInterceptors(deps); err != nil {
		return nil, err
	}
	e.registerDebugEndpoint()

	log.Info("Creating dispatch engine", loggingpkg.LogFields{
		"transport":         conf.Transport,
		"routes":            len(routes),
		"metadata_handlers": len(metadataHandlers),
	})

	return e, nil
}

func (e *Engine) registerConfiguredInterceptors(deps Dependencies) error {
	var defaults []InterceptorRegistration
	if !deps.DisableDefaultInterceptors {
		defaults = DefaultInterceptors()
	}
	registrations := make([]InterceptorRegistration, 0, len(defaults)+len(deps.Interceptors))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Interceptors...)

	for _, reg := range registrations {
		if err := e.RegisterInterceptor(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_interceptor"
			}
			return fmt.Errorf("failed to register interceptor %s: %w", name, err)
		}
	}
	return nil
}

// Routes returns a sorted snapshot of all registered routes with their stats.
func (e *Engine) Routes() []RouteInfo {
	return e.registry.RouteInfos()
}

// invoke runs one resolved entry through the interceptor chain and the
// tracking hook, recording per-route stats.
func (e *Engine) invoke(ctx context.Context, mode string, entry *routeEntry, msg *message.Message, md metadatapkg.Metadata) (any, error) {
	info := RequestInfo{
		Route:       entry.binding.Route,
		Mode:        mode,
		MessageUUID: msg.UUID,
		Metadata:    md,
	}
	ctx = contextWithMetadata(ctx, md)

	inv := func(ctx context.Context) (any, error) {
		return entry.binding.Invoke(ctx, msg.Payload, md)
	}

	if e.hook != nil {
		next := inv
		inv = func(ctx context.Context) (any, error) {
			return e.hook(ctx, info.Route, next)
		}
	}

	for i := len(e.chain) - 1; i >= 0; i-- {
		inv = e.chain[i](info, inv)
	}

	start := time.Now()
	value, err := inv(ctx)
	entry.stats.observe(time.Since(start), err)
	return value, err
}

// RegisterHTTPHandler mounts a handler on the shared mux for the given port.
// Servers are started by StartHTTPServers.
func (e *Engine) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	e.httpServersMu.Lock()
	defer e.httpServersMu.Unlock()

	if e.httpServers == nil {
		e.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := e.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		e.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

// StartHTTPServers launches one HTTP server per registered port. It returns
// immediately; server failures are logged.
func (e *Engine) StartHTTPServers() {
	e.httpServersMu.Lock()
	defer e.httpServersMu.Unlock()

	for port, mux := range e.httpServers {
		addr := fmt.Sprintf(":%d", port)
		e.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				e.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
