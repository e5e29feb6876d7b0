package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	loggingpkg "github.com/drblury/routewire/internal/runtime/logging"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

// RequestInfo describes one dispatched frame to interceptors.
type RequestInfo struct {
	Route       string
	Mode        string
	MessageUUID string
	Metadata    metadatapkg.Metadata
}

// Interceptor wraps a handler invocation. The first registered interceptor is
// the outermost wrapper.
type Interceptor func(info RequestInfo, next InvocationFunc) InvocationFunc

// InterceptorBuilder constructs an interceptor using the engine instance.
type InterceptorBuilder func(*Engine) (Interceptor, error)

// InterceptorRegistration captures how an interceptor should be registered on
// an engine.
type InterceptorRegistration struct {
	Name        string
	Interceptor Interceptor
	Builder     InterceptorBuilder
}

// DefaultInterceptors returns the standard chain used by the engine
// constructor.
func DefaultInterceptors() []InterceptorRegistration {
	return []InterceptorRegistration{
		LogRequestsInterceptor(nil),
		TracerInterceptor(),
		MetricsInterceptor(),
		RecovererInterceptor(),
	}
}

// LogRequestsInterceptor logs each dispatched frame before it reaches the
// handler.
func LogRequestsInterceptor(logger loggingpkg.ServiceLogger) InterceptorRegistration {
	return InterceptorRegistration{
		Name: "log_requests",
		Builder: func(e *Engine) (Interceptor, error) {
			l := logger
			if l == nil {
				l = e.Logger
			}
			if l == nil {
				return nil, errors.New("log requests interceptor requires a logger")
			}
			return logRequestsInterceptor(l), nil
		},
	}
}

func logRequestsInterceptor(logger loggingpkg.ServiceLogger) Interceptor {
	return func(info RequestInfo, next InvocationFunc) InvocationFunc {
		return func(ctx context.Context) (any, error) {
			logger.Debug("Dispatching frame", loggingpkg.LogFields{
				"route":        info.Route,
				"mode":         info.Mode,
				"message_uuid": info.MessageUUID,
			})
			return next(ctx)
		}
	}
}

// TracerInterceptor wraps handler execution in an OpenTelemetry span.
func TracerInterceptor() InterceptorRegistration {
	return InterceptorRegistration{
		Name:        "tracer",
		Interceptor: tracerInterceptor(),
	}
}

func tracerInterceptor() Interceptor {
	return func(info RequestInfo, next InvocationFunc) InvocationFunc {
		return func(ctx context.Context) (any, error) {
			tracer := otel.Tracer("routewire-dispatch-tracer")
			ctx, span := tracer.Start(ctx, "DispatchFrame")
			defer span.End()

			span.SetAttributes(
				attribute.String("request.route", info.Route),
				attribute.String("request.mode", info.Mode),
				attribute.String("message.uuid", info.MessageUUID),
			)
			return next(ctx)
		}
	}
}

// MetricsInterceptor records Prometheus counters and latencies per route and
// mode. It is a no-op unless metrics are enabled in the engine config.
func MetricsInterceptor() InterceptorRegistration {
	return InterceptorRegistration{
		Name: "metrics",
		Builder: func(e *Engine) (Interceptor, error) {
			if !e.Conf.MetricsEnabled {
				return nil, nil
			}

			collector, err := newDispatchMetrics(prometheus.DefaultRegisterer)
			if err != nil {
				return nil, err
			}

			if e.Conf.MetricsPort > 0 {
				e.RegisterHTTPHandler(e.Conf.MetricsPort, "/metrics", promhttp.Handler())
			}

			return collector.intercept, nil
		},
	}
}

type dispatchMetrics struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newDispatchMetrics(reg prometheus.Registerer) (*dispatchMetrics, error) {
	m := &dispatchMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routewire",
			Name:      "requests_total",
			Help:      "Total number of dispatched frames.",
		}, []string{"route", "mode"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routewire",
			Name:      "request_failures_total",
			Help:      "Total number of dispatched frames that returned an error.",
		}, []string{"route", "mode"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "routewire",
			Name:      "request_duration_seconds",
			Help:      "Handler invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "mode"}),
	}

	for _, collector := range []prometheus.Collector{m.requests, m.failures, m.duration} {
		if err := reg.Register(collector); err != nil {
			already := prometheus.AlreadyRegisteredError{}
			if !errors.As(err, &already) {
				return nil, fmt.Errorf("failed to register dispatch metrics: %w", err)
			}
		}
	}

	return m, nil
}

func (m *dispatchMetrics) intercept(info RequestInfo, next InvocationFunc) InvocationFunc {
	return func(ctx context.Context) (any, error) {
		start := time.Now()
		value, err := next(ctx)

		m.duration.WithLabelValues(info.Route, info.Mode).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(info.Route, info.Mode).Inc()
		if err != nil {
			m.failures.WithLabelValues(info.Route, info.Mode).Inc()
		}
		return value, err
	}
}

// RecovererInterceptor converts handler panics into errors so they flow
// through the normal failure path.
func RecovererInterceptor() InterceptorRegistration {
	return InterceptorRegistration{
		Name:        "recoverer",
		Interceptor: recovererInterceptor(),
	}
}

func recovererInterceptor() Interceptor {
	return func(info RequestInfo, next InvocationFunc) InvocationFunc {
		return func(ctx context.Context) (value any, err error) {
			defer func() {
				if r := recover(); r != nil {
					value = nil
					err = fmt.Errorf("routewire: panic in handler for route %q: %v", info.Route, r)
				}
			}()
			return next(ctx)
		}
	}
}

// RegisterInterceptor attaches the supplied interceptor to the engine chain.
func (e *Engine) RegisterInterceptor(cfg InterceptorRegistration) error {
	var interceptor Interceptor
	switch {
	case cfg.Interceptor != nil:
		interceptor = cfg.Interceptor
	case cfg.Builder != nil:
		var err error
		interceptor, err = cfg.Builder(e)
		if err != nil {
			return err
		}
	default:
		return errors.New("interceptor registration requires Interceptor or Builder")
	}

	if interceptor == nil {
		return nil
	}

	e.chain = append(e.chain, interceptor)
	return nil
}
