package http_server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/infra/application/consts"
	"github.com/grand-thief-cash/procflow/infra/application/core"
)

type HTTPServerComponent struct {
	*core.BaseComponent
	// optional start-order edges
	Logger    core.Component `infra:"dep:logging?"`
	Telemetry core.Component `infra:"dep:telemetry?"`

	cfg       *HTTPServerConfig
	container *core.Container

	mu          sync.Mutex
	router      chi.Router
	server      *http.Server
	middlewares []func(http.Handler) http.Handler
	extras      []RouteRegisterFunc
	started     bool
}

func NewHTTPServerComponent(cfg *HTTPServerConfig, c *core.Container) *HTTPServerComponent {
	return &HTTPServerComponent{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_HTTP_SERVER),
		cfg:           cfg,
		container:     c,
	}
}

// AddRouteRegistrar must be called before Start, typically from a BeforeStart hook.
func (hc *HTTPServerComponent) AddRouteRegistrar(fn RouteRegisterFunc) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if fn == nil {
		return nil
	}
	if hc.started {
		return fmt.Errorf("cannot register route: http_server already started")
	}
	hc.extras = append(hc.extras, fn)
	return nil
}

// Use appends a middleware that runs after the built-in ones.
func (hc *HTTPServerComponent) Use(mw func(http.Handler) http.Handler) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if hc.started {
		return fmt.Errorf("cannot add middleware: http_server already started")
	}
	hc.middlewares = append(hc.middlewares, mw)
	return nil
}

func (hc *HTTPServerComponent) Router() chi.Router { return hc.router }

// BuildRouter assembles middlewares and routes without listening.
func (hc *HTTPServerComponent) BuildRouter() (chi.Router, error) {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(hc.cfg.RequestTimeout))
	r.Use(bodyLimit(hc.cfg.MaxBodyBytes))
	r.Use(otelchi.Middleware(hc.serviceName(), otelchi.WithChiRoutes(r)))
	r.Use(accessLog)
	for _, mw := range hc.middlewares {
		r.Use(mw)
	}

	if hc.cfg.EnableHealth {
		r.Get("/healthz", hc.healthHandler)
	}
	for _, fn := range append(snapshot(), hc.extras...) {
		if err := fn(r, hc.container); err != nil {
			return nil, fmt.Errorf("route register failed: %w", err)
		}
	}
	return r, nil
}

func (hc *HTTPServerComponent) Start(ctx context.Context) error {
	if err := hc.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if hc.cfg == nil || !hc.cfg.Enabled {
		return errors.New("http_server component enabled flag mismatch")
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()

	router, err := hc.BuildRouter()
	if err != nil {
		return err
	}
	hc.router = router
	hc.server = &http.Server{
		Addr:         hc.cfg.Address,
		ReadTimeout:  hc.cfg.ReadTimeout,
		WriteTimeout: hc.cfg.WriteTimeout,
		IdleTimeout:  hc.cfg.IdleTimeout,
		Handler:      router,
	}
	go func() {
		logging.Infof(ctx, "http_server listening on %s", hc.cfg.Address)
		if err := hc.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf(ctx, "http_server server error: %v", err)
		}
	}()
	hc.started = true
	return nil
}

func (hc *HTTPServerComponent) Stop(ctx context.Context) error {
	defer func() { _ = hc.BaseComponent.Stop(ctx) }()
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if !hc.started || hc.server == nil {
		return nil
	}
	stopCtx, cancel := context.WithTimeout(ctx, hc.cfg.GracefulTimeout)
	defer cancel()
	hc.started = false
	if err := hc.server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("http_server graceful shutdown failed: %w", err)
	}
	logging.Info(ctx, "http_server stopped")
	return nil
}

func (hc *HTTPServerComponent) HealthCheck() error {
	if err := hc.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	if !hc.started {
		return fmt.Errorf("http_server not started")
	}
	return nil
}

func (hc *HTTPServerComponent) serviceName() string {
	if hc.cfg.ServiceName != "" {
		return hc.cfg.ServiceName
	}
	return hc.cfg.Address
}

func (hc *HTTPServerComponent) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func bodyLimit(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// accessLog writes one http_access line per request and echoes the W3C traceparent.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		sc := trace.SpanContextFromContext(r.Context())
		if sc.IsValid() {
			w.Header().Set("traceparent", fmt.Sprintf("00-%s-%s-%s", sc.TraceID(), sc.SpanID(), sc.TraceFlags()))
		}

		next.ServeHTTP(sw, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", sw.status),
			zap.Duration("dur", time.Since(start)),
		}
		if rc := chi.RouteContext(r.Context()); rc != nil {
			fields = append(fields, zap.String("route", rc.RoutePattern()))
		}
		logging.Info(r.Context(), "http_access", fields...)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
