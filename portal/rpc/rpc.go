package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/config"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/transfer"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/wallet"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "rpc").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l.With().Str("component", "rpc").Logger()
}

// Paths served next to the portal procedures
const (
	StreamPath  = "/ws/transfer"
	HealthPath  = "/server/health"
	ReadyPath   = "/server/ready"
	MetricsPath = "/server/metrics"
)

// unaryTimeout bounds the unary procedures; the stream is bounded by its read deadline
const unaryTimeout = 60 * time.Second

// Dependencies are the collaborators behind the portal endpoints
type Dependencies struct {
	Registry     *config.Registry
	Resolver     *assets.Resolver
	SourcePolicy assets.DefaultPolicy
	Router       transfer.Router
	Wallets      wallet.Provider
	// Recorder stores settled executions, optional
	Recorder transfer.Recorder
}

func (d Dependencies) validate() error {
	var missing []error
	if d.Registry == nil {
		missing = append(missing, errors.New("registry"))
	}
	if d.Resolver == nil {
		missing = append(missing, errors.New("resolver"))
	}
	if d.Router == nil {
		missing = append(missing, errors.New("router"))
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing dependencies: %w", errors.Join(missing...))
	}
	return nil
}

// ServerConfig holds configuration for the RPC server
type ServerConfig struct {
	Address               string
	AllowedOrigins        []string
	EnableMetrics         bool
	RatePerMinute         *int
	MaxConcurrentRequests *int
	OTelConfig            *OTelConfig // OpenTelemetry configuration
}

func (c *ServerConfig) metricsEnabled() bool {
	return c.EnableMetrics || (c.OTelConfig != nil && c.OTelConfig.UsePrometheus)
}

func (c *ServerConfig) tracingEnabled() bool {
	return c.OTelConfig != nil && c.OTelConfig.EnableTracing
}

// DefaultServerConfig returns a default server configuration
func DefaultServerConfig() *ServerConfig {
	maxConcurrentRequests := 200
	return &ServerConfig{
		Address:               "localhost:8080",
		AllowedOrigins:        []string{"http://localhost:3000", "http://localhost:8080"},
		EnableMetrics:         true,
		MaxConcurrentRequests: &maxConcurrentRequests,
		OTelConfig:            DefaultOTelConfig(),
	}
}

// Server wraps the HTTP server and provides lifecycle management
type Server struct {
	config       *ServerConfig
	httpServer   *http.Server
	otelShutdown func(context.Context) error
}

// NewServer assembles the portal HTTP server: the unary procedures, the transfer
// stream and the probes, behind CORS and h2c.
func NewServer(ctx context.Context, config *ServerConfig, deps Dependencies) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	var otelShutdown func(context.Context) error
	if config.OTelConfig.Enabled() {
		shutdown, err := NewOTelSDK(ctx, config.OTelConfig)
		if err != nil {
			// the portal works without telemetry
			Logger.Error().Err(err).Msg("Failed to initialize OpenTelemetry")
		} else {
			otelShutdown = shutdown
		}
	}

	mux := chi.NewMux()
	mux.Use(
		zerologMiddleware,
		zerologRecoverer,
		middleware.RequestID,
		realIPMiddleware,
	)
	if config.tracingEnabled() {
		mux.Use(otelHTTPMiddleware)
	}
	if config.RatePerMinute != nil && *config.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(*config.RatePerMinute, time.Minute))
	}

	mountProbes(mux, config, deps.Registry)
	if err := mountProcedures(mux, config, deps); err != nil {
		return nil, err
	}
	mux.Handle(StreamPath, NewStreamHandler(deps, config.AllowedOrigins))

	return &Server{
		config: config,
		httpServer: &http.Server{
			Addr:              config.Address,
			Handler:           h2c.NewHandler(newCORSHandler(config.AllowedOrigins, mux), &http2.Server{}),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
			// no Read/WriteTimeout: they would cut the transfer stream
		},
		otelShutdown: otelShutdown,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// mountProbes adds health, readiness and, when enabled, the prometheus endpoint.
func mountProbes(mux chi.Router, config *ServerConfig, registry *config.Registry) {
	if config.metricsEnabled() {
		mux.Handle(MetricsPath, promhttp.Handler())
	}
	mux.Get(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "xcm-portal"})
	})
	mux.Get(ReadyPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ready",
			"chains":  len(registry.Chains),
			"origins": len(registry.SubstrateChains()),
			"venues":  len(registry.Venues),
		})
	})
}

// mountProcedures registers the unary portal procedures with compression, a timeout
// and the concurrency limit. The stream stays outside this group.
func mountProcedures(mux chi.Router, config *ServerConfig, deps Dependencies) error {
	opts := []connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithRecover(recoverHandler),
		connect.WithInterceptors(loggingInterceptor(), noCacheInterceptor()),
	}
	if config.tracingEnabled() {
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			return fmt.Errorf("failed to create otel interceptor: %w", err)
		}
		opts = append(opts, connect.WithInterceptors(otelInterceptor))
	}

	portal := NewPortalServer(deps.Registry, deps.Resolver, deps.SourcePolicy)
	mux.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5), middleware.Timeout(unaryTimeout))
		if config.MaxConcurrentRequests != nil && *config.MaxConcurrentRequests > 0 {
			r.Use(middleware.Throttle(*config.MaxConcurrentRequests))
		}
		r.Handle(ListChainsProcedure, connect.NewUnaryHandler(ListChainsProcedure, portal.ListChains, opts...))
		r.Handle(GetCurrencyOptionsProcedure, connect.NewUnaryHandler(GetCurrencyOptionsProcedure, portal.GetCurrencyOptions, opts...))
		r.Handle(ValidateTransferProcedure, connect.NewUnaryHandler(ValidateTransferProcedure, portal.ValidateTransfer, opts...))
	})
	return nil
}

// Handler returns the root handler, CORS and h2c included
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logServerInfo("http")
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartTLS is Start over TLS.
func (s *Server) StartTLS(certFile, keyFile string) error {
	s.logServerInfo("https")
	if err := s.httpServer.ListenAndServeTLS(certFile, keyFile); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logServerInfo(protocol string) {
	event := Logger.Info().
		Str("address", s.config.Address).
		Str("protocol", protocol).
		Strs("procedures", []string{ListChainsProcedure, GetCurrencyOptionsProcedure, ValidateTransferProcedure}).
		Str("stream", StreamPath).
		Str("health", HealthPath).
		Str("ready", ReadyPath)
	if s.config.metricsEnabled() {
		event = event.Str("metrics", MetricsPath)
	}
	event.Msg("Spectra XCM Portal server starting")
}

// Shutdown stops accepting requests, waits for in-flight ones and flushes telemetry.
// Open transfer streams are not tracked by http.Server and are left to their clients.
func (s *Server) Shutdown(ctx context.Context) error {
	Logger.Info().Msg("Shutting down RPC server...")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if s.otelShutdown != nil {
		if err := s.otelShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("opentelemetry: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		Logger.Error().Err(err).Msg("Server shutdown incomplete")
		return err
	}

	Logger.Info().Msg("Server shutdown complete")
	return nil
}

// recoverHandler turns a handler panic into an opaque internal error
func recoverHandler(ctx context.Context, spec connect.Spec, header http.Header, p any) error {
	Logger.Error().
		Interface("panic", p).
		Str("procedure", spec.Procedure).
		Msg("Panic in RPC handler")
	return connect.NewError(connect.CodeInternal, errors.New("internal server error"))
}
