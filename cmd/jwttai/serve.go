package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	jwttai "github.com/cicsdev/go-jwt-tai"
	"github.com/cicsdev/go-jwt-tai/config"
	"github.com/cicsdev/go-jwt-tai/core"
	"github.com/cicsdev/go-jwt-tai/validator"
)

const requestIDHeader = "X-Request-Id"

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an HTTPS server protected by the interceptor",
		Long: `Serves
  GET /whoami   the authenticated identity and claims
  GET /healthz  interceptor health
  GET /metrics  Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}
			return runServe(cmd.Context(), a.cfg, a.log)
		},
	}

	cmd.Flags().String("addr", "", "address to listen on (default from server.addr)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if !cfg.Server.Insecure && (cfg.Server.CertFile == "" || cfg.Server.KeyFile == "") {
		return errors.New("server.cert_file and server.key_file are required unless server.insecure is set")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h, err := newHost(ctx, cfg, log,
		jwttai.WithMetrics(jwttai.NewPrometheusMetrics(registry)),
		jwttai.WithTracer(jwttai.NewOpenTelemetryTracer(otel.Tracer("github.com/cicsdev/go-jwt-tai/cmd/jwttai"))),
	)
	if err != nil {
		return err
	}
	defer h.Close()

	// The server still starts so /healthz can report the failure.
	if err := h.initialize(ctx); err != nil {
		log.Error().Err(err).Msg("key source failed to load, bearer tokens will not be intercepted")
	}

	if cfg.Interceptor.WatchKeySource {
		if err := h.watch(ctx); err != nil {
			log.Warn().Err(err).Msg("key source watcher not started")
		}
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServeHandler(h.interceptor, registry, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Bool("tls", !cfg.Server.Insecure).Msg("Starting server")
		if cfg.Server.Insecure {
			errCh <- server.ListenAndServe()
		} else {
			errCh <- server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		}
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("Server exited")
	return nil
}

func newServeHandler(i *jwttai.Interceptor, gatherer prometheus.Gatherer, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /whoami", i.Handler(http.HandlerFunc(whoami)))
	mux.Handle("GET /healthz", i.HealthHandler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return withRequestLogging(log, mux)
}

type whoamiResponse struct {
	Identity string            `json:"identity"`
	Claims   *validator.Claims `json:"claims,omitempty"`
}

func whoami(w http.ResponseWriter, r *http.Request) {
	identity, err := jwttai.GetIdentity(r.Context())
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, jwttai.ErrorResponse{
			Error:            "unauthenticated",
			ErrorDescription: "A bearer token is required",
		})
		return
	}

	claims, _ := core.GetClaims[*validator.Claims](r.Context())
	writeJSON(w, http.StatusOK, whoamiResponse{Identity: identity, Claims: claims})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLogging tags every request with an id, taken from a valid
// X-Request-Id header or generated, and logs it on completion.
func withRequestLogging(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := log.With().Str("request_id", id).Logger()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
