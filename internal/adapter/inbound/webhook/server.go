package webhook

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jonny/interactiond/internal/adapter/inbound/webhook/middleware"
	"github.com/jonny/interactiond/pkg/apierror"
)

// InteractionsPath is the route the platform delivers interactions to.
const InteractionsPath = "/api/discord/interactions"

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	TLSCertFile     string
	TLSKeyFile      string
	// RateLimitPerMinute limits requests per client address. Zero disables it.
	RateLimitPerMinute int
	TrustProxy         bool
}

// Server wraps an HTTP server with graceful shutdown support.
type Server struct {
	cfg        ServerConfig
	publicKey  ed25519.PublicKey
	dispatcher http.Handler
	logger     *slog.Logger
	srv        *http.Server
}

// NewServer creates a Server that authenticates requests with publicKey and
// hands them to dispatcher.
func NewServer(cfg ServerConfig, publicKey ed25519.PublicKey, dispatcher http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		cfg:        cfg,
		publicKey:  publicKey,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SetupRoutes builds the router with all middleware applied.
// Route layout:
//
//	GET  /health                     - Health check
//	POST /api/discord/interactions   - Interaction callbacks
//
// The interactions route checks, in order: Content-Type, signature headers,
// signature, then dispatches. Transport checks run before authentication.
func (s *Server) SetupRoutes(ctx context.Context) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierror.Write(w, apierror.New(http.StatusNotFound, "Not found"))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierror.Write(w, apierror.New(http.StatusMethodNotAllowed, "Method not allowed"))
	})

	router.HandleFunc("/health", HealthHandler()).Methods(http.MethodGet)

	var interactions http.Handler = s.dispatcher
	interactions = middleware.VerifySignature(s.publicKey, s.logger)(interactions)
	interactions = middleware.BodyReader(interactions)
	interactions = middleware.RequireSignatureHeaders(interactions)
	interactions = middleware.RequireJSON(interactions)
	router.Handle(InteractionsPath, interactions).Methods(http.MethodPost)

	// Outermost first: SecurityHeaders -> Logging -> RateLimit -> router
	var h http.Handler = router
	if s.cfg.RateLimitPerMinute > 0 {
		h = middleware.NewRateLimiter(ctx, s.cfg.RateLimitPerMinute, s.cfg.TrustProxy).Middleware(h)
	}
	h = middleware.NewLoggingMiddleware(s.logger)(h)
	h = middleware.SecurityHeaders(h)

	return h
}

// Start starts the HTTP server and blocks until ctx is cancelled, then performs
// a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.SetupRoutes(ctx),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	tls := s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != ""

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("interaction server listening", "port", s.cfg.Port, "tls", tls, "path", InteractionsPath)
		var err error
		if tls {
			err = s.srv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			err = s.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("interaction server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// HealthHandler returns an http.HandlerFunc for the /health endpoint.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
