// Package api exposes the LeadLine HTTP surface: the carrier webhook that
// feeds the inbound pipeline, plus read-only operational endpoints for leads,
// messages, and health.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/leadline/leadline/internal/pipeline"
	"github.com/leadline/leadline/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds graceful shutdown on context cancellation.
const DefaultShutdownTimeout = 10 * time.Second

// Opts holds API server configuration.
type Opts struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// AuthToken enables carrier signature validation when non-empty.
	AuthToken string
	// PublicURL is the externally visible base URL the carrier signs requests
	// against, e.g. "https://leads.example.com". Required when AuthToken is
	// set, ignored otherwise.
	PublicURL string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		if addr != "" {
			o.Addr = addr
		}
	}
}

// WithSignatureValidation enables X-Twilio-Signature checking on the webhook
// endpoint. publicURL must be the base URL the carrier was configured with.
func WithSignatureValidation(authToken, publicURL string) Option {
	return func(o *Opts) {
		o.AuthToken = authToken
		o.PublicURL = publicURL
	}
}

// Server routes carrier deliveries into the pipeline and serves the
// operational read endpoints. The record store may be nil; list endpoints
// then report the store as unconfigured.
type Server struct {
	addr      string
	pipeline  *pipeline.Orchestrator
	store     store.Store
	validator *twilioclient.RequestValidator
	publicURL string
	startedAt time.Time
}

// NewServer creates a Server around the given pipeline and store. Environment
// variables supply defaults: LEADLINE_API_ADDR for the address.
func NewServer(orch *pipeline.Orchestrator, st store.Store, options ...Option) *Server {
	opts := Opts{Addr: DefaultAddr}
	if addr := os.Getenv("LEADLINE_API_ADDR"); addr != "" {
		opts.Addr = addr
	}
	for _, opt := range options {
		opt(&opts)
	}

	s := &Server{
		addr:      opts.Addr,
		pipeline:  orch,
		store:     st,
		publicURL: opts.PublicURL,
		startedAt: time.Now().UTC(),
	}
	if opts.AuthToken != "" {
		v := twilioclient.NewRequestValidator(opts.AuthToken)
		s.validator = &v
		slog.Info("NewServer: carrier signature validation enabled", "public_url", opts.PublicURL)
	} else {
		slog.Info("NewServer: carrier signature validation disabled")
	}
	return s
}

// Handler returns the routing mux for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/sms", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/leads", s.leadsHandler)
	mux.HandleFunc("/messages", s.messagesHandler)
	return mux
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: graceful shutdown failed", "error", err)
			return err
		}
		return nil
	}
}
