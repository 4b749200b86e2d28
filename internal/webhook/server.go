// Package webhook is the HTTP ingress: it verifies webhook signatures on
// the request path and hands the body to the background gateway.
package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/minhducle291/linebot/internal/gateway"
	"github.com/minhducle291/linebot/internal/types"
)

const maxBodyBytes = 1 << 20

// Submitter accepts verified webhook bodies for background processing.
type Submitter interface {
	Submit(body []byte, signature string) (types.RunID, error)
}

// Server is the HTTP handler for the webhook and liveness endpoints.
type Server struct {
	secret    string
	submitter Submitter
	staticDir string
	mux       *http.ServeMux
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithStaticDir serves files under dir at /static/.
func WithStaticDir(dir string) ServerOption {
	return func(s *Server) { s.staticDir = dir }
}

// NewServer creates a Server that verifies requests with the channel secret.
func NewServer(secret string, submitter Submitter, opts ...ServerOption) *Server {
	s := &Server{
		secret:    secret,
		submitter: submitter,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("POST /callback", s.handleCallback)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	if s.staticDir != "" {
		s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))))
	}
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(SignatureHeader)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		slog.Warn("reading webhook body failed", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if !VerifySignature(s.secret, body, signature) {
		slog.Warn("invalid webhook signature", "remote", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	runID, err := s.submitter.Submit(body, signature)
	switch {
	case errors.Is(err, gateway.ErrQueueFull):
		slog.Error("worker queue full, dropping webhook", "run_id", string(runID))
	case err != nil:
		slog.Error("submitting webhook failed", "run_id", string(runID), "error", err)
	default:
		slog.Debug("webhook accepted", "run_id", string(runID), "bytes", len(body))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Bot is running"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Bot is healthy"))
}
