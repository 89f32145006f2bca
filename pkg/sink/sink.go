// Package sink provides a local HTTP receiver for uploads. It accepts
// POSTed payloads on any path, optionally spools them to a directory, and
// always answers 200. It serves as a localhost endpoint for upload runs.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethpandaops/uploadoor/pkg/config"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the sink HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error

	// Addr returns the bound listen address, available after Start.
	Addr() string

	// Received returns the number of payloads accepted so far.
	Received() int64
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.SinkConfig
	httpServer *http.Server
	listener   net.Listener
	received   atomic.Int64
	seq        atomic.Int64
	wg         sync.WaitGroup
}

// NewServer creates a new sink server.
func NewServer(log logrus.FieldLogger, cfg *config.SinkConfig) Server {
	return &server{
		log: log.WithField("component", "sink"),
		cfg: cfg,
	}
}

// Start binds the listener and starts serving. The bind happens
// synchronously so port conflicts fail fast.
func (s *server) Start(ctx context.Context) error {
	if s.cfg.SpoolDir != "" {
		if err := os.MkdirAll(s.cfg.SpoolDir, 0o755); err != nil {
			return fmt.Errorf("creating spool directory: %w", err)
		}
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", ln.Addr().String()).
			Info("Sink server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	s.log.WithField("received", s.received.Load()).Info("Sink server stopped")

	return nil
}

// Addr returns the bound listen address.
func (s *server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Received returns the number of payloads accepted so far.
func (s *server) Received() int64 {
	return s.received.Load()
}

// handleReceive accepts one payload, optionally spooling it to disk.
func (s *server) handleReceive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"reading body"})

		return
	}

	if s.cfg.SpoolDir != "" {
		name := fmt.Sprintf("%06d.json", s.seq.Add(1))
		path := filepath.Join(s.cfg.SpoolDir, name)

		if err := os.WriteFile(path, body, 0o644); err != nil {
			s.log.WithError(err).WithField("path", path).
				Error("Failed to spool payload")
			writeJSON(w, http.StatusInternalServerError,
				errorResponse{"spooling payload"})

			return
		}
	}

	s.received.Add(1)

	s.log.WithFields(logrus.Fields{
		"path":  r.URL.Path,
		"bytes": len(body),
	}).Debug("Payload received")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealth returns server health plus the received payload count.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"received": s.received.Load(),
	})
}

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}
