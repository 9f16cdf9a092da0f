package server

import (
	"context"
	"net/http"
	"time"
)

// Server encapsulates the HTTP server of the application, providing controlled startup and shutdown.
type Server struct {
	// server — embedded HTTP server from net/http package, fully configured and ready to use.
	server *http.Server
}

// ListenAndServe starts the HTTP server and begins listening on the specified address.
// Blocks execution until the server is stopped or an error occurs.
// If server is stopped via Shutdown, method returns http.ErrServerClosed.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server with the provided context.
// In-flight scoring runs finish before their connections close.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// NewServer creates and configures a new server instance.
//
// Parameters:
// - address: address and port to listen on (e.g., ":8080").
// - token: shared ingest token for write endpoints.
// - engine: scoring engine served by the API.
// - lockTimeout: ledger lock timeout of the engine.
//
// Write timeouts cover the ledger lock wait of a scoring run.
func NewServer(address string, token string, engine Engine, lockTimeout time.Duration) *Server {
	router := NewApiV1Router(engine, token)
	s := Server{&http.Server{
		Addr:           address,
		Handler:        router.Mux(),
		ReadTimeout:    time.Second * 3,
		WriteTimeout:   lockTimeout + time.Second*5,
		MaxHeaderBytes: 1024 * 10,
	}}

	return &s
}
