// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

// Package gateway exposes the authentication exchange over TCP: one
// length-prefixed request/response pair per connection, each handled
// on its own goroutine.
package gateway

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// requestTimeout bounds a single authentication exchange end to end.
const requestTimeout = 30 * time.Second

// ConnectionCounter counts accepted connections. Satisfied by the
// observability metrics.
type ConnectionCounter interface {
	Inc()
}

type noopCounter struct{}

func (noopCounter) Inc() {}

// Server accepts launcher connections and runs one authentication
// exchange per connection.
type Server struct {
	addr        string
	handler     *Handler
	logger      *slog.Logger
	connections ConnectionCounter

	mu       sync.RWMutex
	listener net.Listener
}

// NewServer creates a Server. Logger and counter may be nil.
func NewServer(addr string, handler *Handler, logger *slog.Logger, connections ConnectionCounter) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if connections == nil {
		connections = noopCounter{}
	}
	return &Server{
		addr:        addr,
		handler:     handler,
		logger:      logger,
		connections: connections,
	}
}

// Addr returns the server's listen address, or "" before Run.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.Code("GATEWAY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("gateway server started", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			s.logger.Debug("error closing listener", "error", err)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.logger.Error("accept failed", "error", err)
				continue
			}
		}
		s.connections.Inc()
		go s.serveConn(ctx, conn)
	}
}

// serveConn runs one authentication exchange and closes the connection.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	connID := ulid.Make()
	logger := s.logger.With("conn_id", connID.String())

	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debug("error closing connection", "error", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(requestTimeout)); err != nil {
		logger.Debug("failed to set deadline", "error", err)
		return
	}

	ip := remoteIP(conn)
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := s.handler.Handle(ctx, conn, conn, ip); err != nil {
		logger.Debug("connection ended with transport error", "ip", ip, "error", err)
	}
}

// remoteIP strips the port from the connection's remote address.
func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
