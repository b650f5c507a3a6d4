package server

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/idanmel/skyarena/internal/dependencies/clock"
	"github.com/idanmel/skyarena/internal/handshake"
	"github.com/idanmel/skyarena/internal/services/account"
	"github.com/idanmel/skyarena/internal/services/shop"
	"github.com/idanmel/skyarena/internal/session"
	"github.com/idanmel/skyarena/internal/world"
)

// Config holds configuration for the control-channel server
type Config struct {
	// HandshakeTimeout bounds the key exchange on a fresh connection.
	HandshakeTimeout time.Duration

	// Session is the per-session configuration.
	Session session.Config
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		Session:          session.DefaultConfig(),
	}
}

// Server accepts control-channel connections, performs the key handshake,
// and runs one session goroutine per connection. On shutdown every live
// session receives a final shutdown frame before its socket closes.
type Server struct {
	hs       *handshake.Service
	accounts *account.Service
	shop     *shop.Service
	registry *world.Registry
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config

	mu       sync.Mutex
	sessions map[*session.Session]struct{}
	wg       sync.WaitGroup
}

// New creates a control-channel server.
func New(hs *handshake.Service, accounts *account.Service, shopSvc *shop.Service,
	registry *world.Registry, clk clock.Clock, logger *slog.Logger, cfg Config) *Server {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultConfig().HandshakeTimeout
	}
	return &Server{
		hs:       hs,
		accounts: accounts,
		shop:     shopSvc,
		registry: registry,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
		sessions: make(map[*session.Session]struct{}),
	}
}

// Serve accepts connections on ln until ctx is cancelled, then notifies all
// live sessions and waits for their goroutines to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Warn("accept failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}

	s.notifyShutdown()
	s.wg.Wait()
	return nil
}

// handleConn performs the handshake and runs the session to completion.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	key, err := s.hs.Establish(conn)
	if err != nil {
		s.logger.Warn("handshake failed",
			slog.String("remote", conn.RemoteAddr().String()),
			slog.String("error", err.Error()),
		)
		_ = conn.Close()
		return
	}
	_ = conn.SetDeadline(time.Time{})

	sess := session.New(conn, key, s.accounts, s.shop, s.registry, s.clock, s.logger, s.cfg.Session)

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	sess.Run(ctx)

	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// notifyShutdown sends the final shutdown frame to every live session.
func (s *Server) notifyShutdown() {
	s.mu.Lock()
	live := make([]*session.Session, 0, len(s.sessions))
	for sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		sess.NotifyShutdown()
	}
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
