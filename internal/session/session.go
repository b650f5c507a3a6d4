package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/idanmel/skyarena/internal/dependencies/clock"
	"github.com/idanmel/skyarena/internal/model"
	"github.com/idanmel/skyarena/internal/protocol"
	"github.com/idanmel/skyarena/internal/services/account"
	"github.com/idanmel/skyarena/internal/services/shop"
	"github.com/idanmel/skyarena/internal/world"
)

// State is a session's position in the protocol.
type State int

const (
	StateLoginOrSignup State = iota
	StateSelectWindow
	StateOpenWorld
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoginOrSignup:
		return "login_or_signup"
	case StateSelectWindow:
		return "select_window"
	case StateOpenWorld:
		return "open_world"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds configuration for a session
type Config struct {
	// IdleTimeout bounds how long a session may sit without a readable
	// frame before it is torn down like any other transport error.
	IdleTimeout time.Duration

	// WriteTimeout bounds each frame write so a stalled client cannot
	// occupy the session goroutine forever.
	WriteTimeout time.Duration

	// RewardInterval is the open-world time per credited currency unit.
	RewardInterval time.Duration
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		IdleTimeout:    5 * time.Minute,
		WriteTimeout:   10 * time.Second,
		RewardInterval: 10 * time.Second,
	}
}

// Session drives the control protocol for one TCP connection. It is owned
// exclusively by its goroutine; the world registry and the account store are
// the only shared state it touches.
type Session struct {
	conn     net.Conn
	key      []byte
	accounts *account.Service
	shop     *shop.Service
	registry *world.Registry
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config

	state        State
	username     string
	token        string
	enteredWorld time.Time

	teardownOnce sync.Once
}

// New creates a session for an authenticated-key connection. The handshake
// must already have produced the symmetric key.
func New(conn net.Conn, key []byte, accounts *account.Service, shopSvc *shop.Service,
	registry *world.Registry, clk clock.Clock, logger *slog.Logger, cfg Config) *Session {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultConfig().IdleTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.RewardInterval == 0 {
		cfg.RewardInterval = DefaultConfig().RewardInterval
	}
	return &Session{
		conn:     conn,
		key:      key,
		accounts: accounts,
		shop:     shopSvc,
		registry: registry,
		clock:    clk,
		logger:   logger.With(slog.String("remote", conn.RemoteAddr().String())),
		cfg:      cfg,
		state:    StateLoginOrSignup,
	}
}

// State returns the session's current protocol state.
func (s *Session) State() State {
	return s.state
}

// Run drives the session loop until the client exits, an unrecoverable
// transport error occurs, or the context is cancelled. Teardown runs exactly
// once on every exit path.
func (s *Session) Run(ctx context.Context) {
	defer s.Teardown(ctx)

	for s.state != StateClosed {
		if ctx.Err() != nil {
			return
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		payload, err := protocol.DecodeFrame(s.conn, s.key)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("client disconnected")
			} else {
				s.logger.Warn("session read failed", slog.String("error", err.Error()))
			}
			return
		}

		reply := s.dispatch(ctx, payload)
		if reply == nil {
			continue
		}
		if err := s.send(reply); err != nil {
			s.logger.Warn("session write failed", slog.String("error", err.Error()))
			return
		}
	}
}

// dispatch parses and handles one request, returning the reply frame payload
// or nil when the action produces no answer (EXTG, EXTC).
func (s *Session) dispatch(ctx context.Context, payload []byte) []byte {
	msg, err := protocol.ParseControl(payload)
	if err != nil {
		s.logger.Warn("malformed request", slog.String("error", err.Error()))
		return protocol.FormatGenericError()
	}

	switch s.state {
	case StateLoginOrSignup:
		return s.handleLoginOrSignup(ctx, msg)
	case StateSelectWindow:
		return s.handleSelectWindow(ctx, msg)
	case StateOpenWorld:
		return s.handleOpenWorld(ctx, msg)
	default:
		return protocol.FormatGenericError()
	}
}

func (s *Session) handleLoginOrSignup(ctx context.Context, msg protocol.Message) []byte {
	switch m := msg.(type) {
	case protocol.LoginRequest:
		acct, err := s.accounts.Login(ctx, m.Username, m.Password)
		if err != nil {
			if !errors.Is(err, model.ErrInvalidCredentials) {
				s.fail(ctx, "login store failure", err)
				return nil
			}
			return protocol.FormatResult(protocol.TagLoginAnswer, false)
		}
		s.authenticate(acct.Username)
		return protocol.FormatResult(protocol.TagLoginAnswer, true)
	case protocol.SignupRequest:
		acct, err := s.accounts.Signup(ctx, m.Username, m.Password)
		if err != nil {
			if !errors.Is(err, model.ErrUsernameTaken) {
				s.fail(ctx, "signup store failure", err)
				return nil
			}
			return protocol.FormatResult(protocol.TagSignupAnswer, false)
		}
		s.authenticate(acct.Username)
		return protocol.FormatResult(protocol.TagSignupAnswer, true)
	default:
		return protocol.FormatGenericError()
	}
}

func (s *Session) handleSelectWindow(ctx context.Context, msg protocol.Message) []byte {
	switch m := msg.(type) {
	case protocol.ShopRequest:
		balance, inventory, err := s.shop.Info(ctx, s.username)
		if err != nil {
			s.fail(ctx, "shop query failure", err)
			return nil
		}
		return protocol.FormatShopAnswer(balance, inventory)
	case protocol.BuyRequest:
		err := s.shop.Buy(ctx, s.username, m.AircraftID)
		switch {
		case err == nil:
			return protocol.FormatResult(protocol.TagBuyAnswer, true)
		case errors.Is(err, model.ErrUnknownAircraft),
			errors.Is(err, model.ErrAlreadyOwned),
			errors.Is(err, model.ErrInsufficientFunds):
			return protocol.FormatResult(protocol.TagBuyAnswer, false)
		default:
			s.fail(ctx, "purchase store failure", err)
			return nil
		}
	case protocol.SelectRequest:
		return s.handleSelect(ctx, m)
	default:
		return protocol.FormatGenericError()
	}
}

// handleSelect moves the session into the open world if the account owns the
// requested aircraft.
func (s *Session) handleSelect(ctx context.Context, m protocol.SelectRequest) []byte {
	acct, err := s.accounts.Get(ctx, s.username)
	if err != nil {
		s.fail(ctx, "account lookup failure", err)
		return nil
	}
	if !acct.Owns(m.AircraftID) {
		return protocol.FormatResult(protocol.TagSelectAnswer, false)
	}

	if err := s.registry.Register(m.Token, s.username, m.AircraftID); err != nil {
		s.logger.Warn("world registration rejected",
			slog.String("token", m.Token),
			slog.String("error", err.Error()),
		)
		return protocol.FormatResult(protocol.TagSelectAnswer, false)
	}

	s.token = m.Token
	s.enteredWorld = s.clock.Now()
	s.state = StateOpenWorld
	s.logger.Info("entered open world",
		slog.String("username", s.username),
		slog.String("aircraft", m.AircraftID),
	)
	return protocol.FormatResult(protocol.TagSelectAnswer, true)
}

func (s *Session) handleOpenWorld(ctx context.Context, msg protocol.Message) []byte {
	switch msg.(type) {
	case protocol.ExitToSelect:
		s.leaveWorld(ctx)
		s.state = StateSelectWindow
		return nil
	case protocol.ExitClient:
		s.leaveWorld(ctx)
		s.state = StateClosed
		return nil
	default:
		return protocol.FormatGenericError()
	}
}

// authenticate binds the session to its account and advances past login.
func (s *Session) authenticate(username string) {
	s.username = username
	s.state = StateSelectWindow
	s.logger.Info("session authenticated", slog.String("username", username))
}

// leaveWorld removes the session's world registration and credits the
// account for elapsed open-world time. Guarded on the token so it is
// idempotent: the teardown path may call it after a voluntary exit already
// did the work.
func (s *Session) leaveWorld(ctx context.Context) {
	if s.token == "" {
		return
	}

	s.registry.Remove(s.token)
	s.token = ""

	elapsed := s.clock.Now().Sub(s.enteredWorld)
	reward := int64(elapsed / s.cfg.RewardInterval)
	if reward > 0 {
		if err := s.accounts.Credit(ctx, s.username, reward); err != nil {
			s.logger.Warn("flight time credit failed",
				slog.String("username", s.username),
				slog.String("error", err.Error()),
			)
			return
		}
	}
	s.logger.Info("left open world",
		slog.String("username", s.username),
		slog.Int64("reward", reward),
	)
}

// fail logs a store-level failure and closes the session. A single session's
// store trouble never propagates beyond that session.
func (s *Session) fail(ctx context.Context, msg string, err error) {
	s.logger.Error(msg, slog.String("error", err.Error()))
	s.state = StateClosed
}

// NotifyShutdown sends the server-initiated shutdown notice and closes the
// socket, waking the session goroutine out of its blocking read.
func (s *Session) NotifyShutdown() {
	if err := s.send(protocol.FormatShutdown()); err != nil {
		s.logger.Warn("shutdown notice failed", slog.String("error", err.Error()))
	}
	_ = s.conn.Close()
}

// Teardown is the single cleanup path for every way a session can end. It
// runs at most once regardless of how many exit paths race to trigger it.
func (s *Session) Teardown(ctx context.Context) {
	s.teardownOnce.Do(func() {
		s.leaveWorld(ctx)
		s.state = StateClosed
		_ = s.conn.Close()
		s.logger.Info("session closed")
	})
}

func (s *Session) send(payload []byte) error {
	frame, err := protocol.EncodeFrame(payload, s.key)
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_, err = s.conn.Write(frame)
	return err
}
