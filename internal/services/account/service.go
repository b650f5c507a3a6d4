package account

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/idanmel/skyarena/internal/dependencies/clock"
	"github.com/idanmel/skyarena/internal/model"
	"github.com/idanmel/skyarena/internal/storage"
)

// Service handles account signup, login, crediting and deletion on top of
// the account store. Passwords are peppered then bcrypt-hashed (bcrypt
// supplies the per-password salt).
type Service struct {
	store  storage.AccountStore
	clock  clock.Clock
	logger *slog.Logger
	cfg    Config
}

// Config holds configuration for the account service
type Config struct {
	// StartingBalance is credited to every new account.
	StartingBalance int64

	// StarterAircraft is placed in every new account's inventory.
	StarterAircraft string

	// Pepper is a process-wide secret mixed into every password before
	// hashing. Changing it invalidates all stored credentials.
	Pepper string

	BcryptCost int
}

// DefaultConfig returns default account configuration
func DefaultConfig() Config {
	return Config{
		StartingBalance: 500,
		StarterAircraft: "F-16",
		BcryptCost:      bcrypt.DefaultCost,
	}
}

// New creates a new account service
func New(store storage.AccountStore, clk clock.Clock, logger *slog.Logger, cfg Config) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		store:  store,
		clock:  clk,
		logger: logger,
		cfg:    cfg,
	}
}

// Signup creates a new account with the starting balance and starter
// aircraft. Returns model.ErrUsernameTaken if the username exists.
func (s *Service) Signup(ctx context.Context, username, password string) (*model.Account, error) {
	hash, err := bcrypt.GenerateFromPassword(s.peppered(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	account := &model.Account{
		Username:     username,
		PasswordHash: string(hash),
		Balance:      s.cfg.StartingBalance,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.cfg.StarterAircraft != "" {
		account.Inventory = []string{s.cfg.StarterAircraft}
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account created", slog.String("username", username))
	return account, nil
}

// Login verifies credentials and returns the account.
// Bad username and bad password both map to model.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), s.peppered(password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return account, nil
}

// Get returns the current account state.
func (s *Service) Get(ctx context.Context, username string) (*model.Account, error) {
	return s.store.GetAccount(ctx, username)
}

// Credit adds amount to the account's balance.
func (s *Service) Credit(ctx context.Context, username string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	return s.store.Credit(ctx, username, amount)
}

// Delete removes the account entirely (operator console path).
func (s *Service) Delete(ctx context.Context, username string) error {
	if err := s.store.DeleteAccount(ctx, username); err != nil {
		return err
	}
	s.logger.Info("account deleted", slog.String("username", username))
	return nil
}

func (s *Service) peppered(password string) []byte {
	return []byte(password + s.cfg.Pepper)
}
