package memory

import (
	"context"
	"sync"

	"github.com/idanmel/skyarena/internal/model"
	"github.com/idanmel/skyarena/internal/storage"
)

// Storage is an in-memory implementation of the account store. The single
// mutex makes every compound purchase/credit operation atomic per store,
// which is stricter than the per-account requirement and fine at this scale.
type Storage struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
}

// New creates a new in-memory account store.
func New() *Storage {
	return &Storage{
		accounts: make(map[string]*model.Account),
	}
}

// Ensure Storage implements the interface
var _ storage.AccountStore = (*Storage)(nil)

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Username]; ok {
		return model.ErrUsernameTaken
	}
	s.accounts[account.Username] = account.Clone()
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[username]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *Storage) DeleteAccount(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, username)
	return nil
}

func (s *Storage) Purchase(ctx context.Context, username, aircraftID string, price int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[username]
	if !ok {
		return model.ErrAccountNotFound
	}
	if account.Owns(aircraftID) {
		return model.ErrAlreadyOwned
	}
	if account.Balance < price {
		return model.ErrInsufficientFunds
	}

	account.Balance -= price
	account.Inventory = append(account.Inventory, aircraftID)
	return nil
}

func (s *Storage) Credit(ctx context.Context, username string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[username]
	if !ok {
		return model.ErrAccountNotFound
	}
	account.Balance += amount
	return nil
}
