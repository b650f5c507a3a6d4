package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/idanmel/skyarena/internal/model"
	"github.com/idanmel/skyarena/internal/storage"
)

// Storage is a Redis-backed implementation of the account store. Accounts
// are stored as JSON blobs; compound purchase/credit operations use WATCH
// transactions so concurrent mutations of the same account never interleave.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis account store.
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{client: client, cfg: cfg}, nil
}

// NewWithClient creates a Redis store with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{client: client, cfg: cfg}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.AccountStore = (*Storage)(nil)

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	// SETNX gives atomic create-if-absent without a transaction.
	created, err := s.client.SetNX(ctx, accountKey(account.Username), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return model.ErrUsernameTaken
	}
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, username string) (*model.Account, error) {
	data, err := s.client.Get(ctx, accountKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Storage) DeleteAccount(ctx context.Context, username string) error {
	return s.client.Del(ctx, accountKey(username)).Err()
}

func (s *Storage) Purchase(ctx context.Context, username, aircraftID string, price int64) error {
	return s.mutateAccount(ctx, username, func(account *model.Account) error {
		if account.Owns(aircraftID) {
			return model.ErrAlreadyOwned
		}
		if account.Balance < price {
			return model.ErrInsufficientFunds
		}
		account.Balance -= price
		account.Inventory = append(account.Inventory, aircraftID)
		return nil
	})
}

func (s *Storage) Credit(ctx context.Context, username string, amount int64) error {
	return s.mutateAccount(ctx, username, func(account *model.Account) error {
		account.Balance += amount
		return nil
	})
}

// mutateAccount runs a read-modify-write on one account inside a WATCH
// transaction, retrying on contention up to cfg.MaxTxRetries times.
func (s *Storage) mutateAccount(ctx context.Context, username string, mutate func(*model.Account) error) error {
	key := accountKey(username)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrAccountNotFound
			}
			return err
		}

		var account model.Account
		if err := json.Unmarshal(data, &account); err != nil {
			return err
		}

		if err := mutate(&account); err != nil {
			return err
		}

		updated, err := json.Marshal(&account)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < s.cfg.MaxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("account %s: transaction contention after %d retries", username, s.cfg.MaxTxRetries)
}
