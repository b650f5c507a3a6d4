package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/idanmel/skyarena/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	s.storage = NewWithClient(client, DefaultConfig())
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *StorageSuite) newAccount(username string, balance int64, inventory ...string) *model.Account {
	return &model.Account{
		Username:     username,
		PasswordHash: "$2a$10$fakehash",
		Balance:      balance,
		Inventory:    inventory,
	}
}

func (s *StorageSuite) TestCreateAndGetAccount() {
	err := s.storage.CreateAccount(s.ctx, s.newAccount("alice", 500, "F-16"))
	s.Require().NoError(err)

	account, err := s.storage.GetAccount(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", account.Username)
	s.Equal(int64(500), account.Balance)
	s.Equal([]string{"F-16"}, account.Inventory)
}

func (s *StorageSuite) TestCreateDuplicateUsername() {
	s.Require().NoError(s.storage.CreateAccount(s.ctx, s.newAccount("alice", 500)))

	err := s.storage.CreateAccount(s.ctx, s.newAccount("alice", 100))
	s.ErrorIs(err, model.ErrUsernameTaken)

	// The original account is untouched
	account, _ := s.storage.GetAccount(s.ctx, "alice")
	s.Equal(int64(500), account.Balance)
}

func (s *StorageSuite) TestGetAccountNotFound() {
	_, err := s.storage.GetAccount(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *StorageSuite) TestDeleteAccount() {
	s.Require().NoError(s.storage.CreateAccount(s.ctx, s.newAccount("alice", 500)))

	s.Require().NoError(s.storage.DeleteAccount(s.ctx, "alice"))

	_, err := s.storage.GetAccount(s.ctx, "alice")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *StorageSuite) TestPurchaseDebitsAndAddsAircraft() {
	s.Require().NoError(s.storage.CreateAccount(s.ctx, s.newAccount("alice", 500, "F-16")))

	s.Require().NoError(s.storage.Purchase(s.ctx, "alice", "MiG-25", 300))

	account, _ := s.storage.GetAccount(s.ctx, "alice")
	s.Equal(int64(200), account.Balance)
	s.Equal([]string{"F-16", "MiG-25"}, account.Inventory)
}

func (s *StorageSuite) TestPurchaseInsufficientFunds() {
	s.Require().NoError(s.storage.CreateAccount(s.ctx, s.newAccount("alice", 100)))

	err := s.storage.Purchase(s.ctx, "alice", "MiG-25", 300)
	s.ErrorIs(err, model.ErrInsufficientFunds)
}

func (s *StorageSuite) TestPurchaseAlreadyOwned() {
	s.Require().NoError(s.storage.CreateAccount(s.ctx, s.newAccount("alice", 500, "F-16")))

	err := s.storage.Purchase(s.ctx, "alice", "F-16", 200)
	s.ErrorIs(err, model.ErrAlreadyOwned)
}

func (s *StorageSuite) TestPurchaseUnknownAccount() {
	err := s.storage.Purchase(s.ctx, "nobody", "F-16", 200)
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *StorageSuite) TestCredit() {
	s.Require().NoError(s.storage.CreateAccount(s.ctx, s.newAccount("alice", 200)))

	s.Require().NoError(s.storage.Credit(s.ctx, "alice", 42))

	account, _ := s.storage.GetAccount(s.ctx, "alice")
	s.Equal(int64(242), account.Balance)
}

func (s *StorageSuite) TestCreditUnknownAccount() {
	s.ErrorIs(s.storage.Credit(s.ctx, "nobody", 10), model.ErrAccountNotFound)
}

func (s *StorageSuite) TestSequentialPurchasesSecondRejected() {
	s.Require().NoError(s.storage.CreateAccount(s.ctx, s.newAccount("alice", 500)))

	s.Require().NoError(s.storage.Purchase(s.ctx, "alice", "MiG-25", 300))
	s.ErrorIs(s.storage.Purchase(s.ctx, "alice", "MiG-25", 300), model.ErrAlreadyOwned)

	account, _ := s.storage.GetAccount(s.ctx, "alice")
	s.Equal(int64(200), account.Balance)
}
