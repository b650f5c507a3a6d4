package shop

import (
	"context"
	"log/slog"

	"github.com/idanmel/skyarena/internal/model"
	"github.com/idanmel/skyarena/internal/storage"
)

// Service serves the aircraft shop: balance/inventory queries and purchases
// against a fixed price catalog. The atomic check-then-debit lives in the
// store; the service only validates the catalog entry.
type Service struct {
	store   storage.AccountStore
	logger  *slog.Logger
	catalog map[string]model.Aircraft
}

// DefaultCatalog returns the stock aircraft catalog.
func DefaultCatalog() []model.Aircraft {
	return []model.Aircraft{
		{ID: "F-16", Price: 200},
		{ID: "MiG-25", Price: 300},
		{ID: "F-35", Price: 450},
		{ID: "Su-57", Price: 500},
		{ID: "B-2", Price: 800},
	}
}

// New creates a new shop service over the given catalog.
func New(store storage.AccountStore, logger *slog.Logger, catalog []model.Aircraft) *Service {
	byID := make(map[string]model.Aircraft, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}
	return &Service{
		store:   store,
		logger:  logger,
		catalog: byID,
	}
}

// Info returns the account's balance and inventory for a SHPR answer.
func (s *Service) Info(ctx context.Context, username string) (int64, []string, error) {
	account, err := s.store.GetAccount(ctx, username)
	if err != nil {
		return 0, nil, err
	}
	return account.Balance, account.Inventory, nil
}

// Buy purchases an aircraft for the account. The price check and debit are
// atomic per account, so two concurrent buys of the same aircraft debit at
// most once.
func (s *Service) Buy(ctx context.Context, username, aircraftID string) error {
	aircraft, ok := s.catalog[aircraftID]
	if !ok {
		return model.ErrUnknownAircraft
	}

	if err := s.store.Purchase(ctx, username, aircraftID, aircraft.Price); err != nil {
		return err
	}

	s.logger.Info("aircraft purchased",
		slog.String("username", username),
		slog.String("aircraft", aircraftID),
		slog.Int64("price", aircraft.Price),
	)
	return nil
}

// Price returns the catalog price for an aircraft.
func (s *Service) Price(aircraftID string) (int64, bool) {
	aircraft, ok := s.catalog[aircraftID]
	if !ok {
		return 0, false
	}
	return aircraft.Price, true
}
