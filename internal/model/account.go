package model

import "time"

// Account is a player account as held by the account store.
type Account struct {
	Username     string
	PasswordHash string // bcrypt hash, never the clear password
	Balance      int64
	Inventory    []string // owned aircraft identifiers
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Owns reports whether the account's inventory contains the given aircraft.
func (a *Account) Owns(aircraftID string) bool {
	for _, id := range a.Inventory {
		if id == aircraftID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Inventory = make([]string, len(a.Inventory))
	copy(cp.Inventory, a.Inventory)
	return &cp
}
