package world

import (
	"net"
	"sync"

	"github.com/idanmel/skyarena/internal/model"
)

// binding is a username's UDP endpoint. The token is known as soon as the
// TCP session enters the open world; the address only arrives with the
// client's first datagram, so a binding may hold just the token for a while.
type binding struct {
	token string
	addr  *net.UDPAddr // nil until the first ADDS datagram resolves it
}

// Registry is the shared store of live player transforms and their UDP
// address bindings. Both maps sit behind one mutex so every compound update
// is atomic with respect to the broadcast loop's snapshot.
type Registry struct {
	mu       sync.Mutex
	players  map[string]*model.PlayerRecord // token -> record
	bindings map[string]binding             // username -> endpoint
}

// NewRegistry creates an empty world registry.
func NewRegistry() *Registry {
	return &Registry{
		players:  make(map[string]*model.PlayerRecord),
		bindings: make(map[string]binding),
	}
}

// Register inserts a player record with a zeroed transform and the
// username's token binding in one critical section. A stale binding left by
// a vanished session for the same username is force-removed first, along
// with its player record.
func (r *Registry) Register(token, username, aircraft string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[token]; ok {
		return model.ErrTokenRegistered
	}

	if old, ok := r.bindings[username]; ok {
		delete(r.players, old.token)
	}

	r.players[token] = &model.PlayerRecord{
		Username: username,
		Aircraft: aircraft,
	}
	r.bindings[username] = binding{token: token}
	return nil
}

// Remove deletes the player record and its username binding in one critical
// section. Removing an unknown token is a no-op, which makes session
// teardown idempotent.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.players[token]
	if !ok {
		return
	}
	delete(r.players, token)

	// Only drop the binding if it still belongs to this token; a reconnect
	// may have already replaced it.
	if b, ok := r.bindings[record.Username]; ok && b.token == token {
		delete(r.bindings, record.Username)
	}
}

// UpdateTransform overwrites the transform for a known token, preserving
// username and aircraft. Returns false for a stale or forged token.
func (r *Registry) UpdateTransform(token string, t model.Transform) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.players[token]
	if !ok {
		return false
	}
	record.Transform = t
	return true
}

// BindAddress resolves the binding holding the given unresolved token to the
// sender's address. Returns false if no binding holds that token.
func (r *Registry) BindAddress(token string, addr *net.UDPAddr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for username, b := range r.bindings {
		if b.addr == nil && b.token == token {
			r.bindings[username] = binding{token: token, addr: addr}
			return true
		}
	}
	return false
}

// Snapshot returns a consistent copy of every player record together with
// every resolved address, taken under one lock acquisition. Bindings still
// waiting for their first datagram are skipped.
func (r *Registry) Snapshot() ([]model.PlayerRecord, []*net.UDPAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]model.PlayerRecord, 0, len(r.players))
	for _, record := range r.players {
		records = append(records, *record)
	}

	addrs := make([]*net.UDPAddr, 0, len(r.bindings))
	for _, b := range r.bindings {
		if b.addr != nil {
			addrs = append(addrs, b.addr)
		}
	}
	return records, addrs
}

// Counts returns the number of live players and resolved addresses.
func (r *Registry) Counts() (players, bound int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	players = len(r.players)
	for _, b := range r.bindings {
		if b.addr != nil {
			bound++
		}
	}
	return players, bound
}
