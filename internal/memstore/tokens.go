package memstore

import (
	"context"
	"time"

	"github.com/openauthd/engine/internal/store"
)

// Tokens is the in-memory store.TokenStore adapter.
type Tokens struct{ *state }

var _ store.TokenStore = (*Tokens)(nil)

func (t *Tokens) Create(_ context.Context, entry *store.Token) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tokens[entry.ID]; ok {
		return store.ErrAlreadyExists
	}
	t.tokens[entry.ID] = *entry
	return nil
}

func (t *Tokens) Find(_ context.Context, id string) (*store.Token, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.tokens[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := entry
	return &out, nil
}

func (t *Tokens) Activate(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.tokens[id]
	if !ok {
		return store.ErrNotFound
	}
	if entry.Status != store.TokenInactive {
		return nil
	}
	entry.Status = store.TokenValid
	t.tokens[id] = entry
	return nil
}

// Redeem performs the atomic valid->redeemed compare-and-swap spec §5 and
// §8 Invariant 4 require: under the store's single mutex, exactly one
// caller observes entry.Status == valid and transitions it; every other
// concurrent caller for the same id sees a status other than valid and must
// report invalid_grant without mutating anything.
func (t *Tokens) Redeem(_ context.Context, id string, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.tokens[id]
	if !ok {
		return store.ErrNotFound
	}
	if entry.Status != store.TokenValid {
		return store.ErrNotFound
	}
	entry.Status = store.TokenRedeemed
	redeemedAt := now
	entry.RedemptionDate = &redeemedAt
	t.tokens[id] = entry
	return nil
}

// Revoke is monotonic: revoking an already-revoked token is a no-op success
// rather than an error, matching the revocation endpoint's "always 200"
// contract (spec §4.5.4).
func (t *Tokens) Revoke(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.tokens[id]
	if !ok {
		return store.ErrNotFound
	}
	entry.Status = store.TokenRevoked
	t.tokens[id] = entry
	return nil
}

func (t *Tokens) RevokeByAuthorization(_ context.Context, authorizationID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, entry := range t.tokens {
		if entry.AuthorizationID == authorizationID && entry.Status != store.TokenRevoked {
			entry.Status = store.TokenRevoked
			t.tokens[id] = entry
		}
	}
	return nil
}

func (t *Tokens) MarkPolled(_ context.Context, id string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.tokens[id]
	if !ok {
		return store.ErrNotFound
	}
	polledAt := at
	entry.LastPolledAt = &polledAt
	t.tokens[id] = entry
	return nil
}

func (t *Tokens) UpdatePayload(_ context.Context, id string, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.tokens[id]
	if !ok {
		return store.ErrNotFound
	}
	entry.PayloadReference = payload
	t.tokens[id] = entry
	return nil
}
