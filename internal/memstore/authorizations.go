package memstore

import (
	"context"

	"github.com/openauthd/engine/internal/store"
)

// Authorizations is the in-memory store.AuthorizationStore adapter.
type Authorizations struct{ *state }

var _ store.AuthorizationStore = (*Authorizations)(nil)

func (a *Authorizations) Create(_ context.Context, entry *store.Authorization) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.authorizations[entry.ID]; ok {
		return store.ErrAlreadyExists
	}
	a.authorizations[entry.ID] = *entry
	return nil
}

func (a *Authorizations) Find(_ context.Context, id string) (*store.Authorization, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.authorizations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := entry
	return &out, nil
}

func (a *Authorizations) FindValid(_ context.Context, subject, clientID string) (*store.Authorization, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, entry := range a.authorizations {
		if entry.Subject == subject && entry.ClientID == clientID && entry.Status == store.AuthorizationValid {
			out := entry
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

// Revoke transitions the authorization to revoked and cascades to every
// token referencing it (spec §3, §8 Invariant 5). Revocation is monotonic:
// revoking an already-revoked authorization leaves it revoked, repeats the
// token cascade and returns no error, so concurrent revokes are idempotent.
func (a *Authorizations) Revoke(ctx context.Context, id string) error {
	a.mu.Lock()
	entry, ok := a.authorizations[id]
	if !ok {
		a.mu.Unlock()
		return store.ErrNotFound
	}
	entry.Status = store.AuthorizationRevoked
	a.authorizations[id] = entry
	a.mu.Unlock()

	tokens := (&Tokens{a.state})
	return tokens.RevokeByAuthorization(ctx, id)
}
