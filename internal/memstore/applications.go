package memstore

import (
	"context"

	"github.com/openauthd/engine/internal/store"
)

// Applications is the in-memory store.ApplicationStore adapter.
type Applications struct{ *state }

var _ store.ApplicationStore = (*Applications)(nil)

func (a *Applications) FindByClientID(_ context.Context, clientID string) (*store.Application, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	app, ok := a.applications[clientID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := app
	return &out, nil
}
