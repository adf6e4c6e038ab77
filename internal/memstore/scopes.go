package memstore

import (
	"context"

	"github.com/openauthd/engine/internal/store"
)

// Scopes is the in-memory store.ScopeStore adapter.
type Scopes struct{ *state }

var _ store.ScopeStore = (*Scopes)(nil)

func (s *Scopes) Find(_ context.Context, name string) (*store.Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scopes[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := sc
	return &out, nil
}

func (s *Scopes) FindMany(_ context.Context, names []string) ([]*store.Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.Scope, 0, len(names))
	for _, n := range names {
		if sc, ok := s.scopes[n]; ok {
			scCopy := sc
			out = append(out, &scCopy)
		}
	}
	return out, nil
}
