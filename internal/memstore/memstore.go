// Package memstore provides the in-memory reference implementation of the
// store ports, grounded on the teacher's storage/memory package: a single
// mutex guarding plain maps. Compare-and-swap style transitions (Redeem,
// Revoke) are expressed directly instead of dex's generic updater-function
// pattern, since the engine's stores need exactly these specific atomic
// transitions rather than arbitrary mutation.
package memstore

import (
	"sync"

	"github.com/openauthd/engine/internal/store"
)

// state is the shared, mutex-guarded backing store for every port adapter
// below. The four adapter types (Applications, Authorizations, Tokens,
// Scopes) each implement exactly one store.*Store interface so that a
// single memstore instance can satisfy store.Stores without one method
// name having to serve two unrelated interfaces (e.g. both
// AuthorizationStore.Revoke and TokenStore.Revoke).
type state struct {
	mu sync.Mutex

	applications   map[string]store.Application
	authorizations map[string]store.Authorization
	tokens         map[string]store.Token
	scopes         map[string]store.Scope
}

// Store bundles the four in-memory port adapters plus the registration
// helpers operators use to seed them (AddApplication, AddScope).
type Store struct {
	*state
	Applications   *Applications
	Authorizations *Authorizations
	Tokens         *Tokens
	Scopes         *Scopes
}

// New returns an empty Store wired into a store.Stores bundle via AsStores.
func New() *Store {
	st := &state{
		applications:   make(map[string]store.Application),
		authorizations: make(map[string]store.Authorization),
		tokens:         make(map[string]store.Token),
		scopes:         make(map[string]store.Scope),
	}
	return &Store{
		state:          st,
		Applications:   &Applications{st},
		Authorizations: &Authorizations{st},
		Tokens:         &Tokens{st},
		Scopes:         &Scopes{st},
	}
}

// AsStores adapts s into the store.Stores bundle the engine consumes.
func (s *Store) AsStores() store.Stores {
	return store.Stores{
		Applications:   s.Applications,
		Authorizations: s.Authorizations,
		Tokens:         s.Tokens,
		Scopes:         s.Scopes,
	}
}

// AddApplication registers an application for lookup. Not part of
// store.ApplicationStore: registration is an operator/host concern, not a
// protocol operation the engine performs on its own behalf.
func (s *Store) AddApplication(a store.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications[a.ClientID] = a
}

// AddScope registers a scope for lookup.
func (s *Store) AddScope(sc store.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[sc.Name] = sc
}
