// Package store defines the persistence ports the engine depends on:
// Application, Authorization, Token and Scope entries, plus the stores that
// hold them. Implementations are external collaborators per spec §1 — this
// package only defines the contract and the entry shapes, grounded on the
// teacher's storage.Storage interface (storage/storage.go) generalized from
// dex's fixed resource set to the spec's Application/Authorization/Token/
// Scope model.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a lookup finds nothing, mirroring
// the teacher's storage.ErrNotFound sentinel.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyExists is returned by stores on a duplicate create, mirroring
// the teacher's storage.ErrAlreadyExists sentinel.
var ErrAlreadyExists = errors.New("store: already exists")

// ClientType enumerates how an Application authenticates itself.
type ClientType string

const (
	ClientPublic       ClientType = "public"
	ClientConfidential ClientType = "confidential"
	ClientHybrid       ClientType = "hybrid"
)

// Application is the registered relying-party client. Opaque to the core
// per spec §3; the core only reads these fields.
type Application struct {
	ClientID     string
	ClientSecret string // a bcrypt hash when SecretHashed; checked by internal/endpoints' verifySecret
	SecretHashed bool
	Type         ClientType

	Endpoints  map[string]bool // endpoint name -> permitted
	GrantTypes map[string]bool // grant type -> permitted
	Scopes     map[string]bool // scope name -> permitted

	RedirectURIs         []string
	PostLogoutRedirectURIs []string
}

// PermitsEndpoint reports whether the application may use the named
// endpoint. An application with no Endpoints set is treated as permitting
// every endpoint (keeps the zero-value Application usable for quick tests
// and degraded-mode operators that disable permission checks altogether).
func (a Application) PermitsEndpoint(name string) bool {
	if len(a.Endpoints) == 0 {
		return true
	}
	return a.Endpoints[name]
}

// PermitsGrantType reports whether the application may use the named grant.
func (a Application) PermitsGrantType(name string) bool {
	if len(a.GrantTypes) == 0 {
		return true
	}
	return a.GrantTypes[name]
}

// PermitsScope reports whether the application may request the named scope.
func (a Application) PermitsScope(name string) bool {
	if len(a.Scopes) == 0 {
		return true
	}
	return a.Scopes[name]
}

// HasRedirectURI reports whether uri is registered exactly.
func (a Application) HasRedirectURI(uri string) bool {
	for _, u := range a.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// HasPostLogoutRedirectURI reports whether uri is registered exactly.
func (a Application) HasPostLogoutRedirectURI(uri string) bool {
	for _, u := range a.PostLogoutRedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AuthorizationStatus is the lifecycle state of an Authorization entry.
type AuthorizationStatus string

const (
	AuthorizationValid   AuthorizationStatus = "valid"
	AuthorizationRevoked AuthorizationStatus = "revoked"
)

// AuthorizationType classifies how an Authorization entry came to exist.
type AuthorizationType string

const (
	AuthorizationPermanent AuthorizationType = "permanent"
	AuthorizationAdHoc     AuthorizationType = "ad-hoc"
	AuthorizationExternal  AuthorizationType = "external"
	AuthorizationDevice    AuthorizationType = "device"
)

// Authorization records a subject's consent grant to a client.
type Authorization struct {
	ID         string
	Subject    string
	ClientID   string
	Status     AuthorizationStatus
	Scopes     []string
	Type       AuthorizationType
	CreationDate time.Time
}

// TokenType enumerates the six token kinds the engine issues.
type TokenType string

const (
	TokenAccess            TokenType = "access"
	TokenRefresh           TokenType = "refresh"
	TokenAuthorizationCode TokenType = "authorization-code"
	TokenIdentity          TokenType = "identity"
	TokenDeviceCode        TokenType = "device-code"
	TokenUserCode          TokenType = "user-code"
)

// TokenStatus is the lifecycle state of a Token entry.
type TokenStatus string

const (
	TokenInactive TokenStatus = "inactive"
	TokenValid    TokenStatus = "valid"
	TokenRedeemed TokenStatus = "redeemed"
	TokenRevoked  TokenStatus = "revoked"
	TokenRejected TokenStatus = "rejected"
)

// Token is a server-side record of an issued credential. PayloadReference
// is either the reference-token opaque handle's backing payload, or, for
// self-contained JWTs, a lookup key used only by revocation/introspection
// to find this record without re-parsing the JWT (e.g. its jti).
type Token struct {
	ID              string
	Subject         string
	ClientID        string
	AuthorizationID string // empty when not associated with an Authorization
	Type            TokenType
	Status          TokenStatus
	PayloadReference []byte

	CreationDate   time.Time
	ExpirationDate time.Time
	RedemptionDate *time.Time

	// LastPolledAt tracks the device_code grant's most recent poll, used to
	// enforce the device flow's minimum polling interval (RFC 8628 §3.5).
	// Unused by every other token type.
	LastPolledAt *time.Time
}

// Scope is a registered, nameable collection of resource identifiers that
// clients may request inclusion of.
type Scope struct {
	Name        string
	DisplayName string
	Description string
	Resources   []string
}

// ApplicationStore resolves registered clients.
type ApplicationStore interface {
	FindByClientID(ctx context.Context, clientID string) (*Application, error)
}

// AuthorizationStore manages Authorization entries and their lifecycle.
type AuthorizationStore interface {
	Create(ctx context.Context, a *Authorization) error
	Find(ctx context.Context, id string) (*Authorization, error)
	FindValid(ctx context.Context, subject, clientID string) (*Authorization, error)

	// Revoke transitions an authorization to revoked. Implementations must
	// make this monotonic: a revoked authorization never returns to valid.
	Revoke(ctx context.Context, id string) error
}

// TokenStore manages Token entries, including the atomic operations the
// core's concurrency model (spec §5) depends on.
type TokenStore interface {
	Create(ctx context.Context, t *Token) error
	Find(ctx context.Context, id string) (*Token, error)

	// Activate transitions a token from inactive to valid at the end of
	// successful issuance.
	Activate(ctx context.Context, id string) error

	// Redeem performs an atomic compare-and-swap from valid to redeemed.
	// Exactly one concurrent caller for a given id succeeds; others observe
	// ErrNotFound or a status other than valid and must fail with
	// invalid_grant. Used for one-time codes and rotated refresh tokens.
	Redeem(ctx context.Context, id string, now time.Time) error

	// Revoke transitions a token to revoked. Revocation is monotonic.
	Revoke(ctx context.Context, id string) error

	// RevokeByAuthorization revokes every token referencing authorizationID,
	// implementing the cascade spec §3/§8 Invariant 5 requires.
	RevokeByAuthorization(ctx context.Context, authorizationID string) error

	// MarkPolled stamps a device_code entry's LastPolledAt. Implementations
	// need not make this atomic with a subsequent read: the device grant
	// handler's own minimum-interval check tolerates races in the attacker's
	// favor (an extra poll slipping through) but never in ours.
	MarkPolled(ctx context.Context, id string, at time.Time) error

	// UpdatePayload replaces an entry's PayloadReference in place, used by
	// the verification endpoint to fold the authenticated subject into a
	// device_code's stored principal ahead of Activate.
	UpdatePayload(ctx context.Context, id string, payload []byte) error
}

// ScopeStore resolves registered scopes.
type ScopeStore interface {
	Find(ctx context.Context, name string) (*Scope, error)
	FindMany(ctx context.Context, names []string) ([]*Scope, error)
}

// Stores bundles the four ports the engine depends on, grounded on the
// teacher's single storage.Storage interface but split per spec's four
// distinct entry kinds instead of dex's one flat interface.
type Stores struct {
	Applications   ApplicationStore
	Authorizations AuthorizationStore
	Tokens         TokenStore
	Scopes         ScopeStore
}
