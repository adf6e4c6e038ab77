package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/tokens"
)

// Issuer is the subset of *tokens.Issuer the engine's sign-in/authenticate
// processors call, named so this package doesn't need to import tokens'
// concrete type into its public surface.
type Issuer interface {
	Issue(ctx context.Context, principal *claims.Principal, destination string, now time.Time) (*tokens.Issued, error)
	Validate(ctx context.Context, value, destination string, now time.Time) (*tokens.Validated, error)
}

// IssuedSet collects every token minted by one ProcessSignIn call, keyed by
// claims.Destination*, for the calling endpoint pipeline's Apply phase to
// serialize into the wire response.
type IssuedSet struct {
	Values  map[string]string
	Records map[string]string // destination -> store.Token.ID, for cross-referencing
}

// ProcessSignIn mints one token for each entry of destinations,
// implementing spec §4.5's sign-in processor: it is not itself a Dispatcher
// stage but a library function endpoint Handle handlers call once they've
// decided to issue tokens, mirroring the teacher's newAccessToken/
// newIDToken/newRefreshToken trio in server/oauth2.go, generalized to the
// full claims.Destination* set and a single shared entry point.
func ProcessSignIn(ctx context.Context, iss Issuer, principal *claims.Principal, destinations []string, now time.Time) (*IssuedSet, error) {
	if len(destinations) == 0 {
		return &IssuedSet{}, nil
	}
	out := &IssuedSet{Values: map[string]string{}, Records: map[string]string{}}
	for _, dest := range destinations {
		issued, err := iss.Issue(ctx, clonePrincipalForDestination(principal, dest), dest, now)
		if err != nil {
			return nil, fmt.Errorf("engine: sign-in: issuing %s: %w", dest, err)
		}
		out.Values[dest] = issued.Value
		out.Records[dest] = issued.Record.ID
	}
	return out, nil
}

// clonePrincipalForDestination returns a shallow copy of principal so that
// SetTokenID/SetExpirationDate stamped by tokens.Issuer.Issue for one
// destination don't leak into the record used for the next destination in
// the same ProcessSignIn call (each issued token gets its own jti/exp).
func clonePrincipalForDestination(p *claims.Principal, dest string) *claims.Principal {
	out := &claims.Principal{Identities: make([]*claims.Identity, len(p.Identities))}
	for i, id := range p.Identities {
		idCopy := *id
		idCopy.Claims = append([]claims.Claim(nil), id.Claims...)
		out.Identities[i] = &idCopy
	}
	_ = dest
	return out
}

// ProcessAuthenticate validates a bearer token presented to introspection,
// userinfo, revocation or a resource request, implementing spec §4.5's
// authentication processor on top of tokens.Issuer.Validate.
func ProcessAuthenticate(ctx context.Context, iss Issuer, value, destination string, now time.Time) (*claims.Principal, error) {
	validated, err := iss.Validate(ctx, value, destination, now)
	if err != nil {
		return nil, err
	}
	return validated.Principal, nil
}
