package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jose "gopkg.in/square/go-jose.v2"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/store"
	"github.com/openauthd/engine/internal/tokenpayload"
)

// ValidationError reports why a presented token was rejected, distinct from
// an operational error talking to storage, which Validate returns as is. The
// built-in endpoints do not tell the two apart: any Validate error rejects
// the token.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("tokens: %s", e.Reason) }

func invalid(reason string) error { return &ValidationError{Reason: reason} }

// Validated is the result of successfully authenticating a presented token.
type Validated struct {
	Principal *claims.Principal
	Record    *store.Token
}

// Validate authenticates value as a token previously issued for
// destination: a value with three dot-separated segments is checked as a
// self-contained JWT (mirroring the teacher's jose.ParseSigned call in
// server/oauth2.go's token-introspection path), any other value as an
// opaque reference token. A token whose stored type is not the one
// destination names is rejected.
func (iss *Issuer) Validate(ctx context.Context, value, destination string, now time.Time) (*Validated, error) {
	var v *Validated
	var err error
	if looksLikeJWT(value) {
		v, err = iss.validateSelfContained(ctx, value, now)
	} else {
		v, err = iss.validateReference(ctx, value, now)
	}
	if err != nil {
		return nil, err
	}
	if want, ok := destinationTokenType[destination]; ok && v.Record.Type != want {
		return nil, invalid("token was not issued as " + destination)
	}
	return v, nil
}

func looksLikeJWT(v string) bool { return strings.Count(v, ".") == 2 }

func (iss *Issuer) validateSelfContained(ctx context.Context, value string, now time.Time) (*Validated, error) {
	algs := []jose.SignatureAlgorithm{jose.RS256, jose.RS384, jose.RS512, jose.ES256, jose.ES384, jose.ES512}
	sig, err := jose.ParseSigned(value, algs)
	if err != nil {
		return nil, invalid("malformed token")
	}

	var payload []byte
	var verified bool
	for i := range iss.Options.SigningCredentials {
		cred := &iss.Options.SigningCredentials[i]
		if !cred.IsAsymmetric() || cred.Key == nil {
			continue
		}
		pub := cred.Key.Public()
		if p, err := sig.Verify(pub.Key); err == nil {
			payload = p
			verified = true
			break
		}
	}
	if !verified {
		return nil, invalid("signature verification failed")
	}

	var claimsMap map[string]any
	if err := json.Unmarshal(payload, &claimsMap); err != nil {
		return nil, invalid("malformed claims")
	}

	jti, _ := claimsMap["jti"].(string)
	rec, err := iss.lookupAndCheck(ctx, jti, now)
	if err != nil {
		return nil, err
	}

	return &Validated{Principal: principalFromClaims(claimsMap), Record: rec}, nil
}

func (iss *Issuer) validateReference(ctx context.Context, value string, now time.Time) (*Validated, error) {
	rec, err := iss.lookupAndCheck(ctx, value, now)
	if err != nil {
		return nil, err
	}
	principal, _, err := tokenpayload.Read(bytes.NewReader(rec.PayloadReference))
	if err != nil {
		return nil, invalid("corrupt reference payload")
	}
	if principal == nil {
		return nil, invalid("unreadable reference payload version")
	}
	return &Validated{Principal: principal, Record: rec}, nil
}

func (iss *Issuer) lookupAndCheck(ctx context.Context, id string, now time.Time) (*store.Token, error) {
	if id == "" {
		return nil, invalid("missing token identifier")
	}
	rec, err := iss.Stores.Tokens.Find(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, invalid("unknown token")
		}
		return nil, err
	}
	if rec.Status != store.TokenValid {
		return nil, invalid("token is not valid")
	}
	if now.After(rec.ExpirationDate) {
		return nil, invalid("token has expired")
	}
	return rec, nil
}

// principalFromClaims rebuilds a minimal Principal from a verified JWT's
// claim map: every entry becomes a claim on the primary identity, with
// array-valued entries (aud, or any JSON array) split into one claim per
// element, matching how SetAudiences/SetScopes originally wrote them.
// Issuance writes Principal.Name() into sub, so when the token carries no
// name claim of its own, sub is restored as the name claim.
func principalFromClaims(m map[string]any) *claims.Principal {
	p := claims.NewPrincipal(claims.DefaultAuthenticationType)
	id := p.Primary()
	for k, v := range m {
		switch vv := v.(type) {
		case string:
			id.AddClaim(claims.NewClaim(k, vv))
		case []any:
			for _, item := range vv {
				if s, ok := item.(string); ok {
					id.AddClaim(claims.NewClaim(k, s))
				}
			}
		case float64:
			id.AddClaim(claims.NewClaim(k, fmt.Sprintf("%d", int64(vv))))
		default:
			if b, err := json.Marshal(vv); err == nil {
				id.AddClaim(claims.NewClaim(k, string(b)))
			}
		}
	}
	if _, ok := id.FindFirst(claims.DefaultNameClaimType); !ok {
		if sub, ok := m["sub"].(string); ok && sub != "" {
			id.AddClaim(claims.NewClaim(claims.DefaultNameClaimType, sub))
		}
	}
	if scope, ok := m["scope"].(string); ok {
		p.SetScopes(strings.Fields(scope)...)
	}
	return p
}
