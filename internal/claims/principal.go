package claims

import "time"

// Principal is an ordered set of Identities representing everything known
// about the caller for the lifetime of one token. Index 0 is the primary
// identity; protocol-private accessors below operate against it, creating
// it on first write if the Principal is empty.
type Principal struct {
	Identities []*Identity
}

// NewPrincipal returns a Principal with a single primary identity.
func NewPrincipal(authenticationType string) *Principal {
	return &Principal{Identities: []*Identity{NewIdentity(authenticationType)}}
}

// Primary returns the first identity, creating a default one if the
// Principal is empty.
func (p *Principal) Primary() *Identity {
	if len(p.Identities) == 0 {
		p.Identities = append(p.Identities, NewIdentity(DefaultAuthenticationType))
	}
	return p.Identities[0]
}

// Name proxies Primary().Name().
func (p *Principal) Name() string { return p.Primary().Name() }

// multiValued returns the Value of every claim of typ on the primary
// identity, in order.
func (p *Principal) multiValued(typ string) []string {
	return valuesOf(p.Primary().FindAll(typ))
}

func valuesOf(cs []Claim) []string {
	if len(cs) == 0 {
		return nil
	}
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Value
	}
	return out
}

// setMultiValued replaces every claim of typ on the primary identity with
// one claim per value, each carrying dest as its destination.
func (p *Principal) setMultiValued(typ, dest string, values []string) {
	id := p.Primary()
	kept := id.Claims[:0:0]
	for _, c := range id.Claims {
		if c.Type != typ {
			kept = append(kept, c)
		}
	}
	for _, v := range values {
		kept = append(kept, NewClaim(typ, v).WithDestinations(dest))
	}
	id.Claims = kept
}

func (p *Principal) singleValued(typ string) (string, bool) {
	c, ok := p.Primary().FindFirst(typ)
	if !ok {
		return "", false
	}
	return c.Value, true
}

func (p *Principal) setSingleValued(typ, value string) {
	id := p.Primary()
	for i, c := range id.Claims {
		if c.Type == typ {
			id.Claims[i].Value = value
			return
		}
	}
	id.AddClaim(NewClaim(typ, value))
}

// Audiences / Presenters / Resources / Scopes are the array-valued private
// claims §4.3 requires the serializer to round-trip as JSON in the token
// payload's property side-table.
func (p *Principal) Audiences() []string    { return p.multiValued(ClaimAudience) }
func (p *Principal) SetAudiences(v ...string) {
	p.setMultiValued(ClaimAudience, DestinationAccessToken, v)
}

func (p *Principal) Presenters() []string { return p.multiValued(ClaimPresenter) }
func (p *Principal) SetPresenters(v ...string) {
	p.setMultiValued(ClaimPresenter, DestinationAccessToken, v)
}

func (p *Principal) Resources() []string { return p.multiValued(ClaimResource) }
func (p *Principal) SetResources(v ...string) {
	p.setMultiValued(ClaimResource, DestinationAccessToken, v)
}

func (p *Principal) Scopes() []string { return p.multiValued(ClaimScope) }
func (p *Principal) SetScopes(v ...string) {
	p.setMultiValued(ClaimScope, DestinationAccessToken, v)
}

// TokenID is the server-generated identifier of the token itself (the JWT
// "jti").
func (p *Principal) TokenID() (string, bool) { return p.singleValued(ClaimTokenID) }
func (p *Principal) SetTokenID(id string)     { p.setSingleValued(ClaimTokenID, id) }

// AuthorizationID links the token back to its storage.Authorization entry.
func (p *Principal) AuthorizationID() (string, bool) { return p.singleValued(ClaimAuthzID) }
func (p *Principal) SetAuthorizationID(id string)    { p.setSingleValued(ClaimAuthzID, id) }

// TokenUsage is one of the Destination* constants, naming which kind of
// token this principal was (or will be) issued as.
func (p *Principal) TokenUsage() (string, bool)  { return p.singleValued(ClaimTokenUsage) }
func (p *Principal) SetTokenUsage(usage string)  { p.setSingleValued(ClaimTokenUsage, usage) }

// CreationDate / ExpirationDate are RFC3339-encoded in the property
// side-table and parsed back into time.Time for in-memory use.
func (p *Principal) CreationDate() (time.Time, bool) {
	return p.timeValued(ClaimCreationDate)
}

func (p *Principal) SetCreationDate(t time.Time) {
	p.setSingleValued(ClaimCreationDate, t.UTC().Format(timeLayout))
}

func (p *Principal) ExpirationDate() (time.Time, bool) {
	return p.timeValued(ClaimExpirationDate)
}

func (p *Principal) SetExpirationDate(t time.Time) {
	p.setSingleValued(ClaimExpirationDate, t.UTC().Format(timeLayout))
}

func (p *Principal) timeValued(typ string) (time.Time, bool) {
	raw, ok := p.singleValued(typ)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CodeChallenge / CodeChallengeMethod carry the PKCE values bound to an
// authorization code principal.
func (p *Principal) CodeChallenge() (string, bool) { return p.singleValued(ClaimCodeChallenge) }
func (p *Principal) SetCodeChallenge(v string)     { p.setSingleValued(ClaimCodeChallenge, v) }

func (p *Principal) CodeChallengeMethod() (string, bool) {
	return p.singleValued(ClaimCodeChallengeMethod)
}
func (p *Principal) SetCodeChallengeMethod(v string) {
	p.setSingleValued(ClaimCodeChallengeMethod, v)
}

// Nonce carries the OIDC nonce through to the identity token.
func (p *Principal) Nonce() (string, bool) { return p.singleValued(ClaimNonce) }
func (p *Principal) SetNonce(v string)     { p.setSingleValued(ClaimNonce, v) }

// OriginalRedirectURI records the redirect_uri supplied at the authorization
// endpoint so the token endpoint can verify the authorization_code grant's
// redirect_uri matches it exactly.
func (p *Principal) OriginalRedirectURI() (string, bool) {
	return p.singleValued(ClaimOriginalRedirectURI)
}
func (p *Principal) SetOriginalRedirectURI(v string) {
	p.setSingleValued(ClaimOriginalRedirectURI, v)
}

// DeviceCodeID links a user-code principal back to its device-code entry.
func (p *Principal) DeviceCodeID() (string, bool) { return p.singleValued(ClaimDeviceCodeID) }
func (p *Principal) SetDeviceCodeID(v string)     { p.setSingleValued(ClaimDeviceCodeID, v) }

// lifetimeClaimFor maps a destination tag to the private claim type carrying
// that token type's lifetime. A lifetime stamped with SetLifetime takes
// precedence over the configured Options lifetime when tokens.Issuer issues
// that token type.
func lifetimeClaimFor(destination string) (string, bool) {
	switch destination {
	case DestinationAccessToken:
		return ClaimAccessTokenLifetime, true
	case DestinationAuthorizationCode:
		return ClaimAuthorizationCodeLifetime, true
	case DestinationDeviceCode:
		return ClaimDeviceCodeLifetime, true
	case DestinationIdentityToken:
		return ClaimIdentityTokenLifetime, true
	case DestinationRefreshToken:
		return ClaimRefreshTokenLifetime, true
	case DestinationUserCode:
		return ClaimUserCodeLifetime, true
	default:
		return "", false
	}
}

// Lifetime returns the configured lifetime for the given destination, if the
// corresponding private claim was set.
func (p *Principal) Lifetime(destination string) (time.Duration, bool) {
	typ, ok := lifetimeClaimFor(destination)
	if !ok {
		return 0, false
	}
	raw, ok := p.singleValued(typ)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return d, true
}

// SetLifetime stamps the configured lifetime for the given destination.
func (p *Principal) SetLifetime(destination string, d time.Duration) {
	typ, ok := lifetimeClaimFor(destination)
	if !ok {
		return
	}
	p.setSingleValued(typ, d.String())
}

// ClaimsFor returns the claims that are permitted to appear in a token of
// the given destination: every claim whose destinations list is empty is
// excluded (absent destinations means "not issued anywhere", per spec's
// §3 invariant), except claims with no Properties at all which are treated
// the same way — an unmarked claim never leaves the engine.
func (p *Principal) ClaimsFor(destination string) []Claim {
	var out []Claim
	for _, id := range p.Identities {
		for _, c := range id.Claims {
			if c.HasDestination(destination) {
				out = append(out, c)
			}
		}
	}
	return out
}
