// Package claims implements the subject-attribute container used to carry
// authentication facts through the engine: a Principal is an ordered set of
// Identities, each holding a set of Claims. Claims carry a destinations
// property that restricts which issued token types may surface them.
//
// The shape mirrors the teacher's storage.Claims (UserID/Email/Groups/...)
// generalized into the open type/value claim model the protocol pipelines
// need to support arbitrary OAuth/OIDC claims, not just the fixed ID-token
// fields dex hardcodes.
package claims

import (
	"encoding/json"
	"sort"
	"strings"
)

// DestinationsProperty is the reserved Claim.Properties key holding the
// JSON-encoded array of token-type tags a claim is allowed to appear in.
const DestinationsProperty = "destinations"

// Token-type tags used both as destinations values and as the TokenType
// claim recorded on issued tokens.
const (
	DestinationAccessToken       = "access_token"
	DestinationIdentityToken     = "id_token"
	DestinationRefreshToken      = "refresh_token"
	DestinationAuthorizationCode = "authorization_code"
	DestinationDeviceCode        = "device_code"
	DestinationUserCode          = "user_code"
	DestinationUserinfo          = "userinfo"
)

// Claim is a single typed attribute carried by an Identity.
//
// Type, Value, ValueType, Issuer and OriginalIssuer follow the shape used
// throughout the teacher's JWT claim handling (server/oauth2.go); Properties
// is the open side-table that carries protocol metadata such as
// destinations.
type Claim struct {
	Type           string
	Value          string
	ValueType      string
	Issuer         string
	OriginalIssuer string
	Properties     map[string]string
}

const defaultValueType = "string"

// NewClaim builds a claim with the default value type and no properties.
func NewClaim(typ, value string) Claim {
	return Claim{Type: typ, Value: value, ValueType: defaultValueType}
}

// WithDestinations returns a copy of c with its destinations property set to
// the canonicalized form of dests: lowercased, deduplicated, sorted. An
// empty result removes the property entirely, per spec.
func (c Claim) WithDestinations(dests ...string) Claim {
	out := c.clone()
	canon := canonicalizeDestinations(dests)
	if len(canon) == 0 {
		delete(out.Properties, DestinationsProperty)
		return out
	}
	encoded, err := json.Marshal(canon)
	if err != nil {
		// canon is a []string; Marshal cannot fail.
		panic(err)
	}
	if out.Properties == nil {
		out.Properties = map[string]string{}
	}
	out.Properties[DestinationsProperty] = string(encoded)
	return out
}

// Destinations returns the canonicalized (lowercase, deduplicated, sorted)
// set of destinations recorded on the claim. Absent or malformed property
// data yields an empty slice, never an error: a claim with no destinations
// property matches no destination, so Principal.ClaimsFor leaves it out of
// every self-contained token.
func (c Claim) Destinations() []string {
	raw, ok := c.Properties[DestinationsProperty]
	if !ok || raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return canonicalizeDestinations(values)
}

// HasDestination reports whether dest (case-insensitively) is present in the
// claim's destinations.
func (c Claim) HasDestination(dest string) bool {
	dest = strings.ToLower(strings.TrimSpace(dest))
	for _, d := range c.Destinations() {
		if d == dest {
			return true
		}
	}
	return false
}

func (c Claim) clone() Claim {
	out := c
	if c.Properties != nil {
		out.Properties = make(map[string]string, len(c.Properties))
		for k, v := range c.Properties {
			out.Properties[k] = v
		}
	}
	return out
}

func canonicalizeDestinations(dests []string) []string {
	seen := make(map[string]struct{}, len(dests))
	out := make([]string, 0, len(dests))
	for _, d := range dests {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
