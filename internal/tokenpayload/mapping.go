package tokenpayload

import (
	"encoding/json"

	"github.com/openauthd/engine/internal/claims"
)

// extractPrivateClaims copies the fixed set of private claims (§4.3) off
// principal's primary identity into a property map and strips them from the
// claim list, so the identities written to the envelope carry only the
// caller's own claims. Array-valued claims are merged across every matching
// claim on the primary identity and encoded as a JSON array.
func extractPrivateClaims(principal *claims.Principal) map[string]string {
	props := map[string]string{}
	if len(principal.Identities) == 0 {
		return props
	}
	id := principal.Identities[0]

	arrayTypes := map[string]bool{}
	for _, t := range claims.ArrayPrivateClaimTypes() {
		arrayTypes[t] = true
	}
	scalarTypes := map[string]bool{}
	for _, t := range claims.ScalarPrivateClaimTypes() {
		scalarTypes[t] = true
	}

	arrayValues := map[string][]string{}
	var kept []claims.Claim
	for _, c := range id.Claims {
		switch {
		case arrayTypes[c.Type]:
			arrayValues[c.Type] = append(arrayValues[c.Type], c.Value)
		case scalarTypes[c.Type]:
			props[c.Type] = c.Value
		default:
			kept = append(kept, c)
		}
	}
	id.Claims = kept

	for typ, values := range arrayValues {
		encoded, err := json.Marshal(values)
		if err != nil {
			continue
		}
		props[typ] = string(encoded)
	}
	return props
}

// applyPrivateClaims reverses extractPrivateClaims: every recognized private
// claim key found in props is restored as a claim on the primary identity,
// with its destinations set to the token type it names where applicable.
func applyPrivateClaims(principal *claims.Principal, props map[string]string) {
	if principal == nil || len(props) == 0 {
		return
	}
	id := principal.Primary()

	for _, typ := range claims.ArrayPrivateClaimTypes() {
		raw, ok := props[typ]
		if !ok {
			continue
		}
		var values []string
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			continue
		}
		for _, v := range values {
			id.AddClaim(claims.NewClaim(typ, v).WithDestinations(claims.DestinationAccessToken))
		}
	}
	for _, typ := range claims.ScalarPrivateClaimTypes() {
		if v, ok := props[typ]; ok {
			id.AddClaim(claims.NewClaim(typ, v))
		}
	}
}
