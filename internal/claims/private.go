package claims

import "time"

// Claim types reserved for protocol-private data: server-computed facts
// that never come from an upstream identity provider and are stripped from
// the claims list into the token payload's property side-table on
// serialization (see internal/tokenpayload). Naming follows the teacher's
// JWT claim naming in server/oauth2.go (iat/exp/jti) where a standard name
// exists, and a private "private:" namespace otherwise.
const (
	ClaimAudience   = "aud"
	ClaimPresenter  = "azp"
	ClaimResource   = "private:resource"
	ClaimScope      = "scope"
	ClaimTokenID    = "jti"
	ClaimAuthzID    = "private:authorization_id"
	ClaimTokenUsage = "private:token_usage"

	ClaimCreationDate   = "private:creation_date"
	ClaimExpirationDate = "exp"

	ClaimAccessTokenLifetime        = "private:access_token_lifetime"
	ClaimAuthorizationCodeLifetime  = "private:authorization_code_lifetime"
	ClaimDeviceCodeLifetime         = "private:device_code_lifetime"
	ClaimIdentityTokenLifetime      = "private:identity_token_lifetime"
	ClaimRefreshTokenLifetime       = "private:refresh_token_lifetime"
	ClaimUserCodeLifetime           = "private:user_code_lifetime"

	ClaimCodeChallenge       = "private:code_challenge"
	ClaimCodeChallengeMethod = "private:code_challenge_method"

	ClaimDeviceCodeID        = "private:device_code_id"
	ClaimNonce               = "nonce"
	ClaimOriginalRedirectURI = "private:original_redirect_uri"
)

// arrayClaimTypes lists the claim types whose values are multi-valued and
// encoded as a JSON array in the serialized property side-table.
var arrayClaimTypes = map[string]bool{
	ClaimAudience:  true,
	ClaimPresenter: true,
	ClaimResource:  true,
	ClaimScope:     true,
}

// IsArrayClaimType reports whether typ is one of the array-valued private
// claims (audiences, presenters, resources, scopes).
func IsArrayClaimType(typ string) bool { return arrayClaimTypes[typ] }

// scalarPrivateClaimTypes lists every single-valued private claim type that
// internal/tokenpayload must move into the property side-table on write and
// restore on read.
var scalarPrivateClaimTypes = []string{
	ClaimCreationDate,
	ClaimExpirationDate,
	ClaimAccessTokenLifetime,
	ClaimAuthorizationCodeLifetime,
	ClaimDeviceCodeLifetime,
	ClaimIdentityTokenLifetime,
	ClaimRefreshTokenLifetime,
	ClaimUserCodeLifetime,
	ClaimCodeChallenge,
	ClaimCodeChallengeMethod,
	ClaimAuthzID,
	ClaimTokenID,
	ClaimDeviceCodeID,
	ClaimNonce,
	ClaimOriginalRedirectURI,
}

// ScalarPrivateClaimTypes returns the fixed set of single-valued private
// claim types mapped to token-payload properties.
func ScalarPrivateClaimTypes() []string { return scalarPrivateClaimTypes }

// ArrayPrivateClaimTypes returns the fixed set of multi-valued private claim
// types mapped to token-payload properties.
func ArrayPrivateClaimTypes() []string {
	return []string{ClaimAudience, ClaimPresenter, ClaimResource, ClaimScope}
}

// timeLayout matches the RFC3339 rendering used for creation/expiration
// dates carried in the property side-table; exp itself is a JWT numeric
// date and handled separately by the JWT signer.
const timeLayout = time.RFC3339
