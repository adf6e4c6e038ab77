// Package options implements the Configuration Resolver (spec §4.4): a pure
// function turning a minimal operator-supplied Options seed into a fully
// materialized, internally consistent operational configuration —
// endpoints, response types, response modes, code-challenge methods,
// scopes, key ids and credential/handler sort orders.
//
// Grounded on the teacher's discoveryHandler/constructDiscovery derivation
// of response_types_supported/grant_types_supported (server/handlers.go),
// generalized into the full multi-step derivation spec §4.4 describes.
package options

import (
	"time"

	"github.com/openauthd/engine/internal/handlerdesc"
)

// Endpoint names, matching spec §6.2's wire endpoint table.
const (
	EndpointAuthorization = "authorization"
	EndpointToken         = "token"
	EndpointDevice        = "device"
	EndpointVerification  = "verification"
	EndpointIntrospection = "introspection"
	EndpointRevocation    = "revocation"
	EndpointUserinfo      = "userinfo"
	EndpointConfiguration = "configuration"
	EndpointCryptography  = "cryptography"
	EndpointLogout        = "logout"
)

// Grant type identifiers, matching spec §6.3's grant matrix.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantImplicit          = "implicit"
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
	GrantDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
	GrantTokenExchange     = "urn:ietf:params:oauth:grant-type:token-exchange"
)

// Response types the resolver may derive (spec §4.4 step 7).
const (
	ResponseTypeCode             = "code"
	ResponseTypeToken            = "token"
	ResponseTypeIDToken          = "id_token"
	ResponseTypeCodeToken        = "code token"
	ResponseTypeCodeIDToken      = "code id_token"
	ResponseTypeIDTokenToken     = "id_token token"
	ResponseTypeCodeIDTokenToken = "code id_token token"
)

// Response modes the resolver may derive.
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
	ResponseModeFormPost = "form_post"
)

// PKCE code-challenge methods.
const (
	CodeChallengeMethodPlain = "plain"
	CodeChallengeMethodS256  = "S256"
)

const ScopeOfflineAccess = "offline_access"

// Options is the operator-facing configuration seed and, once Resolve has
// run, the fully materialized operational configuration described by spec
// §3 "Options" and §6.4.
type Options struct {
	Issuer string

	// Endpoints maps an endpoint name to its wire path. An endpoint with no
	// entry is disabled.
	Endpoints map[string]string

	// EnabledGrants is the operator-provided seed: which grant types this
	// server issues tokens for. Everything else in this struct is either
	// supplied directly by the operator or derived from this set plus the
	// fields below.
	EnabledGrants map[string]bool

	EnableDegradedMode bool

	DisableTokenStorage         bool
	DisableAuthorizationStorage bool
	UseReferenceAccessTokens    bool
	UseReferenceRefreshTokens   bool

	DisableSlidingRefreshTokenExpiration bool
	UseRollingRefreshTokens              bool

	IgnoreEndpointPermissions  bool
	IgnoreGrantTypePermissions bool
	IgnoreScopePermissions     bool

	SigningCredentials    []Credential
	EncryptionCredentials []Credential

	// Lifetimes maps a claims.Destination* token-type tag to its default
	// validity period (the "*_lifetime" options of spec §6.4).
	Lifetimes map[string]time.Duration

	// Scopes is the operator-registered scope seed; Resolve appends
	// offline_access when the refresh grant is enabled (step 7).
	Scopes map[string]bool

	// CustomValidatorEndpoints records, per endpoint name, whether the
	// operator registered a custom Validate<Endpoint>Request handler — used
	// to satisfy the degraded-mode invariant in spec §3/§4.4 step 4. Nothing
	// in this module fills it from a handlerdesc.Registry; the caller sets
	// it (registry.HasOrigin(validateContextType, handlerdesc.Custom) gives
	// the value) before calling Resolve.
	CustomValidatorEndpoints map[string]bool

	// CustomDeviceAuthenticationHandler / CustomDeviceSignInHandler record
	// whether the operator supplied custom Authenticate/SignIn handlers for
	// the device grant, required in degraded mode (spec §4.4 step 4).
	CustomDeviceAuthenticationHandler bool
	CustomDeviceSignInHandler         bool

	// CustomHandlers lists operator-registered handler descriptors that
	// must be considered when sorting (spec §4.4 step 5). The caller sets
	// it before calling Resolve; the engine does not fill it from its
	// handlerdesc.Registry. Resolve only sorts it (deterministically, for discovery-document
	// reproducibility) and does not otherwise interpret it.
	CustomHandlers []handlerdesc.Descriptor

	// --- Derived fields; populated by Resolve. ---

	ResponseTypesSupported      []string
	ResponseModesSupported      []string
	CodeChallengeMethodsSupported []string
	ScopesSupported             []string

	resolved bool
}

// IsGrantEnabled reports whether grant is in EnabledGrants.
func (o *Options) IsGrantEnabled(grant string) bool { return o.EnabledGrants[grant] }

// IsEndpointEnabled reports whether endpoint has a registered path.
func (o *Options) IsEndpointEnabled(endpoint string) bool {
	_, ok := o.Endpoints[endpoint]
	return ok
}

// Lifetime returns the configured lifetime for destination, or the given
// fallback if none was configured.
func (o *Options) Lifetime(destination string, fallback time.Duration) time.Duration {
	if o.Lifetimes == nil {
		return fallback
	}
	if d, ok := o.Lifetimes[destination]; ok {
		return d
	}
	return fallback
}

// IsScopeRegistered reports whether scope is in the (resolved) scope set.
func (o *Options) IsScopeRegistered(scope string) bool {
	if o.Scopes != nil && o.Scopes[scope] {
		return true
	}
	for _, s := range o.ScopesSupported {
		if s == scope {
			return true
		}
	}
	return false
}
