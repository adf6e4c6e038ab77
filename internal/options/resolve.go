package options

import (
	"sort"
	"time"
)

// requiredEndpoints implements the grant-to-endpoint matrix of spec §6.3.
var requiredEndpoints = map[string][]string{
	GrantAuthorizationCode: {EndpointAuthorization, EndpointToken},
	GrantImplicit:          {EndpointAuthorization},
	GrantClientCredentials: {EndpointToken},
	GrantPassword:          {EndpointToken},
	GrantRefreshToken:      {EndpointToken},
	GrantDeviceCode:        {EndpointDevice, EndpointToken, EndpointVerification},
	GrantTokenExchange:     {EndpointToken},
}

// Resolve mutates o into a valid, derived state, implementing the eight
// ordered steps of spec §4.4. It is pure apart from that mutation — calling
// it again on an already-resolved Options is a no-op with respect to
// observable derived state (spec §8 Invariant 7), since every derived field
// is recomputed from the seed rather than appended to.
func Resolve(o *Options, now time.Time) error {
	applyDegradedModeForcing(o)

	if err := validateEndpointsAgainstGrants(o); err != nil {
		return err
	}
	if err := validateCredentials(o, now); err != nil {
		return err
	}
	if err := validateDegradedModeHandlers(o); err != nil {
		return err
	}

	sortCustomHandlers(o)
	SortCredentials(o.SigningCredentials, now)
	SortCredentials(o.EncryptionCredentials, now)

	deriveResponseTypesAndModes(o)
	deriveScopes(o)

	for i := range o.SigningCredentials {
		AssignKeyID(&o.SigningCredentials[i])
	}
	for i := range o.EncryptionCredentials {
		AssignKeyID(&o.EncryptionCredentials[i])
	}

	o.resolved = true
	return nil
}

// step 1
func applyDegradedModeForcing(o *Options) {
	if !o.EnableDegradedMode {
		return
	}
	o.DisableAuthorizationStorage = true
	o.DisableTokenStorage = true
	o.IgnoreEndpointPermissions = true
	o.IgnoreGrantTypePermissions = true
	o.IgnoreScopePermissions = true
	o.UseReferenceAccessTokens = false
	o.UseReferenceRefreshTokens = false
	if !o.DisableSlidingRefreshTokenExpiration {
		o.UseRollingRefreshTokens = true
	}
}

// step 2
func validateEndpointsAgainstGrants(o *Options) error {
	for grant, enabled := range o.EnabledGrants {
		if !enabled {
			continue
		}
		for _, ep := range requiredEndpoints[grant] {
			if !o.IsEndpointEnabled(ep) {
				return configErrorf("grant %q requires endpoint %q to be registered", grant, ep)
			}
		}
	}
	anyEnabled := false
	for _, enabled := range o.EnabledGrants {
		if enabled {
			anyEnabled = true
			break
		}
	}
	if !anyEnabled {
		return configErrorf("at least one grant type must be enabled")
	}
	return nil
}

// step 3
func validateCredentials(o *Options, now time.Time) error {
	if len(o.SigningCredentials) == 0 {
		return configErrorf("at least one signing credential is required")
	}
	hasAsymmetricSigning := false
	hasValidSigning := false
	for _, c := range o.SigningCredentials {
		if c.IsAsymmetric() {
			hasAsymmetricSigning = true
		}
		if c.currentlyValid(now) {
			hasValidSigning = true
		}
	}
	if !hasAsymmetricSigning {
		return configErrorf("at least one signing credential must be asymmetric")
	}
	if !hasValidSigning {
		return configErrorf("at least one signing credential must be currently valid")
	}

	if len(o.EncryptionCredentials) == 0 {
		return configErrorf("at least one encryption credential is required")
	}
	hasValidEncryption := false
	for _, c := range o.EncryptionCredentials {
		if c.currentlyValid(now) {
			hasValidEncryption = true
		}
	}
	if !hasValidEncryption {
		return configErrorf("at least one encryption credential must be currently valid")
	}
	return nil
}

// step 4
func validateDegradedModeHandlers(o *Options) error {
	if !o.EnableDegradedMode {
		return nil
	}
	for ep := range o.Endpoints {
		if !o.CustomValidatorEndpoints[ep] {
			return configErrorf("degraded mode requires a custom validation handler for endpoint %q", ep)
		}
	}
	if o.IsGrantEnabled(GrantDeviceCode) {
		if !o.CustomDeviceAuthenticationHandler || !o.CustomDeviceSignInHandler {
			return configErrorf("degraded mode requires custom authentication and sign-in handlers for the device grant")
		}
	}
	return nil
}

// step 5
func sortCustomHandlers(o *Options) {
	sort.SliceStable(o.CustomHandlers, func(i, j int) bool {
		return o.CustomHandlers[i].Order < o.CustomHandlers[j].Order
	})
}

// step 7 (response types/modes/challenge methods)
func deriveResponseTypesAndModes(o *Options) {
	responseTypes := map[string]bool{}
	challengeMethods := map[string]bool{}

	authCode := o.IsGrantEnabled(GrantAuthorizationCode)
	implicit := o.IsGrantEnabled(GrantImplicit)

	if authCode {
		responseTypes[ResponseTypeCode] = true
		challengeMethods[CodeChallengeMethodS256] = true
	}
	if implicit {
		responseTypes[ResponseTypeToken] = true
		responseTypes[ResponseTypeIDToken] = true
		responseTypes[ResponseTypeIDTokenToken] = true
	}
	if authCode && implicit {
		responseTypes[ResponseTypeCodeToken] = true
		responseTypes[ResponseTypeCodeIDToken] = true
		responseTypes[ResponseTypeCodeIDTokenToken] = true
	}

	o.ResponseTypesSupported = sortedKeys(responseTypes)
	o.CodeChallengeMethodsSupported = sortedKeys(challengeMethods)

	modes := map[string]bool{}
	if len(responseTypes) > 0 {
		modes[ResponseModeFormPost] = true
		modes[ResponseModeFragment] = true
	}
	if responseTypes[ResponseTypeCode] {
		modes[ResponseModeQuery] = true
	}
	o.ResponseModesSupported = sortedKeys(modes)
}

// step 7 (scopes)
func deriveScopes(o *Options) {
	scopes := map[string]bool{}
	for s, enabled := range o.Scopes {
		if enabled {
			scopes[s] = true
		}
	}
	if o.IsGrantEnabled(GrantRefreshToken) {
		scopes[ScopeOfflineAccess] = true
	}
	o.ScopesSupported = sortedKeys(scopes)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
