package options_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	jose "gopkg.in/square/go-jose.v2"

	"github.com/openauthd/engine/internal/options"
)

func newRSACredential(t *testing.T) options.Credential {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return options.Credential{Key: &jose.JSONWebKey{Key: key, Algorithm: "RS256", Use: "sig"}}
}

func baseOptions(t *testing.T) *options.Options {
	return &options.Options{
		Endpoints: map[string]string{
			options.EndpointAuthorization: "/authorize",
			options.EndpointToken:         "/token",
		},
		EnabledGrants: map[string]bool{
			options.GrantAuthorizationCode: true,
		},
		SigningCredentials:    []options.Credential{newRSACredential(t)},
		EncryptionCredentials: []options.Credential{newRSACredential(t)},
	}
}

func TestResolveDerivesResponseTypesAndModes(t *testing.T) {
	o := baseOptions(t)
	require.NoError(t, options.Resolve(o, time.Now()))

	assert.Equal(t, []string{options.ResponseTypeCode}, o.ResponseTypesSupported)
	assert.Equal(t, []string{options.CodeChallengeMethodS256}, o.CodeChallengeMethodsSupported)
	assert.ElementsMatch(t, []string{options.ResponseModeFormPost, options.ResponseModeFragment, options.ResponseModeQuery}, o.ResponseModesSupported)
}

func TestResolveIsIdempotent(t *testing.T) {
	o := baseOptions(t)
	o.EnabledGrants[options.GrantRefreshToken] = true
	o.Endpoints[options.EndpointToken] = "/token"

	require.NoError(t, options.Resolve(o, time.Now()))
	first := append([]string{}, o.ScopesSupported...)
	require.NoError(t, options.Resolve(o, time.Now()))
	second := o.ScopesSupported

	assert.Equal(t, first, second)
	assert.Contains(t, second, options.ScopeOfflineAccess)
}

func TestResolveRejectsMissingEndpointForGrant(t *testing.T) {
	o := baseOptions(t)
	o.EnabledGrants[options.GrantDeviceCode] = true // requires device+token+verification

	err := options.Resolve(o, time.Now())
	require.Error(t, err)
}

func TestResolveRejectsNoAsymmetricSigningKey(t *testing.T) {
	o := baseOptions(t)
	o.SigningCredentials = []options.Credential{{Key: &jose.JSONWebKey{Key: []byte("symmetric-key-material-0123456789")}}}

	err := options.Resolve(o, time.Now())
	require.Error(t, err)
}

func TestDegradedModeForcesStorageOff(t *testing.T) {
	o := baseOptions(t)
	o.EnableDegradedMode = true
	o.CustomValidatorEndpoints = map[string]bool{
		options.EndpointAuthorization: true,
		options.EndpointToken:         true,
	}

	require.NoError(t, options.Resolve(o, time.Now()))
	assert.True(t, o.DisableAuthorizationStorage)
	assert.True(t, o.DisableTokenStorage)
	assert.False(t, o.UseReferenceAccessTokens)
}

func TestDegradedModeRequiresCustomValidators(t *testing.T) {
	o := baseOptions(t)
	o.EnableDegradedMode = true

	err := options.Resolve(o, time.Now())
	require.Error(t, err)
}

func TestDegradedModeForcesRollingWhenSlidingEnabled(t *testing.T) {
	o := baseOptions(t)
	o.EnableDegradedMode = true
	o.CustomValidatorEndpoints = map[string]bool{
		options.EndpointAuthorization: true,
		options.EndpointToken:         true,
	}
	o.DisableSlidingRefreshTokenExpiration = false

	require.NoError(t, options.Resolve(o, time.Now()))
	assert.True(t, o.UseRollingRefreshTokens)
}

func TestCredentialPrecedenceSort(t *testing.T) {
	now := time.Now()
	symmetric := options.Credential{Key: &jose.JSONWebKey{Key: []byte("symmetric-key-material-0123456789")}}
	asym := newRSACredential(t)

	creds := []options.Credential{asym, symmetric}
	options.SortCredentials(creds, now)
	assert.True(t, creds[0].IsSymmetric())
}
