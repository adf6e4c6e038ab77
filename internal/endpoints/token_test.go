package endpoints_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openauthd/engine/internal/options"
)

// TestTokenRejectsDisabledGrantType regression-tests the dispatcher bug
// where validateTokenClient's SkipRequest() on a passing check stopped the
// Validate phase before validateGrantType (order 2000) ever ran. Only
// authorization_code is enabled here, so a refresh_token request from an
// otherwise-authenticated public client must still be rejected.
func TestTokenRejectsDisabledGrantType(t *testing.T) {
	eng, mem := newTestEngine(t, nil)
	seedPublicApplication(mem, "client-1")

	tx := eng.NewTransaction(options.EndpointToken)
	tx.Request.Set("grant_type", "refresh_token")
	tx.Request.Set("client_id", "client-1")
	tx.Request.Set("refresh_token", "irrelevant")

	require.NoError(t, eng.RunPipeline(context.Background(), tx))
	require.True(t, tx.Response.IsError())
	code, _ := tx.Response.Get("error")
	assert.Equal(t, "unsupported_grant_type", code)
}

// TestTokenRejectsGrantTypeNotPermittedForClient proves validateGrantType's
// second check (client permission, not just server-wide enablement) also
// runs once reached.
func TestTokenRejectsGrantTypeNotPermittedForClient(t *testing.T) {
	eng, mem := newTestEngine(t, func(o *options.Options) {
		o.EnabledGrants[options.GrantClientCredentials] = true
	})
	mem.AddApplication(applicationDeniedGrant("client-2", options.GrantClientCredentials))

	tx := eng.NewTransaction(options.EndpointToken)
	tx.Request.Set("grant_type", options.GrantClientCredentials)
	tx.Request.Set("client_id", "client-2")

	require.NoError(t, eng.RunPipeline(context.Background(), tx))
	require.True(t, tx.Response.IsError())
	code, _ := tx.Response.Get("error")
	assert.Equal(t, "unauthorized_client", code)
}

func TestTokenRejectsUnauthenticatedClient(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	tx := eng.NewTransaction(options.EndpointToken)
	tx.Request.Set("grant_type", options.GrantAuthorizationCode)
	tx.Request.Set("client_id", "unknown-client")

	require.NoError(t, eng.RunPipeline(context.Background(), tx))
	require.True(t, tx.Response.IsError())
	code, _ := tx.Response.Get("error")
	assert.Equal(t, "invalid_client", code)
}

// TestTokenAcceptsEnabledGrantPastValidation proves the Validate chain lets
// an enabled, permitted grant through to the Handle phase, which then fails
// for its own domain reason (a nonexistent authorization code) rather than
// any of the Validate-phase rejections above — confirming those rejections
// only fire when they should.
func TestTokenAcceptsEnabledGrantPastValidation(t *testing.T) {
	eng, mem := newTestEngine(t, nil)
	seedPublicApplication(mem, "client-1")

	tx := eng.NewTransaction(options.EndpointToken)
	tx.Request.Set("grant_type", options.GrantAuthorizationCode)
	tx.Request.Set("client_id", "client-1")
	tx.Request.Set("code", "does-not-exist")

	require.NoError(t, eng.RunPipeline(context.Background(), tx))
	require.True(t, tx.Response.IsError())
	code, _ := tx.Response.Get("error")
	assert.Equal(t, "invalid_grant", code)
}
