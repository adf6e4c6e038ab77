package endpoints_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openauthd/engine/internal/options"
)

// TestAuthorizationRejectsUnsupportedResponseType regression-tests the
// dispatcher bug where validateAuthorizationClient's SkipRequest() on a
// passing check stopped the Validate phase before validateResponseType
// (order 2000) ever ran. With only authorization_code enabled,
// response_types_supported is just "code", so "token" must be rejected.
func TestAuthorizationRejectsUnsupportedResponseType(t *testing.T) {
	eng, mem := newTestEngine(t, nil)
	seedPublicApplication(mem, "client-1", "https://client.example.com/cb")

	tx := eng.NewTransaction(options.EndpointAuthorization)
	tx.Request.Set("client_id", "client-1")
	tx.Request.Set("response_type", "token")
	tx.Request.Set("redirect_uri", "https://client.example.com/cb")

	require.NoError(t, eng.RunPipeline(context.Background(), tx))
	require.True(t, tx.Response.IsError())
	code, _ := tx.Response.Get("error")
	assert.Equal(t, "unsupported_response_type", code)
}

// TestAuthorizationRejectsBadPKCEMethod regression-tests the same bug one
// rule further down the chain: validatePKCEParams (order 3000) must also
// run, which requires validateAuthorizationClient and validateResponseType
// to both return control to the dispatcher instead of halting it.
func TestAuthorizationRejectsBadPKCEMethod(t *testing.T) {
	eng, mem := newTestEngine(t, nil)
	seedPublicApplication(mem, "client-1", "https://client.example.com/cb")

	tx := eng.NewTransaction(options.EndpointAuthorization)
	tx.Request.Set("client_id", "client-1")
	tx.Request.Set("response_type", "code")
	tx.Request.Set("redirect_uri", "https://client.example.com/cb")
	tx.Request.Set("code_challenge", "abc123")
	tx.Request.Set("code_challenge_method", "md5")

	require.NoError(t, eng.RunPipeline(context.Background(), tx))
	require.True(t, tx.Response.IsError())
	code, _ := tx.Response.Get("error")
	assert.Equal(t, "invalid_request", code)
}

// TestAuthorizationAcceptsSupportedResponseTypeAndPKCE proves the Validate
// chain as a whole still lets a well-formed request through to the Handle
// phase, which requires an already-authenticated subject; absent one, the
// pipeline falls through to login_required rather than any of the earlier
// rejections, confirming none of them fired spuriously.
func TestAuthorizationAcceptsSupportedResponseTypeAndPKCE(t *testing.T) {
	eng, mem := newTestEngine(t, nil)
	seedPublicApplication(mem, "client-1", "https://client.example.com/cb")

	tx := eng.NewTransaction(options.EndpointAuthorization)
	tx.Request.Set("client_id", "client-1")
	tx.Request.Set("response_type", "code")
	tx.Request.Set("redirect_uri", "https://client.example.com/cb")
	tx.Request.Set("code_challenge", "abc123")
	tx.Request.Set("code_challenge_method", "S256")

	require.NoError(t, eng.RunPipeline(context.Background(), tx))
	require.True(t, tx.Response.IsError())
	code, _ := tx.Response.Get("error")
	assert.Equal(t, "login_required", code)
}

func TestAuthorizationRejectsUnknownClient(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	tx := eng.NewTransaction(options.EndpointAuthorization)
	tx.Request.Set("client_id", "does-not-exist")
	tx.Request.Set("response_type", "code")
	tx.Request.Set("redirect_uri", "https://client.example.com/cb")

	require.NoError(t, eng.RunPipeline(context.Background(), tx))
	require.True(t, tx.Response.IsError())
	code, _ := tx.Response.Get("error")
	assert.Equal(t, "invalid_client", code)
}
