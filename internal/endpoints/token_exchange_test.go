package endpoints_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openauthd/engine/internal/options"
)

const (
	testTokenTypeAccessToken = "urn:ietf:params:oauth:token-type:access_token"
)

// TestTokenExchangeIsDisabledByDefault proves the supplemental grant is
// unreachable unless an operator opts in, matching how every other grant
// in this engine is gated by Options.EnabledGrants.
func TestTokenExchangeIsDisabledByDefault(t *testing.T) {
	eng, mem := newTestEngine(t, nil)
	seedPublicApplication(mem, "client-1")

	tx := eng.NewTransaction(options.EndpointToken)
	tx.Request.Set("grant_type", options.GrantTokenExchange)
	tx.Request.Set("client_id", "client-1")
	tx.Request.Set("subject_token", "irrelevant")
	tx.Request.Set("subject_token_type", testTokenTypeAccessToken)

	require.NoError(t, eng.RunPipeline(context.Background(), tx))
	require.True(t, tx.Response.IsError())
	code, _ := tx.Response.Get("error")
	assert.Equal(t, "unsupported_grant_type", code)
}

// TestTokenExchangeReissuesValidatedSubjectToken proves that once enabled,
// the grant validates a subject_token minted by this same engine and
// re-issues it as the requested_token_type to the presenting client.
func TestTokenExchangeReissuesValidatedSubjectToken(t *testing.T) {
	eng, mem := newTestEngine(t, func(o *options.Options) {
		o.EnabledGrants[options.GrantClientCredentials] = true
		o.EnabledGrants[options.GrantTokenExchange] = true
	})
	seedPublicApplication(mem, "client-1")

	mint := eng.NewTransaction(options.EndpointToken)
	mint.Request.Set("grant_type", options.GrantClientCredentials)
	mint.Request.Set("client_id", "client-1")
	require.NoError(t, eng.RunPipeline(context.Background(), mint))
	require.False(t, mint.Response.IsError())
	subjectToken, ok := mint.Response.Get("access_token")
	require.True(t, ok)

	exchange := eng.NewTransaction(options.EndpointToken)
	exchange.Request.Set("grant_type", options.GrantTokenExchange)
	exchange.Request.Set("client_id", "client-1")
	exchange.Request.Set("subject_token", subjectToken.(string))
	exchange.Request.Set("subject_token_type", testTokenTypeAccessToken)
	exchange.Request.Set("requested_token_type", testTokenTypeAccessToken)

	require.NoError(t, eng.RunPipeline(context.Background(), exchange))
	require.False(t, exchange.Response.IsError())
	issuedType, _ := exchange.Response.Get("issued_token_type")
	assert.Equal(t, testTokenTypeAccessToken, issuedType)
	_, ok = exchange.Response.Get("access_token")
	assert.True(t, ok)
}
