package tokens_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	jose "gopkg.in/square/go-jose.v2"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/memstore"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/tokens"
)

func testOptions(t *testing.T) *options.Options {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &options.Options{
		Issuer:             "https://auth.example.test/",
		SigningCredentials: []options.Credential{{Key: &jose.JSONWebKey{Key: key, Algorithm: "RS256", Use: "sig"}}},
	}
}

func TestIssueAndValidateSelfContainedAccessToken(t *testing.T) {
	o := testOptions(t)
	ms := memstore.New()
	iss := tokens.NewIssuer(o, ms.AsStores())

	p := claims.NewPrincipal(claims.DefaultAuthenticationType)
	p.Primary().AddClaim(claims.NewClaim(claims.DefaultNameClaimType, "alice"))
	p.SetAudiences("client-1")
	p.SetScopes("openid", "profile")

	now := time.Now()
	issued, err := iss.Issue(context.Background(), p, claims.DestinationAccessToken, now)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Value)

	validated, err := iss.Validate(context.Background(), issued.Value, claims.DestinationAccessToken, now)
	require.NoError(t, err)
	assert.Equal(t, "alice", validated.Principal.Name())
	assert.ElementsMatch(t, []string{"openid", "profile"}, validated.Principal.Scopes())
}

func TestIssueAndValidateReferenceRefreshToken(t *testing.T) {
	o := testOptions(t)
	o.UseReferenceRefreshTokens = true
	ms := memstore.New()
	iss := tokens.NewIssuer(o, ms.AsStores())

	p := claims.NewPrincipal(claims.DefaultAuthenticationType)
	p.Primary().AddClaim(claims.NewClaim(claims.DefaultNameClaimType, "bob").WithDestinations(claims.DestinationRefreshToken))

	now := time.Now()
	issued, err := iss.Issue(context.Background(), p, claims.DestinationRefreshToken, now)
	require.NoError(t, err)
	require.Len(t, issued.Value, 36) // uuid

	validated, err := iss.Validate(context.Background(), issued.Value, claims.DestinationRefreshToken, now)
	require.NoError(t, err)
	assert.Equal(t, "bob", validated.Principal.Name())
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	o := testOptions(t)
	ms := memstore.New()
	iss := tokens.NewIssuer(o, ms.AsStores())

	p := claims.NewPrincipal(claims.DefaultAuthenticationType)
	now := time.Now().Add(-2 * time.Hour)
	issued, err := iss.Issue(context.Background(), p, claims.DestinationAccessToken, now)
	require.NoError(t, err)

	_, err = iss.Validate(context.Background(), issued.Value, claims.DestinationAccessToken, time.Now())
	assert.Error(t, err)
}

func TestValidateRejectsRevokedToken(t *testing.T) {
	o := testOptions(t)
	ms := memstore.New()
	iss := tokens.NewIssuer(o, ms.AsStores())

	p := claims.NewPrincipal(claims.DefaultAuthenticationType)
	now := time.Now()
	issued, err := iss.Issue(context.Background(), p, claims.DestinationAccessToken, now)
	require.NoError(t, err)

	require.NoError(t, ms.AsStores().Tokens.Revoke(context.Background(), issued.Record.ID))

	_, err = iss.Validate(context.Background(), issued.Value, claims.DestinationAccessToken, now)
	assert.Error(t, err)
}
