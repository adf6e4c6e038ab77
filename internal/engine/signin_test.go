package engine_test

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
	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/memstore"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/tokens"
)

func newTestIssuer(t *testing.T) (*tokens.Issuer, *memstore.Store) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	o := &options.Options{
		Issuer:             "https://auth.example.test/",
		SigningCredentials: []options.Credential{{Key: &jose.JSONWebKey{Key: key, Algorithm: "RS256"}}},
	}
	ms := memstore.New()
	return tokens.NewIssuer(o, ms.AsStores()), ms
}

func TestProcessSignInIssuesEveryDestination(t *testing.T) {
	iss, _ := newTestIssuer(t)
	p := claims.NewPrincipal(claims.DefaultAuthenticationType)
	p.Primary().AddClaim(claims.NewClaim(claims.DefaultNameClaimType, "carol"))

	now := time.Now()
	set, err := engine.ProcessSignIn(context.Background(), iss, p, []string{
		claims.DestinationAccessToken, claims.DestinationIdentityToken,
	}, now)

	require.NoError(t, err)
	assert.NotEmpty(t, set.Values[claims.DestinationAccessToken])
	assert.NotEmpty(t, set.Values[claims.DestinationIdentityToken])
	assert.NotEqual(t, set.Records[claims.DestinationAccessToken], set.Records[claims.DestinationIdentityToken])
}

func TestProcessAuthenticateRoundTrips(t *testing.T) {
	iss, _ := newTestIssuer(t)
	p := claims.NewPrincipal(claims.DefaultAuthenticationType)
	p.Primary().AddClaim(claims.NewClaim(claims.DefaultNameClaimType, "dave"))

	now := time.Now()
	set, err := engine.ProcessSignIn(context.Background(), iss, p, []string{claims.DestinationAccessToken}, now)
	require.NoError(t, err)

	got, err := engine.ProcessAuthenticate(context.Background(), iss, set.Values[claims.DestinationAccessToken], claims.DestinationAccessToken, now)
	require.NoError(t, err)
	assert.Equal(t, "dave", got.Name())
}

func TestProcessSignInEmptyDestinations(t *testing.T) {
	iss, _ := newTestIssuer(t)
	p := claims.NewPrincipal(claims.DefaultAuthenticationType)
	set, err := engine.ProcessSignIn(context.Background(), iss, p, nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, set.Values)
}
