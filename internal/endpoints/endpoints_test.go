package endpoints_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	jose "gopkg.in/square/go-jose.v2"
	"github.com/stretchr/testify/require"

	"github.com/openauthd/engine/internal/endpoints"
	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/memstore"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/store"
	"github.com/openauthd/engine/internal/tokens"
)

// newTestEngine builds an Engine wired the way newTestEngine in
// hostadapter/server_test.go does, with the endpoints and grants a given
// test needs already enabled, plus a *memstore.Store the test can seed
// applications into directly.
func newTestEngine(t *testing.T, configure func(o *options.Options)) (*engine.Engine, *memstore.Store) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	o := &options.Options{
		Issuer: "https://auth.example.com",
		Endpoints: map[string]string{
			options.EndpointAuthorization: "/authorize",
			options.EndpointToken:         "/token",
		},
		EnabledGrants: map[string]bool{options.GrantAuthorizationCode: true},
		SigningCredentials: []options.Credential{{
			Key: &jose.JSONWebKey{Key: key, Algorithm: "RS256", Use: "sig"},
		}},
		EncryptionCredentials: []options.Credential{{
			Key: &jose.JSONWebKey{Key: []byte("0123456789abcdef0123456789abcdef"), Algorithm: "A256GCM", Use: "enc"},
		}},
	}
	if configure != nil {
		configure(o)
	}

	registry := handlerdesc.NewRegistry()
	dispatcher := engine.NewDispatcher(registry)
	mem := memstore.New()
	stores := mem.AsStores()
	issuer := tokens.NewIssuer(o, stores)
	endpoints.RegisterBuiltins(registry, endpoints.Deps{Options: o, Issuer: issuer, Dispatcher: dispatcher})

	require.NoError(t, options.Resolve(o, time.Now().UTC()))

	return engine.New(o, stores, registry, nil), mem
}

func seedPublicApplication(mem *memstore.Store, clientID string, redirectURIs ...string) {
	mem.AddApplication(store.Application{
		ClientID:     clientID,
		Type:         store.ClientPublic,
		RedirectURIs: redirectURIs,
	})
}

// applicationDeniedGrant returns a public application explicitly permitted
// for every grant except deniedGrant, proving the denial is what trips the
// rejection rather than the zero-value "permits everything" default.
func applicationDeniedGrant(clientID, deniedGrant string) store.Application {
	return store.Application{
		ClientID: clientID,
		Type:     store.ClientPublic,
		GrantTypes: map[string]bool{
			deniedGrant: false,
			"_other":    true,
		},
	}
}
