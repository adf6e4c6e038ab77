package hostadapter

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jose "gopkg.in/square/go-jose.v2"
	"github.com/stretchr/testify/require"

	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/endpoints"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/memstore"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/tokens"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	o := &options.Options{
		Issuer: "https://auth.example.com",
		Endpoints: map[string]string{
			options.EndpointToken:         "/token",
			options.EndpointConfiguration: "/.well-known/openid-configuration",
			options.EndpointCryptography:  "/keys",
		},
		EnabledGrants: map[string]bool{options.GrantClientCredentials: true},
		SigningCredentials: []options.Credential{{
			Key: &jose.JSONWebKey{Key: key, Algorithm: "RS256", Use: "sig"},
		}},
		EncryptionCredentials: []options.Credential{{
			Key: &jose.JSONWebKey{Key: []byte("0123456789abcdef0123456789abcdef"), Algorithm: "A256GCM", Use: "enc"},
		}},
	}

	registry := handlerdesc.NewRegistry()
	dispatcher := engine.NewDispatcher(registry)
	stores := memstore.New().AsStores()
	issuer := tokens.NewIssuer(o, stores)
	endpoints.RegisterBuiltins(registry, endpoints.Deps{Options: o, Issuer: issuer, Dispatcher: dispatcher})

	require.NoError(t, options.Resolve(o, time.Now().UTC()))

	return engine.New(o, stores, registry, nil)
}

func TestRouterServesDiscoveryDocument(t *testing.T) {
	eng := newTestEngine(t)
	router := NewRouter(eng, Config{})

	req := httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "https://auth.example.com", body["issuer"])
	require.Equal(t, "https://auth.example.com/token", body["token_endpoint"])
}

func TestRouterServesJWKS(t *testing.T) {
	eng := newTestEngine(t)
	router := NewRouter(eng, Config{})

	req := httptest.NewRequest(http.MethodGet, "/keys", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Keys, 1)
	require.Equal(t, "RS256", body.Keys[0]["alg"])
}

func TestRouterRejectsUnknownMethod(t *testing.T) {
	eng := newTestEngine(t)
	router := NewRouter(eng, Config{})

	req := httptest.NewRequest(http.MethodPost, "/.well-known/openid-configuration", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
