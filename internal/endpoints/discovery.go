package endpoints

import (
	"context"
	"crypto"

	jose "gopkg.in/square/go-jose.v2"

	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/options"
)

// registerDiscovery wires the two read-only projections of Options spec
// §4.5.6 groups together: the OIDC configuration document and the JWKS
// ("cryptography") endpoint. Neither takes a request body, so each gets a
// single Handle-phase descriptor with no Extract/Validate steps, grounded
// on the teacher's discoveryHandler/keysHandler (server/handlers.go, server/
// rotation.go) generalized from dex's JSON-struct-literal response to the
// same Response parameter bag every other endpoint uses.
func registerDiscovery(reg *handlerdesc.Registry, deps Deps) {
	reg.Register(builtin(engine.Kind(options.EndpointConfiguration, engine.PhaseHandle), "configuration.handle", 1000,
		handleConfiguration(deps)))
	reg.Register(builtin(engine.Kind(options.EndpointConfiguration, engine.PhaseApply), "configuration.apply", 1000,
		applyPassthroughResponse))

	reg.Register(builtin(engine.Kind(options.EndpointCryptography, engine.PhaseHandle), "cryptography.handle", 1000,
		handleCryptography(deps)))
	reg.Register(builtin(engine.Kind(options.EndpointCryptography, engine.PhaseApply), "cryptography.apply", 1000,
		applyPassthroughResponse))
}

func handleConfiguration(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		o := c.Transaction.Options
		doc := map[string]any{
			"issuer":                 o.Issuer,
			"response_types_supported":        o.ResponseTypesSupported,
			"response_modes_supported":        o.ResponseModesSupported,
			"code_challenge_methods_supported": o.CodeChallengeMethodsSupported,
			"scopes_supported":                o.ScopesSupported,
			"grant_types_supported":           enabledGrantList(o),
			"subject_types_supported":         []string{"public"},
			"token_endpoint_auth_methods_supported": []string{
				"client_secret_basic", "client_secret_post",
			},
		}
		for name, path := range o.Endpoints {
			doc[discoveryKeyFor(name)] = o.Issuer + path
		}
		c.Transaction.Set(propDiscoveryResult, doc)
		c.HandleRequest()
		return nil
	}
}

// discoveryKeyFor maps an internal endpoint name to the discovery document
// field OIDC Discovery 1.0 §3 names for it.
func discoveryKeyFor(endpoint string) string {
	switch endpoint {
	case options.EndpointAuthorization:
		return "authorization_endpoint"
	case options.EndpointToken:
		return "token_endpoint"
	case options.EndpointUserinfo:
		return "userinfo_endpoint"
	case options.EndpointRevocation:
		return "revocation_endpoint"
	case options.EndpointIntrospection:
		return "introspection_endpoint"
	case options.EndpointDevice:
		return "device_authorization_endpoint"
	case options.EndpointVerification:
		return "verification_endpoint"
	case options.EndpointLogout:
		return "end_session_endpoint"
	case options.EndpointCryptography:
		return "jwks_uri"
	default:
		return endpoint + "_endpoint"
	}
}

func enabledGrantList(o *options.Options) []string {
	out := make([]string, 0, len(o.EnabledGrants))
	for grant, enabled := range o.EnabledGrants {
		if enabled {
			out = append(out, grant)
		}
	}
	return out
}

const propDiscoveryResult = "discovery.configuration"

// handleCryptography publishes the public half of every asymmetric signing
// credential, grounded on the teacher's keyRotator.rotate (server/
// rotation.go), which builds the published jose.JSONWebKey from key.Public()
// rather than the private JSONWebKey it signs with.
func handleCryptography(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		set := jose.JSONWebKeySet{}
		for _, cred := range c.Transaction.Options.SigningCredentials {
			if cred.Key == nil || cred.IsSymmetric() {
				continue // never publish symmetric key material
			}
			signer, ok := cred.Key.Key.(crypto.Signer)
			if !ok {
				continue
			}
			set.Keys = append(set.Keys, jose.JSONWebKey{
				Key:       signer.Public(),
				KeyID:     cred.Key.KeyID,
				Algorithm: cred.Key.Algorithm,
				Use:       "sig",
			})
		}
		c.Transaction.Set(propDiscoveryResult, map[string]any{"keys": set.Keys})
		c.HandleRequest()
		return nil
	}
}

func applyPassthroughResponse(ctx context.Context, c *engine.Context) error {
	tx := c.Transaction
	if c.IsRejected() {
		tx.Response.SetError(c.ErrorCode, c.ErrorDescription, c.ErrorURI)
		c.HandleRequest()
		return nil
	}
	v, _ := tx.Get(propDiscoveryResult)
	if m, ok := v.(map[string]any); ok {
		for k, val := range m {
			tx.Response.Set(k, val)
		}
	}
	c.HandleRequest()
	return nil
}
