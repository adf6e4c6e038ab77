package endpoints

import (
	"context"
	"time"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/options"
)

// registerUserinfo wires the OIDC userinfo endpoint (spec §4.5.6): validate
// the bearer access token and return the claims it is permitted to carry
// for the userinfo destination, the same destinations-filtered shape
// ProcessSignIn and introspection both use.
func registerUserinfo(reg *handlerdesc.Registry, deps Deps) {
	ep := options.EndpointUserinfo

	reg.Register(builtin(engine.Kind(ep, engine.PhaseExtract), "userinfo.extract", 1000,
		extractUserinfoRequest))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseHandle), "userinfo.handle", 1000,
		handleUserinfo(deps)))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseApply), "userinfo.apply", 1000,
		applyUserinfoResponse))
}

func extractUserinfoRequest(ctx context.Context, c *engine.Context) error {
	if v, ok := c.Transaction.Request.AccessToken(); !ok || v == "" {
		c.Reject("invalid_token", "a bearer access token is required", "")
		return nil
	}
	return nil
}

func handleUserinfo(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		token, _ := tx.Request.AccessToken()
		validated, err := deps.Issuer.Validate(ctx, token, claims.DestinationAccessToken, time.Now())
		if err != nil {
			c.Reject("invalid_token", "the access token is invalid, expired or revoked", "")
			return nil
		}

		result := map[string]any{"sub": validated.Principal.Name()}
		for _, cl := range validated.Principal.ClaimsFor(claims.DestinationUserinfo) {
			if _, reserved := result[cl.Type]; reserved {
				continue
			}
			result[cl.Type] = cl.Value
		}
		tx.Set(propUserinfoResult, result)
		c.Principal = validated.Principal
		c.HandleRequest()
		return nil
	}
}

const propUserinfoResult = "userinfo.result"

func applyUserinfoResponse(ctx context.Context, c *engine.Context) error {
	tx := c.Transaction
	if c.IsRejected() {
		tx.Response.SetError(c.ErrorCode, c.ErrorDescription, c.ErrorURI)
		c.HandleRequest()
		return nil
	}
	v, _ := tx.Get(propUserinfoResult)
	result, _ := v.(map[string]any)
	for k, val := range result {
		tx.Response.Set(k, val)
	}
	c.HandleRequest()
	return nil
}
