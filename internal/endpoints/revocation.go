package endpoints

import (
	"context"
	"time"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/options"
)

// registerRevocation wires RFC 7009 revocation (spec §4.5.4): authenticate
// the caller, revoke the referenced token (cascading to its authorization
// when it is a refresh token, so every descendant token stops validating
// per spec §8 Invariant 5), and always answer 200 — a nonexistent or
// already-revoked token is success, never invalid_grant, so the endpoint
// can never be used to probe for a token's existence.
func registerRevocation(reg *handlerdesc.Registry, deps Deps) {
	ep := options.EndpointRevocation

	reg.Register(builtin(engine.Kind(ep, engine.PhaseExtract), "revocation.extract", 1000,
		extractRevocationRequest))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseValidate), "revocation.validate.client", 1000,
		validateRevocationClient(deps)))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseHandle), "revocation.handle", 1000,
		handleRevocation(deps)))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseApply), "revocation.apply", 1000,
		applyRevocationResponse))
}

func extractRevocationRequest(ctx context.Context, c *engine.Context) error {
	if v, ok := c.Transaction.Request.Token(); !ok || v == "" {
		c.Reject("invalid_request", "token is required", "")
		return nil
	}
	return nil
}

func validateRevocationClient(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		app, ok, reason := authenticateClient(ctx, c.Transaction)
		if !ok {
			c.Reject("invalid_client", reason, "")
			return nil
		}
		c.Transaction.SetApplication(app)
		return nil
	}
}

var revocationDestinationsByHint = map[string]string{
	"access_token":  claims.DestinationAccessToken,
	"refresh_token": claims.DestinationRefreshToken,
}

func handleRevocation(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		token, _ := tx.Request.Token()
		hint, _ := tx.Request.TokenTypeHint()

		candidates := []string{revocationDestinationsByHint[hint]}
		if candidates[0] == "" {
			candidates = []string{claims.DestinationRefreshToken, claims.DestinationAccessToken}
		}

		now := time.Now()
		for _, dest := range candidates {
			validated, err := deps.Issuer.Validate(ctx, token, dest, now)
			if err != nil {
				continue
			}
			app, _ := tx.Application()
			if auds := validated.Principal.Audiences(); app != nil && len(auds) > 0 {
				owned := false
				for _, a := range auds {
					if a == app.ClientID {
						owned = true
						break
					}
				}
				if !owned {
					// Revoking a token issued to a different client: report
					// success without touching it, same non-disclosure
					// posture as introspection.
					break
				}
			}
			_ = tx.Stores.Tokens.Revoke(ctx, validated.Record.ID)
			if authzID, ok := validated.Principal.AuthorizationID(); ok && authzID != "" && dest == claims.DestinationRefreshToken {
				_ = tx.Stores.Authorizations.Revoke(ctx, authzID)
				_ = tx.Stores.Tokens.RevokeByAuthorization(ctx, authzID)
			}
			break
		}

		c.HandleRequest()
		return nil
	}
}

func applyRevocationResponse(ctx context.Context, c *engine.Context) error {
	tx := c.Transaction
	// Only a malformed request or a client that failed to authenticate
	// surfaces as an error; a well-formed request for a token that does not
	// exist, was already revoked, or belongs to someone else always
	// succeeds (spec §4.5.4).
	if c.IsRejected() {
		tx.Response.SetError(c.ErrorCode, c.ErrorDescription, c.ErrorURI)
	}
	c.HandleRequest()
	return nil
}
