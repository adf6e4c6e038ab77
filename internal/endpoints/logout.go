package endpoints

import (
	"context"
	"time"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/options"
)

// registerLogout wires RP-initiated logout (spec §4.5.6): validate
// post_logout_redirect_uri against the id_token_hint's client when one is
// supplied, dispatch a ProcessSignOut context for the host to clear its own
// session state, and redirect. Grounded on the engine's own ProcessSignOut
// cross-cutting kind (internal/engine/context.go) — dex has no RP-initiated
// logout of its own to learn this from.
func registerLogout(reg *handlerdesc.Registry, deps Deps) {
	ep := options.EndpointLogout

	reg.Register(builtin(engine.Kind(ep, engine.PhaseExtract), "logout.extract", 1000, extractLogoutRequest))
	reg.Register(builtin(engine.Kind(ep, engine.PhaseValidate), "logout.validate", 1000, validateLogout(deps)))
	reg.Register(builtin(engine.Kind(ep, engine.PhaseHandle), "logout.handle", 1000, handleLogout(deps)))
	reg.Register(builtin(engine.Kind(ep, engine.PhaseApply), "logout.apply", 1000, applyLogoutResponse))
}

func extractLogoutRequest(ctx context.Context, c *engine.Context) error {
	return nil
}

// validateLogout checks post_logout_redirect_uri against the client that
// the id_token_hint was issued to, when both are present; a
// post_logout_redirect_uri with no hint to check it against is accepted
// as-is, matching the teacher's general posture of trusting registered
// metadata over requiring every optional parameter.
func validateLogout(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		redirectURI, hasRedirect := tx.Request.PostLogoutRedirectURI()
		if !hasRedirect || redirectURI == "" {
			return nil
		}

		hint, hasHint := tx.Request.IDTokenHint()
		if !hasHint || hint == "" {
			return nil
		}

		validated, err := deps.Issuer.Validate(ctx, hint, claims.DestinationIdentityToken, time.Now())
		if err != nil {
			c.Reject("invalid_request", "id_token_hint is invalid or expired", "")
			return nil
		}
		tx.SetSubjectPrincipal(validated.Principal)

		auds := validated.Principal.Audiences()
		if len(auds) == 0 {
			return nil
		}
		app, err := tx.Stores.Applications.FindByClientID(ctx, auds[0])
		if err != nil || app == nil || !app.HasPostLogoutRedirectURI(redirectURI) {
			c.Reject("invalid_request", "post_logout_redirect_uri is not registered for this client", "")
			return nil
		}
		return nil
	}
}

func handleLogout(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		signOut := engine.NewContext(engine.KindProcessSignOut, tx)
		if deps.Dispatcher != nil {
			if err := deps.Dispatcher.Dispatch(ctx, signOut); err != nil {
				return err
			}
		}
		if signOut.IsRejected() {
			c.Reject(signOut.ErrorCode, signOut.ErrorDescription, signOut.ErrorURI)
			return nil
		}
		c.HandleRequest()
		return nil
	}
}

func applyLogoutResponse(ctx context.Context, c *engine.Context) error {
	tx := c.Transaction
	if c.IsRejected() {
		tx.Response.SetError(c.ErrorCode, c.ErrorDescription, c.ErrorURI)
		c.HandleRequest()
		return nil
	}
	if redirectURI, ok := tx.Request.PostLogoutRedirectURI(); ok && redirectURI != "" {
		tx.Response.Set("redirect_uri", redirectURI)
		if state, ok := tx.Request.State(); ok {
			tx.Response.Set("state", state)
		}
	}
	c.HandleRequest()
	return nil
}
