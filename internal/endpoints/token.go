package endpoints

import (
	"context"
	"fmt"
	"time"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/store"
)

// registerToken wires the token endpoint, dispatching by grant_type the way
// the teacher's handleToken (server/handlers.go) switches on r.PostForm's
// grant_type before delegating to handleAuthCode/handlePasswordGrant/etc.
// Each grant gets its own Handle-phase descriptor guarded by a Filter so the
// Dispatcher's ordinary sorted-walk-with-short-circuit IS the grant switch,
// rather than a second ad hoc dispatch mechanism.
func registerToken(reg *handlerdesc.Registry, deps Deps) {
	ep := options.EndpointToken

	reg.Register(builtin(engine.Kind(ep, engine.PhaseExtract), "token.extract", 1000, extractTokenRequest))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseValidate), "token.validate.client", 1000, validateTokenClient(deps)))
	reg.Register(builtin(engine.Kind(ep, engine.PhaseValidate), "token.validate.grant_type", 2000, validateGrantType(deps)))

	reg.Register(grantHandler(ep, "token.handle.authorization_code", 1000, options.GrantAuthorizationCode, handleAuthorizationCodeGrant(deps)))
	reg.Register(grantHandler(ep, "token.handle.refresh_token", 2000, options.GrantRefreshToken, handleRefreshTokenGrant(deps)))
	reg.Register(grantHandler(ep, "token.handle.client_credentials", 3000, options.GrantClientCredentials, handleClientCredentialsGrant(deps)))
	reg.Register(grantHandler(ep, "token.handle.device_code", 4000, options.GrantDeviceCode, handleDeviceCodeGrant(deps)))
	reg.Register(grantHandler(ep, "token.handle.password", 5000, options.GrantPassword, handlePasswordGrant(deps)))
	reg.Register(grantHandler(ep, "token.handle.token_exchange", 6000, options.GrantTokenExchange, handleTokenExchangeGrant(deps)))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseApply), "token.apply", 1000, applyTokenResponse))
}

func grantHandler(ep, label string, order int32, grant string, h engine.HandlerFunc) handlerdesc.Descriptor {
	d := builtin(engine.Kind(ep, engine.PhaseHandle), label, order, h)
	d.Filters = []handlerdesc.Filter{func(ctxVal any) bool {
		c, ok := ctxVal.(*engine.Context)
		if !ok {
			return false
		}
		gt, _ := c.Transaction.Request.GrantType()
		return gt == grant
	}}
	return d
}

func extractTokenRequest(ctx context.Context, c *engine.Context) error {
	if _, ok := c.Transaction.Request.GrantType(); !ok {
		c.Reject("invalid_request", "grant_type is required", "")
		return nil
	}
	return nil
}

func validateTokenClient(deps Deps) engine.HandlerFunc {
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

func validateGrantType(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		grant, _ := tx.Request.GrantType()
		if !tx.Options.IsGrantEnabled(grant) {
			c.Reject("unsupported_grant_type", "grant_type is not enabled", "")
			return nil
		}
		app, _ := tx.Application()
		if ok, reason := checkEndpointAndGrantPermissions(tx.Options, app, options.EndpointToken, grant); !ok {
			c.Reject("unauthorized_client", reason, "")
			return nil
		}
		return nil
	}
}

// handleAuthorizationCodeGrant implements spec §4.5.2's authorization_code
// branch: verify, atomically redeem, then ProcessSignIn the access/id/
// refresh set, grounded on the teacher's exchangeAuthCode
// (server/handlers.go).
func handleAuthorizationCodeGrant(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		code, ok := tx.Request.Code()
		if !ok || code == "" {
			c.Reject("invalid_request", "code is required", "")
			return nil
		}
		now := time.Now()
		validated, err := deps.Issuer.Validate(ctx, code, claims.DestinationAuthorizationCode, now)
		if err != nil {
			c.Reject("invalid_grant", "authorization code is invalid or expired", "")
			return nil
		}

		app, _ := tx.Application()
		if auds := validated.Principal.Audiences(); len(auds) == 0 || auds[0] != app.ClientID {
			c.Reject("invalid_grant", "authorization code was not issued to this client", "")
			return nil
		}
		originalRedirect, _ := validated.Principal.OriginalRedirectURI()
		if redirectURI, ok := tx.Request.RedirectURI(); ok && redirectURI != originalRedirect {
			c.Reject("invalid_grant", "redirect_uri does not match the authorization request", "")
			return nil
		}
		challenge, hasChallenge := validated.Principal.CodeChallenge()
		if hasChallenge && challenge != "" {
			method, _ := validated.Principal.CodeChallengeMethod()
			verifier, _ := tx.Request.CodeVerifier()
			if !verifyPKCE(challenge, method, verifier) {
				c.Reject("invalid_grant", "code_verifier does not match code_challenge", "")
				return nil
			}
		}

		// Redeem is the atomic valid->redeemed compare-and-swap spec §8
		// Invariant 4 requires: exactly one concurrent caller wins.
		if err := tx.Stores.Tokens.Redeem(ctx, validated.Record.ID, now); err != nil {
			c.Reject("invalid_grant", "authorization code has already been used", "")
			return nil
		}

		p := clonePrincipal(validated.Principal)
		destinations := []string{claims.DestinationAccessToken}
		if hasScope(p.Scopes(), "openid") {
			destinations = append(destinations, claims.DestinationIdentityToken)
		}
		if tx.Options.IsGrantEnabled(options.GrantRefreshToken) {
			destinations = append(destinations, claims.DestinationRefreshToken)
		}

		return signInAndRespond(ctx, tx, deps, p, destinations, now)
	}
}

func hasScope(scopes []string, target string) bool {
	for _, s := range scopes {
		if s == target {
			return true
		}
	}
	return false
}

// handleRefreshTokenGrant implements the refresh_token branch, including
// rolling rotation (spec §8 Invariant 6 / Scenario S2), grounded on the
// teacher's rotation.go token-family revocation model.
func handleRefreshTokenGrant(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		refreshToken, ok := tx.Request.RefreshToken()
		if !ok || refreshToken == "" {
			c.Reject("invalid_request", "refresh_token is required", "")
			return nil
		}
		now := time.Now()
		validated, err := deps.Issuer.Validate(ctx, refreshToken, claims.DestinationRefreshToken, now)
		if err != nil {
			c.Reject("invalid_grant", "refresh token is invalid, expired or revoked", "")
			return nil
		}

		p := clonePrincipal(validated.Principal)
		if _, ok := p.AuthorizationID(); !ok && validated.Record.AuthorizationID != "" {
			p.SetAuthorizationID(validated.Record.AuthorizationID)
		}

		if tx.Options.UseRollingRefreshTokens {
			if err := tx.Stores.Tokens.Redeem(ctx, validated.Record.ID, now); err != nil {
				// Reuse of an already-rotated refresh token: revoke the
				// whole authorization chain it descends from (spec S2).
				if authzID, ok := p.AuthorizationID(); ok && authzID != "" {
					_ = tx.Stores.Authorizations.Revoke(ctx, authzID)
				}
				c.Reject("invalid_grant", "refresh token has already been rotated", "")
				return nil
			}
		} else if !tx.Options.DisableSlidingRefreshTokenExpiration {
			// Records this use as the creation date of the principal the new
			// tokens are issued from. The presented refresh token is not
			// re-issued and its stored expiration is not extended.
			p.SetCreationDate(now)
		}

		destinations := []string{claims.DestinationAccessToken}
		if hasScope(p.Scopes(), "openid") {
			destinations = append(destinations, claims.DestinationIdentityToken)
		}
		if tx.Options.UseRollingRefreshTokens {
			destinations = append(destinations, claims.DestinationRefreshToken)
		}

		return signInAndRespond(ctx, tx, deps, p, destinations, now)
	}
}

// handleClientCredentialsGrant issues an access token directly to the
// authenticated client, with no user principal involved.
func handleClientCredentialsGrant(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		app, _ := tx.Application()

		p := claims.NewPrincipal(claims.DefaultAuthenticationType)
		p.Primary().AddClaim(claims.NewClaim(claims.DefaultNameClaimType, app.ClientID).
			WithDestinations(claims.DestinationAccessToken))
		p.SetAudiences(app.ClientID)
		p.SetPresenters(app.ClientID)
		p.SetScopes(requestedScopes(tx.Options, app, tx.Request.Scopes())...)

		return signInAndRespond(ctx, tx, deps, p, []string{claims.DestinationAccessToken}, time.Now())
	}
}

// handleDeviceCodeGrant implements spec §4.5.2's device_code polling
// branch: authorization_pending / slow_down / expired_token / success.
func handleDeviceCodeGrant(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		deviceCode, ok := tx.Request.DeviceCode()
		if !ok || deviceCode == "" {
			c.Reject("invalid_request", "device_code is required", "")
			return nil
		}
		now := time.Now()
		rec, err := tx.Stores.Tokens.Find(ctx, deviceCode)
		if err != nil {
			c.Reject("expired_token", "device_code is unknown or expired", "")
			return nil
		}
		if now.After(rec.ExpirationDate) {
			c.Reject("expired_token", "device_code has expired", "")
			return nil
		}
		if rec.LastPolledAt != nil && now.Sub(*rec.LastPolledAt) < deviceCodePollInterval {
			c.Reject("slow_down", "polling faster than the allotted interval", "")
			return nil
		}
		_ = tx.Stores.Tokens.MarkPolled(ctx, rec.ID, now)
		if rec.Status == store.TokenRevoked || rec.Status == store.TokenRejected {
			c.Reject("access_denied", "device authorization was denied", "")
			return nil
		}
		if rec.Status == store.TokenInactive {
			c.Reject("authorization_pending", "the user has not yet completed verification", "")
			return nil
		}
		if rec.Status == store.TokenRedeemed {
			c.Reject("invalid_grant", "device_code has already been used", "")
			return nil
		}

		validated, err := deps.Issuer.Validate(ctx, deviceCode, claims.DestinationDeviceCode, now)
		if err != nil {
			c.Reject("invalid_grant", "device_code payload could not be read", "")
			return nil
		}
		if err := tx.Stores.Tokens.Redeem(ctx, rec.ID, now); err != nil {
			c.Reject("invalid_grant", "device_code has already been used", "")
			return nil
		}

		p := clonePrincipal(validated.Principal)
		destinations := []string{claims.DestinationAccessToken}
		if hasScope(p.Scopes(), "openid") {
			destinations = append(destinations, claims.DestinationIdentityToken)
		}
		if tx.Options.IsGrantEnabled(options.GrantRefreshToken) {
			destinations = append(destinations, claims.DestinationRefreshToken)
		}
		return signInAndRespond(ctx, tx, deps, p, destinations, now)
	}
}

// handlePasswordGrant delegates to a required custom handler (spec §4.5.2:
// "For password: delegate to custom handler") — the core never verifies
// end-user credentials itself, matching §1's Non-goal of user-account
// management. Built in only as the dispatch slot a custom Validate/Handle
// handler registers against via ContextType "token.handle"; with no
// operator handler present this grant always fails closed.
func handlePasswordGrant(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		c.Reject("unsupported_grant_type", "password grant requires an operator-registered credential validator", "")
		return nil
	}
}

// RFC 8693 token-type identifiers this grant recognizes for subject_token_type
// and requested_token_type; token exchange otherwise never appears on the
// wire for this engine, so these stay local to the grant rather than joining
// options' destination constants.
const (
	tokenTypeAccessToken = "urn:ietf:params:oauth:token-type:access_token"
	tokenTypeIDToken     = "urn:ietf:params:oauth:token-type:id_token"
)

// handleTokenExchangeGrant implements RFC 8693 token exchange: validate the
// presented subject_token as one of this engine's own access or identity
// tokens, then re-issue it to the authenticated (presumably downstream)
// client as the requested_token_type, narrowing scopes the same way every
// other grant does. Supplemental and disabled by default — an operator
// enables it via Options.EnabledGrants, matching the teacher's
// handleTokenExchange (server/tokenexchangehandlers.go), generalized from
// its connector.TokenIdentityConnector lookup to this engine's own token
// validation since there is no connector concept here.
func handleTokenExchangeGrant(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		subjectToken, ok := tx.Request.Get("subject_token")
		if !ok || subjectToken == "" {
			c.Reject("invalid_request", "subject_token is required", "")
			return nil
		}
		subjectTokenType, _ := tx.Request.Get("subject_token_type")
		var subjectDestination string
		switch subjectTokenType {
		case tokenTypeAccessToken:
			subjectDestination = claims.DestinationAccessToken
		case tokenTypeIDToken:
			subjectDestination = claims.DestinationIdentityToken
		default:
			c.Reject("invalid_request", "subject_token_type must be an access or id token", "")
			return nil
		}

		now := time.Now()
		validated, err := deps.Issuer.Validate(ctx, subjectToken, subjectDestination, now)
		if err != nil {
			c.Reject("invalid_grant", "subject_token is invalid, expired or revoked", "")
			return nil
		}

		requestedTokenType := tx.Request.GetOr("requested_token_type", tokenTypeAccessToken)
		var destination string
		switch requestedTokenType {
		case tokenTypeAccessToken:
			destination = claims.DestinationAccessToken
		case tokenTypeIDToken:
			destination = claims.DestinationIdentityToken
		default:
			c.Reject("invalid_request", "requested_token_type is not supported", "")
			return nil
		}

		app, _ := tx.Application()
		p := clonePrincipal(validated.Principal)
		p.SetAudiences(app.ClientID)
		p.SetPresenters(app.ClientID)
		if requested := tx.Request.Scopes(); len(requested) > 0 {
			p.SetScopes(requestedScopes(tx.Options, app, requested)...)
		}

		if err := signInAndRespond(ctx, tx, deps, p, []string{destination}, now); err != nil {
			return err
		}
		if v, ok := tx.Get(propTokenResult); ok {
			if m, ok := v.(map[string]string); ok {
				m["issued_token_type"] = requestedTokenType
			}
		}
		return nil
	}
}

func signInAndRespond(ctx context.Context, tx *engine.Transaction, deps Deps, p *claims.Principal, destinations []string, now time.Time) error {
	set, err := engine.ProcessSignIn(ctx, deps.Issuer, p, destinations, now)
	if err != nil {
		return err
	}
	result := map[string]string{}
	if v, ok := set.Values[claims.DestinationAccessToken]; ok {
		result["access_token"] = v
		result["token_type"] = "Bearer"
		lifetime, ok := p.Lifetime(claims.DestinationAccessToken)
		if !ok {
			lifetime = tx.Options.Lifetime(claims.DestinationAccessToken, time.Hour)
		}
		result["expires_in"] = fmt.Sprintf("%d", int64(lifetime.Seconds()))
	}
	if v, ok := set.Values[claims.DestinationIdentityToken]; ok {
		result["id_token"] = v
	}
	if v, ok := set.Values[claims.DestinationRefreshToken]; ok {
		result["refresh_token"] = v
	}
	if scopes := p.Scopes(); len(scopes) > 0 {
		result["scope"] = joinScopesForResponse(scopes)
	}
	tx.Set(propTokenResult, result)
	return nil
}

func joinScopesForResponse(scopes []string) string {
	out := ""
	for i, s := range scopes {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

const propTokenResult = "token.result"

// deviceCodePollInterval is the minimum gap the device flow requires between
// two polls of the same device_code (RFC 8628 §3.5, spec §8 Scenario S3).
const deviceCodePollInterval = 5 * time.Second

func applyTokenResponse(ctx context.Context, c *engine.Context) error {
	tx := c.Transaction
	if c.IsRejected() {
		tx.Response.SetError(c.ErrorCode, c.ErrorDescription, c.ErrorURI)
		c.HandleRequest()
		return nil
	}
	if v, ok := tx.Get(propTokenResult); ok {
		if m, ok := v.(map[string]string); ok {
			for k, val := range m {
				tx.Response.Set(k, val)
			}
		}
	}
	c.HandleRequest()
	return nil
}
