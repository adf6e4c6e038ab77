package endpoints

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/store"
)

// registerAuthorization wires the authorization endpoint's four phases,
// grounded on the teacher's handleAuthorization/handleConnectorCallback/
// sendCodeResponse trio (server/handlers.go), generalized from dex's single
// fixed connector-login flow to the full response_type matrix spec §4.5.1
// names (code, token, id_token and hybrid combinations).
func registerAuthorization(reg *handlerdesc.Registry, deps Deps) {
	ep := options.EndpointAuthorization

	reg.Register(builtin(engine.Kind(ep, engine.PhaseExtract), "authorization.extract", 1000,
		extractAuthorizationRequest))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseValidate), "authorization.validate.client", 1000,
		validateAuthorizationClient(deps)))
	reg.Register(builtin(engine.Kind(ep, engine.PhaseValidate), "authorization.validate.response_type", 2000,
		validateResponseType(deps)))
	reg.Register(builtin(engine.Kind(ep, engine.PhaseValidate), "authorization.validate.pkce", 3000,
		validatePKCEParams))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseHandle), "authorization.handle", 1000,
		handleAuthorization(deps)))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseApply), "authorization.apply", 1000,
		applyAuthorizationResponse))
}

func extractAuthorizationRequest(ctx context.Context, c *engine.Context) error {
	req := c.Transaction.Request
	for _, required := range []string{"client_id", "response_type", "redirect_uri"} {
		if v, ok := req.Get(required); !ok || v == "" {
			c.Reject("invalid_request", fmt.Sprintf("%s is required", required), "")
			return nil
		}
	}
	if _, ok := req.ResponseMode(); !ok {
		rt, _ := req.ResponseType()
		req.Set("response_mode", defaultResponseMode(rt))
	}
	return nil
}

func defaultResponseMode(responseType string) string {
	if strings.Contains(responseType, "token") {
		return options.ResponseModeFragment
	}
	return options.ResponseModeQuery
}

func validateAuthorizationClient(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		clientID, _ := tx.Request.ClientID()
		app, err := tx.Stores.Applications.FindByClientID(ctx, clientID)
		if err != nil || app == nil {
			c.Reject("invalid_client", "unknown client", "")
			return nil
		}
		if ok, reason := checkEndpointAndGrantPermissions(tx.Options, app, options.EndpointAuthorization, ""); !ok {
			c.Reject("unauthorized_client", reason, "")
			return nil
		}
		redirectURI, _ := tx.Request.RedirectURI()
		if !app.HasRedirectURI(redirectURI) {
			c.Reject("invalid_request", "redirect_uri is not registered for this client", "")
			return nil
		}
		tx.SetApplication(app)
		return nil
	}
}

func validateResponseType(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		rt, _ := tx.Request.ResponseType()
		if !responseTypeSupported(tx.Options, rt) {
			c.Reject("unsupported_response_type", "response_type is not supported", "")
			return nil
		}
		app, _ := tx.Application()
		requested := tx.Request.Scopes()
		scopes := requestedScopes(tx.Options, app, requested)
		if len(requested) > 0 && len(scopes) == 0 {
			c.Reject("invalid_scope", "none of the requested scopes are permitted", "")
			return nil
		}
		tx.Set(propScopes, scopes)
		return nil
	}
}

func responseTypeSupported(o *options.Options, rt string) bool {
	for _, s := range o.ResponseTypesSupported {
		if s == rt {
			return true
		}
	}
	return false
}

func validatePKCEParams(ctx context.Context, c *engine.Context) error {
	tx := c.Transaction
	challenge, hasChallenge := tx.Request.CodeChallenge()
	method, _ := tx.Request.CodeChallengeMethod()
	if hasChallenge && challenge != "" {
		if method != "" && method != options.CodeChallengeMethodS256 && method != options.CodeChallengeMethodPlain {
			c.Reject("invalid_request", "unsupported code_challenge_method", "")
			return nil
		}
	}
	return nil
}

const propScopes = "authorization.scopes"

func handleAuthorization(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		subject, ok := tx.SubjectPrincipal()
		if !ok {
			challenge := engine.NewContext(engine.KindProcessChallenge, tx)
			if deps.Dispatcher != nil {
				if err := deps.Dispatcher.Dispatch(ctx, challenge); err != nil {
					return err
				}
			}
			subject, ok = tx.SubjectPrincipal()
			if !ok {
				if challenge.IsRejected() {
					c.Reject(challenge.ErrorCode, challenge.ErrorDescription, challenge.ErrorURI)
				} else {
					c.Reject("login_required", "interactive authentication is required", "")
				}
				return nil
			}
		}

		app, _ := tx.Application()
		clientID, _ := tx.Request.ClientID()
		redirectURI, _ := tx.Request.RedirectURI()
		scopesVal, _ := tx.Get(propScopes)
		scopes, _ := scopesVal.([]string)
		rt, _ := tx.Request.ResponseType()

		p := claims.NewPrincipal(claims.DefaultAuthenticationType)
		id := p.Primary()
		id.AddClaim(claims.NewClaim(claims.DefaultNameClaimType, subject.Name()).
			WithDestinations(claims.DestinationAccessToken, claims.DestinationIdentityToken))
		p.SetAudiences(clientID)
		p.SetPresenters(clientID)
		p.SetScopes(scopes...)
		p.SetOriginalRedirectURI(redirectURI)
		if nonce, ok := tx.Request.Nonce(); ok {
			p.SetNonce(nonce)
		}
		if challenge, ok := tx.Request.CodeChallenge(); ok && challenge != "" {
			p.SetCodeChallenge(challenge)
			method, _ := tx.Request.CodeChallengeMethod()
			if method == "" {
				method = options.CodeChallengeMethodPlain
			}
			p.SetCodeChallengeMethod(method)
		}

		now := time.Now()
		result := map[string]string{}
		responseTypes := map[string]bool{}
		for _, part := range strings.Fields(rt) {
			responseTypes[part] = true
		}

		if responseTypes["code"] {
			authz := &store.Authorization{
				ID:           fmt.Sprintf("authz-%s-%d", clientID, now.UnixNano()),
				Subject:      subject.Name(),
				ClientID:     clientID,
				Status:       store.AuthorizationValid,
				Scopes:       scopes,
				Type:         store.AuthorizationAdHoc,
				CreationDate: now,
			}
			if err := tx.Stores.Authorizations.Create(ctx, authz); err != nil {
				return err
			}
			codePrincipal := clonePrincipal(p)
			codePrincipal.SetAuthorizationID(authz.ID)
			issued, err := deps.Issuer.Issue(ctx, codePrincipal, claims.DestinationAuthorizationCode, now)
			if err != nil {
				return err
			}
			result["code"] = issued.Value
		}
		if responseTypes["token"] {
			issued, err := deps.Issuer.Issue(ctx, clonePrincipal(p), claims.DestinationAccessToken, now)
			if err != nil {
				return err
			}
			result["access_token"] = issued.Value
			result["token_type"] = "Bearer"
		}
		if responseTypes["id_token"] {
			issued, err := deps.Issuer.Issue(ctx, clonePrincipal(p), claims.DestinationIdentityToken, now)
			if err != nil {
				return err
			}
			result["id_token"] = issued.Value
		}
		if state, ok := tx.Request.State(); ok {
			result["state"] = state
		}

		tx.Set(propResult, result)
		c.Principal = p
		c.HandleRequest()
		return nil
	}
}

const propResult = "authorization.result"

func clonePrincipal(p *claims.Principal) *claims.Principal {
	out := &claims.Principal{Identities: make([]*claims.Identity, len(p.Identities))}
	for i, id := range p.Identities {
		idCopy := *id
		idCopy.Claims = append([]claims.Claim(nil), id.Claims...)
		out.Identities[i] = &idCopy
	}
	return out
}

func applyAuthorizationResponse(ctx context.Context, c *engine.Context) error {
	tx := c.Transaction
	redirectURI, _ := tx.Request.RedirectURI()
	mode, _ := tx.Request.ResponseMode()

	params := map[string]string{}
	if c.IsRejected() {
		params["error"] = c.ErrorCode
		if c.ErrorDescription != "" {
			params["error_description"] = c.ErrorDescription
		}
		if state, ok := tx.Request.State(); ok {
			params["state"] = state
		}
	} else if v, ok := tx.Get(propResult); ok {
		if m, ok := v.(map[string]string); ok {
			params = m
		}
	}

	tx.Response.Set("redirect_uri", redirectURI)
	tx.Response.Set("response_mode", mode)
	tx.Response.Set("params", params)
	c.HandleRequest()
	return nil
}
