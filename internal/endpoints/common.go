package endpoints

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"

	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/store"
)

// authenticateClient resolves and authenticates the client credentials
// carried on the request (client_id plus, for confidential clients,
// client_secret), mirroring the teacher's withClientFromStorage
// (server/handlers.go) generalized to hashed secrets via bcrypt, the way
// the rest of the pack's Credential* stores do it.
func authenticateClient(ctx context.Context, tx *engine.Transaction) (*store.Application, bool, string) {
	clientID, ok := tx.Request.ClientID()
	if !ok || clientID == "" {
		return nil, false, "client_id is required"
	}
	app, err := tx.Stores.Applications.FindByClientID(ctx, clientID)
	if err != nil || app == nil {
		return nil, false, "unknown client"
	}
	if app.Type == store.ClientConfidential || app.Type == store.ClientHybrid {
		secret, _ := tx.Request.ClientSecret()
		if !verifySecret(*app, secret) {
			return nil, false, "invalid client credentials"
		}
	}
	return app, true, ""
}

func verifySecret(app store.Application, secret string) bool {
	if app.SecretHashed {
		return bcrypt.CompareHashAndPassword([]byte(app.ClientSecret), []byte(secret)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(app.ClientSecret), []byte(secret)) == 1
}

// checkEndpointAndGrantPermissions enforces the per-application endpoint
// and grant allow-lists unless the IgnoreEndpointPermissions/
// IgnoreGrantTypePermissions flags waive them (spec §4.4 step 1); scopes are
// narrowed separately by requestedScopes.
func checkEndpointAndGrantPermissions(o *options.Options, app *store.Application, endpoint, grant string) (bool, string) {
	if !o.IgnoreEndpointPermissions && !app.PermitsEndpoint(endpoint) {
		return false, "client is not permitted to use this endpoint"
	}
	if grant != "" && !o.IgnoreGrantTypePermissions && !app.PermitsGrantType(grant) {
		return false, "client is not permitted to use this grant type"
	}
	return true, ""
}

// verifyPKCE checks a presented code_verifier against a stored
// code_challenge/code_challenge_method pair per RFC 7636 §4.6, grounded on
// the teacher's calculateCodeChallenge (server/handlers.go) generalized to
// also accept "plain".
func verifyPKCE(challenge, method, verifier string) bool {
	if challenge == "" {
		return true // PKCE was not used for this authorization
	}
	if verifier == "" {
		return false
	}
	switch method {
	case "", options.CodeChallengeMethodPlain:
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case options.CodeChallengeMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(computed)) == 1
	default:
		return false
	}
}

// requestedScopes intersects the scopes a request asked for against those
// the resolved Options and the application both permit (the application
// check is skipped when IgnoreScopePermissions is set). It drops scopes and
// never fails; the authorization endpoint rejects with invalid_scope when
// every requested scope was dropped.
func requestedScopes(o *options.Options, app *store.Application, requested []string) []string {
	var out []string
	for _, s := range requested {
		if !o.IsScopeRegistered(s) {
			continue
		}
		if !o.IgnoreScopePermissions && !app.PermitsScope(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
