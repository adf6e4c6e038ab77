// Package hostadapter is the host adapter (spec §1's "host" concept):
// translates an incoming *http.Request into an engine.Transaction, drives
// the Engine's pipeline, and writes the resulting engine.Response back out
// as either a JSON body or a redirect. Grounded on the teacher's
// server.Server HTTP surface (server/server.go, server/handlers.go) —
// gorilla/mux routing, gorilla/handlers CORS, Prometheus per-handler
// instrumentation and the withClientFromStorage Basic-auth fallback — but
// carrying none of dex's connector/UI machinery, since authentication and
// consent are a host concern the engine dispatches to via
// KindProcessChallenge (internal/engine/context.go) rather than rendering
// itself.
package hostadapter

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/openauthd/engine/internal/engine"
)

// buildRequest parses an incoming request's form values (query string for
// GET, body for POST, per RFC 6749 §3.1/§3.2) into an engine.Request,
// folding in a Basic-auth client_id/client_secret pair and a Bearer token
// the same way the teacher's withClientFromStorage and handleUserInfo
// parse their own credentials out of r.BasicAuth()/r.Header.
func buildRequest(r *http.Request) (*engine.Request, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}

	req := engine.NewRequest()
	for key := range r.Form {
		req.Set(key, r.Form.Get(key))
	}

	if clientID, clientSecret, ok := r.BasicAuth(); ok {
		if id, err := url.QueryUnescape(clientID); err == nil {
			req.Set("client_id", id)
		}
		if secret, err := url.QueryUnescape(clientSecret); err == nil {
			req.Set("client_secret", secret)
		}
	}

	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(auth, prefix) {
			req.Set("access_token", strings.TrimSpace(auth[len(prefix):]))
		}
	}

	return req, nil
}
