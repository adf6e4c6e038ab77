package engine

import "strings"

// Request is the flat parameter bag for an incoming protocol request: a
// mix of typed accessors for known OAuth/OIDC parameters and an open map
// for extensions, grounded on the teacher's http.Request/url.Values parsing
// in server/oauth2.go's parseAuthorizationRequest, generalized across every
// endpoint instead of being authorization-specific.
type Request struct {
	Parameters map[string]string
}

// NewRequest returns a Request with an initialized parameter map.
func NewRequest() *Request { return &Request{Parameters: map[string]string{}} }

// Get returns the named parameter and whether it was present at all
// (distinguishing absent from empty-string, per spec §9's "never conflate
// absent with empty" design note).
func (r *Request) Get(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.Parameters[name]
	return v, ok
}

// GetOr returns the named parameter or def if absent.
func (r *Request) GetOr(name, def string) string {
	if v, ok := r.Get(name); ok {
		return v
	}
	return def
}

// Set stores a parameter value.
func (r *Request) Set(name, value string) {
	if r.Parameters == nil {
		r.Parameters = map[string]string{}
	}
	r.Parameters[name] = value
}

func (r *Request) ClientID() (string, bool)     { return r.Get("client_id") }
func (r *Request) ClientSecret() (string, bool) { return r.Get("client_secret") }
func (r *Request) ResponseType() (string, bool) { return r.Get("response_type") }
func (r *Request) ResponseMode() (string, bool) { return r.Get("response_mode") }
func (r *Request) RedirectURI() (string, bool)  { return r.Get("redirect_uri") }
func (r *Request) GrantType() (string, bool)    { return r.Get("grant_type") }
func (r *Request) Code() (string, bool)         { return r.Get("code") }
func (r *Request) CodeVerifier() (string, bool) { return r.Get("code_verifier") }
func (r *Request) CodeChallenge() (string, bool) { return r.Get("code_challenge") }
func (r *Request) CodeChallengeMethod() (string, bool) {
	return r.Get("code_challenge_method")
}
func (r *Request) RefreshToken() (string, bool)  { return r.Get("refresh_token") }
func (r *Request) DeviceCode() (string, bool)    { return r.Get("device_code") }
func (r *Request) UserCode() (string, bool)      { return r.Get("user_code") }
func (r *Request) Token() (string, bool)         { return r.Get("token") }
func (r *Request) TokenTypeHint() (string, bool) { return r.Get("token_type_hint") }
func (r *Request) Nonce() (string, bool)         { return r.Get("nonce") }
func (r *Request) State() (string, bool)         { return r.Get("state") }
func (r *Request) Prompt() (string, bool)        { return r.Get("prompt") }
func (r *Request) Username() (string, bool)      { return r.Get("username") }
func (r *Request) Password() (string, bool)      { return r.Get("password") }
func (r *Request) IDTokenHint() (string, bool)   { return r.Get("id_token_hint") }
func (r *Request) PostLogoutRedirectURI() (string, bool) {
	return r.Get("post_logout_redirect_uri")
}

// AccessToken returns the bearer token the host adapter extracted from the
// incoming Authorization header, used by endpoints (userinfo) that
// authenticate the caller by token rather than by client credentials.
func (r *Request) AccessToken() (string, bool) { return r.Get("access_token") }

// Scopes splits the space-delimited "scope" parameter, per RFC 6749 §3.3.
func (r *Request) Scopes() []string {
	v, ok := r.Get("scope")
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	return strings.Fields(v)
}
