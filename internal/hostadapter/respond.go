package hostadapter

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/openauthd/engine/internal/engine"
)

// redirectEndpoints is the set of endpoints whose Apply handlers
// (authorization.go, logout.go) populate "redirect_uri"/"response_mode"/
// "params" instead of a flat JSON body, grounded on the teacher's
// handleAuthorization, which always ends in http.Redirect rather than a
// JSON write (server/handlers.go).
var redirectEndpoints = map[string]bool{
	"authorization": true,
	"logout":        true,
}

// writeResponse serializes tx.Response for the wire, dispatching to a
// redirect or a JSON body depending on which endpoint produced it.
func writeResponse(w http.ResponseWriter, req *http.Request, tx *engine.Transaction) {
	if redirectEndpoints[tx.EndpointName] {
		writeRedirect(w, req, tx)
		return
	}
	writeJSON(w, tx)
}

// writeRedirect builds the callback URL the way the teacher's
// handleAuthorization does: query parameters for "query" response mode, a
// fragment for "fragment". form_post falls back to a query-string
// redirect, since rendering an auto-submitting HTML form is a host UI
// concern this adapter does not take on.
func writeRedirect(w http.ResponseWriter, req *http.Request, tx *engine.Transaction) {
	redirectURI, _ := tx.Response.Get("redirect_uri")
	base, _ := redirectURI.(string)
	if base == "" {
		writeJSON(w, tx)
		return
	}
	u, err := url.Parse(base)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusInternalServerError)
		return
	}

	values := url.Values{}
	if params, ok := tx.Response.Get("params"); ok {
		// authorization.go's params already carries the full response or
		// error parameter set.
		if m, ok := params.(map[string]string); ok {
			for k, v := range m {
				values.Set(k, v)
			}
		}
	} else {
		// logout.go sets individual keys directly rather than a params
		// map; carry every string-valued one except the two this function
		// already consumed.
		for k, v := range tx.Response.Parameters {
			if k == "redirect_uri" || k == "response_mode" {
				continue
			}
			if s, ok := v.(string); ok {
				values.Set(k, s)
			}
		}
	}

	mode, _ := tx.Response.Get("response_mode")
	if mode == "fragment" {
		u.Fragment = values.Encode()
	} else {
		q := u.Query()
		for k, v := range values {
			q[k] = v
		}
		u.RawQuery = q.Encode()
	}

	http.Redirect(w, req, u.String(), http.StatusSeeOther)
}

// statusForError maps an OAuth error code to its RFC 6749 §5.2/RFC 6750
// §3 status code: invalid_client gets 401, as the teacher's tokenErrHelper
// answers it (server/handlers.go), server_error gets 500, an empty code
// (no error) gets 200, and every other code gets 400.
func statusForError(code string) int {
	switch code {
	case "invalid_client":
		return http.StatusUnauthorized
	case "server_error":
		return http.StatusInternalServerError
	case "":
		return http.StatusOK
	default:
		return http.StatusBadRequest
	}
}

// writeJSON writes tx.Response.Parameters as a JSON object, matching the
// teacher's renderToken/writeJSON helpers (server/oauth2.go,
// server/handlers.go): a 200 on success, or the mapped error status with
// a Cache-Control: no-store header per RFC 6749 §5.1.
func writeJSON(w http.ResponseWriter, tx *engine.Transaction) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	status := http.StatusOK
	if code, ok := tx.Response.Get("error"); ok {
		status = statusForErrorValue(code)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(tx.Response.Parameters)
}

func statusForErrorValue(code any) int {
	s, _ := code.(string)
	return statusForError(s)
}
