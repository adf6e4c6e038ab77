package engine

import (
	"fmt"

	"github.com/openauthd/engine/internal/claims"
)

// Phase names the four stages every endpoint pipeline runs through (spec
// §4.2): Extract parses the wire request into the Transaction's Request,
// Validate checks it against the client/grant/storage, Handle performs the
// grant-specific work and produces a Principal, Apply serializes the result
// into the Transaction's Response.
type Phase string

const (
	PhaseExtract  Phase = "extract"
	PhaseValidate Phase = "validate"
	PhaseHandle   Phase = "handle"
	PhaseApply    Phase = "apply"
)

// Cross-cutting context kinds that don't belong to one specific endpoint's
// Extract/Validate/Handle/Apply pipeline: ProcessSignIn and
// ProcessAuthentication are invoked by a Handle phase to turn a Principal
// into issued tokens or to validate a presented token respectively;
// SignOut and Challenge back the logout and device-verification flows.
const (
	KindProcessSignIn       = "process_sign_in"
	KindProcessAuthenticate = "process_authenticate"
	KindProcessSignOut      = "process_sign_out"
	KindProcessChallenge    = "process_challenge"
)

// Kind builds the dispatch key for one endpoint/phase pair, e.g.
// Kind(options.EndpointToken, PhaseValidate) => "token.validate".
func Kind(endpoint string, phase Phase) string {
	return fmt.Sprintf("%s.%s", endpoint, phase)
}

// Context is the single envelope type every handler receives, discriminated
// by Kind rather than by a type hierarchy (spec §9's design note: "a sum
// type of context kinds over one transaction", adapted to Go by using one
// struct with a string discriminant instead of OpenIddict's per-phase
// class family). A handler only reads the fields relevant to its Kind; the
// rest stay at their zero value.
type Context struct {
	Kind        string
	Transaction *Transaction

	// Principal carries the authenticated/issued identity through Handle,
	// ProcessSignIn and ProcessAuthenticate contexts.
	Principal *claims.Principal

	// TokenType/TokenValue let ProcessAuthenticate contexts report which
	// kind of token string is being validated and carry it across handlers
	// without a second lookup.
	TokenType  string
	TokenValue string

	// control flow
	requestHandled bool
	requestSkipped bool
	rejected       bool

	ErrorCode        string
	ErrorDescription string
	ErrorURI         string
}

// NewContext returns a Context of the given kind bound to tx.
func NewContext(kind string, tx *Transaction) *Context {
	return &Context{Kind: kind, Transaction: tx}
}

// HandleRequest marks the context as fully handled: the Dispatcher stops
// walking further descriptors and the pipeline moves directly to producing
// its response, per spec §4.2's short-circuit semantics.
func (c *Context) HandleRequest() { c.requestHandled = true }

// SkipRequest marks the context as intentionally unhandled by this handler,
// deferring to whichever default behavior the pipeline falls back to (spec
// §4.2: "skip means defer, not fail").
func (c *Context) SkipRequest() { c.requestSkipped = true }

// Reject marks the context as rejected with an OAuth error triple and stops
// the pipeline (spec §4.2/§7).
func (c *Context) Reject(code, description, uri string) {
	c.rejected = true
	c.ErrorCode = code
	c.ErrorDescription = description
	c.ErrorURI = uri
}

// IsRequestHandled reports whether a handler called HandleRequest.
func (c *Context) IsRequestHandled() bool { return c.requestHandled }

// IsRequestSkipped reports whether a handler called SkipRequest.
func (c *Context) IsRequestSkipped() bool { return c.requestSkipped }

// IsRejected reports whether a handler called Reject.
func (c *Context) IsRejected() bool { return c.rejected }

// ShouldStop reports whether the Dispatcher should stop walking descriptors
// for this Context: any of handled, skipped or rejected ends the walk (spec
// §8 Invariant 2 — a single terminal outcome per context).
func (c *Context) ShouldStop() bool {
	return c.requestHandled || c.requestSkipped || c.rejected
}
