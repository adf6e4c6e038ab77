// Package endpoints registers the engine's built-in handler descriptors for
// every wire endpoint spec §6.2 defines: authorization, token, device,
// verification, introspection, revocation, userinfo, configuration,
// cryptography and logout. Each endpoint contributes one or more
// Extract/Validate/Handle/Apply handlers to a shared handlerdesc.Registry,
// grounded on the teacher's per-endpoint handleXxx methods in
// server/handlers.go and server/oauth2.go, generalized from dex's one fixed
// connector-backed login flow into the engine's multi-grant dispatch.
package endpoints

import (
	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/tokens"
)

// Deps bundles the collaborators every built-in handler closes over:
// resolved Options, a token Issuer and the Dispatcher used for child
// contexts such as the process-challenge dispatch. Built-in handlers are
// plain closures rather than a Handler struct family, matching the
// teacher's *Server receiver methods but without a god-object receiver —
// each Register<Endpoint> function only takes what it needs.
type Deps struct {
	Options    *options.Options
	Issuer     *tokens.Issuer
	Dispatcher *engine.Dispatcher
}

// RegisterBuiltins adds every built-in handler descriptor to registry. An
// operator wishing to override one behavior registers a Custom-origin
// descriptor at a lower Order for the same ContextType — the Dispatcher
// still runs every descriptor in Order until one short-circuits, so an
// operator handler that calls ctx.HandleRequest() before a built-in
// descriptor's turn effectively replaces it, matching spec §4.1's
// override-by-order model rather than requiring deletion/replacement.
func RegisterBuiltins(registry *handlerdesc.Registry, deps Deps) {
	registerAuthorization(registry, deps)
	registerToken(registry, deps)
	registerDevice(registry, deps)
	registerVerification(registry, deps)
	registerIntrospection(registry, deps)
	registerRevocation(registry, deps)
	registerUserinfo(registry, deps)
	registerDiscovery(registry, deps)
	registerLogout(registry, deps)
}

// builtin is a small constructor to keep each Register<Endpoint> function's
// descriptor literals short.
func builtin(contextType, label string, order int32, h engine.HandlerFunc) handlerdesc.Descriptor {
	return handlerdesc.Descriptor{
		ContextType:    contextType,
		Label:          label,
		Order:          order,
		Implementation: handlerdesc.Singleton,
		Origin:         handlerdesc.BuiltIn,
		Handler:        h,
	}
}
