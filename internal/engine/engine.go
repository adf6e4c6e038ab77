// Package engine implements the protocol-processing core (spec §4):
// Transaction/Context/Dispatcher plumbing plus the endpoint pipelines and
// sign-in/authentication processors built on top of it. Grounded on the
// teacher's server.Server type (server/server.go), which bundles storages,
// connectors and a router the same way Engine bundles Stores, a
// handlerdesc.Registry and resolved Options.
package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/store"
)

// Engine bundles everything a pipeline run needs: resolved Options, storage
// ports, a Dispatcher over the handler registry and a base logger.
type Engine struct {
	Options    *options.Options
	Stores     store.Stores
	Dispatcher *Dispatcher
	Logger     *logrus.Logger
}

// New returns an Engine. o must already have had options.Resolve run
// against it; New does not call it. Resolve reads only o itself: the
// registry is not consulted, so o.CustomValidatorEndpoints and
// o.CustomHandlers are whatever the caller set before resolving.
func New(o *options.Options, stores store.Stores, registry *handlerdesc.Registry, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		Options:    o,
		Stores:     stores,
		Dispatcher: NewDispatcher(registry),
		Logger:     logger,
	}
}

// NewTransaction returns a Transaction for the named endpoint, scoped to
// this Engine's Options, Stores and a logger entry tagged with it.
func (e *Engine) NewTransaction(endpoint string) *Transaction {
	return NewTransaction(e.Options, e.Stores, e.Logger.WithField("endpoint", endpoint), endpoint)
}

// RunPipeline drives one endpoint's Extract/Validate/Handle/Apply contexts
// in order (spec §4.2), stopping at the first rejection and always running
// Apply last so a rejected transaction still gets a chance to shape its
// error response, matching the teacher's handleXxx pattern of always
// writing *some* response even on failure.
func (e *Engine) RunPipeline(ctx context.Context, tx *Transaction) error {
	for _, phase := range []Phase{PhaseExtract, PhaseValidate, PhaseHandle} {
		c := NewContext(Kind(tx.EndpointName, phase), tx)
		if err := e.Dispatcher.Dispatch(ctx, c); err != nil {
			tx.Response.SetError("server_error", err.Error(), "")
			return err
		}
		if c.Principal != nil {
			tx.Set(propPrincipal, c.Principal)
		}
		if c.IsRejected() {
			tx.Response.SetError(c.ErrorCode, c.ErrorDescription, c.ErrorURI)
			return e.runApply(ctx, tx, c)
		}
	}
	return e.runApply(ctx, tx, nil)
}

// runApply dispatches the Apply phase. When rejected is non-nil its error
// is copied onto the Apply context, so Apply handlers see IsRejected.
func (e *Engine) runApply(ctx context.Context, tx *Transaction, rejected *Context) error {
	c := NewContext(Kind(tx.EndpointName, PhaseApply), tx)
	if rejected != nil {
		c.Reject(rejected.ErrorCode, rejected.ErrorDescription, rejected.ErrorURI)
	}
	if err := e.Dispatcher.Dispatch(ctx, c); err != nil {
		tx.Response.SetError("server_error", err.Error(), "")
		return err
	}
	return nil
}

const propPrincipal = "engine.principal"

// Principal returns the Principal a Handle phase attached to tx, if any.
func (t *Transaction) Principal() (*claims.Principal, bool) {
	v, ok := t.Get(propPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*claims.Principal)
	return p, ok
}
