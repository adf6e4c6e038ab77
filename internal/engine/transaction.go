package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/store"
)

// Transaction is the per-request state threaded through every Context of
// one protocol exchange: the resolved Options, the storage ports, a logger
// scoped to this request, and the Request/Response bags. Grounded on the
// teacher's connector.Identity plus storage.Storage pairing passed through
// server/handlers.go's handleXxx functions, generalized into one carrier
// instead of a fixed parameter list so the Dispatcher can pass it uniformly
// to handlers that care about wildly different endpoints.
type Transaction struct {
	Options *options.Options
	Stores  store.Stores
	Logger  *logrus.Entry

	Request  *Request
	Response *Response

	// EndpointName is the options.Endpoint* constant this transaction is
	// processing, used by handlers that branch on endpoint identity and by
	// logging.
	EndpointName string

	// Properties is an open bag for handler-to-handler communication within
	// one transaction (e.g. a Validate handler stashing the resolved
	// store.Application for a later Handle handler to reuse), mirroring the
	// teacher's context.WithValue threading but scoped and typed per
	// transaction instead of per context.Context key.
	Properties map[string]any
}

// NewTransaction returns a Transaction ready for a Dispatcher to run
// Contexts against.
func NewTransaction(o *options.Options, stores store.Stores, logger *logrus.Entry, endpoint string) *Transaction {
	return &Transaction{
		Options:      o,
		Stores:       stores,
		Logger:       logger,
		Request:      NewRequest(),
		Response:     NewResponse(),
		EndpointName: endpoint,
		Properties:   map[string]any{},
	}
}

// Get returns a transaction property.
func (t *Transaction) Get(key string) (any, bool) {
	v, ok := t.Properties[key]
	return v, ok
}

// Set stores a transaction property.
func (t *Transaction) Set(key string, value any) {
	if t.Properties == nil {
		t.Properties = map[string]any{}
	}
	t.Properties[key] = value
}

// Application returns the store.Application resolved earlier in the
// transaction by a Validate handler, if any.
func (t *Transaction) Application() (*store.Application, bool) {
	v, ok := t.Get(propApplication)
	if !ok {
		return nil, false
	}
	app, ok := v.(*store.Application)
	return app, ok
}

// SetApplication stashes the resolved client application for later phases.
func (t *Transaction) SetApplication(a *store.Application) { t.Set(propApplication, a) }

const propApplication = "engine.application"

// SubjectPrincipal returns the resource owner's already-authenticated
// identity, if the host adapter attached one before invoking the pipeline.
// Rendering and collecting a login/consent UI is out of scope for the core
// (spec §1 Non-goals); the host is expected to perform that interaction
// itself and carry its result in on the Transaction the same way ASP.NET
// Core's authentication middleware populates HttpContext.User ahead of an
// OpenIddict handler ever running, which is the design this mirrors.
func (t *Transaction) SubjectPrincipal() (*claims.Principal, bool) {
	v, ok := t.Get(propSubject)
	if !ok {
		return nil, false
	}
	p, ok := v.(*claims.Principal)
	return p, ok
}

// SetSubjectPrincipal attaches the resource owner's authenticated identity.
func (t *Transaction) SetSubjectPrincipal(p *claims.Principal) { t.Set(propSubject, p) }

const propSubject = "engine.subject_principal"
