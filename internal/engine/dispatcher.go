package engine

import (
	"context"
	"fmt"

	"github.com/openauthd/engine/internal/handlerdesc"
)

// Handler is the shape every registered handlerdesc.Descriptor.Handler must
// satisfy for Singleton/Instance lifetimes, mirroring the teacher's
// connector.Connector interface pattern: one method, taking the ambient
// context.Context plus this package's own Context envelope.
type Handler interface {
	Handle(ctx context.Context, c *Context) error
}

// HandlerFunc adapts a plain function to Handler, the way http.HandlerFunc
// adapts a function to http.Handler.
type HandlerFunc func(ctx context.Context, c *Context) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, c *Context) error { return f(ctx, c) }

// ScopedFactory builds a fresh Handler for one Transaction, used for
// Scoped-lifetime descriptors (spec §4.1's "scoped" implementation kind):
// operator handlers that need per-request state (e.g. a handler closing
// over a database transaction) register a ScopedFactory instead of a bare
// Handler.
type ScopedFactory func(tx *Transaction) Handler

// Dispatcher walks a handlerdesc.Registry's descriptors for one Context's
// Kind, in order, invoking each until one short-circuits the pipeline or
// the list is exhausted. Grounded on the teacher's dispatchByGrantType loop
// in server/oauth2.go (pick a handler by request's grant_type, run it),
// generalized into an ordered, filtered, multi-handler chain per spec §4.1.
type Dispatcher struct {
	Registry *handlerdesc.Registry
}

// NewDispatcher returns a Dispatcher over registry.
func NewDispatcher(registry *handlerdesc.Registry) *Dispatcher {
	return &Dispatcher{Registry: registry}
}

// Dispatch runs every descriptor registered for c.Kind, honoring filters and
// stopping at the first handler that marks the context handled, skipped or
// rejected (spec §8 Invariant 2). A descriptor whose Handler value does not
// resolve to a usable Handler is a configuration error, reported as such
// rather than silently skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Context) error {
	for _, desc := range d.Registry.List(c.Kind) {
		if !passesFilters(desc, c) {
			continue
		}
		h, err := resolveHandler(desc, c.Transaction)
		if err != nil {
			return fmt.Errorf("engine: dispatch %s: %w", c.Kind, err)
		}
		if err := h.Handle(ctx, c); err != nil {
			return err
		}
		if c.ShouldStop() {
			return nil
		}
	}
	return nil
}

func passesFilters(d handlerdesc.Descriptor, c *Context) bool {
	for _, f := range d.Filters {
		if !f(c) {
			return false
		}
	}
	return true
}

func resolveHandler(d handlerdesc.Descriptor, tx *Transaction) (Handler, error) {
	if d.Implementation == handlerdesc.Scoped {
		factory, ok := d.Handler.(ScopedFactory)
		if !ok {
			return nil, fmt.Errorf("descriptor %q: scoped implementation requires a ScopedFactory, got %T", d.Label, d.Handler)
		}
		h := factory(tx)
		if h == nil {
			return nil, fmt.Errorf("descriptor %q: scoped factory returned nil handler", d.Label)
		}
		return h, nil
	}

	switch v := d.Handler.(type) {
	case Handler:
		return v, nil
	case HandlerFunc:
		return v, nil
	case func(context.Context, *Context) error:
		return HandlerFunc(v), nil
	default:
		return nil, fmt.Errorf("descriptor %q: unusable handler value of type %T", d.Label, d.Handler)
	}
}
