// Package handlerdesc implements the Handler Descriptor Registry (spec
// §4.1): metadata describing each handler (the context type it binds to,
// its order, its filters, its lifetime scope) plus the registry that sorts
// and looks them up per context type. It carries no opinion about what a
// "handler" actually is — engine.Dispatcher supplies that — so the registry
// can be shared by both the engine's built-in pipelines and the Options
// resolver's bookkeeping of custom handlers without a circular import.
package handlerdesc

import "sort"

// ImplementationKind governs how the dispatcher resolves a handler
// instance: singleton shares one instance across transactions, scoped
// resolves a fresh instance per transaction, instance uses a pre-built
// object attached directly to the descriptor.
type ImplementationKind string

const (
	Singleton ImplementationKind = "singleton"
	Scoped    ImplementationKind = "scoped"
	Instance  ImplementationKind = "instance"
)

// Origin distinguishes handlers the engine ships from ones an operator
// registered.
type Origin string

const (
	BuiltIn Origin = "builtin"
	Custom  Origin = "custom"
)

// Filter is a predicate the dispatcher evaluates before invoking a handler;
// all filters must return true for the handler to run. The argument is
// whatever context value the dispatcher is walking for this ContextType;
// handlerdesc stays agnostic to its shape.
type Filter func(ctx any) bool

// Descriptor is the registered metadata for one handler.
type Descriptor struct {
	ContextType    string
	Order          int32
	Filters        []Filter
	Implementation ImplementationKind
	Origin         Origin

	// Handler is the actual handler value (a func or object); its expected
	// shape is defined by the consuming package (engine.HandlerFunc), not
	// by handlerdesc.
	Handler any

	// Label names the handler for logs and registration-collision
	// diagnostics (e.g. "token.validate.client_secret").
	Label string
}

// Registry holds every registered Descriptor, keyed by ContextType.
type Registry struct {
	byContext map[string][]Descriptor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byContext: make(map[string][]Descriptor)}
}

// Register adds d to the registry. Order collisions within one ContextType
// are legal — they just resolve by stable insertion order at List time —
// and are not reported as errors, per spec §4.1 ("invalid order collisions
// must log but not fail"); callers that want that log line should inspect
// List's result themselves.
func (r *Registry) Register(d Descriptor) {
	r.byContext[d.ContextType] = append(r.byContext[d.ContextType], d)
}

// List returns every descriptor registered for contextType, sorted
// ascending by Order with ties resolved by stable insertion order (spec §3
// Handler Descriptor invariant, §8 Invariant 1).
func (r *Registry) List(contextType string) []Descriptor {
	descs := r.byContext[contextType]
	out := make([]Descriptor, len(descs))
	copy(out, descs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// ContextTypes returns every ContextType with at least one registered
// descriptor.
func (r *Registry) ContextTypes() []string {
	out := make([]string, 0, len(r.byContext))
	for k := range r.byContext {
		out = append(out, k)
	}
	return out
}

// HasOrigin reports whether contextType has at least one descriptor with
// the given Origin — the value a caller records in
// Options.CustomValidatorEndpoints, which the Options resolver reads to
// check the degraded-mode "a custom validation handler exists for each
// enabled endpoint" invariant (spec §3, §4.4 step 4).
func (r *Registry) HasOrigin(contextType string, origin Origin) bool {
	for _, d := range r.byContext[contextType] {
		if d.Origin == origin {
			return true
		}
	}
	return false
}
