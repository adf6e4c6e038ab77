package claims

// Defaults for the claim-type fields an Identity uses to resolve its Name()
// and Roles(), mirroring the .NET ClaimsIdentity conventions the serializer
// in internal/tokenpayload must stay wire-compatible with.
const (
	DefaultNameClaimType = "name"
	DefaultRoleClaimType = "role"

	DefaultAuthenticationType = "Bearer"
)

// Identity is a set of Claims asserted by a single authentication event.
// Principals hold an ordered list of these so that, e.g., a delegated
// "actor" identity can ride alongside the primary one.
type Identity struct {
	AuthenticationType string
	NameClaimType      string
	RoleClaimType      string

	Claims []Claim

	// BootstrapContext carries an opaque string blob (e.g. the original
	// wire token) alongside the parsed claims, mirroring ClaimsIdentity's
	// BootstrapContext used by the teacher's token caching to avoid
	// re-parsing.
	BootstrapContext *string

	// Actor represents delegation: the identity that obtained this token on
	// behalf of the subject.
	Actor *Identity
}

// NewIdentity returns an Identity with the default claim-type conventions.
func NewIdentity(authenticationType string) *Identity {
	return &Identity{
		AuthenticationType: authenticationType,
		NameClaimType:      DefaultNameClaimType,
		RoleClaimType:      DefaultRoleClaimType,
	}
}

func (id *Identity) nameClaimType() string {
	if id.NameClaimType == "" {
		return DefaultNameClaimType
	}
	return id.NameClaimType
}

func (id *Identity) roleClaimType() string {
	if id.RoleClaimType == "" {
		return DefaultRoleClaimType
	}
	return id.RoleClaimType
}

// AddClaim appends a claim to the identity and returns it for chaining.
func (id *Identity) AddClaim(c Claim) *Identity {
	id.Claims = append(id.Claims, c)
	return id
}

// FindFirst returns the first claim of the given type, if any.
func (id *Identity) FindFirst(claimType string) (Claim, bool) {
	for _, c := range id.Claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

// FindAll returns every claim of the given type, in order.
func (id *Identity) FindAll(claimType string) []Claim {
	var out []Claim
	for _, c := range id.Claims {
		if c.Type == claimType {
			out = append(out, c)
		}
	}
	return out
}

// Name returns the value of the first claim whose type matches
// NameClaimType, or "" if none exists.
func (id *Identity) Name() string {
	if c, ok := id.FindFirst(id.nameClaimType()); ok {
		return c.Value
	}
	return ""
}

// Roles returns the values of every claim whose type matches RoleClaimType.
func (id *Identity) Roles() []string {
	var out []string
	for _, c := range id.FindAll(id.roleClaimType()) {
		out = append(out, c.Value)
	}
	return out
}

// IsAuthenticated reports whether the identity carries a non-empty
// authentication type, matching ClaimsIdentity semantics.
func (id *Identity) IsAuthenticated() bool {
	return id.AuthenticationType != ""
}
