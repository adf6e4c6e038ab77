package tokenpayload

import (
	"io"
	"sort"

	"github.com/openauthd/engine/internal/claims"
)

// Defaults used to compress the wire format. These are an implementation
// choice (see DESIGN.md); any consistent choice round-trips correctly since
// the reader applies the exact inverse mapping.
const (
	defaultIssuer    = "LOCAL AUTHORITY"
	defaultValueType = "string"
)

// Write serializes principal under scheme (e.g. "Bearer") plus an arbitrary
// side-table of properties (host/transaction metadata unrelated to any
// claim) into the versioned binary envelope described by spec §4.3/§6.1.
//
// Before serializing, the fixed set of private claims (claims.ScalarPrivateClaimTypes
// and claims.ArrayPrivateClaimTypes) are copied out of the principal's
// claims into the property side-table and stripped from the claim list that
// gets written, per spec: "on write, claims are stripped after being copied
// to properties".
func Write(w io.Writer, principal *claims.Principal, scheme string, properties map[string]string) error {
	props := mergeProperties(properties, extractPrivateClaims(principal))

	enc := newWriter(w)
	enc.writeInt32(Version)
	enc.writeString(scheme)
	enc.writeInt32(int32(len(principal.Identities)))
	for _, id := range principal.Identities {
		writeIdentity(enc, id)
	}
	writeProperties(enc, props)
	return enc.err
}

// Read deserializes an envelope previously produced by Write. A version
// mismatch yields a nil principal and nil error (not a failure — spec
// mandates a graceful empty-principal result so older/foreign envelopes
// don't crash the caller). Truncated or malformed input yields a
// *ParseError.
func Read(r io.Reader) (*claims.Principal, map[string]string, error) {
	dec := newReader(r)
	version := dec.readInt32()
	if dec.err != nil {
		return nil, nil, parseErr(dec.err)
	}
	if version != Version {
		return nil, nil, nil
	}
	_ = dec.readString() // scheme; callers that care read it via ReadScheme
	count := dec.readInt32()
	if dec.err != nil {
		return nil, nil, parseErr(dec.err)
	}
	if count < 0 {
		return nil, nil, parseErr(errNegativeCount)
	}
	principal := &claims.Principal{}
	for i := int32(0); i < count; i++ {
		id := readIdentity(dec)
		if dec.err != nil {
			return nil, nil, parseErr(dec.err)
		}
		principal.Identities = append(principal.Identities, id)
	}
	props := readProperties(dec)
	if dec.err != nil {
		return nil, nil, parseErr(dec.err)
	}
	applyPrivateClaims(principal, props)
	return principal, props, nil
}

// ReadScheme returns just the scheme recorded in envelope data, without
// decoding identities, for callers that dispatch on scheme before parsing.
func ReadScheme(r io.Reader) (string, error) {
	dec := newReader(r)
	version := dec.readInt32()
	if dec.err != nil {
		return "", parseErr(dec.err)
	}
	if version != Version {
		return "", nil
	}
	scheme := dec.readString()
	if dec.err != nil {
		return "", parseErr(dec.err)
	}
	return scheme, nil
}

func writeIdentity(enc *writer, id *claims.Identity) {
	enc.writeString(id.AuthenticationType)
	enc.writeDefaulted(id.NameClaimType, claims.DefaultNameClaimType)
	enc.writeDefaulted(id.RoleClaimType, claims.DefaultRoleClaimType)
	enc.writeInt32(int32(len(id.Claims)))
	for _, c := range id.Claims {
		writeClaim(enc, c)
	}
	enc.writeBool(id.BootstrapContext != nil)
	if id.BootstrapContext != nil {
		enc.writeString(*id.BootstrapContext)
	}
	enc.writeBool(id.Actor != nil)
	if id.Actor != nil {
		writeIdentity(enc, id.Actor)
	}
}

func readIdentity(dec *reader) *claims.Identity {
	id := &claims.Identity{}
	id.AuthenticationType = dec.readString()
	id.NameClaimType = dec.readDefaulted(claims.DefaultNameClaimType)
	id.RoleClaimType = dec.readDefaulted(claims.DefaultRoleClaimType)
	n := dec.readInt32()
	if dec.err != nil || n < 0 {
		if n < 0 && dec.err == nil {
			dec.err = errNegativeCount
		}
		return id
	}
	for i := int32(0); i < n; i++ {
		id.Claims = append(id.Claims, readClaim(dec))
		if dec.err != nil {
			return id
		}
	}
	if dec.readBool() {
		s := dec.readString()
		id.BootstrapContext = &s
	}
	if dec.err == nil && dec.readBool() {
		id.Actor = readIdentity(dec)
	}
	return id
}

func writeClaim(enc *writer, c claims.Claim) {
	enc.writeDefaulted(c.Type, claims.DefaultNameClaimType)
	enc.writeString(c.Value)
	enc.writeDefaulted(c.ValueType, defaultValueType)
	enc.writeDefaulted(c.Issuer, defaultIssuer)
	enc.writeDefaulted(c.OriginalIssuer, defaultIssuer)
	keys := make([]string, 0, len(c.Properties))
	for k := range c.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	enc.writeInt32(int32(len(keys)))
	for _, k := range keys {
		enc.writeString(k)
		enc.writeString(c.Properties[k])
	}
}

func readClaim(dec *reader) claims.Claim {
	c := claims.Claim{}
	c.Type = dec.readDefaulted(claims.DefaultNameClaimType)
	c.Value = dec.readString()
	c.ValueType = dec.readDefaulted(defaultValueType)
	c.Issuer = dec.readDefaulted(defaultIssuer)
	c.OriginalIssuer = dec.readDefaulted(defaultIssuer)
	n := dec.readInt32()
	if dec.err != nil || n < 0 {
		if n < 0 && dec.err == nil {
			dec.err = errNegativeCount
		}
		return c
	}
	if n > 0 {
		c.Properties = make(map[string]string, n)
	}
	for i := int32(0); i < n; i++ {
		k := dec.readString()
		v := dec.readString()
		if dec.err != nil {
			return c
		}
		c.Properties[k] = v
	}
	return c
}

func writeProperties(enc *writer, props map[string]string) {
	enc.writeInt32(Version)
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	enc.writeInt32(int32(len(keys)))
	for _, k := range keys {
		enc.writeString(k)
		enc.writeString(props[k])
	}
}

func readProperties(dec *reader) map[string]string {
	_ = dec.readInt32() // properties format version, currently always Version
	n := dec.readInt32()
	if dec.err != nil || n < 0 {
		if n < 0 && dec.err == nil {
			dec.err = errNegativeCount
		}
		return nil
	}
	props := make(map[string]string, n)
	for i := int32(0); i < n; i++ {
		k := dec.readString()
		v := dec.readString()
		if dec.err != nil {
			return props
		}
		props[k] = v
	}
	return props
}

func mergeProperties(base map[string]string, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

var errNegativeCount = parseErrSentinel("negative count field")

type parseErrSentinel string

func (e parseErrSentinel) Error() string { return string(e) }
