package options

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // thumbprint, not a security boundary
	"crypto/x509"
	"encoding/base64"
	"sort"
	"time"

	"github.com/Masterminds/semver"
	jose "gopkg.in/square/go-jose.v2"
)

// Credential wraps a signing or encryption key plus the metadata the
// resolver needs to assign a key id and sort it into precedence order,
// grounded on the teacher's server/oauth2.go signatureAlgorithm/jwk
// handling but generalized across key shapes instead of dex's RSA-only
// assumption.
type Credential struct {
	Key  *jose.JSONWebKey
	Cert *x509.Certificate // non-nil for X.509-backed credentials

	// NotBefore/NotAfter are zero for non-X.509 credentials (no validity
	// window to enforce).
	NotBefore time.Time
	NotAfter  time.Time

	// Version is an optional operator-supplied semver tag (e.g. "1.2.0")
	// used only to break ties within a precedence tier when the operator
	// wants an explicit, human-auditable rotation order instead of relying
	// on config-file insertion order. Most credentials leave this empty.
	Version string
}

// IsSymmetric reports whether the credential wraps a raw symmetric key.
func (c Credential) IsSymmetric() bool {
	if c.Key == nil {
		return false
	}
	_, ok := c.Key.Key.([]byte)
	return ok
}

// IsAsymmetric reports whether the credential wraps an RSA or ECDSA key.
func (c Credential) IsAsymmetric() bool {
	if c.Key == nil {
		return false
	}
	switch c.Key.Key.(type) {
	case *rsa.PrivateKey, *rsa.PublicKey, *ecdsa.PrivateKey, *ecdsa.PublicKey:
		return true
	default:
		return false
	}
}

// IsX509 reports whether the credential carries certificate metadata.
func (c Credential) IsX509() bool { return c.Cert != nil }

// notYetValid reports whether now precedes the credential's NotBefore
// window (always false for non-X.509 credentials).
func (c Credential) notYetValid(now time.Time) bool {
	return c.IsX509() && !c.NotBefore.IsZero() && now.Before(c.NotBefore)
}

// currentlyValid reports whether an X.509 credential is inside its validity
// window as of now; non-X.509 credentials are always considered valid.
func (c Credential) currentlyValid(now time.Time) bool {
	if !c.IsX509() {
		return true
	}
	if !c.NotBefore.IsZero() && now.Before(c.NotBefore) {
		return false
	}
	if !c.NotAfter.IsZero() && now.After(c.NotAfter) {
		return false
	}
	return true
}

// precedenceTier implements spec §4.4 step 6's ordering: symmetric keys
// first, then valid X.509 (sorted by furthest not-after), then non-X.509
// asymmetric keys, then not-yet-valid X.509 keys last. Intra-tier order is
// stable insertion order, per the Open Question in spec §9 resolved in
// DESIGN.md.
func (c Credential) precedenceTier(now time.Time) int {
	switch {
	case c.IsSymmetric():
		return 0
	case c.IsX509() && c.currentlyValid(now) && !c.notYetValid(now):
		return 1
	case !c.IsX509():
		return 2
	default:
		return 3
	}
}

// SortCredentials orders creds by the precedence rule in spec §4.4 step 6.
// The sort is stable so ties (including the symmetric/non-X.509 tiers,
// which carry no secondary key) preserve insertion order, unless both
// sides of the tie carry a parseable Version tag, in which case the
// higher semver version sorts first.
func SortCredentials(creds []Credential, now time.Time) {
	sort.SliceStable(creds, func(i, j int) bool {
		ti, tj := creds[i].precedenceTier(now), creds[j].precedenceTier(now)
		if ti != tj {
			return ti < tj
		}
		if ti == 1 {
			// Valid X.509: furthest not-after sorts first.
			return creds[i].NotAfter.After(creds[j].NotAfter)
		}
		if less, ok := versionTieBreak(creds[i], creds[j]); ok {
			return less
		}
		return false
	})
}

// versionTieBreak reports whether a should sort before b based on their
// Version tags, and whether both tags parsed as valid semver at all — a
// false ok means the caller should fall through to stable insertion order.
func versionTieBreak(a, b Credential) (less bool, ok bool) {
	if a.Version == "" || b.Version == "" {
		return false, false
	}
	va, err := semver.NewVersion(a.Version)
	if err != nil {
		return false, false
	}
	vb, err := semver.NewVersion(b.Version)
	if err != nil {
		return false, false
	}
	return va.Compare(vb) > 0, true
}

// AssignKeyID fills c.Key.KeyID when empty, per spec §4.4 step 8: the
// certificate thumbprint for X.509 credentials, the base64url-encoded RSA
// modulus truncated to 40 chars (uppercased) for RSA, and the base64url
// X coordinate truncated to 40 chars for ECDSA.
func AssignKeyID(c *Credential) {
	if c.Key == nil || c.Key.KeyID != "" {
		return
	}
	switch {
	case c.IsX509():
		sum := sha1.Sum(c.Cert.Raw) //nolint:gosec // thumbprint convention, not a MAC
		c.Key.KeyID = base64.RawURLEncoding.EncodeToString(sum[:])
	default:
		switch key := c.Key.Key.(type) {
		case *rsa.PrivateKey:
			c.Key.KeyID = truncatedUpper(base64.RawURLEncoding.EncodeToString(key.N.Bytes()))
		case *rsa.PublicKey:
			c.Key.KeyID = truncatedUpper(base64.RawURLEncoding.EncodeToString(key.N.Bytes()))
		case *ecdsa.PrivateKey:
			c.Key.KeyID = truncated(base64.RawURLEncoding.EncodeToString(key.X.Bytes()))
		case *ecdsa.PublicKey:
			c.Key.KeyID = truncated(base64.RawURLEncoding.EncodeToString(key.X.Bytes()))
		}
	}
}

const keyIDMaxLen = 40

func truncated(s string) string {
	if len(s) > keyIDMaxLen {
		return s[:keyIDMaxLen]
	}
	return s
}

func truncatedUpper(s string) string {
	s = truncated(s)
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return string(out)
}
