// Package jwt verifies JWTs issued by a third party (an upstream identity
// provider) rather than by this engine's own Issuer — the case that arises
// when a host's federated-login connector needs to check the signature on
// an ID token it received from elsewhere before handing the resulting
// identity to engine.KindProcessChallenge.
package jwt

import (
	"context"
	"errors"

	jose "gopkg.in/square/go-jose.v2"
)

var ErrFailedVerify = errors.New("failed to verify id token signature")

// StorageKeySet implements the oidc.KeySet interface over a fixed set of
// public verification keys, typically the JWKS fetched from an upstream
// provider's discovery document. It does not read from this engine's own
// signing credentials (internal/options) — those are for tokens this
// engine issues, not tokens it verifies.
type StorageKeySet struct {
	keys []*jose.JSONWebKey
}

func NewStorageKeySet(keys []*jose.JSONWebKey) *StorageKeySet {
	return &StorageKeySet{keys: keys}
}

func (s *StorageKeySet) VerifySignature(ctx context.Context, jwt string) (payload []byte, err error) {
	jws, err := jose.ParseSigned(jwt, []jose.SignatureAlgorithm{jose.RS256, jose.RS384, jose.RS512, jose.ES256, jose.ES384, jose.ES512})
	if err != nil {
		return nil, err
	}

	keyID := ""
	for _, sig := range jws.Signatures {
		keyID = sig.Header.KeyID
		break
	}

	for _, key := range s.keys {
		if keyID == "" || key.KeyID == keyID {
			if payload, err := jws.Verify(key); err == nil {
				return payload, nil
			}
		}
	}

	return nil, ErrFailedVerify
}
