package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/ghodss/yaml"
	jose "gopkg.in/square/go-jose.v2"

	"github.com/openauthd/engine/internal/options"
)

// Config is the operator-facing YAML shape this binary accepts, grounded
// on the teacher's cmd/dex Config (cmd/dex/config.go): a thin,
// directly-unmarshaled struct that the serve command turns into the
// engine's real configuration, rather than exposing options.Options'
// post-resolve derived fields to the operator.
type Config struct {
	Issuer string `json:"issuer"`

	Web struct {
		HTTP    string `json:"http"`
		HTTPS   string `json:"https"`
		TLSCert string `json:"tlsCert"`
		TLSKey  string `json:"tlsKey"`

		AllowedOrigins []string `json:"allowedOrigins"`
		AllowedHeaders []string `json:"allowedHeaders"`
	} `json:"web"`

	Telemetry struct {
		HTTP string `json:"http"`
	} `json:"telemetry"`

	Logger struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"logger"`

	Endpoints map[string]string `json:"endpoints"`
	Grants    map[string]bool   `json:"grants"`
	Scopes    []string          `json:"scopes"`

	// SigningKeyFile is a PEM-encoded RSA private key used to sign issued
	// tokens. A file is required: unlike dex's keyRotator, this engine
	// doesn't generate and rotate its own keys (spec §1 Non-goals leave key
	// management to the operator).
	SigningKeyFile string `json:"signingKeyFile"`

	Lifetimes map[string]string `json:"lifetimes"`

	EnableDegradedMode bool `json:"enableDegradedMode"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &c, nil
}

// toOptions turns the operator-facing Config into the options.Options seed
// Resolve expects, grounded on the teacher's serveOptions->server.Config
// translation in cmd/dex/serve.go's runServe.
func (c *Config) toOptions() (*options.Options, error) {
	signingCred, err := loadSigningCredential(c.SigningKeyFile)
	if err != nil {
		return nil, err
	}

	lifetimes := map[string]time.Duration{}
	for destination, s := range c.Lifetimes {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid lifetime %q for %q: %w", s, destination, err)
		}
		lifetimes[destination] = d
	}

	scopes := map[string]bool{}
	for _, s := range c.Scopes {
		scopes[s] = true
	}

	o := &options.Options{
		Issuer:              c.Issuer,
		Endpoints:           c.Endpoints,
		EnabledGrants:       c.Grants,
		EnableDegradedMode:  c.EnableDegradedMode,
		SigningCredentials:  []options.Credential{*signingCred},
		EncryptionCredentials: []options.Credential{newEphemeralEncryptionCredential()},
		Lifetimes:           lifetimes,
		Scopes:              scopes,
	}
	return o, nil
}

// loadSigningCredential reads an RSA private key PEM from path. The
// teacher generates and rotates its own RSA keys (server/rotation.go);
// this engine instead takes operator-supplied key material per spec §1's
// boundary around key management.
func loadSigningCredential(path string) (*options.Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signing key file %s: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("signing key file %s: no PEM block found", path)
	}

	var key *rsa.PrivateKey
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		key = k
	} else {
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("signing key file %s: %w", path, err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("signing key file %s: not an RSA private key", path)
		}
		key = rsaKey
	}

	return &options.Credential{
		Key: &jose.JSONWebKey{
			Key:       key,
			Algorithm: "RS256",
			Use:       "sig",
		},
	}, nil
}

// newEphemeralEncryptionCredential satisfies Resolve's "at least one valid
// encryption credential" requirement (spec §4.4 step 3) with a
// process-lifetime symmetric key. Nothing in this engine encrypts token
// material yet (internal/tokens.Issuer only signs); the field exists for
// an operator extension that wants to, so a random key that doesn't
// survive a restart is the right default rather than a hardcoded one.
func newEphemeralEncryptionCredential() options.Credential {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return options.Credential{
		Key: &jose.JSONWebKey{
			Key:       key,
			Algorithm: "A256GCM",
			Use:       "enc",
		},
	}
}
