package jwtx

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"github.com/aussiebroadwan/identity/pkg/cryptox"
)

// Supported JWT signing algorithms
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

const kidPrefix = "identity-"

// ValidAlgorithm reports whether alg is one of the supported algorithms.
func ValidAlgorithm(alg string) bool {
	switch alg {
	case AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA:
		return true
	}
	return false
}

// KeyManager owns the process-wide signing keys and the KeySet published
// for them. Keys are selected randomly for signing operations.
type KeyManager struct {
	Verifier  Verifier
	KeySet    *KeySet
	algorithm string

	signers []Signer
	mu      sync.RWMutex
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	// Algorithm is one of "RS256", "ES256", "EdDSA".
	Algorithm string

	// Issuer is the iss claim validated on every token.
	Issuer string

	// Audience values (aud) validated on every token. Empty means no check.
	Audience []string

	// RSABits is the modulus size for RS256. Defaults to 4096, minimum 2048.
	RSABits int

	// NumKeys is how many ephemeral keys to generate. Defaults to 3, max 10.
	// Ignored when KeyFile is set.
	NumKeys int

	// KeyFile, when set, holds a single PEM signing key that survives
	// restarts. The key is generated and written on first use.
	KeyFile string
}

// NewKeyManager builds a KeyManager from opts. With a KeyFile the single
// persisted key is used, otherwise NumKeys ephemeral keys are generated.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.KeyFile == "" {
		return NewEphemeralKeyManager(opts)
	}
	if err := checkOptions(opts); err != nil {
		return nil, err
	}

	pemBytes, err := loadOrGenerateKey(opts.KeyFile, opts.Algorithm, opts.RSABits)
	if err != nil {
		return nil, err
	}

	kid, err := stableKeyID(pemBytes)
	if err != nil {
		return nil, err
	}
	signer, err := NewSigner(kid, opts.Algorithm, pemBytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load key %s: %w", opts.KeyFile, err)
	}

	return newKeyManager(opts, []Signer{signer})
}

// NewEphemeralKeyManager creates a KeyManager whose keys only exist in
// memory. All tokens become invalid when the process restarts.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}

	numKeys := opts.NumKeys
	if numKeys <= 0 {
		numKeys = 3
	}
	if numKeys > 10 {
		numKeys = 10
	}

	signers := make([]Signer, 0, numKeys)
	for i := range numKeys {
		kid, err := randomKeyID()
		if err != nil {
			return nil, err
		}

		pemBytes, err := generateKey(opts.Algorithm, opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate key %d: %w", i+1, err)
		}

		signer, err := NewSigner(kid, opts.Algorithm, pemBytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: signer %d: %w", i+1, err)
		}
		signers = append(signers, signer)
	}

	return newKeyManager(opts, signers)
}

func newKeyManager(opts KeyManagerOptions, signers []Signer) (*KeyManager, error) {
	keyset := NewKeySet()
	for _, s := range signers {
		if err := keyset.Add(s.PublicJWK()); err != nil {
			return nil, fmt.Errorf("jwtx: add key %s: %w", s.KID(), err)
		}
	}

	return &KeyManager{
		Verifier:  NewVerifier(keyset, opts.Algorithm, opts.Issuer, opts.Audience),
		KeySet:    keyset,
		algorithm: opts.Algorithm,
		signers:   signers,
	}, nil
}

func checkOptions(opts KeyManagerOptions) error {
	if opts.Issuer == "" {
		return errors.New("jwtx: Issuer is required")
	}
	if !ValidAlgorithm(opts.Algorithm) {
		return fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", opts.Algorithm)
	}
	return nil
}

func generateKey(algorithm string, rsaBits int) ([]byte, error) {
	switch algorithm {
	case AlgorithmRS256:
		if rsaBits == 0 {
			rsaBits = 4096
		}
		return cryptox.GenerateRSAKey(rsaBits)
	case AlgorithmES256:
		return cryptox.GenerateES256Key()
	case AlgorithmEdDSA:
		return cryptox.GenerateEd25519Key()
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", algorithm)
	}
}

func loadOrGenerateKey(file, algorithm string, rsaBits int) ([]byte, error) {
	data, err := os.ReadFile(file)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("jwtx: read key file: %w", err)
	}

	data, err = generateKey(algorithm, rsaBits)
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate key: %w", err)
	}
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("jwtx: create key dir: %w", err)
		}
	}
	if err := os.WriteFile(file, data, 0o600); err != nil {
		return nil, fmt.Errorf("jwtx: write key file: %w", err)
	}
	return data, nil
}

// Algorithm returns the signing algorithm being used.
func (km *KeyManager) Algorithm() string {
	return km.algorithm
}

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}

// GetSigner returns a randomly selected signer.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	}
	return km.signers[rand.IntN(len(km.signers))]
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// Sign signs claims with one of the active keys.
func (km *KeyManager) Sign(claims Claims) (string, error) {
	s := km.GetSigner()
	if s == nil {
		return "", errors.New("jwtx: no signing key")
	}
	return s.Sign(claims)
}

func randomKeyID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("jwtx: generate key ID: %w", err)
	}
	return kidPrefix + token, nil
}

// stableKeyID derives the kid from the public key so a persisted key keeps
// its kid across restarts.
func stableKeyID(pemBytes []byte) (string, error) {
	key, err := cryptox.ParsePrivateKeyPEM(pemBytes)
	if err != nil {
		return "", fmt.Errorf("jwtx: %w", err)
	}
	priv, ok := key.(crypto.Signer)
	if !ok {
		return "", fmt.Errorf("jwtx: key type %T cannot sign", key)
	}
	der, err := x509.MarshalPKIXPublicKey(priv.Public())
	if err != nil {
		return "", fmt.Errorf("jwtx: marshal public key: %w", err)
	}
	return kidPrefix + cryptox.FingerprintToken(string(der))[:22], nil
}
