package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

// NewSigner loads a private key from PEM bytes and returns a Signer for alg.
// The key type must match the algorithm: RSA for RS256, P-256 for ES256 and
// Ed25519 for EdDSA.
func NewSigner(kid, alg string, pemKey []byte) (Signer, error) {
	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}

	priv, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("jwtx: key type %T cannot sign", key)
	}

	method, err := signingMethod(alg)
	if err != nil {
		return nil, err
	}
	if err := checkKeyType(alg, priv); err != nil {
		return nil, err
	}

	jwk, err := NewJWK(kid, alg, priv.Public())
	if err != nil {
		return nil, err
	}

	return &keySigner{kid: kid, method: method, key: priv, jwk: jwk}, nil
}

func (s *keySigner) Alg() string    { return s.method.Alg() }
func (s *keySigner) KID() string    { return s.kid }
func (s *keySigner) PublicJWK() JWK { return s.jwk }

// Sign turns the claims into a compact JWS with the kid header set.
func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func signingMethod(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case AlgorithmRS256:
		return jwt.SigningMethodRS256, nil
	case AlgorithmES256:
		return jwt.SigningMethodES256, nil
	case AlgorithmEdDSA:
		return jwt.SigningMethodEdDSA, nil
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", alg)
	}
}

func checkKeyType(alg string, key crypto.Signer) error {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		if alg == AlgorithmRS256 {
			if k.N.BitLen() < cryptox.MinRSABits {
				return fmt.Errorf("jwtx: RSA key too small (%d bits)", k.N.BitLen())
			}
			return nil
		}
	case *ecdsa.PrivateKey:
		if alg == AlgorithmES256 && k.Curve.Params().Name == "P-256" {
			return nil
		}
	case ed25519.PrivateKey:
		if alg == AlgorithmEdDSA {
			return nil
		}
	}
	return errors.New("jwtx: key type does not match algorithm " + alg)
}
