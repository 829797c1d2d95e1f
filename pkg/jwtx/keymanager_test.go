package jwtx_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/identity/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func testClaims(now time.Time, ttl time.Duration) jwtx.Claims {
	return jwtx.NewAccessClaims(jwtx.AccessClaimsParams{
		Subject:   "user-123",
		Username:  "alice",
		Roles:     []string{"ROLE_USER"},
		SessionID: "session-abc",
		Issuer:    "test-issuer",
		Audience:  []string{"test-audience"},
		TTL:       ttl,
		Now:       now,
	})
}

func newManager(t *testing.T, alg string, numKeys int) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: alg,
		Issuer:    "test-issuer",
		Audience:  []string{"test-audience"},
		RSABits:   2048,
		NumKeys:   numKeys,
	})
	require.NoError(t, err)
	return km
}

func TestKeyManager_SignAndVerifyRoundTrip(t *testing.T) {
	for _, alg := range []string{jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA} {
		t.Run(alg, func(t *testing.T) {
			km := newManager(t, alg, 1)
			require.Equal(t, alg, km.Algorithm())
			require.True(t, km.IsReady())

			claims := testClaims(time.Now().UTC(), 5*time.Minute)
			token, err := km.Sign(claims)
			require.NoError(t, err)

			parsed, err := km.Verifier.Verify(token)
			require.NoError(t, err)
			require.Equal(t, claims.Subject, parsed.Subject)
			require.Equal(t, claims.ID, parsed.ID)
			require.Equal(t, claims.SID, parsed.SID)
			require.Equal(t, claims.Username, parsed.Username)
			require.ElementsMatch(t, claims.Roles, parsed.Roles)
			require.ElementsMatch(t, claims.Audience, parsed.Audience)
		})
	}
}

func TestKeyVerifier_Rejects(t *testing.T) {
	km := newManager(t, jwtx.AlgorithmEdDSA, 1)
	now := time.Now().UTC()

	t.Run("expired", func(t *testing.T) {
		token, err := km.Sign(testClaims(now.Add(-time.Hour), time.Minute))
		require.NoError(t, err)
		_, err = km.Verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := testClaims(now, time.Minute)
		c.Issuer = "someone-else"
		token, err := km.Sign(c)
		require.NoError(t, err)
		_, err = km.Verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := testClaims(now, time.Minute)
		c.Audience = []string{"other"}
		token, err := km.Sign(c)
		require.NoError(t, err)
		_, err = km.Verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("foreign key", func(t *testing.T) {
		other := newManager(t, jwtx.AlgorithmEdDSA, 1)
		token, err := other.Sign(testClaims(now, time.Minute))
		require.NoError(t, err)
		_, err = km.Verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("tampered payload", func(t *testing.T) {
		token, err := km.Sign(testClaims(now, time.Minute))
		require.NoError(t, err)
		parts := strings.Split(token, ".")
		forged, err := km.Sign(jwtx.NewAccessClaims(jwtx.AccessClaimsParams{
			Subject: "admin", Issuer: "test-issuer", Audience: []string{"test-audience"},
			TTL: time.Minute, Now: now,
		}))
		require.NoError(t, err)
		parts[1] = strings.Split(forged, ".")[1]
		_, err = km.Verifier.Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := km.Verifier.Verify("not.a.jwt")
		require.Error(t, err)
	})

	t.Run("other algorithm", func(t *testing.T) {
		es := newManager(t, jwtx.AlgorithmES256, 1)
		token, err := es.Sign(testClaims(now, time.Minute))
		require.NoError(t, err)
		_, err = km.Verifier.Verify(token)
		require.Error(t, err)
	})
}

func TestNewEphemeralKeyManager_ErrorCases(t *testing.T) {
	tests := []struct {
		name        string
		opts        jwtx.KeyManagerOptions
		expectedErr string
	}{
		{"missing Issuer", jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmRS256}, "Issuer is required"},
		{"unsupported algorithm", jwtx.KeyManagerOptions{Algorithm: "HS256", Issuer: "i"}, "unsupported algorithm"},
		{"RSA too small", jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmRS256, Issuer: "i", RSABits: 1024, NumKeys: 1}, "at least 2048 bits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := jwtx.NewEphemeralKeyManager(tt.opts)
			require.Error(t, err)
			require.Nil(t, km)
			require.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestKeyManager_MultiKeyMode(t *testing.T) {
	km := newManager(t, jwtx.AlgorithmEdDSA, 0)
	require.Equal(t, 3, km.NumSigners())

	jwks := km.KeySet.PublicJWKS()
	require.Len(t, jwks.Keys, 3)

	kids := make(map[string]bool)
	for _, jwk := range jwks.Keys {
		require.True(t, strings.HasPrefix(jwk.Kid, "identity-"))
		require.False(t, kids[jwk.Kid], "duplicate kid found: %s", jwk.Kid)
		kids[jwk.Kid] = true
	}

	for range 10 {
		token, err := km.Sign(testClaims(time.Now().UTC(), time.Minute))
		require.NoError(t, err)
		_, err = km.Verifier.Verify(token)
		require.NoError(t, err)
	}
}

func TestKeyManager_CustomNumKeys(t *testing.T) {
	tests := []struct {
		name     string
		numKeys  int
		expected int
	}{
		{"explicit 2 keys", 2, 2},
		{"explicit 1 key", 1, 1},
		{"max capped at 10", 15, 10},
		{"zero defaults to 3", 0, 3},
		{"negative defaults to 3", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km := newManager(t, jwtx.AlgorithmEdDSA, tt.numKeys)
			require.Equal(t, tt.expected, km.NumSigners())
			require.Len(t, km.KeySet.PublicJWKS().Keys, tt.expected)
		})
	}
}

func TestNewKeyManager_KeyFilePersists(t *testing.T) {
	file := filepath.Join(t.TempDir(), "keys", "signing.pem")
	opts := jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmES256,
		Issuer:    "test-issuer",
		Audience:  []string{"test-audience"},
		KeyFile:   file,
	}

	first, err := jwtx.NewKeyManager(opts)
	require.NoError(t, err)
	require.Equal(t, 1, first.NumSigners())

	token, err := first.Sign(testClaims(time.Now().UTC(), time.Minute))
	require.NoError(t, err)

	// A restarted process loads the same key and still accepts the token.
	second, err := jwtx.NewKeyManager(opts)
	require.NoError(t, err)
	require.Equal(t, first.KeySet.PublicJWKS(), second.KeySet.PublicJWKS())

	_, err = second.Verifier.Verify(token)
	require.NoError(t, err)

	// Loading the file under a different algorithm is refused.
	opts.Algorithm = jwtx.AlgorithmEdDSA
	_, err = jwtx.NewKeyManager(opts)
	require.Error(t, err)
}
