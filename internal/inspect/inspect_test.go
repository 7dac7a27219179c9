package inspect

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brizzai/oauth-playground/internal/config"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKID = "test-key"

type testIssuer struct {
	server *httptest.Server
	key    *rsa.PrivateKey
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	iss := &testIssuer{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                iss.server.URL,
			"authorization_endpoint":                iss.server.URL + "/authorize",
			"token_endpoint":                        iss.server.URL + "/token",
			"jwks_uri":                              iss.server.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKID,
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	})
	iss.server = httptest.NewServer(mux)
	t.Cleanup(iss.server.Close)
	return iss
}

func (i *testIssuer) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	raw, err := token.SignedString(i.key)
	require.NoError(t, err)
	return raw
}

func TestDecode(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "https://issuer.example.com",
		"sub": "user-1",
		"exp": time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
	})
	raw, err := token.SignedString([]byte("not-checked"))
	require.NoError(t, err)

	d, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "HS256", d.Algorithm())
	assert.Equal(t, "https://issuer.example.com", d.Issuer())
	assert.Equal(t, "user-1", d.Subject())
	exp, ok := d.Expiry()
	require.True(t, ok)
	assert.Equal(t, 2030, exp.UTC().Year())
}

func TestDecode_Opaque(t *testing.T) {
	tests := []string{"ya29.opaque-access-token", "EAAB1234", "a.b.c"}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := Decode(raw)
			assert.ErrorIs(t, err, ErrNotJWT)
		})
	}
}

func TestVerifier_Verify(t *testing.T) {
	iss := newTestIssuer(t)
	v := NewVerifier(iss.server.Client())

	raw := iss.sign(t, jwt.MapClaims{
		"iss":   iss.server.URL,
		"aud":   "client-1",
		"sub":   "42",
		"email": "a@b.c",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	claims, err := v.Verify(context.Background(), iss.server.URL, "client-1", raw)
	require.NoError(t, err)
	assert.Equal(t, "42", claims["sub"])
	assert.Equal(t, "a@b.c", claims["email"])

	_, err = v.Verify(context.Background(), iss.server.URL, "other-client", raw)
	assert.Error(t, err)
}

func TestVerifier_Expired(t *testing.T) {
	iss := newTestIssuer(t)
	v := NewVerifier(iss.server.Client())

	raw := iss.sign(t, jwt.MapClaims{
		"iss": iss.server.URL,
		"aud": "client-1",
		"sub": "42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := v.Verify(context.Background(), iss.server.URL, "client-1", raw)
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	assert.Nil(t, NewFromConfig(VerifierParams{}))
	assert.Nil(t, NewFromConfig(VerifierParams{Config: &config.OIDCConfig{}}))
	assert.NotNil(t, NewFromConfig(VerifierParams{Config: &config.OIDCConfig{VerifyIDToken: true}}))
}
