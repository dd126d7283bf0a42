package jwks

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveKeys(t *testing.T, pub *rsa.PublicKey, kid string) *httptest.Server {
	t.Helper()
	doc := jwkDoc{Keys: []jwkKey{{
		Kid: kid,
		Kty: "RSA",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(doc)
	}))
}

func TestKeySetVerifiesToken(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	srv := serveKeys(t, &priv.PublicKey, "kid-1")
	defer srv.Close()

	ks := New(srv.URL)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token.Header["kid"] = "kid-1"
	signed, err := token.SignedString(priv)
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, ks.Keyfunc)
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
}

func TestKeySetRejectsUnknownKid(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	srv := serveKeys(t, &priv.PublicKey, "kid-1")
	defer srv.Close()

	ks := New(srv.URL)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token.Header["kid"] = "rotated-away"
	signed, err := token.SignedString(priv)
	require.NoError(t, err)

	_, err = jwt.Parse(signed, ks.Keyfunc)
	assert.Error(t, err)
}

func TestKeySetRejectsHMAC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jwkDoc{})
	}))
	defer srv.Close()

	ks := New(srv.URL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token.Header["kid"] = "kid-1"
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = jwt.Parse(signed, ks.Keyfunc)
	assert.Error(t, err)
}

func TestKeySetMissingKidHeader(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	srv := serveKeys(t, &priv.PublicKey, "kid-1")
	defer srv.Close()

	ks := New(srv.URL)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	delete(token.Header, "kid")
	signed, err := token.SignedString(priv)
	require.NoError(t, err)

	_, err = jwt.Parse(signed, ks.Keyfunc)
	assert.Error(t, err)
}
