package userauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rakutentech/jwk-go/jwk"
	"github.com/stretchr/testify/require"
)

const testSecret = "backend-secret"

func hmacToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	_, err = New(Config{JWKSPublicEndpoint: "ftp://example.com/keys"})
	require.Error(t, err)
}

func TestVerifyHMAC(t *testing.T) {
	v, err := New(Config{HMACSecretKey: testSecret, Issuer: "windi", NameClaim: "name"})
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour).Unix()

	id, err := v.Verify(context.Background(), hmacToken(t, jwt.MapClaims{"sub": "42", "name": "Ann", "iss": "windi", "exp": exp}, testSecret))
	require.NoError(t, err)
	require.Equal(t, Identity{User: "42", Name: "Ann"}, id)

	tests := []struct {
		name   string
		claims jwt.MapClaims
		secret string
	}{
		{"wrong secret", jwt.MapClaims{"sub": "42", "iss": "windi", "exp": exp}, "other"},
		{"expired", jwt.MapClaims{"sub": "42", "iss": "windi", "exp": time.Now().Add(-time.Minute).Unix()}, testSecret},
		{"no exp", jwt.MapClaims{"sub": "42", "iss": "windi"}, testSecret},
		{"wrong issuer", jwt.MapClaims{"sub": "42", "iss": "other", "exp": exp}, testSecret},
		{"no user", jwt.MapClaims{"iss": "windi", "exp": exp}, testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), hmacToken(t, tt.claims, tt.secret))
			require.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestVerifyNumericUserClaim(t *testing.T) {
	v, err := New(Config{HMACSecretKey: testSecret, UserClaim: "user_id"})
	require.NoError(t, err)
	id, err := v.Verify(context.Background(), hmacToken(t, jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(time.Hour).Unix()}, testSecret))
	require.NoError(t, err)
	require.Equal(t, "7", id.User)
}

func TestAuthenticate(t *testing.T) {
	v, err := New(Config{HMACSecretKey: testSecret})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/token/connection", nil)
	_, err = v.Authenticate(r)
	require.ErrorIs(t, err, ErrUnauthorized)

	r.Header.Set("Authorization", "Basic abc")
	_, err = v.Authenticate(r)
	require.ErrorIs(t, err, ErrUnauthorized)

	r.Header.Set("Authorization", "Bearer "+hmacToken(t, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(time.Hour).Unix()}, testSecret))
	id, err := v.Authenticate(r)
	require.NoError(t, err)
	require.Equal(t, "1", id.User)
}

func jwksServer(t *testing.T, kid string, key *rsa.PublicKey, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/tenants/windi/keys" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		spec := jwk.NewSpecWithID(kid, key)
		spec.Use = "sig"
		data, err := json.Marshal(jwk.KeySpecSet{Keys: []jwk.KeySpec{*spec}})
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}))
}

func TestVerifyJWKS(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	var hits atomic.Int32
	ts := jwksServer(t, "k1", &priv.PublicKey, &hits)
	defer ts.Close()

	v, err := New(Config{JWKSPublicEndpoint: ts.URL + "/tenants/{{tenant}}/keys"})
	require.NoError(t, err)

	sign := func(kid string, claims jwt.MapClaims) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = kid
		s, err := tok.SignedString(priv)
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	id, err := v.Verify(context.Background(), sign("k1", jwt.MapClaims{"sub": "5", "tenant": "windi", "exp": exp}))
	require.NoError(t, err)
	require.Equal(t, "5", id.User)
	require.Equal(t, int32(1), hits.Load())

	// Cached key.
	_, err = v.Verify(context.Background(), sign("k1", jwt.MapClaims{"sub": "6", "tenant": "windi", "exp": exp}))
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	_, err = v.Verify(context.Background(), sign("k2", jwt.MapClaims{"sub": "5", "tenant": "windi", "exp": exp}))
	require.ErrorIs(t, err, ErrUnauthorized)

	// HMAC tokens are not accepted without secret.
	_, err = v.Verify(context.Background(), hmacToken(t, jwt.MapClaims{"sub": "5", "exp": exp}, testSecret))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestKeySourceErrors(t *testing.T) {
	var hits atomic.Int32
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ts := jwksServer(t, "k1", &priv.PublicKey, &hits)
	defer ts.Close()

	s, err := NewKeySource(ts.URL+"/missing", nil)
	require.NoError(t, err)
	_, err = s.Key(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrKeyIDNotProvided)
	_, err = s.Key(context.Background(), "k1", nil)
	require.ErrorIs(t, err, errUnexpectedStatusCode)
	require.Equal(t, int32(defaultKeyRetries), hits.Load())

	s, err = NewKeySource(ts.URL+"/tenants/windi/keys", nil)
	require.NoError(t, err)
	now := time.Now()
	s.now = func() time.Time { return now }
	_, err = s.Key(context.Background(), "k1", nil)
	require.NoError(t, err)
	hits.Store(0)
	now = now.Add(2 * defaultKeyTTL)
	_, err = s.Key(context.Background(), "k1", nil)
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())
}
