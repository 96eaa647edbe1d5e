package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
)

const (
	testAudience = "https://fulfillment.example.com"
	testIssuer   = "https://accounts.google.com"
)

type oidcFixture struct {
	validator *OIDCValidator
	requests  *atomic.Int32
	key       *rsa.PrivateKey
}

func newOIDCFixture(t *testing.T) oidcFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwk := jose.JSONWebKey{
		Key:       &key.PublicKey,
		KeyID:     "svc-key",
		Algorithm: jwt.SigningMethodRS256.Alg(),
		Use:       "sig",
	}

	requests := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(server.Close)

	return oidcFixture{
		validator: NewOIDCValidator(NewJWKSCache(server.URL)),
		requests:  requests,
		key:       key,
	}
}

func (f oidcFixture) sign(t *testing.T, mutate func(jwt.MapClaims)) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"aud":   testAudience,
		"iss":   testIssuer,
		"sub":   "1234567890",
		"email": "scheduler@project.iam.gserviceaccount.com",
		"exp":   now.Add(time.Hour).Unix(),
		"iat":   now.Unix(),
	}
	if mutate != nil {
		mutate(claims)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "svc-key"
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func serveOIDC(mw func(http.Handler) http.Handler, token string, next http.HandlerFunc) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/orders/o-1:recompute", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	mw(next).ServeHTTP(rr, req)
	return rr
}

func TestJWKSCacheReusesKeysUntilExpiry(t *testing.T) {
	f := newOIDCFixture(t)
	now := time.Unix(1_000_000, 0)
	cache := f.validator.cache
	cache.now = func() time.Time { return now }

	if _, err := cache.Key(context.Background(), "svc-key"); err != nil {
		t.Fatalf("Key: %v", err)
	}
	if _, err := cache.Key(context.Background(), "svc-key"); err != nil {
		t.Fatalf("Key second call: %v", err)
	}
	if got := f.requests.Load(); got != 1 {
		t.Fatalf("expected single fetch, got %d", got)
	}

	now = now.Add(11 * time.Minute)
	if _, err := cache.Key(context.Background(), "svc-key"); err != nil {
		t.Fatalf("Key after expiry: %v", err)
	}
	if got := f.requests.Load(); got != 2 {
		t.Fatalf("expected refresh after max-age, got %d fetches", got)
	}
}

func TestJWKSCacheUnknownKid(t *testing.T) {
	f := newOIDCFixture(t)
	_, err := f.validator.cache.Key(context.Background(), "rotated")
	if !errors.Is(err, ErrJWKSKeyNotFound) {
		t.Fatalf("expected ErrJWKSKeyNotFound, got %v", err)
	}
}

func TestRequireOIDC_Success(t *testing.T) {
	f := newOIDCFixture(t)
	token := f.sign(t, nil)

	rr := serveOIDC(f.validator.RequireOIDC(testAudience, []string{testIssuer}), token, func(w http.ResponseWriter, r *http.Request) {
		identity, ok := ServiceIdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("expected service identity in context")
		}
		if identity.Email != "scheduler@project.iam.gserviceaccount.com" {
			t.Fatalf("unexpected identity %+v", identity)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRequireOIDC_Rejections(t *testing.T) {
	f := newOIDCFixture(t)

	cases := []struct {
		name     string
		audience string
		token    string
		want     int
	}{
		{name: "missing token", audience: testAudience, want: http.StatusUnauthorized},
		{name: "audience mismatch", audience: "https://other.example.com", token: f.sign(t, nil), want: http.StatusUnauthorized},
		{name: "issuer mismatch", audience: testAudience, token: f.sign(t, func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }), want: http.StatusUnauthorized},
		{name: "expired", audience: testAudience, token: f.sign(t, func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }), want: http.StatusUnauthorized},
		{name: "audience not configured", audience: "", token: f.sign(t, nil), want: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serveOIDC(f.validator.RequireOIDC(tc.audience, []string{testIssuer}), tc.token, func(http.ResponseWriter, *http.Request) {
				t.Fatalf("handler should not be called")
			})
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestRequireOIDC_JWKSUnavailable(t *testing.T) {
	f := newOIDCFixture(t)
	token := f.sign(t, nil)
	f.validator.cache.url = "http://127.0.0.1:1/unreachable"

	rr := serveOIDC(f.validator.RequireOIDC(testAudience, []string{testIssuer}), token, func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
