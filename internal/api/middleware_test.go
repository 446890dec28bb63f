package api

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testKid = "test-key-1"

// newJWKSServer serves a single-key JWKS for the given RSA key.
func newJWKSServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()
	pub := key.Public().(*rsa.PublicKey)
	eBytes := big.NewInt(int64(pub.E)).Bytes()
	jwks := map[string]any{
		"keys": []map[string]string{{
			"kid": testKid,
			"kty": "RSA",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(eBytes),
		}},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)
	return server
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestAuthMiddleware_ClaimEnforcement(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	jwksServer := newJWKSServer(t, key)

	tests := []struct {
		name       string
		auth       AuthOptions
		claims     jwt.MapClaims
		wantStatus int
		wantOwner  string
	}{
		{
			name:       "valid token with matching audience and issuer",
			auth:       AuthOptions{JWKSURL: jwksServer.URL, Audience: "wallet-service", Issuer: "https://id.example.com/"},
			claims:     jwt.MapClaims{"sub": "owner-1", "aud": "wallet-service", "iss": "https://id.example.com/"},
			wantStatus: http.StatusOK,
			wantOwner:  "owner-1",
		},
		{
			name:       "audience mismatch is rejected",
			auth:       AuthOptions{JWKSURL: jwksServer.URL, Audience: "wallet-service"},
			claims:     jwt.MapClaims{"sub": "owner-1", "aud": "other-service"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing audience claim is rejected when configured",
			auth:       AuthOptions{JWKSURL: jwksServer.URL, Audience: "wallet-service"},
			claims:     jwt.MapClaims{"sub": "owner-1"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "issuer mismatch is rejected",
			auth:       AuthOptions{JWKSURL: jwksServer.URL, Issuer: "https://id.example.com/"},
			claims:     jwt.MapClaims{"sub": "owner-1", "iss": "https://evil.example.com/"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unconfigured audience and issuer are not enforced",
			auth:       AuthOptions{JWKSURL: jwksServer.URL},
			claims:     jwt.MapClaims{"sub": "owner-2", "aud": "anything", "iss": "anywhere"},
			wantStatus: http.StatusOK,
			wantOwner:  "owner-2",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotOwner string
			handler := AuthMiddleware(tc.auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotOwner, _ = GetOwnerID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", signToken(t, key, tc.claims)))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if tc.wantStatus == http.StatusOK && gotOwner != tc.wantOwner {
				t.Fatalf("expected owner %q on context, got %q", tc.wantOwner, gotOwner)
			}
		})
	}
}

func TestAuthMiddleware_RejectsMissingBearer(t *testing.T) {
	handler := AuthMiddleware(AuthOptions{JWKSURL: "http://unused"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without Authorization header, got %d", rec.Code)
	}
}
