package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PbVrCt/serverless-chat-demo/internal/config"
	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

var testSecret = []byte("test-shared-secret")

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestJWTResolverHS256(t *testing.T) {
	t.Parallel()

	r, err := NewJWTResolver("HS256", testSecret, Options{
		Issuer:           "https://issuer.example",
		Audience:         "chat-client",
		TenantClaim:      "sub",
		DisplayNameClaim: "cognito:username",
	})
	if err != nil {
		t.Fatalf("NewJWTResolver() error = %v", err)
	}

	valid := jwt.MapClaims{
		"sub":              "tenant-a",
		"cognito:username": "alice",
		"iss":              "https://issuer.example",
		"aud":              "chat-client",
		"exp":              time.Now().Add(time.Hour).Unix(),
	}
	with := func(k string, v any) jwt.MapClaims {
		c := jwt.MapClaims{}
		for key, val := range valid {
			c[key] = val
		}
		if v == nil {
			delete(c, k)
		} else {
			c[k] = v
		}
		return c
	}

	tests := []struct {
		name    string
		token   string
		want    Identity
		wantErr bool
	}{
		{
			name:  "valid token",
			token: sign(t, jwt.SigningMethodHS256, testSecret, valid),
			want:  Identity{TenantID: "tenant-a", DisplayName: "alice"},
		},
		{
			name:    "empty token",
			token:   "  ",
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not.a.jwt",
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   sign(t, jwt.SigningMethodHS256, []byte("other"), valid),
			wantErr: true,
		},
		{
			name:    "expired",
			token:   sign(t, jwt.SigningMethodHS256, testSecret, with("exp", time.Now().Add(-time.Hour).Unix())),
			wantErr: true,
		},
		{
			name:    "wrong issuer",
			token:   sign(t, jwt.SigningMethodHS256, testSecret, with("iss", "https://evil.example")),
			wantErr: true,
		},
		{
			name:    "wrong audience",
			token:   sign(t, jwt.SigningMethodHS256, testSecret, with("aud", "someone-else")),
			wantErr: true,
		},
		{
			name:    "missing subject",
			token:   sign(t, jwt.SigningMethodHS256, testSecret, with("sub", nil)),
			wantErr: true,
		},
		{
			name:    "algorithm not allowed",
			token:   sign(t, jwt.SigningMethodHS384, testSecret, valid),
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := r.Resolve(context.Background(), tc.token)
			if tc.wantErr {
				if !errors.Is(err, errs.ErrIdentityResolutionFailed) {
					t.Errorf("Resolve() error = %v, want ErrIdentityResolutionFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestNewResolverRS256FromPEM(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "public.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	r, err := NewResolver(config.AuthConfig{
		SigningMethod:    "RS256",
		PublicKeyPath:    path,
		TenantClaim:      "sub",
		DisplayNameClaim: "cognito:username",
	})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	token := sign(t, jwt.SigningMethodRS256, key, jwt.MapClaims{"sub": "tenant-b", "email": "bob@example.com"})
	got, err := r.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := (Identity{TenantID: "tenant-b", DisplayName: "bob@example.com"}); got != want {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}

	// An HS256 token must not pass an RS256 resolver.
	forged := sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "tenant-b"})
	if _, err := r.Resolve(context.Background(), forged); !errors.Is(err, errs.ErrIdentityResolutionFailed) {
		t.Errorf("Resolve(forged) error = %v, want ErrIdentityResolutionFailed", err)
	}
}

func TestNewResolverErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.AuthConfig
	}{
		{"missing key file", config.AuthConfig{SigningMethod: "RS256", PublicKeyPath: "/nonexistent/key.pem"}},
		{"empty hmac secret", config.AuthConfig{SigningMethod: "HS256"}},
	}
	for _, tc := range tests {
		if _, err := NewResolver(tc.cfg); !errors.Is(err, errs.ErrConfig) {
			t.Errorf("%s: NewResolver() error = %v, want ErrConfig", tc.name, err)
		}
	}

	if _, err := NewJWTResolver("none", nil, Options{}); !errors.Is(err, errs.ErrConfig) {
		t.Errorf("NewJWTResolver(none) error = %v, want ErrConfig", err)
	}
}

func TestFromClaimsDisplayNameFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"configured claim", jwt.MapClaims{"sub": "t", "cognito:username": "cu", "name": "n"}, "cu"},
		{"preferred username", jwt.MapClaims{"sub": "t", "preferred_username": "pu", "name": "n"}, "pu"},
		{"name", jwt.MapClaims{"sub": "t", "name": "n", "email": "e"}, "n"},
		{"email", jwt.MapClaims{"sub": "t", "email": "e"}, "e"},
		{"blank values skipped", jwt.MapClaims{"sub": "t", "cognito:username": " ", "email": "e"}, "e"},
		{"subject as last resort", jwt.MapClaims{"sub": "t"}, "t"},
	}

	for _, tc := range tests {
		got, err := FromClaims(tc.claims, "sub", "cognito:username")
		if err != nil {
			t.Errorf("%s: FromClaims() error = %v", tc.name, err)
			continue
		}
		if got.DisplayName != tc.want || got.TenantID != "t" {
			t.Errorf("%s: FromClaims() = %+v, want display name %q", tc.name, got, tc.want)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext() on empty context reported an identity")
	}

	id := Identity{TenantID: "a", DisplayName: "Alice"}
	got, ok := FromContext(WithIdentity(context.Background(), id))
	if !ok || got != id {
		t.Errorf("FromContext() = (%+v, %v), want (%+v, true)", got, ok, id)
	}
}
