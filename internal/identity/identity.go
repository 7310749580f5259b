// Package identity resolves the caller of a request from a bearer token.
package identity

import (
	"context"
	"crypto/rsa"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PbVrCt/serverless-chat-demo/internal/config"
	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

// fallbackDisplayNameClaims are tried, in order, when the configured display
// name claim is absent.
var fallbackDisplayNameClaims = []string{"preferred_username", "name", "email"}

// Identity is a resolved caller. TenantID partitions message visibility.
type Identity struct {
	TenantID    string
	DisplayName string
}

// Resolver turns a raw bearer token into an Identity. Every failure is
// errs.ErrIdentityResolutionFailed.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Options controls claim validation and mapping.
type Options struct {
	Issuer           string
	Audience         string
	TenantClaim      string
	DisplayNameClaim string
}

// JWTResolver verifies signed JWTs with a single key.
type JWTResolver struct {
	method string
	key    any
	opts   Options
}

// NewJWTResolver creates a resolver for tokens signed with method ("HS256"
// with a []byte secret, "RS256" with an *rsa.PublicKey).
func NewJWTResolver(method string, key any, opts Options) (*JWTResolver, error) {
	switch method {
	case jwt.SigningMethodHS256.Alg():
		if k, ok := key.([]byte); !ok || len(k) == 0 {
			return nil, errs.NewConfigError("HS256 requires a non-empty shared secret", nil)
		}
	case jwt.SigningMethodRS256.Alg():
		if _, ok := key.(*rsa.PublicKey); !ok {
			return nil, errs.NewConfigError("RS256 requires an RSA public key", nil)
		}
	default:
		return nil, errs.NewConfigError(fmt.Sprintf("unsupported signing method %q", method), nil)
	}

	if opts.TenantClaim == "" {
		opts.TenantClaim = "sub"
	}
	return &JWTResolver{method: method, key: key, opts: opts}, nil
}

// NewResolver builds a JWTResolver from the auth configuration, loading the
// RSA public key from disk when needed.
func NewResolver(cfg config.AuthConfig) (*JWTResolver, error) {
	opts := Options{
		Issuer:           cfg.Issuer,
		Audience:         cfg.Audience,
		TenantClaim:      cfg.TenantClaim,
		DisplayNameClaim: cfg.DisplayNameClaim,
	}

	if cfg.SigningMethod == jwt.SigningMethodHS256.Alg() {
		return NewJWTResolver(cfg.SigningMethod, []byte(cfg.HMACSecret), opts)
	}

	pem, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, errs.NewConfigError("failed to read public key file", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, errs.NewConfigError("failed to parse public key", err)
	}
	return NewJWTResolver(cfg.SigningMethod, key, opts)
}

// Resolve verifies token and maps its claims to an Identity.
func (r *JWTResolver) Resolve(_ context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, errs.NewIdentityError("missing bearer token", nil)
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{r.method})}
	if r.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(r.opts.Issuer))
	}
	if r.opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(r.opts.Audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return r.key, nil
	}, parserOpts...)
	if err != nil {
		return Identity{}, errs.NewIdentityError("invalid token", err)
	}

	return FromClaims(claims, r.opts.TenantClaim, r.opts.DisplayNameClaim)
}

// FromClaims maps verified claims to an Identity. The tenant id is the
// tenant claim; the display name is the first non-empty of the display name
// claim, preferred_username, name, email and finally the tenant id.
func FromClaims(claims jwt.MapClaims, tenantClaim, displayNameClaim string) (Identity, error) {
	tenantID := stringClaim(claims, tenantClaim)
	if tenantID == "" {
		return Identity{}, errs.NewIdentityError(fmt.Sprintf("token has no %s claim", tenantClaim), nil)
	}

	candidates := append([]string{displayNameClaim}, fallbackDisplayNameClaims...)
	displayName := tenantID
	for _, claim := range candidates {
		if v := stringClaim(claims, claim); v != "" {
			displayName = v
			break
		}
	}

	return Identity{TenantID: tenantID, DisplayName: displayName}, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if name == "" {
		return ""
	}
	v, _ := claims[name].(string)
	return strings.TrimSpace(v)
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the Identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
