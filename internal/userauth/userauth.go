// Package userauth verifies access tokens of the messenger backend which
// clients present to exchange for connection tokens and subscription proofs.
package userauth

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/windi-messenger/chathub/internal/configtypes"
)

var (
	// ErrUnauthorized returned for missing, malformed or invalid access token.
	ErrUnauthorized = errors.New("unauthorized")
)

type Config = configtypes.UserAuth

// Identity of authenticated user.
type Identity struct {
	User string
	Name string
}

// Verifier checks access tokens signed either with shared HMAC secret or
// with keys from JWKS endpoint.
type Verifier struct {
	config  Config
	keys    *KeySource
	options []jwt.ParserOption
}

// New creates Verifier. At least one of HMAC secret and JWKS endpoint required.
func New(config Config) (*Verifier, error) {
	if config.HMACSecretKey == "" && config.JWKSPublicEndpoint == "" {
		return nil, errors.New("user auth requires hmac_secret_key or jwks_public_endpoint")
	}
	if config.UserClaim == "" {
		config.UserClaim = "sub"
	}
	v := &Verifier{config: config}
	methods := []string{}
	if config.HMACSecretKey != "" {
		methods = append(methods, "HS256", "HS384", "HS512")
	}
	if config.JWKSPublicEndpoint != "" {
		keys, err := NewKeySource(config.JWKSPublicEndpoint, nil)
		if err != nil {
			return nil, err
		}
		v.keys = keys
		methods = append(methods, "RS256", "RS384", "RS512", "ES256", "ES384", "ES512")
	}
	v.options = []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if config.Issuer != "" {
		v.options = append(v.options, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		v.options = append(v.options, jwt.WithAudience(config.Audience))
	}
	return v, nil
}

// Authenticate extracts Bearer token from request.
func (v *Verifier) Authenticate(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return Identity{}, fmt.Errorf("%w: bearer token required", ErrUnauthorized)
	}
	return v.Verify(r.Context(), strings.TrimSpace(token))
}

// Verify access token.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.key(ctx, t)
	}, v.options...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	user := claimString(claims[v.config.UserClaim])
	if user == "" {
		return Identity{}, fmt.Errorf("%w: no %s claim", ErrUnauthorized, v.config.UserClaim)
	}
	return Identity{User: user, Name: claimString(claims[v.config.NameClaim])}, nil
}

func (v *Verifier) key(ctx context.Context, t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return []byte(v.config.HMACSecretKey), nil
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		kid, _ := t.Header["kid"].(string)
		vars := map[string]any{}
		if claims, ok := t.Claims.(jwt.MapClaims); ok {
			for k, val := range claims {
				if s, ok := val.(string); ok {
					vars[k] = s
				}
			}
		}
		key, err := v.keys.Key(ctx, kid, vars)
		if err != nil {
			return nil, err
		}
		switch key.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey:
			return key, nil
		}
		return nil, fmt.Errorf("unsupported key type %T", key)
	}
	return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
}

// User IDs are numeric in messenger backend tokens, both forms are accepted.
func claimString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	}
	return ""
}
