// Package identity turns a bearer token into an ownership.Subject: it
// verifies the token, provisions the user row on first sight and resolves
// the role through a cache.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the part of a verified token the service uses.
type Claims struct {
	Subject string
	Email   string
	Name    string
}

// Verifier checks a raw token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens signed with Secret and RS256/ES256
// tokens signed by a key in Keys. Either may be unset.
type JWTVerifier struct {
	Secret   []byte
	Keys     *KeySet
	Issuer   string
	Audience string
}

func (v *JWTVerifier) methods() []string {
	var m []string
	if len(v.Secret) > 0 {
		m = append(m, jwt.SigningMethodHS256.Alg())
	}
	if v.Keys != nil {
		m = append(m, jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg())
	}
	return m
}

func (v *JWTVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods()),
		jwt.WithExpirationRequired(),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(raw, &tc, func(t *jwt.Token) (any, error) {
		return v.key(ctx, t)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if tc.Subject == "" {
		return nil, errors.New("verify token: missing sub claim")
	}
	return &Claims{Subject: tc.Subject, Email: tc.Email, Name: tc.Name}, nil
}

func (v *JWTVerifier) key(ctx context.Context, t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(v.Secret) == 0 {
			return nil, errors.New("shared-secret tokens are not accepted")
		}
		return v.Secret, nil
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		if v.Keys == nil {
			return nil, errors.New("no key set configured")
		}
		kid, _ := t.Header["kid"].(string)
		return v.Keys.PublicKey(ctx, kid)
	}
	return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
}
