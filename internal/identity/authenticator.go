package identity

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/stockroom/internal/config"
	"github.com/diewo77/stockroom/internal/ownership"
)

// Authenticator builds the request subject from a bearer token.
type Authenticator struct {
	Verifier Verifier
	Roles    RoleResolver
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (*ownership.Subject, error) {
	c, err := a.Verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	role, err := a.Roles.Resolve(ctx, c)
	if err != nil {
		return nil, err
	}
	return &ownership.Subject{ID: c.Subject, Role: role}, nil
}

// Stack is the wired identity layer.
type Stack struct {
	Authenticator *Authenticator
	Users         *UserStore
	// Cache is the role cache to invalidate on role changes.
	Cache Invalidator
}

// New wires the identity layer from configuration. Roles are cached in
// redis when cacheCfg.RedisURL is set, in process otherwise.
func New(db *gorm.DB, authCfg config.AuthConfig, cacheCfg config.CacheConfig) (*Stack, error) {
	v := &JWTVerifier{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.Issuer,
		Audience: authCfg.Audience,
	}
	if authCfg.JWKSURL != "" {
		v.Keys = NewKeySet(authCfg.JWKSURL, time.Hour)
	}

	users := NewUserStore(db)
	var roles interface {
		RoleResolver
		Invalidator
	}
	if cacheCfg.RedisURL != "" {
		client, err := NewRedisClient(cacheCfg.RedisURL)
		if err != nil {
			return nil, err
		}
		roles = NewRedisRoleCache(users, client, cacheCfg.RoleTTL)
	} else {
		roles = NewCachedResolver(users, cacheCfg.RoleTTL)
	}

	return &Stack{
		Authenticator: &Authenticator{Verifier: v, Roles: roles},
		Users:         users,
		Cache:         roles,
	}, nil
}
