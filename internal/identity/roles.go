package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/models"
	"github.com/diewo77/stockroom/internal/ownership"
)

// RoleResolver returns the role of the user behind verified claims.
type RoleResolver interface {
	Resolve(ctx context.Context, c *Claims) (ownership.Role, error)
}

// Invalidator drops a cached role so the next request re-reads it.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// UserStore reads roles from the users table. Unknown users are created
// with the USER role on first sight.
type UserStore struct {
	DB *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{DB: db}
}

func (s *UserStore) Resolve(ctx context.Context, c *Claims) (ownership.Role, error) {
	u := models.User{ID: c.Subject}
	err := s.DB.WithContext(ctx).
		Where(models.User{ID: c.Subject}).
		Attrs(models.User{Email: c.Email, Name: c.Name, Role: string(ownership.RoleUser)}).
		FirstOrCreate(&u).Error
	if err != nil {
		return "", fmt.Errorf("resolve user %s: %w", c.Subject, err)
	}
	return ownership.ParseRole(u.Role), nil
}

// Get returns the stored user.
func (s *UserStore) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Take(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// List returns users ordered by email.
func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.DB.WithContext(ctx).Order("email, id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SetRole changes a user's role. Callers must invalidate cached roles.
func (s *UserStore) SetRole(ctx context.Context, id string, role ownership.Role) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", string(role))
	if res.Error != nil {
		return fmt.Errorf("set role %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

// CachedResolver wraps a RoleResolver with TTL-based in-process caching.
type CachedResolver struct {
	inner RoleResolver
	cache map[string]*cacheEntry
	mu    sync.RWMutex
	ttl   time.Duration
}

type cacheEntry struct {
	role      ownership.Role
	expiresAt time.Time
}

func NewCachedResolver(inner RoleResolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: make(map[string]*cacheEntry),
		ttl:   ttl,
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, c *Claims) (ownership.Role, error) {
	r.mu.RLock()
	entry, ok := r.cache[c.Subject]
	r.mu.RUnlock()

	if ok && time.Now().Before(entry.expiresAt) {
		return entry.role, nil
	}

	role, err := r.inner.Resolve(ctx, c)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[c.Subject] = &cacheEntry{role: role, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()
	return role, nil
}

func (r *CachedResolver) Invalidate(_ context.Context, userID string) error {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
	return nil
}

// InvalidateAll clears the entire cache.
func (r *CachedResolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[string]*cacheEntry)
	r.mu.Unlock()
}

// RedisRoleCache shares cached roles between instances. Redis failures
// fall through to the inner resolver.
type RedisRoleCache struct {
	inner  RoleResolver
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisRoleCache(inner RoleResolver, client *redis.Client, ttl time.Duration) *RedisRoleCache {
	return &RedisRoleCache{inner: inner, client: client, ttl: ttl, prefix: "stockroom:role:"}
}

func (r *RedisRoleCache) key(userID string) string { return r.prefix + userID }

func (r *RedisRoleCache) Resolve(ctx context.Context, c *Claims) (ownership.Role, error) {
	val, err := r.client.Get(ctx, r.key(c.Subject)).Result()
	switch {
	case err == nil:
		return ownership.ParseRole(val), nil
	case !errors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "role cache read failed", "user", c.Subject, "err", err)
	}

	role, err := r.inner.Resolve(ctx, c)
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, r.key(c.Subject), string(role), r.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "role cache write failed", "user", c.Subject, "err", err)
	}
	return role, nil
}

func (r *RedisRoleCache) Invalidate(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate role %s: %w", userID, err)
	}
	return nil
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
