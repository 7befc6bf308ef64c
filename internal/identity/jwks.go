package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// KeySet is a remote JWKS document cached for TTL. An unknown kid forces a
// refresh, at most once per minRefresh.
type KeySet struct {
	URL string
	TTL time.Duration

	mu          sync.RWMutex
	set         jwk.Set
	fetchedAt   time.Time
	lastAttempt time.Time
}

const minRefresh = 30 * time.Second

func NewKeySet(url string, ttl time.Duration) *KeySet {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &KeySet{URL: url, TTL: ttl}
}

// PublicKey returns the raw public key for kid, suitable for jwt
// verification. An empty kid matches a set holding exactly one key.
func (k *KeySet) PublicKey(ctx context.Context, kid string) (any, error) {
	set, err := k.current(ctx, false)
	if err != nil {
		return nil, err
	}
	key, ok := lookup(set, kid)
	if !ok {
		if set, err = k.current(ctx, true); err != nil {
			return nil, err
		}
		if key, ok = lookup(set, kid); !ok {
			return nil, fmt.Errorf("no key %q in key set", kid)
		}
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("export key %q: %w", kid, err)
	}
	return raw, nil
}

func lookup(set jwk.Set, kid string) (jwk.Key, bool) {
	if kid == "" {
		if set.Len() != 1 {
			return nil, false
		}
		return set.Key(0)
	}
	return set.LookupKeyID(kid)
}

func (k *KeySet) current(ctx context.Context, force bool) (jwk.Set, error) {
	k.mu.RLock()
	set, fetchedAt, lastAttempt := k.set, k.fetchedAt, k.lastAttempt
	k.mu.RUnlock()

	fresh := set != nil && time.Since(fetchedAt) < k.TTL
	if fresh && !force {
		return set, nil
	}
	if set != nil && force && time.Since(lastAttempt) < minRefresh {
		return set, nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.lastAttempt = time.Now()
	fetched, err := jwk.Fetch(ctx, k.URL)
	if err != nil {
		if k.set != nil {
			slog.WarnContext(ctx, "jwks refresh failed, keeping previous keys", "url", k.URL, "err", err)
			return k.set, nil
		}
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	k.set = fetched
	k.fetchedAt = time.Now()
	slog.DebugContext(ctx, "jwks refreshed", "url", k.URL, "keys", fetched.Len())
	return fetched, nil
}
