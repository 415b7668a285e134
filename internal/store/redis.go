package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionTTL = 30 * time.Minute

// RedisStore keeps markers in Redis, namespaced per visitor. Session-scoped
// markers carry a TTL that is refreshed on every write, so an idle visitor's
// session markers expire the way sessionStorage does when the tab closes.
type RedisStore struct {
	redis      *redis.Client
	namespace  string
	visitorID  string
	sessionTTL time.Duration
}

// NewRedisStore creates a marker store for one visitor.
func NewRedisStore(redisClient *redis.Client, namespace, visitorID string, sessionTTL time.Duration) *RedisStore {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	if namespace == "" {
		namespace = "wavebox"
	}
	return &RedisStore{
		redis:      redisClient,
		namespace:  namespace,
		visitorID:  visitorID,
		sessionTTL: sessionTTL,
	}
}

func (s *RedisStore) key(scope Scope, key string) string {
	tag := "p"
	if scope == ScopeSession {
		tag = "s"
	}
	return fmt.Sprintf("%s:marker:%s:%s:%s", s.namespace, s.visitorID, tag, key)
}

// Get returns the marker value and whether it exists.
func (s *RedisStore) Get(ctx context.Context, scope Scope, key string) (string, bool, error) {
	value, err := s.redis.Get(ctx, s.key(scope, key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get %s marker %q: %w", scope, key, err)
	}
	return value, true, nil
}

// Set stores a marker value. Session markers expire after the session TTL.
func (s *RedisStore) Set(ctx context.Context, scope Scope, key, value string) error {
	var ttl time.Duration
	if scope == ScopeSession {
		ttl = s.sessionTTL
	}
	if err := s.redis.Set(ctx, s.key(scope, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("store: set %s marker %q: %w", scope, key, err)
	}
	return nil
}

// Delete removes a marker.
func (s *RedisStore) Delete(ctx context.Context, scope Scope, key string) error {
	if err := s.redis.Del(ctx, s.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("store: delete %s marker %q: %w", scope, key, err)
	}
	return nil
}

var _ MarkerStore = (*RedisStore)(nil)
