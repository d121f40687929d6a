package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocationStore shares revocations between server instances. Keys
// expire together with the tokens they describe.
type RedisRevocationStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRevocationStore(rdb *redis.Client, prefix string) *RedisRevocationStore {
	if prefix == "" {
		prefix = "hms:revoked"
	}
	return &RedisRevocationStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisRevocationStore) tokenKey(jti string) string { return s.prefix + ":jti:" + jti }

func (s *RedisRevocationStore) userKey(userID string) string { return s.prefix + ":user:" + userID }

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, s.tokenKey(jti), "1", ttl).Err()
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.tokenKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) RevokeUser(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.userKey(userID), strconv.FormatInt(at.UnixNano(), 10), ttl).Err()
}

func (s *RedisRevocationStore) UserRevokedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	v, err := s.rdb.Get(ctx, s.userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	nanos, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, nanos), true, nil
}
