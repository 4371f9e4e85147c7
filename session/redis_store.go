package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusRevoked  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

// KEYS: record, refresh index, access index, user set.
// ARGV: id, expire-at ms (0 = none), field/value pairs...
const createTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV, 3))
redis.call("SET", KEYS[2], ARGV[1])
redis.call("SET", KEYS[3], ARGV[1])
redis.call("SADD", KEYS[4], ARGV[1])
local at = tonumber(ARGV[2])
if at > 0 then
  redis.call("PEXPIREAT", KEYS[1], at)
  redis.call("PEXPIREAT", KEYS[2], at)
  redis.call("PEXPIREAT", KEYS[3], at)
end
return 1
`

var createTokenLua = redis.NewScript(createTokenScript)

// KEYS: record, old refresh index, new refresh index, old access index, new access index.
// ARGV: expected refresh, id, token, refresh, exp ns, rexp ns, expire-at ms.
const rotateTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "refresh") ~= ARGV[1] then
  return 2
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 1
end
redis.call("HSET", KEYS[1], "token", ARGV[3], "refresh", ARGV[4], "exp", ARGV[5], "rexp", ARGV[6])
redis.call("DEL", KEYS[2], KEYS[4])
redis.call("SET", KEYS[3], ARGV[2])
redis.call("SET", KEYS[5], ARGV[2])
local at = tonumber(ARGV[7])
if at > 0 then
  redis.call("PEXPIREAT", KEYS[1], at)
  redis.call("PEXPIREAT", KEYS[3], at)
  redis.call("PEXPIREAT", KEYS[5], at)
end
return 3
`

var rotateTokenLua = redis.NewScript(rotateTokenScript)

const revokeTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1")
return 1
`

var revokeTokenLua = redis.NewScript(revokeTokenScript)

// RedisStore is a Redis-backed [Store].
//
// Each session is a HASH at <prefix>:tok:<id>. Lookup indexes map the
// fingerprint of the bearer and refresh values to the id, and a SET per
// user tracks that user's session ids. Records carry no TTL unless a
// retention window is configured, in which case they expire that long
// after their refresh window closes.
//
//	Performance: reads are 2 round trips (index GET + HGETALL); Rotate is 1 HGETALL + 1 EVALSHA.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore creates a [RedisStore] under the given key prefix.
func NewRedisStore(rdb redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "shop"
	}
	return &RedisStore{redis: rdb, prefix: prefix, retention: retention}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":tok:" + id
}

func (s *RedisStore) refreshKey(refreshToken string) string {
	return s.prefix + ":rt:" + Fingerprint(refreshToken)
}

func (s *RedisStore) accessKey(token string) string {
	return s.prefix + ":at:" + Fingerprint(token)
}

func (s *RedisStore) userKey(userID int64) string {
	return s.prefix + ":usr:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) expireAtMillis(refreshExpiration time.Time) int64 {
	if s.retention <= 0 {
		return 0
	}
	return refreshExpiration.Add(s.retention).UnixMilli()
}

// Create persists a new record and its indexes atomically.
func (s *RedisStore) Create(ctx context.Context, t *Token) error {
	if t == nil || t.ID == "" {
		return errors.New("session id is required")
	}

	args := []interface{}{t.ID, s.expireAtMillis(t.RefreshExpirationDate)}
	args = append(args, encodeFields(t)...)

	res, err := createTokenLua.Run(
		ctx,
		s.redis,
		[]string{s.key(t.ID), s.refreshKey(t.RefreshToken), s.accessKey(t.Token), s.userKey(t.UserID)},
		args...,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetByID loads a record by id.
func (s *RedisStore) GetByID(ctx context.Context, id string) (*Token, error) {
	m, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return decodeFields(id, m)
}

// GetByToken resolves a record through the bearer-token index.
func (s *RedisStore) GetByToken(ctx context.Context, token string) (*Token, error) {
	t, err := s.resolve(ctx, s.accessKey(token))
	if err != nil {
		return nil, err
	}
	if t.Token != token {
		return nil, ErrNotFound
	}
	return t, nil
}

// GetByRefreshToken resolves a record through the refresh-token index.
// A refresh value that has been rotated away reports [ErrNotFound].
func (s *RedisStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	t, err := s.resolve(ctx, s.refreshKey(refreshToken))
	if err != nil {
		return nil, err
	}
	if t.RefreshToken != refreshToken {
		return nil, ErrNotFound
	}
	return t, nil
}

// resolve follows an index key to its record. Indexes left behind by a
// concurrent delete resolve to ErrNotFound.
func (s *RedisStore) resolve(ctx context.Context, indexKey string) (*Token, error) {
	id, err := s.redis.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.GetByID(ctx, id)
}

// Rotate installs next on record id if its refresh token still equals
// expectedRefresh.
func (s *RedisStore) Rotate(ctx context.Context, id, expectedRefresh string, next Rotation) (*Token, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.RefreshToken != expectedRefresh {
		return nil, ErrConflict
	}

	code, err := rotateTokenLua.Run(
		ctx,
		s.redis,
		[]string{
			s.key(id),
			s.refreshKey(expectedRefresh),
			s.refreshKey(next.RefreshToken),
			s.accessKey(current.Token),
			s.accessKey(next.Token),
		},
		expectedRefresh,
		id,
		next.Token,
		next.RefreshToken,
		formatInstant(next.ExpirationDate),
		formatInstant(next.RefreshExpirationDate),
		s.expireAtMillis(next.RefreshExpirationDate),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, ErrNotFound
	case rotateStatusRevoked:
		return nil, ErrRevoked
	case rotateStatusMismatch:
		return nil, ErrConflict
	case rotateStatusRotated:
		return current.Apply(next), nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status %d", ErrUnavailable, code)
	}
}

// Revoke marks record id revoked.
func (s *RedisStore) Revoke(ctx context.Context, id string) error {
	res, err := revokeTokenLua.Run(ctx, s.redis, []string{s.key(id)}).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes record id with its indexes. Deleting a missing record is
// not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	t, err := s.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		if t != nil {
			pipe.Del(ctx, s.refreshKey(t.RefreshToken), s.accessKey(t.Token))
			pipe.SRem(ctx, s.userKey(t.UserID), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ListByUser returns the user's sessions ordered by creation time. Ids whose
// record has expired out of Redis are pruned from the user set.
func (s *RedisStore) ListByUser(ctx context.Context, userID int64) ([]*Token, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make([]*Token, 0, len(ids))
	var stale []interface{}
	for _, id := range ids {
		t, err := s.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// EstimateActiveSessions counts session records under the prefix.
//
//	Performance: O(N) SCAN over the keyspace.
func (s *RedisStore) EstimateActiveSessions(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	pattern := s.prefix + ":tok:*"
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}
