package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/storage"
)

// ErrRedisUnavailable is returned, wrapped, for every Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Keys never live shorter than this, so a session created already expired
// stays visible to DeleteExpired.
const minTTL = time.Second

const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
redis.call("ZADD", KEYS[3], ARGV[4], ARGV[3])
return 1
`

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
redis.call("ZREM", KEYS[3], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var (
	createSessionLua = redis.NewScript(createSessionScript)
	deleteSessionLua = redis.NewScript(deleteSessionScript)
)

// SessionStore is a Redis-backed storage.SessionStore. Each session is a
// JSON value under "<prefix>:s:<id>" whose TTL tracks ExpiresAt. A set per
// user and a sorted set of expiry times index the keys.
type SessionStore struct {
	redis  redis.UniversalClient
	prefix string

	mu  sync.RWMutex
	now func() time.Time
}

var _ storage.SessionStore = (*SessionStore)(nil)

// NewSessionStore returns a session store on client. prefix defaults to
// "gs".
func NewSessionStore(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "gs"
	}
	return &SessionStore{redis: client, prefix: prefix, now: time.Now}
}

// SetClock overrides the clock used to derive key TTLs from ExpiresAt.
func (s *SessionStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	s.now = now
}

func (s *SessionStore) clock() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

func (s *SessionStore) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *SessionStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

func (s *SessionStore) expiryKey() string {
	return s.prefix + ":exp"
}

func (s *SessionStore) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(s.clock())
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

// Create stores sess. An existing ID yields storage.ErrConflict.
func (s *SessionStore) Create(ctx context.Context, sess *storage.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	created, err := createSessionLua.Run(ctx, s.redis,
		[]string{s.key(sess.ID), s.userKey(sess.UserID), s.expiryKey()},
		data,
		s.ttl(sess.ExpiresAt).Milliseconds(),
		sess.ID,
		sess.ExpiresAt.UnixMilli(),
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if created == 0 {
		return storage.ErrConflict
	}
	return nil
}

// FindByID returns the session or storage.ErrNotFound.
func (s *SessionStore) FindByID(ctx context.Context, id string) (*storage.Session, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, unavailable(err)
	}
	return decode(data)
}

// FindByUserID returns the user's sessions ordered by creation. Index
// entries whose key has already expired are pruned.
func (s *SessionStore) FindByUserID(ctx context.Context, userID string) ([]*storage.Session, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return []*storage.Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	out := make([]*storage.Session, 0, len(ids))
	var stale []any
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			stale = append(stale, ids[i])
			continue
		}
		if err != nil {
			return nil, unavailable(err)
		}
		sess, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}

	if len(stale) > 0 {
		if _, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SRem(ctx, userKey, stale...)
			pipe.ZRem(ctx, s.expiryKey(), stale...)
			return nil
		}); err != nil {
			return nil, unavailable(err)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateLastAccessed rewrites the stored value and keeps its TTL.
func (s *SessionStore) UpdateLastAccessed(ctx context.Context, id string, at time.Time) error {
	sess, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	sess.LastAccessedAt = at

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	err = s.redis.SetArgs(ctx, s.key(id), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return storage.ErrNotFound
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete removes one session and its index entries.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	sess, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	existed, err := deleteSessionLua.Run(ctx, s.redis,
		[]string{s.key(id), s.userKey(sess.UserID), s.expiryKey()},
		id,
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if existed == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteByUserID removes every session of userID and reports how many
// still existed.
//
// The index is read before the delete, so a session created concurrently
// may survive the call.
func (s *SessionStore) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
		members[i] = id
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.Del(ctx, userKey)
		pipe.ZRem(ctx, s.expiryKey(), members...)
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return int(deleted.Val()), nil
}

// DeleteExpired removes sessions whose ExpiresAt is at or before now,
// using the expiry index rather than Redis key expiry.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.redis.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, unavailable(err)
	}

	var n int
	for _, id := range ids {
		data, err := s.redis.Get(ctx, s.key(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			if err := s.redis.ZRem(ctx, s.expiryKey(), id).Err(); err != nil {
				return n, unavailable(err)
			}
			continue
		}
		if err != nil {
			return n, unavailable(err)
		}
		sess, err := decode(data)
		if err != nil {
			return n, err
		}
		existed, err := deleteSessionLua.Run(ctx, s.redis,
			[]string{s.key(id), s.userKey(sess.UserID), s.expiryKey()},
			id,
		).Int64()
		if err != nil {
			return n, unavailable(err)
		}
		n += int(existed)
	}
	return n, nil
}

// Ping reports the round-trip time to Redis.
func (s *SessionStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, unavailable(err)
	}
	return time.Since(start), nil
}

func decode(data []byte) (*storage.Session, error) {
	var sess storage.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}
