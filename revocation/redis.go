package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	minKeyTTL       = time.Second
	purgeBatchLimit = 500
)

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "sub", ARGV[2], "typ", ARGV[3], "rat", ARGV[4], "exp", ARGV[5], "rsn", ARGV[6])
redis.call("PEXPIRE", KEYS[1], ARGV[7])
redis.call("SADD", KEYS[2], ARGV[1])
if redis.call("PTTL", KEYS[2]) < tonumber(ARGV[7]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[7])
end
redis.call("ZADD", KEYS[3], ARGV[5], ARGV[8])
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// Expiry index members are "<len(subject)>:<subject><id>" so a purge can
// clear the subject index even after the record hash expired on its own.
const purgeScript = `
local members = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1], "LIMIT", 0, tonumber(ARGV[3]))
for _, m in ipairs(members) do
  local n, rest = string.match(m, "^(%d+):(.*)$")
  local id, sub
  if n and tonumber(n) <= #rest then
    sub = string.sub(rest, 1, tonumber(n))
    id = string.sub(rest, tonumber(n) + 1)
  else
    id = m
    sub = redis.call("HGET", ARGV[2] .. "jti:" .. id, "sub")
  end
  if sub then
    redis.call("SREM", ARGV[2] .. "sub:" .. sub, id)
  end
  redis.call("DEL", ARGV[2] .. "jti:" .. id)
  redis.call("ZREM", KEYS[1], m)
end
return #members
`

var purgeLua = redis.NewScript(purgeScript)

const advanceWatermarkScript = `
local cur = redis.call("HGET", KEYS[1], "vs")
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return redis.call("HMGET", KEYS[1], "vs", "exp", "rsn")
end
redis.call("HSET", KEYS[1], "vs", ARGV[1], "exp", ARGV[2], "rsn", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return {ARGV[1], ARGV[2], ARGV[3]}
`

var advanceWatermarkLua = redis.NewScript(advanceWatermarkScript)

// RedisStore keeps revocation state in Redis.
//
// Each record is a hash at <prefix>:jti:<id> that expires Retention after the
// token's own expiry. <prefix>:sub:<subject> indexes ids per subject and
// <prefix>:exp is a sorted set scored by expiry for PurgeExpired; its members
// carry the subject id next to the token id.
// Watermarks live at <prefix>:wm:<subject> and expire with the same rule.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore builds a store under prefix. retention keeps keys alive past
// token expiry so tokens accepted within verification leeway stay revoked.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "rvk"
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *RedisStore) base() string {
	return s.prefix + ":"
}

func (s *RedisStore) tokenKey(tokenID string) string {
	return s.prefix + ":jti:" + tokenID
}

func (s *RedisStore) subjectKey(subjectID string) string {
	return s.prefix + ":sub:" + subjectID
}

func (s *RedisStore) expiryKey() string {
	return s.prefix + ":exp"
}

func (s *RedisStore) watermarkKey(subjectID string) string {
	return s.prefix + ":wm:" + subjectID
}

func expiryMember(subjectID, tokenID string) string {
	return strconv.Itoa(len(subjectID)) + ":" + subjectID + tokenID
}

func (s *RedisStore) keyTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt) + s.retention
	if ttl < minKeyTTL {
		ttl = minKeyTTL
	}
	return ttl
}

func (s *RedisStore) Revoke(ctx context.Context, rec Record) (Record, error) {
	if err := rec.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	rec.RevokedAt = rec.RevokedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()

	inserted, err := revokeLua.Run(
		ctx,
		s.redis,
		[]string{s.tokenKey(rec.TokenID), s.subjectKey(rec.SubjectID), s.expiryKey()},
		rec.TokenID,
		rec.SubjectID,
		rec.TokenType,
		rec.RevokedAt.UnixMilli(),
		rec.ExpiresAt.UnixMilli(),
		rec.Reason,
		s.keyTTL(rec.ExpiresAt).Milliseconds(),
		expiryMember(rec.SubjectID, rec.TokenID),
	).Int64()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if inserted == 0 {
		return Record{}, ErrAlreadyRevoked
	}
	return rec, nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.tokenKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return n == 1, nil
}

func (s *RedisStore) ListForSubject(ctx context.Context, subjectID string) ([]Record, error) {
	subjectKey := s.subjectKey(subjectID)
	ids, err := s.redis.SMembers(ctx, subjectKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.tokenKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	out := make([]Record, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		fields, cmdErr := cmd.Result()
		if cmdErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, cmdErr)
		}
		if len(fields) == 0 {
			stale = append(stale, ids[i])
			continue
		}
		out = append(out, Record{
			TokenID:   ids[i],
			SubjectID: fields["sub"],
			TokenType: fields["typ"],
			RevokedAt: parseMillis(fields["rat"]),
			ExpiresAt: parseMillis(fields["exp"]),
			Reason:    fields["rsn"],
		})
	}
	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, subjectKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	SortNewestFirst(out)
	return out, nil
}

// PurgeExpired removes indexed records in batches. Watermarks are left to key
// expiry.
func (s *RedisStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for {
		n, err := purgeLua.Run(
			ctx,
			s.redis,
			[]string{s.expiryKey()},
			now.UnixMilli(),
			s.base(),
			purgeBatchLimit,
		).Int64()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		total += n
		if n < purgeBatchLimit {
			return total, nil
		}
	}
}

func (s *RedisStore) AdvanceWatermark(ctx context.Context, wm Watermark) (Watermark, error) {
	if err := wm.Validate(); err != nil {
		return Watermark{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	wm = wm.Normalize()

	res, err := advanceWatermarkLua.Run(
		ctx,
		s.redis,
		[]string{s.watermarkKey(wm.SubjectID)},
		wm.ValidSince.UnixMilli(),
		wm.ExpiresAt.UnixMilli(),
		wm.Reason,
		s.keyTTL(wm.ExpiresAt).Milliseconds(),
	).Slice()
	if err != nil {
		return Watermark{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return watermarkFromFields(wm.SubjectID, res), nil
}

func (s *RedisStore) Watermark(ctx context.Context, subjectID string) (Watermark, bool, error) {
	res, err := s.redis.HMGet(ctx, s.watermarkKey(subjectID), "vs", "exp", "rsn").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Watermark{}, false, nil
		}
		return Watermark{}, false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if len(res) == 0 || res[0] == nil {
		return Watermark{}, false, nil
	}
	return watermarkFromFields(subjectID, res), true, nil
}

// Ping reports round-trip latency to Redis.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return time.Since(start), nil
}

func watermarkFromFields(subjectID string, fields []interface{}) Watermark {
	wm := Watermark{SubjectID: subjectID}
	if len(fields) > 0 {
		wm.ValidSince = parseMillis(fieldString(fields[0]))
	}
	if len(fields) > 1 {
		wm.ExpiresAt = parseMillis(fieldString(fields[1]))
	}
	if len(fields) > 2 {
		wm.Reason = fieldString(fields[2])
	}
	return wm
}

func fieldString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func parseMillis(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
