package cache

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/collabhub/internal/clock"
)

// The field is written only while the generation counter still holds the
// value the loader read. A missing counter reads as "0".
const setIfGenerationScript = `
local current = redis.call("GET", KEYS[2]) or "0"
if current ~= ARGV[1] then
  return 0
end

redis.call("HSET", KEYS[1], ARGV[2], ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`

// RedisStore keeps each key as a redis hash with one field per query. Each
// field value carries its own expiry as "<unix millis>:<payload>"; the hash
// ttl only bounds memory.
type RedisStore struct {
	client *redis.Client
	clock  clock.Clock
	setIf  *redis.Script
}

func NewRedisStore(client *redis.Client, c clock.Clock) *RedisStore {
	if c == nil {
		c = clock.SystemClock{}
	}
	return &RedisStore{
		client: client,
		clock:  c,
		setIf:  redis.NewScript(setIfGenerationScript),
	}
}

func (s *RedisStore) Get(ctx context.Context, key Key, field string) ([]byte, bool, error) {
	raw, err := s.client.HGet(ctx, key.String(), field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	expiresAt, value, ok := decodeEntry(raw)
	if !ok {
		return nil, false, nil
	}
	if expiresAt > 0 && s.clock.Now().UnixMilli() >= expiresAt {
		_ = s.client.HDel(ctx, key.String(), field).Err()
		return nil, false, nil
	}
	return value, true, nil
}

func (s *RedisStore) Generation(ctx context.Context, key Key) (int64, error) {
	gen, err := s.client.Get(ctx, key.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (s *RedisStore) Set(ctx context.Context, key Key, field string, value []byte, ttl time.Duration, generation int64) (bool, error) {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl).UnixMilli()
	}
	stored, err := s.setIf.Run(ctx, s.client,
		[]string{key.String(), key.generationKey()},
		strconv.FormatInt(generation, 10),
		field,
		encodeEntry(expiresAt, value),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate advances each key's generation and drops its views in one
// MULTI block.
func (s *RedisStore) Invalidate(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for _, key := range keys {
		pipe.Incr(ctx, key.generationKey())
		pipe.Del(ctx, key.String())
	}
	_, err := pipe.Exec(ctx)
	return err
}

func encodeEntry(expiresAt int64, value []byte) []byte {
	out := strconv.AppendInt(make([]byte, 0, len(value)+21), expiresAt, 10)
	out = append(out, ':')
	return append(out, value...)
}

func decodeEntry(raw []byte) (int64, []byte, bool) {
	i := bytes.IndexByte(raw, ':')
	if i <= 0 {
		return 0, nil, false
	}
	expiresAt, err := strconv.ParseInt(string(raw[:i]), 10, 64)
	if err != nil {
		return 0, nil, false
	}
	return expiresAt, raw[i+1:], true
}
