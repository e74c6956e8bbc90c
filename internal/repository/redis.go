package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/redis/go-redis/v9"
)

// Per family the Redis store keeps:
//
//	restapi:{<family>}:records  hash  id -> payload
//	restapi:{<family>}:order    zset  id scored by insertion position
//	restapi:{<family>}:seq      last identifier handed out
//	restapi:{<family>}:pos      last insertion position
//
// Every write is a Lua script, so each runs atomically on the server.
var (
	createScript = redis.NewScript(`
local id = redis.call('INCR', KEYS[3])
local pos = redis.call('INCR', KEYS[4])
redis.call('HSET', KEYS[1], id, ARGV[1])
redis.call('ZADD', KEYS[2], pos, id)
return id
`)

	replaceScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

	deleteScript = redis.NewScript(`
if redis.call('HDEL', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('ZREM', KEYS[2], ARGV[1])
return 1
`)

	seedScript = redis.NewScript(`
if redis.call('HLEN', KEYS[1]) > 0 then
	return 0
end
local highest = 0
for i = 1, #ARGV, 2 do
	local pos = redis.call('INCR', KEYS[4])
	redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
	redis.call('ZADD', KEYS[2], pos, ARGV[i])
	local id = tonumber(ARGV[i])
	if id > highest then
		highest = id
	end
end
local current = tonumber(redis.call('GET', KEYS[3]) or '0')
if highest > current then
	redis.call('SET', KEYS[3], highest)
end
return 1
`)
)

// RedisStore keeps records in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client. The caller keeps ownership of client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// keys returns the records, order, seq and pos keys of the family. The braces form a
// hash tag so all four land in the same cluster slot.
func keys(d entity.Descriptor) []string {
	prefix := "restapi:{" + d.Name + "}:"
	return []string{prefix + "records", prefix + "order", prefix + "seq", prefix + "pos"}
}

func (s *RedisStore) List(ctx context.Context, d entity.Descriptor) ([]entity.Record, error) {
	k := keys(d)
	ids, err := s.client.ZRange(ctx, k[1], 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.Collection, err)
	}
	out := []entity.Record{}
	if len(ids) == 0 {
		return out, nil
	}

	payloads, err := s.client.HMGet(ctx, k[0], ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.Collection, err)
	}
	for i, raw := range payloads {
		payload, ok := raw.(string)
		if !ok {
			// Deleted between ZRANGE and HMGET.
			continue
		}
		id, err := strconv.ParseInt(ids[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt %s identifier %q: %w", d.Name, ids[i], err)
		}
		rec, err := decodeRecord(d, id, []byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, d entity.Descriptor, id int64) (entity.Record, error) {
	payload, err := s.client.HGet(ctx, keys(d)[0], strconv.FormatInt(id, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s %d: %w", d.Name, id, err)
	}
	return decodeRecord(d, id, []byte(payload))
}

func (s *RedisStore) Create(ctx context.Context, d entity.Descriptor, rec entity.Record) (entity.Record, error) {
	payload, err := encodeRecord(d, rec)
	if err != nil {
		return nil, err
	}
	id, err := createScript.Run(ctx, s.client, keys(d), string(payload)).Int64()
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", d.Name, err)
	}
	return rec.WithID(d, id), nil
}

func (s *RedisStore) Replace(ctx context.Context, d entity.Descriptor, id int64, rec entity.Record) (entity.Record, error) {
	payload, err := encodeRecord(d, rec)
	if err != nil {
		return nil, err
	}
	ok, err := replaceScript.Run(ctx, s.client, keys(d), strconv.FormatInt(id, 10), string(payload)).Int64()
	if err != nil {
		return nil, fmt.Errorf("replacing %s %d: %w", d.Name, id, err)
	}
	if ok == 0 {
		return nil, ErrRecordNotFound
	}
	return rec.WithID(d, id), nil
}

func (s *RedisStore) Delete(ctx context.Context, d entity.Descriptor, id int64) error {
	ok, err := deleteScript.Run(ctx, s.client, keys(d), strconv.FormatInt(id, 10)).Int64()
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", d.Name, id, err)
	}
	if ok == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *RedisStore) Seed(ctx context.Context, d entity.Descriptor, recs []entity.Record) (bool, error) {
	if len(recs) == 0 {
		return false, nil
	}
	ids, err := seedIDs(d, recs)
	if err != nil {
		return false, err
	}

	args := make([]any, 0, 2*len(recs))
	for i, rec := range recs {
		payload, err := encodeRecord(d, rec)
		if err != nil {
			return false, err
		}
		args = append(args, strconv.FormatInt(ids[i], 10), string(payload))
	}

	seeded, err := seedScript.Run(ctx, s.client, keys(d), args...).Int64()
	if err != nil {
		return false, fmt.Errorf("seeding %s: %w", d.Collection, err)
	}
	return seeded == 1, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
