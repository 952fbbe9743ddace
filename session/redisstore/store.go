package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fyerfyer/fyer-kit/pool"
	"github.com/go-redis/redis/v8"

	"github.com/fyerfyer/fyer-session/session"
)

const (
	// DefaultPrefix 会话键的默认前缀
	DefaultPrefix = "sess:"

	fieldData   = "data"
	fieldExpiry = "expiry"
)

// touchScript 在同一个原子操作中检查会话是否存在并更新过期时间。
// ARGV[1] 为 expiry 字段名，ARGV[2] 为毫秒时间戳，空串表示永不过期，ARGV[3] 为 1 时删除会话。
var touchScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
if ARGV[3] == '1' then
	redis.call('DEL', KEYS[1])
	return 1
end
if ARGV[2] == '' then
	redis.call('HDEL', KEYS[1], ARGV[1])
	redis.call('PERSIST', KEYS[1])
	return 1
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('PEXPIREAT', KEYS[1], ARGV[2])
return 1
`)

// Store 将每个会话保存为一个 redis hash：data 字段为 JSON，expiry 字段为毫秒时间戳。
// 设置了过期时间的会话同时使用 PEXPIREAT 交给 redis 回收。
type Store struct {
	client    redis.Cmdable
	pool      pool.Pool
	prefix    string
	scanCount int64
}

type Option func(*Store)

// WithPrefix 设置键前缀
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithScanCount 设置 SCAN 每批返回的数量提示
func WithScanCount(n int64) Option {
	return func(s *Store) {
		s.scanCount = n
	}
}

// New 直接使用 redis 客户端
func New(client redis.Cmdable, opts ...Option) *Store {
	return newStore(&Store{client: client}, opts)
}

// NewWithPool 每次操作从连接池中获取连接
func NewWithPool(p pool.Pool, opts ...Option) *Store {
	return newStore(&Store{pool: p}, opts)
}

func newStore(s *Store, opts []Option) *Store {
	s.prefix = DefaultPrefix
	s.scanCount = 100
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// exec 取得一个可用的客户端执行 fn，池化模式下执行完毕后归还连接
func (s *Store) exec(ctx context.Context, fn func(c redis.Cmdable) error) error {
	if s.pool == nil {
		return fn(s.client)
	}

	conn, err := s.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("redisstore: failed to get connection: %w", err)
	}
	client, ok := conn.Raw().(redis.Cmdable)
	if !ok {
		_ = s.pool.Put(conn, ErrInvalidConnection)
		return ErrInvalidConnection
	}

	err = fn(client)
	if putErr := s.pool.Put(conn, err); putErr != nil && err == nil {
		err = putErr
	}
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*session.Entry, error) {
	var entry *session.Entry
	err := s.exec(ctx, func(c redis.Cmdable) error {
		var err error
		entry, err = s.get(ctx, c, s.key(id))
		return err
	})
	return entry, err
}

func (s *Store) get(ctx context.Context, c redis.Cmdable, key string) (*session.Entry, error) {
	vals, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	raw, ok := vals[fieldData]
	if !ok {
		return nil, nil
	}

	entry := &session.Entry{}
	if err := json.Unmarshal([]byte(raw), &entry.Data); err != nil {
		return nil, fmt.Errorf("redisstore: failed to decode session %s: %w", key, err)
	}
	if entry.Data == nil {
		entry.Data = make(map[string]any)
	}
	if ms, ok := vals[fieldExpiry]; ok && ms != "" {
		n, err := strconv.ParseInt(ms, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redisstore: invalid expiry for session %s: %w", key, err)
		}
		expiry := time.UnixMilli(n)
		entry.Expiry = &expiry
	}
	if entry.Expired(time.Now()) {
		return nil, nil
	}
	return entry, nil
}

func (s *Store) Set(ctx context.Context, id string, data map[string]any, expiry *time.Time) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("redisstore: failed to encode session: %w", err)
	}
	key := s.key(id)

	return s.exec(ctx, func(c redis.Cmdable) error {
		if expiry != nil && !expiry.After(time.Now()) {
			return c.Del(ctx, key).Err()
		}
		_, err := c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if expiry == nil {
				pipe.HSet(ctx, key, fieldData, string(payload))
				return nil
			}
			pipe.HSet(ctx, key, fieldData, string(payload), fieldExpiry, strconv.FormatInt(expiry.UnixMilli(), 10))
			pipe.PExpireAt(ctx, key, *expiry)
			return nil
		})
		return err
	})
}

// Touch 只更新过期时间，会话不存在时什么也不做
func (s *Store) Touch(ctx context.Context, id string, expiry *time.Time) error {
	ms, remove := "", "0"
	if expiry != nil {
		ms = strconv.FormatInt(expiry.UnixMilli(), 10)
		if !expiry.After(time.Now()) {
			remove = "1"
		}
	}
	return s.exec(ctx, func(c redis.Cmdable) error {
		return touchScript.Run(ctx, c, []string{s.key(id)}, fieldExpiry, ms, remove).Err()
	})
}

func (s *Store) Destroy(ctx context.Context, id string) error {
	return s.exec(ctx, func(c redis.Cmdable) error {
		return c.Del(ctx, s.key(id)).Err()
	})
}

// keys 遍历前缀下的所有键
func (s *Store) keys(ctx context.Context, c redis.Cmdable) ([]string, error) {
	var keys []string
	iter := c.Scan(ctx, 0, s.prefix+"*", s.scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (s *Store) All(ctx context.Context) (map[string]map[string]any, error) {
	all := make(map[string]map[string]any)
	err := s.exec(ctx, func(c redis.Cmdable) error {
		keys, err := s.keys(ctx, c)
		if err != nil {
			return err
		}
		for _, key := range keys {
			entry, err := s.get(ctx, c, key)
			if err != nil {
				return err
			}
			if entry != nil {
				all[key[len(s.prefix):]] = entry.Data
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	all, err := s.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Store) Clear(ctx context.Context) error {
	return s.exec(ctx, func(c redis.Cmdable) error {
		keys, err := s.keys(ctx, c)
		if err != nil || len(keys) == 0 {
			return err
		}
		return c.Del(ctx, keys...).Err()
	})
}
