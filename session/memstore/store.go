package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/fyerfyer/fyer-session/session"
)

const (
	// DefaultPrefix 会话键的默认前缀
	DefaultPrefix = "sess:"
	// DefaultCleanupInterval 后台清理过期会话的间隔
	DefaultCleanupInterval = 10 * time.Minute
)

type item struct {
	data   map[string]any
	expiry *time.Time
}

// Store 基于 go-cache 的进程内存储，读取时会再检查一次过期时间。
// 数据在写入和读出时都会复制，调用方修改返回值不会影响存储。
type Store struct {
	cache           *cache.Cache
	prefix          string
	cleanupInterval time.Duration
	now             func() time.Time
	mu              sync.Mutex
}

type Option func(*Store)

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithCleanupInterval 设置后台清理间隔，小于等于 0 时不启动清理
func WithCleanupInterval(interval time.Duration) Option {
	return func(s *Store) {
		s.cleanupInterval = interval
	}
}

// WithCache 使用外部的 go-cache 实例，多个存储可以用不同前缀共享同一个实例。
// 此时 WithCleanupInterval 不生效，清理由实例的创建者决定。
func WithCache(c *cache.Cache) Option {
	return func(s *Store) {
		s.cache = c
	}
}

// WithClock 替换判断过期使用的时间来源
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		prefix:          DefaultPrefix,
		cleanupInterval: DefaultCleanupInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.New(cache.NoExpiration, s.cleanupInterval)
	}
	return s
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// ttl 按存储自己的时钟把过期时间换算成 go-cache 的有效期
func (s *Store) ttl(expiry *time.Time) time.Duration {
	if expiry == nil {
		return cache.NoExpiration
	}
	return expiry.Sub(s.now())
}

func (s *Store) expired(expiry *time.Time) bool {
	return expiry != nil && !expiry.After(s.now())
}

func (s *Store) Get(_ context.Context, id string) (*session.Entry, error) {
	v, ok := s.cache.Get(s.key(id))
	if !ok {
		return nil, nil
	}
	it, ok := v.(item)
	if !ok {
		return nil, nil
	}
	if s.expired(it.expiry) {
		s.cache.Delete(s.key(id))
		return nil, nil
	}
	return &session.Entry{Data: session.CloneData(it.data), Expiry: copyTime(it.expiry)}, nil
}

func (s *Store) Set(_ context.Context, id string, data map[string]any, expiry *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(s.key(id), item{data: session.CloneData(data), expiry: copyTime(expiry)})
	return nil
}

func (s *Store) set(key string, it item) {
	d := s.ttl(it.expiry)
	if s.expired(it.expiry) || (it.expiry != nil && d <= 0) {
		s.cache.Delete(key)
		return
	}
	s.cache.Set(key, it, d)
}

// Touch 只更新过期时间，会话不存在时什么也不做
func (s *Store) Touch(_ context.Context, id string, expiry *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(id)
	v, ok := s.cache.Get(key)
	if !ok {
		return nil
	}
	it, ok := v.(item)
	if !ok {
		return nil
	}
	it.expiry = copyTime(expiry)
	s.set(key, it)
	return nil
}

func (s *Store) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(s.key(id))
	return nil
}

func (s *Store) All(_ context.Context) (map[string]map[string]any, error) {
	all := make(map[string]map[string]any)
	for key, v := range s.cache.Items() {
		if !strings.HasPrefix(key, s.prefix) {
			continue
		}
		it, ok := v.Object.(item)
		if !ok || s.expired(it.expiry) {
			continue
		}
		all[strings.TrimPrefix(key, s.prefix)] = session.CloneData(it.data)
	}
	return all, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	all, err := s.All(ctx)
	return len(all), err
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, s.prefix) {
			s.cache.Delete(key)
		}
	}
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
