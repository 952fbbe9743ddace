package redisstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fyerfyer/fyer-kit/pool"
	"github.com/go-redis/redis/v8"
)

// ErrInvalidConnection 连接池返回的连接不是 redis 客户端
var ErrInvalidConnection = errors.New("redisstore: pooled connection is not a redis client")

// RedisConnection 将 redis 客户端包装为 pool.Connection
type RedisConnection struct {
	client  redis.UniversalClient
	lastUse time.Time
	mu      sync.RWMutex
	closed  bool
}

// Close 实际的关闭由连接池处理
func (c *RedisConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *RedisConnection) Raw() interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// IsAlive 通过 PING 检查连接是否可用
func (c *RedisConnection) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	return c.client.Ping(ctx).Err() == nil
}

func (c *RedisConnection) ResetState() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUse = time.Now()
	c.closed = false
	return nil
}

// ConnectionFactory 为连接池创建 redis 连接
type ConnectionFactory struct {
	client redis.UniversalClient
}

func NewConnectionFactory(client redis.UniversalClient) *ConnectionFactory {
	return &ConnectionFactory{client: client}
}

// Create 实现 pool.ConnectionFactory
func (f *ConnectionFactory) Create(ctx context.Context) (pool.Connection, error) {
	if f.client == nil {
		return nil, ErrInvalidConnection
	}
	if err := f.client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisConnection{client: f.client, lastUse: time.Now()}, nil
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdle     int
	MaxActive   int // 0 表示不限制
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
	InitialSize int
	WaitTimeout time.Duration
	DialTimeout time.Duration
}

// DefaultPoolConfig 返回默认的连接池配置
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdle:     10,
		MaxActive:   100,
		MaxIdleTime: 5 * time.Minute,
		MaxLifetime: 30 * time.Minute,
		InitialSize: 1,
		WaitTimeout: 3 * time.Second,
		DialTimeout: 2 * time.Second,
	}
}

// NewPool 在 redis 客户端之上构建 fyer-kit 连接池，config 为 nil 时使用默认配置
func NewPool(client redis.UniversalClient, config *PoolConfig) pool.Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	options := []pool.Option{
		pool.WithMaxIdle(config.MaxIdle),
		pool.WithMaxActive(config.MaxActive),
		pool.WithMaxIdleTime(config.MaxIdleTime),
		pool.WithMaxLifetime(config.MaxLifetime),
		pool.WithWaitTimeout(config.WaitTimeout),
		pool.WithDialTimeout(config.DialTimeout),
		pool.WithInitialSize(config.InitialSize),
	}
	return pool.NewPool(NewConnectionFactory(client), options...)
}
