package session

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fyerfyer/fyer-session/crypto"
	"github.com/fyerfyer/fyer-session/logger"
	"github.com/fyerfyer/fyer-session/session/cookiepropagator"
)

// Option 配置 Manager
type Option func(*config)

type config struct {
	keys              [][]byte
	encodedKeys       []string
	secret            []byte
	salt              []byte
	kdfParams         crypto.KDFParams
	variant           crypto.Variant
	cookieName        string
	cookieOptions     []cookiepropagator.Option
	store             Store
	saveUninitialized bool
	logger            logger.Logger
	tracer            trace.Tracer
	newID             func() string
	propagator        Propagator
	now               func() time.Time
}

func defaultConfig() *config {
	return &config{
		kdfParams:         crypto.DefaultKDFParams,
		variant:           crypto.VariantHMAC,
		cookieName:        cookiepropagator.DefaultCookieName,
		saveUninitialized: true,
		now:               time.Now,
	}
}

// WithKeys 设置密钥，第一个为主密钥，其余用于验证轮换前签发的 cookie
func WithKeys(keys ...[]byte) Option {
	return func(c *config) {
		c.keys = append(c.keys, keys...)
	}
}

// WithEncodedKeys 设置 base64 编码的密钥
func WithEncodedKeys(keys ...string) Option {
	return func(c *config) {
		c.encodedKeys = append(c.encodedKeys, keys...)
	}
}

// WithSecret 使用口令派生密钥，salt 为空时会自动生成
func WithSecret(secret, salt []byte) Option {
	return func(c *config) {
		c.secret = secret
		c.salt = salt
	}
}

// WithKDFParams 设置 argon2id 参数
func WithKDFParams(params crypto.KDFParams) Option {
	return func(c *config) {
		c.kdfParams = params
	}
}

// WithCodec 选择 cookie 的签名或加密算法
func WithCodec(v crypto.Variant) Option {
	return func(c *config) {
		c.variant = v
	}
}

func WithCookieName(name string) Option {
	return func(c *config) {
		c.cookieName = name
	}
}

// WithCookieOptions 设置默认的 cookie 属性
func WithCookieOptions(opts ...cookiepropagator.Option) Option {
	return func(c *config) {
		c.cookieOptions = append(c.cookieOptions, opts...)
	}
}

// WithStore 启用有状态模式，cookie 中只保存会话 id
func WithStore(store Store) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithSaveUninitialized 为 false 时不保存空会话
func WithSaveUninitialized(save bool) Option {
	return func(c *config) {
		c.saveUninitialized = save
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithTracer 为存储操作创建 span
func WithTracer(tracer trace.Tracer) Option {
	return func(c *config) {
		c.tracer = tracer
	}
}

// WithIDGenerator 替换默认的 uuid 生成器
func WithIDGenerator(fn func() string) Option {
	return func(c *config) {
		c.newID = fn
	}
}

// WithPropagator 替换默认的 cookie 传递方式
func WithPropagator(p Propagator) Option {
	return func(c *config) {
		c.propagator = p
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}
