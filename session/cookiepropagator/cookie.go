package cookiepropagator

import (
	"net/http"
	"time"
)

// DefaultCookieName 默认的会话 cookie 名称
const DefaultCookieName = "Session"

// DefaultCookiePath 默认的会话 cookie 路径
const DefaultCookiePath = "/"

// Options 会话 cookie 的属性
type Options struct {
	Path   string
	Domain string
	// MaxAge 为 0 表示不限制
	MaxAge time.Duration
	// Expires 为零值表示不限制
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// Option 修改 cookie 属性
type Option func(*Options)

// WithPath 设置 cookie 路径
func WithPath(path string) Option {
	return func(o *Options) {
		o.Path = path
	}
}

// WithDomain 设置 cookie 域
func WithDomain(domain string) Option {
	return func(o *Options) {
		o.Domain = domain
	}
}

// WithMaxAge 设置 cookie 的最大存活时间
func WithMaxAge(maxAge time.Duration) Option {
	return func(o *Options) {
		o.MaxAge = maxAge
	}
}

// WithExpires 设置 cookie 的绝对过期时间
func WithExpires(expires time.Time) Option {
	return func(o *Options) {
		o.Expires = expires
	}
}

// WithSecure 设置 cookie 安全标志
func WithSecure(secure bool) Option {
	return func(o *Options) {
		o.Secure = secure
	}
}

// WithHTTPOnly 设置 cookie HTTP only 标志
func WithHTTPOnly(httpOnly bool) Option {
	return func(o *Options) {
		o.HTTPOnly = httpOnly
	}
}

// WithSameSite 设置 cookie SameSite 属性
func WithSameSite(sameSite http.SameSite) Option {
	return func(o *Options) {
		o.SameSite = sameSite
	}
}

// DefaultOptions 返回默认属性
func DefaultOptions() Options {
	return Options{
		Path:     DefaultCookiePath,
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Apply 依次应用选项
func (o *Options) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
	if o.Path == "" {
		o.Path = DefaultCookiePath
	}
}

// CookiePropagator 使用 cookie 在请求和响应之间传递会话令牌
type CookiePropagator struct {
	name string
}

// NewCookiePropagator 创建新的 CookiePropagator
func NewCookiePropagator(name string) *CookiePropagator {
	if name == "" {
		name = DefaultCookieName
	}
	return &CookiePropagator{name: name}
}

// Name 返回 cookie 名称
func (p *CookiePropagator) Name() string {
	return p.name
}

// Extract 从请求中提取会话令牌
func (p *CookiePropagator) Extract(req *http.Request) (string, error) {
	cookie, err := req.Cookie(p.name)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// Insert 在响应中写入会话令牌，expiry 为零值时写入浏览器会话 cookie
func (p *CookiePropagator) Insert(resp http.ResponseWriter, value string, opts Options, expiry time.Time) error {
	cookie := p.cookie(value, opts)
	if !expiry.IsZero() {
		cookie.Expires = expiry.UTC()
		cookie.MaxAge = maxAgeSeconds(time.Until(expiry))
	}
	http.SetCookie(resp, cookie)
	return nil
}

// Remove 写入一个立即过期的 cookie
func (p *CookiePropagator) Remove(resp http.ResponseWriter, opts Options) error {
	cookie := p.cookie("", opts)
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(resp, cookie)
	return nil
}

func (p *CookiePropagator) cookie(value string, opts Options) *http.Cookie {
	path := opts.Path
	if path == "" {
		path = DefaultCookiePath
	}
	return &http.Cookie{
		Name:     p.name,
		Value:    value,
		Path:     path,
		Domain:   opts.Domain,
		Secure:   opts.Secure,
		HttpOnly: opts.HTTPOnly,
		SameSite: opts.SameSite,
	}
}

// maxAgeSeconds 向上取整，已过期时返回 -1
func maxAgeSeconds(d time.Duration) int {
	if d <= 0 {
		return -1
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
