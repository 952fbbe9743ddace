package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyerfyer/fyer-session/session/cookiepropagator"
)

// idField 无状态载荷中保存会话 id 的字段
const idField = "id"

// Session 是单个请求独占的会话记录，不做并发保护。
//
// 各个标志位相互独立：created 表示本次请求新建，changed 表示数据被修改或会话被删除，
// deleted 表示会话已删除，rotated 表示 cookie 由非主密钥验证通过，
// skipped 表示调用方选择本次请求不持久化。
type Session struct {
	m *Manager

	id      string
	data    map[string]any
	options cookiepropagator.Options
	expiry  time.Time

	created   bool
	changed   bool
	deleted   bool
	rotated   bool
	skipped   bool
	saved     bool
	touched   bool
	destroyed bool
}

func newSession(m *Manager, id string, data map[string]any) *Session {
	s := &Session{
		m:       m,
		id:      id,
		options: m.cookieOptions,
	}
	if data == nil {
		s.data = make(map[string]any)
		s.created = true
	} else {
		s.data = data
	}
	s.expiry = s.computeExpiry(m.now())
	return s
}

// ID 返回会话 id
func (s *Session) ID() string {
	return s.id
}

// Get 读取一个字段
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Set 写入一个字段并标记为已修改
func (s *Session) Set(key string, value any) {
	s.changed = true
	s.data[key] = value
}

// Unset 删除一个字段并标记为已修改
func (s *Session) Unset(key string) {
	if _, ok := s.data[key]; !ok {
		return
	}
	s.changed = true
	delete(s.data, key)
}

// Data 返回会话数据的拷贝
func (s *Session) Data() map[string]any {
	return CloneData(s.data)
}

// IsEmpty 会话中没有任何数据
func (s *Session) IsEmpty() bool {
	return len(s.data) == 0
}

// Delete 标记会话为已删除，响应时会下发一个过期的 cookie
func (s *Session) Delete() {
	s.changed = true
	s.deleted = true
}

// Skip 本次请求不保存会话也不下发 cookie
func (s *Session) Skip() {
	s.skipped = true
}

func (s *Session) Created() bool { return s.created }
func (s *Session) Changed() bool { return s.changed }
func (s *Session) Deleted() bool { return s.deleted }
func (s *Session) Rotated() bool { return s.rotated }
func (s *Session) Skipped() bool { return s.skipped }
func (s *Session) Saved() bool   { return s.saved }
func (s *Session) Touched() bool { return s.touched }

// Expiry 返回当前计算出的过期时间，ok 为 false 表示没有过期时间
func (s *Session) Expiry() (time.Time, bool) {
	return s.expiry, !s.expiry.IsZero()
}

// CookieOptions 返回本会话的 cookie 属性
func (s *Session) CookieOptions() cookiepropagator.Options {
	return s.options
}

// Options 为本次请求覆盖 cookie 属性并重新计算过期时间
func (s *Session) Options(opts ...cookiepropagator.Option) {
	s.options.Apply(opts...)
	s.expiry = s.computeExpiry(s.m.now())
}

// computeExpiry 同时设置了 MaxAge 和 Expires 时取两者中更晚的那个
func (s *Session) computeExpiry(now time.Time) time.Time {
	var expiry time.Time
	if s.options.MaxAge > 0 {
		expiry = now.Add(s.options.MaxAge)
	}
	if !s.options.Expires.IsZero() && s.options.Expires.After(expiry) {
		expiry = s.options.Expires
	}
	return expiry
}

func (s *Session) stateful() bool {
	return s.m.store != nil
}

// Touch 根据 cookie 属性重新计算过期时间。
// 对已存在的有状态会话，同时把新的过期时间同步到存储：
// 存储实现了 Toucher 时只更新过期时间，否则整体重写。
func (s *Session) Touch(ctx context.Context) error {
	s.expiry = s.computeExpiry(s.m.now())
	s.touched = true
	if !s.stateful() || s.created || s.deleted {
		return nil
	}
	if t, ok := s.m.store.(Toucher); ok {
		return t.Touch(ctx, s.id, ExpiryPtr(s.expiry))
	}
	return s.m.store.Set(ctx, s.id, s.Data(), ExpiryPtr(s.expiry))
}

// Save 将有状态会话写入存储，无状态会话的数据只存在于 cookie 中
func (s *Session) Save(ctx context.Context) error {
	if !s.stateful() {
		return nil
	}
	if err := s.m.store.Set(ctx, s.id, s.Data(), ExpiryPtr(s.expiry)); err != nil {
		return err
	}
	s.saved = true
	return nil
}

// Destroy 删除会话。对同一个会话重复调用只会访问一次存储；
// 新建且从未保存过的会话不访问存储。
func (s *Session) Destroy(ctx context.Context) error {
	s.Delete()
	if s.destroyed {
		return nil
	}
	s.destroyed = true
	if !s.stateful() || (s.created && !s.saved) {
		return nil
	}
	if err := s.m.store.Destroy(ctx, s.id); err != nil {
		s.destroyed = false
		return err
	}
	return nil
}

// Regenerate 为会话分配新的 id 并删除旧 id 在存储中的记录，数据保持不变
func (s *Session) Regenerate(ctx context.Context) error {
	if s.stateful() && !(s.created && !s.saved) {
		if err := s.m.store.Destroy(ctx, s.id); err != nil {
			return err
		}
	}
	s.id = s.m.newID()
	s.created = true
	s.saved = false
	s.changed = true
	return nil
}

// ToCookie 编码出 cookie 值。
// 无状态会话封装完整数据(附带 id)，有状态会话只封装 id。
func (s *Session) ToCookie() (string, error) {
	key, err := s.m.keys.Primary()
	if err != nil {
		return "", ErrMissingSecretKey
	}

	var payload []byte
	if s.stateful() {
		payload = []byte(s.id)
	} else {
		data := s.Data()
		data[idField] = s.id
		payload, err = json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("session: failed to encode session data: %w", err)
		}
	}
	return s.m.codec.Seal(payload, key)
}
