package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fyerfyer/fyer-session/crypto"
	"github.com/fyerfyer/fyer-session/logger"
	"github.com/fyerfyer/fyer-session/session/cookiepropagator"
)

// Manager 持有会话相关的全部配置，创建后只读，可以被多个请求并发使用
type Manager struct {
	codec             crypto.Codec
	keys              crypto.KeySet
	store             Store
	propagator        Propagator
	cookieName        string
	cookieOptions     cookiepropagator.Options
	saveUninitialized bool
	logger            logger.Logger
	newID             func() string
	now               func() time.Time
}

// NewManager 创建会话管理器。
// 必须通过 WithKeys、WithEncodedKeys 或 WithSecret 提供密钥。
func NewManager(opts ...Option) (*Manager, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	l := cfg.logger
	if l == nil {
		l = logger.GetDefaultLogger()
	}
	l = l.WithFields(logger.String("component", "fyer-session"))

	codec, err := crypto.NewCodec(cfg.variant)
	if err != nil {
		return nil, err
	}

	keys, err := resolveKeys(cfg, codec, l)
	if err != nil {
		return nil, err
	}
	if err := keys.Validate(codec); err != nil {
		return nil, err
	}

	if cfg.cookieName == "" {
		cfg.cookieName = cookiepropagator.DefaultCookieName
	}
	cookieOptions := cookiepropagator.DefaultOptions()
	cookieOptions.Apply(cfg.cookieOptions...)

	propagator := cfg.propagator
	if propagator == nil {
		propagator = cookiepropagator.NewCookiePropagator(cfg.cookieName)
	}

	store := cfg.store
	if store != nil && cfg.tracer != nil {
		store = NewTracedStore(store, cfg.tracer)
	}
	if store == nil && !codec.Stateless() {
		l.Warn("stateless sessions with a signing-only codec, cookie contents are readable by the client",
			logger.String("codec", codec.Name()))
	}

	newID := cfg.newID
	if newID == nil {
		newID = uuid.NewString
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		codec:             codec,
		keys:              keys,
		store:             store,
		propagator:        propagator,
		cookieName:        cfg.cookieName,
		cookieOptions:     cookieOptions,
		saveUninitialized: cfg.saveUninitialized,
		logger:            l,
		newID:             newID,
		now:               now,
	}, nil
}

// resolveKeys 显式密钥优先，其次从口令派生。
// HMAC 直接使用口令作为密钥，NaCl 算法使用 argon2id 派生出 32 字节密钥。
func resolveKeys(cfg *config, codec crypto.Codec, l logger.Logger) (crypto.KeySet, error) {
	keys := cfg.keys
	if len(cfg.encodedKeys) > 0 {
		decoded, err := crypto.DecodeKeys(cfg.encodedKeys...)
		if err != nil {
			return nil, err
		}
		keys = append(keys, decoded...)
	}
	if len(keys) > 0 {
		if len(cfg.secret) > 0 {
			l.Debug("both keys and secret configured, secret is ignored")
		}
		return crypto.NewKeySet(keys...)
	}

	if len(cfg.secret) == 0 {
		return nil, ErrMissingConfiguration
	}
	if len(cfg.secret) < crypto.MinSecretSize {
		return nil, fmt.Errorf("%w: need at least %d bytes", crypto.ErrSecretLength, crypto.MinSecretSize)
	}
	if codec.KeySize() == 0 {
		return crypto.NewKeySet(cfg.secret)
	}

	salt := cfg.salt
	if len(salt) == 0 {
		generated, err := crypto.GenerateSalt()
		if err != nil {
			return nil, err
		}
		salt = generated
		l.Warn("no salt configured, generated a random one; sessions will not survive a restart",
			logger.String("salt", crypto.EncodeKey(salt)))
	}
	key, err := crypto.DeriveKey(cfg.secret, salt, cfg.kdfParams)
	if err != nil {
		return nil, err
	}
	return crypto.NewKeySet(key)
}

// Stateless cookie 中是否携带完整会话数据
func (m *Manager) Stateless() bool {
	return m.store == nil
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// Store 返回有状态模式下使用的存储，无状态模式返回 nil
func (m *Manager) Store() Store {
	return m.store
}

// Create 创建会话。data 为 nil 时得到新建会话，否则得到一个以 data 副本重建的会话
func (m *Manager) Create(data map[string]any) *Session {
	if data == nil {
		return newSession(m, m.newID(), nil)
	}
	cloned := make(map[string]any, len(data))
	for k, v := range data {
		cloned[k] = v
	}
	return newSession(m, m.newID(), cloned)
}

// FromCookie 从 cookie 值恢复会话
func (m *Manager) FromCookie(ctx context.Context, token string) (*Session, error) {
	payload, rotated, err := m.codec.Unseal(token, m.keys)
	if err != nil {
		return nil, err
	}

	var s *Session
	if m.store == nil {
		s, err = m.decodeStateless(payload)
	} else {
		s, err = m.loadStateful(ctx, string(payload))
	}
	if err != nil {
		return nil, err
	}
	s.rotated = rotated
	return s, nil
}

func (m *Manager) decodeStateless(payload []byte) (*Session, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil || data == nil {
		return nil, ErrInvalidData
	}
	id, _ := data[idField].(string)
	delete(data, idField)
	if id == "" {
		id = m.newID()
	}
	return newSession(m, id, data), nil
}

func (m *Manager) loadStateful(ctx context.Context, id string) (*Session, error) {
	entry, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: failed to load session: %w", err)
	}
	if entry == nil {
		return nil, ErrSessionNotFound
	}
	if entry.Expired(m.now()) {
		return nil, ErrExpiredSession
	}
	s := newSession(m, id, CloneData(entry.Data))
	if entry.Expiry != nil {
		s.expiry = *entry.Expiry
	} else {
		s.expiry = time.Time{}
	}
	return s, nil
}

// Load 从请求中恢复会话。
// 没有 cookie 或 cookie 无法解析时返回新会话；存储出错时同时返回新会话和错误，
// 由调用方决定是中止请求还是降级。
func (m *Manager) Load(ctx context.Context, req *http.Request) (*Session, error) {
	token, err := m.propagator.Extract(req)
	if err != nil || token == "" {
		return m.Create(nil), nil
	}

	s, err := m.FromCookie(ctx, token)
	switch {
	case err == nil:
		return s, nil
	case IsDecodeError(err):
		m.logger.Warn("discarding session cookie",
			logger.String("hook", "onRequest"), logger.FieldError(err))
		return m.Create(nil), nil
	default:
		m.logger.Error("failed to restore session",
			logger.String("hook", "onRequest"), logger.FieldError(err))
		return m.Create(nil), err
	}
}

// Commit 在响应头发出之前持久化会话并写入 cookie
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s == nil {
		return nil
	}
	if s.deleted {
		return m.propagator.Remove(w, s.options)
	}
	if !m.saveUninitialized && s.IsEmpty() {
		return nil
	}
	if !s.changed && !s.created && !s.rotated && !s.touched {
		return nil
	}
	if s.skipped {
		return nil
	}

	if s.created || s.changed {
		if err := s.Save(ctx); err != nil {
			m.logger.Error("failed to save session",
				logger.String("hook", "onSend"), logger.FieldError(err))
			return fmt.Errorf("session: failed to save session: %w", err)
		}
	}

	token, err := s.ToCookie()
	if err != nil {
		m.logger.Error("failed to encode session cookie",
			logger.String("hook", "onSend"), logger.FieldError(err))
		return err
	}
	return m.propagator.Insert(w, token, s.options, s.expiry)
}

// Destroy 删除会话，效果同 Session.Destroy
func (m *Manager) Destroy(ctx context.Context, s *Session) error {
	if s == nil {
		return errors.New("session: nil session")
	}
	return s.Destroy(ctx)
}
