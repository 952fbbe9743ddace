package memstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/fyer-session/logger"
	"github.com/fyerfyer/fyer-session/session"
	"github.com/fyerfyer/fyer-session/session/cookiepropagator"
)

var (
	_ session.Store   = (*Store)(nil)
	_ session.Toucher = (*Store)(nil)
	_ session.Lister  = (*Store)(nil)
	_ session.Counter = (*Store)(nil)
	_ session.Clearer = (*Store)(nil)
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	data := map[string]any{"user": "alice"}
	require.NoError(t, s.Set(ctx, "a", data, nil))

	// 写入后修改入参不影响存储
	data["user"] = "bob"
	entry, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "alice", entry.Data["user"])
	assert.Nil(t, entry.Expiry)

	// 修改读出的数据同样不影响存储
	entry.Data["user"] = "eve"
	entry, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "alice", entry.Data["user"])

	entry, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStore_Prefix(t *testing.T) {
	ctx := context.Background()
	s := New(WithPrefix("custom:"), WithCleanupInterval(0))
	require.NoError(t, s.Set(ctx, "a", map[string]any{"v": 1}, nil))

	_, ok := s.cache.Get("custom:a")
	assert.True(t, ok)
	_, ok = s.cache.Get(DefaultPrefix + "a")
	assert.False(t, ok)
}

func TestStore_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Now()}
	s := New(WithClock(c.Now))

	expiry := c.Now().Add(time.Hour)
	require.NoError(t, s.Set(ctx, "a", map[string]any{"v": 1}, &expiry))
	require.NoError(t, s.Set(ctx, "b", map[string]any{"v": 2}, nil))

	entry, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Expiry.Equal(expiry))

	c.Advance(2 * time.Hour)
	entry, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, entry)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_SetPastExpiry(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "a", map[string]any{"v": 1}, nil))

	past := time.Now().Add(-time.Minute)
	require.NoError(t, s.Set(ctx, "a", map[string]any{"v": 1}, &past))
	entry, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStore_ClockBehindWallClock(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(WithClock(c.Now), WithCleanupInterval(0))

	expiry := c.Now().Add(time.Hour)
	require.NoError(t, s.Set(ctx, "a", map[string]any{"v": 1}, &expiry))
	entry, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, entry)

	later := c.Now().Add(2 * time.Hour)
	require.NoError(t, s.Touch(ctx, "a", &later))
	entry, err = s.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Expiry.Equal(later))

	c.Advance(3 * time.Hour)
	entry, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStore_SharedCache(t *testing.T) {
	ctx := context.Background()
	shared := cache.New(cache.NoExpiration, 0)
	users := New(WithCache(shared), WithPrefix("users:"))
	admins := New(WithCache(shared), WithPrefix("admins:"))

	require.NoError(t, users.Set(ctx, "a", map[string]any{"role": "user"}, nil))
	require.NoError(t, users.Set(ctx, "b", map[string]any{"role": "user"}, nil))
	require.NoError(t, admins.Set(ctx, "a", map[string]any{"role": "admin"}, nil))
	shared.Set("other", "not a session", cache.NoExpiration)
	assert.Equal(t, 4, shared.ItemCount())

	all, err := users.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]any{"a": {"role": "user"}, "b": {"role": "user"}}, all)

	entry, err := admins.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "admin", entry.Data["role"])

	n, err := admins.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, users.Clear(ctx))
	n, err = users.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = admins.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := shared.Get("other")
	assert.True(t, ok)
}

func TestStore_Touch(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Now()}
	s := New(WithClock(c.Now))

	expiry := c.Now().Add(time.Minute)
	require.NoError(t, s.Set(ctx, "a", map[string]any{"v": 1}, &expiry))

	later := c.Now().Add(time.Hour)
	require.NoError(t, s.Touch(ctx, "a", &later))
	c.Advance(30 * time.Minute)

	entry, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Expiry.Equal(later))
	assert.Equal(t, 1, entry.Data["v"])

	require.NoError(t, s.Touch(ctx, "missing", &later))
	entry, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStore_AllDestroyClear(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "a", map[string]any{"v": 1}, nil))
	require.NoError(t, s.Set(ctx, "b", map[string]any{"v": 2}, nil))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]any{"a": {"v": 1}, "b": {"v": 2}}, all)

	require.NoError(t, s.Destroy(ctx, "a"))
	require.NoError(t, s.Destroy(ctx, "a"))
	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Clear(ctx))
	n, err = s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			_ = s.Set(ctx, id, map[string]any{"i": i}, nil)
			_, _ = s.Get(ctx, id)
			expiry := time.Now().Add(time.Hour)
			_ = s.Touch(ctx, id, &expiry)
		}(i)
	}
	wg.Wait()

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 26, n)
}

func TestStore_WithManager(t *testing.T) {
	store := New()
	m, err := session.NewManager(
		session.WithLogger(logger.Nop()),
		session.WithKeys([]byte("0123456789abcdef0123456789abcdef")),
		session.WithStore(store),
		session.WithCookieOptions(cookiepropagator.WithMaxAge(time.Hour)),
	)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s, err := m.Load(req.Context(), req)
	require.NoError(t, err)
	s.Set("user", "alice")
	rec := httptest.NewRecorder()
	require.NoError(t, m.Commit(req.Context(), rec, s))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	restored, err := m.Load(req.Context(), req)
	require.NoError(t, err)
	assert.False(t, restored.Created())
	assert.Equal(t, "alice", restored.Data()["user"])

	require.NoError(t, restored.Destroy(req.Context()))
	n, err := store.Len(req.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
