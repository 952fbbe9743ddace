package session

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/fyer-session/logger"
	"github.com/fyerfyer/fyer-session/session/cookiepropagator"
)

func newTestManager(t *testing.T, clock *fakeClock, opts ...Option) *Manager {
	base := []Option{WithLogger(logger.Nop()), WithKeys(testKey), WithClock(clock.Now)}
	m, err := NewManager(append(base, opts...)...)
	require.NoError(t, err)
	return m
}

// loaded 将会话写入存储后重新读取，得到一个非新建的会话
func loaded(t *testing.T, m *Manager, data map[string]any) *Session {
	ctx := context.Background()
	s := m.Create(data)
	require.NoError(t, s.Save(ctx))
	token, err := s.ToCookie()
	require.NoError(t, err)
	restored, err := m.FromCookie(ctx, token)
	require.NoError(t, err)
	return restored
}

func TestSession_DataAndFlags(t *testing.T) {
	m := newTestManager(t, newFakeClock())
	input := map[string]any{"a": 1}
	s := m.Create(input)

	assert.False(t, s.Created())
	assert.False(t, s.Changed())
	assert.False(t, s.IsEmpty())

	// Create 复制了入参
	input["b"] = 2
	_, ok := s.Get("b")
	assert.False(t, ok)

	// Data 返回的是拷贝
	s.Data()["c"] = 3
	_, ok = s.Get("c")
	assert.False(t, ok)

	s.Unset("missing")
	assert.False(t, s.Changed())

	s.Set("b", 2)
	assert.True(t, s.Changed())
	s.Unset("a")
	s.Unset("b")
	assert.True(t, s.IsEmpty())

	s.Skip()
	assert.True(t, s.Skipped())
	assert.False(t, s.Deleted())
	s.Delete()
	assert.True(t, s.Deleted())
	assert.True(t, s.Changed())
}

func TestSession_Expiry(t *testing.T) {
	clock := newFakeClock()
	now := clock.Now()

	testCases := []struct {
		name    string
		opts    []cookiepropagator.Option
		want    time.Time
		wantSet bool
	}{
		{
			name: "neither",
		},
		{
			name:    "max age",
			opts:    []cookiepropagator.Option{cookiepropagator.WithMaxAge(time.Hour)},
			want:    now.Add(time.Hour),
			wantSet: true,
		},
		{
			name:    "expires",
			opts:    []cookiepropagator.Option{cookiepropagator.WithExpires(now.Add(time.Minute))},
			want:    now.Add(time.Minute),
			wantSet: true,
		},
		{
			name: "expires is later",
			opts: []cookiepropagator.Option{
				cookiepropagator.WithMaxAge(time.Hour),
				cookiepropagator.WithExpires(now.Add(2 * time.Hour)),
			},
			want:    now.Add(2 * time.Hour),
			wantSet: true,
		},
		{
			name: "max age is later",
			opts: []cookiepropagator.Option{
				cookiepropagator.WithMaxAge(3 * time.Hour),
				cookiepropagator.WithExpires(now.Add(2 * time.Hour)),
			},
			want:    now.Add(3 * time.Hour),
			wantSet: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestManager(t, clock, WithCookieOptions(tc.opts...))
			s := m.Create(nil)
			expiry, ok := s.Expiry()
			assert.Equal(t, tc.wantSet, ok)
			assert.True(t, tc.want.Equal(expiry), "want %v got %v", tc.want, expiry)
		})
	}
}

func TestSession_Options(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock, WithCookieOptions(cookiepropagator.WithMaxAge(time.Hour)))
	s := m.Create(nil)

	s.Options(cookiepropagator.WithMaxAge(24*time.Hour), cookiepropagator.WithSecure(true))
	expiry, ok := s.Expiry()
	require.True(t, ok)
	assert.True(t, expiry.Equal(clock.Now().Add(24*time.Hour)))
	assert.True(t, s.CookieOptions().Secure)

	// 覆盖只影响当前会话
	assert.False(t, m.Create(nil).CookieOptions().Secure)
}

func TestSession_TouchExtendsExpiry(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock, WithCookieOptions(cookiepropagator.WithMaxAge(time.Hour)))
	s := m.Create(nil)
	before, _ := s.Expiry()

	clock.Advance(time.Minute)
	require.NoError(t, s.Touch(context.Background()))
	after, _ := s.Expiry()
	assert.True(t, after.After(before))
	assert.True(t, s.Touched())
}

func TestSession_TouchUsesToucher(t *testing.T) {
	clock := newFakeClock()
	store := &fakeTouchStore{fakeStore: newFakeStore()}
	m := newTestManager(t, clock, WithStore(store), WithCookieOptions(cookiepropagator.WithMaxAge(time.Hour)))

	s := loaded(t, m, map[string]any{"a": 1})
	sets := store.sets

	clock.Advance(time.Minute)
	require.NoError(t, s.Touch(context.Background()))
	assert.Equal(t, 1, store.touches)
	assert.Equal(t, sets, store.sets)

	want := clock.Now().Add(time.Hour)
	assert.True(t, store.entries[s.ID()].Expiry.Equal(want))
}

func TestSession_TouchFallsBackToSet(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore()
	m := newTestManager(t, clock, WithStore(store), WithCookieOptions(cookiepropagator.WithMaxAge(time.Hour)))

	s := loaded(t, m, map[string]any{"a": 1})
	require.Equal(t, 1, store.sets)

	clock.Advance(time.Minute)
	require.NoError(t, s.Touch(context.Background()))
	assert.Equal(t, 2, store.sets)
	assert.Equal(t, map[string]any{"a": 1}, store.entries[s.ID()].Data)
	assert.True(t, store.entries[s.ID()].Expiry.Equal(clock.Now().Add(time.Hour)))
}

func TestSession_TouchCreatedSkipsStore(t *testing.T) {
	store := &fakeTouchStore{fakeStore: newFakeStore()}
	m := newTestManager(t, newFakeClock(), WithStore(store))

	s := m.Create(nil)
	require.NoError(t, s.Touch(context.Background()))
	assert.Equal(t, 0, store.touches)
	assert.Equal(t, 0, store.sets)
}

func TestSession_DestroyOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	m := newTestManager(t, newFakeClock(), WithStore(store))

	s := loaded(t, m, map[string]any{"a": 1})
	require.NoError(t, s.Destroy(ctx))
	require.NoError(t, s.Destroy(ctx))
	require.NoError(t, m.Destroy(ctx, s))
	assert.Equal(t, 1, store.destroys)
	assert.True(t, s.Deleted())
	assert.NotContains(t, store.entries, s.ID())
}

func TestSession_DestroyUnsaved(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, newFakeClock(), WithStore(store))

	s := m.Create(nil)
	s.Set("a", 1)
	require.NoError(t, s.Destroy(context.Background()))
	assert.Equal(t, 0, store.destroys)
	assert.True(t, s.Deleted())

	saved := m.Create(nil)
	saved.Set("a", 1)
	require.NoError(t, saved.Save(context.Background()))
	require.NoError(t, saved.Destroy(context.Background()))
	assert.Equal(t, 1, store.destroys)
}

func TestSession_DestroyRetriesAfterError(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	m := newTestManager(t, newFakeClock(), WithStore(store))

	s := loaded(t, m, map[string]any{"a": 1})
	store.err = errStoreDown
	assert.ErrorIs(t, s.Destroy(ctx), errStoreDown)

	store.err = nil
	require.NoError(t, s.Destroy(ctx))
	assert.Equal(t, 2, store.destroys)
}

func TestSession_Regenerate(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	m := newTestManager(t, newFakeClock(), WithStore(store))

	s := loaded(t, m, map[string]any{"a": 1})
	oldID := s.ID()
	require.NoError(t, s.Regenerate(ctx))

	assert.NotEqual(t, oldID, s.ID())
	assert.True(t, s.Changed())
	assert.NotContains(t, store.entries, oldID)
	assert.Equal(t, map[string]any{"a": 1}, s.Data())

	require.NoError(t, s.Save(ctx))
	assert.Contains(t, store.entries, s.ID())
}

func TestSession_ToCookie(t *testing.T) {
	store := newFakeStore()
	stateful := newTestManager(t, newFakeClock(), WithStore(store))
	s := stateful.Create(map[string]any{"user": "alice"})
	token, err := s.ToCookie()
	require.NoError(t, err)
	assert.NotContains(t, token, "YWxpY2")

	stateless := newTestManager(t, newFakeClock())
	s = stateless.Create(map[string]any{"user": "alice"})
	token, err = s.ToCookie()
	require.NoError(t, err)

	restored, err := stateless.FromCookie(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, s.ID(), restored.ID())
	assert.Equal(t, s.Data(), restored.Data())

	s.Set("bad", func() {})
	_, err = s.ToCookie()
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	m := newTestManager(t, newFakeClock())
	s := m.Create(nil)
	got, ok := FromContext(NewContext(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestIsDecodeError(t *testing.T) {
	assert.True(t, IsDecodeError(ErrSessionNotFound))
	assert.True(t, IsDecodeError(ErrInvalidData))
	assert.True(t, IsDecodeError(ErrMissingSecretKey))
	assert.False(t, IsDecodeError(errStoreDown))
	assert.False(t, IsDecodeError(nil))
}

func TestManager_Create(t *testing.T) {
	testCases := []struct {
		name        string
		data        map[string]any
		wantCreated bool
		wantEmpty   bool
	}{
		{name: "nil data", data: nil, wantCreated: true, wantEmpty: true},
		{name: "empty data", data: map[string]any{}, wantCreated: false, wantEmpty: true},
		{name: "seeded data", data: map[string]any{"a": 1}, wantCreated: false, wantEmpty: false},
	}

	m := newTestManager(t, newFakeClock())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := m.Create(tc.data)
			assert.Equal(t, tc.wantCreated, s.Created())
			assert.False(t, s.Changed())
			assert.Equal(t, tc.wantEmpty, s.IsEmpty())
			assert.NotEmpty(t, s.ID())
		})
	}
}

func TestManager_CommitSeededSession(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	m := newTestManager(t, newFakeClock(), WithStore(store))

	rec := httptest.NewRecorder()
	require.NoError(t, m.Commit(ctx, rec, m.Create(map[string]any{"a": 1})))
	assert.Equal(t, 0, store.sets)
	assert.Empty(t, rec.Result().Cookies())

	rec = httptest.NewRecorder()
	require.NoError(t, m.Commit(ctx, rec, m.Create(nil)))
	assert.Equal(t, 1, store.sets)
	assert.Len(t, rec.Result().Cookies(), 1)
}
