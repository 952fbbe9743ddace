package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore 记录调用次数，Get 不检查过期时间
type fakeStore struct {
	entries  map[string]Entry
	gets     int
	sets     int
	destroys int
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]Entry)}
}

func (f *fakeStore) Get(_ context.Context, id string) (*Entry, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.entries[id]
	if !ok {
		return nil, nil
	}
	return &Entry{Data: CloneData(e.Data), Expiry: e.Expiry}, nil
}

func (f *fakeStore) Set(_ context.Context, id string, data map[string]any, expiry *time.Time) error {
	f.sets++
	if f.err != nil {
		return f.err
	}
	f.entries[id] = Entry{Data: CloneData(data), Expiry: expiry}
	return nil
}

func (f *fakeStore) Destroy(_ context.Context, id string) error {
	f.destroys++
	if f.err != nil {
		return f.err
	}
	delete(f.entries, id)
	return nil
}

type fakeTouchStore struct {
	*fakeStore
	touches int
}

func (f *fakeTouchStore) Touch(_ context.Context, id string, expiry *time.Time) error {
	f.touches++
	e, ok := f.entries[id]
	if !ok {
		return nil
	}
	e.Expiry = expiry
	f.entries[id] = e
	return nil
}

var errStoreDown = errors.New("store is down")

// roundTrip 执行一次 Load → handler → Commit，并返回响应中的 cookie
func roundTrip(m *Manager, cookie *http.Cookie, handler func(s *Session)) (*http.Cookie, *Session, error) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	s, err := m.Load(req.Context(), req)
	if err != nil {
		return nil, s, err
	}
	if handler != nil {
		handler(s)
	}
	rec := httptest.NewRecorder()
	if err := m.Commit(req.Context(), rec, s); err != nil {
		return nil, s, err
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == m.CookieName() {
			return c, s, nil
		}
	}
	return nil, s, nil
}
