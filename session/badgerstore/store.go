package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/fyerfyer/fyer-session/session"
)

// DefaultPrefix 会话键的默认前缀
const DefaultPrefix = "sess:"

// record 是写入 badger 的值
type record struct {
	Data   map[string]any `json:"data"`
	Expiry *int64         `json:"expiry,omitempty"` // unix 毫秒
}

// Store 基于 badger 的嵌入式存储。
// 过期时间同时写入 badger 条目的 ExpiresAt，读取时按毫秒精度再检查一次。
// ExpiresAt 由剩余有效期加上系统时间得到，因此 WithClock 与系统时间不同步时条目也不会被提前清除。
type Store struct {
	db     *badger.DB
	prefix string
	owned  bool
	now    func() time.Time
}

type Option func(*Store)

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithClock 替换判断过期使用的时间来源
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New 使用已打开的数据库，Close 不会关闭它
func New(db *badger.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open 在 dir 下打开数据库，dir 为空时使用内存模式
func Open(dir string, opts ...Option) (*Store, error) {
	bopts := badger.DefaultOptions(dir)
	if dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: failed to open database: %w", err)
	}
	s := New(db, opts...)
	s.owned = true
	return s, nil
}

// Close 关闭由 Open 打开的数据库
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *Store) key(id string) []byte {
	return []byte(s.prefix + id)
}

func (s *Store) expired(r *record) bool {
	return r.Expiry != nil && *r.Expiry <= s.now().UnixMilli()
}

func (s *Store) read(item *badger.Item) (*record, error) {
	var r record
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &r)
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: failed to decode session %s: %w", item.Key(), err)
	}
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	return &r, nil
}

func (r *record) entry() *session.Entry {
	e := &session.Entry{Data: r.Data}
	if r.Expiry != nil {
		t := time.UnixMilli(*r.Expiry)
		e.Expiry = &t
	}
	return e
}

// write 写入记录；过期时间已过时删除键
func (s *Store) write(txn *badger.Txn, key []byte, r *record) error {
	if s.expired(r) {
		return txn.Delete(key)
	}
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("badgerstore: failed to encode session: %w", err)
	}
	e := badger.NewEntry(key, val)
	if r.Expiry != nil {
		// badger 按系统时间以秒为单位判断，向上取整以免提前过期
		remaining := *r.Expiry - s.now().UnixMilli()
		secs := (time.Now().UnixMilli() + remaining + 999) / 1000
		e.ExpiresAt = uint64(secs)
	}
	return txn.SetEntry(e)
}

func (s *Store) Get(_ context.Context, id string) (*session.Entry, error) {
	var entry *session.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		r, err := s.read(item)
		if err != nil {
			return err
		}
		if !s.expired(r) {
			entry = r.entry()
		}
		return nil
	})
	return entry, err
}

func (s *Store) Set(_ context.Context, id string, data map[string]any, expiry *time.Time) error {
	r := &record{Data: data}
	if expiry != nil {
		ms := expiry.UnixMilli()
		r.Expiry = &ms
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return s.write(txn, s.key(id), r)
	})
}

// Touch 只更新过期时间，会话不存在时什么也不做
func (s *Store) Touch(_ context.Context, id string, expiry *time.Time) error {
	key := s.key(id)
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		r, err := s.read(item)
		if err != nil {
			return err
		}
		r.Expiry = nil
		if expiry != nil {
			ms := expiry.UnixMilli()
			r.Expiry = &ms
		}
		return s.write(txn, key, r)
	})
}

func (s *Store) Destroy(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(id))
	})
}

func (s *Store) All(_ context.Context) (map[string]map[string]any, error) {
	all := make(map[string]map[string]any)
	prefix := []byte(s.prefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			r, err := s.read(item)
			if err != nil {
				return err
			}
			if s.expired(r) {
				continue
			}
			all[string(item.Key()[len(prefix):])] = r.Data
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

func (s *Store) Clear(_ context.Context) error {
	return s.db.DropPrefix([]byte(s.prefix))
}
