package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/fyerfyer/fyer-session/session"
)

// DefaultTable 默认的会话表名
const DefaultTable = "sessions"

// Store 将会话保存在 MySQL 表中，expires_at 为毫秒时间戳，NULL 表示永不过期。
// 过期的行在读取时被忽略，由 Cleanup 定期删除。
type Store struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

type Option func(*Store)

// WithTable 设置表名
func WithTable(table string) Option {
	return func(s *Store) {
		s.table = table
	}
}

// WithClock 替换判断过期使用的时间来源
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		table: DefaultTable,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open 使用 mysql 驱动配置建立连接
func Open(cfg *mysql.Config, opts ...Option) (*Store, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: invalid mysql config: %w", err)
	}
	return New(sql.OpenDB(connector), opts...), nil
}

// OpenDSN 解析 DSN 后调用 Open
func OpenDSN(dsn string, opts ...Option) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: invalid dsn: %w", err)
	}
	return Open(cfg, opts...)
}

// DB 返回底层连接
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate 创建会话表
func (s *Store) Migrate(ctx context.Context) error {
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` ("+
		"`id` VARCHAR(128) NOT NULL, "+
		"`data` MEDIUMTEXT NOT NULL, "+
		"`expires_at` BIGINT NULL, "+
		"PRIMARY KEY (`id`), "+
		"INDEX `idx_%s_expires_at` (`expires_at`)"+
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4", s.table, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlstore: failed to create table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}

func toMillis(expiry *time.Time) sql.NullInt64 {
	if expiry == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: expiry.UnixMilli(), Valid: true}
}

func (s *Store) Get(ctx context.Context, id string) (*session.Entry, error) {
	query := fmt.Sprintf("SELECT `data`, `expires_at` FROM `%s` WHERE `id` = ?", s.table)
	var (
		raw       string
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to load session: %w", err)
	}

	entry := &session.Entry{}
	if expiresAt.Valid {
		expiry := time.UnixMilli(expiresAt.Int64)
		entry.Expiry = &expiry
	}
	if entry.Expired(s.now()) {
		return nil, nil
	}
	if entry.Data, err = decode(raw); err != nil {
		return nil, err
	}
	return entry, nil
}

func decode(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("sqlstore: failed to decode session: %w", err)
	}
	if data == nil {
		data = make(map[string]any)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, id string, data map[string]any, expiry *time.Time) error {
	if expiry != nil && !expiry.After(s.now()) {
		return s.Destroy(ctx, id)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sqlstore: failed to encode session: %w", err)
	}
	query := fmt.Sprintf("INSERT INTO `%s` (`id`, `data`, `expires_at`) VALUES (?, ?, ?) "+
		"ON DUPLICATE KEY UPDATE `data` = VALUES(`data`), `expires_at` = VALUES(`expires_at`)", s.table)
	if _, err := s.db.ExecContext(ctx, query, id, string(payload), toMillis(expiry)); err != nil {
		return fmt.Errorf("sqlstore: failed to save session: %w", err)
	}
	return nil
}

// Touch 只更新过期时间，行不存在时什么也不做
func (s *Store) Touch(ctx context.Context, id string, expiry *time.Time) error {
	if expiry != nil && !expiry.After(s.now()) {
		return s.Destroy(ctx, id)
	}
	query := fmt.Sprintf("UPDATE `%s` SET `expires_at` = ? WHERE `id` = ?", s.table)
	if _, err := s.db.ExecContext(ctx, query, toMillis(expiry), id); err != nil {
		return fmt.Errorf("sqlstore: failed to touch session: %w", err)
	}
	return nil
}

func (s *Store) Destroy(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM `%s` WHERE `id` = ?", s.table)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("sqlstore: failed to destroy session: %w", err)
	}
	return nil
}

func (s *Store) All(ctx context.Context) (map[string]map[string]any, error) {
	query := fmt.Sprintf("SELECT `id`, `data` FROM `%s` WHERE `expires_at` IS NULL OR `expires_at` > ?", s.table)
	rows, err := s.db.QueryContext(ctx, query, s.nowMillis())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to list sessions: %w", err)
	}
	defer rows.Close()

	all := make(map[string]map[string]any)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("sqlstore: failed to scan session: %w", err)
		}
		data, err := decode(raw)
		if err != nil {
			return nil, err
		}
		all[id] = data
	}
	return all, rows.Err()
}

func (s *Store) Len(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM `%s` WHERE `expires_at` IS NULL OR `expires_at` > ?", s.table)
	var n int
	if err := s.db.QueryRowContext(ctx, query, s.nowMillis()).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlstore: failed to count sessions: %w", err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM `%s`", s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlstore: failed to clear sessions: %w", err)
	}
	return nil
}

// Cleanup 删除所有已过期的行，返回删除的行数
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("DELETE FROM `%s` WHERE `expires_at` IS NOT NULL AND `expires_at` <= ?", s.table)
	res, err := s.db.ExecContext(ctx, query, s.nowMillis())
	if err != nil {
		return 0, fmt.Errorf("sqlstore: failed to clean up sessions: %w", err)
	}
	return res.RowsAffected()
}

// StartCleanup 按固定间隔在后台执行 Cleanup，直到 ctx 结束
func (s *Store) StartCleanup(ctx context.Context, interval time.Duration, onError func(error)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Cleanup(ctx); err != nil && onError != nil {
					onError(err)
				}
			}
		}
	}()
}
