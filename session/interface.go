package session

import (
	"context"
	"net/http"
	"time"

	"github.com/fyerfyer/fyer-session/session/cookiepropagator"
)

// Entry 是存储中的一条会话记录，Expiry 为 nil 表示永不过期
type Entry struct {
	Data   map[string]any
	Expiry *time.Time
}

// Expired 判断记录在 now 时刻是否已过期
func (e *Entry) Expired(now time.Time) bool {
	return e.Expiry != nil && !e.Expiry.After(now)
}

// Store 负责有状态会话数据的持久化。
// 同一 id 上的 Set/Destroy/Touch 需要保证线性一致，后写者胜出即可。
type Store interface {
	// Get 返回 id 对应的记录。
	// 记录不存在或已过期时都返回 (nil, nil)，调用方无法区分两者。
	Get(ctx context.Context, id string) (*Entry, error)
	// Set 写入或覆盖记录
	Set(ctx context.Context, id string, data map[string]any, expiry *time.Time) error
	// Destroy 删除记录，记录不存在时不报错
	Destroy(ctx context.Context, id string) error
}

// Toucher 只更新过期时间而不重写数据
type Toucher interface {
	Touch(ctx context.Context, id string, expiry *time.Time) error
}

// Lister 返回所有未过期的会话数据
type Lister interface {
	All(ctx context.Context) (map[string]map[string]any, error)
}

// Counter 返回未过期会话的数量
type Counter interface {
	Len(ctx context.Context) (int, error)
}

// Clearer 删除所有会话
type Clearer interface {
	Clear(ctx context.Context) error
}

// Propagator 负责会话令牌在请求和响应中的传递
type Propagator interface {
	Extract(req *http.Request) (string, error)
	Insert(resp http.ResponseWriter, value string, opts cookiepropagator.Options, expiry time.Time) error
	Remove(resp http.ResponseWriter, opts cookiepropagator.Options) error
}

// ExpiryPtr 将零值时间转换为 nil
func ExpiryPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CloneData 浅拷贝会话数据，nil 返回空 map
func CloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
