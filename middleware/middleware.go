package middleware

import (
	"context"
	"net/http"

	"github.com/fyerfyer/fyer-session/session"
)

// Middleware 包装一个 http.Handler
type Middleware func(next http.Handler) http.Handler

// Chain 按顺序组合中间件，第一个位于最外层
func Chain(h http.Handler, ms ...Middleware) http.Handler {
	for i := len(ms) - 1; i >= 0; i-- {
		h = ms[i](h)
	}
	return h
}

// StatusWriter 记录响应状态码
type StatusWriter struct {
	http.ResponseWriter
	status int
}

func NewStatusWriter(w http.ResponseWriter) *StatusWriter {
	return &StatusWriter{ResponseWriter: w}
}

func (w *StatusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Status 返回写出的状态码，处理器没有写任何内容时为 200
func (w *StatusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Written 报告处理器是否已经写出响应头
func (w *StatusWriter) Written() bool {
	return w.status != 0
}

func (w *StatusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

const (
	StateNone     = "none"
	StateCreated  = "created"
	StateRestored = "restored"
	StateRotated  = "rotated"
	StateDeleted  = "deleted"
)

// SessionState 返回请求所携带会话的状态，用于指标和日志
func SessionState(ctx context.Context) string {
	s, ok := session.FromContext(ctx)
	if !ok {
		return StateNone
	}
	switch {
	case s.Deleted():
		return StateDeleted
	case s.Rotated():
		return StateRotated
	case s.Created():
		return StateCreated
	default:
		return StateRestored
	}
}
