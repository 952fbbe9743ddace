package session

import (
	"errors"
	"net/http"

	"github.com/fyerfyer/fyer-session/logger"
	"github.com/fyerfyer/fyer-session/middleware"
	"github.com/fyerfyer/fyer-session/session"
)

// ErrCommitFailed 会话提交失败后，处理器继续写入的内容会被丢弃
var ErrCommitFailed = errors.New("session: commit failed, response body discarded")

// MiddlewareBuilder 为每个请求加载会话，并在响应头发出之前提交会话
type MiddlewareBuilder struct {
	Manager *session.Manager
	Logger  logger.Logger
	// FailOnStoreError 为 true 时存储不可用直接返回 500，否则使用新会话继续处理
	FailOnStoreError bool
}

func NewMiddlewareBuilder(m *session.Manager) *MiddlewareBuilder {
	return &MiddlewareBuilder{Manager: m}
}

func (b *MiddlewareBuilder) Build() middleware.Middleware {
	l := b.Logger
	if l == nil {
		l = logger.GetDefaultLogger()
	}
	l = l.WithFields(logger.String("component", "fyer-session"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := b.Manager.Load(r.Context(), r)
			if err != nil && b.FailOnStoreError {
				l.Error("session store unavailable",
					logger.String("hook", "onRequest"), logger.FieldError(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			r = r.WithContext(session.NewContext(r.Context(), s))
			cw := &commitWriter{
				ResponseWriter: w,
				logger:         l,
				commit: func() error {
					return b.Manager.Commit(r.Context(), w, s)
				},
			}
			next.ServeHTTP(cw, r)
			cw.finish()
		})
	}
}

// commitWriter 在第一次写响应头之前提交会话
type commitWriter struct {
	http.ResponseWriter
	commit      func() error
	logger      logger.Logger
	committed   bool
	failed      bool
	wroteHeader bool
}

func (w *commitWriter) runCommit() bool {
	if w.committed {
		return !w.failed
	}
	w.committed = true
	if err := w.commit(); err != nil {
		w.logger.Error("failed to commit session",
			logger.String("hook", "onSend"), logger.FieldError(err))
		w.failed = true
	}
	return !w.failed
}

func (w *commitWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if !w.runCommit() {
		http.Error(w.ResponseWriter, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.failed {
		return 0, ErrCommitFailed
	}
	return w.ResponseWriter.Write(b)
}

func (w *commitWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok && !w.failed {
		f.Flush()
	}
}

func (w *commitWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// finish 处理器没有写任何内容时仍然需要提交会话
func (w *commitWriter) finish() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
}
