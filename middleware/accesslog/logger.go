package accesslog

import (
	"net/http"
	"time"

	"github.com/fyerfyer/fyer-session/logger"
	"github.com/fyerfyer/fyer-session/middleware"
)

type MiddlewareBuilder struct {
	logger logger.Logger
}

func (m *MiddlewareBuilder) SetLogger(l logger.Logger) *MiddlewareBuilder {
	m.logger = l
	return m
}

func NewMiddlewareBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{
		logger: logger.GetDefaultLogger(),
	}
}

// Build 每个请求结束后输出一条访问日志，会话 id 不会被记录
func (m *MiddlewareBuilder) Build() middleware.Middleware {
	l := m.logger
	if l == nil {
		l = logger.GetDefaultLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := middleware.NewStatusWriter(w)
			next.ServeHTTP(sw, r)

			l.Info("request",
				logger.String("host", r.Host),
				logger.String("path", r.URL.Path),
				logger.String("method", r.Method),
				logger.Int("status", sw.Status()),
				logger.Duration("duration", time.Since(start)),
				logger.String("session", middleware.SessionState(r.Context())),
			)
		})
	}
}
