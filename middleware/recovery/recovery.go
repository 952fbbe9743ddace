package recovery

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/fyerfyer/fyer-session/logger"
	"github.com/fyerfyer/fyer-session/middleware"
)

// stackLines 日志中保留的调用栈行数
const stackLines = 6

// MiddlewareBuilder 恢复处理器中的 panic 并返回 500。
// 放在会话中间件之外时，panic 的请求不会提交会话。
type MiddlewareBuilder struct {
	logger logger.Logger
}

func NewMiddlewareBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{logger: logger.GetDefaultLogger()}
}

func (m *MiddlewareBuilder) SetLogger(l logger.Logger) *MiddlewareBuilder {
	m.logger = l
	return m
}

func (m *MiddlewareBuilder) Build() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := middleware.NewStatusWriter(w)
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				lines := strings.Split(string(buf[:n]), "\n")
				if len(lines) > stackLines {
					lines = lines[:stackLines]
				}
				m.logger.Error("panic recovered",
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.String("panic", fmt.Sprint(err)),
					logger.String("stack", strings.Join(lines, "\n")),
				)

				if !sw.Written() {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
