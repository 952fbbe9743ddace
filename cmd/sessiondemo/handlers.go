package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fyerfyer/fyer-session/logger"
	"github.com/fyerfyer/fyer-session/middleware"
	"github.com/fyerfyer/fyer-session/middleware/accesslog"
	"github.com/fyerfyer/fyer-session/middleware/opentracing"
	prommw "github.com/fyerfyer/fyer-session/middleware/prometheus"
	"github.com/fyerfyer/fyer-session/middleware/recovery"
	sessionmw "github.com/fyerfyer/fyer-session/middleware/session"
	"github.com/fyerfyer/fyer-session/session"
)

// newHandler 注册路由并按 恢复 → 会话 → 访问日志 → 追踪 → 指标 的顺序组装中间件
func newHandler(m *session.Manager, l logger.Logger) http.Handler {
	reg := prometheus.NewRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("/", counter)
	mux.HandleFunc("/set", set)
	mux.HandleFunc("/touch", touch)
	mux.HandleFunc("/regenerate", regenerate)
	mux.HandleFunc("/logout", logout)

	app := middleware.Chain(mux,
		recovery.NewMiddlewareBuilder().SetLogger(l).Build(),
		(&sessionmw.MiddlewareBuilder{Manager: m, Logger: l}).Build(),
		accesslog.NewMiddlewareBuilder().SetLogger(l).Build(),
		(&opentracing.MiddlewareBuilder{}).Build(),
		(&prommw.MiddlewareBuilder{
			NameSpace:  "fyer_session",
			SubSystem:  "demo",
			Name:       "http_request_duration_microseconds",
			Help:       "HTTP request duration by session state",
			Registerer: reg,
		}).Build(),
	)

	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	root.Handle("/", app)
	return root
}

func writeJSON(w http.ResponseWriter, s *session.Session) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"created": s.Created(),
		"rotated": s.Rotated(),
		"data":    s.Data(),
	})
}

func current(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "no session", http.StatusInternalServerError)
	}
	return s, ok
}

// counter 统计当前会话的访问次数
func counter(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}
	visits := 0
	switch v, _ := s.Get("visits"); n := v.(type) {
	case int:
		visits = n
	case float64:
		visits = int(n)
	}
	s.Set("visits", visits+1)
	writeJSON(w, s)
}

// set 将查询参数 key=value 写入会话
func set(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		s.Skip()
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}
	s.Set(key, r.URL.Query().Get("value"))
	writeJSON(w, s)
}

// touch 延长会话有效期
func touch(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}
	if err := s.Touch(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s)
}

// regenerate 更换会话 id，登录后调用以防止会话固定攻击
func regenerate(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}
	if err := s.Regenerate(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s)
}

func logout(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}
	if err := s.Destroy(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
