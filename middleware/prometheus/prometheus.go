package prometheus

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fyerfyer/fyer-session/middleware"
)

// MiddlewareBuilder 统计请求耗时(微秒)，按方法、状态码和会话状态分组。
// 需要放在会话中间件之内才能读到会话状态。
type MiddlewareBuilder struct {
	NameSpace  string
	Name       string
	SubSystem  string
	Help       string
	Registerer prometheus.Registerer
}

func (m *MiddlewareBuilder) Build() middleware.Middleware {
	vec := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:      m.Name,
		Help:      m.Help,
		Namespace: m.NameSpace,
		Subsystem: m.SubSystem,
		Objectives: map[float64]float64{
			0.5:   0.05,
			0.9:   0.01,
			0.99:  0.001,
			0.999: 0.0001,
		},
	}, []string{"method", "status", "session"})

	reg := m.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
		vec = are.ExistingCollector.(*prometheus.SummaryVec)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			sw := middleware.NewStatusWriter(w)
			defer func() {
				duration := time.Since(startTime).Microseconds()
				vec.WithLabelValues(r.Method,
					strconv.Itoa(sw.Status()),
					middleware.SessionState(r.Context())).
					Observe(float64(duration))
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
