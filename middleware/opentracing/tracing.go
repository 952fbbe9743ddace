package opentracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyerfyer/fyer-session/middleware"
	"github.com/fyerfyer/fyer-session/session"
)

type MiddlewareBuilder struct {
	Tracer trace.Tracer
}

var defaultInstrumentationName = "fyer-session"

func (m *MiddlewareBuilder) Build() middleware.Middleware {
	tracer := m.Tracer
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(defaultInstrumentationName)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			reqCtx, span := tracer.Start(reqCtx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(attribute.String("http.method", r.Method))
			span.SetAttributes(attribute.String("http.host", r.Host))
			span.SetAttributes(attribute.String("http.url", r.URL.String()))
			span.SetAttributes(attribute.String("http.scheme", r.URL.Scheme))
			span.SetAttributes(attribute.String("component", "fyer-session"))
			span.SetAttributes(attribute.String("http.proto", r.Proto))

			sw := middleware.NewStatusWriter(w)
			r = r.WithContext(reqCtx)
			next.ServeHTTP(sw, r)

			span.SetAttributes(attribute.Int("http.status_code", sw.Status()))
			if sw.Status() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.Status()))
			}
			span.SetAttributes(attribute.String("session.state", middleware.SessionState(r.Context())))
			if s, ok := session.FromContext(r.Context()); ok {
				span.SetAttributes(
					attribute.Bool("session.created", s.Created()),
					attribute.Bool("session.changed", s.Changed()),
					attribute.Bool("session.deleted", s.Deleted()),
					attribute.Bool("session.rotated", s.Rotated()),
					attribute.Bool("session.touched", s.Touched()),
					attribute.Bool("session.skipped", s.Skipped()),
				)
			}
		})
	}
}
