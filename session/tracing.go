package session

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NewTracedStore 为存储的每次调用创建一个 span。
// 只有内层存储实现了 Toucher 时返回值才实现 Toucher，
// 否则 Session.Touch 会按正常流程回退到 Set。
func NewTracedStore(store Store, tracer trace.Tracer) Store {
	ts := &tracedStore{store: store, tracer: tracer}
	if _, ok := store.(Toucher); ok {
		return &tracedTouchStore{tracedStore: ts}
	}
	return ts
}

type tracedStore struct {
	store  Store
	tracer trace.Tracer
}

func (t *tracedStore) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "session.store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("session.store.op", op)))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *tracedStore) Get(ctx context.Context, id string) (*Entry, error) {
	ctx, span := t.start(ctx, "get")
	entry, err := t.store.Get(ctx, id)
	span.SetAttributes(attribute.Bool("session.store.hit", entry != nil))
	finish(span, err)
	return entry, err
}

func (t *tracedStore) Set(ctx context.Context, id string, data map[string]any, expiry *time.Time) error {
	ctx, span := t.start(ctx, "set")
	span.SetAttributes(attribute.Int("session.data.keys", len(data)))
	err := t.store.Set(ctx, id, data, expiry)
	finish(span, err)
	return err
}

func (t *tracedStore) Destroy(ctx context.Context, id string) error {
	ctx, span := t.start(ctx, "destroy")
	err := t.store.Destroy(ctx, id)
	finish(span, err)
	return err
}

func (t *tracedStore) All(ctx context.Context) (map[string]map[string]any, error) {
	l, ok := t.store.(Lister)
	if !ok {
		return nil, ErrNotSupported
	}
	ctx, span := t.start(ctx, "all")
	all, err := l.All(ctx)
	finish(span, err)
	return all, err
}

func (t *tracedStore) Len(ctx context.Context) (int, error) {
	c, ok := t.store.(Counter)
	if !ok {
		return 0, ErrNotSupported
	}
	ctx, span := t.start(ctx, "len")
	n, err := c.Len(ctx)
	finish(span, err)
	return n, err
}

func (t *tracedStore) Clear(ctx context.Context) error {
	c, ok := t.store.(Clearer)
	if !ok {
		return ErrNotSupported
	}
	ctx, span := t.start(ctx, "clear")
	err := c.Clear(ctx)
	finish(span, err)
	return err
}

type tracedTouchStore struct {
	*tracedStore
}

func (t *tracedTouchStore) Touch(ctx context.Context, id string, expiry *time.Time) error {
	ctx, span := t.start(ctx, "touch")
	err := t.store.(Toucher).Touch(ctx, id, expiry)
	finish(span, err)
	return err
}
