// Package trace mantiene el contexto de correlación (trace id, span id, inicio)
// de cada request. Cada request posee su propia celda dentro de su
// context.Context, de modo que requests concurrentes nunca comparten estado.
package trace

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	TraceIDPrefix = "trace_"
	SpanIDPrefix  = "span_"

	HeaderTraceID = "X-Trace-Id"
	HeaderSpanID  = "X-Span-Id"
)

// Context es la terna de correlación de la unidad de trabajo actual.
// El valor cero significa "sin trace".
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	StartTime    time.Time
}

func (c Context) IsZero() bool {
	return c.TraceID == "" && c.SpanID == ""
}

type scope struct {
	mu  sync.RWMutex
	cur Context
}

func (s *scope) load() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *scope) store(c Context) {
	s.mu.Lock()
	s.cur = c
	s.mu.Unlock()
}

func (s *scope) swap(c Context) Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cur
	s.cur = c
	return prev
}

type scopeKey struct{}

// NewScope instala una celda vacía en ctx. Todo lo que se derive de ese ctx
// comparte la misma celda.
func NewScope(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, &scope{})
}

func scopeFrom(ctx context.Context) *scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s
}

func ensureScope(ctx context.Context) (context.Context, *scope) {
	if s := scopeFrom(ctx); s != nil {
		return ctx, s
	}
	ctx = NewScope(ctx)
	return ctx, scopeFrom(ctx)
}

// FromContext devuelve el contexto de trace activo, o false si no hay ninguno.
func FromContext(ctx context.Context) (Context, bool) {
	s := scopeFrom(ctx)
	if s == nil {
		return Context{}, false
	}
	c := s.load()
	if c.IsZero() {
		return Context{}, false
	}
	return c, true
}

func TraceID(ctx context.Context) string {
	c, _ := FromContext(ctx)
	return c.TraceID
}

func SpanID(ctx context.Context) string {
	c, _ := FromContext(ctx)
	return c.SpanID
}

func StartTime(ctx context.Context) time.Time {
	c, _ := FromContext(ctx)
	return c.StartTime
}

// Propagate adopta un trace/span recibido de un servicio anterior sin tocar la hora de inicio.
func Propagate(ctx context.Context, traceID, spanID string) context.Context {
	ctx, s := ensureScope(ctx)
	s.mu.Lock()
	s.cur.TraceID = traceID
	s.cur.SpanID = spanID
	s.mu.Unlock()
	return ctx
}

// Clear vacía la celda del request.
func Clear(ctx context.Context) {
	if s := scopeFrom(ctx); s != nil {
		s.store(Context{})
	}
}

// Extract adopta el trace entrante: primero X-Trace-Id/X-Span-Id, si no el
// encabezado W3C traceparent.
func Extract(ctx context.Context, header http.Header) context.Context {
	ctx, _ = ensureScope(ctx)
	if traceID := strings.TrimSpace(header.Get(HeaderTraceID)); traceID != "" {
		return Propagate(ctx, traceID, strings.TrimSpace(header.Get(HeaderSpanID)))
	}
	extracted := propagation.TraceContext{}.Extract(ctx, propagation.HeaderCarrier(header))
	sc := oteltrace.SpanContextFromContext(extracted)
	if !sc.IsValid() {
		return ctx
	}
	return Propagate(ctx, TraceIDPrefix+sc.TraceID().String(), SpanIDPrefix+sc.SpanID().String())
}

// Inject escribe el trace activo en los encabezados salientes.
func Inject(ctx context.Context, header http.Header) {
	c, ok := FromContext(ctx)
	if !ok {
		return
	}
	inject(ctx, c, header)
}

func inject(ctx context.Context, c Context, header http.Header) {
	header.Set(HeaderTraceID, c.TraceID)
	if c.SpanID != "" {
		header.Set(HeaderSpanID, c.SpanID)
	}

	tid, err := oteltrace.TraceIDFromHex(strings.TrimPrefix(c.TraceID, TraceIDPrefix))
	if err != nil {
		return
	}
	sid, err := oteltrace.SpanIDFromHex(strings.TrimPrefix(c.SpanID, SpanIDPrefix))
	if err != nil {
		return
	}
	sc := oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: oteltrace.FlagsSampled,
		Remote:     true,
	})
	propagation.TraceContext{}.Inject(oteltrace.ContextWithRemoteSpanContext(ctx, sc), propagation.HeaderCarrier(header))
}
