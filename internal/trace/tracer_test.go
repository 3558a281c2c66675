package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"user-service/internal/telemetry"
)

type recordingReporter struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (r *recordingReporter) Report(evt telemetry.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recordingReporter) all() []telemetry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telemetry.Event(nil), r.events...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTracer_StartAndFinish(t *testing.T) {
	rep := &recordingReporter{}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	tr := NewTracer(rep, "user-service", zap.NewNop()).WithClock(clock.Now)

	ctx, traceID := tr.Start(context.Background(), "get_user", http.MethodGet, "/api/users/1", "1")
	assert.True(t, strings.HasPrefix(traceID, TraceIDPrefix))
	assert.Len(t, strings.TrimPrefix(traceID, TraceIDPrefix), 32)
	assert.Equal(t, traceID, TraceID(ctx))
	assert.True(t, strings.HasPrefix(SpanID(ctx), SpanIDPrefix))
	assert.Equal(t, clock.Now(), StartTime(ctx))

	clock.Advance(42 * time.Millisecond)
	tr.Finish(ctx, "get_user", http.StatusOK, "")

	_, ok := FromContext(ctx)
	assert.False(t, ok)
	assert.Empty(t, TraceID(ctx))

	events := rep.all()
	require.Len(t, events, 2)
	start, finish := events[0], events[1]
	assert.Equal(t, "get_user", start.Operation)
	assert.Equal(t, telemetry.EventTypeSpan, start.EventType)
	assert.Equal(t, "1", *start.UserID)
	assert.Equal(t, "get_user_complete", finish.Operation)
	assert.Equal(t, traceID, finish.TraceID)
	assert.Equal(t, start.SpanID, finish.SpanID)
	assert.Equal(t, int64(42), *finish.DurationMs)
	assert.Equal(t, telemetry.StatusSuccess, finish.Status)
	assert.Equal(t, "", *finish.ErrorMessage)
}

func TestTracer_FinishWithError(t *testing.T) {
	rep := &recordingReporter{}
	tr := NewTracer(rep, "user-service", zap.NewNop())

	ctx, _ := tr.Start(context.Background(), "login_user", http.MethodPost, "/api/users/login", "")
	tr.Finish(ctx, "login_user", http.StatusUnauthorized, "invalid credentials")

	events := rep.all()
	require.Len(t, events, 2)
	assert.Equal(t, telemetry.StatusError, events[1].Status)
	assert.Equal(t, http.StatusUnauthorized, *events[1].HTTPStatusCode)
	assert.Equal(t, "invalid credentials", *events[1].ErrorMessage)
}

func TestTracer_FinishWithoutTraceIsNoop(t *testing.T) {
	rep := &recordingReporter{}
	tr := NewTracer(rep, "user-service", zap.NewNop())

	tr.Finish(context.Background(), "get_user", http.StatusOK, "")
	tr.Finish(NewScope(context.Background()), "get_user", http.StatusOK, "")
	assert.Empty(t, rep.all())
}

func TestTracer_ConcurrentRequestsAreIsolated(t *testing.T) {
	tr := NewTracer(&recordingReporter{}, "user-service", zap.NewNop())

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, traceID := tr.Start(context.Background(), "get_user", http.MethodGet, "/api/users/1", "")
			spanID, started := SpanID(ctx), StartTime(ctx)
			for j := 0; j < 20; j++ {
				if got := TraceID(ctx); got != traceID {
					errs <- "trace id " + got
					return
				}
				if got := SpanID(ctx); got != spanID {
					errs <- "span id " + got
					return
				}
				if got := StartTime(ctx); !got.Equal(started) {
					errs <- "start time " + got.String()
					return
				}
				time.Sleep(time.Microsecond)
			}
			tr.Finish(ctx, "get_user", http.StatusOK, "")
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Fatalf("request observed foreign %s", got)
	}
}

func TestTracer_RecordServiceCallKeepsContext(t *testing.T) {
	rep := &recordingReporter{}
	tr := NewTracer(rep, "user-service", zap.NewNop())

	ctx, traceID := tr.Start(context.Background(), "get_user", http.MethodGet, "/api/users/1", "")
	before, _ := FromContext(ctx)

	tr.RecordServiceCall(ctx, ServiceCall{
		TargetService:   "order-service",
		TargetOperation: "list_orders",
		Method:          http.MethodGet,
		URL:             "http://orders/api/orders",
		Duration:        15 * time.Millisecond,
		StatusCode:      http.StatusOK,
	})

	after, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, before, after)

	events := rep.all()
	require.Len(t, events, 2)
	call := events[1]
	assert.Equal(t, "order-service_list_orders", call.Operation)
	assert.Equal(t, traceID, call.TraceID)
	assert.Equal(t, before.SpanID, call.ParentSpanID)
	assert.NotEqual(t, before.SpanID, call.SpanID)
	assert.Equal(t, "Outbound call to order-service", call.Metadata)
	assert.Equal(t, int64(15), *call.DurationMs)
}

func TestPropagateAdoptsUpstreamTrace(t *testing.T) {
	rep := &recordingReporter{}
	tr := NewTracer(rep, "user-service", zap.NewNop())

	ctx := Propagate(context.Background(), "trace_upstream", "span_upstream")
	assert.Equal(t, "trace_upstream", TraceID(ctx))
	assert.Equal(t, "span_upstream", SpanID(ctx))
	assert.True(t, StartTime(ctx).IsZero())
	assert.Empty(t, rep.all())

	ctx, traceID := tr.Start(ctx, "get_user", http.MethodGet, "/api/users/1", "")
	assert.Equal(t, "trace_upstream", traceID)
	events := rep.all()
	require.Len(t, events, 1)
	assert.Equal(t, "span_upstream", events[0].ParentSpanID)
	assert.NotEqual(t, "span_upstream", SpanID(ctx))
}

func TestTracer_StartIgnoresMalformedInboundTrace(t *testing.T) {
	rep := &recordingReporter{}
	tr := NewTracer(rep, "user-service", zap.NewNop())

	for _, inbound := range []string{"abc", TraceIDPrefix} {
		h := http.Header{}
		h.Set(HeaderTraceID, inbound)
		h.Set(HeaderSpanID, "span_upstream")
		ctx := Extract(context.Background(), h)

		ctx, traceID := tr.Start(ctx, "get_user", http.MethodGet, "/api/users/1", "")
		assert.NotEqual(t, inbound, traceID)
		assert.True(t, strings.HasPrefix(traceID, TraceIDPrefix))
		assert.Len(t, strings.TrimPrefix(traceID, TraceIDPrefix), 32)
		assert.Equal(t, traceID, TraceID(ctx))
	}

	for _, evt := range rep.all() {
		assert.Empty(t, evt.ParentSpanID)
	}
}

func TestAbsentContextReads(t *testing.T) {
	ctx := context.Background()
	_, ok := FromContext(ctx)
	assert.False(t, ok)
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
	assert.True(t, StartTime(ctx).IsZero())
}

func TestTracer_LogEvent(t *testing.T) {
	rep := &recordingReporter{}
	tr := NewTracer(rep, "user-service", zap.NewNop())

	tr.LogEvent(context.Background(), "no trace here", LevelInfo)
	assert.Empty(t, rep.all())

	ctx, traceID := tr.Start(context.Background(), "register_user", http.MethodPost, "/api/users/register", "")
	tr.LogEvent(ctx, "username taken", LevelWarn)

	events := rep.all()
	require.Len(t, events, 2)
	logEvt := events[1]
	assert.Equal(t, telemetry.EventTypeLog, logEvt.EventType)
	assert.Equal(t, traceID, logEvt.TraceID)
	assert.Equal(t, "WARN", logEvt.LogLevel)
	assert.Equal(t, "username taken", logEvt.Message)
}

func TestExtractAndInject(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderTraceID, "trace_custom")
	h.Set(HeaderSpanID, "span_custom")
	ctx := Extract(context.Background(), h)
	assert.Equal(t, "trace_custom", TraceID(ctx))

	h = http.Header{}
	h.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	ctx = Extract(context.Background(), h)
	assert.Equal(t, "trace_4bf92f3577b34da6a3ce929d0e0e4736", TraceID(ctx))
	assert.Equal(t, "span_00f067aa0ba902b7", SpanID(ctx))

	out := http.Header{}
	Inject(ctx, out)
	assert.Equal(t, "trace_4bf92f3577b34da6a3ce929d0e0e4736", out.Get(HeaderTraceID))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", out.Get("traceparent"))

	ctx = Extract(context.Background(), http.Header{})
	_, ok := FromContext(ctx)
	assert.False(t, ok)
}

func TestTransport_PropagatesAndRecords(t *testing.T) {
	var gotTrace, gotSpan, gotParent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get(HeaderTraceID)
		gotSpan = r.Header.Get(HeaderSpanID)
		gotParent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rep := &recordingReporter{}
	tr := NewTracer(rep, "user-service", zap.NewNop())
	client := &http.Client{Transport: tr.Transport(nil, "telemetry-service")}

	ctx, traceID := tr.Start(context.Background(), "health", http.MethodGet, "/health", "")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/actuator/health", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, traceID, gotTrace)

	events := rep.all()
	require.Len(t, events, 2)
	call := events[1]
	assert.Equal(t, "telemetry-service_health", call.Operation)
	assert.Equal(t, http.StatusNoContent, *call.HTTPStatusCode)
	assert.Equal(t, events[0].SpanID, call.ParentSpanID)
	assert.Equal(t, call.SpanID, gotSpan)
	assert.NotEqual(t, events[0].SpanID, gotSpan)
	assert.Equal(t, "00-"+strings.TrimPrefix(traceID, TraceIDPrefix)+"-"+strings.TrimPrefix(gotSpan, SpanIDPrefix)+"-01", gotParent)
	assert.Equal(t, events[0].SpanID, SpanID(ctx))
}
