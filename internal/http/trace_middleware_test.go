package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-service/internal/metrics"
	"user-service/internal/telemetry"
	"user-service/internal/trace"
)

func TestTracedOperation_FinishesOnPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reporter := &recordingReporter{}
	tracer := trace.NewTracer(reporter, "user-service", zap.NewNop())

	r := gin.New()
	r.Use(gin.RecoveryWithWriter(io.Discard), traceScopeMiddleware())
	r.GET("/boom", tracedOperation(tracer, metrics.New("panic_test"), "boom"), func(c *gin.Context) {
		panic("handler exploded")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	starts := reporter.byOperation("boom")
	finishes := reporter.byOperation("boom_complete")
	if len(starts) != 1 || len(finishes) != 1 {
		t.Fatalf("expected one start and one finish, got %d/%d", len(starts), len(finishes))
	}
	finish := finishes[0]
	if finish.TraceID != starts[0].TraceID || finish.Status != telemetry.StatusError {
		t.Fatalf("unexpected finish event: %+v", finish)
	}
	if finish.HTTPStatusCode == nil || *finish.HTTPStatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500 on finish event")
	}
	if finish.ErrorMessage == nil || *finish.ErrorMessage != "handler exploded" {
		t.Fatalf("expected panic message on finish event")
	}
}
