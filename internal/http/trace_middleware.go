package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"user-service/internal/metrics"
	"user-service/internal/trace"
)

const traceIDKey = "trace_id"

// traceScopeMiddleware da a cada request su propio contexto de trace y adopta
// el trace entrante si lo hay.
func traceScopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := trace.Extract(trace.NewScope(c.Request.Context()), c.Request.Header)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// tracedOperation abre el trace de la operación antes del handler y lo cierra
// con el status final, también si el handler entra en pánico. El último error
// de c.Errors se reporta como errorMessage.
func tracedOperation(tracer *trace.Tracer, m *metrics.Metrics, operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, traceID := tracer.Start(c.Request.Context(), operation, c.Request.Method, requestURL(c.Request), c.Param("id"))
		c.Request = c.Request.WithContext(ctx)
		c.Set(traceIDKey, traceID)
		c.Header(trace.HeaderTraceID, traceID)

		defer func() {
			status := c.Writer.Status()
			errMsg := ""
			if last := c.Errors.Last(); last != nil {
				errMsg = last.Error()
			}
			rec := recover()
			if rec != nil {
				status = http.StatusInternalServerError
				errMsg = fmt.Sprint(rec)
			}
			tracer.Finish(ctx, operation, status, errMsg)
			m.ObserveRequest(operation, strconv.Itoa(status), time.Since(start))
			if rec != nil {
				// gin.Recovery responde el 500.
				panic(rec)
			}
		}()

		c.Next()
	}
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.Path
}
