package trace

import (
	"net/http"
	"strings"
)

type transport struct {
	base   http.RoundTripper
	tracer *Tracer
	target string
}

// Transport envuelve base para propagar el trace activo en cada llamada
// saliente y registrarla como service call hacia target. El span enviado en
// los encabezados es el mismo que se registra para la llamada.
func (t *Tracer) Transport(base http.RoundTripper, target string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{base: base, tracer: t, target: target}
}

func (rt *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var spanID string
	if c, ok := FromContext(ctx); ok {
		spanID = NewSpanID()
		c.SpanID = spanID
		req = req.Clone(ctx)
		inject(ctx, c, req.Header)
	}

	start := rt.tracer.clock()
	resp, err := rt.base.RoundTrip(req)
	elapsed := rt.tracer.clock().Sub(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	rt.tracer.RecordServiceCall(ctx, ServiceCall{
		SpanID:          spanID,
		TargetService:   rt.target,
		TargetOperation: operationFromPath(req.URL.Path),
		Method:          req.Method,
		URL:             req.URL.String(),
		Duration:        elapsed,
		StatusCode:      status,
	})
	return resp, err
}

// operationFromPath usa el último segmento de la ruta como nombre de operación.
func operationFromPath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}
