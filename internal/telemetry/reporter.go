package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"user-service/internal/metrics"
)

// EventsPath es la ruta del colector que recibe eventos.
const EventsPath = "/api/telemetry/events"

// Reporter publica eventos de telemetría sin bloquear al llamador.
type Reporter interface {
	Report(evt Event)
}

// NopReporter descarta todos los eventos.
type NopReporter struct{}

func (NopReporter) Report(Event) {}

// HTTPReporterConfig parametriza el envío al colector.
type HTTPReporterConfig struct {
	BaseURL     string
	ServiceName string
	QueueSize   int
	Workers     int
	Timeout     time.Duration
}

// HTTPReporter encola eventos y los envía al colector desde workers en segundo plano.
type HTTPReporter struct {
	endpoint    string
	serviceName string
	workers     int
	timeout     time.Duration
	client      *http.Client
	logger      *zap.Logger
	metrics     *metrics.Metrics
	clock       func() time.Time

	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	wg      sync.WaitGroup
	started sync.Once
}

// NewHTTPReporter construye el reporter; hay que llamar Start para enviar.
func NewHTTPReporter(cfg HTTPReporterConfig, logger *zap.Logger, m *metrics.Metrics) *HTTPReporter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPReporter{
		endpoint:    strings.TrimRight(cfg.BaseURL, "/") + EventsPath,
		serviceName: cfg.ServiceName,
		workers:     cfg.Workers,
		timeout:     cfg.Timeout,
		client:      &http.Client{},
		logger:      logger,
		metrics:     m,
		clock:       time.Now,
		queue:       make(chan Event, cfg.QueueSize),
	}
}

// Start lanza los workers de envío. Llamadas repetidas no tienen efecto.
func (r *HTTPReporter) Start() {
	r.started.Do(func() {
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.run()
		}
	})
}

func (r *HTTPReporter) Report(evt Event) {
	if r == nil {
		return
	}
	if evt.ServiceName == "" {
		evt.ServiceName = r.serviceName
	}
	if evt.Timestamp.Time().IsZero() {
		evt.Timestamp = Timestamp(r.clock())
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.metrics.TelemetryEvent("dropped")
		return
	}
	select {
	case r.queue <- evt:
	default:
		r.metrics.TelemetryEvent("dropped")
		r.logger.Debug("telemetry queue full, event dropped",
			zap.String("operation", evt.Operation),
			zap.String("trace_id", evt.TraceID),
		)
	}
}

// Close deja de aceptar eventos y espera a que se vacíe la cola o expire ctx.
func (r *HTTPReporter) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *HTTPReporter) run() {
	defer r.wg.Done()
	for evt := range r.queue {
		if err := r.send(evt); err != nil {
			r.metrics.TelemetryEvent("failed")
			r.logger.Warn("telemetry send failed",
				zap.String("operation", evt.Operation),
				zap.String("trace_id", evt.TraceID),
				zap.Error(err),
			)
			continue
		}
		r.metrics.TelemetryEvent("sent")
	}
}

func (r *HTTPReporter) send(evt Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector http error: status=%d", resp.StatusCode)
	}
	return nil
}
