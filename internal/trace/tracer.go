package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"user-service/internal/telemetry"
)

// Level es la severidad de un evento de log.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const logOperation = "log_event"

// Tracer abre y cierra el trace de cada request y emite los eventos asociados.
type Tracer struct {
	reporter    telemetry.Reporter
	serviceName string
	logger      *zap.Logger
	clock       func() time.Time
}

// NewTracer construye un Tracer que emite a reporter.
func NewTracer(reporter telemetry.Reporter, serviceName string, logger *zap.Logger) *Tracer {
	if reporter == nil {
		reporter = telemetry.NopReporter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{
		reporter:    reporter,
		serviceName: serviceName,
		logger:      logger,
		clock:       time.Now,
	}
}

// WithClock reemplaza la fuente de tiempo (tests).
func (t *Tracer) WithClock(clock func() time.Time) *Tracer {
	if clock != nil {
		t.clock = clock
	}
	return t
}

func NewTraceID() string {
	return TraceIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func isTraceID(id string) bool {
	return len(id) > len(TraceIDPrefix) && strings.HasPrefix(id, TraceIDPrefix)
}

func NewSpanID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return SpanIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	}
	return SpanIDPrefix + hex.EncodeToString(b[:])
}

// Start abre la unidad de trabajo del request y emite el span inicial.
// Si el request trajo un trace de un servicio anterior con formato trace_*, se
// continúa ese trace y el span recibido queda como padre. Cualquier otro id
// entrante se descarta y se genera uno nuevo.
func (t *Tracer) Start(ctx context.Context, operation, method, url, userID string) (context.Context, string) {
	ctx, s := ensureScope(ctx)

	prev := s.load()
	c := Context{
		TraceID:   NewTraceID(),
		SpanID:    NewSpanID(),
		StartTime: t.clock(),
	}
	if isTraceID(prev.TraceID) && prev.StartTime.IsZero() {
		c.TraceID = prev.TraceID
		c.ParentSpanID = prev.SpanID
	}
	s.store(c)

	evt := telemetry.Event{
		TraceID:      c.TraceID,
		SpanID:       c.SpanID,
		ParentSpanID: c.ParentSpanID,
		ServiceName:  t.serviceName,
		Operation:    operation,
		EventType:    telemetry.EventTypeSpan,
		Timestamp:    telemetry.Timestamp(c.StartTime),
		Status:       telemetry.StatusSuccess,
		HTTPMethod:   method,
		HTTPURL:      url,
		UserID:       telemetry.String(userID),
	}
	t.reporter.Report(evt)

	t.logger.Debug("trace started",
		zap.String("trace_id", c.TraceID),
		zap.String("span_id", c.SpanID),
		zap.String("operation", operation),
	)
	return ctx, c.TraceID
}

// Finish emite el span de cierre y limpia el contexto del request.
// Sin trace activo no hace nada.
func (t *Tracer) Finish(ctx context.Context, operation string, statusCode int, errorMessage string) {
	s := scopeFrom(ctx)
	if s == nil {
		return
	}
	c := s.swap(Context{})
	if c.IsZero() {
		return
	}

	now := t.clock()
	var duration int64
	if !c.StartTime.IsZero() {
		duration = now.Sub(c.StartTime).Milliseconds()
	}
	status := telemetry.StatusSuccess
	if errorMessage != "" {
		status = telemetry.StatusError
	}

	t.reporter.Report(telemetry.Event{
		TraceID:        c.TraceID,
		SpanID:         c.SpanID,
		ParentSpanID:   c.ParentSpanID,
		ServiceName:    t.serviceName,
		Operation:      operation + "_complete",
		EventType:      telemetry.EventTypeSpan,
		Timestamp:      telemetry.Timestamp(now),
		DurationMs:     telemetry.Int64(duration),
		Status:         status,
		HTTPStatusCode: telemetry.Int(statusCode),
		ErrorMessage:   telemetry.String(errorMessage),
	})

	t.logger.Debug("trace finished",
		zap.String("trace_id", c.TraceID),
		zap.String("operation", operation),
		zap.Int("status", statusCode),
		zap.Int64("duration_ms", duration),
	)
}

// ServiceCall describe una llamada saliente ya completada. SpanID es el span
// que se envió al servicio destino; vacío genera uno nuevo.
type ServiceCall struct {
	SpanID          string
	TargetService   string
	TargetOperation string
	Method          string
	URL             string
	Duration        time.Duration
	StatusCode      int
}

// RecordServiceCall emite un span hijo del trace activo. No modifica el contexto.
func (t *Tracer) RecordServiceCall(ctx context.Context, call ServiceCall) {
	c, ok := FromContext(ctx)
	if !ok {
		t.logger.Debug("service call without active trace",
			zap.String("target_service", call.TargetService),
			zap.String("operation", call.TargetOperation),
		)
		return
	}

	spanID := call.SpanID
	if spanID == "" {
		spanID = NewSpanID()
	}
	status := telemetry.StatusSuccess
	if call.StatusCode == 0 || call.StatusCode >= 400 {
		status = telemetry.StatusError
	}
	t.reporter.Report(telemetry.Event{
		TraceID:        c.TraceID,
		SpanID:         spanID,
		ParentSpanID:   c.SpanID,
		ServiceName:    t.serviceName,
		Operation:      call.TargetService + "_" + call.TargetOperation,
		EventType:      telemetry.EventTypeSpan,
		Timestamp:      telemetry.Timestamp(t.clock()),
		DurationMs:     telemetry.Int64(call.Duration.Milliseconds()),
		Status:         status,
		HTTPMethod:     call.Method,
		HTTPURL:        call.URL,
		HTTPStatusCode: telemetry.Int(call.StatusCode),
		Metadata:       "Outbound call to " + call.TargetService,
	})
}

// LogEvent escribe el mensaje en el log local y, si hay trace activo,
// lo envía también al colector como evento LOG.
func (t *Tracer) LogEvent(ctx context.Context, message string, level Level) {
	c, ok := FromContext(ctx)

	fields := []zap.Field{zap.String("trace_id", c.TraceID), zap.String("span_id", c.SpanID)}
	switch level {
	case LevelError:
		t.logger.Error(message, fields...)
	case LevelWarn:
		t.logger.Warn(message, fields...)
	default:
		level = LevelInfo
		t.logger.Info(message, fields...)
	}

	if !ok {
		return
	}
	status := telemetry.StatusSuccess
	if level == LevelError {
		status = telemetry.StatusError
	}
	t.reporter.Report(telemetry.Event{
		TraceID:     c.TraceID,
		SpanID:      c.SpanID,
		ServiceName: t.serviceName,
		Operation:   logOperation,
		EventType:   telemetry.EventTypeLog,
		Timestamp:   telemetry.Timestamp(t.clock()),
		Status:      status,
		LogLevel:    string(level),
		Message:     message,
	})
}
