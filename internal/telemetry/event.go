package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType distingue spans de logs.
type EventType string

const (
	EventTypeSpan EventType = "SPAN"
	EventTypeLog  EventType = "LOG"
)

// Status describe el resultado de un span.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Event es el registro que recibe el colector.
type Event struct {
	TraceID        string    `json:"traceId"`
	SpanID         string    `json:"spanId"`
	ParentSpanID   string    `json:"parentSpanId,omitempty"`
	ServiceName    string    `json:"serviceName"`
	Operation      string    `json:"operation"`
	EventType      EventType `json:"eventType"`
	Timestamp      Timestamp `json:"timestamp"`
	DurationMs     *int64    `json:"durationMs,omitempty"`
	Status         Status    `json:"status,omitempty"`
	HTTPMethod     string    `json:"httpMethod,omitempty"`
	HTTPURL        string    `json:"httpUrl,omitempty"`
	HTTPStatusCode *int      `json:"httpStatusCode,omitempty"`
	ErrorMessage   *string   `json:"errorMessage,omitempty"`
	UserID         *string   `json:"userId,omitempty"`
	Metadata       string    `json:"metadata,omitempty"`
	LogLevel       string    `json:"logLevel,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// Timestamp se serializa como [año, mes, día, hora, minuto, segundo, nanos],
// el formato de fecha local que espera el colector.
type Timestamp time.Time

func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	tt := time.Time(t)
	return json.Marshal([7]int{
		tt.Year(), int(tt.Month()), tt.Day(),
		tt.Hour(), tt.Minute(), tt.Second(), tt.Nanosecond(),
	})
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var parts []int
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) < 6 {
		return fmt.Errorf("timestamp: expected at least 6 elements, got %d", len(parts))
	}
	nanos := 0
	if len(parts) > 6 {
		nanos = parts[6]
	}
	*t = Timestamp(time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], nanos, time.Local))
	return nil
}

// Int64 y String ayudan a poblar los campos opcionales.
func Int64(v int64) *int64 { return &v }

func Int(v int) *int { return &v }

func String(v string) *string { return &v }
