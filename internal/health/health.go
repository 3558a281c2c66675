// Package health agrega el estado de las dependencias del servicio.
package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

const (
	ProbePath           = "/actuator/health"
	DialTimeout         = 2 * time.Second
	ResponseReadTimeout = 3 * time.Second
	componentTelemetry  = "telemetryService"
	componentDatabase   = "database"
)

// Component es el resultado de una sonda.
type Component struct {
	Status  Status         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// Report es la respuesta agregada del endpoint de salud.
type Report struct {
	Status     Status               `json:"status"`
	Components map[string]Component `json:"components"`
}

// Probe comprueba una dependencia. Check nunca debe entrar en pánico.
type Probe interface {
	Name() string
	Critical() bool
	Check(ctx context.Context) Component
}

// Checker ejecuta las sondas registradas.
type Checker struct {
	probes []Probe
}

func NewChecker(probes ...Probe) *Checker {
	kept := make([]Probe, 0, len(probes))
	for _, p := range probes {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Checker{probes: kept}
}

// Check devuelve el reporte y si alguna sonda crítica está caída.
func (c *Checker) Check(ctx context.Context) (Report, bool) {
	report := Report{Status: StatusUp, Components: make(map[string]Component, len(c.probes))}
	criticalDown := false
	for _, p := range c.probes {
		comp := p.Check(ctx)
		report.Components[p.Name()] = comp
		if comp.Status != StatusDown {
			continue
		}
		report.Status = StatusDown
		if p.Critical() {
			criticalDown = true
		}
	}
	return report, criticalDown
}

// TelemetryProbe consulta el endpoint de salud del colector.
type TelemetryProbe struct {
	url    string
	client *http.Client
	clock  func() time.Time
}

// NewTelemetryProbe construye la sonda. wrap permite instrumentar el transporte.
func NewTelemetryProbe(baseURL string, wrap func(http.RoundTripper) http.RoundTripper) *TelemetryProbe {
	var rt http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: DialTimeout}).DialContext,
		ResponseHeaderTimeout: ResponseReadTimeout,
	}
	if wrap != nil {
		rt = wrap(rt)
	}
	return &TelemetryProbe{
		url:    strings.TrimRight(baseURL, "/") + ProbePath,
		client: &http.Client{Transport: rt, Timeout: DialTimeout + ResponseReadTimeout},
		clock:  time.Now,
	}
}

func (p *TelemetryProbe) Name() string   { return componentTelemetry }
func (p *TelemetryProbe) Critical() bool { return false }

func (p *TelemetryProbe) Check(ctx context.Context) Component {
	details := map[string]any{"url": p.url}
	start := p.clock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		details["error"] = err.Error()
		return Component{Status: StatusDown, Details: details}
	}
	resp, err := p.client.Do(req)
	details["responseTimeMs"] = p.clock().Sub(start).Milliseconds()
	if err != nil {
		details["error"] = err.Error()
		return Component{Status: StatusDown, Details: details}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		details["error"] = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return Component{Status: StatusDown, Details: details}
	}
	details["status"] = "Telemetry service is reachable"
	return Component{Status: StatusUp, Details: details}
}

// Pinger es satisfecho por *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProbe verifica la conexión a Postgres.
type DatabaseProbe struct {
	db      Pinger
	timeout time.Duration
}

func NewDatabaseProbe(db Pinger) *DatabaseProbe {
	return &DatabaseProbe{db: db, timeout: 2 * time.Second}
}

func (p *DatabaseProbe) Name() string   { return componentDatabase }
func (p *DatabaseProbe) Critical() bool { return true }

func (p *DatabaseProbe) Check(ctx context.Context) Component {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.db.Ping(ctx); err != nil {
		return Component{Status: StatusDown, Details: map[string]any{"error": err.Error()}}
	}
	return Component{Status: StatusUp}
}
