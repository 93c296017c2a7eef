package panelstart

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// ReadinessResult is the outcome of a readiness probe
type ReadinessResult int

const (
	// NotConfirmed means no attempt got an acceptable answer
	NotConfirmed ReadinessResult = iota
	// Ready means the sidecar answered with a status in [200, 500)
	Ready
)

// String returns the string representation of a ReadinessResult
func (r ReadinessResult) String() string {
	if r == Ready {
		return "ready"
	}
	return "not-confirmed"
}

// ProbeReport summarizes a Probe call
type ProbeReport struct {
	// Result is the readiness outcome
	Result ReadinessResult
	// Attempts is the number of requests made
	Attempts int
	// Status is the last HTTP status received, 0 if none
	Status int
	// Elapsed is the wall time spent probing
	Elapsed time.Duration
	// LastErr is the last transport error, if any
	LastErr error
}

// Prober polls the sidecar's info endpoint a bounded number of times.
// The result is advisory; callers proceed either way.
type Prober struct {
	// Attempts is the maximum number of requests
	Attempts int
	// Interval is the delay between requests
	Interval time.Duration
	// Timeout bounds each request
	Timeout time.Duration
	// Host is the address requests are sent to
	Host string
	// Path is the request path
	Path string
	// Password is sent as the Authorization header when set
	Password string

	client *http.Client
	logger zerolog.Logger
}

// ProberOption configures a Prober
type ProberOption func(*Prober)

// WithAttempts sets the maximum number of requests
func WithAttempts(n int) ProberOption {
	return func(p *Prober) {
		p.Attempts = n
	}
}

// WithInterval sets the delay between requests
func WithInterval(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.Interval = d
	}
}

// WithRequestTimeout sets the per-request timeout
func WithRequestTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.Timeout = d
	}
}

// WithHost sets the address probed
func WithHost(host string) ProberOption {
	return func(p *Prober) {
		p.Host = host
	}
}

// WithPath sets the request path
func WithPath(path string) ProberOption {
	return func(p *Prober) {
		p.Path = path
	}
}

// WithPassword sets the Authorization header value
func WithPassword(password string) ProberOption {
	return func(p *Prober) {
		p.Password = password
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) ProberOption {
	return func(p *Prober) {
		p.client = c
	}
}

// WithProbeLogger sets the logger for per-attempt debug lines
func WithProbeLogger(logger zerolog.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = logger
	}
}

// NewProber creates a Prober with default settings
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		Attempts: DefaultProbeAttempts,
		Interval: DefaultProbeInterval,
		Timeout:  DefaultProbeTimeout,
		Host:     DefaultProbeHost,
		Path:     DefaultProbePath,
		logger:   zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: p.Timeout}
	}

	return p
}

// URL returns the probe URL for port
func (p *Prober) URL(port int) string {
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(p.Host, strconv.Itoa(port)), p.Path)
}

// Probe requests the info endpoint until it answers with a status in
// [200, 500) or the attempts run out. Transport errors count as not ready.
// There is no sleep after the last attempt. A cancelled ctx ends the loop early
// with NotConfirmed.
func (p *Prober) Probe(ctx context.Context, port int) ProbeReport {
	url := p.URL(port)
	start := time.Now()
	report := ProbeReport{Result: NotConfirmed}

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		report.Attempts = attempt

		status, err := p.once(ctx, url)
		report.Status = status
		report.LastErr = err
		if err == nil && status >= 200 && status < 500 {
			report.Result = Ready
			break
		}

		p.logger.Debug().Int("attempt", attempt).Int("status", status).AnErr("error", err).Msg("sidecar not ready yet")

		if attempt == p.Attempts {
			break
		}

		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			report.Elapsed = time.Since(start)
			return report
		case <-timer.C:
		}
	}

	report.Elapsed = time.Since(start)
	return report
}

func (p *Prober) once(ctx context.Context, url string) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if p.Password != "" {
		req.Header.Set("Authorization", p.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}
