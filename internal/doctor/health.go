package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Health payload vocabulary, shared with the bot's /health endpoint.
const (
	StatusHealthy   = "HEALTHY"
	StatusUnhealthy = "UNHEALTHY"

	SeverityCritical = "CRITICAL"
	SeverityWarning  = "WARNING"
	SeverityInfo     = "INFO"
)

// HealthCheck is one named check from the health payload.
type HealthCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Severity string `json:"severity"`
}

// HealthReport is the parsed health payload. Transient: fetched fresh each
// pass, never persisted.
type HealthReport struct {
	OverallHealthy bool          `json:"overall_healthy"`
	Checks         []HealthCheck `json:"checks"`
}

// CriticalFailures returns the checks that are both CRITICAL severity and
// not healthy. These are what justify escalation.
func (r HealthReport) CriticalFailures() []HealthCheck {
	var out []HealthCheck
	for _, c := range r.Checks {
		if c.Severity == SeverityCritical && c.Status != StatusHealthy {
			out = append(out, c)
		}
	}
	return out
}

// HealthClient fetches the supervised service's health endpoint.
type HealthClient interface {
	Fetch(ctx context.Context) (HealthReport, error)
}

// healthEnvelope matches the wire shape: {"health_checks": {...}}.
type healthEnvelope struct {
	HealthChecks HealthReport `json:"health_checks"`
}

// HTTPHealthClient fetches GET <url> with a hard timeout and one retry.
type HTTPHealthClient struct {
	url    string
	client *resty.Client
}

func NewHTTPHealthClient(url string, timeout time.Duration) *HTTPHealthClient {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond)
	return &HTTPHealthClient{url: url, client: client}
}

func (h *HTTPHealthClient) Fetch(ctx context.Context) (HealthReport, error) {
	resp, err := h.client.R().SetContext(ctx).Get(h.url)
	if err != nil {
		return HealthReport{}, fmt.Errorf("health fetch: %w", err)
	}
	if resp.StatusCode() != 200 {
		return HealthReport{}, fmt.Errorf("health endpoint returned %d", resp.StatusCode())
	}

	// parse by hand so a malformed body is indistinguishable from an
	// unreachable endpoint, as the remediation policy requires
	var envelope healthEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return HealthReport{}, fmt.Errorf("malformed health payload: %w", err)
	}
	return envelope.HealthChecks, nil
}
