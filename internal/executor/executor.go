// Package executor issues one task's call against the target and records
// outcome and timing. Each call yields exactly one request record; there
// are no retries.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"stampede/internal/metrics"
	"stampede/internal/workload"
	"stampede/pkg/jsonschema"
)

// Config carries the target boundary and request limits.
type Config struct {
	// BaseURL is the target service address, e.g. "http://localhost:8080".
	BaseURL string

	// AuthToken, when set, is sent as a bearer credential.
	AuthToken string

	// Timeout bounds the wait for each response. A request exceeding it is
	// recorded as a timeout with latency equal to the bound.
	Timeout time.Duration

	// MaxIdleConnsPerHost tunes the shared connection pool.
	MaxIdleConnsPerHost int
}

// DefaultConfig returns limits suited to populations up to low thousands.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:             baseURL,
		Timeout:             10 * time.Second,
		MaxIdleConnsPerHost: 200,
	}
}

// Executor executes tasks against the target boundary. All virtual users
// share one Executor; the underlying client pools connections per host.
type Executor struct {
	config  Config
	client  *http.Client
	metrics *metrics.Engine
}

// New creates an executor that hands every completed record to the
// aggregation engine.
func New(config Config, engine *metrics.Engine) *Executor {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Executor{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		metrics: engine,
	}
}

// Execute issues the task's call and records its outcome. The record is
// handed to the aggregator before returning; that handoff is a short
// append and never waits on aggregation work.
func (ex *Executor) Execute(ctx context.Context, task workload.Task) metrics.RequestRecord {
	start := time.Now()
	outcome := ex.attempt(ctx, task)
	end := time.Now()

	latency := end.Sub(start)
	if outcome == metrics.OutcomeTimeout {
		// A timed-out attempt is recorded at the configured bound, not at
		// whatever instant the transport gave up.
		latency = ex.config.Timeout
		end = start.Add(latency)
	}

	rec := metrics.RequestRecord{
		TaskName: task.Name,
		Class:    task.Class,
		Start:    start,
		End:      end,
		Outcome:  outcome,
		Latency:  latency,
	}
	ex.metrics.Record(rec)
	return rec
}

// attempt runs the call and classifies the result.
func (ex *Executor) attempt(ctx context.Context, task workload.Task) metrics.Outcome {
	var body io.Reader
	if task.Body != "" {
		body = strings.NewReader(task.Body)
	}

	req, err := http.NewRequestWithContext(ctx, task.Method, ex.config.BaseURL+task.Path, body)
	if err != nil {
		return metrics.OutcomeConnectionError
	}
	if task.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if ex.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+ex.config.AuthToken)
	}

	resp, err := ex.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}

	return classifyResponse(resp.StatusCode, respBody, task.Rule)
}

// classifyTransportError separates timeouts from connection failures.
func classifyTransportError(err error) metrics.Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeConnectionError
}

// classifyResponse applies the task's success rule to a received response.
func classifyResponse(status int, body []byte, rule workload.Rule) metrics.Outcome {
	if status >= 400 {
		return metrics.OutcomeHTTPError
	}

	if rule.ExpectStatus != 0 && status != rule.ExpectStatus {
		return metrics.OutcomeValidationError
	}

	if rule.BodyPath != "" && !gjson.GetBytes(body, rule.BodyPath).Exists() {
		return metrics.OutcomeValidationError
	}

	if rule.BodySchema != "" {
		ok, err := jsonschema.Validate(body, rule.BodySchema)
		if err != nil || !ok {
			return metrics.OutcomeValidationError
		}
	}

	return metrics.OutcomeSuccess
}

// Preflight checks target reachability once before any load is generated.
// Any HTTP response counts as reachable, error status included; only a
// transport-level failure is fatal.
func Preflight(ctx context.Context, baseURL string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return fmt.Errorf("preflight failed: invalid target %q: %w", baseURL, err)
	}

	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("preflight failed: target %s unreachable: %w", baseURL, err)
	}
	resp.Body.Close()
	return nil
}
