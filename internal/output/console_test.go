package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"stampede/internal/engine"
	"stampede/internal/metrics"
	"stampede/internal/report"
)

func testStatus() engine.Status {
	return engine.Status{
		Elapsed:    90 * time.Second,
		Duration:   5 * time.Minute,
		Population: 8,
		Target:     10,
		Snapshot: &metrics.Snapshot{
			TotalRequests: 420,
			Throughput:    4.7,
			ErrorRate:     0.0125,
			Latency:       metrics.LatencyStats{P95: 180 * time.Millisecond},
		},
	}
}

func TestRenderHeadlessLine(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{w: &buf, headless: true}

	c.render(testStatus())

	line := buf.String()
	for _, want := range []string{"vus 8/10", "reqs 420", "err 1.25%", "p95 180ms"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("headless line not newline terminated")
	}
}

func TestRenderInteractiveRewritesLine(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{w: &buf, headless: false}

	c.render(testStatus())

	if !strings.HasPrefix(buf.String(), "\r") {
		t.Error("interactive render does not return to line start")
	}
}

func TestRenderSkipsNilSnapshot(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{w: &buf, headless: true}

	c.render(engine.Status{})
	if buf.Len() != 0 {
		t.Errorf("render with no snapshot wrote %q", buf.String())
	}
}

func TestSummaryContent(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{w: &buf, headless: true}

	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r := &report.Report{
		RunID:     "run-77",
		Scenario:  "stress",
		Target:    "http://localhost:8080",
		StartTime: start,
		EndTime:   start.Add(10 * time.Minute),
		Snapshot: &metrics.Snapshot{
			TotalRequests: 90000,
			Successes:     88000,
			ErrorRate:     2000.0 / 90000.0,
			Throughput:    150.0,
			Latency:       metrics.LatencyStats{P50: 30 * time.Millisecond, P95: 700 * time.Millisecond, P99: time.Second},
			PerTask: map[string]metrics.LatencyStats{
				"list-quotes": {Count: 40000, P95: 400 * time.Millisecond},
				"dashboard":   {Count: 50000, P95: 900 * time.Millisecond},
			},
			SpawnFailures: 3,
			Breaches: []metrics.Breach{
				{Metric: "error-rate", Scope: "overall", Value: "0.0222", Threshold: "0.0100"},
			},
		},
	}

	c.Summary(r)
	out := buf.String()

	for _, want := range []string{
		"run-77", "stress", "requests        90000",
		"spawn failures  3", "Threshold breaches", "error-rate/overall",
		"dashboard", "list-quotes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}

	// Per-task rows sort by name.
	if strings.Index(out, "dashboard") > strings.Index(out, "list-quotes") {
		t.Error("per-task rows not sorted")
	}
}

func TestSummaryNoBreaches(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{w: &buf, headless: true}

	c.Summary(&report.Report{Snapshot: &metrics.Snapshot{}})
	if !strings.Contains(buf.String(), "all thresholds met") {
		t.Errorf("summary = %q", buf.String())
	}
}

func TestNewConsoleForcesHeadlessOffTTY(t *testing.T) {
	// Test processes run without a TTY on stdout, so interactive mode is
	// unavailable regardless of the flag.
	c := NewConsole(false)
	if !c.headless {
		t.Error("console not headless without a TTY")
	}

	if c := NewConsole(true); !c.headless {
		t.Error("explicit headless flag ignored")
	}
}

func TestWatchStopTerminates(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{
		w:        &buf,
		headless: true,
		interval: 10 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	c.Watch(testStatus)
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	if buf.Len() == 0 {
		t.Error("no progress lines rendered")
	}
}
