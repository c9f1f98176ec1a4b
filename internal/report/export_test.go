package report_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stampede/internal/metrics"
	"stampede/internal/report"
	"stampede/internal/workload"
)

func sampleReport() *report.Report {
	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	return &report.Report{
		RunID:    "run-0001",
		Scenario: "baseline",
		Target:   "http://localhost:8080",
		Profile: workload.Profile{
			Users:      10,
			SpawnRate:  2,
			Duration:   5 * time.Minute,
			Categories: workload.DefaultCatalog(),
		},
		StartTime: start,
		EndTime:   start.Add(5 * time.Minute),
		Snapshot: &metrics.Snapshot{
			TotalRequests: 1234,
			Successes:     1200,
			HTTPErrors:    20,
			Timeouts:      14,
			ErrorRate:     34.0 / 1234.0,
			Throughput:    4.113333,
			Latency: metrics.LatencyStats{
				Min:   2 * time.Millisecond,
				Max:   900 * time.Millisecond,
				Mean:  48 * time.Millisecond,
				P50:   40 * time.Millisecond,
				P90:   110 * time.Millisecond,
				P95:   180 * time.Millisecond,
				P99:   640 * time.Millisecond,
				Count: 1234,
			},
			PerClass: map[string]metrics.LatencyStats{
				"api":  {P95: 150 * time.Millisecond, Count: 400},
				"page": {P95: 600 * time.Millisecond, Count: 834},
			},
			Breaches: []metrics.Breach{
				{Metric: "error-rate", Scope: "overall", Value: "0.0276", Threshold: "0.0100"},
			},
			StartTime: start,
			Elapsed:   5 * time.Minute,
			Timestamp: start.Add(5 * time.Minute),
		},
		TimeSeries: []*metrics.TimeBucket{
			{Timestamp: start.Add(time.Second), TotalRequests: 4, IntervalRequests: 4, IntervalRPS: 4.0},
		},
		Records: []metrics.RequestRecord{
			{
				TaskName: "list-quotes", Class: "api",
				Start: start, End: start.Add(21500 * time.Microsecond),
				Outcome: metrics.OutcomeSuccess, Latency: 21500 * time.Microsecond,
			},
			{
				TaskName: "dashboard", Class: "page",
				Start: start.Add(time.Second), End: start.Add(11 * time.Second),
				Outcome: metrics.OutcomeTimeout, Latency: 10 * time.Second,
			},
		},
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	r := sampleReport()

	first, err := report.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	parsed, err := report.Parse(first)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	second, err := report.Marshal(parsed)
	if err != nil {
		t.Fatalf("re-Marshal failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("round-trip changed serialized bytes")
	}

	if parsed.RunID != r.RunID || parsed.Scenario != r.Scenario {
		t.Errorf("identity fields lost: %s/%s", parsed.RunID, parsed.Scenario)
	}
	if parsed.Snapshot.ErrorRate != r.Snapshot.ErrorRate {
		t.Errorf("ErrorRate changed: %v vs %v", parsed.Snapshot.ErrorRate, r.Snapshot.ErrorRate)
	}
	if parsed.Snapshot.Latency.P99 != r.Snapshot.Latency.P99 {
		t.Errorf("P99 changed: %v vs %v", parsed.Snapshot.Latency.P99, r.Snapshot.Latency.P99)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	a, err := report.Marshal(sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	b, err := report.Marshal(sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical reports serialized differently")
	}
	if !bytes.HasSuffix(a, []byte("\n")) {
		t.Error("artifact missing trailing newline")
	}
}

func TestExportWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport()

	paths, err := report.Export(r, []report.Format{report.FormatJSON, report.FormatCSV, report.FormatHTML}, dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("got %d paths, want 3", len(paths))
	}

	wantNames := []string{"run-0001-metrics.json", "run-0001-requests.csv", "run-0001-report.html"}
	for i, want := range wantNames {
		if filepath.Base(paths[i]) != want {
			t.Errorf("paths[%d] = %s, want %s", i, filepath.Base(paths[i]), want)
		}
		if _, err := os.Stat(paths[i]); err != nil {
			t.Errorf("artifact %s not written: %v", want, err)
		}
	}

	// Exporting the same report twice produces byte-identical JSON.
	again := filepath.Join(t.TempDir(), "again")
	paths2, err := report.Export(r, []report.Format{report.FormatJSON}, again)
	if err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(paths2[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("repeated export produced different bytes")
	}
}

func TestExportUnknownFormat(t *testing.T) {
	if _, err := report.Export(sampleReport(), []report.Format{"xml"}, t.TempDir()); err == nil {
		t.Error("unknown format did not fail")
	}
}

func TestCSVDump(t *testing.T) {
	dir := t.TempDir()
	paths, err := report.Export(sampleReport(), []report.Format{report.FormatCSV}, dir)
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("dump not parseable as CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2 records", len(rows))
	}

	header := strings.Join(rows[0], ",")
	if header != "task,class,start,end,outcome,latency_ms" {
		t.Errorf("header = %q", header)
	}

	if rows[1][0] != "list-quotes" || rows[1][4] != "success" || rows[1][5] != "21.500" {
		t.Errorf("first record row = %v", rows[1])
	}
	if rows[2][0] != "dashboard" || rows[2][4] != "timeout" || rows[2][5] != "10000.000" {
		t.Errorf("second record row = %v", rows[2])
	}
}

func TestHTMLReportContent(t *testing.T) {
	dir := t.TempDir()
	paths, err := report.Export(sampleReport(), []report.Format{report.FormatHTML}, dir)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	page := string(data)

	for _, want := range []string{"baseline", "http://localhost:8080", "run-0001", "error-rate"} {
		if !strings.Contains(page, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}
}

func TestFinalize(t *testing.T) {
	engine := metrics.NewEngine(metrics.DefaultThresholds())
	start := time.Now()
	engine.Record(metrics.RequestRecord{
		TaskName: "ping", Class: "api",
		Start: start, End: start.Add(5 * time.Millisecond),
		Outcome: metrics.OutcomeSuccess, Latency: 5 * time.Millisecond,
	})
	engine.Stop()

	meta := report.Meta{Scenario: "baseline", Target: "http://localhost:8080"}
	end := time.Now()
	r := report.Finalize(engine, meta, end)

	if r.RunID == "" {
		t.Error("RunID not assigned")
	}
	if r.Scenario != "baseline" || r.Target != meta.Target {
		t.Errorf("meta not carried: %s/%s", r.Scenario, r.Target)
	}
	if !r.EndTime.Equal(end) {
		t.Errorf("EndTime = %v, want %v", r.EndTime, end)
	}
	if r.Snapshot.TotalRequests != 1 {
		t.Errorf("snapshot requests = %d, want 1", r.Snapshot.TotalRequests)
	}
	if len(r.Records) != 1 {
		t.Errorf("got %d records, want 1", len(r.Records))
	}
	if len(r.TimeSeries) == 0 {
		t.Error("no time-series buckets in report")
	}
}
