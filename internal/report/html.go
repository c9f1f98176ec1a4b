package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"time"
)

// writeHTML renders the optional human-facing summary.
func writeHTML(r *Report, path string) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"ms": func(d time.Duration) string {
			return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
		},
		"pct": func(v float64) string {
			return fmt.Sprintf("%.2f%%", v*100)
		},
		"rps": func(v float64) string {
			return fmt.Sprintf("%.1f req/s", v)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse report template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Load Test Report - {{.Scenario}}</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 2rem; color: #1e293b; }
  h1 { font-size: 1.4rem; }
  table { border-collapse: collapse; margin: 1rem 0; }
  th, td { border: 1px solid #e2e8f0; padding: 0.4rem 0.8rem; text-align: left; }
  th { background: #f8fafc; }
  .breach { color: #ef4444; font-weight: bold; }
  .ok { color: #22c55e; }
</style>
</head>
<body>
<h1>Load Test Report &mdash; {{.Scenario}}</h1>
<p>Run {{.RunID}} against {{.Target}}<br>
{{.StartTime.Format "2006-01-02 15:04:05"}} &rarr; {{.EndTime.Format "2006-01-02 15:04:05"}}</p>

<h2>Summary</h2>
<table>
<tr><th>Requests</th><td>{{.Snapshot.TotalRequests}}</td></tr>
<tr><th>Throughput</th><td>{{rps .Snapshot.Throughput}}</td></tr>
<tr><th>Error rate</th><td>{{pct .Snapshot.ErrorRate}}</td></tr>
<tr><th>p50</th><td>{{ms .Snapshot.Latency.P50}}</td></tr>
<tr><th>p95</th><td>{{ms .Snapshot.Latency.P95}}</td></tr>
<tr><th>p99</th><td>{{ms .Snapshot.Latency.P99}}</td></tr>
<tr><th>Spawn failures</th><td>{{.Snapshot.SpawnFailures}}</td></tr>
<tr><th>Sample gaps</th><td>{{.Snapshot.SampleGaps}}</td></tr>
</table>

<h2>Outcomes</h2>
<table>
<tr><th>Success</th><th>HTTP error</th><th>Timeout</th><th>Connection error</th><th>Validation error</th></tr>
<tr>
<td>{{.Snapshot.Successes}}</td>
<td>{{.Snapshot.HTTPErrors}}</td>
<td>{{.Snapshot.Timeouts}}</td>
<td>{{.Snapshot.ConnectionErrors}}</td>
<td>{{.Snapshot.ValidationErrors}}</td>
</tr>
</table>

<h2>Thresholds</h2>
{{if .Snapshot.Breaches}}
<table>
<tr><th>Metric</th><th>Scope</th><th>Value</th><th>Threshold</th></tr>
{{range .Snapshot.Breaches}}
<tr class="breach"><td>{{.Metric}}</td><td>{{.Scope}}</td><td>{{.Value}}</td><td>{{.Threshold}}</td></tr>
{{end}}
</table>
{{else}}
<p class="ok">No threshold breaches.</p>
{{end}}

<h2>Per-task latency</h2>
<table>
<tr><th>Task</th><th>Count</th><th>p50</th><th>p95</th><th>p99</th></tr>
{{range $name, $stats := .Snapshot.PerTask}}
<tr><td>{{$name}}</td><td>{{$stats.Count}}</td><td>{{ms $stats.P50}}</td><td>{{ms $stats.P95}}</td><td>{{ms $stats.P99}}</td></tr>
{{end}}
</table>
</body>
</html>
`
