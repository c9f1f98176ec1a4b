package metrics

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Thresholds is the acceptable-performance table a snapshot is checked
// against. Crossing a threshold flags a breach; it never halts a run.
type Thresholds struct {
	// MaxErrorRate is the acceptable error-rate ceiling, in [0,1].
	MaxErrorRate float64 `yaml:"maxErrorRate"`

	// P95ByClass maps a task class ("api", "page") to its p95 latency ceiling.
	P95ByClass map[string]time.Duration `yaml:"-"`

	// P95ByClassRaw is the YAML representation, durations as strings.
	P95ByClassRaw map[string]string `yaml:"p95ByClass"`
}

// DefaultThresholds returns the built-in threshold table: error rate 1%,
// p95 of 500ms for api-class tasks and 3s for page-class tasks.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxErrorRate: 0.01,
		P95ByClass: map[string]time.Duration{
			"api":  500 * time.Millisecond,
			"page": 3 * time.Second,
		},
	}
}

// LoadThresholds reads a threshold-table override from a YAML file.
// Entries absent from the file keep their defaults.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()

	data, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	var raw Thresholds
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return th, fmt.Errorf("failed to parse thresholds file: %w", err)
	}

	if raw.MaxErrorRate > 0 {
		th.MaxErrorRate = raw.MaxErrorRate
	}
	for class, s := range raw.P95ByClassRaw {
		d, err := time.ParseDuration(s)
		if err != nil {
			return th, fmt.Errorf("invalid p95 threshold for class %q: %w", class, err)
		}
		th.P95ByClass[class] = d
	}

	return th, nil
}

// Breach records a metric crossing its configured threshold.
type Breach struct {
	// Metric is the metric that crossed its threshold ("error-rate", "p95").
	Metric string `json:"metric"`

	// Scope is "overall" or a task class name.
	Scope string `json:"scope"`

	// Value is the observed value, rendered in the metric's natural unit.
	Value string `json:"value"`

	// Threshold is the configured ceiling that was crossed.
	Threshold string `json:"threshold"`
}

// evaluate checks a snapshot against the table and returns any breaches in
// a deterministic order: error rate first, then p95 per class sorted by name.
func (t Thresholds) evaluate(snap *Snapshot) []Breach {
	var breaches []Breach

	if snap.TotalRequests > 0 && snap.ErrorRate >= t.MaxErrorRate {
		breaches = append(breaches, Breach{
			Metric:    "error-rate",
			Scope:     "overall",
			Value:     fmt.Sprintf("%.4f", snap.ErrorRate),
			Threshold: fmt.Sprintf("%.4f", t.MaxErrorRate),
		})
	}

	for _, class := range sortedKeys(t.P95ByClass) {
		limit := t.P95ByClass[class]
		stats, ok := snap.PerClass[class]
		if !ok || stats.Count == 0 {
			continue
		}
		if stats.P95 >= limit {
			breaches = append(breaches, Breach{
				Metric:    "p95",
				Scope:     class,
				Value:     stats.P95.String(),
				Threshold: limit.String(),
			})
		}
	}

	return breaches
}
