package metrics

import "time"

// Outcome classifies the result of a single request attempt.
type Outcome string

const (
	// OutcomeSuccess means a response arrived and passed the task's success rule.
	OutcomeSuccess Outcome = "success"

	// OutcomeHTTPError means the response status indicated failure.
	OutcomeHTTPError Outcome = "http-error"

	// OutcomeTimeout means no response arrived within the configured bound.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeConnectionError means the target was unreachable for this request.
	OutcomeConnectionError Outcome = "connection-error"

	// OutcomeValidationError means a response arrived but failed the success rule.
	OutcomeValidationError Outcome = "validation-error"
)

// IsError reports whether the outcome counts toward the error rate.
func (o Outcome) IsError() bool {
	return o != OutcomeSuccess
}

// RequestRecord is the immutable result of one completed request attempt.
// Exactly one record is produced per attempt; it is never mutated after
// creation.
type RequestRecord struct {
	TaskName string        `json:"taskName"`
	Class    string        `json:"class"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Outcome  Outcome       `json:"outcome"`
	Latency  time.Duration `json:"latency"`
}

// ResourceSample is one reading of host resource counters.
type ResourceSample struct {
	Timestamp    time.Time `json:"timestamp"`
	CPUPercent   float64   `json:"cpuPercent"`
	MemPercent   float64   `json:"memPercent"`
	DiskReadBps  float64   `json:"diskReadBps"`
	DiskWriteBps float64   `json:"diskWriteBps"`
	NetSentBps   float64   `json:"netSentBps"`
	NetRecvBps   float64   `json:"netRecvBps"`
}

// LatencyStats contains latency statistics derived from an HDR histogram.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// Snapshot is a point-in-time projection of the aggregated streams.
// It is never authoritative storage: calling Snapshot twice with no
// intervening Record/Sample calls yields identical results.
type Snapshot struct {
	TotalRequests    int64 `json:"totalRequests"`
	Successes        int64 `json:"successes"`
	HTTPErrors       int64 `json:"httpErrors"`
	Timeouts         int64 `json:"timeouts"`
	ConnectionErrors int64 `json:"connectionErrors"`
	ValidationErrors int64 `json:"validationErrors"`

	// ErrorRate is (timeouts + http-errors + connection-errors +
	// validation-errors) / total attempts, in [0,1].
	ErrorRate float64 `json:"errorRate"`

	// Throughput is completed requests per second over the full run window.
	Throughput float64 `json:"throughput"`

	Latency  LatencyStats            `json:"latency"`
	PerTask  map[string]LatencyStats `json:"perTask,omitempty"`
	PerClass map[string]LatencyStats `json:"perClass,omitempty"`

	Resources  []ResourceSample `json:"resources,omitempty"`
	SampleGaps int64            `json:"sampleGaps"`

	SpawnFailures int64 `json:"spawnFailures"`
	ActiveVUs     int   `json:"activeVUs"`

	Breaches []Breach `json:"breaches,omitempty"`

	StartTime time.Time     `json:"startTime"`
	Elapsed   time.Duration `json:"elapsed"`
	Timestamp time.Time     `json:"timestamp"`
}

// TimeBucket captures aggregate state for one emitter interval, with both
// cumulative totals and interval deltas, plus the most recent resource
// reading for correlation.
type TimeBucket struct {
	Timestamp time.Time `json:"timestamp"`

	TotalRequests int64 `json:"totalRequests"`
	TotalErrors   int64 `json:"totalErrors"`

	IntervalRequests  int64   `json:"intervalRequests"`
	IntervalRPS       float64 `json:"intervalRPS"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`

	LatencyP50 time.Duration `json:"latencyP50"`
	LatencyP95 time.Duration `json:"latencyP95"`
	LatencyP99 time.Duration `json:"latencyP99"`

	ActiveVUs  int     `json:"activeVUs"`
	CPUPercent float64 `json:"cpuPercent"`
	MemPercent float64 `json:"memPercent"`
}
