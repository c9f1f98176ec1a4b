// Package metrics provides the aggregation engine for load-test runs.
//
// The engine is the sole owner of the RequestRecord and ResourceSample
// streams: virtual users and the resource monitor append to it, everything
// else reads projections via Snapshot.
package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine collects and aggregates run metrics using HDR histograms.
//
// Latency percentiles come from an HDR histogram (1µs to 1h range, 3
// significant figures), so p50 <= p95 <= p99 holds at every snapshot and
// the relative error is bounded regardless of request volume. Counters use
// atomics; histograms and slices are mutex protected. Engine is safe for
// concurrent use.
type Engine struct {
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	// Per-task and per-class breakdowns.
	taskHists  map[string]*hdrhistogram.Histogram
	classHists map[string]*hdrhistogram.Histogram
	histsMu    sync.Mutex

	// Outcome counters, lock-free.
	totalRequests    atomic.Int64
	successes        atomic.Int64
	httpErrors       atomic.Int64
	timeouts         atomic.Int64
	connectionErrors atomic.Int64
	validationErrors atomic.Int64

	spawnFailures atomic.Int64
	sampleGaps    atomic.Int64
	activeVUs     atomic.Int32

	// Raw record retention for the per-request dump. Records append in
	// completion order, which is the only ordering guarantee offered.
	records   []RequestRecord
	recordsMu sync.Mutex

	samples   []ResourceSample
	samplesMu sync.Mutex

	bucketStore *TimeBucketStore

	thresholds Thresholds
	startTime  time.Time

	// lastEvent is the wall-clock instant (unix nanos) of the most recent
	// mutation. Snapshot derives Elapsed/Throughput/Timestamp from it, so
	// two snapshots with no intervening mutation are identical.
	lastEvent atomic.Int64

	emitterCtx    context.Context
	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup

	config EngineConfig
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// BucketInterval is the interval for time-series buckets (default: 1s).
	BucketInterval time.Duration

	// MaxBuckets is the maximum number of buckets to retain (default: 7200).
	MaxBuckets int

	// HistogramMin/Max bound recordable latencies in microseconds.
	HistogramMin int64
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3).
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration. MaxBuckets covers
// the two-hour endurance scenario at one bucket per second.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BucketInterval:   time.Second,
		MaxBuckets:       7200,
		HistogramMin:     1,
		HistogramMax:     3600000000, // 1 hour in microseconds
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a metrics engine with default configuration and the
// given threshold table.
func NewEngine(thresholds Thresholds) *Engine {
	return NewEngineWithConfig(thresholds, DefaultEngineConfig())
}

// NewEngineWithConfig creates a metrics engine with custom configuration.
func NewEngineWithConfig(thresholds Thresholds, config EngineConfig) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		latencyHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		taskHists:     make(map[string]*hdrhistogram.Histogram),
		classHists:    make(map[string]*hdrhistogram.Histogram),
		bucketStore:   NewTimeBucketStore(config.MaxBuckets),
		thresholds:    thresholds,
		startTime:     time.Now(),
		emitterCtx:    ctx,
		emitterCancel: cancel,
		config:        config,
	}

	e.emitterWg.Add(1)
	go e.runEmitter()

	return e
}

// Record appends one completed request record. The append path is a short
// critical section so VU progress never waits on aggregation work.
func (e *Engine) Record(rec RequestRecord) {
	latencyMicros := rec.Latency.Microseconds()
	if latencyMicros < e.config.HistogramMin {
		latencyMicros = e.config.HistogramMin
	}
	if latencyMicros > e.config.HistogramMax {
		latencyMicros = e.config.HistogramMax
	}

	e.latencyHistMu.Lock()
	e.latencyHist.RecordValue(latencyMicros)
	e.latencyHistMu.Unlock()

	e.histsMu.Lock()
	e.histFor(e.taskHists, rec.TaskName).RecordValue(latencyMicros)
	if rec.Class != "" {
		e.histFor(e.classHists, rec.Class).RecordValue(latencyMicros)
	}
	e.histsMu.Unlock()

	e.totalRequests.Add(1)
	switch rec.Outcome {
	case OutcomeSuccess:
		e.successes.Add(1)
	case OutcomeHTTPError:
		e.httpErrors.Add(1)
	case OutcomeTimeout:
		e.timeouts.Add(1)
	case OutcomeConnectionError:
		e.connectionErrors.Add(1)
	case OutcomeValidationError:
		e.validationErrors.Add(1)
	}

	e.bucketStore.RecordRequest(rec.Outcome.IsError())

	e.recordsMu.Lock()
	e.records = append(e.records, rec)
	e.recordsMu.Unlock()

	e.touch()
}

// touch advances the mutation clock.
func (e *Engine) touch() {
	e.lastEvent.Store(time.Now().UnixNano())
}

// histFor returns the histogram for a key, creating it on first use.
// Caller must hold histsMu.
func (e *Engine) histFor(m map[string]*hdrhistogram.Histogram, key string) *hdrhistogram.Histogram {
	h, ok := m[key]
	if !ok {
		h = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		m[key] = h
	}
	return h
}

// Sample appends one resource reading.
func (e *Engine) Sample(s ResourceSample) {
	e.samplesMu.Lock()
	e.samples = append(e.samples, s)
	e.samplesMu.Unlock()

	e.touch()
}

// SampleGap records a missed resource sample. Gaps are never fatal.
func (e *Engine) SampleGap() {
	e.sampleGaps.Add(1)
	e.touch()
}

// RecordSpawnFailure counts a virtual user that could not be created.
func (e *Engine) RecordSpawnFailure() {
	e.spawnFailures.Add(1)
	e.touch()
}

// SetActiveVUs updates the live virtual-user gauge.
func (e *Engine) SetActiveVUs(count int) {
	e.activeVUs.Store(int32(count))
	e.touch()
}

// ActiveVUs returns the live virtual-user gauge.
func (e *Engine) ActiveVUs() int {
	return int(e.activeVUs.Load())
}

// runEmitter emits a time bucket every interval, even during low activity.
func (e *Engine) runEmitter() {
	defer e.emitterWg.Done()

	ticker := time.NewTicker(e.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.emitterCtx.Done():
			return
		case <-ticker.C:
			e.emitBucket()
		}
	}
}

func (e *Engine) emitBucket() {
	e.latencyHistMu.Lock()
	p50 := time.Duration(e.latencyHist.ValueAtQuantile(50)) * time.Microsecond
	p95 := time.Duration(e.latencyHist.ValueAtQuantile(95)) * time.Microsecond
	p99 := time.Duration(e.latencyHist.ValueAtQuantile(99)) * time.Microsecond
	e.latencyHistMu.Unlock()

	var cpu, mem float64
	e.samplesMu.Lock()
	if n := len(e.samples); n > 0 {
		cpu = e.samples[n-1].CPUPercent
		mem = e.samples[n-1].MemPercent
	}
	e.samplesMu.Unlock()

	e.bucketStore.CreateBucket(
		e.totalRequests.Load(), e.errorCount(),
		p50, p95, p99,
		e.ActiveVUs(), cpu, mem,
	)
}

func (e *Engine) errorCount() int64 {
	return e.httpErrors.Load() + e.timeouts.Load() +
		e.connectionErrors.Load() + e.validationErrors.Load()
}

// Snapshot returns a consistent point-in-time projection of all metrics.
// It may be called concurrently with ongoing recording.
func (e *Engine) Snapshot() *Snapshot {
	e.latencyHistMu.Lock()
	overall := statsFromHist(e.latencyHist)
	e.latencyHistMu.Unlock()

	e.histsMu.Lock()
	perTask := make(map[string]LatencyStats, len(e.taskHists))
	for name, h := range e.taskHists {
		perTask[name] = statsFromHist(h)
	}
	perClass := make(map[string]LatencyStats, len(e.classHists))
	for name, h := range e.classHists {
		perClass[name] = statsFromHist(h)
	}
	e.histsMu.Unlock()

	e.samplesMu.Lock()
	resources := make([]ResourceSample, len(e.samples))
	copy(resources, e.samples)
	e.samplesMu.Unlock()

	total := e.totalRequests.Load()
	errors := e.errorCount()

	errorRate := 0.0
	if total > 0 {
		errorRate = float64(errors) / float64(total)
	}

	// Time-derived fields come from the mutation clock, not the wall clock,
	// so a quiet engine yields identical snapshots.
	asOf := e.startTime
	if last := e.lastEvent.Load(); last != 0 {
		asOf = time.Unix(0, last)
	}
	elapsed := asOf.Sub(e.startTime)
	throughput := 0.0
	if elapsed.Seconds() > 0 {
		throughput = float64(total) / elapsed.Seconds()
	}

	snap := &Snapshot{
		TotalRequests:    total,
		Successes:        e.successes.Load(),
		HTTPErrors:       e.httpErrors.Load(),
		Timeouts:         e.timeouts.Load(),
		ConnectionErrors: e.connectionErrors.Load(),
		ValidationErrors: e.validationErrors.Load(),
		ErrorRate:        errorRate,
		Throughput:       throughput,
		Latency:          overall,
		PerTask:          perTask,
		PerClass:         perClass,
		Resources:        resources,
		SampleGaps:       e.sampleGaps.Load(),
		SpawnFailures:    e.spawnFailures.Load(),
		ActiveVUs:        e.ActiveVUs(),
		StartTime:        e.startTime,
		Elapsed:          elapsed,
		Timestamp:        asOf,
	}
	snap.Breaches = e.thresholds.evaluate(snap)

	return snap
}

// Records returns a copy of all request records in completion order.
func (e *Engine) Records() []RequestRecord {
	e.recordsMu.Lock()
	defer e.recordsMu.Unlock()

	out := make([]RequestRecord, len(e.records))
	copy(out, e.records)
	return out
}

// TimeSeries returns all emitted buckets in chronological order.
func (e *Engine) TimeSeries() []*TimeBucket {
	return e.bucketStore.Buckets()
}

// StartTime returns when aggregation began.
func (e *Engine) StartTime() time.Time {
	return e.startTime
}

// Stop halts the background emitter and emits one final bucket.
func (e *Engine) Stop() {
	e.emitterCancel()
	e.emitterWg.Wait()
	e.emitBucket()
}

func statsFromHist(h *hdrhistogram.Histogram) LatencyStats {
	if h.TotalCount() == 0 {
		return LatencyStats{}
	}
	return LatencyStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
