package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimeBucketStore stores time-bucketed metrics in a ring buffer.
//
// It provides continuous time-series data even when no requests complete,
// O(1) append with bounded memory, and thread-safe access. Old buckets are
// discarded once the buffer is full.
type TimeBucketStore struct {
	buckets    []*TimeBucket
	head       int // next write position
	count      int
	maxBuckets int
	mu         sync.RWMutex

	lastBucketTime time.Time

	// Current interval accumulators, lock-free.
	currentRequests atomic.Int64
	currentErrors   atomic.Int64
}

// NewTimeBucketStore creates a new time bucket store holding at most
// maxBuckets entries.
func NewTimeBucketStore(maxBuckets int) *TimeBucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 7200
	}

	return &TimeBucketStore{
		buckets:        make([]*TimeBucket, maxBuckets),
		maxBuckets:     maxBuckets,
		lastBucketTime: time.Now(),
	}
}

// RecordRequest records one completed request into the current interval
// accumulator. Lock-free, safe under high concurrency.
func (tbs *TimeBucketStore) RecordRequest(isError bool) {
	tbs.currentRequests.Add(1)
	if isError {
		tbs.currentErrors.Add(1)
	}
}

// CreateBucket captures the current interval and appends a bucket.
// Called by the engine's background emitter.
func (tbs *TimeBucketStore) CreateBucket(
	totalRequests, totalErrors int64,
	p50, p95, p99 time.Duration,
	activeVUs int,
	cpuPercent, memPercent float64,
) *TimeBucket {
	tbs.mu.Lock()
	defer tbs.mu.Unlock()

	now := time.Now()

	intervalRequests := tbs.currentRequests.Swap(0)
	intervalErrors := tbs.currentErrors.Swap(0)

	intervalSeconds := now.Sub(tbs.lastBucketTime).Seconds()
	if intervalSeconds <= 0 {
		intervalSeconds = 1.0
	}

	intervalErrorRate := 0.0
	if intervalRequests > 0 {
		intervalErrorRate = float64(intervalErrors) / float64(intervalRequests)
	}

	bucket := &TimeBucket{
		Timestamp:         now,
		TotalRequests:     totalRequests,
		TotalErrors:       totalErrors,
		IntervalRequests:  intervalRequests,
		IntervalRPS:       float64(intervalRequests) / intervalSeconds,
		IntervalErrorRate: intervalErrorRate,
		LatencyP50:        p50,
		LatencyP95:        p95,
		LatencyP99:        p99,
		ActiveVUs:         activeVUs,
		CPUPercent:        cpuPercent,
		MemPercent:        memPercent,
	}

	tbs.buckets[tbs.head] = bucket
	tbs.head = (tbs.head + 1) % tbs.maxBuckets
	if tbs.count < tbs.maxBuckets {
		tbs.count++
	}

	tbs.lastBucketTime = now
	return bucket
}

// Buckets returns a copy of all buckets in chronological order.
func (tbs *TimeBucketStore) Buckets() []*TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}

	result := make([]*TimeBucket, tbs.count)
	if tbs.count < tbs.maxBuckets {
		copy(result, tbs.buckets[:tbs.count])
	} else {
		for i := 0; i < tbs.count; i++ {
			result[i] = tbs.buckets[(tbs.head+i)%tbs.maxBuckets]
		}
	}
	return result
}

// Latest returns the most recent bucket, or nil if none exist.
func (tbs *TimeBucketStore) Latest() *TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}
	return tbs.buckets[(tbs.head-1+tbs.maxBuckets)%tbs.maxBuckets]
}

// Count returns the number of buckets currently stored.
func (tbs *TimeBucketStore) Count() int {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()
	return tbs.count
}
