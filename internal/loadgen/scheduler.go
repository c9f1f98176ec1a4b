package loadgen

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"stampede/internal/executor"
	"stampede/internal/metrics"
	"stampede/internal/workload"
)

// Scheduler ramps a population of virtual users up to the profile target
// and coordinates their shutdown.
//
// On each tick it spawns min(spawnRate, target-current) new units, so the
// live population never exceeds the target, even transiently. Stopping is
// cooperative: units finish their in-flight request and observe the stop
// signal between iterations.
type Scheduler struct {
	profile    *workload.Profile
	dispatcher *workload.Dispatcher
	exec       *executor.Executor
	metrics    *metrics.Engine
	logger     *zap.Logger

	vus   map[int]*VirtualUser
	vusMu sync.RWMutex

	nextID  atomic.Int32
	spawned int // total spawn ordinals handed out, drives category assignment

	wg sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}

	// Tick is the scheduling interval; Graceful bounds the drain wait.
	Tick     time.Duration
	Graceful time.Duration

	// spawnFault injects spawn failures in tests. Kept nil in production.
	spawnFault func(id int) error
}

// NewScheduler creates a scheduler for a validated profile.
func NewScheduler(profile *workload.Profile, dispatcher *workload.Dispatcher, exec *executor.Executor, engine *metrics.Engine, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		profile:    profile,
		dispatcher: dispatcher,
		exec:       exec,
		metrics:    engine,
		logger:     logger,
		vus:        make(map[int]*VirtualUser),
		stopCh:     make(chan struct{}),
		Tick:       time.Second,
		Graceful:   30 * time.Second,
	}
}

// Start ramps the population and blocks until the run terminates: the
// profile duration elapses, Stop is called, or ctx is cancelled. On return
// every unit has reached its terminal state or the graceful window expired.
func (s *Scheduler) Start(ctx context.Context) error {
	softCtx, softCancel := context.WithCancel(ctx)
	defer softCancel()

	// Requests run under a separate context so a graceful stop never
	// cancels in-flight work.
	hardCtx, hardCancel := context.WithCancel(context.Background())
	defer hardCancel()

	var durationCh <-chan time.Time
	if s.profile.Duration > 0 {
		timer := time.NewTimer(s.profile.Duration)
		defer timer.Stop()
		durationCh = timer.C
	}

	ticker := time.NewTicker(s.Tick)
	defer ticker.Stop()

	// First batch goes out immediately rather than waiting a full tick.
	s.spawnBatch(softCtx, hardCtx)
	s.metrics.SetActiveVUs(s.CurrentPopulation())

ramp:
	for {
		select {
		case <-ctx.Done():
			break ramp
		case <-s.stopCh:
			break ramp
		case <-durationCh:
			break ramp
		case <-ticker.C:
			s.spawnBatch(softCtx, hardCtx)
			s.metrics.SetActiveVUs(s.CurrentPopulation())
		}
	}

	// Wind down: no new dispatch, in-flight requests allowed to finish.
	softCancel()
	s.stopAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.Graceful):
		s.logger.Warn("graceful stop window expired, abandoning in-flight requests")
		hardCancel()
		<-done
	}

	s.metrics.SetActiveVUs(0)
	return nil
}

// spawnBatch spawns up to spawnRate units without overshooting the target.
func (s *Scheduler) spawnBatch(softCtx, hardCtx context.Context) {
	live := s.CurrentPopulation()
	n := s.profile.Users - live
	if n > s.profile.SpawnRate {
		n = s.profile.SpawnRate
	}

	for i := 0; i < n; i++ {
		if err := s.spawn(softCtx, hardCtx); err != nil {
			s.metrics.RecordSpawnFailure()
			s.logger.Warn("failed to spawn virtual user", zap.Error(err))
		}
	}
}

func (s *Scheduler) spawn(softCtx, hardCtx context.Context) error {
	id := int(s.nextID.Add(1))

	if s.spawnFault != nil {
		if err := s.spawnFault(id); err != nil {
			return err
		}
	}

	s.vusMu.Lock()
	category := s.profile.AssignCategory(s.spawned)
	if s.profile.Category(category) == nil {
		s.vusMu.Unlock()
		return fmt.Errorf("no such category %q", category)
	}
	s.spawned++
	vu := NewVirtualUser(id, category, s.dispatcher, s.exec)
	s.vus[id] = vu
	s.vusMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		vu.Run(softCtx, hardCtx)
	}()

	return nil
}

// CurrentPopulation returns the number of concurrently live units, i.e.
// those that have not reached Terminated.
func (s *Scheduler) CurrentPopulation() int {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	count := 0
	for _, vu := range s.vus {
		if vu.GetState() != StateTerminated {
			count++
		}
	}
	return count
}

// Units returns all registered units. Snapshot for inspection only.
func (s *Scheduler) Units() []*VirtualUser {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	out := make([]*VirtualUser, 0, len(s.vus))
	for _, vu := range s.vus {
		out = append(out, vu)
	}
	return out
}

// Stop requests a graceful shutdown. It returns immediately; Start
// unblocks once the population drains.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) stopAll() {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	for _, vu := range s.vus {
		vu.RequestStop()
	}
}
