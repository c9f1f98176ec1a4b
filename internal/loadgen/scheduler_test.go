package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stampede/internal/executor"
	"stampede/internal/metrics"
	"stampede/internal/workload"
)

func testProfile(users, spawnRate int, duration time.Duration) *workload.Profile {
	return &workload.Profile{
		Users:     users,
		SpawnRate: spawnRate,
		Duration:  duration,
		Categories: []workload.Category{
			{
				Name:  "api",
				Share: 100,
				Tasks: []workload.Task{
					{Name: "ping", Category: "api", Class: "api", Weight: 1, Method: "GET", Path: "/ping"},
				},
			},
		},
	}
}

func testScheduler(t *testing.T, users, spawnRate int, duration time.Duration) (*Scheduler, *metrics.Engine) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	engine := metrics.NewEngine(metrics.DefaultThresholds())
	t.Cleanup(engine.Stop)

	profile := testProfile(users, spawnRate, duration)
	if err := profile.Validate(); err != nil {
		t.Fatal(err)
	}

	ex := executor.New(executor.DefaultConfig(srv.URL), engine)
	s := NewScheduler(profile, workload.NewDispatcher(profile), ex, engine, nil)
	s.Tick = 20 * time.Millisecond
	s.Graceful = 5 * time.Second
	return s, engine
}

// waitForPopulation polls until the live population reaches want, failing
// the test if it ever exceeds the cap or the deadline passes.
func waitForPopulation(t *testing.T, s *Scheduler, want, limit int) {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		pop := s.CurrentPopulation()
		if pop > limit {
			t.Fatalf("population %d exceeded target %d", pop, limit)
		}
		if pop >= want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("population stuck at %d, want %d", pop, want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSchedulerRampsToTargetWithoutOvershoot(t *testing.T) {
	s, _ := testScheduler(t, 12, 5, 0)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	waitForPopulation(t, s, 12, 12)

	// Population holds at the target across further ticks.
	for i := 0; i < 10; i++ {
		if pop := s.CurrentPopulation(); pop > 12 {
			t.Fatalf("population %d exceeded target after ramp", pop)
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	for _, vu := range s.Units() {
		if vu.GetState() != StateTerminated {
			t.Errorf("unit %d in state %s after shutdown", vu.ID, vu.GetState())
		}
	}
	if pop := s.CurrentPopulation(); pop != 0 {
		t.Errorf("population = %d after shutdown, want 0", pop)
	}
}

func TestSchedulerStopsAfterDuration(t *testing.T) {
	s, engine := testScheduler(t, 4, 4, 200*time.Millisecond)

	start := time.Now()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start returned %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 200*time.Millisecond {
		t.Errorf("run ended after %s, before the configured duration", elapsed)
	}
	if elapsed > 5*time.Second {
		t.Errorf("run took %s to wind down", elapsed)
	}
	if got := engine.Snapshot().TotalRequests; got == 0 {
		t.Error("no requests recorded during the run")
	}
	if got := engine.ActiveVUs(); got != 0 {
		t.Errorf("active gauge = %d after run, want 0", got)
	}
}

func TestSchedulerContextCancelStops(t *testing.T) {
	s, _ := testScheduler(t, 4, 4, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	waitForPopulation(t, s, 4, 4)
	cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
	if pop := s.CurrentPopulation(); pop != 0 {
		t.Errorf("population = %d after cancellation, want 0", pop)
	}
}

func TestSchedulerCountsSpawnFailures(t *testing.T) {
	s, engine := testScheduler(t, 6, 3, 0)
	s.spawnFault = func(id int) error {
		if id <= 2 {
			return fmt.Errorf("injected spawn failure for unit %d", id)
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	// Failed spawns are retried on later ticks, so the target is still reached.
	waitForPopulation(t, s, 6, 6)

	s.Stop()
	<-done

	if got := engine.Snapshot().SpawnFailures; got != 2 {
		t.Errorf("SpawnFailures = %d, want 2", got)
	}
}

func TestSchedulerGaugeSetOnFirstBatch(t *testing.T) {
	s, engine := testScheduler(t, 3, 3, 0)
	// No ticks fire during the test, so only the initial batch can update
	// the gauge.
	s.Tick = time.Hour

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	deadline := time.After(5 * time.Second)
	for engine.ActiveVUs() != 3 {
		select {
		case <-deadline:
			t.Fatalf("active gauge = %d before first tick, want 3", engine.ActiveVUs())
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop()
	<-done

	if got := engine.ActiveVUs(); got != 0 {
		t.Errorf("active gauge = %d after shutdown, want 0", got)
	}
}

func TestSchedulerCategoryShares(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	engine := metrics.NewEngine(metrics.DefaultThresholds())
	t.Cleanup(engine.Stop)

	profile := &workload.Profile{
		Users:     10,
		SpawnRate: 10,
		Categories: []workload.Category{
			{
				Name:  "browse",
				Share: 70,
				Tasks: []workload.Task{{Name: "home", Category: "browse", Weight: 1, Method: "GET", Path: "/"}},
			},
			{
				Name:  "api",
				Share: 30,
				Tasks: []workload.Task{{Name: "ping", Category: "api", Weight: 1, Method: "GET", Path: "/ping"}},
			},
		},
	}
	ex := executor.New(executor.DefaultConfig(srv.URL), engine)
	s := NewScheduler(profile, workload.NewDispatcher(profile), ex, engine, nil)
	s.Tick = 20 * time.Millisecond
	s.Graceful = 5 * time.Second

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	waitForPopulation(t, s, 10, 10)

	counts := make(map[string]int)
	for _, vu := range s.Units() {
		counts[vu.Category]++
	}

	s.Stop()
	<-done

	if counts["browse"] != 7 || counts["api"] != 3 {
		t.Errorf("category split = %v, want browse:7 api:3", counts)
	}
}
