// Package output renders run progress and the final summary to a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"stampede/internal/engine"
	"stampede/internal/report"
)

// Console renders live progress during a run. In interactive mode it
// rewrites a single status line; in headless mode it emits one plain line
// per update interval, suitable for CI logs.
type Console struct {
	w        io.Writer
	headless bool
	isTTY    bool
	interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewConsole creates a console writing to stdout. Headless forces plain
// line output even on a TTY.
func NewConsole(headless bool) *Console {
	isTTY := isatty.IsTerminal(os.Stdout.Fd())

	interval := time.Second
	if headless || !isTTY {
		headless = true
		interval = 10 * time.Second
	}

	return &Console{
		w:        os.Stdout,
		headless: headless,
		isTTY:    isTTY,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Watch renders progress from status until Stop is called.
func (c *Console) Watch(status func() engine.Status) {
	go func() {
		defer close(c.doneCh)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stopCh:
				if !c.headless {
					fmt.Fprintln(c.w)
				}
				return
			case <-ticker.C:
				c.render(status())
			}
		}
	}()
}

// Stop ends progress rendering and waits for the renderer to finish.
func (c *Console) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Console) render(st engine.Status) {
	snap := st.Snapshot
	if snap == nil {
		return
	}

	line := fmt.Sprintf("elapsed %s  vus %d/%d  reqs %d  rps %.1f  err %.2f%%  p95 %s",
		st.Elapsed.Truncate(time.Second),
		st.Population, st.Target,
		snap.TotalRequests,
		snap.Throughput,
		snap.ErrorRate*100,
		snap.Latency.P95.Truncate(time.Millisecond))

	if c.headless {
		fmt.Fprintln(c.w, line)
		return
	}
	fmt.Fprintf(c.w, "\r\033[K%s", line)
}

// Summary prints the final report summary.
func (c *Console) Summary(r *report.Report) {
	snap := r.Snapshot

	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	if !c.isTTY {
		color.NoColor = true
	}

	fmt.Fprintf(c.w, "\n%s\n", bold(fmt.Sprintf("Run %s (%s) against %s", r.RunID, r.Scenario, r.Target)))
	fmt.Fprintf(c.w, "  duration        %s\n", r.EndTime.Sub(r.StartTime).Truncate(time.Second))
	fmt.Fprintf(c.w, "  requests        %d\n", snap.TotalRequests)
	fmt.Fprintf(c.w, "  throughput      %.1f req/s\n", snap.Throughput)
	fmt.Fprintf(c.w, "  error rate      %.2f%%\n", snap.ErrorRate*100)
	fmt.Fprintf(c.w, "  latency p50     %s\n", snap.Latency.P50.Truncate(time.Millisecond))
	fmt.Fprintf(c.w, "  latency p95     %s\n", snap.Latency.P95.Truncate(time.Millisecond))
	fmt.Fprintf(c.w, "  latency p99     %s\n", snap.Latency.P99.Truncate(time.Millisecond))
	if snap.SpawnFailures > 0 {
		fmt.Fprintf(c.w, "  spawn failures  %d\n", snap.SpawnFailures)
	}
	if snap.SampleGaps > 0 {
		fmt.Fprintf(c.w, "  sample gaps     %d\n", snap.SampleGaps)
	}

	if len(snap.PerTask) > 0 {
		fmt.Fprintf(c.w, "\n%s\n", bold("Per task"))
		names := make([]string, 0, len(snap.PerTask))
		for name := range snap.PerTask {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			stats := snap.PerTask[name]
			fmt.Fprintf(c.w, "  %-22s count %-8d p50 %-10s p95 %-10s p99 %s\n",
				name, stats.Count,
				stats.P50.Truncate(time.Millisecond),
				stats.P95.Truncate(time.Millisecond),
				stats.P99.Truncate(time.Millisecond))
		}
	}

	if len(snap.Breaches) > 0 {
		fmt.Fprintf(c.w, "\n%s\n", red(bold("Threshold breaches")))
		for _, b := range snap.Breaches {
			fmt.Fprintf(c.w, "  %s %s: %s (threshold %s)\n", red("✗"), b.Metric+"/"+b.Scope, b.Value, b.Threshold)
		}
	} else {
		fmt.Fprintf(c.w, "\n%s all thresholds met\n", green("✓"))
	}
}
