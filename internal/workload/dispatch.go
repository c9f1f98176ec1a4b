package workload

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// Dispatcher selects the next task for a virtual user via weighted random
// choice. Selection tables are precomputed per category at construction;
// after that, every Next call is an independent uniform draw with a binary
// search, carrying no state between selections.
//
// Dispatcher is safe for concurrent use: the tables are read-only and the
// top-level math/rand functions are safe under concurrency.
type Dispatcher struct {
	tables map[string]*weightTable
}

type weightTable struct {
	tasks    []Task
	cum      []int // cumulative weights, strictly increasing
	total    int
	thinkMin time.Duration
	thinkMax time.Duration
}

// NewDispatcher builds the per-category selection tables from a validated
// profile.
func NewDispatcher(p *Profile) *Dispatcher {
	tables := make(map[string]*weightTable, len(p.Categories))

	for _, c := range p.Categories {
		wt := &weightTable{
			tasks:    make([]Task, len(c.Tasks)),
			cum:      make([]int, len(c.Tasks)),
			thinkMin: c.ThinkMin,
			thinkMax: c.ThinkMax,
		}
		for i, t := range c.Tasks {
			if t.Category == "" {
				t.Category = c.Name
			}
			wt.tasks[i] = t
			wt.total += t.Weight
			wt.cum[i] = wt.total
		}
		tables[c.Name] = wt
	}

	return &Dispatcher{tables: tables}
}

// Next waits the category's think-time and then returns the next task.
// The wait holds no lock and is cancelled by ctx, in which case Next
// returns ctx.Err and no task.
func (d *Dispatcher) Next(ctx context.Context, category string) (Task, error) {
	wt, ok := d.tables[category]
	if !ok {
		return Task{}, fmt.Errorf("unknown category %q", category)
	}

	if wait := wt.thinkTime(); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Task{}, ctx.Err()
		case <-timer.C:
		}
	}

	return wt.pick(), nil
}

// Pick returns a weighted random task for the category without waiting.
func (d *Dispatcher) Pick(category string) (Task, error) {
	wt, ok := d.tables[category]
	if !ok {
		return Task{}, fmt.Errorf("unknown category %q", category)
	}
	return wt.pick(), nil
}

func (wt *weightTable) pick() Task {
	draw := rand.Intn(wt.total)
	idx := sort.Search(len(wt.cum), func(i int) bool { return wt.cum[i] > draw })
	return wt.tasks[idx]
}

func (wt *weightTable) thinkTime() time.Duration {
	if wt.thinkMax <= wt.thinkMin {
		return wt.thinkMin
	}
	return wt.thinkMin + time.Duration(rand.Int63n(int64(wt.thinkMax-wt.thinkMin)))
}
