package workload

import (
	"fmt"
	"sort"
	"time"
)

// Scenario is a named run configuration with literal parameters.
type Scenario struct {
	Name        string
	Description string
	Users       int
	SpawnRate   int
	Duration    time.Duration
}

// scenarios is the built-in scenario table.
var scenarios = map[string]Scenario{
	"baseline": {
		Name:        "baseline",
		Description: "light sanity load",
		Users:       10,
		SpawnRate:   2,
		Duration:    5 * time.Minute,
	},
	"normal": {
		Name:        "normal",
		Description: "expected production traffic",
		Users:       100,
		SpawnRate:   10,
		Duration:    10 * time.Minute,
	},
	"stress": {
		Name:        "stress",
		Description: "sustained load beyond expected peak",
		Users:       500,
		SpawnRate:   50,
		Duration:    10 * time.Minute,
	},
	"spike": {
		Name:        "spike",
		Description: "sudden surge to maximum population",
		Users:       1000,
		SpawnRate:   100,
		Duration:    5 * time.Minute,
	},
	"endurance": {
		Name:        "endurance",
		Description: "moderate load held for two hours",
		Users:       150,
		SpawnRate:   15,
		Duration:    2 * time.Hour,
	},
}

// LookupScenario returns the named scenario.
func LookupScenario(name string) (Scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q (available: %v)", name, ScenarioNames())
	}
	return s, nil
}

// ScenarioNames returns all scenario names, sorted.
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scenarios returns all scenarios sorted by name.
func Scenarios() []Scenario {
	out := make([]Scenario, 0, len(scenarios))
	for _, name := range ScenarioNames() {
		out = append(out, scenarios[name])
	}
	return out
}

// Profile builds a workload profile from the scenario and the built-in
// catalog. Overrides of zero keep the scenario's value.
func (s Scenario) Profile(users, spawnRate int, duration time.Duration) *Profile {
	p := &Profile{
		Users:      s.Users,
		SpawnRate:  s.SpawnRate,
		Duration:   s.Duration,
		Categories: DefaultCatalog(),
	}
	if users > 0 {
		p.Users = users
	}
	if spawnRate > 0 {
		p.SpawnRate = spawnRate
	}
	if duration > 0 {
		p.Duration = duration
	}
	return p
}
