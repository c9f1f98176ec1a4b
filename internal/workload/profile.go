// Package workload defines what a load test runs: the profile (population,
// ramp, duration), the per-category task catalog with weights, and the
// dispatcher that picks each virtual user's next task.
package workload

import (
	"fmt"
	"time"
)

// Task classes, used to select the right latency threshold.
const (
	ClassAPI  = "api"
	ClassPage = "page"
)

// Rule describes how a response proves the task succeeded. A response that
// arrives but fails the rule is a validation error, not a success.
type Rule struct {
	// ExpectStatus is the exact status code required. 0 means any 2xx/3xx.
	ExpectStatus int `json:"expectStatus,omitempty" yaml:"expectStatus,omitempty"`

	// BodyPath is a gjson path that must exist in the response body.
	BodyPath string `json:"bodyPath,omitempty" yaml:"bodyPath,omitempty"`

	// BodySchema is a JSON schema the response body must satisfy.
	BodySchema string `json:"bodySchema,omitempty" yaml:"bodySchema,omitempty"`
}

// Task describes one call a virtual user can make against the target.
type Task struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Class    string `json:"class,omitempty" yaml:"class,omitempty"`
	Weight   int    `json:"weight" yaml:"weight"`

	Method string `json:"method" yaml:"method"`
	Path   string `json:"path" yaml:"path"`
	Body   string `json:"body,omitempty" yaml:"body,omitempty"`

	Rule Rule `json:"rule,omitempty" yaml:"rule,omitempty"`
}

// Category groups tasks for one kind of simulated user and carries its
// share of the spawned population and its think-time interval.
type Category struct {
	Name string `json:"name" yaml:"name"`

	// Share is this category's percentage of the spawned population.
	// Shares across the profile sum to 100.
	Share int `json:"share" yaml:"share"`

	// ThinkMin/ThinkMax bound the uniform think-time wait between tasks.
	ThinkMin time.Duration `json:"thinkMin" yaml:"thinkMin"`
	ThinkMax time.Duration `json:"thinkMax" yaml:"thinkMax"`

	Tasks []Task `json:"tasks" yaml:"tasks"`
}

// Profile is the static configuration for one run.
type Profile struct {
	// Users is the target population of concurrent virtual users.
	Users int `json:"users" yaml:"users"`

	// SpawnRate is the maximum new virtual users per scheduling tick.
	SpawnRate int `json:"spawnRate" yaml:"spawnRate"`

	// Duration is how long to run after ramping starts. Zero means run
	// until stopped.
	Duration time.Duration `json:"duration" yaml:"duration"`

	Categories []Category `json:"categories" yaml:"categories"`
}

// Validate checks the profile invariants: positive population and spawn
// rate, category shares summing to 100, and positive weight sums.
func (p *Profile) Validate() error {
	if p.Users <= 0 {
		return fmt.Errorf("users must be positive, got %d", p.Users)
	}
	if p.SpawnRate <= 0 {
		return fmt.Errorf("spawnRate must be positive, got %d", p.SpawnRate)
	}
	if p.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %s", p.Duration)
	}
	if len(p.Categories) == 0 {
		return fmt.Errorf("profile has no categories")
	}

	shareSum := 0
	seen := make(map[string]bool, len(p.Categories))
	for _, c := range p.Categories {
		if c.Name == "" {
			return fmt.Errorf("category with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true

		if c.Share <= 0 {
			return fmt.Errorf("category %q: share must be positive, got %d", c.Name, c.Share)
		}
		shareSum += c.Share

		if c.ThinkMin < 0 || c.ThinkMax < c.ThinkMin {
			return fmt.Errorf("category %q: invalid think-time interval [%s, %s]", c.Name, c.ThinkMin, c.ThinkMax)
		}
		if len(c.Tasks) == 0 {
			return fmt.Errorf("category %q has no tasks", c.Name)
		}

		weightSum := 0
		for _, t := range c.Tasks {
			if t.Name == "" {
				return fmt.Errorf("category %q: task with empty name", c.Name)
			}
			if t.Weight <= 0 {
				return fmt.Errorf("task %q: weight must be positive, got %d", t.Name, t.Weight)
			}
			if t.Method == "" || t.Path == "" {
				return fmt.Errorf("task %q: method and path are required", t.Name)
			}
			weightSum += t.Weight
		}
		if weightSum <= 0 {
			return fmt.Errorf("category %q: weights must sum to a positive value", c.Name)
		}
	}

	if shareSum != 100 {
		return fmt.Errorf("category shares must sum to 100, got %d", shareSum)
	}

	return nil
}

// Category returns the named category, or nil if absent.
func (p *Profile) Category(name string) *Category {
	for i := range p.Categories {
		if p.Categories[i].Name == name {
			return &p.Categories[i]
		}
	}
	return nil
}

// AssignCategory maps a spawn ordinal to a category name so that the
// realized population follows the configured shares: each category gets
// its block of the 0-99 range, repeated every 100 spawns.
func (p *Profile) AssignCategory(ordinal int) string {
	slot := ordinal % 100
	acc := 0
	for _, c := range p.Categories {
		acc += c.Share
		if slot < acc {
			return c.Name
		}
	}
	// Shares sum to 100, so this is unreachable for valid profiles.
	return p.Categories[len(p.Categories)-1].Name
}

// DefaultCatalog returns the built-in task catalog for the portfolio
// target: page-weighted portfolio browsing, API polling, price-prediction
// lookups, and a thin admin slice.
func DefaultCatalog() []Category {
	return []Category{
		{
			Name:     "portfolio",
			Share:    65,
			ThinkMin: 1 * time.Second,
			ThinkMax: 5 * time.Second,
			Tasks: []Task{
				{Name: "dashboard", Class: ClassPage, Weight: 3, Method: "GET", Path: "/", Rule: Rule{ExpectStatus: 200}},
				{Name: "view-portfolio", Class: ClassPage, Weight: 5, Method: "GET", Path: "/portfolio", Rule: Rule{ExpectStatus: 200}},
				{Name: "view-holdings", Class: ClassPage, Weight: 2, Method: "GET", Path: "/portfolio/holdings", Rule: Rule{ExpectStatus: 200}},
			},
		},
		{
			Name:     "api",
			Share:    20,
			ThinkMin: 500 * time.Millisecond,
			ThinkMax: 2 * time.Second,
			Tasks: []Task{
				{Name: "list-quotes", Class: ClassAPI, Weight: 4, Method: "GET", Path: "/api/quotes", Rule: Rule{ExpectStatus: 200, BodyPath: "quotes"}},
				{Name: "list-holdings", Class: ClassAPI, Weight: 3, Method: "GET", Path: "/api/holdings", Rule: Rule{ExpectStatus: 200}},
				{Name: "recent-transactions", Class: ClassAPI, Weight: 2, Method: "GET", Path: "/api/transactions", Rule: Rule{ExpectStatus: 200}},
			},
		},
		{
			Name:     "prediction",
			Share:    10,
			ThinkMin: 2 * time.Second,
			ThinkMax: 8 * time.Second,
			Tasks: []Task{
				{Name: "predict-price", Class: ClassAPI, Weight: 3, Method: "GET", Path: "/api/predictions/AAPL", Rule: Rule{ExpectStatus: 200, BodyPath: "prediction"}},
				{Name: "prediction-history", Class: ClassAPI, Weight: 1, Method: "GET", Path: "/api/predictions/AAPL/history", Rule: Rule{ExpectStatus: 200}},
			},
		},
		{
			Name:     "admin",
			Share:    5,
			ThinkMin: 3 * time.Second,
			ThinkMax: 10 * time.Second,
			Tasks: []Task{
				{Name: "admin-users", Class: ClassPage, Weight: 2, Method: "GET", Path: "/admin/users", Rule: Rule{ExpectStatus: 200}},
				{Name: "admin-reports", Class: ClassPage, Weight: 1, Method: "GET", Path: "/admin/reports", Rule: Rule{ExpectStatus: 200}},
			},
		},
	}
}
