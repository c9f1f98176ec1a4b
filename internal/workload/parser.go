package workload

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileProfile is the YAML shape of a workload-profile file. Durations are
// strings so "30s" and bare seconds both work.
type fileProfile struct {
	Users      int            `yaml:"users"`
	SpawnRate  int            `yaml:"spawnRate"`
	Duration   string         `yaml:"duration"`
	Categories []fileCategory `yaml:"categories"`
}

type fileCategory struct {
	Name     string `yaml:"name"`
	Share    int    `yaml:"share"`
	ThinkMin string `yaml:"thinkMin"`
	ThinkMax string `yaml:"thinkMax"`
	Tasks    []Task `yaml:"tasks"`
}

// LoadProfile reads a workload profile from a YAML file and validates it.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile parses and validates workload-profile YAML.
func ParseProfile(data []byte) (*Profile, error) {
	var fp fileProfile
	if err := yaml.Unmarshal(data, &fp); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	p := &Profile{
		Users:     fp.Users,
		SpawnRate: fp.SpawnRate,
	}

	var err error
	if p.Duration, err = ParseDurationString(fp.Duration); err != nil {
		return nil, err
	}

	for _, fc := range fp.Categories {
		c := Category{
			Name:  fc.Name,
			Share: fc.Share,
			Tasks: fc.Tasks,
		}
		if c.ThinkMin, err = ParseDurationString(fc.ThinkMin); err != nil {
			return nil, fmt.Errorf("category %q: %w", fc.Name, err)
		}
		if c.ThinkMax, err = ParseDurationString(fc.ThinkMax); err != nil {
			return nil, fmt.Errorf("category %q: %w", fc.Name, err)
		}
		for i := range c.Tasks {
			if c.Tasks[i].Category == "" {
				c.Tasks[i].Category = c.Name
			}
			if c.Tasks[i].Class == "" {
				c.Tasks[i].Class = ClassAPI
			}
		}
		p.Categories = append(p.Categories, c)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseDurationString parses a duration in Go syntax ("30s", "2m") or as
// bare integer seconds ("30"). An empty string is zero.
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var seconds int
	if _, err := fmt.Sscanf(s, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}
