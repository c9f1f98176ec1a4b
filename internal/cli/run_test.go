package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBuildProfileFromScenario(t *testing.T) {
	p, err := buildProfile("baseline", "", 0, 0, 0)
	if err != nil {
		t.Fatalf("buildProfile failed: %v", err)
	}
	if p.Users != 10 || p.SpawnRate != 2 || p.Duration != 5*time.Minute {
		t.Errorf("baseline profile = %d/%d/%s", p.Users, p.SpawnRate, p.Duration)
	}
	if len(p.Categories) == 0 {
		t.Error("scenario profile has no catalog")
	}
}

func TestBuildProfileOverrides(t *testing.T) {
	p, err := buildProfile("stress", "", 200, 20, time.Minute)
	if err != nil {
		t.Fatalf("buildProfile failed: %v", err)
	}
	if p.Users != 200 || p.SpawnRate != 20 || p.Duration != time.Minute {
		t.Errorf("overrides not applied: %d/%d/%s", p.Users, p.SpawnRate, p.Duration)
	}
}

func TestBuildProfileUnknownScenario(t *testing.T) {
	if _, err := buildProfile("avalanche", "", 0, 0, 0); err == nil {
		t.Error("unknown scenario did not fail")
	}
}

func TestBuildProfileFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workload.yaml")
	data := `
users: 8
spawnRate: 4
duration: 90s
categories:
  - name: api
    share: 100
    tasks:
      - name: ping
        weight: 1
        method: GET
        path: /ping
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := buildProfile("baseline", path, 0, 0, 0)
	if err != nil {
		t.Fatalf("buildProfile failed: %v", err)
	}
	if p.Users != 8 || p.SpawnRate != 4 || p.Duration != 90*time.Second {
		t.Errorf("file profile = %d/%d/%s", p.Users, p.SpawnRate, p.Duration)
	}

	// Flag overrides beat file values.
	p, err = buildProfile("baseline", path, 16, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Users != 16 || p.SpawnRate != 4 {
		t.Errorf("override on file profile = %d/%d", p.Users, p.SpawnRate)
	}
}

func TestBuildProfileMissingFile(t *testing.T) {
	if _, err := buildProfile("baseline", filepath.Join(t.TempDir(), "nope.yaml"), 0, 0, 0); err == nil {
		t.Error("missing profile file did not fail")
	}
}

func TestBuildLogger(t *testing.T) {
	if buildLogger(false) == nil {
		t.Error("production logger is nil")
	}
	if buildLogger(true) == nil {
		t.Error("development logger is nil")
	}
}
