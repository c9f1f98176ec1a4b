// Package report freezes a run's final aggregated state and serializes it
// into output artifacts.
package report

import (
	"time"

	"github.com/google/uuid"

	"stampede/internal/metrics"
	"stampede/internal/workload"
)

// Report is a frozen copy of the final metrics snapshot plus run metadata.
// Exporters only read it; nothing mutates a report after Finalize.
type Report struct {
	RunID    string `json:"runId"`
	Scenario string `json:"scenario"`
	Target   string `json:"target"`

	Profile workload.Profile `json:"profile"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	Snapshot   *metrics.Snapshot     `json:"snapshot"`
	TimeSeries []*metrics.TimeBucket `json:"timeSeries,omitempty"`

	// Records feed the raw CSV dump only; they are too bulky for the
	// structured artifact.
	Records []metrics.RequestRecord `json:"-"`
}

// Meta carries run identity for the report.
type Meta struct {
	Scenario string
	Target   string
	Profile  workload.Profile
}

// Finalize freezes the engine's final state into a report.
func Finalize(engine *metrics.Engine, meta Meta, endTime time.Time) *Report {
	return &Report{
		RunID:      uuid.NewString(),
		Scenario:   meta.Scenario,
		Target:     meta.Target,
		Profile:    meta.Profile,
		StartTime:  engine.StartTime(),
		EndTime:    endTime,
		Snapshot:   engine.Snapshot(),
		TimeSeries: engine.TimeSeries(),
		Records:    engine.Records(),
	}
}
