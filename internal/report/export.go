package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Format selects an output artifact type.
type Format string

const (
	// FormatJSON is the structured machine-readable metrics file.
	FormatJSON Format = "json"

	// FormatCSV is the raw per-request tabular dump.
	FormatCSV Format = "csv"

	// FormatHTML is the optional rendered summary.
	FormatHTML Format = "html"
)

// DefaultDir is where artifacts land when the caller gives no path.
const DefaultDir = "reports"

// Export serializes the report into the requested formats under dir and
// returns the written file paths. It is a pure function of its input: the
// same report and format set produce byte-identical files.
func Export(r *Report, formats []Format, dir string) ([]string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	for _, f := range formats {
		var (
			path string
			err  error
		)
		switch f {
		case FormatJSON:
			path = filepath.Join(dir, r.RunID+"-metrics.json")
			err = writeJSON(r, path)
		case FormatCSV:
			path = filepath.Join(dir, r.RunID+"-requests.csv")
			err = writeCSV(r, path)
		case FormatHTML:
			path = filepath.Join(dir, r.RunID+"-report.html")
			err = writeHTML(r, path)
		default:
			return paths, fmt.Errorf("unknown format %q", f)
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// Marshal renders the structured artifact. Struct fields serialize in
// declaration order and map keys sort, so output is deterministic.
func Marshal(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// Parse reads a structured artifact back into a report. Durations and
// rates round-trip bit-for-bit: durations serialize as integer nanoseconds
// and floats use Go's shortest round-trippable representation.
func Parse(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}

func writeJSON(r *Report, path string) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// writeCSV dumps one row per request record in completion order.
func writeCSV(r *Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create requests dump: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"task", "class", "start", "end", "outcome", "latency_ms"}); err != nil {
		return err
	}

	for _, rec := range r.Records {
		row := []string{
			rec.TaskName,
			rec.Class,
			rec.Start.Format(time.RFC3339Nano),
			rec.End.Format(time.RFC3339Nano),
			string(rec.Outcome),
			strconv.FormatFloat(float64(rec.Latency)/float64(time.Millisecond), 'f', 3, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write requests dump: %w", err)
	}
	return nil
}
