// Package history persists run summaries across invocations.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const bucketRuns = "runs"

// Entry is the stored summary of one completed run.
type Entry struct {
	RunID     string    `json:"runId"`
	Scenario  string    `json:"scenario"`
	Target    string    `json:"target"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	Requests   int64         `json:"requests"`
	ErrorRate  float64       `json:"errorRate"`
	Throughput float64       `json:"throughput"`
	P95        time.Duration `json:"p95"`
	Breaches   int           `json:"breaches"`
}

// Store is a bbolt-backed run history.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the history database under the user's home
// directory, or at path if non-empty.
func Open(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir := filepath.Join(home, ".stampede")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "history.db")
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores one entry. Keys are start-time prefixed so iteration order
// is chronological.
func (s *Store) Save(e Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))

		key := []byte(e.StartTime.UTC().Format(time.RFC3339Nano) + "/" + e.RunID)
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// List returns all entries, oldest first.
func (s *Store) List() ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))
		return b.ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}
