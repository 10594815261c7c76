// Package storage persists experiment run records. It uses BoltDB as the
// underlying storage engine so past runs can be compared without re-training.
//
// Records are keyed by start time, which gives efficient range queries over
// run history.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"winepress/internal/classify"
)

const runsBucket = "runs" // Bucket name for experiment run records

// RunRecord captures one full experiment: the dataset state, the winning
// hyperparameters, cross-validation results, and held-out evaluation.
type RunRecord struct {
	StartedAt    time.Time            `json:"startedAt"`
	Duration     time.Duration        `json:"duration"`
	DatasetPath  string               `json:"datasetPath"`
	Rows         int                  `json:"rows"`
	RemovedRows  int                  `json:"removedRows"`
	Classes      []string             `json:"classes"`
	BestParams   classify.Params      `json:"bestParams"`
	CVResults    []classify.CVResult  `json:"cvResults"`
	TestAccuracy float64              `json:"testAccuracy"`
	Evaluation   *classify.Evaluation `json:"evaluation,omitempty"`
}

// Store provides persistent storage for experiment runs.
type Store struct {
	db *bbolt.DB
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "winepress.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SaveRun stores a run record keyed by its start time.
func (s *Store) SaveRun(rec RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		return b.Put(runKey(rec.StartedAt), data)
	})
}

// GetRuns returns all runs with start times in [start, end], oldest first.
func (s *Store) GetRuns(start, end time.Time) ([]RunRecord, error) {
	var runs []RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		min, max := runKey(start), runKey(end)
		for k, v := c.Seek(min); k != nil && bytes.Compare(k, max) <= 0; k, v = c.Next() {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal run %s: %w", k, err)
			}
			runs = append(runs, rec)
		}
		return nil
	})
	return runs, err
}

// LatestRun returns the most recent run, or nil when no run is stored.
func (s *Store) LatestRun() (*RunRecord, error) {
	var rec *RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket([]byte(runsBucket)).Cursor().Last()
		if v == nil {
			return nil
		}
		rec = &RunRecord{}
		return json.Unmarshal(v, rec)
	})
	return rec, err
}

// BestRun returns the stored run with the highest test accuracy, or nil
// when no run is stored.
func (s *Store) BestRun() (*RunRecord, error) {
	var best *RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal run %s: %w", k, err)
			}
			if best == nil || rec.TestAccuracy > best.TestAccuracy {
				best = &rec
			}
			return nil
		})
	})
	return best, err
}

// runKey encodes a timestamp as a byte-sortable key. Zero-padded UnixNano
// keeps keys fixed-width so cursor ordering matches time ordering.
func runKey(t time.Time) []byte {
	return []byte(fmt.Sprintf("%019d", t.UnixNano()))
}
