package optimizer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Direction controls whether the study treats larger or smaller
// objective values as better.
type Direction string

const (
	Minimize Direction = "minimize"
	Maximize Direction = "maximize"
)

// ParseDirection maps a config string to a Direction; empty defaults to
// maximize.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "maximize":
		return Maximize, nil
	case "minimize":
		return Minimize, nil
	default:
		return "", fmt.Errorf("optimizer: unknown direction %q", s)
	}
}

// Trial states persisted in the study.
const (
	StateComplete = "complete"
	StateFailed   = "failed"
)

// TrialRecord is the persisted form of a finished trial.
type TrialRecord struct {
	ID     int                `json:"id"`
	State  string             `json:"state"`
	Value  float64            `json:"value"`
	Params map[string]float64 `json:"params"`
}

var (
	bucketTrials = []byte("trials")
	bucketMeta   = []byte("meta")
	keyBest      = []byte("best")
	keyName      = []byte("name")
)

// Study is a bbolt-backed store of trial results shared between
// workers. Each finished trial is appended under a monotonically
// increasing id, and the best complete trial is tracked under a meta
// key so lookups stay O(1).
type Study struct {
	db        *bolt.DB
	name      string
	direction Direction
}

// OpenStudy opens (or creates) the study database at path. The open
// blocks up to the lock timeout when another process holds the file,
// so concurrent runs against the same study fail fast instead of
// hanging forever.
func OpenStudy(path, name string, direction Direction) (*Study, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("optimizer: open study %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTrials); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		return meta.Put(keyName, []byte(name))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("optimizer: init study %s: %w", path, err)
	}
	return &Study{db: db, name: name, direction: direction}, nil
}

func (s *Study) Close() error { return s.db.Close() }

// Name returns the study name recorded at creation.
func (s *Study) Name() string { return s.name }

// Direction returns the study's optimization direction.
func (s *Study) Direction() Direction { return s.direction }

// better reports whether candidate improves on incumbent under the
// study direction.
func (s *Study) better(candidate, incumbent float64) bool {
	if s.direction == Minimize {
		return candidate < incumbent
	}
	return candidate > incumbent
}

// NextTrialID reserves the next trial id.
func (s *Study) NextTrialID() (int, error) {
	var id uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		id, err = tx.Bucket(bucketTrials).NextSequence()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("optimizer: reserve trial id: %w", err)
	}
	return int(id), nil
}

// RecordTrial persists a finished trial and, when it is complete and
// improves on the incumbent, promotes it to the study best. Both
// writes happen in one transaction so a crash cannot leave the best
// pointer ahead of the trial log.
func (s *Study) RecordTrial(rec TrialRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("optimizer: encode trial %d: %w", rec.ID, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketTrials).Put(trialKey(rec.ID), data); err != nil {
			return err
		}
		if rec.State != StateComplete {
			return nil
		}
		meta := tx.Bucket(bucketMeta)
		current := meta.Get(keyBest)
		if current != nil {
			var best TrialRecord
			if err := json.Unmarshal(current, &best); err == nil && !s.better(rec.Value, best.Value) {
				return nil
			}
		}
		return meta.Put(keyBest, data)
	})
	if err != nil {
		return fmt.Errorf("optimizer: record trial %d: %w", rec.ID, err)
	}
	return nil
}

// BestTrial returns the best complete trial so far. The second return
// is false when no trial has completed yet.
func (s *Study) BestTrial() (TrialRecord, bool, error) {
	var rec TrialRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyBest)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return TrialRecord{}, false, fmt.Errorf("optimizer: read best trial: %w", err)
	}
	return rec, found, nil
}

// BestParams returns the best trial's parameters, or nil when no trial
// has completed.
func (s *Study) BestParams() (map[string]float64, error) {
	rec, found, err := s.BestTrial()
	if err != nil || !found {
		return nil, err
	}
	return rec.Params, nil
}

// BestValue returns the best trial's value. The second return is false
// when no trial has completed.
func (s *Study) BestValue() (float64, bool, error) {
	rec, found, err := s.BestTrial()
	return rec.Value, found, err
}

// Trials returns every persisted trial in id order.
func (s *Study) Trials() ([]TrialRecord, error) {
	var out []TrialRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTrials).ForEach(func(_, v []byte) error {
			var rec TrialRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("optimizer: list trials: %w", err)
	}
	return out, nil
}

// Len returns the number of persisted trials.
func (s *Study) Len() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketTrials).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("optimizer: count trials: %w", err)
	}
	return n, nil
}

// trialKey encodes the id big-endian so bucket iteration follows trial
// order.
func trialKey(id int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
