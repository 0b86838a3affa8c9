// Package corpus provides read-only access to a sqlite training corpus of
// eye-image samples.
//
// Every exported method opens its own connection and closes it before
// returning. Training runs span hours and iterate the corpus thousands of
// times; a connection is never held across calls.
package corpus

import (
	"database/sql"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SampleType distinguishes the two labeling tasks stored in the corpus.
type SampleType string

const (
	// Openness samples carry a scalar eye-openness label.
	Openness SampleType = "openness"
	// Gaze samples carry a (theta1, theta2) pitch/yaw label pair.
	Gaze SampleType = "gaze"
)

// Eyes selects which frame columns a task requires to be non-empty.
type Eyes int

const (
	// LeftEye requires leftEyeFrame.
	LeftEye Eyes = iota
	// RightEye requires rightEyeFrame.
	RightEye
	// BothEyes requires both frames (combined models).
	BothEyes
)

func (e Eyes) String() string {
	switch e {
	case LeftEye:
		return "left"
	case RightEye:
		return "right"
	default:
		return "combined"
	}
}

func (e Eyes) predicate() string {
	switch e {
	case LeftEye:
		return "leftEyeFrame != ''"
	case RightEye:
		return "rightEyeFrame != ''"
	default:
		return "leftEyeFrame != '' AND rightEyeFrame != ''"
	}
}

// Frames holds the raw (still encoded) eye frames of one corpus row.
type Frames struct {
	Key   int64  `db:"rowid"`
	Left  string `db:"leftEyeFrame"`
	Right string `db:"rightEyeFrame"`
}

// Store is a handle on a corpus file. It holds no open connection.
type Store struct {
	path string
}

// NewStore validates that the corpus file exists and returns a handle on it.
func NewStore(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "corpus not found at %s", path)
	}
	return &Store{path: path}, nil
}

// Path returns the corpus file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) open() (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open corpus %s", s.path)
	}
	return db, nil
}

// SampleKeys selects the keys and labels of every row eligible for the given
// task, in randomized order, truncated to limit if limit > 0. Labels are
// aligned 1:1 with keys: one element for openness tasks, two (theta1, theta2)
// for gaze tasks. The ordering is the engine's RANDOM() and is not
// reproducible across calls.
func (s *Store) SampleKeys(typ SampleType, eyes Eyes, limit int) ([]int64, [][]float64, error) {
	db, err := s.open()
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	cols := "rowid, openness"
	if typ == Gaze {
		cols = "rowid, theta1, theta2"
	}
	query := "SELECT " + cols + " FROM training_data WHERE " + eyes.predicate() +
		" AND type = ? ORDER BY RANDOM()"
	args := []interface{}{string(typ)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "sample %s/%s keys", typ, eyes)
	}
	defer rows.Close()

	var keys []int64
	var labels [][]float64
	for rows.Next() {
		var key int64
		if typ == Gaze {
			var t1, t2 float64
			if err := rows.Scan(&key, &t1, &t2); err != nil {
				return nil, nil, errors.Wrapf(err, "scan gaze row")
			}
			labels = append(labels, []float64{t1, t2})
		} else {
			var open float64
			if err := rows.Scan(&key, &open); err != nil {
				return nil, nil, errors.Wrapf(err, "scan openness row")
			}
			labels = append(labels, []float64{open})
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrapf(err, "iterate sampled rows")
	}
	return keys, labels, nil
}

// FetchFrames fetches the frame columns for exactly the given keys. If any
// key has no row, it returns a *MissingRowError naming every absent key.
func (s *Store) FetchFrames(keys []int64) (map[int64]Frames, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query, args, err := sqlx.In(
		"SELECT rowid, leftEyeFrame, rightEyeFrame FROM training_data WHERE rowid IN (?)", keys)
	if err != nil {
		return nil, errors.Wrapf(err, "build batch query")
	}

	var fetched []Frames
	if err := db.Select(&fetched, query, args...); err != nil {
		return nil, errors.Wrapf(err, "fetch %d rows", len(keys))
	}

	out := make(map[int64]Frames, len(fetched))
	for _, f := range fetched {
		out[f.Key] = f
	}
	if len(out) < len(keys) {
		var missing []int64
		for _, k := range keys {
			if _, ok := out[k]; !ok {
				missing = append(missing, k)
			}
		}
		return nil, &MissingRowError{Keys: missing}
	}
	return out, nil
}

// KeyExists reports whether a row with the given key is present.
func (s *Store) KeyExists(key int64) (bool, error) {
	db, err := s.open()
	if err != nil {
		return false, err
	}
	defer db.Close()

	var one int
	err = db.QueryRow("SELECT 1 FROM training_data WHERE rowid = ? LIMIT 1", key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "check key %d", key)
	}
	return true, nil
}

// GazeAngles returns the (theta1, theta2) pairs of randomly sampled gaze rows
// that have at least one non-empty eye frame. Used by the heatmap tool.
func (s *Store) GazeAngles(limit int) ([]float64, []float64, error) {
	db, err := s.open()
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	query := `SELECT theta1, theta2 FROM training_data
		WHERE (leftEyeFrame != '' OR rightEyeFrame != '') AND type = 'gaze'
		ORDER BY RANDOM()`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "query gaze angles")
	}
	defer rows.Close()

	var theta1, theta2 []float64
	for rows.Next() {
		var t1, t2 float64
		if err := rows.Scan(&t1, &t2); err != nil {
			return nil, nil, errors.Wrapf(err, "scan gaze angles")
		}
		theta1 = append(theta1, t1)
		theta2 = append(theta2, t2)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrapf(err, "iterate gaze angles")
	}
	return theta1, theta2, nil
}
