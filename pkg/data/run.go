package data

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/cipherbench/pkg/bench"
	"github.com/mchmarny/cipherbench/pkg/score"
	"github.com/pkg/errors"
)

const (
	insertRunSQL = `INSERT INTO run (id, created_at, seed, max_length_multiplier, samples, average_score)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	insertResultSQL = `INSERT INTO result (run_id, idx, original, output, recovered, success, score, elapsed_ns, outcome, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	insertMetricSQL = `INSERT INTO metric (run_id, idx, name, value) VALUES (?, ?, ?, ?)`

	selectRunsSQL = `SELECT id, created_at, seed, max_length_multiplier, samples, average_score
		FROM run
		ORDER BY created_at DESC
		LIMIT ?
	`

	selectRunByPrefixSQL = `SELECT id, created_at, seed, max_length_multiplier, samples, average_score
		FROM run
		WHERE id LIKE ? ESCAPE '\'
		LIMIT 2
	`

	selectResultsSQL = `SELECT idx, original, output, recovered, success, score, elapsed_ns, outcome, reason
		FROM result
		WHERE run_id = ?
		ORDER BY idx
	`

	selectMetricsSQL = `SELECT idx, name, value FROM metric WHERE run_id = ?`

	deleteMetricsSQL = `DELETE FROM metric WHERE run_id = ?`
	deleteResultsSQL = `DELETE FROM result WHERE run_id = ?`
	deleteRunSQL     = `DELETE FROM run WHERE id = ?`

	RunListLimitDefault = 20

	// fixed width so text ordering matches time ordering
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrAmbiguousRun = errors.New("run id prefix matches more than one run")
)

// Run is one persisted benchmark run.
type Run struct {
	ID                  string          `json:"id" yaml:"id"`
	CreatedAt           time.Time       `json:"created_at" yaml:"created_at"`
	Seed                uint64          `json:"seed" yaml:"seed"`
	MaxLengthMultiplier float64         `json:"max_length_multiplier" yaml:"max_length_multiplier"`
	Samples             int             `json:"samples" yaml:"samples"`
	AverageScore        float64         `json:"average_score" yaml:"average_score"`
	Results             []*bench.Result `json:"results,omitempty" yaml:"results,omitempty"`
}

// NewRun wraps results in a run with a fresh ID.
func NewRun(results []*bench.Result, seed uint64, multiplier float64) *Run {
	return &Run{
		ID:                  uuid.NewString(),
		CreatedAt:           time.Now().UTC(),
		Seed:                seed,
		MaxLengthMultiplier: multiplier,
		Samples:             len(results),
		AverageScore:        bench.Mean(bench.Scores(results)),
		Results:             results,
	}
}

// SaveRun stores the run, its results and their metric values in one transaction.
func SaveRun(db *sql.DB, r *Run) error {
	if db == nil {
		return errDBNotInitialized
	}
	if r == nil || r.ID == "" {
		return errors.New("run with an ID required")
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	if err := saveRun(tx, r); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit run")
	}
	return nil
}

func saveRun(tx *sql.Tx, r *Run) error {
	if _, err := tx.Exec(insertRunSQL, r.ID, r.CreatedAt.UTC().Format(timeFormat),
		strconv.FormatUint(r.Seed, 10), r.MaxLengthMultiplier, r.Samples, r.AverageScore); err != nil {
		return errors.Wrapf(err, "failed to insert run: %s", r.ID)
	}

	resStmt, err := tx.Prepare(insertResultSQL)
	if err != nil {
		return errors.Wrap(err, "failed to prepare result insert statement")
	}
	defer resStmt.Close()

	metStmt, err := tx.Prepare(insertMetricSQL)
	if err != nil {
		return errors.Wrap(err, "failed to prepare metric insert statement")
	}
	defer metStmt.Close()

	for _, res := range r.Results {
		if _, err := resStmt.Exec(r.ID, res.Index, res.Original, res.Output, res.Recovered,
			res.Success, res.Score, res.Elapsed.Nanoseconds(), res.Outcome.String(), res.Reason); err != nil {
			return errors.Wrapf(err, "failed to insert result %d", res.Index)
		}
		for name, v := range res.Summary {
			if _, err := metStmt.Exec(r.ID, res.Index, name, v); err != nil {
				return errors.Wrapf(err, "failed to insert metric %s for result %d", name, res.Index)
			}
		}
	}
	return nil
}

// ListRuns returns the most recent runs without their results.
func ListRuns(db *sql.DB, limit int) ([]*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = RunListLimitDefault
	}

	rows, err := db.Query(selectRunsSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute run select statement")
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate runs")
	}
	return list, nil
}

// GetRun returns the run whose ID starts with id, including results.
func GetRun(db *sql.DB, id string) (*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if id == "" {
		return nil, errors.New("run id required")
	}

	rows, err := db.Query(selectRunByPrefixSQL, likePrefix(id))
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute run select statement")
	}

	var matches []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, r)
	}
	rows.Close()

	switch len(matches) {
	case 0:
		return nil, errors.Wrapf(ErrRunNotFound, "id: %s", id)
	case 1:
	default:
		return nil, errors.Wrapf(ErrAmbiguousRun, "id: %s", id)
	}

	r := matches[0]
	if r.Results, err = getResults(db, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteRun removes a run with its results and metrics.
func DeleteRun(db *sql.DB, id string) error {
	if db == nil {
		return errDBNotInitialized
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []string{deleteMetricsSQL, deleteResultsSQL} {
		if _, err := tx.Exec(q, id); err != nil {
			return errors.Wrapf(err, "failed to delete run data: %s", id)
		}
	}

	res, err := tx.Exec(deleteRunSQL, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete run: %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrRunNotFound, "id: %s", id)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit run delete")
	}
	return nil
}

func getResults(db *sql.DB, runID string) ([]*bench.Result, error) {
	rows, err := db.Query(selectResultsSQL, runID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute result select statement")
	}
	defer rows.Close()

	list := make([]*bench.Result, 0)
	byIndex := make(map[int]*bench.Result)
	for rows.Next() {
		var (
			res     bench.Result
			elapsed int64
			outcome string
			reason  sql.NullString
		)
		if err := rows.Scan(&res.Index, &res.Original, &res.Output, &res.Recovered,
			&res.Success, &res.Score, &elapsed, &outcome, &reason); err != nil {
			return nil, errors.Wrap(err, "failed to scan result row")
		}
		res.Elapsed = time.Duration(elapsed)
		res.Reason = reason.String
		if res.Outcome, err = score.ParseOutcome(outcome); err != nil {
			return nil, errors.Wrapf(err, "result %d", res.Index)
		}
		res.Summary = make(map[string]float64)
		list = append(list, &res)
		byIndex[res.Index] = &res
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate results")
	}

	mRows, err := db.Query(selectMetricsSQL, runID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute metric select statement")
	}
	defer mRows.Close()

	for mRows.Next() {
		var (
			idx   int
			name  string
			value float64
		)
		if err := mRows.Scan(&idx, &name, &value); err != nil {
			return nil, errors.Wrap(err, "failed to scan metric row")
		}
		if res, ok := byIndex[idx]; ok {
			res.Summary[name] = value
		}
	}
	if err := mRows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate metrics")
	}

	return list, nil
}

// likePrefix escapes LIKE wildcards in id and matches anything after it.
func likePrefix(id string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(id) + "%"
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r       Run
		created string
		seed    string
	)
	if err := s.Scan(&r.ID, &created, &seed, &r.MaxLengthMultiplier, &r.Samples, &r.AverageScore); err != nil {
		return nil, errors.Wrap(err, "failed to scan run row")
	}

	var err error
	if r.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return nil, errors.Wrapf(err, "invalid run timestamp: %s", created)
	}
	if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, errors.Wrapf(err, "invalid run seed: %s", seed)
	}
	return &r, nil
}
