package data

import (
	"database/sql"

	"github.com/pkg/errors"
)

var stateQueries = map[string]string{
	"run":     "SELECT COUNT(*) FROM run",
	"result":  "SELECT COUNT(*) FROM result",
	"metric":  "SELECT COUNT(*) FROM metric",
	"version": "SELECT COALESCE(MAX(version), 0) FROM schema_version",
}

// GetDataState returns the current state of the database.
func GetDataState(db *sql.DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	state := make(map[string]int64)
	for k, v := range stateQueries {
		count, err := getCount(db, v)
		if err != nil {
			return nil, errors.Wrapf(err, "error getting %s count", k)
		}
		state[k] = count
	}

	return state, nil
}

func getCount(db *sql.DB, query string) (int64, error) {
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to scan row")
	}
	return count, nil
}
