package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mchmarny/cipherbench/pkg/data"
	"github.com/mchmarny/cipherbench/pkg/net"
)

const (
	maxRequestBytes = 1 << 20
	maxListLimit    = 500
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeRunRequest(w http.ResponseWriter, r *http.Request) (*net.RunRequest, error) {
	var req net.RunRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &req, nil
}

// scoreAPIHandler scores a single string without saving it.
func scoreAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeRunRequest(w, r)
		if err != nil {
			slog.Error("error binding json", "error", err)
			writeError(w, http.StatusBadRequest, "error binding json")
			return
		}
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, "text required")
			return
		}

		req.Samples = []string{req.Text}
		run, status, err := runFromRequest(r, cfg, req)
		if err != nil {
			writeError(w, status, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, run.Results[0])
	}
}

// createRunAPIHandler runs the configured samples, or the ones in the
// request, and stores the run.
func createRunAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeRunRequest(w, r)
		if err != nil {
			slog.Error("error binding json", "error", err)
			writeError(w, http.StatusBadRequest, "error binding json")
			return
		}

		run, status, err := runFromRequest(r, cfg, req)
		if err != nil {
			writeError(w, status, err.Error())
			return
		}

		if err := data.SaveRun(cfg.DB, run); err != nil {
			slog.Error("failed to save run", "error", err)
			writeError(w, http.StatusInternalServerError, "error saving run")
			return
		}

		writeJSON(w, http.StatusCreated, run)
	}
}

func runFromRequest(r *http.Request, cfg *appConfig, req *net.RunRequest) (*data.Run, int, error) {
	conf := *cfg.Config
	if len(req.Samples) > 0 {
		conf.Samples = req.Samples
	}
	if req.Seed != 0 {
		conf.Seed = req.Seed
	}
	if req.Multiplier != 0 {
		conf.MaxLengthMultiplier = req.Multiplier
	}
	if err := conf.Validate(); err != nil {
		return nil, http.StatusBadRequest, err
	}

	run, err := runBenchmark(r.Context(), cfg, &conf)
	if err != nil {
		slog.Error("failed to run benchmark", "error", err)
		return nil, http.StatusInternalServerError, errors.New("error running benchmark")
	}
	return run, http.StatusOK, nil
}

func listRunsAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryParamInt(r, "limit", data.RunListLimitDefault)
		runs, err := data.ListRuns(db, limit)
		if err != nil {
			slog.Error("failed to list runs", "error", err)
			writeError(w, http.StatusInternalServerError, "error querying runs")
			return
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func getRunAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := data.GetRun(db, r.PathValue("id"))
		if err != nil {
			writeRunError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func deleteRunAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := data.DeleteRun(db, r.PathValue("id")); err != nil {
			writeRunError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func stateAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state, err := data.GetDataState(db)
		if err != nil {
			slog.Error("failed to get database state", "error", err)
			writeError(w, http.StatusInternalServerError, "error querying state")
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, data.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, data.ErrAmbiguousRun):
		writeError(w, http.StatusConflict, "run id prefix is ambiguous")
	default:
		slog.Error("failed to query run", "error", err)
		writeError(w, http.StatusInternalServerError, "error querying run")
	}
}

func queryParamInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Error("error converting query string to int", "value", v, "error", err)
		return def
	}

	if i < 1 || i > maxListLimit {
		return def
	}

	return i
}
