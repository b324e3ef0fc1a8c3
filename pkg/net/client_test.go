package net

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mchmarny/cipherbench/pkg/bench"
	"github.com/mchmarny/cipherbench/pkg/data"
	"github.com/mchmarny/cipherbench/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/score", func(w http.ResponseWriter, r *http.Request) {
		var req RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "text required"})
			return
		}
		json.NewEncoder(w).Encode(&bench.Result{Index: 1, Original: req.Text, Recovered: req.Text, Success: true, Outcome: score.Scored})
	})
	mux.HandleFunc("POST /api/runs", func(w http.ResponseWriter, r *http.Request) {
		var req RunRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(&data.Run{ID: "abc", Seed: req.Seed, Samples: len(req.Samples)})
	})
	mux.HandleFunc("GET /api/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode([]*data.Run{{ID: "abc"}, {ID: "def"}})
	})
	mux.HandleFunc("GET /api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "abc" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(&data.Run{ID: "abc"})
	})

	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)

	c, err := NewClient(s.URL+"/", s.Client())
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:8080/", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", c.baseURL)
	assert.NotNil(t, c.http)

	_, err = NewClient("ftp://example.com", nil)
	assert.Error(t, err)

	_, err = NewClient("://bad", nil)
	assert.Error(t, err)
}

func TestClient_Score(t *testing.T) {
	c := newTestServer(t)

	r, err := c.Score(context.Background(), &RunRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", r.Recovered)
	assert.Equal(t, score.Scored, r.Outcome)

	_, err = c.Score(context.Background(), &RunRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "text required", apiErr.Message)
}

func TestClient_Runs(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	run, err := c.CreateRun(ctx, &RunRequest{Samples: []string{"a", "b"}, Seed: 9})
	require.NoError(t, err)
	assert.Equal(t, "abc", run.ID)
	assert.Equal(t, uint64(9), run.Seed)
	assert.Equal(t, 2, run.Samples)

	list, err := c.ListRuns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := c.GetRun(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)

	_, err = c.GetRun(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Canceled(t *testing.T) {
	c := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListRuns(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrintHTTPResponse_Nil(t *testing.T) {
	// should not panic
	PrintHTTPResponse(nil)
}

func TestPrintHTTPResponse_WithResponse(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       http.NoBody,
	}
	// should not panic
	PrintHTTPResponse(resp)
}
