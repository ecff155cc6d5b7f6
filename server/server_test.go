package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	srv := New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestMovesEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp := get(t, ts.URL+"/api/moves?from=b1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[movesResponse](t, resp)
	assert.Equal(t, "b1", got.From)
	assert.Equal(t, []string{"d2", "c3", "a3"}, got.Moves)

	resp = get(t, ts.URL+"/api/moves?from=b1&blocked=c3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"d2", "a3"}, decode[movesResponse](t, resp).Moves)

	resp = get(t, ts.URL+"/api/moves?from=a1&torus=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[movesResponse](t, resp).Moves, 8)

	resp = get(t, ts.URL+"/api/moves?from=2,2&size=3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[movesResponse](t, resp).Moves)
}

func TestMovesEndpointRejectsBadQueries(t *testing.T) {
	ts := newTestServer(t, Options{})

	for _, query := range []string{
		"",
		"?from=i9",
		"?from=b1&size=x",
		"?from=b1&size=-3",
		"?from=b1&torus=maybe",
		"?from=b1&blocked=%3F%3F",
	} {
		resp := get(t, ts.URL+"/api/moves"+query)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		assert.NotEmpty(t, decode[errorResponse](t, resp).Error, query)
	}
}

func TestSimulateEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	seed := int64(2025)
	body := map[string]any{"start": "b1", "steps": 500, "seed": seed}

	resp := postJSON(t, ts.URL+"/api/simulate", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[simulateResponse](t, resp)

	assert.Equal(t, 501, first.Total)
	assert.Equal(t, seed, first.Seed)
	assert.Equal(t, len(first.Visits), first.Unique)
	require.Len(t, first.Rings, 4)
	squares := 0
	for _, r := range first.Rings {
		squares += r.Squares
	}
	assert.Equal(t, 64, squares)

	again := decode[simulateResponse](t, postJSON(t, ts.URL+"/api/simulate", body))
	assert.Equal(t, first, again)
}

func TestSimulateEndpointEdgeCases(t *testing.T) {
	ts := newTestServer(t, Options{MaxSteps: 1000})

	resp := postJSON(t, ts.URL+"/api/simulate", map[string]any{"start": "a1", "steps": 0, "seed": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	zero := decode[simulateResponse](t, resp)
	assert.Equal(t, []visitPayload{{Square: "a1", Count: 1}}, zero.Visits)
	assert.Empty(t, zero.Rings)

	resp = postJSON(t, ts.URL+"/api/simulate", map[string]any{"start": "b2", "size": 3, "steps": 10, "seed": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stuck := decode[simulateResponse](t, resp)
	assert.Equal(t, []visitPayload{{Square: "b2", Count: 11}}, stuck.Visits)

	resp = postJSON(t, ts.URL+"/api/simulate", map[string]any{"start": "b1", "steps": 5000})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/simulate", map[string]any{"steps": 10})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/simulate", map[string]any{"start": "b1", "steps": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bad, err := http.Post(ts.URL+"/api/simulate", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	assert.Equal(t, http.StatusMethodNotAllowed, get(t, ts.URL+"/api/simulate").StatusCode)
}

func TestLiveWalkResetAndStep(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp := postJSON(t, ts.URL+"/api/reset", map[string]any{"start": "a1", "blocked": []string{"d4", "e5"}, "seed": 9})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reset := decode[statePayload](t, resp)
	assert.NotEmpty(t, reset.ID)
	assert.Equal(t, "a1", reset.Position)
	assert.Equal(t, []string{"d4", "e5"}, reset.Blocked)
	assert.Equal(t, 0, reset.Steps)

	resp = postJSON(t, ts.URL+"/api/step", map[string]any{"count": 25})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stepped := decode[statePayload](t, resp)
	assert.Equal(t, reset.ID, stepped.ID)
	assert.Equal(t, 25, stepped.Steps)
	total := 0
	for _, v := range stepped.Visits {
		assert.NotContains(t, []string{"d4", "e5"}, v.Square)
		total += v.Count
	}
	assert.Equal(t, 26, total)
	assert.NotEmpty(t, stepped.Rings)

	state := decode[statePayload](t, get(t, ts.URL+"/api/state"))
	assert.Equal(t, stepped, state)

	next := decode[statePayload](t, postJSON(t, ts.URL+"/api/reset", map[string]any{}))
	assert.NotEqual(t, reset.ID, next.ID)
	assert.Equal(t, "b1", next.Start)
}

func TestLiveWalkStuckStopsStepping(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp := postJSON(t, ts.URL+"/api/reset", map[string]any{"start": "b2", "size": 3, "seed": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stepped := decode[statePayload](t, postJSON(t, ts.URL+"/api/step", map[string]any{"count": 5}))
	assert.True(t, stepped.Stuck)
	assert.Equal(t, 0, stepped.Steps)
	assert.Equal(t, "b2", stepped.Position)

	resp = postJSON(t, ts.URL+"/api/auto", autoRequest{Running: true, IntervalMS: 5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAutoPlayStepsTheLiveWalk(t *testing.T) {
	ts := newTestServer(t, Options{})
	postJSON(t, ts.URL+"/api/reset", map[string]any{"seed": 3})

	resp := postJSON(t, ts.URL+"/api/auto", autoRequest{Running: true, IntervalMS: 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[autoResponse](t, resp).Running)

	resp = postJSON(t, ts.URL+"/api/step", map[string]any{"count": 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.Eventually(t, func() bool {
		r, err := http.Get(ts.URL + "/api/state")
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var s statePayload
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			return false
		}
		return s.AutoPlaying && s.Steps >= 3
	}, 2*time.Second, 10*time.Millisecond)

	resp = postJSON(t, ts.URL+"/api/auto", autoRequest{Running: false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[autoResponse](t, resp).Running)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	postJSON(t, ts.URL+"/api/simulate", map[string]any{"start": "b1", "steps": 10, "seed": 1})

	resp := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "knightwalk_walks_total")
	assert.Contains(t, string(body), "knightwalk_walk_steps")
}
