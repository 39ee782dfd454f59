package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livinlefevreloca/qrun/internal/db"
	"github.com/livinlefevreloca/qrun/internal/runlog"
	"github.com/livinlefevreloca/qrun/internal/table"
)

// fakeRuntime serves the job endpoints of the runtime service. Every job is
// DONE with a perfect Bell distribution.
type fakeRuntime struct {
	mu         sync.Mutex
	submits    int
	failSubmit map[int]bool
	seeds      []*int64
}

func (f *fakeRuntime) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Params struct {
				Options struct {
					SeedTranspiler *int64 `json:"seed_transpiler"`
				} `json:"options"`
			} `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		n := f.submits
		f.submits++
		f.seeds = append(f.seeds, body.Params.Options.SeedTranspiler)
		fail := f.failSubmit[n]
		f.mu.Unlock()

		if fail {
			http.Error(w, "quota exceeded", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"id": "job-%d"}`, n)
	})
	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "DONE"}`))
	})
	mux.HandleFunc("GET /jobs/{id}/wait", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "JobStatus.DONE"}`))
	})
	mux.HandleFunc("GET /jobs/{id}/results", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"quasi_dists": [{"0": 0.5, "3": 0.5}]}`))
	})
	return mux
}

type testEnv struct {
	dir     string
	config  string
	runtime *fakeRuntime
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{dir: t.TempDir(), runtime: &fakeRuntime{failSubmit: map[int]bool{}}}
	srv := httptest.NewServer(env.runtime.handler())
	t.Cleanup(srv.Close)

	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "backend.json"),
		[]byte(`{"backend_name": "ibm_fake", "timestamp": "2025-03-01T12:00:00Z", "note": "test"}`), 0o644))

	env.config = filepath.Join(env.dir, "qrun.toml")
	content := fmt.Sprintf(`
[runtime]
base_url = %q
token_env = "QRUN_TEST_TOKEN"
requests_per_second = 0

[execution]
poll_interval = "10ms"
timeout = "5s"

[sweep]
scenarios = [1]
time_steps = 2
seed_base = 5
sd_pairs = [10, 20]

[[sweep.algorithms]]
name = "Q-RITA"
optimization_level = 1

[data]
dir = %q

[database]
dsn = %q

[stats]
textfile = %q

[logging]
level = "error"
`, srv.URL, env.dir, filepath.Join(env.dir, "index", "qrun.db"), filepath.Join(env.dir, "qrun.prom"))
	require.NoError(t, os.WriteFile(env.config, []byte(content), 0o644))
	return env
}

func (e *testEnv) run(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *testEnv) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestParseSweeps(t *testing.T) {
	kinds, err := parseSweeps("all")
	require.NoError(t, err)
	assert.Equal(t, table.Kinds, kinds)

	kinds, err = parseSweeps("sdpairs, timeseries,sdpairs")
	require.NoError(t, err)
	assert.Equal(t, []table.Kind{table.SDPairs, table.TimeSeries}, kinds)

	_, err = parseSweeps("spatial")
	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "qrun version dev")
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[metrics]\nrolling_window = 0\n"), 0o644))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "metrics"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rolling_window")
}

func TestCollectMetricsAndRuns(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("collect", "--sweep", "timeseries,sdpairs")
	require.NoError(t, err)

	assert.Equal(t, "scenario,algo,t,shots,success\n1,Q-RITA,0,256,1.0\n1,Q-RITA,1,256,1.0\n",
		env.read(t, "timeseries.csv"))
	assert.Equal(t, "scenario,algo,sd_pairs,success\n1,Q-RITA,10,1.0\n1,Q-RITA,20,1.0\n",
		env.read(t, "sd_pairs_sweep.csv"))
	assert.NoFileExists(t, filepath.Join(env.dir, "distance_sweep.csv"))

	// time-series points carry the derived seed, sweeps do not
	require.Len(t, env.runtime.seeds, 4)
	require.NotNil(t, env.runtime.seeds[0])
	assert.Equal(t, int64(5+97), *env.runtime.seeds[0])
	assert.Equal(t, int64(5+97+1), *env.runtime.seeds[1])
	assert.Nil(t, env.runtime.seeds[2])

	records, err := runlog.ReadFile(filepath.Join(env.dir, "raw_jobs.jsonl"))
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "ts_Q-RITA(1)_000", records[0].Tag)
	assert.Equal(t, "sd_Q-RITA(1)_20", records[3].Tag)
	assert.NotEmpty(t, records[0].SessionID)
	for _, rec := range records {
		assert.True(t, rec.Done())
		assert.Equal(t, "ibm_fake", rec.Backend)
	}

	assert.Contains(t, env.read(t, "qrun.prom"), `qrun_jobs_total{session_id="`+records[0].SessionID+`",status="DONE"} 4`)

	// metrics
	_, err = env.run("metrics")
	require.NoError(t, err)
	assert.Equal(t, "scenario,algo,t,throughput\n1,Q-RITA,0,1000.0\n1,Q-RITA,1,1000.0\n",
		env.read(t, "timeseries_throughput.csv"))
	assert.Equal(t, "scenario,algo,t,satisfaction\n1,Q-RITA,0,1.0\n1,Q-RITA,1,1.0\n",
		env.read(t, "timeseries_satisfaction.csv"))
	assert.Equal(t, "scenario,algo,sd_pairs,throughput,satisfaction\n1,Q-RITA,10,1000.0,1.0\n1,Q-RITA,20,1000.0,1.0\n",
		env.read(t, "sd_pairs_metrics.csv"))

	// runs list
	out, err := env.run("runs", "list", "--tag-prefix", "sd_", "-o", "json")
	require.NoError(t, err)
	var listed []db.JobRecord
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "sd_Q-RITA(1)_10", listed[0].Tag)

	out, err = env.run("runs", "list", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "ts_Q-RITA(1)_000")
	assert.NotContains(t, out, "ts_Q-RITA(1)_001")

	// every record is already indexed by collect
	out, err = env.run("runs", "reindex")
	require.NoError(t, err)
	assert.Contains(t, out, "read 4 records: 0 inserted, 4 already indexed")
}

func TestCollectWritesPartialTableOnSubmitFailure(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.failSubmit[1] = true

	_, err := env.run("collect", "--sweep", "timeseries")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ts_Q-RITA(1)_001")

	assert.Equal(t, "scenario,algo,t,shots,success\n1,Q-RITA,0,256,1.0\n",
		env.read(t, "timeseries.csv"))

	records, err := runlog.ReadFile(filepath.Join(env.dir, "raw_jobs.jsonl"))
	require.NoError(t, err)
	assert.Len(t, records, 1, "a failed submission leaves no record")
}

func TestReindexRebuildsIndexFromRunLog(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("collect", "--sweep", "sdpairs")
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(env.dir, "index")))

	out, err := env.run("runs", "reindex")
	require.NoError(t, err)
	assert.Contains(t, out, "read 2 records: 2 inserted, 0 already indexed")
}
