package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/activitygraph/failure"
	"github.com/c360studio/activitygraph/vocabulary/activity"
)

const observations = `{"model": {"activities": [
  {"start": "2020-02-10T08:00:00", "end": "2020-02-10T08:30:00", "content": "breakfast",
   "observations": [{"start": "2020-02-10T08:01:00", "end": "2020-02-10T08:05:00", "content": "kettle_on"}]}
]}}`

// execute runs the CLI in an isolated home and working directory.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeObservations(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "observations.json")
	require.NoError(t, os.WriteFile(path, []byte(observations), 0644))
	return path
}

// rdf4jServer accepts every protocol request and records method and path.
func rdf4jServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path+" "+r.URL.Query().Get("action"))
		mu.Unlock()

		switch {
		case r.URL.Path == "/protocol":
			fmt.Fprint(w, "12")
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/transactions"):
			w.Header().Set("Location", r.URL.Path+"/t1")
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), seen...)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "activitygraph version "+Version)
}

func TestOntologyCommand(t *testing.T) {
	out, errOut, err := execute(t, "ontology")
	require.NoError(t, err)
	assert.Contains(t, out, activity.Namespace)
	assert.Contains(t, errOut, "38 statements")
}

func TestBuildCommand(t *testing.T) {
	input := writeObservations(t)
	output := filepath.Join(t.TempDir(), "graph.nt")

	out, _, err := execute(t, "build", "--input", input, "--output", output)
	require.NoError(t, err)

	// 8 activity statements plus 5 for the observation.
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 13)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<"+activity.ObservationElementIRI(0, 0)+">")
}

func TestBuildQuiet(t *testing.T) {
	input := writeObservations(t)
	output := filepath.Join(t.TempDir(), "graph.ttl")

	out, _, err := execute(t, "build", "-q", "-i", input, "-o", output)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.FileExists(t, output)
}

func TestBuildRejectsUnknownFormat(t *testing.T) {
	input := writeObservations(t)
	_, _, err := execute(t, "build", "-i", input, "-o", filepath.Join(t.TempDir(), "g"), "--format", "rdfxml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.format")
}

func TestRunLoadsIntoStore(t *testing.T) {
	srv, seen := rdf4jServer(t)
	input := writeObservations(t)
	output := filepath.Join(t.TempDir(), "Activity_Statements.owl")

	_, _, err := execute(t, "-q", "-i", input, "-o", output, "--endpoint", srv.URL, "--repository", "home")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"GET /protocol ",
		"DELETE /repositories/home/statements ",
		"POST /repositories/home/transactions ",
		"PUT /repositories/home/transactions/t1 ADD",
		"PUT /repositories/home/transactions/t1 ADD",
		"PUT /repositories/home/transactions/t1 COMMIT",
	}, seen())
	assert.FileExists(t, output)
}

func TestRunStoreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "repository unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	input := writeObservations(t)

	_, _, err := execute(t, "-q", "-i", input, "-o", filepath.Join(t.TempDir(), "out.ttl"), "--endpoint", srv.URL)
	require.Error(t, err)
	assert.True(t, failure.IsStore(err))
	assert.Contains(t, err.Error(), "503")
}

func TestConfigShowAppliesFlagsOverFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "activitygraph.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  endpoint: http://graphdb:7200\n  repository: from-file\n"), 0644))

	out, _, err := execute(t, "config", "show", "--config", cfgPath, "--repository", "from-flag")
	require.NoError(t, err)
	assert.Contains(t, out, "endpoint: http://graphdb:7200")
	assert.Contains(t, out, "repository: from-flag")
}

func TestConfigInit(t *testing.T) {
	out, _, err := execute(t, "config", "init")
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.True(t, strings.HasSuffix(path, filepath.Join(".config", "activitygraph", "config.yaml")))
	assert.FileExists(t, path)
}
