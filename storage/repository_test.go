package storage_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/activitygraph/export"
	"github.com/c360studio/activitygraph/failure"
	"github.com/c360studio/activitygraph/graph"
	"github.com/c360studio/activitygraph/storage"
	"github.com/c360studio/activitygraph/vocabulary/activity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type request struct {
	Method      string
	Path        string
	Query       string
	ContentType string
	RequestID   string
	Body        string
}

// fakeStore implements the subset of the RDF4J protocol the client uses.
type fakeStore struct {
	mu        sync.Mutex
	requests  []request
	committed []string
	pending   map[string][]string
	nextTxn   int
	failOn    string
}

func newFakeStore() *fakeStore {
	return &fakeStore{pending: make(map[string][]string)}
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	f.requests = append(f.requests, request{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.RawQuery,
		ContentType: r.Header.Get("Content-Type"),
		RequestID:   r.Header.Get("X-Request-ID"),
		Body:        string(body),
	})

	if f.failOn != "" && strings.Contains(r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery, f.failOn) {
		http.Error(w, "MALFORMED DATA: unexpected token", http.StatusBadRequest)
		return
	}

	const repo = "/repositories/activity"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/protocol":
		fmt.Fprint(w, "12")
	case r.Method == http.MethodDelete && r.URL.Path == repo+"/statements":
		f.committed = nil
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && r.URL.Path == repo+"/statements":
		f.committed = append(f.committed, string(body))
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && r.URL.Path == repo+"/transactions":
		f.nextTxn++
		id := fmt.Sprintf("txn-%d", f.nextTxn)
		f.pending[id] = nil
		w.Header().Set("Location", "http://"+r.Host+repo+"/transactions/"+id)
		w.WriteHeader(http.StatusCreated)
	case strings.HasPrefix(r.URL.Path, repo+"/transactions/"):
		id := strings.TrimPrefix(r.URL.Path, repo+"/transactions/")
		if _, ok := f.pending[id]; !ok {
			http.Error(w, "unknown transaction", http.StatusNotFound)
			return
		}
		switch {
		case r.Method == http.MethodDelete:
			delete(f.pending, id)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Query().Get("action") == "ADD":
			f.pending[id] = append(f.pending[id], string(body))
			w.WriteHeader(http.StatusOK)
		case r.URL.Query().Get("action") == "UPDATE" && string(body) == "CLEAR ALL":
			f.committed = nil
			w.WriteHeader(http.StatusOK)
		case r.URL.Query().Get("action") == "COMMIT":
			f.committed = append(f.committed, f.pending[id]...)
			delete(f.pending, id)
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "unsupported action", http.StatusBadRequest)
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeStore) Requests() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.requests...)
}

func (f *fakeStore) Committed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.committed...)
}

func (f *fakeStore) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

type recordingObserver struct {
	ops []string
}

func (o *recordingObserver) ObserveStoreRequest(op string, status int, _ time.Duration) {
	o.ops = append(o.ops, fmt.Sprintf("%s:%d", op, status))
}

func setup(t *testing.T, opts storage.Options) (*fakeStore, *storage.Connection) {
	t.Helper()
	fake := newFakeStore()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	repo, err := storage.NewRepository(srv.URL+"/", "activity", opts)
	require.NoError(t, err)
	conn, err := repo.Connect(context.Background())
	require.NoError(t, err)
	return fake, conn
}

func TestNewRepositoryValidates(t *testing.T) {
	_, err := storage.NewRepository("localhost:7200", "activity", storage.Options{})
	assert.Error(t, err)

	_, err = storage.NewRepository("http://localhost:7200", "", storage.Options{})
	assert.Error(t, err)

	repo, err := storage.NewRepository("http://localhost:7200/", "activity", storage.Options{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7200/repositories/activity", repo.URL())
	assert.Equal(t, "activity", repo.ID())
}

func TestConnectUnreachableIsStoreError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	repo, err := storage.NewRepository(url, "activity", storage.Options{Timeout: time.Second})
	require.NoError(t, err)
	_, err = repo.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, failure.IsStore(err))
}

func TestTransactionLifecycle(t *testing.T) {
	obs := &recordingObserver{}
	fake, conn := setup(t, storage.Options{Observer: obs, RequestID: "run-1"})
	ctx := context.Background()

	require.NoError(t, conn.Clear(ctx))
	require.NoError(t, conn.Begin(ctx))
	assert.True(t, conn.InTransaction())

	turtle := "@prefix a: <" + activity.Namespace + "> .\na:Activity a a:Class .\n"
	require.NoError(t, conn.Add(ctx, strings.NewReader(turtle), "urn:base", export.FormatTurtle))
	assert.Empty(t, fake.Committed(), "adds inside a transaction are not visible before commit")

	require.NoError(t, conn.Commit(ctx))
	assert.False(t, conn.InTransaction())
	require.NoError(t, conn.Close(ctx))

	assert.Equal(t, []string{turtle}, fake.Committed())
	assert.Zero(t, fake.Pending())

	reqs := fake.Requests()
	require.Len(t, reqs, 5)
	assert.Equal(t, "GET /protocol", reqs[0].Method+" "+reqs[0].Path)
	assert.Equal(t, "DELETE /repositories/activity/statements", reqs[1].Method+" "+reqs[1].Path)
	assert.Equal(t, "POST /repositories/activity/transactions", reqs[2].Method+" "+reqs[2].Path)

	add := reqs[3]
	assert.Equal(t, http.MethodPut, add.Method)
	assert.Equal(t, "/repositories/activity/transactions/txn-1", add.Path)
	assert.Contains(t, add.Query, "action=ADD")
	assert.Contains(t, add.Query, "baseURI=urn%3Abase")
	assert.Equal(t, "text/turtle", add.ContentType)

	assert.Contains(t, reqs[4].Query, "action=COMMIT")

	for _, r := range reqs {
		assert.Equal(t, "run-1", r.RequestID)
	}
	assert.Equal(t, []string{"protocol:200", "clear:204", "begin:201", "add:200", "commit:200"}, obs.ops)
}

func TestAddOutsideTransactionPostsStatements(t *testing.T) {
	fake, conn := setup(t, storage.Options{})
	ctx := context.Background()

	g := graph.New()
	g.Add(activity.ActivityIRI(0), activity.RDFType, graph.IRI(activity.ClassActivity))
	require.NoError(t, conn.AddGraph(ctx, g))

	reqs := fake.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "/repositories/activity/statements", last.Path)
	assert.Equal(t, "application/n-triples", last.ContentType)
	assert.Empty(t, last.Query)

	parsed, err := export.Decode(strings.NewReader(last.Body), export.FormatNTriples)
	require.NoError(t, err)
	assert.True(t, g.Equal(parsed))
}

func TestAddGraphUsesExportEncoding(t *testing.T) {
	fake, conn := setup(t, storage.Options{})
	ctx := context.Background()

	g := graph.New()
	g.Add(activity.ObservationElementIRI(0, 0), activity.HasContentString, graph.String("say \"hi\"\nback\\slash caf\u00e9"))
	g.Add(activity.ObservationElementIRI(0, 0), activity.HasStartDate, graph.DateTime("2020-01-01T10:00:00"))
	require.NoError(t, conn.AddGraph(ctx, g))

	want, err := export.Serialize(g, export.FormatNTriples)
	require.NoError(t, err)
	reqs := fake.Requests()
	assert.Equal(t, string(want), reqs[len(reqs)-1].Body)
}

func TestCloseRollsBackOpenTransaction(t *testing.T) {
	fake, conn := setup(t, storage.Options{})
	ctx := context.Background()

	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Add(ctx, strings.NewReader("<urn:a> <urn:b> <urn:c> .\n"), "", export.FormatNTriples))
	require.NoError(t, conn.Close(ctx))

	assert.Empty(t, fake.Committed())
	assert.Zero(t, fake.Pending())

	reqs := fake.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, http.MethodDelete, last.Method)
	assert.Equal(t, "/repositories/activity/transactions/txn-1", last.Path)

	require.NoError(t, conn.Close(ctx), "second close is a no-op")
	assert.Len(t, fake.Requests(), len(reqs))
}

func TestStatusErrorCarriesResponse(t *testing.T) {
	fake, conn := setup(t, storage.Options{})
	fake.failOn = "action=ADD"
	ctx := context.Background()

	require.NoError(t, conn.Begin(ctx))
	err := conn.Add(ctx, strings.NewReader("not turtle"), "urn:base", export.FormatTurtle)
	require.Error(t, err)
	assert.True(t, failure.IsStore(err))

	var status *storage.StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusBadRequest, status.Status)
	assert.Contains(t, status.Body, "MALFORMED DATA")
	assert.Contains(t, err.Error(), "400")

	require.NoError(t, conn.Close(ctx))
	assert.Zero(t, fake.Pending())
}

func TestTransactionStateErrors(t *testing.T) {
	_, conn := setup(t, storage.Options{})
	ctx := context.Background()

	err := conn.Commit(ctx)
	assert.True(t, failure.IsStore(err))
	assert.ErrorIs(t, err, storage.ErrNoTransaction)

	assert.ErrorIs(t, conn.Rollback(ctx), storage.ErrNoTransaction)

	require.NoError(t, conn.Begin(ctx))
	assert.ErrorIs(t, conn.Begin(ctx), storage.ErrTransactionActive)
	require.NoError(t, conn.Rollback(ctx))

	require.NoError(t, conn.Close(ctx))
	assert.ErrorIs(t, conn.Clear(ctx), storage.ErrClosed)
	assert.ErrorIs(t, conn.Begin(ctx), storage.ErrClosed)
	assert.ErrorIs(t, conn.Add(ctx, strings.NewReader(""), "", export.FormatTurtle), storage.ErrClosed)
}

func TestClearInsideTransaction(t *testing.T) {
	fake, conn := setup(t, storage.Options{})
	ctx := context.Background()

	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Clear(ctx))

	reqs := fake.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, http.MethodPut, last.Method)
	assert.Contains(t, last.Query, "action=UPDATE")
	assert.Equal(t, "application/sparql-update", last.ContentType)
	assert.Equal(t, "CLEAR ALL", last.Body)
	require.NoError(t, conn.Rollback(ctx))
}
