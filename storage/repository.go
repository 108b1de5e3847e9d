// Package storage talks to a remote graph store over the RDF4J HTTP
// repository protocol (GraphDB, RDF4J Server and compatible stores).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360studio/activitygraph/export"
	"github.com/c360studio/activitygraph/failure"
	"github.com/c360studio/activitygraph/graph"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Observer receives one call per HTTP request sent to the store.
type Observer interface {
	ObserveStoreRequest(op string, status int, d time.Duration)
}

// Options configures a Repository.
type Options struct {
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration

	// RequestID is sent as X-Request-ID on every request.
	RequestID string

	Observer Observer
	Logger   *slog.Logger
}

// Repository addresses one repository on a graph store server.
type Repository struct {
	server    *url.URL
	repo      *url.URL
	id        string
	client    *http.Client
	requestID string
	observer  Observer
	logger    *slog.Logger
}

// NewHTTPClient returns a client with a tuned transport and the given timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// NewRepository creates a handle for repository id on the server at endpoint
// (e.g. http://localhost:7200).
func NewRepository(endpoint, id string, opts Options) (*Repository, error) {
	server, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse store endpoint: %w", err)
	}
	if server.Scheme != "http" && server.Scheme != "https" {
		return nil, fmt.Errorf("store endpoint must be http or https: %s", endpoint)
	}
	if id == "" {
		return nil, errors.New("repository id is required")
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = NewHTTPClient(timeout)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Repository{
		server:    server,
		repo:      server.JoinPath("repositories", id),
		id:        id,
		client:    client,
		requestID: opts.RequestID,
		observer:  opts.Observer,
		logger:    logger,
	}, nil
}

// ID returns the repository id.
func (r *Repository) ID() string {
	return r.id
}

// URL returns the repository URL.
func (r *Repository) URL() string {
	return r.repo.String()
}

// WithRequestID returns a copy of r that sends id as X-Request-ID.
func (r *Repository) WithRequestID(id string) *Repository {
	cp := *r
	cp.requestID = id
	return &cp
}

// Connect checks that the server speaks the protocol and opens a connection.
func (r *Repository) Connect(ctx context.Context) (*Connection, error) {
	_, body, err := r.do(ctx, "protocol", http.MethodGet, r.server.JoinPath("protocol"), "", nil)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Connected to graph store",
		"repository", r.URL(),
		"protocol", strings.TrimSpace(string(body)))
	return &Connection{repo: r}, nil
}

func (r *Repository) do(ctx context.Context, op, method string, u *url.URL, contentType string, body io.Reader) (http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, nil, failure.Store(op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.requestID != "" {
		req.Header.Set("X-Request-ID", r.requestID)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.observe(op, 0, time.Since(start))
		return nil, nil, failure.Store(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	r.observe(op, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, nil, failure.Store(op, fmt.Errorf("read response: %w", err))
	}

	r.logger.Debug("Graph store request",
		"op", op,
		"method", method,
		"url", u.String(),
		"status", resp.StatusCode)

	if resp.StatusCode/100 != 2 {
		excerpt := strings.TrimSpace(string(data))
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, nil, failure.Store(op, &StatusError{
			Method: method,
			URL:    u.String(),
			Status: resp.StatusCode,
			Body:   excerpt,
		})
	}
	return resp.Header, data, nil
}

func (r *Repository) observe(op string, status int, d time.Duration) {
	if r.observer != nil {
		r.observer.ObserveStoreRequest(op, status, d)
	}
}

// Connection is a sequential session against a repository. It is not safe
// for concurrent use.
type Connection struct {
	repo   *Repository
	txn    *url.URL
	closed bool
}

// InTransaction reports whether a transaction is open.
func (c *Connection) InTransaction() bool {
	return c.txn != nil
}

// Clear removes every statement from the repository. Outside a transaction
// the delete is applied immediately.
func (c *Connection) Clear(ctx context.Context) error {
	if c.closed {
		return failure.Store("clear", ErrClosed)
	}
	if c.txn != nil {
		u := withQuery(c.txn, url.Values{"action": {"UPDATE"}})
		_, _, err := c.repo.do(ctx, "clear", http.MethodPut, u, "application/sparql-update", strings.NewReader("CLEAR ALL"))
		return err
	}
	_, _, err := c.repo.do(ctx, "clear", http.MethodDelete, c.repo.repo.JoinPath("statements"), "", nil)
	return err
}

// Begin opens a transaction. Subsequent adds join it until Commit or Rollback.
func (c *Connection) Begin(ctx context.Context) error {
	if c.closed {
		return failure.Store("begin", ErrClosed)
	}
	if c.txn != nil {
		return failure.Store("begin", ErrTransactionActive)
	}

	header, _, err := c.repo.do(ctx, "begin", http.MethodPost, c.repo.repo.JoinPath("transactions"), "", nil)
	if err != nil {
		return err
	}

	location := header.Get("Location")
	if location == "" {
		return failure.Store("begin", errors.New("transaction response has no Location header"))
	}
	loc, err := url.Parse(location)
	if err != nil {
		return failure.Store("begin", fmt.Errorf("parse transaction location: %w", err))
	}
	c.txn = c.repo.repo.ResolveReference(loc)

	c.repo.logger.Debug("Transaction started", "txn", c.txn.String())
	return nil
}

// Add uploads an RDF document. baseIRI resolves relative IRIs in the
// document and may be empty.
func (c *Connection) Add(ctx context.Context, r io.Reader, baseIRI string, format export.Format) error {
	if c.closed {
		return failure.Store("add", ErrClosed)
	}
	info, ok := export.GetFormatInfo(format)
	if !ok {
		return failure.Store("add", fmt.Errorf("unsupported format: %s", format))
	}

	params := url.Values{}
	if baseIRI != "" {
		params.Set("baseURI", baseIRI)
	}

	if c.txn != nil {
		params.Set("action", "ADD")
		_, _, err := c.repo.do(ctx, "add", http.MethodPut, withQuery(c.txn, params), info.MIMEType, r)
		return err
	}
	_, _, err := c.repo.do(ctx, "add", http.MethodPost, withQuery(c.repo.repo.JoinPath("statements"), params), info.MIMEType, r)
	return err
}

// AddGraph uploads every statement of g in one request.
func (c *Connection) AddGraph(ctx context.Context, g *graph.Graph) error {
	data, err := export.Serialize(g, export.FormatNTriples)
	if err != nil {
		return failure.Store("add", fmt.Errorf("serialize graph: %w", err))
	}
	return c.Add(ctx, bytes.NewReader(data), "", export.FormatNTriples)
}

// Commit applies the open transaction.
func (c *Connection) Commit(ctx context.Context) error {
	if c.closed {
		return failure.Store("commit", ErrClosed)
	}
	if c.txn == nil {
		return failure.Store("commit", ErrNoTransaction)
	}
	_, _, err := c.repo.do(ctx, "commit", http.MethodPut, withQuery(c.txn, url.Values{"action": {"COMMIT"}}), "", nil)
	if err != nil {
		return err
	}
	c.txn = nil
	return nil
}

// Rollback discards the open transaction.
func (c *Connection) Rollback(ctx context.Context) error {
	if c.closed {
		return failure.Store("rollback", ErrClosed)
	}
	if c.txn == nil {
		return failure.Store("rollback", ErrNoTransaction)
	}
	txn := c.txn
	c.txn = nil
	_, _, err := c.repo.do(ctx, "rollback", http.MethodDelete, txn, "", nil)
	return err
}

// Close releases the connection, rolling back any open transaction. Closing
// twice is a no-op.
func (c *Connection) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	var err error
	if c.txn != nil {
		c.repo.logger.Warn("Rolling back uncommitted transaction", "txn", c.txn.String())
		err = c.Rollback(ctx)
	}
	c.closed = true
	return err
}

func withQuery(u *url.URL, params url.Values) *url.URL {
	out := *u
	q := out.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	out.RawQuery = q.Encode()
	return &out
}
