// Package pipeline runs one load: connect to the store, clear it, load the
// ontology, build the observation graph, write it to disk, submit it and
// commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/c360studio/activitygraph/export"
	"github.com/c360studio/activitygraph/graph"
	"github.com/c360studio/activitygraph/metrics"
	"github.com/c360studio/activitygraph/ontology"
	"github.com/c360studio/activitygraph/source"
	"github.com/c360studio/activitygraph/storage"
)

// closeTimeout bounds the rollback issued by Close after a failed run.
const closeTimeout = 10 * time.Second

// Store is a graph store connection.
type Store interface {
	Clear(ctx context.Context) error
	Begin(ctx context.Context) error
	Add(ctx context.Context, r io.Reader, baseIRI string, format export.Format) error
	AddGraph(ctx context.Context, g *graph.Graph) error
	Commit(ctx context.Context) error
	Close(ctx context.Context) error
}

// Connector opens a Store for one run.
type Connector interface {
	Connect(ctx context.Context, runID string) (Store, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, runID string) (Store, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context, runID string) (Store, error) {
	return f(ctx, runID)
}

// Repository connects to repo, tagging requests with the run id.
func Repository(repo *storage.Repository) Connector {
	return ConnectorFunc(func(ctx context.Context, runID string) (Store, error) {
		conn, err := repo.WithRequestID(runID).Connect(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// Options configures a Pipeline.
type Options struct {
	// Input is the observations document.
	Input string

	// OutputPath receives the serialized graph.
	OutputPath string

	// Format of the output file. Empty infers it from OutputPath.
	Format export.Format

	// Repository names the target repository in notifications.
	Repository string

	// Ontology loads the vocabulary. Nil uses the bundled ontology.
	Ontology *ontology.Loader

	// Echo receives every data statement as an N-Triples line. Nil disables it.
	Echo io.Writer

	// Publisher announces committed loads. Nil disables notification.
	Publisher graph.Publisher

	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// Result describes a finished run.
type Result struct {
	RunID              string
	Activities         int
	Observations       int
	Statements         int
	OntologyStatements int
	OutputPath         string
	Format             export.Format
	Duration           time.Duration
}

// Pipeline runs loads against a store.
type Pipeline struct {
	connector Connector
	opts      Options
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New creates a Pipeline. connector may be nil for pipelines that only Build.
func New(connector Connector, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("activitygraph")
	}
	if opts.Ontology == nil {
		opts.Ontology = ontology.NewLoader(logger)
	}
	if opts.Format == "" {
		opts.Format = export.FormatForPath(opts.OutputPath)
	}
	return &Pipeline{connector: connector, opts: opts, logger: logger, tracer: tracer}
}

// Run performs a full load. The connection is closed on every path, which
// rolls back the transaction if the run fails before commit.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	if p.connector == nil {
		return nil, errors.New("pipeline has no store connector")
	}

	res = p.newResult()
	logger := p.logger.With("run_id", res.RunID)
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "run", trace.WithAttributes(attribute.String("run_id", res.RunID)))
	defer func() {
		res.Duration = time.Since(start)
		p.opts.Metrics.ObserveRun(err, res.Duration)
		endSpan(span, err)
		if err != nil {
			logger.Error("Run failed", "error", err, "duration", res.Duration)
		}
	}()

	var conn Store
	if err := p.stage(ctx, "connect", func(ctx context.Context) error {
		var cerr error
		conn, cerr = p.connector.Connect(ctx, res.RunID)
		return cerr
	}); err != nil {
		return res, fmt.Errorf("connect to store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := conn.Close(closeCtx); cerr != nil {
			logger.Warn("Failed to close store connection", "error", cerr)
			if err == nil {
				err = fmt.Errorf("close store connection: %w", cerr)
			}
		}
	}()

	if err := p.stage(ctx, "clear", conn.Clear); err != nil {
		return res, fmt.Errorf("clear repository: %w", err)
	}
	logger.Info("Repository cleared", "repository", p.opts.Repository)

	if err := p.stage(ctx, "begin", conn.Begin); err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}

	if err := p.stage(ctx, "load-ontology", func(ctx context.Context) error {
		n, lerr := p.opts.Ontology.Load(ctx, conn)
		res.OntologyStatements = n
		return lerr
	}); err != nil {
		return res, err
	}
	p.opts.Metrics.AddStatements(metrics.GraphOntology, res.OntologyStatements)

	g, err := p.buildAndWrite(ctx, res, logger)
	if err != nil {
		return res, err
	}

	if err := p.stage(ctx, "add-graph", func(ctx context.Context) error {
		return conn.AddGraph(ctx, g)
	}); err != nil {
		return res, fmt.Errorf("submit graph: %w", err)
	}

	if err := p.stage(ctx, "commit", conn.Commit); err != nil {
		return res, fmt.Errorf("commit transaction: %w", err)
	}

	logger.Info("Graph loaded",
		"repository", p.opts.Repository,
		"statements", res.Statements,
		"ontology_statements", res.OntologyStatements,
		"output", res.OutputPath)

	p.notify(ctx, res, logger)
	return res, nil
}

// Build parses the input, builds the graph and writes the output file
// without touching the store.
func (p *Pipeline) Build(ctx context.Context) (res *Result, err error) {
	res = p.newResult()
	logger := p.logger.With("run_id", res.RunID)
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "build-only", trace.WithAttributes(attribute.String("run_id", res.RunID)))
	defer func() {
		res.Duration = time.Since(start)
		endSpan(span, err)
	}()

	if _, err := p.buildAndWrite(ctx, res, logger); err != nil {
		return res, err
	}
	return res, nil
}

func (p *Pipeline) buildAndWrite(ctx context.Context, res *Result, logger *slog.Logger) (*graph.Graph, error) {
	var doc *source.Document
	if err := p.stage(ctx, "parse-input", func(context.Context) error {
		var perr error
		doc, perr = source.LoadFile(p.opts.Input)
		return perr
	}); err != nil {
		return nil, fmt.Errorf("read input %s: %w", p.opts.Input, err)
	}
	res.Activities = len(doc.Activities)
	res.Observations = doc.ObservationCount()

	var g *graph.Graph
	if err := p.stage(ctx, "build-graph", func(context.Context) error {
		var berr error
		g, berr = graph.Build(doc)
		return berr
	}); err != nil {
		return nil, fmt.Errorf("build graph from %s: %w", p.opts.Input, err)
	}
	res.Statements = g.Len()
	p.opts.Metrics.AddStatements(metrics.GraphData, res.Statements)

	logger.Info("Graph built",
		"input", p.opts.Input,
		"activities", res.Activities,
		"observations", res.Observations,
		"statements", res.Statements)

	if p.opts.Echo != nil {
		if err := export.Encode(p.opts.Echo, g, export.FormatNTriples); err != nil {
			logger.Warn("Failed to echo statements", "error", err)
		}
	}

	if err := p.stage(ctx, "write-output", func(context.Context) error {
		return export.WriteFile(p.opts.OutputPath, g, p.opts.Format)
	}); err != nil {
		return nil, err
	}
	logger.Info("Graph written", "path", res.OutputPath, "format", string(res.Format))

	return g, nil
}

func (p *Pipeline) notify(ctx context.Context, res *Result, logger *slog.Logger) {
	if p.opts.Publisher == nil {
		return
	}
	msg := graph.LoadedMessage{
		RunID:              res.RunID,
		Repository:         p.opts.Repository,
		Statements:         res.Statements,
		OntologyStatements: res.OntologyStatements,
		Activities:         res.Activities,
		Observations:       res.Observations,
		OutputPath:         res.OutputPath,
		LoadedAt:           time.Now().UTC(),
	}
	// The load is committed; a failed notification does not fail the run.
	if err := p.stage(ctx, "notify", func(ctx context.Context) error {
		return p.opts.Publisher.PublishLoaded(ctx, msg)
	}); err != nil {
		logger.Warn("Failed to publish load notification", "error", err)
		return
	}
	logger.Debug("Load notification published")
}

func (p *Pipeline) newResult() *Result {
	return &Result{
		RunID:      uuid.NewString(),
		OutputPath: p.opts.OutputPath,
		Format:     p.opts.Format,
	}
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, name)
	err := fn(ctx)
	endSpan(span, err)
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
