// Package ontology loads the activity ontology into the graph store.
//
// The ontology ships inside the binary; operators may point the loader at
// another Turtle file instead. Either way the document is parsed first so a
// malformed ontology fails before anything is sent, and then submitted
// byte-for-byte.
package ontology

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/c360studio/activitygraph/export"
	"github.com/c360studio/activitygraph/failure"
	"github.com/c360studio/activitygraph/vocabulary/activity"
)

// BundledName is the file name of the embedded ontology.
const BundledName = "Activity_Ontology.owl"

//go:embed Activity_Ontology.owl
var bundled []byte

// Bundled returns a copy of the embedded ontology document.
func Bundled() []byte {
	out := make([]byte, len(bundled))
	copy(out, bundled)
	return out
}

// Open returns the bundled ontology when path is empty, otherwise the file at path.
func Open(path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(bytes.NewReader(bundled)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.IO("open ontology", err)
	}
	return f, nil
}

// Adder is the part of a graph store connection the loader needs.
type Adder interface {
	Add(ctx context.Context, r io.Reader, baseIRI string, format export.Format) error
}

// Loader submits the ontology document to a store connection.
type Loader struct {
	// Path overrides the bundled document when non-empty.
	Path string

	// BaseIRI resolves relative IRIs in the document. Defaults to urn:base.
	BaseIRI string

	Logger *slog.Logger
}

// NewLoader creates a loader for the bundled ontology.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{BaseIRI: activity.OntologyBaseIRI, Logger: logger}
}

// Read returns the raw ontology document.
func (l *Loader) Read() ([]byte, error) {
	rc, err := Open(l.Path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, failure.IO("read ontology", err)
	}
	return data, nil
}

// Parse reads the ontology and returns its statement count.
func (l *Loader) Parse() ([]byte, int, error) {
	data, err := l.Read()
	if err != nil {
		return nil, 0, err
	}
	g, err := export.Decode(bytes.NewReader(data), export.FormatTurtle)
	if err != nil {
		return nil, 0, fmt.Errorf("parse ontology %s: %w", l.source(), err)
	}
	return data, g.Len(), nil
}

// Load parses the ontology and submits it through conn. It returns the
// number of statements submitted.
func (l *Loader) Load(ctx context.Context, conn Adder) (int, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	data, n, err := l.Parse()
	if err != nil {
		return 0, err
	}

	baseIRI := l.BaseIRI
	if baseIRI == "" {
		baseIRI = activity.OntologyBaseIRI
	}

	logger.Info("Loading ontology",
		"source", l.source(),
		"statements", n,
		"base_iri", baseIRI)

	if err := conn.Add(ctx, bytes.NewReader(data), baseIRI, export.FormatTurtle); err != nil {
		return 0, fmt.Errorf("submit ontology: %w", err)
	}
	return n, nil
}

func (l *Loader) source() string {
	if l.Path == "" {
		return "bundled:" + BundledName
	}
	return l.Path
}
