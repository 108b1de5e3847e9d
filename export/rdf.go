// Package export serializes activity graphs to RDF text formats and parses
// them back.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/c360studio/activitygraph/failure"
	"github.com/c360studio/activitygraph/graph"
	"github.com/c360studio/activitygraph/vocabulary/activity"
	"github.com/knakk/rdf"
)

func codecFor(format Format) (rdf.Format, error) {
	info, ok := FormatRegistry[format]
	if !ok {
		return 0, fmt.Errorf("unsupported format: %s", format)
	}
	return info.codec, nil
}

// Encode writes g to w in the given format.
func Encode(w io.Writer, g *graph.Graph, format Format) error {
	codec, err := codecFor(format)
	if err != nil {
		return err
	}

	enc := rdf.NewTripleEncoder(w, codec)
	if format == FormatTurtle {
		enc.Namespaces = namespaces()
	}

	for _, t := range g.Triples() {
		rt, err := toRDF(t)
		if err != nil {
			return fmt.Errorf("encode %s: %w", t, err)
		}
		if err := enc.Encode(rt); err != nil {
			return fmt.Errorf("encode %s: %w", t, err)
		}
	}
	return enc.Close()
}

// Serialize returns g in the given format.
func Serialize(g *graph.Graph, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, g, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile serializes g to path, replacing any existing file.
func WriteFile(path string, g *graph.Graph, format Format) error {
	data, err := Serialize(g, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return failure.IO("write output", err)
	}
	return nil
}

// Decode parses a document in the given format. Malformed input is a parse
// failure.
func Decode(r io.Reader, format Format) (*graph.Graph, error) {
	codec, err := codecFor(format)
	if err != nil {
		return nil, err
	}

	dec := rdf.NewTripleDecoder(r, codec)
	g := graph.New()
	for {
		rt, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return g, nil
		}
		if err != nil {
			return nil, failure.Parse("decode "+string(format), err)
		}
		g.AddTriple(fromRDF(rt))
	}
}

// namespaces maps namespace IRIs to the prefixes written in Turtle output.
func namespaces() map[string]string {
	out := make(map[string]string)
	for prefix, iri := range activity.Prefixes() {
		out[iri] = prefix
	}
	return out
}

func toRDF(t graph.Triple) (rdf.Triple, error) {
	var out rdf.Triple

	switch t.Subject.Kind {
	case graph.KindIRI:
		iri, err := rdf.NewIRI(t.Subject.Value)
		if err != nil {
			return out, err
		}
		out.Subj = iri
	case graph.KindBlank:
		b, err := rdf.NewBlank(t.Subject.Value)
		if err != nil {
			return out, err
		}
		out.Subj = b
	default:
		return out, fmt.Errorf("invalid subject kind %s", t.Subject.Kind)
	}

	if t.Predicate.Kind != graph.KindIRI {
		return out, fmt.Errorf("invalid predicate kind %s", t.Predicate.Kind)
	}
	pred, err := rdf.NewIRI(t.Predicate.Value)
	if err != nil {
		return out, err
	}
	out.Pred = pred

	switch t.Object.Kind {
	case graph.KindIRI:
		iri, err := rdf.NewIRI(t.Object.Value)
		if err != nil {
			return out, err
		}
		out.Obj = iri
	case graph.KindBlank:
		b, err := rdf.NewBlank(t.Object.Value)
		if err != nil {
			return out, err
		}
		out.Obj = b
	case graph.KindLiteral:
		lit, err := toLiteral(t.Object)
		if err != nil {
			return out, err
		}
		out.Obj = lit
	default:
		return out, fmt.Errorf("invalid object kind %s", t.Object.Kind)
	}
	return out, nil
}

func toLiteral(term graph.Term) (rdf.Literal, error) {
	if term.Lang != "" {
		return rdf.NewLangLiteral(term.Value, term.Lang)
	}
	dt, err := rdf.NewIRI(term.Datatype)
	if err != nil {
		return rdf.Literal{}, err
	}
	return rdf.NewTypedLiteral(term.Value, dt), nil
}

func fromRDF(t rdf.Triple) graph.Triple {
	return graph.Triple{
		Subject:   fromTerm(t.Subj),
		Predicate: fromTerm(t.Pred),
		Object:    fromTerm(t.Obj),
	}
}

func fromTerm(term rdf.Term) graph.Term {
	switch v := term.(type) {
	case rdf.IRI:
		return graph.IRI(v.String())
	case rdf.Blank:
		return graph.Blank(v.String())
	case rdf.Literal:
		if lang := v.Lang(); lang != "" {
			return graph.LangLiteral(v.String(), lang)
		}
		return graph.Literal(v.String(), v.DataType.String())
	default:
		return graph.Term{}
	}
}
