// Package graph holds the in-memory RDF graph built from observation
// documents and the mapping that builds it.
package graph

import (
	"strings"

	"github.com/c360studio/activitygraph/vocabulary/activity"
)

// TermKind discriminates RDF term types.
type TermKind uint8

const (
	KindIRI TermKind = iota + 1
	KindBlank
	KindLiteral
)

func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Term is an RDF term. For literals Datatype is always set; language-tagged
// strings carry Lang and the rdf:langString datatype.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

const rdfLangString = activity.RDFNamespace + "langString"

// IRI returns an IRI term.
func IRI(v string) Term {
	return Term{Kind: KindIRI, Value: v}
}

// Blank returns a blank node term with the given label (without "_:").
func Blank(id string) Term {
	return Term{Kind: KindBlank, Value: strings.TrimPrefix(id, "_:")}
}

// Literal returns a typed literal. An empty datatype means xsd:string.
func Literal(v, datatype string) Term {
	if datatype == "" {
		datatype = activity.XSDString
	}
	return Term{Kind: KindLiteral, Value: v, Datatype: datatype}
}

// LangLiteral returns a language-tagged string literal.
func LangLiteral(v, lang string) Term {
	return Term{Kind: KindLiteral, Value: v, Datatype: rdfLangString, Lang: lang}
}

// String returns an xsd:string literal.
func String(v string) Term {
	return Literal(v, activity.XSDString)
}

// DateTime returns an xsd:dateTime literal holding the lexical form v.
func DateTime(v string) Term {
	return Literal(v, activity.XSDDateTime)
}

// IsIRI reports whether t is an IRI.
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsLiteral reports whether t is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// NTriples returns the N-Triples form of the term for logs and error
// messages. Documents are encoded by package export. xsd:string literals are
// written as simple literals.
func (t Term) NTriples() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		quoted := `"` + escapeLiteral(t.Value) + `"`
		switch {
		case t.Lang != "":
			return quoted + "@" + t.Lang
		case t.Datatype == "" || t.Datatype == activity.XSDString:
			return quoted
		default:
			return quoted + "^^<" + t.Datatype + ">"
		}
	default:
		return ""
	}
}

func (t Term) String() string {
	return t.NTriples()
}

// escapeLiteral escapes special characters for N-Triples string literals.
func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
