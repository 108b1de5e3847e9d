package graph

import "github.com/c360studio/activitygraph/vocabulary/activity"

// Triple is a single RDF statement.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// String returns the statement as an N-Triples line without the trailing newline.
func (t Triple) String() string {
	return t.Subject.NTriples() + " " + t.Predicate.NTriples() + " " + t.Object.NTriples() + " ."
}

// Graph is an ordered list of statements. Statements are kept in emission
// order and are never deduplicated.
type Graph struct {
	triples []Triple
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// FromTriples returns a graph holding a copy of ts.
func FromTriples(ts []Triple) *Graph {
	g := &Graph{triples: make([]Triple, len(ts))}
	copy(g.triples, ts)
	return g
}

// Add appends the statement (subject, predicate, object) where subject and
// predicate are IRIs.
func (g *Graph) Add(subject, predicate string, object Term) {
	g.triples = append(g.triples, Triple{
		Subject:   IRI(subject),
		Predicate: IRI(predicate),
		Object:    object,
	})
}

// AddTriple appends t.
func (g *Graph) AddTriple(t Triple) {
	g.triples = append(g.triples, t)
}

// Len returns the number of statements.
func (g *Graph) Len() int {
	return len(g.triples)
}

// Triples returns a copy of the statements in emission order.
func (g *Graph) Triples() []Triple {
	out := make([]Triple, len(g.triples))
	copy(out, g.triples)
	return out
}

// Each calls fn for every statement in order.
func (g *Graph) Each(fn func(Triple)) {
	for _, t := range g.triples {
		fn(t)
	}
}

// Objects returns the objects of all statements with the given subject and
// predicate IRIs, in order.
func (g *Graph) Objects(subject, predicate string) []Term {
	var out []Term
	for _, t := range g.triples {
		if t.Subject == IRI(subject) && t.Predicate == IRI(predicate) {
			out = append(out, t.Object)
		}
	}
	return out
}

// SubjectsOfType returns the subjects typed with class, in first-seen order.
func (g *Graph) SubjectsOfType(class string) []Term {
	seen := make(map[Term]bool)
	var out []Term
	for _, t := range g.triples {
		if t.Predicate != IRI(activity.RDFType) || t.Object != IRI(class) {
			continue
		}
		if !seen[t.Subject] {
			seen[t.Subject] = true
			out = append(out, t.Subject)
		}
	}
	return out
}

// CountByType returns the number of distinct subjects typed with class.
func (g *Graph) CountByType(class string) int {
	return len(g.SubjectsOfType(class))
}

// Equal reports whether g and other hold the same set of statements,
// ignoring order.
func (g *Graph) Equal(other *Graph) bool {
	a, b := g.set(), other.set()
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func (g *Graph) set() map[Triple]bool {
	s := make(map[Triple]bool, len(g.triples))
	for _, t := range g.triples {
		s[t] = true
	}
	return s
}
