package graph

import (
	"fmt"

	"github.com/c360studio/activitygraph/failure"
	"github.com/c360studio/activitygraph/source"
	"github.com/c360studio/activitygraph/vocabulary/activity"
)

// StatementsPerActivity is the fixed number of statements emitted for an
// activity before its observations: the Activity node (3), its Element (4)
// and the Observation type statement (1).
const StatementsPerActivity = 8

// StatementsPerObservation is the number of statements emitted per
// observation: the hasElement link plus the Element node (4).
const StatementsPerObservation = 5

// ExpectedLen returns the number of statements Build emits for doc.
func ExpectedLen(doc *source.Document) int {
	return StatementsPerActivity*len(doc.Activities) + StatementsPerObservation*doc.ObservationCount()
}

// Build maps an observation document onto the activity vocabulary.
//
// Activity i becomes Activity_i with its own timed content on Element_i and
// an Observation_i node linking Element_i_j for every observation j. Each
// record is validated before any of its statements is appended, so a
// failure never leaves a partial node behind.
func Build(doc *source.Document) (*Graph, error) {
	if doc == nil {
		return nil, failure.Format("build graph", fmt.Errorf("nil document"))
	}

	g := &Graph{triples: make([]Triple, 0, ExpectedLen(doc))}
	for i, a := range doc.Activities {
		path := fmt.Sprintf("%s.%s[%d]", source.FieldModel, source.FieldActivities, i)
		if err := a.Validate(path); err != nil {
			return nil, failure.Format("build graph", err)
		}

		activityIRI := activity.ActivityIRI(i)
		elementIRI := activity.ElementIRI(i)
		observationIRI := activity.ObservationIRI(i)

		g.Add(activityIRI, activity.RDFType, IRI(activity.ClassActivity))
		g.Add(activityIRI, activity.HasElement, IRI(elementIRI))
		g.addElement(elementIRI, a.Record)

		g.Add(activityIRI, activity.HasObservation, IRI(observationIRI))
		g.Add(observationIRI, activity.RDFType, IRI(activity.ClassObservation))

		for j, o := range a.Observations {
			obsPath := fmt.Sprintf("%s.%s[%d]", path, source.FieldObservations, j)
			if err := o.Validate(obsPath); err != nil {
				return nil, failure.Format("build graph", err)
			}

			obsElementIRI := activity.ObservationElementIRI(i, j)
			g.Add(observationIRI, activity.HasElement, IRI(obsElementIRI))
			g.addElement(obsElementIRI, o.Record)
		}
	}
	return g, nil
}

// addElement emits the four statements of an Element node.
func (g *Graph) addElement(iri string, rec source.Record) {
	g.Add(iri, activity.RDFType, IRI(activity.ClassElement))
	g.Add(iri, activity.HasStartDate, DateTime(rec.Start))
	g.Add(iri, activity.HasEndDate, DateTime(rec.End))
	g.Add(iri, activity.HasContentString, String(rec.Content))
}
