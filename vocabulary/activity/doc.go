// Package activity provides the smart-home activity vocabulary.
//
// The vocabulary is the wire contract between the graph builder and every
// downstream consumer of the stored graph, so the IRIs below are fixed and
// must not be renamed.
//
// # Classes
//
//	Activity     a recognised household activity (e.g. cooking)
//	Observation  the set of sensor readings backing an activity
//	Element      a timed piece of content (start, end, content string)
//
// # Predicates
//
//	hasElement        Activity -> Element, Observation -> Element
//	hasObservation    Activity -> Observation
//	hasStartDate      Element  -> xsd:dateTime
//	hasEndDate        Element  -> xsd:dateTime
//	hasContentString  Element  -> xsd:string
//
// # Identifiers
//
// Instances are minted from their position in the input document:
//
//	activity.ActivityIRI(2)               // ...#Activity_2
//	activity.ElementIRI(2)                // ...#Element_2
//	activity.ObservationIRI(2)            // ...#Observation_2
//	activity.ObservationElementIRI(2, 0)  // ...#Element_2_0
package activity
