package activity

import "strconv"

// Namespace is the base IRI prefix for all activity ontology terms and instances.
const Namespace = "http://www.semanticweb.org/user/ontologies/2020/1/activity#"

// Prefix is the conventional prefix bound to Namespace in serialized output.
const Prefix = "a"

// OntologyBaseIRI is the base IRI the bundled ontology is submitted under.
const OntologyBaseIRI = "urn:base"

// Class IRIs.
const (
	// ClassActivity is a recognised household activity.
	ClassActivity = Namespace + "Activity"

	// ClassElement is a timed piece of content.
	ClassElement = Namespace + "Element"

	// ClassObservation groups the sensor elements behind an activity.
	ClassObservation = Namespace + "Observation"
)

// Predicate IRIs.
const (
	HasElement       = Namespace + "hasElement"
	HasObservation   = Namespace + "hasObservation"
	HasStartDate     = Namespace + "hasStartDate"
	HasEndDate       = Namespace + "hasEndDate"
	HasContentString = Namespace + "hasContentString"
)

// Standard vocabulary IRIs used by the mapping.
const (
	RDFNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	XSDNamespace = "http://www.w3.org/2001/XMLSchema#"

	RDFType     = RDFNamespace + "type"
	XSDDateTime = XSDNamespace + "dateTime"
	XSDString   = XSDNamespace + "string"
)

// ActivityName returns the local name of the i-th activity.
func ActivityName(i int) string {
	return "Activity_" + strconv.Itoa(i)
}

// ElementName returns the local name of the element owned by the i-th activity.
func ElementName(i int) string {
	return "Element_" + strconv.Itoa(i)
}

// ObservationName returns the local name of the i-th activity's observation node.
func ObservationName(i int) string {
	return "Observation_" + strconv.Itoa(i)
}

// ObservationElementName returns the local name of the j-th observation of activity i.
func ObservationElementName(i, j int) string {
	return "Element_" + strconv.Itoa(i) + "_" + strconv.Itoa(j)
}

// ActivityIRI returns the IRI of the i-th activity.
func ActivityIRI(i int) string { return Namespace + ActivityName(i) }

// ElementIRI returns the IRI of the i-th activity's element.
func ElementIRI(i int) string { return Namespace + ElementName(i) }

// ObservationIRI returns the IRI of the i-th activity's observation node.
func ObservationIRI(i int) string { return Namespace + ObservationName(i) }

// ObservationElementIRI returns the IRI of the j-th observation element of activity i.
func ObservationElementIRI(i, j int) string { return Namespace + ObservationElementName(i, j) }

// Prefixes returns the namespace prefixes written to Turtle output.
func Prefixes() map[string]string {
	return map[string]string{
		Prefix: Namespace,
		"rdf":  RDFNamespace,
		"xsd":  XSDNamespace,
	}
}
