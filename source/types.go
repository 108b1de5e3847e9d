// Package source reads the smart-home observation documents that feed the
// activity graph.
//
// A document has the shape
//
//	{"model": {"activities": [
//	    {"start": "...", "end": "...", "content": "...",
//	     "observations": [{"start": "...", "end": "...", "content": "..."}]}
//	]}}
//
// Array order is significant: it determines the identifiers minted for every
// activity and observation.
package source

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Field names consumed from each record.
const (
	FieldModel        = "model"
	FieldActivities   = "activities"
	FieldStart        = "start"
	FieldEnd          = "end"
	FieldContent      = "content"
	FieldObservations = "observations"
)

// Shape errors reported inside a FieldError.
var (
	// ErrMissingField is returned when a required key is absent.
	ErrMissingField = errors.New("required field is missing")

	// ErrWrongType is returned when a key holds a value of the wrong JSON type.
	ErrWrongType = errors.New("field has the wrong type")

	// ErrInvalidDateTime is returned when a start or end value is not an xsd:dateTime.
	ErrInvalidDateTime = errors.New("value is not a valid xsd:dateTime")
)

// FieldError locates a shape error inside the document.
type FieldError struct {
	// Path is the JSON path of the offending value, e.g. model.activities[1].start.
	Path string
	Err  error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Document is a decoded observation document.
type Document struct {
	Activities []Activity `json:"activities"`
}

// Record is the timed content shared by activities and observations.
type Record struct {
	// Start is the xsd:dateTime lexical form, kept verbatim.
	Start string `json:"start"`

	// End is the xsd:dateTime lexical form, kept verbatim.
	End string `json:"end"`

	// Content is free text, typically a sensor or activity label.
	Content string `json:"content"`
}

// Activity is a recognised activity and the observations backing it.
type Activity struct {
	Record
	Observations []Observation `json:"observations"`
}

// Observation is a single sensor reading.
type Observation struct {
	Record
}

// ObservationCount returns the total number of observations across all activities.
func (d *Document) ObservationCount() int {
	n := 0
	for _, a := range d.Activities {
		n += len(a.Observations)
	}
	return n
}

// Validate checks that Start and End are xsd:dateTime values. The path
// prefixes the reported FieldError.
func (r Record) Validate(path string) error {
	if err := ValidateDateTime(r.Start); err != nil {
		return &FieldError{Path: path + "." + FieldStart, Err: err}
	}
	if err := ValidateDateTime(r.End); err != nil {
		return &FieldError{Path: path + "." + FieldEnd, Err: err}
	}
	return nil
}

// dateTimeLexical is the xsd:dateTime lexical form with four-digit years:
// date, clock, optional fraction, optional zone.
var dateTimeLexical = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2})T(\d{2}:\d{2}:\d{2})(\.\d+)?(Z|[+-](\d{2}):(\d{2}))?$`)

// ValidateDateTime returns ErrInvalidDateTime unless s is an xsd:dateTime lexical value.
// 24:00:00 is accepted with a zero fraction, as xsd 1.0 allows.
func ValidateDateTime(s string) error {
	invalid := fmt.Errorf("%w: %q", ErrInvalidDateTime, s)

	m := dateTimeLexical.FindStringSubmatch(s)
	if m == nil {
		return invalid
	}

	clock := m[2]
	if clock == "24:00:00" {
		if strings.Trim(m[3], ".0") != "" {
			return invalid
		}
		clock = "00:00:00"
	}
	if _, err := time.Parse("2006-01-02T15:04:05", m[1]+"T"+clock); err != nil {
		return invalid
	}

	if m[5] != "" {
		hh, _ := strconv.Atoi(m[5])
		mm, _ := strconv.Atoi(m[6])
		if mm > 59 || hh*60+mm > 14*60 {
			return invalid
		}
	}
	return nil
}
