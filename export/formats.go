package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knakk/rdf"
)

// Format specifies the serialization format.
type Format string

const (
	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"
)

// FormatInfo provides metadata about a serialization format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the content type sent to the graph store.
	MIMEType string

	// Extension is the canonical file extension (with dot).
	Extension string

	// Description describes the format.
	Description string

	codec rdf.Format
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatTurtle: {
		Name:        FormatTurtle,
		MIMEType:    "text/turtle",
		Extension:   ".ttl",
		Description: "Turtle - Terse RDF Triple Language",
		codec:       rdf.Turtle,
	},
	FormatNTriples: {
		Name:        FormatNTriples,
		MIMEType:    "application/n-triples",
		Extension:   ".nt",
		Description: "N-Triples - Line-based RDF format",
		codec:       rdf.NTriples,
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// MIMEType returns the content type of f, or an empty string if f is unknown.
func (f Format) MIMEType() string {
	return FormatRegistry[f].MIMEType
}

// ParseFormat resolves a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "turtle", "ttl":
		return FormatTurtle, nil
	case "ntriples", "nt", "n-triples":
		return FormatNTriples, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (valid: %s)", s, strings.Join(FormatNames(), ", "))
	}
}

// FormatForPath picks a format from a file extension. Unknown extensions,
// including the .owl files the ontology tooling expects, are Turtle.
func FormatForPath(path string) Format {
	if strings.ToLower(filepath.Ext(path)) == ".nt" {
		return FormatNTriples
	}
	return FormatTurtle
}

// FormatNames returns the supported format names sorted.
func FormatNames() []string {
	names := make([]string, 0, len(FormatRegistry))
	for f := range FormatRegistry {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}
