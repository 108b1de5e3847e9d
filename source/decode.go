package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/c360studio/activitygraph/failure"
)

// LoadFile opens and decodes the observation document at path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.IO("open input", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses an observation document into a generic tree and then walks
// the fixed activities -> observations shape. Malformed JSON, including
// anything after the document, is a parse failure; a missing or mistyped field is a format failure naming its path.
func Decode(r io.Reader) (*Document, error) {
	var tree any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&tree); err != nil {
		return nil, failure.Parse("decode json", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, failure.Parse("decode json", errors.New("unexpected data after document"))
	}

	doc, err := fromTree(tree)
	if err != nil {
		return nil, failure.Format("decode document", err)
	}
	return doc, nil
}

func fromTree(tree any) (*Document, error) {
	root, ok := tree.(map[string]any)
	if !ok {
		return nil, &FieldError{Path: "$", Err: ErrWrongType}
	}

	model, err := objectField(root, FieldModel, FieldModel)
	if err != nil {
		return nil, err
	}

	path := FieldModel + "." + FieldActivities
	items, err := arrayField(model, FieldActivities, path, true)
	if err != nil {
		return nil, err
	}

	doc := &Document{Activities: make([]Activity, 0, len(items))}
	for i, item := range items {
		activity, err := decodeActivity(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		doc.Activities = append(doc.Activities, activity)
	}
	return doc, nil
}

func decodeActivity(v any, path string) (Activity, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Activity{}, &FieldError{Path: path, Err: ErrWrongType}
	}

	rec, err := decodeRecord(obj, path)
	if err != nil {
		return Activity{}, err
	}

	obsPath := path + "." + FieldObservations
	items, err := arrayField(obj, FieldObservations, obsPath, false)
	if err != nil {
		return Activity{}, err
	}

	activity := Activity{Record: rec, Observations: make([]Observation, 0, len(items))}
	for j, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", obsPath, j)
		o, ok := item.(map[string]any)
		if !ok {
			return Activity{}, &FieldError{Path: itemPath, Err: ErrWrongType}
		}
		rec, err := decodeRecord(o, itemPath)
		if err != nil {
			return Activity{}, err
		}
		activity.Observations = append(activity.Observations, Observation{Record: rec})
	}
	return activity, nil
}

func decodeRecord(obj map[string]any, path string) (Record, error) {
	var rec Record
	var err error
	if rec.Start, err = stringField(obj, FieldStart, path); err != nil {
		return Record{}, err
	}
	if rec.End, err = stringField(obj, FieldEnd, path); err != nil {
		return Record{}, err
	}
	if rec.Content, err = stringField(obj, FieldContent, path); err != nil {
		return Record{}, err
	}
	if err := rec.Validate(path); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func objectField(obj map[string]any, key, path string) (map[string]any, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, &FieldError{Path: path, Err: ErrMissingField}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &FieldError{Path: path, Err: ErrWrongType}
	}
	return m, nil
}

// arrayField returns the array under key. When required is false an absent
// key yields an empty slice.
func arrayField(obj map[string]any, key, path string, required bool) ([]any, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		if required {
			return nil, &FieldError{Path: path, Err: ErrMissingField}
		}
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, &FieldError{Path: path, Err: ErrWrongType}
	}
	return items, nil
}

func stringField(obj map[string]any, key, parent string) (string, error) {
	path := parent + "." + key
	v, ok := obj[key]
	if !ok || v == nil {
		return "", &FieldError{Path: path, Err: ErrMissingField}
	}
	s, ok := v.(string)
	if !ok {
		return "", &FieldError{Path: path, Err: ErrWrongType}
	}
	return s, nil
}
