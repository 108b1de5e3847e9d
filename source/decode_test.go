package source_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c360studio/activitygraph/failure"
	"github.com/c360studio/activitygraph/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `{
  "model": {
    "activities": [
      {
        "start": "2020-01-01T10:00:00",
        "end": "2020-01-01T10:05:00",
        "content": "cooking",
        "observations": [
          {"start": "2020-01-01T10:00:00", "end": "2020-01-01T10:01:00", "content": "door_open"},
          {"start": "2020-01-01T10:01:00Z", "end": "2020-01-01T10:04:00.250+01:00", "content": "stove_on"}
        ]
      },
      {
        "start": "2020-01-01T11:00:00",
        "end": "2020-01-01T11:30:00",
        "content": "sleeping",
        "observations": []
      }
    ]
  },
  "ignored": true
}`

func TestDecode(t *testing.T) {
	doc, err := source.Decode(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	require.Len(t, doc.Activities, 2)
	assert.Equal(t, 2, doc.ObservationCount())

	first := doc.Activities[0]
	assert.Equal(t, "2020-01-01T10:00:00", first.Start)
	assert.Equal(t, "2020-01-01T10:05:00", first.End)
	assert.Equal(t, "cooking", first.Content)
	require.Len(t, first.Observations, 2)
	assert.Equal(t, "door_open", first.Observations[0].Content)
	assert.Equal(t, "2020-01-01T10:04:00.250+01:00", first.Observations[1].End, "lexical form is kept verbatim")

	assert.Empty(t, doc.Activities[1].Observations)
}

func TestDecodeMissingObservationsKey(t *testing.T) {
	doc, err := source.Decode(strings.NewReader(
		`{"model":{"activities":[{"start":"2020-01-01T10:00:00","end":"2020-01-01T10:00:01","content":"x"}]}}`))
	require.NoError(t, err)
	require.Len(t, doc.Activities, 1)
	assert.Empty(t, doc.Activities[0].Observations)
}

func TestDecodeAllowsTrailingWhitespace(t *testing.T) {
	doc, err := source.Decode(strings.NewReader("{\"model\": {\"activities\": []}}\n\n"))
	require.NoError(t, err)
	assert.Empty(t, doc.Activities)
}

func TestDecodeParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"truncated", `{"model": {"activities": [`},
		{"not json", `model: activities`},
		{"trailing garbage", `{"model": {"activities": []}} xyz`},
		{"trailing brace", `{"model": {"activities": []}}}`},
		{"second document", `{"model": {"activities": []}}{"model": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := source.Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, failure.IsParse(err), "expected parse error, got %v", err)
		})
	}
}

func TestDecodeFormatErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		path    string
		wantErr error
	}{
		{
			name:    "root not object",
			input:   `[]`,
			path:    "$",
			wantErr: source.ErrWrongType,
		},
		{
			name:    "missing model",
			input:   `{"activities": []}`,
			path:    "model",
			wantErr: source.ErrMissingField,
		},
		{
			name:    "missing activities",
			input:   `{"model": {}}`,
			path:    "model.activities",
			wantErr: source.ErrMissingField,
		},
		{
			name:    "activities not array",
			input:   `{"model": {"activities": {}}}`,
			path:    "model.activities",
			wantErr: source.ErrWrongType,
		},
		{
			name:    "missing start",
			input:   `{"model":{"activities":[{"end":"2020-01-01T10:00:00","content":"x"}]}}`,
			path:    "model.activities[0].start",
			wantErr: source.ErrMissingField,
		},
		{
			name:    "start not string",
			input:   `{"model":{"activities":[{"start":1577872800,"end":"2020-01-01T10:00:00","content":"x"}]}}`,
			path:    "model.activities[0].start",
			wantErr: source.ErrWrongType,
		},
		{
			name:    "invalid end",
			input:   `{"model":{"activities":[{"start":"2020-01-01T10:00:00","end":"yesterday","content":"x"}]}}`,
			path:    "model.activities[0].end",
			wantErr: source.ErrInvalidDateTime,
		},
		{
			name:    "content not string",
			input:   `{"model":{"activities":[{"start":"2020-01-01T10:00:00","end":"2020-01-01T10:00:00","content":["x"]}]}}`,
			path:    "model.activities[0].content",
			wantErr: source.ErrWrongType,
		},
		{
			name:    "observations not array",
			input:   `{"model":{"activities":[{"start":"2020-01-01T10:00:00","end":"2020-01-01T10:00:00","content":"x","observations":"none"}]}}`,
			path:    "model.activities[0].observations",
			wantErr: source.ErrWrongType,
		},
		{
			name: "observation missing start",
			input: `{"model":{"activities":[
				{"start":"2020-01-01T10:00:00","end":"2020-01-01T10:00:00","content":"x","observations":[]},
				{"start":"2020-01-01T10:00:00","end":"2020-01-01T10:00:00","content":"y","observations":[
					{"start":"2020-01-01T10:00:00","end":"2020-01-01T10:00:00","content":"a"},
					{"end":"2020-01-01T10:00:00","content":"b"}
				]}
			]}}`,
			path:    "model.activities[1].observations[1].start",
			wantErr: source.ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := source.Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, failure.IsFormat(err), "expected format error, got %v", err)
			assert.ErrorIs(t, err, tt.wantErr)

			var fe *source.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.path, fe.Path)
		})
	}
}

func TestValidateDateTime(t *testing.T) {
	valid := []string{
		"2020-01-01T10:00:00",
		"2020-01-01T10:00:00Z",
		"2020-01-01T10:00:00.5",
		"2020-01-01T10:00:00.123456+02:00",
		"2020-02-29T23:59:59-05:00",
		"2020-01-01T24:00:00",
		"2020-01-01T24:00:00.000Z",
		"2020-01-01T10:00:00+14:00",
	}
	for _, s := range valid {
		assert.NoError(t, source.ValidateDateTime(s), s)
	}

	invalid := []string{
		"",
		"2020-01-01",
		"2020-01-01 10:00:00",
		"2020-13-01T10:00:00",
		"10:00:00",
		"door_open",
		"2020-01-01T10:00:00,5",
		"2020-01-01T10:00:00.",
		"2020-01-01T24:00:00.5",
		"2020-01-01T24:00:01",
		"2020-01-01T25:00:00",
		"2020-02-30T10:00:00",
		"2020-01-01T10:00:00+15:00",
		"2020-01-01T10:00:00+02:60",
		"2020-01-01T10:00:00+0200",
		"2020-01-01T10:00:00 ",
	}
	for _, s := range invalid {
		assert.ErrorIs(t, source.ValidateDateTime(s), source.ErrInvalidDateTime, s)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example_observations.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocument), 0644))

	doc, err := source.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Activities, 2)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := source.LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, failure.IsIO(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
