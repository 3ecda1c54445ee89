package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseDefaults(t *testing.T) {
	f, err := ParseResponse(`{"process_description": "Procedura aperta"}`)
	require.NoError(t, err)
	assert.Equal(t, "Procedura aperta", f.ProcessDescription)
	assert.Equal(t, "Not Found", f.RequiredQualifications)
	assert.Equal(t, "Not Found", f.RequiredDocumentation)
	assert.InDelta(t, 0.7, f.ConfidenceScore, 1e-9)
}

func TestParseResponseConfidence(t *testing.T) {
	f, err := ParseResponse(`{"confidence_score": "0.4"}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, f.ConfidenceScore, 1e-9)

	f, err = ParseResponse(`{"confidence_score": 1.7}`)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, f.ConfidenceScore, 1e-9)

	_, err = ParseResponse(`{"confidence_score": "alta"}`)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseResponseRejectsWrongShape(t *testing.T) {
	for _, reply := range []string{
		`[1, 2, 3]`,
		`{"required_qualifications": {"nested": true}}`,
		`{"confidence_score": [0.5]}`,
		`not json`,
		``,
	} {
		_, err := ParseResponse(reply)
		assert.ErrorIs(t, err, ErrMalformedResponse, reply)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**Importante**: garanzia del 2%", "Importante: garanzia del 2%"},
		{"## Requisiti\n\n- SOA OG1\n- ISO 9001", "Requisiti\n- SOA OG1\n- ISO 9001"},
		{"Vedi [bando](https://ex/bando.pdf)", "Vedi bando"},
		{"riga uno\nriga due", "riga uno\nriga due"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, plainText(tt.in), tt.in)
	}
}
