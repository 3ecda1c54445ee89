package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenderKey(t *testing.T) {
	assert.Equal(t, "CIG_TEST001", TenderKey(" TEST001 ", "https://ex/1", "Test Tender"))
	assert.Equal(t, "HASH_164d5cca52a443e5", TenderKey("", "https://ex/1", "Test Tender"))
	assert.Equal(t, "HASH_164d5cca52a443e5", TenderKey("   ", "https://ex/1", "Test Tender"))

	// A title change without CIG yields a different identity.
	assert.NotEqual(t, TenderKey("", "https://ex/1", "Test Tender"), TenderKey("", "https://ex/1", "Test Tender v2"))
}

func TestRecordValidate(t *testing.T) {
	valid := func() Record {
		return Record{Title: "  Servizio mensa  ", URL: "https://ex/1", PlatformName: "p", CIG: " ABCDE12345 "}
	}

	r := valid()
	require.NoError(t, r.Validate())
	assert.Equal(t, "Servizio mensa", r.Title)
	assert.Equal(t, "CIG_ABCDE12345", r.Key())

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"missing title", func(r *Record) { r.Title = "  " }},
		{"missing url", func(r *Record) { r.URL = "" }},
		{"bad url", func(r *Record) { r.URL = "not a url" }},
		{"missing platform", func(r *Record) { r.PlatformName = "" }},
		{"bad email", func(r *Record) { r.Email = ptr("rup-at-ente") }},
		{"bad category", func(r *Record) { r.Category = ptr("Lavori") }},
		{"bad status", func(r *Record) { r.Status = ptr("Open") }},
		{"negative amount", func(r *Record) { r.Amount = ptr(-1.0) }},
		{"attachment without url", func(r *Record) {
			r.Attachments = []AttachmentRef{{FileName: "a.pdf"}}
		}},
		{"attachment confidence", func(r *Record) {
			r.Attachments = []AttachmentRef{{FileName: "a.pdf", FileURL: "https://ex/a.pdf", ClassificationConfidence: ptr(1.5)}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func ptr[T any](v T) *T { return &v }
