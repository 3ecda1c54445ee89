package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractedFieldsOverwriteInPlace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	key, _, err := db.Upsert(ctx, testRecord())
	require.NoError(t, err)

	setNow(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, db.AddExtractedFields(ctx, &ExtractedFields{
		TenderID:               key,
		RequiredQualifications: "SOA OG1",
		EvaluationCriteria:     "Not Found",
		ConfidenceScore:        0.6,
		SourceDocuments:        StringList{"bando.pdf"},
	}))

	setNow(t, time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, db.AddExtractedFields(ctx, &ExtractedFields{
		TenderID:               key,
		RequiredQualifications: "SOA OG1 classifica III",
		ConfidenceScore:        0.9,
		SourceDocuments:        StringList{"bando.pdf", "disciplinare.pdf"},
	}))

	ef, err := db.GetExtractedFields(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, ef)
	assert.Equal(t, "SOA OG1 classifica III", ef.RequiredQualifications)
	assert.Equal(t, "", ef.EvaluationCriteria)
	assert.Equal(t, 0.9, ef.ConfidenceScore)
	assert.Equal(t, StringList{"bando.pdf", "disciplinare.pdf"}, ef.SourceDocuments)
	assert.Equal(t, time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC), ef.ExtractionDate.Time)

	var n int
	require.NoError(t, db.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM extracted_fields"))
	assert.Equal(t, 1, n)
}

func TestExtractedFieldsRequireTender(t *testing.T) {
	db := openTestDB(t)
	err := db.AddExtractedFields(context.Background(), &ExtractedFields{TenderID: "CIG_MISSING"})
	assert.Error(t, err)
}

func TestGetExtractedFieldsMissing(t *testing.T) {
	db := openTestDB(t)
	ef, err := db.GetExtractedFields(context.Background(), "CIG_NONE")
	require.NoError(t, err)
	assert.Nil(t, ef)
}
