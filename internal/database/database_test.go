package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/tenderwatch/internal/collect"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to open test db")
	t.Cleanup(func() { db.Close() })
	return db
}

// setNow pins the store clock for the duration of a test.
func setNow(t *testing.T, ts time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return ts.UTC() }
	t.Cleanup(func() { now = prev })
}

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func testRecord() collect.Record {
	return collect.Record{
		Title:        "Test Tender",
		URL:          "https://ex/1",
		PlatformName: "test",
		CIG:          "TEST001",
		Amount:       ptr(50000.0),
		Deadline:     date(2026, 3, 19),
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"tenders", "extracted_fields", "attachments", "run_logs"} {
		var n int
		err := db.conn.GetContext(ctx, &n,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s should exist", table)
	}
}

func TestOpenReportsLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenders.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	assert.Equal(t, DriverSQLite, db.Driver())
	assert.Equal(t, path, db.Path())
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect("mysql", "whatever")
	assert.Error(t, err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, _, err := db.Upsert(ctx, testRecord())
	require.NoError(t, err)

	err = db.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE tenders SET title = 'changed'"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	tender, err := db.GetTender(ctx, "CIG_TEST001")
	require.NoError(t, err)
	assert.Equal(t, "Test Tender", tender.Title)
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	setNow(t, time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))

	full := testRecord()
	_, _, err := db.Upsert(ctx, full)
	require.NoError(t, err)

	other := collect.Record{Title: "Other", URL: "https://ex/2", PlatformName: "feed",
		Deadline: date(2026, 1, 1),
		Attachments: []collect.AttachmentRef{
			{FileName: "bando.pdf", FileURL: "https://ex/2/bando.pdf"},
			{FileName: "modulo.docx", FileURL: "https://ex/2/modulo.docx"},
		}}
	key, _, err := db.Upsert(ctx, other)
	require.NoError(t, err)

	atts, err := db.AttachmentsForTender(ctx, key)
	require.NoError(t, err)
	require.Len(t, atts, 2)
	require.NoError(t, db.UpdateAttachmentStatus(ctx, atts[0].ID, AttachmentStatus{Downloaded: true, LocalPath: "/tmp/x.pdf", SizeBytes: 10}))

	_, err = db.CloseExpired(ctx)
	require.NoError(t, err)
	require.NoError(t, db.AddExtractedFields(ctx, &ExtractedFields{TenderID: "CIG_TEST001", ConfidenceScore: 0.8}))

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalTenders)
	assert.Equal(t, 1, stats.ActiveTenders)
	assert.Equal(t, 1, stats.ClosedTenders)
	assert.Equal(t, 2, stats.TotalAttachments)
	assert.Equal(t, 1, stats.DownloadedAttachments)
	assert.Equal(t, 1, stats.Level2Extracted)
	assert.Equal(t, 2, stats.Recent7Days)
	assert.Equal(t, map[string]int{"test": 1, "feed": 1}, stats.PlatformBreakdown)
	// title, amount, deadline of 16 fields for the first; title, deadline for the second.
	assert.InDelta(t, (18.75+12.5)/2, stats.AvgDataQuality, 0.01)
}

func TestStatsEmptyDatabase(t *testing.T) {
	db := openTestDB(t)
	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalTenders)
	assert.Zero(t, stats.AvgDataQuality)
	assert.Empty(t, stats.PlatformBreakdown)
}

func TestCascadeDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := testRecord()
	rec.Attachments = []collect.AttachmentRef{{FileName: "a.pdf", FileURL: "https://ex/a.pdf"}}
	key, _, err := db.Upsert(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, db.AddExtractedFields(ctx, &ExtractedFields{TenderID: key}))

	_, err = db.conn.ExecContext(ctx, "DELETE FROM tenders WHERE id = ?", key)
	require.NoError(t, err)

	atts, err := db.AttachmentsForTender(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, atts)
	ef, err := db.GetExtractedFields(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, ef)
}
