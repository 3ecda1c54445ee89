package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/TobiSchelling/tenderwatch/internal/collect"
	"github.com/TobiSchelling/tenderwatch/internal/logging"
)

const attachmentColumns = `id, tender_id, file_name, file_url, local_path, file_size_bytes,
	category, classification_confidence, downloaded, download_date, download_error`

// AttachmentStatus is the outcome of one retrieval attempt.
type AttachmentStatus struct {
	Downloaded bool
	LocalPath  string
	SizeBytes  int64
	Error      string
}

// AddAttachment registers a document link for a tender. Adding the same
// (tender, file URL) pair again returns the existing row's ID.
func (db *DB) AddAttachment(ctx context.Context, tenderID string, ref collect.AttachmentRef) (int64, error) {
	var id int64
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = addAttachment(ctx, tx, tenderID, ref)
		return err
	})
	return id, err
}

func addAttachment(ctx context.Context, tx *sqlx.Tx, tenderID string, ref collect.AttachmentRef) (int64, error) {
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO attachments
		(tender_id, file_name, file_url, category, classification_confidence, downloaded)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tender_id, file_url) DO NOTHING`),
		tenderID, ref.FileName, ref.FileURL, ref.Category, ref.ClassificationConfidence, DownloadPending,
	)
	if err != nil {
		return 0, fmt.Errorf("adding attachment %s: %w", ref.FileURL, err)
	}

	var id int64
	if err := tx.GetContext(ctx, &id, tx.Rebind(
		`SELECT id FROM attachments WHERE tender_id = ? AND file_url = ?`),
		tenderID, ref.FileURL); err != nil {
		return 0, fmt.Errorf("reading attachment id: %w", err)
	}
	return id, nil
}

// UpdateAttachmentStatus records the outcome of a retrieval attempt.
func (db *DB) UpdateAttachmentStatus(ctx context.Context, id int64, st AttachmentStatus) error {
	state := DownloadFailed
	var localPath, errText *string
	var size *int64
	if st.Downloaded {
		state = DownloadDownloaded
		localPath = &st.LocalPath
		size = &st.SizeBytes
	}
	if st.Error != "" {
		errText = &st.Error
	}

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE attachments SET
			downloaded = ?, download_date = ?, local_path = ?, file_size_bytes = ?, download_error = ?
			WHERE id = ?`),
			state, formatTime(now()), localPath, size, errText, id,
		)
		if err != nil {
			return fmt.Errorf("updating attachment %d: %w", id, err)
		}
		logging.FromContext(ctx).Debug("attachment status updated", "attachment", id, "state", state)
		return nil
	})
}

// ClassifyAttachment stores the category assigned to an attachment.
func (db *DB) ClassifyAttachment(ctx context.Context, id int64, category string, confidence float64) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE attachments SET category = ?, classification_confidence = ? WHERE id = ?`),
			category, confidence, id)
		if err != nil {
			return fmt.Errorf("classifying attachment %d: %w", id, err)
		}
		return nil
	})
}

// PendingAttachments returns attachments not yet retrieved. An empty
// tenderID returns pending attachments of every tender.
func (db *DB) PendingAttachments(ctx context.Context, tenderID string) ([]Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE downloaded = ?`
	args := []any{DownloadPending}
	if tenderID != "" {
		query += " AND tender_id = ?"
		args = append(args, tenderID)
	}
	query += " ORDER BY id"
	return db.selectAttachments(ctx, query, args...)
}

// AttachmentsForTender returns every attachment of a tender.
func (db *DB) AttachmentsForTender(ctx context.Context, tenderID string) ([]Attachment, error) {
	return db.selectAttachments(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE tender_id = ? ORDER BY id`, tenderID)
}

// TendersWithPendingAttachments returns keys of tenders that still have
// attachments to retrieve.
func (db *DB) TendersWithPendingAttachments(ctx context.Context, platform string, limit int) ([]string, error) {
	query := `SELECT DISTINCT t.id FROM tenders t JOIN attachments a ON a.tender_id = t.id
		WHERE a.downloaded = ?`
	args := []any{DownloadPending}
	if platform != "" {
		query += " AND t.platform_name = ?"
		args = append(args, platform)
	}
	query += " ORDER BY t.id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	var keys []string
	if err := db.conn.SelectContext(ctx, &keys, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying tenders with pending attachments: %w", err)
	}
	return keys, nil
}

func (db *DB) selectAttachments(ctx context.Context, query string, args ...any) ([]Attachment, error) {
	var atts []Attachment
	if err := db.conn.SelectContext(ctx, &atts, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying attachments: %w", err)
	}
	return atts, nil
}
