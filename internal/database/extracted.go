package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/TobiSchelling/tenderwatch/internal/logging"
)

// AddExtractedFields stores the extracted clauses for a tender, replacing
// any previous extraction. The extraction date is set to now.
func (db *DB) AddExtractedFields(ctx context.Context, ef *ExtractedFields) error {
	ef.ExtractionDate = NullTime{Time: now(), Valid: true}
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO extracted_fields
			(tender_id, required_qualifications, evaluation_criteria, process_description,
			delivery_methods, required_documentation, extraction_date, confidence_score, source_documents)
			VALUES (:tender_id, :required_qualifications, :evaluation_criteria, :process_description,
			:delivery_methods, :required_documentation, :extraction_date, :confidence_score, :source_documents)
			ON CONFLICT (tender_id) DO UPDATE SET
			required_qualifications = excluded.required_qualifications,
			evaluation_criteria = excluded.evaluation_criteria,
			process_description = excluded.process_description,
			delivery_methods = excluded.delivery_methods,
			required_documentation = excluded.required_documentation,
			extraction_date = excluded.extraction_date,
			confidence_score = excluded.confidence_score,
			source_documents = excluded.source_documents`, ef)
		if err != nil {
			return fmt.Errorf("storing extracted fields for %s: %w", ef.TenderID, err)
		}
		logging.FromContext(ctx).Info("stored extracted fields", "tender", ef.TenderID)
		return nil
	})
}

// GetExtractedFields returns the extraction for a tender, or nil if none exists.
func (db *DB) GetExtractedFields(ctx context.Context, tenderID string) (*ExtractedFields, error) {
	var ef ExtractedFields
	err := db.conn.GetContext(ctx, &ef, db.conn.Rebind(`SELECT tender_id, required_qualifications,
		evaluation_criteria, process_description, delivery_methods, required_documentation,
		extraction_date, confidence_score, source_documents
		FROM extracted_fields WHERE tender_id = ?`), tenderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading extracted fields for %s: %w", tenderID, err)
	}
	return &ef, nil
}
