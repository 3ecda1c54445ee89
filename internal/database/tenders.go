package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/TobiSchelling/tenderwatch/internal/collect"
	"github.com/TobiSchelling/tenderwatch/internal/logging"
)

const tenderColumns = `id, title, amount, procedure_type, category, place_of_execution,
	contracting_authority, platform_name, cpv_codes, publication_date, deadline,
	evaluation_date, sector_type, url, award_criterion, contract_duration, num_lots,
	email, rup_name, created_at, last_updated_at, status, data_quality_score`

// UpsertResult describes what Upsert did with a record.
type UpsertResult struct {
	Key     string
	IsNew   bool
	Changed bool
	Status  Status
}

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// Upsert stores rec, returning its tender key and whether it was newly inserted.
func (db *DB) Upsert(ctx context.Context, rec collect.Record) (string, bool, error) {
	res, err := db.UpsertTender(ctx, rec)
	if err != nil {
		return "", false, err
	}
	return res.Key, res.IsNew, nil
}

// UpsertTender inserts a new tender or applies significant changes to an
// existing one. When nothing significant differs the stored row is left
// untouched. Embedded attachments are registered in the same transaction.
func (db *DB) UpsertTender(ctx context.Context, rec collect.Record) (UpsertResult, error) {
	key := rec.Key()
	res := UpsertResult{Key: key}

	unlock := db.locks.Lock(key)
	defer unlock()

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := getTender(ctx, tx, key)
		if err != nil {
			return err
		}

		ts := now()
		switch {
		case existing == nil:
			t := &Tender{ID: key, CreatedAt: NullTime{Time: ts, Valid: true}, Status: StatusActive}
			if err := applyRecord(t, &rec); err != nil {
				return err
			}
			t.LastUpdatedAt = t.CreatedAt
			t.DataQualityScore = t.qualityScore()
			if err := insertTender(ctx, tx, t); err != nil {
				return err
			}
			res.IsNew, res.Status = true, t.Status
			logging.FromContext(ctx).Info("inserted tender", "tender", key)

		case hasSignificantChange(existing, &rec):
			if err := applyRecord(existing, &rec); err != nil {
				return err
			}
			existing.LastUpdatedAt = NullTime{Time: ts, Valid: true}
			existing.Status = existing.Status.afterChange()
			existing.DataQualityScore = existing.qualityScore()
			if err := updateTender(ctx, tx, existing); err != nil {
				return err
			}
			res.Changed, res.Status = true, existing.Status
			logging.FromContext(ctx).Info("updated tender", "tender", key, "status", existing.Status)

		default:
			res.Status = existing.Status
			logging.FromContext(ctx).Debug("no changes detected", "tender", key)
		}

		for _, ref := range rec.Attachments {
			if _, err := addAttachment(ctx, tx, key, ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upserting tender %s: %w", key, err)
	}
	return res, nil
}

// hasSignificantChange compares the fields whose change marks a tender as
// Updated. Only fields the record supplies take part; dates compare by
// calendar day.
func hasSignificantChange(t *Tender, rec *collect.Record) bool {
	if rec.Title != t.Title {
		return true
	}
	if rec.Amount != nil && (t.Amount == nil || *t.Amount != *rec.Amount) {
		return true
	}
	if rec.Deadline != nil && !t.Deadline.SameDay(rec.Deadline) {
		return true
	}
	if rec.PublicationDate != nil && !t.PublicationDate.SameDay(rec.PublicationDate) {
		return true
	}
	if statusChanged(t.Status, rec.Status) {
		return true
	}
	return stringChanged(t.ProcedureType, rec.ProcedureType) ||
		stringChanged(t.ContractingAuthority, rec.ContractingAuthority)
}

// statusChanged reports whether a supplied status would move the stored
// one. Closed tenders ignore supplied statuses, and a supplied Active
// does not undo Updated.
func statusChanged(stored Status, supplied *string) bool {
	if supplied == nil || !stored.isOpen() {
		return false
	}
	s, err := ParseStatus(*supplied)
	if err != nil {
		// applyRecord reports it.
		return true
	}
	return s != stored && s.afterChange() != stored
}

func stringChanged(old, supplied *string) bool {
	if supplied == nil {
		return false
	}
	return old == nil || *old != *supplied
}

// applyRecord overwrites t with every attribute rec supplies.
func applyRecord(t *Tender, rec *collect.Record) error {
	t.Title = rec.Title
	t.URL = rec.URL
	t.PlatformName = rec.PlatformName
	if rec.Status != nil {
		s, err := ParseStatus(*rec.Status)
		if err != nil {
			return err
		}
		if t.Status == "" || t.Status.isOpen() {
			t.Status = s
		}
	}
	if rec.Amount != nil {
		t.Amount = rec.Amount
	}
	if rec.NumLots != nil {
		n := int64(*rec.NumLots)
		t.NumLots = &n
	}
	if rec.PublicationDate != nil {
		t.PublicationDate = NewNullTime(rec.PublicationDate)
	}
	if rec.Deadline != nil {
		t.Deadline = NewNullTime(rec.Deadline)
	}
	if rec.EvaluationDate != nil {
		t.EvaluationDate = NewNullTime(rec.EvaluationDate)
	}
	for _, f := range []struct {
		dst **string
		src *string
	}{
		{&t.ProcedureType, rec.ProcedureType},
		{&t.Category, rec.Category},
		{&t.PlaceOfExecution, rec.PlaceOfExecution},
		{&t.ContractingAuthority, rec.ContractingAuthority},
		{&t.CPVCodes, rec.CPVCodes},
		{&t.SectorType, rec.SectorType},
		{&t.AwardCriterion, rec.AwardCriterion},
		{&t.ContractDuration, rec.ContractDuration},
		{&t.Email, rec.Email},
		{&t.RUPName, rec.RUPName},
	} {
		if f.src != nil {
			v := *f.src
			*f.dst = &v
		}
	}
	return nil
}

func insertTender(ctx context.Context, tx *sqlx.Tx, t *Tender) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tenders (`+tenderColumns+`)
		VALUES (:id, :title, :amount, :procedure_type, :category, :place_of_execution,
		:contracting_authority, :platform_name, :cpv_codes, :publication_date, :deadline,
		:evaluation_date, :sector_type, :url, :award_criterion, :contract_duration, :num_lots,
		:email, :rup_name, :created_at, :last_updated_at, :status, :data_quality_score)`, t)
	if err != nil {
		return fmt.Errorf("inserting tender: %w", err)
	}
	return nil
}

func updateTender(ctx context.Context, tx *sqlx.Tx, t *Tender) error {
	_, err := tx.NamedExecContext(ctx, `UPDATE tenders SET
		title = :title, amount = :amount, procedure_type = :procedure_type,
		category = :category, place_of_execution = :place_of_execution,
		contracting_authority = :contracting_authority, platform_name = :platform_name,
		cpv_codes = :cpv_codes, publication_date = :publication_date, deadline = :deadline,
		evaluation_date = :evaluation_date, sector_type = :sector_type, url = :url,
		award_criterion = :award_criterion, contract_duration = :contract_duration,
		num_lots = :num_lots, email = :email, rup_name = :rup_name,
		last_updated_at = :last_updated_at, status = :status,
		data_quality_score = :data_quality_score
		WHERE id = :id`, t)
	if err != nil {
		return fmt.Errorf("updating tender: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getTender(ctx context.Context, q queryer, id string) (*Tender, error) {
	var t Tender
	err := sqlx.GetContext(ctx, q, &t,
		q.Rebind(`SELECT `+tenderColumns+` FROM tenders WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading tender %s: %w", id, err)
	}
	return &t, nil
}

// GetTender returns a tender by key, or nil if it does not exist.
func (db *DB) GetTender(ctx context.Context, id string) (*Tender, error) {
	return getTender(ctx, db.conn, id)
}

// CloseExpired marks open tenders whose deadline has passed as Closed and
// returns how many were closed.
func (db *DB) CloseExpired(ctx context.Context) (int, error) {
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`UPDATE tenders SET status = ?
		WHERE status IN (?, ?) AND deadline IS NOT NULL AND deadline < ?`),
		StatusClosed, StatusActive, StatusUpdated, formatTime(now()),
	)
	if err != nil {
		return 0, fmt.Errorf("closing expired tenders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx).Info("closed expired tenders", "count", n)
	return int(n), nil
}

// TendersWithoutExtraction returns open tenders that have no extracted
// fields yet. An empty platform matches all platforms; limit <= 0 means no limit.
func (db *DB) TendersWithoutExtraction(ctx context.Context, platform string, limit int) ([]Tender, error) {
	query := `SELECT ` + prefixed("t", tenderColumns) + `
		FROM tenders t LEFT JOIN extracted_fields e ON t.id = e.tender_id
		WHERE e.tender_id IS NULL AND t.status IN (?, ?)`
	args := []any{StatusActive, StatusUpdated}
	if platform != "" {
		query += " AND t.platform_name = ?"
		args = append(args, platform)
	}
	query += " ORDER BY t.created_at"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return db.selectTenders(ctx, query, args...)
}

// ActiveTenders returns Active tenders ordered by deadline.
func (db *DB) ActiveTenders(ctx context.Context, platform string) ([]Tender, error) {
	query := `SELECT ` + tenderColumns + ` FROM tenders WHERE status = ?`
	args := []any{StatusActive}
	if platform != "" {
		query += " AND platform_name = ?"
		args = append(args, platform)
	}
	query += " ORDER BY deadline"
	return db.selectTenders(ctx, query, args...)
}

// UpcomingDeadlines returns Active tenders whose deadline falls within the
// next days days.
func (db *DB) UpcomingDeadlines(ctx context.Context, days int) ([]Tender, error) {
	ts := now()
	return db.selectTenders(ctx, `SELECT `+tenderColumns+` FROM tenders
		WHERE status = ? AND deadline >= ? AND deadline <= ?
		ORDER BY deadline`,
		StatusActive, formatTime(ts), formatTime(ts.AddDate(0, 0, days)))
}

// RecentTenders returns tenders added or updated in the last days days.
func (db *DB) RecentTenders(ctx context.Context, days int, platform string) ([]Tender, error) {
	query := `SELECT ` + tenderColumns + ` FROM tenders WHERE last_updated_at >= ?`
	args := []any{formatTime(now().AddDate(0, 0, -days))}
	if platform != "" {
		query += " AND platform_name = ?"
		args = append(args, platform)
	}
	query += " ORDER BY last_updated_at DESC"
	return db.selectTenders(ctx, query, args...)
}

// TenderFilter narrows SearchTenders. Zero values are ignored.
type TenderFilter struct {
	Keyword   string
	MinAmount *float64
	MaxAmount *float64
	Category  string
	Platform  string
	Status    Status
	Limit     int
	Offset    int
}

// SearchTenders returns one page of matching tenders and the total match count.
func (db *DB) SearchTenders(ctx context.Context, f TenderFilter) ([]Tender, int, error) {
	var where []string
	var args []any
	if f.Keyword != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(contracting_authority) LIKE ?)")
		kw := "%" + strings.ToLower(f.Keyword) + "%"
		args = append(args, kw, kw)
	}
	if f.MinAmount != nil {
		where = append(where, "amount >= ?")
		args = append(args, *f.MinAmount)
	}
	if f.MaxAmount != nil {
		where = append(where, "amount <= ?")
		args = append(args, *f.MaxAmount)
	}
	if f.Category != "" {
		where = append(where, "LOWER(category) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Category)+"%")
	}
	if f.Platform != "" {
		where = append(where, "platform_name = ?")
		args = append(args, f.Platform)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.GetContext(ctx, &total,
		db.conn.Rebind("SELECT COUNT(*) FROM tenders"+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("counting tenders: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT " + tenderColumns + " FROM tenders" + clause +
		" ORDER BY deadline DESC LIMIT ? OFFSET ?"
	tenders, err := db.selectTenders(ctx, query, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	return tenders, total, nil
}

func (db *DB) selectTenders(ctx context.Context, query string, args ...any) ([]Tender, error) {
	var tenders []Tender
	if err := db.conn.SelectContext(ctx, &tenders, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying tenders: %w", err)
	}
	return tenders, nil
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
