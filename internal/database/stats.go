package database

import (
	"context"
	"fmt"
	"math"
)

// Stats returns aggregate counts over the whole database.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{PlatformBreakdown: make(map[string]int)}

	queries := []struct {
		sql  string
		args []any
		dest *int
	}{
		{"SELECT COUNT(*) FROM tenders", nil, &s.TotalTenders},
		{"SELECT COUNT(*) FROM tenders WHERE status = ?", []any{StatusActive}, &s.ActiveTenders},
		{"SELECT COUNT(*) FROM tenders WHERE status = ?", []any{StatusClosed}, &s.ClosedTenders},
		{"SELECT COUNT(*) FROM attachments", nil, &s.TotalAttachments},
		{"SELECT COUNT(*) FROM attachments WHERE downloaded = ?", []any{DownloadDownloaded}, &s.DownloadedAttachments},
		{"SELECT COUNT(*) FROM extracted_fields", nil, &s.Level2Extracted},
		{"SELECT COUNT(*) FROM tenders WHERE last_updated_at >= ?",
			[]any{formatTime(now().AddDate(0, 0, -7))}, &s.Recent7Days},
	}
	for _, q := range queries {
		if err := db.conn.GetContext(ctx, q.dest, db.conn.Rebind(q.sql), q.args...); err != nil {
			return nil, fmt.Errorf("stats query %q: %w", q.sql, err)
		}
	}

	var avg *float64
	if err := db.conn.GetContext(ctx, &avg, "SELECT AVG(data_quality_score) FROM tenders"); err != nil {
		return nil, fmt.Errorf("average data quality: %w", err)
	}
	if avg != nil {
		s.AvgDataQuality = math.Round(*avg*100) / 100
	}

	var breakdown []struct {
		Platform string `db:"platform_name"`
		Count    int    `db:"n"`
	}
	if err := db.conn.SelectContext(ctx, &breakdown,
		"SELECT platform_name, COUNT(*) AS n FROM tenders GROUP BY platform_name"); err != nil {
		return nil, fmt.Errorf("platform breakdown: %w", err)
	}
	for _, b := range breakdown {
		s.PlatformBreakdown[b.Platform] = b.Count
	}

	return s, nil
}
