// Package pipeline runs platform adapters and feeds their records through
// storage, document retrieval and extraction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/tenderwatch/internal/collect"
	"github.com/TobiSchelling/tenderwatch/internal/database"
	"github.com/TobiSchelling/tenderwatch/internal/logging"
	"github.com/TobiSchelling/tenderwatch/internal/retrieve"
)

// maxErrorDetails caps the per-tender errors kept in a run log.
const maxErrorDetails = 20

// Store is the persistence a run needs.
type Store interface {
	UpsertTender(ctx context.Context, rec collect.Record) (database.UpsertResult, error)
	CloseExpired(ctx context.Context) (int, error)
	AppendRunLog(ctx context.Context, rl *database.RunLog) (int64, error)
}

// Downloader retrieves the pending attachments of a tender.
type Downloader interface {
	DownloadPending(ctx context.Context, tenderKey string) (retrieve.Stats, error)
}

// Extractor derives structured clauses for a tender.
type Extractor interface {
	ExtractOne(ctx context.Context, tenderKey string) (*database.ExtractedFields, error)
}

// RunStats holds the counters of one platform run.
type RunStats struct {
	RunID       string
	Platform    string
	Status      database.RunStatus
	Start       time.Time
	End         time.Time
	Found       int
	New         int
	Updated     int
	Errors      int
	Attachments int
	Extracted   int
	Closed      int

	mu      sync.Mutex
	details []string
}

func (s *RunStats) fail(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors++
	if len(s.details) < maxErrorDetails {
		s.details = append(s.details, fmt.Sprintf(format, args...))
	}
}

func (s *RunStats) add(fn func(*RunStats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *RunStats) String() string {
	return fmt.Sprintf("found=%d new=%d updated=%d attachments=%d extracted=%d errors=%d",
		s.Found, s.New, s.Updated, s.Attachments, s.Extracted, s.Errors)
}

// Pipeline orchestrates platform runs.
type Pipeline struct {
	store      Store
	downloader Downloader
	extractor  Extractor
	workers    int

	now func() time.Time
}

// New creates a pipeline. A nil downloader skips document retrieval and a
// nil extractor skips extraction. workers bounds how many tenders are
// processed at once.
func New(store Store, downloader Downloader, extractor Extractor, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		store:      store,
		downloader: downloader,
		extractor:  extractor,
		workers:    workers,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run collects one platform and processes its records. Per-tender failures
// are counted and do not stop the run; an adapter failure or a cancelled
// context ends it as Failed. A run log is written in every case.
func (p *Pipeline) Run(ctx context.Context, adapter collect.Adapter) (*RunStats, error) {
	stats := &RunStats{RunID: uuid.NewString(), Platform: adapter.Name(), Start: p.now()}
	ctx = logging.WithRunID(ctx, stats.RunID)
	log := logging.FromContext(ctx).With("platform", stats.Platform)
	log.Info("starting platform run")

	runErr := p.process(ctx, adapter, stats)
	if runErr == nil {
		n, err := p.store.CloseExpired(ctx)
		if err != nil {
			runErr = err
		}
		stats.Closed = n
	}

	stats.End = p.now()
	stats.Status = database.RunSuccess
	if runErr != nil {
		stats.Status = database.RunFailed
		stats.Errors++
		log.Error("platform run failed", "error", runErr)
	} else {
		log.Info("platform run completed", "stats", stats.String())
	}

	// The run log is written even when ctx was cancelled.
	if _, err := p.store.AppendRunLog(context.WithoutCancel(ctx), p.runLog(stats, runErr)); err != nil {
		log.Error("failed to write run log", "error", err)
		runErr = errors.Join(runErr, err)
	}
	if runErr != nil {
		return stats, fmt.Errorf("run %s on %s: %w", stats.RunID, stats.Platform, runErr)
	}
	return stats, nil
}

func (p *Pipeline) process(ctx context.Context, adapter collect.Adapter, stats *RunStats) error {
	records, err := adapter.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collecting: %w", err)
	}
	logging.FromContext(ctx).Info("collected records", "platform", stats.Platform, "records", len(records))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			p.processRecord(ctx, rec, stats)
			return nil
		})
	}
	g.Wait()
	return ctx.Err()
}

// processRecord stores one record, then retrieves its documents and runs
// extraction. A failing step is counted; later steps still run when the
// tender was stored.
func (p *Pipeline) processRecord(ctx context.Context, rec collect.Record, stats *RunStats) {
	log := logging.FromContext(ctx)
	stats.add(func(s *RunStats) { s.Found++ })

	res, err := p.store.UpsertTender(ctx, rec)
	if err != nil {
		log.Error("error processing tender", "url", rec.URL, "error", err)
		stats.fail("%s: %v", rec.URL, err)
		return
	}
	stats.add(func(s *RunStats) {
		switch {
		case res.IsNew:
			s.New++
		case res.Changed:
			s.Updated++
		}
	})

	if p.downloader != nil {
		dl, err := p.downloader.DownloadPending(ctx, res.Key)
		if err != nil {
			log.Error("attachment download failed", "tender", res.Key, "error", err)
			stats.fail("%s: %v", res.Key, err)
		} else {
			stats.add(func(s *RunStats) { s.Attachments += dl.Downloaded })
		}
	}

	if p.extractor != nil {
		ef, err := p.extractor.ExtractOne(ctx, res.Key)
		if err != nil {
			log.Error("extraction failed", "tender", res.Key, "error", err)
			stats.fail("%s: %v", res.Key, err)
		} else if ef != nil {
			stats.add(func(s *RunStats) { s.Extracted++ })
		}
	}
}

func (p *Pipeline) runLog(stats *RunStats, runErr error) *database.RunLog {
	rl := &database.RunLog{
		RunID:                 &stats.RunID,
		PlatformName:          stats.Platform,
		RunStart:              database.NewNullTime(&stats.Start),
		RunEnd:                database.NewNullTime(&stats.End),
		Status:                stats.Status,
		TendersFound:          stats.Found,
		TendersNew:            stats.New,
		TendersUpdated:        stats.Updated,
		AttachmentsDownloaded: stats.Attachments,
		Level2Extracted:       stats.Extracted,
		ErrorsCount:           stats.Errors,
	}

	details := stats.details
	if runErr != nil {
		details = append([]string{runErr.Error()}, details...)
	}
	if len(details) > 0 {
		s := strings.Join(details, "\n")
		rl.ErrorDetails = &s
	}
	return rl
}

// RunAll runs each adapter in turn. A failed platform does not stop the
// others; the failures are joined in the returned error.
func (p *Pipeline) RunAll(ctx context.Context, adapters []collect.Adapter) ([]*RunStats, error) {
	var (
		all  []*RunStats
		errs []error
	)
	for _, a := range adapters {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		stats, err := p.Run(ctx, a)
		all = append(all, stats)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return all, errors.Join(errs...)
}
