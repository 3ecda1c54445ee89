package retrieve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/tenderwatch/internal/database"
	"github.com/TobiSchelling/tenderwatch/internal/logging"
)

// Store is the persistence the downloader needs.
type Store interface {
	PendingAttachments(ctx context.Context, tenderID string) ([]database.Attachment, error)
	UpdateAttachmentStatus(ctx context.Context, id int64, st database.AttachmentStatus) error
	ClassifyAttachment(ctx context.Context, id int64, category string, confidence float64) error
}

// Stats summarizes one DownloadPending call.
type Stats struct {
	Total      int
	Downloaded int
	Failed     int
}

// Downloader retrieves the pending attachments of tenders.
type Downloader struct {
	store       Store
	retriever   *Retriever
	classifier  *Classifier
	archive     Archiver
	concurrency int
}

// NewDownloader wires a downloader. classifier and archive may be nil.
func NewDownloader(store Store, r *Retriever, classifier *Classifier, archive Archiver, concurrency int) *Downloader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Downloader{store: store, retriever: r, classifier: classifier, archive: archive, concurrency: concurrency}
}

// DownloadPending fetches every Pending attachment of a tender and records
// each outcome. A failed download never stops the others; the returned
// error only reports that the pending list could not be read.
func (d *Downloader) DownloadPending(ctx context.Context, tenderKey string) (Stats, error) {
	pending, err := d.store.PendingAttachments(ctx, tenderKey)
	if err != nil {
		return Stats{}, fmt.Errorf("listing pending attachments of %s: %w", tenderKey, err)
	}

	var (
		mu    sync.Mutex
		stats = Stats{Total: len(pending)}
	)
	folder := d.retriever.TenderFolder(tenderKey)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, att := range pending {
		g.Go(func() error {
			ok := d.downloadOne(gctx, tenderKey, folder, att)
			mu.Lock()
			if ok {
				stats.Downloaded++
			} else {
				stats.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	logging.FromContext(ctx).Info("downloaded attachments", "tender", tenderKey,
		"downloaded", stats.Downloaded, "total", stats.Total, "failed", stats.Failed)
	return stats, nil
}

func (d *Downloader) downloadOne(ctx context.Context, tenderKey, folder string, att database.Attachment) bool {
	if d.classifier != nil && att.Category == nil {
		category, conf := d.classifier.Classify(att.FileName)
		if err := d.store.ClassifyAttachment(ctx, att.ID, category, conf); err != nil {
			logging.FromContext(ctx).Warn("classifying attachment", "attachment", att.ID, "error", err)
		}
	}

	out, err := d.retriever.Fetch(ctx, att.FileURL, folder, att.FileName)
	if err != nil {
		var fe *FetchError
		msg := err.Error()
		if !errors.As(err, &fe) {
			msg = fmt.Sprintf("Unexpected error: %v", err)
		}
		logging.FromContext(ctx).Warn("failed to download", "tender", tenderKey, "file", att.FileName, "error", msg)
		if uerr := d.store.UpdateAttachmentStatus(ctx, att.ID, database.AttachmentStatus{Error: msg}); uerr != nil {
			logging.FromContext(ctx).Error("recording download failure", "attachment", att.ID, "error", uerr)
		}
		return false
	}

	st := database.AttachmentStatus{Downloaded: true, LocalPath: out.Path, SizeBytes: out.Size}
	if err := d.store.UpdateAttachmentStatus(ctx, att.ID, st); err != nil {
		logging.FromContext(ctx).Error("recording download", "attachment", att.ID, "error", err)
		return false
	}

	if d.archive != nil && !out.Existed {
		if err := d.archive.Archive(ctx, tenderKey, out.Path); err != nil {
			logging.FromContext(ctx).Warn("archiving document", "tender", tenderKey, "path", out.Path, "error", err)
		}
	}
	return true
}
