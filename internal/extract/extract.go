// Package extract turns the analyzed documents of a tender into structured
// clauses using a language model.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TobiSchelling/tenderwatch/internal/analyze"
	"github.com/TobiSchelling/tenderwatch/internal/config"
	"github.com/TobiSchelling/tenderwatch/internal/database"
	"github.com/TobiSchelling/tenderwatch/internal/llm"
)

const (
	defaultFallbackWait = 30 * time.Second
	defaultRetryBuffer  = 2 * time.Second
)

// ErrRateLimited is returned when every attempt was rejected for quota.
var ErrRateLimited = errors.New("model quota exhausted")

// Store is the persistence the extractor needs.
type Store interface {
	AttachmentsForTender(ctx context.Context, tenderID string) ([]database.Attachment, error)
	AddExtractedFields(ctx context.Context, ef *database.ExtractedFields) error
	TendersWithoutExtraction(ctx context.Context, platform string, limit int) ([]database.Tender, error)
}

// DocumentAnalyzer aggregates the documents of a tender.
type DocumentAnalyzer interface {
	Aggregate(ctx context.Context, tenderKey string, paths []string) *analyze.Result
}

// Options control model calls and the retry policy.
type Options struct {
	Model        llm.Options
	MaxAttempts  int
	SuccessDelay time.Duration
	FallbackWait time.Duration
	RetryBuffer  time.Duration
}

// OptionsFromConfig maps the level2 configuration section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Model:        llm.Options{Temperature: cfg.Level2.Temperature, MaxTokens: cfg.Level2.MaxOutputTokens},
		MaxAttempts:  cfg.Level2.MaxAttempts,
		SuccessDelay: cfg.SuccessDelay(),
	}
}

// BatchStats summarizes a BatchExtract call.
type BatchStats struct {
	Processed int
	Success   int
	Failed    int
}

// Extractor sends analyzed tender documents to the model and stores the
// parsed clauses.
type Extractor struct {
	store    Store
	provider llm.Provider
	analyzer DocumentAnalyzer
	gate     *Gate
	opts     Options

	// Sleep waits between attempts and after successful batch items.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns an Extractor. The gate may be shared with other extractors;
// nil creates an unthrottled single-slot gate.
func New(store Store, provider llm.Provider, analyzer DocumentAnalyzer, gate *Gate, opts Options) *Extractor {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.FallbackWait <= 0 {
		opts.FallbackWait = defaultFallbackWait
	}
	if opts.RetryBuffer <= 0 {
		opts.RetryBuffer = defaultRetryBuffer
	}
	if gate == nil {
		gate = NewGate(0)
	}
	if analyzer == nil {
		analyzer = analyze.New(nil, nil)
	}
	return &Extractor{
		store:    store,
		provider: provider,
		analyzer: analyzer,
		gate:     gate,
		opts:     opts,
		Sleep:    sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExtractOne extracts and stores the clauses of one tender. It returns nil
// without error when the tender has no downloaded PDF on disk or none of
// them yields text.
func (e *Extractor) ExtractOne(ctx context.Context, tenderKey string) (*database.ExtractedFields, error) {
	paths, err := e.downloadedPDFs(ctx, tenderKey)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		slog.Info("no downloaded PDFs available", "tender", tenderKey)
		return nil, nil
	}

	res := e.analyzer.Aggregate(ctx, tenderKey, paths)
	if res.Processed == 0 {
		slog.Info("no text extracted from PDFs", "tender", tenderKey)
		return nil, nil
	}

	prompt := BuildPrompt(analyze.PrepareForModel(res))
	reply, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", tenderKey, err)
	}

	fields, err := ParseResponse(reply)
	if err != nil {
		slog.Debug("raw model response", "tender", tenderKey, "response", truncate(reply, 500))
		return nil, fmt.Errorf("extracting %s: %w", tenderKey, err)
	}

	ef := &database.ExtractedFields{
		TenderID:               tenderKey,
		RequiredQualifications: fields.RequiredQualifications,
		EvaluationCriteria:     fields.EvaluationCriteria,
		ProcessDescription:     fields.ProcessDescription,
		DeliveryMethods:        fields.DeliveryMethods,
		RequiredDocumentation:  fields.RequiredDocumentation,
		ConfidenceScore:        fields.ConfidenceScore,
		SourceDocuments:        res.Sources(),
	}
	if err := e.store.AddExtractedFields(ctx, ef); err != nil {
		return nil, err
	}
	return ef, nil
}

func (e *Extractor) downloadedPDFs(ctx context.Context, tenderKey string) ([]string, error) {
	atts, err := e.store.AttachmentsForTender(ctx, tenderKey)
	if err != nil {
		return nil, fmt.Errorf("loading attachments of %s: %w", tenderKey, err)
	}
	var paths []string
	for _, a := range atts {
		if a.Downloaded != database.DownloadDownloaded || a.LocalPath == nil || *a.LocalPath == "" {
			continue
		}
		if !strings.EqualFold(filepath.Ext(*a.LocalPath), ".pdf") {
			continue
		}
		if _, err := os.Stat(*a.LocalPath); err != nil {
			slog.Debug("PDF missing on disk", "tender", tenderKey, "path", *a.LocalPath)
			continue
		}
		paths = append(paths, *a.LocalPath)
	}
	return paths, nil
}

// generate calls the model through the gate. Rate-limit rejections are
// retried after the suggested wait (or the fallback) plus a buffer; any
// other error ends the attempt sequence.
func (e *Extractor) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		reply, err := e.call(ctx, prompt)
		if err == nil {
			return reply, nil
		}

		var rl *llm.RateLimitError
		if !errors.As(err, &rl) {
			return "", err
		}
		lastErr = err
		if attempt == e.opts.MaxAttempts {
			break
		}

		wait := rl.RetryAfter
		if wait <= 0 {
			wait = e.opts.FallbackWait
		}
		wait += e.opts.RetryBuffer
		slog.Warn("model quota exceeded, retrying",
			"wait", wait, "attempt", attempt, "max_attempts", e.opts.MaxAttempts)
		if err := e.Sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %v", ErrRateLimited, e.opts.MaxAttempts, lastErr)
}

func (e *Extractor) call(ctx context.Context, prompt string) (string, error) {
	release, err := e.gate.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	return e.provider.Generate(ctx, prompt, e.opts.Model)
}

// BatchExtract runs ExtractOne over tenders lacking extracted fields. One
// tender's failure never stops the batch; each success is followed by the
// configured delay.
func (e *Extractor) BatchExtract(ctx context.Context, platform string, limit int) (BatchStats, error) {
	var stats BatchStats
	tenders, err := e.store.TendersWithoutExtraction(ctx, platform, limit)
	if err != nil {
		return stats, fmt.Errorf("listing tenders without extraction: %w", err)
	}
	slog.Info("batch extraction", "platform", platform, "tenders", len(tenders))

	for _, t := range tenders {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		ef, err := e.ExtractOne(ctx, t.ID)
		stats.Processed++
		if err != nil {
			slog.Error("extraction failed", "tender", t.ID, "error", err)
		}
		if ef == nil {
			stats.Failed++
			continue
		}
		stats.Success++
		if e.opts.SuccessDelay > 0 {
			if err := e.Sleep(ctx, e.opts.SuccessDelay); err != nil {
				return stats, err
			}
		}
	}

	slog.Info("batch extraction complete",
		"processed", stats.Processed, "success", stats.Success, "failed", stats.Failed)
	return stats, nil
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
