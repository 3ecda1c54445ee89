package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

const (
	maxAggregateLength = 3000
	maxRawTextLength   = 50000
	minRawDocLength    = 500
)

// Document is the analysis of one file.
type Document struct {
	FileName string
	Text     string
	Sections Sections
}

// Finding is a section excerpt together with the file it came from.
type Finding struct {
	Source  string
	Content string
}

// Result aggregates the analyses of all documents of a tender.
type Result struct {
	TenderKey       string
	Processed       int
	Failed          int
	TotalTextLength int
	Qualifications  []Finding
	Evaluation      []Finding
	Process         []Finding
	Delivery        []Finding
	Documents       []Document
}

// Sources lists the analyzed file names.
func (r *Result) Sources() []string {
	out := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		out[i] = d.FileName
	}
	return out
}

// PromptInput is the per-section text handed to the language model. Empty
// fields were not found.
type PromptInput struct {
	Qualifications string
	Evaluation     string
	Process        string
	Delivery       string
	RawText        string
}

// Analyzer extracts text and locates sections.
type Analyzer struct {
	text     *TextExtractor
	strategy SectionStrategy
}

// New returns an Analyzer. A nil strategy selects DefaultStrategy.
func New(text *TextExtractor, strategy SectionStrategy) *Analyzer {
	if text == nil {
		text = NewTextExtractor(0, 50)
	}
	if strategy == nil {
		strategy = DefaultStrategy()
	}
	return &Analyzer{text: text, strategy: strategy}
}

// AnalyzeDocument extracts text from path and locates its sections.
func (a *Analyzer) AnalyzeDocument(path string) (*Document, error) {
	text, err := a.text.ExtractText(path)
	if err != nil {
		return nil, err
	}
	return &Document{
		FileName: filepath.Base(path),
		Text:     text,
		Sections: a.strategy.Locate(text),
	}, nil
}

// Aggregate analyzes every supported document of a tender. Unreadable
// documents are counted in Failed and skipped.
func (a *Analyzer) Aggregate(ctx context.Context, tenderKey string, paths []string) *Result {
	res := &Result{TenderKey: tenderKey}
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		if !Supported(p) {
			continue
		}
		doc, err := a.AnalyzeDocument(p)
		if err != nil {
			res.Failed++
			slog.Warn("failed to analyze document", "tender", tenderKey, "file", filepath.Base(p), "error", err)
			continue
		}

		res.Processed++
		res.TotalTextLength += len([]rune(doc.Text))
		res.Documents = append(res.Documents, *doc)
		add := func(dst *[]Finding, content string) {
			if content != "" {
				*dst = append(*dst, Finding{Source: doc.FileName, Content: content})
			}
		}
		add(&res.Qualifications, doc.Sections.Qualifications)
		add(&res.Evaluation, doc.Sections.Evaluation)
		add(&res.Process, doc.Sections.Process)
		add(&res.Delivery, doc.Sections.Delivery)
	}

	slog.Info("analyzed documents", "tender", tenderKey,
		"processed", res.Processed, "failed", res.Failed, "chars", res.TotalTextLength)
	return res
}

// PrepareForModel merges the findings of each section and collects the raw
// text of substantial documents.
func PrepareForModel(r *Result) PromptInput {
	var raw []string
	for _, d := range r.Documents {
		if len([]rune(d.Text)) > minRawDocLength {
			raw = append(raw, d.Text)
		}
	}
	rawText := strings.Join(raw, "\n\n")
	if rs := []rune(rawText); len(rs) > maxRawTextLength {
		rawText = string(rs[:maxRawTextLength])
	}

	return PromptInput{
		Qualifications: aggregateSection(r.Qualifications),
		Evaluation:     aggregateSection(r.Evaluation),
		Process:        aggregateSection(r.Process),
		Delivery:       aggregateSection(r.Delivery),
		RawText:        rawText,
	}
}

func aggregateSection(findings []Finding) string {
	var parts []string
	for _, f := range findings {
		content := strings.TrimSpace(f.Content)
		if content == "" {
			continue
		}
		source := f.Source
		if source == "" {
			source = "Unknown"
		}
		parts = append(parts, fmt.Sprintf("[From %s]\n%s", source, content))
	}
	if len(parts) == 0 {
		return ""
	}
	return truncate(strings.Join(parts, "\n\n---\n\n"), maxAggregateLength)
}
