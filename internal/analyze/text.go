// Package analyze turns retrieved documents into text and locates the
// clauses a tender's structured extraction needs.
package analyze

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrNoText means a document was readable but yielded no usable text.
	ErrNoText = errors.New("no text extracted")
	// ErrUnsupported means the document type has no extractor.
	ErrUnsupported = errors.New("unsupported document type")
)

// TextExtractor reads the text of PDF, HTML and plain-text documents.
type TextExtractor struct {
	// MaxPages caps the PDF pages read.
	MaxPages int
	// MinTextLength is the trimmed length a PDF page must exceed to be kept.
	MinTextLength int
}

func NewTextExtractor(maxPages, minTextLength int) *TextExtractor {
	if maxPages <= 0 {
		maxPages = 20
	}
	if minTextLength < 0 {
		minTextLength = 50
	}
	return &TextExtractor{MaxPages: maxPages, MinTextLength: minTextLength}
}

// Supported reports whether path has an extractor.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".html", ".htm", ".txt":
		return true
	}
	return false
}

// ExtractText returns the document text. It fails with ErrNoText when the
// document holds no usable text.
func (e *TextExtractor) ExtractText(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("document %s: %w", path, err)
	}

	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = e.pdfText(path)
	case ".html", ".htm":
		text, err = htmlText(path)
	case ".txt":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNoText)
	}
	return text, nil
}

// pdfText reads up to MaxPages pages. Files the reader rejects are
// rewritten by pdfcpu in relaxed mode and read again.
func (e *TextExtractor) pdfText(path string) (string, error) {
	text, err := e.readPDF(path)
	if err == nil {
		return text, nil
	}

	slog.Debug("pdf unreadable, trying repair", "path", path, "error", err)
	repaired, rerr := repairPDF(path)
	if rerr != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(repaired)
	text, err = e.readPDF(repaired)
	if err != nil {
		return "", fmt.Errorf("reading repaired %s: %w", filepath.Base(path), err)
	}
	return text, nil
}

func (e *TextExtractor) readPDF(path string) (text string, err error) {
	// The reader panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pages := min(r.NumPage(), e.MaxPages)
	var kept []string
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, perr := pageLines(p)
		if perr != nil {
			slog.Warn("error extracting page", "path", filepath.Base(path), "page", i, "error", perr)
			continue
		}
		if len([]rune(strings.TrimSpace(pageText))) > e.MinTextLength {
			kept = append(kept, pageText)
		}
	}
	return strings.Join(kept, "\n\n"), nil
}

// pageLines rebuilds a page's lines from its positioned glyphs. A change
// of baseline starts a new line; a horizontal gap wider than a fifth of
// the font size becomes a space.
func pageLines(p pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()

	var (
		lines   []string
		line    strings.Builder
		lastY   float64
		lastEnd float64
	)
	flush := func() {
		if l := strings.TrimSpace(line.String()); l != "" {
			lines = append(lines, l)
		}
		line.Reset()
	}
	for i, t := range p.Content().Text {
		if i > 0 {
			if math.Abs(t.Y-lastY) > max(2, 0.3*t.FontSize) {
				flush()
			} else if t.X-lastEnd > 0.2*t.FontSize && t.S != " " &&
				!strings.HasSuffix(line.String(), " ") {
				line.WriteByte(' ')
			}
		}
		line.WriteString(t.S)
		lastY, lastEnd = t.Y, t.X+t.W
	}
	flush()
	return strings.Join(lines, "\n"), nil
}

func repairPDF(path string) (name string, err error) {
	out, err := os.CreateTemp("", "repaired-*.pdf")
	if err != nil {
		return "", err
	}
	out.Close()
	defer func() {
		if err != nil {
			os.Remove(out.Name())
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("repairing pdf: %v", r)
		}
	}()

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(path, out.Name(), cfg); err != nil {
		return "", err
	}
	return out.Name(), nil
}

func htmlText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	base, _ := url.Parse("file://" + filepath.ToSlash(path))
	article, err := readability.FromReader(f, base)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return strings.TrimSpace(article.TextContent), nil
}
