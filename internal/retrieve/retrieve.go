// Package retrieve downloads tender attachments into per-tender folders and
// records every outcome on the attachment row.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TobiSchelling/tenderwatch/internal/config"
	"github.com/TobiSchelling/tenderwatch/internal/logging"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Kind classifies a failed fetch.
type Kind string

const (
	KindInvalidURL          Kind = "invalid_url"
	KindDisallowedExtension Kind = "disallowed_extension"
	KindTimeout             Kind = "timeout"
	KindHTTP                Kind = "http_error"
	KindSizeExceeded        Kind = "size_exceeded"
	KindRequest             Kind = "request_error"
	KindIO                  Kind = "io_error"
)

// FetchError describes why a document could not be retrieved. Msg is the
// text stored on the attachment row.
type FetchError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *FetchError) Error() string { return e.Msg }
func (e *FetchError) Unwrap() error { return e.Err }

// Outcome is a successful fetch.
type Outcome struct {
	Path    string
	Size    int64
	Existed bool
}

// Retriever fetches documents over HTTP with type and size guards.
type Retriever struct {
	client    *http.Client
	root      string
	maxBytes  int64
	allowed   map[string]bool
	userAgent string
}

// Options configure a Retriever. Zero values fall back to defaults.
type Options struct {
	Root              string
	Timeout           time.Duration
	MaxBytes          int64
	AllowedExtensions []string
	UserAgent         string
	Client            *http.Client
}

// OptionsFromConfig maps the documents and scraper sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Root:              cfg.DownloadPath(),
		Timeout:           cfg.DownloadTimeout(),
		MaxBytes:          cfg.MaxFileSize(),
		AllowedExtensions: cfg.Documents.AllowedExtensions,
		UserAgent:         cfg.Scraper.UserAgent,
	}
}

func New(opts Options) *Retriever {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 50 * 1024 * 1024
	}
	if len(opts.AllowedExtensions) == 0 {
		opts.AllowedExtensions = []string{"pdf", "doc", "docx", "xls", "xlsx", "zip", "rar"}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}

	allowed := make(map[string]bool, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Retriever{
		client:    client,
		root:      opts.Root,
		maxBytes:  opts.MaxBytes,
		allowed:   allowed,
		userAgent: opts.UserAgent,
	}
}

// TenderFolder returns the download folder of a tender.
func (r *Retriever) TenderFolder(tenderKey string) string {
	return filepath.Join(r.root, SanitizeFilename(tenderKey))
}

// Fetch downloads rawURL into folder under a sanitized form of
// suggestedName. A non-empty file already at the target counts as success.
// Failures are returned as *FetchError and never leave a partial file.
func (r *Retriever) Fetch(ctx context.Context, rawURL, folder, suggestedName string) (Outcome, error) {
	if !strings.HasPrefix(rawURL, "http") {
		return Outcome{}, &FetchError{Kind: KindInvalidURL, Msg: "Invalid URL"}
	}
	if ext := extension(suggestedName); ext != "" && !r.allowed[ext] {
		return Outcome{}, &FetchError{Kind: KindDisallowedExtension, Msg: fmt.Sprintf("Extension %s not allowed", ext)}
	}

	name := SanitizeFilename(suggestedName)
	if name == "" {
		name = SanitizeFilename(filepath.Base(strings.SplitN(rawURL, "?", 2)[0]))
	}
	if name == "" {
		name = "document"
	}
	target := filepath.Join(folder, name)

	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
		logging.FromContext(ctx).Debug("file already exists", "path", target)
		return Outcome{Path: target, Size: info.Size(), Existed: true}, nil
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return Outcome{}, &FetchError{Kind: KindIO, Msg: fmt.Sprintf("Unexpected error: %v", err), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Outcome{}, &FetchError{Kind: KindInvalidURL, Msg: "Invalid URL", Err: err}
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return Outcome{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	// Redirects past the limit arrive here as 3xx.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{}, &FetchError{Kind: KindHTTP, Msg: fmt.Sprintf("HTTP error: %d", resp.StatusCode)}
	}
	if resp.ContentLength > r.maxBytes {
		return Outcome{}, &FetchError{
			Kind: KindSizeExceeded,
			Msg:  fmt.Sprintf("File too large: %.1f MB", float64(resp.ContentLength)/1024/1024),
		}
	}

	size, err := r.writeFile(target, resp.Body)
	if err != nil {
		return Outcome{}, err
	}
	logging.FromContext(ctx).Debug("downloaded document", "url", rawURL, "path", target, "bytes", size)
	return Outcome{Path: target, Size: size}, nil
}

// writeFile streams body into a temporary sibling of target and renames it
// into place once complete.
func (r *Retriever) writeFile(target string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".part-*")
	if err != nil {
		return 0, &FetchError{Kind: KindIO, Msg: fmt.Sprintf("Unexpected error: %v", err), Err: err}
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(body, r.maxBytes+1))
	closeErr := tmp.Close()
	if err != nil {
		return 0, classifyTransportError(err)
	}
	if n > r.maxBytes {
		return 0, &FetchError{Kind: KindSizeExceeded, Msg: "File size exceeded during download"}
	}
	if closeErr != nil {
		return 0, &FetchError{Kind: KindIO, Msg: fmt.Sprintf("Unexpected error: %v", closeErr), Err: closeErr}
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, &FetchError{Kind: KindIO, Msg: fmt.Sprintf("Unexpected error: %v", err), Err: err}
	}
	return n, nil
}

func classifyTransportError(err error) *FetchError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Kind: KindTimeout, Msg: "Download timeout", Err: err}
	}
	return &FetchError{Kind: KindRequest, Msg: fmt.Sprintf("Request error: %v", err), Err: err}
}

// SanitizeFilename replaces characters that are invalid in file names,
// trims surrounding dots and spaces and caps the length at 200 characters
// while keeping the extension.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, ". ")

	if runes := []rune(name); len(runes) > 200 {
		ext := filepath.Ext(name)
		base := []rune(strings.TrimSuffix(name, ext))
		if len(base) > 195 {
			base = base[:195]
		}
		name = string(base) + ext
	}
	return name
}

// extension returns the lowercased extension of name without the dot.
func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
