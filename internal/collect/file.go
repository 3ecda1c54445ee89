package collect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxDocumentBytes = 20 << 20

// FileAdapter reads pre-scraped records from a JSON or YAML document, either
// a local file or an HTTP endpoint. The document is a list of records or an
// object with a "records" list. JSON timestamps use RFC 3339.
type FileAdapter struct {
	name string
	file string
	url  string
	opts Options
}

func NewFileAdapter(name, file, url string, opts Options) *FileAdapter {
	return &FileAdapter{name: name, file: file, url: url, opts: opts}
}

func (a *FileAdapter) Name() string { return a.name }

func (a *FileAdapter) Collect(ctx context.Context) ([]Record, error) {
	var (
		data []byte
		err  error
		src  string
	)
	if a.file != "" {
		src = a.file
		data, err = os.ReadFile(a.file)
	} else {
		src = a.url
		data, err = a.fetch(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src, err)
	}

	records, err := decodeRecords(data, isJSON(src, data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", src, err)
	}
	slog.Info("loaded records", "platform", a.name, "source", src, "records", len(records))
	return prepare(a.name, records, a.opts.Filter), nil
}

func (a *FileAdapter) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml")
	if a.opts.UserAgent != "" {
		req.Header.Set("User-Agent", a.opts.UserAgent)
	}
	resp, err := a.opts.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
}

func isJSON(src string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(src)) {
	case ".json":
		return true
	case ".yaml", ".yml":
		return false
	}
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

func decodeRecords(data []byte, asJSON bool) ([]Record, error) {
	var wrapped struct {
		Records []Record `json:"records" yaml:"records"`
	}
	var list []Record

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	isList := trimmed[0] == '[' || trimmed[0] == '-'

	var err error
	switch {
	case asJSON && isList:
		err = json.Unmarshal(data, &list)
	case asJSON:
		err = json.Unmarshal(data, &wrapped)
		list = wrapped.Records
	case isList:
		err = yaml.Unmarshal(data, &list)
	default:
		err = yaml.Unmarshal(data, &wrapped)
		list = wrapped.Records
	}
	return list, err
}
