package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/TobiSchelling/tenderwatch/internal/config"
)

// Adapter produces the tender records currently listed on one platform.
// Collect either returns every record of the run or an error; a failing
// adapter fails the whole run for its platform.
type Adapter interface {
	Name() string
	Collect(ctx context.Context) ([]Record, error)
}

// ErrUnknownPlatform is returned by Registry.Get for unregistered names.
var ErrUnknownPlatform = errors.New("unknown platform")

// Registry maps platform names to adapters.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds a; a second adapter with the same name replaces the first.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, name)
	}
	return a, nil
}

// Names returns registered platform names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Options are shared by the built-in adapters.
type Options struct {
	Client    *http.Client
	UserAgent string
	Filter    Filter
}

func (o Options) httpClient() *http.Client {
	if o.Client == nil {
		return http.DefaultClient
	}
	return o.Client
}

// NewRegistryFromConfig builds adapters for the configured platforms.
// Disabled platforms are skipped unless includeDisabled is set.
func NewRegistryFromConfig(cfg *config.Config, includeDisabled bool) (*Registry, error) {
	opts := optionsFromConfig(cfg)
	reg := NewRegistry()
	for _, p := range cfg.Platforms {
		if !p.IsEnabled() && !includeDisabled {
			continue
		}
		a, err := NewAdapter(p, opts)
		if err != nil {
			return nil, err
		}
		reg.Register(a)
	}
	return reg, nil
}

// AdapterFor builds the adapter of one configured platform, enabled or not.
func AdapterFor(cfg *config.Config, name string) (Adapter, error) {
	p, ok := cfg.Platform(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, name)
	}
	return NewAdapter(p, optionsFromConfig(cfg))
}

func optionsFromConfig(cfg *config.Config) Options {
	return Options{
		Client:    &http.Client{Timeout: time.Duration(cfg.Scraper.DownloadTimeoutSeconds) * time.Second},
		UserAgent: cfg.Scraper.UserAgent,
		Filter:    Filter{ExcludeTypes: cfg.Filters.ExcludeTypes, OnlyOpen: cfg.Filters.OnlyOpenTenders},
	}
}

// NewAdapter builds the built-in adapter for a platform kind.
func NewAdapter(p config.Platform, opts Options) (Adapter, error) {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	switch p.Kind {
	case "feed":
		return NewFeedAdapter(p.Name, p.URL, opts), nil
	case "html":
		if p.Selectors.Item == "" {
			return nil, fmt.Errorf("platform %s: html adapter needs an item selector", p.Name)
		}
		return NewHTMLAdapter(p.Name, p.URL, p.Selectors, opts), nil
	case "file":
		if p.File == "" && p.URL == "" {
			return nil, fmt.Errorf("platform %s: file adapter needs a file or url", p.Name)
		}
		return NewFileAdapter(p.Name, p.File, p.URL, opts), nil
	}
	return nil, fmt.Errorf("platform %s: unknown kind %q", p.Name, p.Kind)
}

// prepare validates, filters and completes records collected by a built-in
// adapter. Invalid or excluded records are logged and dropped.
func prepare(platform string, records []Record, f Filter) []Record {
	out := make([]Record, 0, len(records))
	for i := range records {
		r := records[i]
		if r.PlatformName == "" {
			r.PlatformName = platform
		}
		if err := r.Validate(); err != nil {
			slog.Warn("dropping invalid record", "platform", platform, "error", err)
			continue
		}
		if skip, reason := f.Exclude(&r); skip {
			slog.Debug("excluding tender", "platform", platform, "title", r.Title, "reason", reason)
			continue
		}
		if r.Category == nil {
			c := InferCategory(r.Title)
			r.Category = &c
		}
		out = append(out, r)
	}
	return out
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
