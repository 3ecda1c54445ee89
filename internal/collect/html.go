package collect

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/tenderwatch/internal/config"
)

const maxListingBytes = 10 << 20

// HTMLAdapter scrapes a static listing page with CSS selectors. Each node
// matched by the item selector becomes a record.
type HTMLAdapter struct {
	name      string
	pageURL   string
	selectors config.Selectors
	opts      Options
}

func NewHTMLAdapter(name, pageURL string, sel config.Selectors, opts Options) *HTMLAdapter {
	return &HTMLAdapter{name: name, pageURL: pageURL, selectors: sel, opts: opts}
}

func (a *HTMLAdapter) Name() string { return a.name }

// Collect downloads the listing page and extracts records from it.
func (a *HTMLAdapter) Collect(ctx context.Context) ([]Record, error) {
	base, err := url.Parse(a.pageURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid listing url %q", a.pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if a.opts.UserAgent != "" {
		req.Header.Set("User-Agent", a.opts.UserAgent)
	}
	resp, err := a.opts.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", a.pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d", a.pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", a.pageURL, err)
	}

	records := a.extract(doc, base)
	slog.Info("scraped listing", "platform", a.name, "records", len(records))
	return prepare(a.name, records, a.opts.Filter), nil
}

func (a *HTMLAdapter) extract(doc *goquery.Document, base *url.URL) []Record {
	sel := a.selectors
	var records []Record
	doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		title := text(item, sel.Title)
		link := a.href(item, sel.Link, base)
		if title == "" || link == "" {
			return
		}

		r := Record{
			Title:                title,
			URL:                  link,
			PlatformName:         a.name,
			Amount:               ParseAmount(text(item, sel.Amount)),
			Deadline:             ParseDateTime(text(item, sel.Deadline)),
			PublicationDate:      ParseDate(text(item, sel.PublicationDate)),
			ProcedureType:        strPtr(text(item, sel.ProcedureType)),
			ContractingAuthority: strPtr(text(item, sel.ContractingAuthority)),
		}
		if sel.CIG != "" {
			r.CIG = ExtractCIG(text(item, sel.CIG))
		}
		if sel.Attachments != "" {
			item.Find(sel.Attachments).Each(func(_ int, s *goquery.Selection) {
				href, ok := s.Attr("href")
				if !ok || href == "" {
					return
				}
				abs := resolve(base, href)
				if abs == "" {
					return
				}
				name := strings.TrimSpace(s.Text())
				if name == "" || !strings.Contains(name, ".") {
					name = path.Base(abs)
				}
				r.Attachments = append(r.Attachments, AttachmentRef{FileName: name, FileURL: abs})
			})
		}
		records = append(records, r)
	})
	return records
}

// href returns the absolute link of the first match of selector inside
// item; an empty selector means item itself.
func (a *HTMLAdapter) href(item *goquery.Selection, selector string, base *url.URL) string {
	s := item
	if selector != "" {
		s = item.Find(selector).First()
	}
	if !s.Is("a") {
		s = s.Find("a[href]").First()
	}
	h, ok := s.Attr("href")
	if !ok {
		return ""
	}
	return resolve(base, h)
}

func text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(item.Find(selector).First().Text()), " ")
}

func resolve(base *url.URL, href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	abs.Fragment = ""
	return abs.String()
}
