package collect

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

var (
	deadlinePattern = regexp.MustCompile(`(?i)(?:scadenza|termine)[^0-9]{0,40}(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}(?:\s+(?:ore\s+)?\d{1,2}[:.]\d{2})?)`)
	amountPattern   = regexp.MustCompile(`(?i)importo[^0-9€]{0,40}€?\s*([\d.]+(?:,\d{1,2})?)`)
)

// FeedAdapter reads tenders from an RSS or Atom feed. Each item becomes a
// record; enclosures become attachments.
type FeedAdapter struct {
	name    string
	feedURL string
	opts    Options
	parser  *gofeed.Parser
}

func NewFeedAdapter(name, feedURL string, opts Options) *FeedAdapter {
	parser := gofeed.NewParser()
	parser.Client = opts.httpClient()
	if opts.UserAgent != "" {
		parser.UserAgent = opts.UserAgent
	}
	return &FeedAdapter{name: name, feedURL: feedURL, opts: opts, parser: parser}
}

func (a *FeedAdapter) Name() string { return a.name }

// Collect fetches and parses the feed.
func (a *FeedAdapter) Collect(ctx context.Context) ([]Record, error) {
	feed, err := a.parser.ParseURLWithContext(a.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", a.feedURL, err)
	}

	var records []Record
	for _, item := range feed.Items {
		if r := a.parseItem(item); r != nil {
			records = append(records, *r)
		}
	}
	slog.Info("parsed feed", "platform", a.name, "items", len(feed.Items), "records", len(records))
	return prepare(a.name, records, a.opts.Filter), nil
}

func (a *FeedAdapter) parseItem(item *gofeed.Item) *Record {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if itemURL == "" || title == "" {
		return nil
	}

	description := item.Description
	if item.Content != "" {
		description = item.Content
	}
	text := stripHTML(description)

	r := &Record{
		Title:        title,
		URL:          itemURL,
		PlatformName: a.name,
		CIG:          labelledCIG(title + " " + text),
	}
	if item.PublishedParsed != nil {
		p := item.PublishedParsed.UTC()
		d := time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, time.UTC)
		r.PublicationDate = &d
	}
	if m := deadlinePattern.FindStringSubmatch(text); m != nil {
		r.Deadline = ParseDateTime(normalizeTime(m[1]))
	}
	if m := amountPattern.FindStringSubmatch(text); m != nil {
		r.Amount = ParseAmount(m[1])
	}
	if item.Author != nil {
		r.ContractingAuthority = strPtr(strings.TrimSpace(item.Author.Name))
	}
	for _, enc := range item.Enclosures {
		if enc.URL == "" {
			continue
		}
		r.Attachments = append(r.Attachments, AttachmentRef{
			FileName: path.Base(enc.URL),
			FileURL:  enc.URL,
		})
	}
	return r
}

// labelledCIG looks for a CIG code after a "CIG" label.
func labelledCIG(text string) string {
	upper := strings.ToUpper(text)
	i := strings.Index(upper, "CIG")
	if i < 0 {
		return ""
	}
	return ExtractCIG(upper[i+3:])
}

// normalizeTime turns "31/12/2026 ore 12.00" into "31/12/2026 12:00".
func normalizeTime(s string) string {
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, "ore ", "")), " ")
	if i := strings.LastIndex(s, " "); i > 0 {
		s = s[:i] + " " + strings.ReplaceAll(s[i+1:], ".", ":")
	}
	return s
}

func stripHTML(text string) string {
	if !strings.Contains(text, "<") {
		return strings.Join(strings.Fields(text), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	doc.Find("br, p, li, div").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}
