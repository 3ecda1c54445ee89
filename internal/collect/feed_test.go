package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Bandi di gara</title>
<item>
  <title>Lavori di manutenzione strade comunali</title>
  <link>https://ente.example.it/bandi/1</link>
  <description>&lt;p&gt;CIG: 9A1B2C3D4E&lt;/p&gt;&lt;p&gt;Importo a base d'asta: € 150.000,00&lt;/p&gt;&lt;p&gt;Scadenza: 15/12/2099 ore 12.00&lt;/p&gt;</description>
  <pubDate>Mon, 12 Oct 2026 08:00:00 +0000</pubDate>
  <enclosure url="https://ente.example.it/docs/bando.pdf" length="1000" type="application/pdf"/>
</item>
<item>
  <title>Servizio di pulizia uffici</title>
  <link>https://ente.example.it/bandi/2</link>
  <description>Scadenza 01/01/2020</description>
</item>
<item>
  <title></title>
  <link>https://ente.example.it/bandi/3</link>
</item>
</channel></rss>`

func TestFeedAdapterCollect(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	a := NewFeedAdapter("ente", srv.URL, Options{
		Client:    srv.Client(),
		UserAgent: "tenderwatch-test",
		Filter:    Filter{OnlyOpen: true},
	})
	records, err := a.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tenderwatch-test", gotUA)

	// The expired tender is filtered, the untitled item dropped.
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "Lavori di manutenzione strade comunali", r.Title)
	assert.Equal(t, "ente", r.PlatformName)
	assert.Equal(t, "9A1B2C3D4E", r.CIG)
	assert.Equal(t, "CIG_9A1B2C3D4E", r.Key())
	require.NotNil(t, r.Amount)
	assert.Equal(t, 150000.0, *r.Amount)
	require.NotNil(t, r.Deadline)
	assert.Equal(t, time.Date(2099, 12, 15, 12, 0, 0, 0, time.UTC), *r.Deadline)
	require.NotNil(t, r.PublicationDate)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), *r.PublicationDate)
	assert.Equal(t, CategoryWorks, *r.Category)
	require.Len(t, r.Attachments, 1)
	assert.Equal(t, "bando.pdf", r.Attachments[0].FileName)
}

func TestFeedAdapterFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewFeedAdapter("ente", srv.URL, Options{Client: srv.Client()})
	_, err := a.Collect(context.Background())
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "a b c", stripHTML("<p>a</p><p>b<br>c</p>"))
	assert.Equal(t, "plain text", stripHTML("  plain \n text "))
}

func TestNormalizeTime(t *testing.T) {
	assert.Equal(t, "31/12/2026 12:00", normalizeTime("31/12/2026 ore 12.00"))
	assert.Equal(t, "31/12/2026", normalizeTime("31/12/2026"))
}
