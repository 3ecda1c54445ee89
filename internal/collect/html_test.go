package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/tenderwatch/internal/config"
)

const testListing = `<html><body>
<table class="bandi"><tbody>
<tr>
  <td class="oggetto"><a href="/bandi/10">Fornitura di arredi scolastici</a></td>
  <td class="cig">CIG 1234567890</td>
  <td class="importo">€ 25.000,50</td>
  <td class="scadenza">31/12/2099 12:00</td>
  <td class="procedura">Procedura aperta</td>
  <td class="allegati"><a href="/docs/disciplinare.pdf">disciplinare.pdf</a> <a href="modulo.docx">Modulo</a></td>
</tr>
<tr><td class="oggetto">Senza collegamento</td></tr>
</tbody></table>
</body></html>`

func TestHTMLAdapterCollect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(testListing))
	}))
	defer srv.Close()

	sel := config.Selectors{
		Item:          "table.bandi tbody tr",
		Title:         "td.oggetto",
		Link:          "td.oggetto a",
		CIG:           "td.cig",
		Amount:        "td.importo",
		Deadline:      "td.scadenza",
		ProcedureType: "td.procedura",
		Attachments:   "td.allegati a",
	}
	a := NewHTMLAdapter("comune", srv.URL+"/bandi-di-gara/", sel, Options{Client: srv.Client()})
	records, err := a.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "Fornitura di arredi scolastici", r.Title)
	assert.Equal(t, srv.URL+"/bandi/10", r.URL)
	assert.Equal(t, "1234567890", r.CIG)
	assert.Equal(t, 25000.5, *r.Amount)
	assert.Equal(t, time.Date(2099, 12, 31, 12, 0, 0, 0, time.UTC), *r.Deadline)
	assert.Equal(t, "Procedura aperta", *r.ProcedureType)
	assert.Nil(t, r.ContractingAuthority)
	assert.Equal(t, CategorySupplies, *r.Category)

	require.Len(t, r.Attachments, 2)
	assert.Equal(t, AttachmentRef{FileName: "disciplinare.pdf", FileURL: srv.URL + "/docs/disciplinare.pdf"}, r.Attachments[0])
	assert.Equal(t, AttachmentRef{FileName: "modulo.docx", FileURL: srv.URL + "/bandi-di-gara/modulo.docx"}, r.Attachments[1])
}

func TestHTMLAdapterHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewHTMLAdapter("comune", srv.URL, config.Selectors{Item: "tr"}, Options{Client: srv.Client()})
	_, err := a.Collect(context.Background())
	assert.ErrorContains(t, err, "HTTP 503")
}
