package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlRecords = `
- title: Servizio di trasporto scolastico
  url: https://ente.example.it/bandi/7
  cig: Z1A2B3C4D5
  amount: 120000
  deadline: 2099-06-30T12:00:00Z
  procedure_type: Procedura aperta
  attachments:
    - file_name: capitolato.pdf
      file_url: https://ente.example.it/docs/capitolato.pdf
      category: Informative
      classification_confidence: 0.9
- title: Affidamento diretto cancelleria
  url: https://ente.example.it/bandi/8
  procedure_type: Affidamento diretto
- title: Record senza url
`

const jsonRecords = `{"records": [
  {"title": "Fornitura farmaci", "url": "https://ente.example.it/bandi/9", "platform_name": "altro",
   "deadline": "2099-01-31T00:00:00Z", "email": "rup@ente.example.it"}
]}`

func TestFileAdapterYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlRecords), 0o644))

	a := NewFileAdapter("static", path, "", Options{Filter: Filter{ExcludeTypes: []string{"affidamento diretto"}}})
	records, err := a.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "CIG_Z1A2B3C4D5", r.Key())
	assert.Equal(t, "static", r.PlatformName)
	assert.Equal(t, 120000.0, *r.Amount)
	assert.Equal(t, time.Date(2099, 6, 30, 12, 0, 0, 0, time.UTC), r.Deadline.UTC())
	assert.Equal(t, CategoryServices, *r.Category)
	require.Len(t, r.Attachments, 1)
	assert.Equal(t, "Informative", *r.Attachments[0].Category)
}

func TestFileAdapterJSONOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(jsonRecords))
	}))
	defer srv.Close()

	a := NewFileAdapter("remote", "", srv.URL+"/export", Options{Client: srv.Client()})
	records, err := a.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "altro", records[0].PlatformName, "record platform is kept")
	assert.Equal(t, CategorySupplies, *records[0].Category)
	assert.Equal(t, "rup@ente.example.it", *records[0].Email)
}

func TestFileAdapterErrors(t *testing.T) {
	a := NewFileAdapter("static", filepath.Join(t.TempDir(), "missing.json"), "", Options{})
	_, err := a.Collect(context.Background())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"title": 1}`), 0o644))
	a = NewFileAdapter("static", path, "", Options{})
	_, err = a.Collect(context.Background())
	assert.Error(t, err)
}

func TestDecodeRecordsEmpty(t *testing.T) {
	recs, err := decodeRecords([]byte("  \n"), false)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
