package collect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/tenderwatch/internal/config"
)

type stubAdapter struct{ name string }

func (s stubAdapter) Name() string                              { return s.name }
func (s stubAdapter) Collect(context.Context) ([]Record, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(stubAdapter{"toscana"})
	reg.Register(stubAdapter{"aria"})

	assert.Equal(t, []string{"aria", "toscana"}, reg.Names())
	a, err := reg.Get("aria")
	require.NoError(t, err)
	assert.Equal(t, "aria", a.Name())

	_, err = reg.Get("mef")
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestNewRegistryFromConfig(t *testing.T) {
	disabled := false
	cfg := &config.Config{Platforms: []config.Platform{
		{Name: "feed", Kind: "feed", URL: "https://ex/rss"},
		{Name: "file", Kind: "file", File: "records.yaml"},
		{Name: "html", Kind: "html", URL: "https://ex/", Enabled: &disabled,
			Selectors: config.Selectors{Item: "tr", Title: "td"}},
	}}

	reg, err := NewRegistryFromConfig(cfg, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"feed", "file"}, reg.Names())

	reg, err = NewRegistryFromConfig(cfg, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"feed", "file", "html"}, reg.Names())
}

func TestAdapterFor(t *testing.T) {
	disabled := false
	cfg := &config.Config{Platforms: []config.Platform{
		{Name: "feed", Kind: "feed", URL: "https://ex/rss", Enabled: &disabled},
		{Name: "broken", Kind: "ftp"},
	}}

	a, err := AdapterFor(cfg, "feed")
	require.NoError(t, err)
	assert.Equal(t, "feed", a.Name(), "disabled platforms can still be run by name")

	_, err = AdapterFor(cfg, "toscana")
	assert.ErrorIs(t, err, ErrUnknownPlatform)
	_, err = AdapterFor(cfg, "broken")
	assert.Error(t, err)
}

func TestNewAdapterRejectsIncompletePlatforms(t *testing.T) {
	_, err := NewAdapter(config.Platform{Name: "h", Kind: "html", URL: "https://ex/"}, Options{})
	assert.Error(t, err)
	_, err = NewAdapter(config.Platform{Name: "f", Kind: "file"}, Options{})
	assert.Error(t, err)
	_, err = NewAdapter(config.Platform{Name: "x", Kind: "ftp"}, Options{})
	assert.Error(t, err)
}

func TestPrepare(t *testing.T) {
	records := []Record{
		{Title: "Servizio mensa", URL: "https://ex/1"},
		{Title: "", URL: "https://ex/2"},
		{Title: "Affidamento pulizie", URL: "https://ex/3", ProcedureType: ptr("Affidamento diretto")},
		{Title: "Lavori scuola", URL: "https://ex/4", Category: ptr(CategorySupplies)},
	}
	out := prepare("p", records, Filter{ExcludeTypes: []string{"affidamento diretto"}})

	require.Len(t, out, 2)
	assert.Equal(t, "p", out[0].PlatformName)
	assert.Equal(t, CategoryServices, *out[0].Category)
	assert.Equal(t, CategorySupplies, *out[1].Category, "adapter-supplied category wins")
}
