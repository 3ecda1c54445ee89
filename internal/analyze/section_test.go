package analyze

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("riga %02d del documento di gara", i)
	}
	return lines
}

func TestLocateSectionWindow(t *testing.T) {
	lines := numberedLines(30)
	lines[15] = "Requisiti di partecipazione: iscrizione alla CCIAA"
	text := strings.Join(lines, "\n")

	got := LocateSection(text, []string{"requisiti"}, 5)
	assert.Equal(t, strings.Join(lines[10:21], "\n"), got)
}

func TestLocateSectionDeduplicatesBlocks(t *testing.T) {
	lines := []string{
		"requisiti generali previsti dalla normativa vigente in materia di appalti pubblici",
		"requisiti speciali di capacità economica e finanziaria dell'operatore economico",
		"requisiti tecnici e professionali documentati tramite elenco dei servizi analoghi",
	}
	got := LocateSection(strings.Join(lines, "\n"), []string{"requisiti"}, 5)
	assert.Equal(t, strings.Join(lines, "\n"), got, "identical blocks appear once")
}

func TestLocateSectionOneBlockPerLine(t *testing.T) {
	lines := numberedLines(12)
	lines[6] = "criteri di valutazione e punteggio dell'offerta tecnica"
	got := LocateSection(strings.Join(lines, "\n"), []string{"criteri", "punteggio", "offerta"}, 1)
	// Three keywords on one line add a single block.
	want := strings.Join(lines[5:8], "\n")
	if len([]rune(want)) > minSectionLength {
		assert.Equal(t, want, got)
	} else {
		assert.Empty(t, got)
	}
}

func TestLocateSectionShortResultDiscarded(t *testing.T) {
	assert.Empty(t, LocateSection("requisiti: nessuno", []string{"requisiti"}, 5))
	assert.Empty(t, LocateSection(strings.Join(numberedLines(40), "\n"), []string{"requisiti"}, 5))
	assert.Empty(t, LocateSection("", []string{"requisiti"}, 5))
}

func TestLocateSectionCollapsesBlankLines(t *testing.T) {
	text := "durata del contratto pari a ventiquattro mesi decorrenti dalla stipula\n\n\n\n" +
		"   \n\nconsegna presso la sede dell'ente entro trenta giorni dall'ordine di fornitura"
	got := LocateSection(text, []string{"durata"}, 10)
	require.NotEmpty(t, got)
	assert.NotContains(t, got, "\n\n\n")
	assert.Contains(t, got, "mesi decorrenti dalla stipula\n\nconsegna")
}

func TestLocateSectionTruncates(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, fmt.Sprintf("termine %03d %s", i, strings.Repeat("x", 60)))
	}
	got := LocateSection(strings.Join(lines, "\n"), []string{"termine"}, 0)
	assert.Equal(t, maxSectionLength+3, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestLocateSectionCaseInsensitive(t *testing.T) {
	lines := numberedLines(11)
	lines[5] = "CERTIFICAZIONE ISO 9001 OBBLIGATORIA"
	got := LocateSection(strings.Join(lines, "\n"), []string{"Certificazione"}, 5)
	assert.Contains(t, got, "CERTIFICAZIONE ISO 9001")
}

func TestKeywordStrategyLocate(t *testing.T) {
	lines := numberedLines(40)
	lines[5] = "Requisiti di ordine generale"
	lines[30] = "Durata del servizio: 36 mesi"
	s := DefaultStrategy().Locate(strings.Join(lines, "\n"))

	assert.Contains(t, s.Qualifications, "requisiti di ordine generale")
	assert.Contains(t, s.Delivery, "durata del servizio: 36 mesi")
	assert.Empty(t, s.Evaluation)
	assert.Empty(t, s.Process)
	assert.Equal(t, 2, s.Found())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab...", truncate("abc", 2))
	assert.Equal(t, "qu...", truncate("qualità", 2))
}
