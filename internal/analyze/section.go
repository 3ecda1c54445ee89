package analyze

import (
	"regexp"
	"strings"
)

const (
	defaultWindow    = 5
	maxSectionLength = 2000
	minSectionLength = 100
)

var blankRuns = regexp.MustCompile(`\n\s*\n\s*\n+`)

// Sections are the clause excerpts located in one document. Empty means
// not found.
type Sections struct {
	Qualifications string
	Evaluation     string
	Process        string
	Delivery       string
}

// Found returns how many sections are non-empty.
func (s Sections) Found() int {
	n := 0
	for _, v := range []string{s.Qualifications, s.Evaluation, s.Process, s.Delivery} {
		if v != "" {
			n++
		}
	}
	return n
}

// SectionStrategy locates clause sections in document text.
type SectionStrategy interface {
	Locate(text string) Sections
}

// KeywordStrategy windows the lines around Italian procurement keywords.
type KeywordStrategy struct {
	Qualifications []string
	Evaluation     []string
	Process        []string
	Delivery       []string
	Window         int
}

// DefaultStrategy returns the keyword sets for Italian tender documents.
func DefaultStrategy() *KeywordStrategy {
	return &KeywordStrategy{
		Qualifications: []string{
			"requisiti", "qualificazioni", "qualifica", "qualifiche",
			"certificazioni", "certificazione", "attestati", "attestato",
			"iscrizione", "iscrizioni", "albo", "qualità", "norme iso",
			"certificato", "patente", "licenza", "abilitazione",
		},
		Evaluation: []string{
			"valutazione", "criteri", "criterio", "punteggio", "punti",
			"offerta", "valutativo", "aggiudicazione", "priorità",
			"soglia", "minimo", "massimo", "qualitativo", "quantitativo",
			"sorteggio", "selezione",
		},
		Process: []string{
			"procedimento", "procedura", "processo", "fasi", "fase",
			"modalità", "fase di valutazione", "commissione", "commissario",
			"responsabile", "svolgimento", "calendario", "cronoprogramma",
		},
		Delivery: []string{
			"consegna", "consegne", "tempi di consegna", "durata", "termine",
			"scadenza", "esecuzione", "realizzazione", "deliverable",
			"luogo di consegna", "sede di esecuzione", "cantiere",
		},
		Window: defaultWindow,
	}
}

// Locate searches the lowercased text; excerpts are returned lowercased.
func (k *KeywordStrategy) Locate(text string) Sections {
	lower := strings.ToLower(text)
	return Sections{
		Qualifications: LocateSection(lower, k.Qualifications, k.Window),
		Evaluation:     LocateSection(lower, k.Evaluation, k.Window),
		Process:        LocateSection(lower, k.Process, k.Window),
		Delivery:       LocateSection(lower, k.Delivery, k.Window),
	}
}

// LocateSection collects, for every line containing one of keywords, the
// block of lines from window before to window after it. Unique blocks are
// joined in first-seen order, runs of blank lines collapsed and the result
// capped at 2000 characters. Results of 100 characters or fewer are
// discarded. Matching is case-insensitive.
func LocateSection(text string, keywords []string, window int) string {
	if window < 0 {
		window = defaultWindow
	}
	lines := strings.Split(text, "\n")

	var blocks []string
	seen := make(map[string]bool)
	for i, line := range lines {
		line = strings.ToLower(line)
		for _, kw := range keywords {
			if kw == "" || !strings.Contains(line, strings.ToLower(kw)) {
				continue
			}
			start := max(0, i-window)
			end := min(len(lines), i+window+1)
			block := strings.Join(lines[start:end], "\n")
			if !seen[block] {
				seen[block] = true
				blocks = append(blocks, block)
			}
			break
		}
	}
	if len(blocks) == 0 {
		return ""
	}

	combined := strings.Join(blocks, "\n\n")
	combined = blankRuns.ReplaceAllString(combined, "\n\n")
	combined = strings.TrimSpace(combined)
	combined = truncate(combined, maxSectionLength)
	if len([]rune(combined)) <= minSectionLength {
		return ""
	}
	return combined
}

// truncate caps s at n characters, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
