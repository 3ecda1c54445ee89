package retrieve

import "strings"

const (
	CategoryInformative = "Informative"
	CategoryCompilable  = "Compilable"
)

// Classifier labels a document as Informative or Compilable by counting
// keyword hits in its file name.
type Classifier struct {
	compilable  []string
	informative []string
}

func NewClassifier(compilable, informative []string) *Classifier {
	return &Classifier{compilable: lower(compilable), informative: lower(informative)}
}

// Classify returns the category and a confidence in [0.5, 0.9]. Ties,
// including no hits at all, are Informative with 0.5.
func (c *Classifier) Classify(fileName string) (string, float64) {
	name := strings.ToLower(fileName)
	compilable := hits(name, c.compilable)
	informative := hits(name, c.informative)

	switch {
	case compilable > informative:
		return CategoryCompilable, confidence(compilable)
	case informative > compilable:
		return CategoryInformative, confidence(informative)
	default:
		return CategoryInformative, 0.5
	}
}

func confidence(n int) float64 {
	return min(0.9, 0.5+float64(n)*0.2)
}

func hits(s string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			n++
		}
	}
	return n
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
