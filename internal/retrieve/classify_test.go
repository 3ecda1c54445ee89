package retrieve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(
		[]string{"Modulo", "offerta", "dichiarazione", "dgue"},
		[]string{"bando", "disciplinare", "capitolato"},
	)

	tests := []struct {
		file     string
		category string
		conf     float64
	}{
		{"Bando di gara.pdf", CategoryInformative, 0.7},
		{"MODULO_offerta_economica.docx", CategoryCompilable, 0.9},
		{"modulo-dichiarazione-dgue.doc", CategoryCompilable, 0.9},
		{"disciplinare_capitolato.pdf", CategoryInformative, 0.9},
		{"modulo_bando.pdf", CategoryInformative, 0.5},
		{"planimetria.pdf", CategoryInformative, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			category, conf := c.Classify(tt.file)
			assert.Equal(t, tt.category, category)
			assert.InDelta(t, tt.conf, conf, 1e-9)
		})
	}
}
