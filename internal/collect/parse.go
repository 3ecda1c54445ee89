package collect

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Italian portals publish naive local timestamps; they are kept as wall
// clock values in UTC so calendar days survive storage unchanged.

var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02/01/2006 15:04",
	"02-01-2006 15:04",
	"2006-01-02",
	"02/01/06",
}

var dateTimeLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var cigPattern = regexp.MustCompile(`\b([A-Z0-9]{10})\b`)

// ParseAmount converts an Italian currency string such as "€ 1.500.000,00"
// to a float. It returns nil when the text is empty or not a number.
func ParseAmount(s string) *float64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '€' || r == '.' || isSpace(r) {
			return -1
		}
		return r
	}, s)
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		slog.Warn("could not parse amount", "value", s)
		return nil
	}
	return &v
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', '\u00a0':
		return true
	}
	return false
}

// ParseDate parses a date in one of the formats used by Italian portals.
// Any time of day is dropped.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	slog.Warn("could not parse date", "value", s)
	return nil
}

// ParseDateTime parses a timestamp, falling back to ParseDate (midnight).
func ParseDateTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return ParseDate(s)
}

// ExtractCIG returns the first ten-character alphanumeric token in text,
// uppercased, or "".
func ExtractCIG(text string) string {
	if m := cigPattern.FindStringSubmatch(strings.ToUpper(text)); m != nil {
		return m[1]
	}
	return ""
}

var (
	worksKeywords = []string{"lavori", "costruzione", "ristrutturazione", "manutenzione", "edificio",
		"infrastruttura", "strade", "edile", "impianto"}
	suppliesKeywords = []string{"fornitura", "forniture", "acquisto", "materiali", "attrezzature",
		"dispositivi", "apparecchiature", "beni", "prodotti", "medicazioni", "farmaci", "arredi", "ausili"}
)

const (
	CategoryWorks    = "Works"
	CategorySupplies = "Supplies"
	CategoryServices = "Services"
)

// InferCategory guesses Works, Supplies or Services from a tender's text.
func InferCategory(text string) string {
	lower := strings.ToLower(text)
	if containsAny(lower, worksKeywords) {
		return CategoryWorks
	}
	if containsAny(lower, suppliesKeywords) {
		return CategorySupplies
	}
	return CategoryServices
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Filter drops records that should not be ingested.
type Filter struct {
	ExcludeTypes []string
	OnlyOpen     bool
	Now          func() time.Time
}

// Exclude reports whether r should be dropped, with the reason.
func (f Filter) Exclude(r *Record) (bool, string) {
	if r.ProcedureType != nil {
		procedure := strings.ToLower(*r.ProcedureType)
		for _, t := range f.ExcludeTypes {
			if t != "" && strings.Contains(procedure, strings.ToLower(t)) {
				return true, fmt.Sprintf("procedure type %q matches %q", procedure, t)
			}
		}
	}

	if f.OnlyOpen && r.Deadline != nil {
		now := time.Now().UTC()
		if f.Now != nil {
			now = f.Now()
		}
		d := *r.Deadline
		if d.Before(now) {
			// A date-only deadline of today is still open.
			sameDay := d.Year() == now.Year() && d.YearDay() == now.YearDay()
			if !(sameDay && d.Hour() == 0 && d.Minute() == 0) {
				return true, fmt.Sprintf("deadline %s passed", d.Format("2006-01-02 15:04"))
			}
		}
	}
	return false, ""
}
