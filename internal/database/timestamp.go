package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timestamps are stored as UTC text so that ordering and range filters work
// lexicographically on every backend.
const (
	timeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

var parseLayouts = []string{
	timeLayout,
	dateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// NullTime is a nullable timestamp column.
type NullTime struct {
	Time  time.Time
	Valid bool
}

// NewNullTime wraps t; a nil t yields an invalid NullTime.
func NewNullTime(t *time.Time) NullTime {
	if t == nil {
		return NullTime{}
	}
	return NullTime{Time: t.UTC(), Valid: true}
}

// Scan implements sql.Scanner.
func (n *NullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = NullTime{}
		return nil
	case time.Time:
		*n = NullTime{Time: v.UTC(), Valid: true}
		return nil
	case string:
		return n.scanString(v)
	case []byte:
		return n.scanString(string(v))
	}
	return fmt.Errorf("cannot scan %T into NullTime", src)
}

func (n *NullTime) scanString(s string) error {
	if s == "" {
		*n = NullTime{}
		return nil
	}
	t, err := parseTime(s)
	if err != nil {
		return err
	}
	*n = NullTime{Time: t, Valid: true}
	return nil
}

// Value implements driver.Valuer.
func (n NullTime) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return formatTime(n.Time), nil
}

// SameDay reports whether n and t fall on the same calendar day. Two
// missing values compare equal.
func (n NullTime) SameDay(t *time.Time) bool {
	if !n.Valid || t == nil {
		return !n.Valid && t == nil
	}
	y1, m1, d1 := n.Time.UTC().Date()
	y2, m2, d2 := t.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// String renders the timestamp, or an empty string when missing.
func (n NullTime) String() string {
	if !n.Valid {
		return ""
	}
	if n.Time.Hour() == 0 && n.Time.Minute() == 0 && n.Time.Second() == 0 {
		return n.Time.Format(dateLayout)
	}
	return n.Time.Format(timeLayout)
}

// MarshalJSON renders null or the formatted timestamp.
func (n NullTime) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(formatTime(n.Time))
}

// StringList is a list of strings stored as a JSON array.
type StringList []string

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
