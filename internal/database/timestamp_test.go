package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullTimeScan(t *testing.T) {
	tests := []struct {
		name  string
		src   any
		want  time.Time
		valid bool
	}{
		{"nil", nil, time.Time{}, false},
		{"empty", "", time.Time{}, false},
		{"datetime", "2026-03-19 14:30:00", time.Date(2026, 3, 19, 14, 30, 0, 0, time.UTC), true},
		{"date", []byte("2026-03-19"), time.Date(2026, 3, 19, 0, 0, 0, 0, time.UTC), true},
		{"rfc3339", "2026-03-19T14:30:00+01:00", time.Date(2026, 3, 19, 13, 30, 0, 0, time.UTC), true},
		{"time", time.Date(2026, 3, 19, 1, 0, 0, 0, time.UTC), time.Date(2026, 3, 19, 1, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n NullTime
			require.NoError(t, n.Scan(tt.src))
			assert.Equal(t, tt.valid, n.Valid)
			if tt.valid {
				assert.True(t, tt.want.Equal(n.Time), "got %v", n.Time)
			}
		})
	}

	var n NullTime
	assert.Error(t, n.Scan(42))
	assert.Error(t, n.Scan("19/03/2026"))
}

func TestNullTimeValue(t *testing.T) {
	v, err := NullTime{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = NewNullTime(date(2026, 3, 19)).Value()
	require.NoError(t, err)
	assert.Equal(t, "2026-03-19 00:00:00", v)
}

func TestNullTimeSameDay(t *testing.T) {
	stored := NewNullTime(date(2026, 3, 19))
	evening := time.Date(2026, 3, 19, 23, 59, 0, 0, time.UTC)
	assert.True(t, stored.SameDay(&evening))
	assert.False(t, stored.SameDay(date(2026, 3, 20)))
	assert.False(t, stored.SameDay(nil))
	assert.True(t, NullTime{}.SameDay(nil))
	assert.False(t, NullTime{}.SameDay(&evening))
}

func TestNullTimeString(t *testing.T) {
	assert.Equal(t, "", NullTime{}.String())
	assert.Equal(t, "2026-03-19", NewNullTime(date(2026, 3, 19)).String())
	ts := time.Date(2026, 3, 19, 12, 5, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-19 12:05:00", NewNullTime(&ts).String())
}

func TestStringList(t *testing.T) {
	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var l StringList
	require.NoError(t, l.Scan(`["a.pdf","b.pdf"]`))
	assert.Equal(t, StringList{"a.pdf", "b.pdf"}, l)
	require.NoError(t, l.Scan(nil))
	assert.Nil(t, l)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("Closed")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, s)
	_, err = ParseStatus("closed")
	assert.Error(t, err)

	assert.Equal(t, StatusUpdated, StatusActive.afterChange())
	assert.Equal(t, StatusUpdated, StatusUpdated.afterChange())
	assert.Equal(t, StatusClosed, StatusClosed.afterChange())
}
