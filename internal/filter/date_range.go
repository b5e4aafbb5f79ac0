package filter

import (
	"encoding/json"
	"strings"
	"time"
)

// DateRangeOptions returns the picker settings sent with a date range
// descriptor. Each call returns a new map.
func DateRangeOptions() map[string]any {
	return map[string]any{
		"timePicker":       true,
		"timePicker24Hour": true,
		"showDropdowns":    true,
		"locale":           map[string]any{"format": "DD/MM/YYYY HH:mm"},
	}
}

var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	"2006-01-02T15:04",
	time.RFC3339,
	"02/01/2006 15:04",
	"02/01/2006",
}

// AddDateRangeFilter adds a {from, to} filter. from is widened to the start of
// its day and to the end of its day, in the list's location. Values are unix
// seconds by default; DateTimeValues compares UTC datetimes, matching how the
// system tables store timestamps. Options: WithLabel, WithColumn, Milliseconds,
// DateTimeValues.
func (l *List) AddDateRangeFilter(name string, opts ...Option) {
	s := newSettings(name, opts)
	loc := l.loc
	l.AddFilter(Descriptor{Type: TypeDateRange, Name: name, Label: s.label, Options: DateRangeOptions()}, nil,
		func(q *Query, raw string) {
			var dates struct {
				From string `json:"from"`
				To   string `json:"to"`
			}
			if err := json.Unmarshal([]byte(raw), &dates); err != nil {
				return
			}
			from, ok := parseDate(dates.From, loc)
			if !ok {
				return
			}
			to, ok := parseDate(dates.To, loc)
			if !ok {
				return
			}
			from = startOfDay(from)
			to = endOfDay(to)

			q.Where(s.column, ">=", dateValue(from, s))
			q.Where(s.column, "<=", dateValue(to, s))
		})
}

func dateValue(t time.Time, s settings) any {
	if !s.unix {
		return t.UTC().Format(time.DateTime)
	}
	if s.millis {
		return t.Unix() * 1000
	}
	return t.Unix()
}

func parseDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999999, t.Location())
}
