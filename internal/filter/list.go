// Package filter registers admin list filters and turns submitted filter
// values into query constraints. Malformed values never fail a request: a
// filter that cannot decode its input adds no constraint.
package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var ErrUnknownFilter = errors.New("unknown filter")

type Type string

const (
	TypeSimple          Type = "simple"
	TypeText            Type = "text"
	TypeSelect2         Type = "select2"
	TypeSelect2Multiple Type = "select2_multiple"
	TypeDateRange       Type = "date_range"
)

// Descriptor is what the list view renders for a filter.
type Descriptor struct {
	Type    Type           `json:"type"`
	Name    string         `json:"name"`
	Label   string         `json:"label"`
	Options map[string]any `json:"options,omitempty"`
}

// OptionsFunc returns the choices for a select-style filter keyed by value.
type OptionsFunc func(ctx context.Context) (map[string]string, error)

// ApplyFunc receives the raw submitted value and constrains q.
type ApplyFunc func(q *Query, raw string)

type registered struct {
	desc    Descriptor
	options OptionsFunc
	apply   ApplyFunc
}

// List holds a query and the filters registered against it.
type List struct {
	query   *Query
	loc     *time.Location
	filters []registered
	byName  map[string]int
}

// NewList creates a list over q. Date filters resolve days in loc; nil means UTC.
func NewList(q *Query, loc *time.Location) *List {
	if loc == nil {
		loc = time.UTC
	}
	return &List{query: q, loc: loc, byName: map[string]int{}}
}

func (l *List) Query() *Query {
	return l.query
}

// AddFilter registers a filter. Registering a name twice replaces the earlier
// filter.
func (l *List) AddFilter(desc Descriptor, options OptionsFunc, apply ApplyFunc) {
	r := registered{desc: desc, options: options, apply: apply}
	if i, ok := l.byName[desc.Name]; ok {
		l.filters[i] = r
		return
	}
	l.byName[desc.Name] = len(l.filters)
	l.filters = append(l.filters, r)
}

// Descriptors returns the registered filters in registration order.
func (l *List) Descriptors() []Descriptor {
	out := make([]Descriptor, len(l.filters))
	for i, r := range l.filters {
		out[i] = r.desc
	}
	return out
}

// Apply runs every filter that has a non-empty submitted value.
func (l *List) Apply(values map[string]string) {
	for _, r := range l.filters {
		raw, ok := values[r.desc.Name]
		if !ok || raw == "" || r.apply == nil {
			continue
		}
		r.apply(l.query, raw)
	}
}

// Options returns the choices for the named filter, or nil when it has no
// options provider.
func (l *List) Options(ctx context.Context, name string) (map[string]string, error) {
	i, ok := l.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}
	if l.filters[i].options == nil {
		return nil, nil
	}
	return l.filters[i].options(ctx)
}

// ValuesFromQuery extracts filter[name]=raw pairs from request query
// parameters.
func ValuesFromQuery(queries map[string]string) map[string]string {
	values := map[string]string{}
	for key, val := range queries {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		values[key[7:len(key)-1]] = val
	}
	return values
}

// defaultLabel upper-cases the first letter of name.
func defaultLabel(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

type settings struct {
	label       string
	column      string
	operator    string
	multiple    bool
	exclude     bool
	unix        bool
	millis      bool
	textValue   TextValueFunc
	selectValue SelectValueFunc
}

// Option customizes a filter helper.
type Option func(*settings)

func WithLabel(label string) Option {
	return func(s *settings) { s.label = label }
}

func WithColumn(column string) Option {
	return func(s *settings) { s.column = column }
}

func WithOperator(op string) Option {
	return func(s *settings) { s.operator = op }
}

// Multiple renders a select2 filter as multi-select.
func Multiple() Option {
	return func(s *settings) { s.multiple = true }
}

// Exclude makes a select2 or names filter drop the chosen values (NOT IN)
// instead of keeping only them.
func Exclude() Option {
	return func(s *settings) { s.exclude = true }
}

// WithTextValue transforms a text filter value before the emptiness check.
func WithTextValue(fn TextValueFunc) Option {
	return func(s *settings) { s.textValue = fn }
}

// WithSelectValue transforms the decoded select2 ids before WHERE IN.
func WithSelectValue(fn SelectValueFunc) Option {
	return func(s *settings) { s.selectValue = fn }
}

// Milliseconds multiplies unix timestamps from a date range filter by 1000.
func Milliseconds() Option {
	return func(s *settings) { s.millis = true }
}

// DateTimeValues makes a date range filter compare against formatted
// datetimes instead of unix timestamps.
func DateTimeValues() Option {
	return func(s *settings) { s.unix = false }
}

func newSettings(name string, opts []Option) settings {
	s := settings{operator: "=", unix: true}
	for _, o := range opts {
		o(&s)
	}
	if s.label == "" {
		s.label = defaultLabel(name)
	}
	if s.column == "" {
		s.column = name
	}
	s.operator = strings.TrimSpace(s.operator)
	return s
}
