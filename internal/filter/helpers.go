package filter

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// TextValueFunc transforms a submitted text value. A result that is empty
// ("" , 0, "0", nil, false) adds no constraint.
type TextValueFunc func(value any, column string) any

// SelectValueFunc transforms the integer ids decoded from a select2 filter.
// raw holds the decoded array before empty elements were dropped.
type SelectValueFunc func(ids []any, column string, raw []any) []any

// AddSoftDeleteFilter adds a "trashed" toggle that limits the list to
// soft-deleted rows.
func (l *List) AddSoftDeleteFilter() {
	l.AddFilter(Descriptor{Type: TypeSimple, Name: "trashed", Label: "Trashed"}, nil,
		func(q *Query, _ string) {
			q.OnlyTrashed()
		})
}

// AddAdvancedSelect2Filter adds a select2 filter whose submitted value is a
// JSON array of ids. Options: WithLabel, WithColumn, Multiple, WithSelectValue,
// Exclude.
func (l *List) AddAdvancedSelect2Filter(name string, options OptionsFunc, opts ...Option) {
	s := newSettings(name, opts)
	typ := TypeSelect2
	if s.multiple {
		typ = TypeSelect2Multiple
	}
	l.AddFilter(Descriptor{Type: typ, Name: name, Label: s.label}, options,
		func(q *Query, raw string) {
			ids, decoded := decodeIDs(raw)
			if len(ids) == 0 {
				return
			}
			if s.selectValue != nil {
				ids = s.selectValue(ids, s.column, decoded)
			}
			s.whereIn(q, ids)
		})
}

// AddNamesFilter adds a multi-select filter over a string column. The
// submitted value is a JSON array of names; blank entries are skipped.
// Options: WithLabel, WithColumn, Exclude.
func (l *List) AddNamesFilter(name string, options OptionsFunc, opts ...Option) {
	s := newSettings(name, opts)
	l.AddFilter(Descriptor{Type: TypeSelect2Multiple, Name: name, Label: s.label}, options,
		func(q *Query, raw string) {
			var decoded []any
			if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
				return
			}
			var names []any
			for _, v := range decoded {
				n := strings.TrimSpace(cast.ToString(v))
				if n == "" {
					continue
				}
				names = append(names, n)
			}
			if len(names) == 0 {
				return
			}
			s.whereIn(q, names)
		})
}

func (s settings) whereIn(q *Query, values []any) {
	if s.exclude {
		q.WhereNotIn(s.column, values)
		return
	}
	q.WhereIn(s.column, values)
}

// AddTextFilter adds a free-text filter comparing column with the submitted
// value. Options: WithLabel, WithColumn, WithOperator, WithTextValue.
func (l *List) AddTextFilter(name string, opts ...Option) {
	s := newSettings(name, opts)
	l.AddFilter(Descriptor{Type: TypeText, Name: name, Label: s.label}, nil,
		func(q *Query, raw string) {
			var value any = raw
			if s.textValue != nil {
				value = s.textValue(value, s.column)
			}
			if isEmpty(value) {
				return
			}
			q.Where(s.column, s.operator, value)
		})
}

// AddStartsWithFilter matches rows whose column starts with the value.
func (l *List) AddStartsWithFilter(name string, opts ...Option) {
	opts = append(opts, WithOperator("LIKE"), WithTextValue(func(value any, _ string) any {
		return cast.ToString(value) + "%"
	}))
	l.AddTextFilter(name, opts...)
}

// AddIntegerFilter matches column against the value cast to an integer.
// Zero and non-numeric input add no constraint.
func (l *List) AddIntegerFilter(name string, opts ...Option) {
	opts = append(opts, WithTextValue(func(value any, _ string) any {
		return cast.ToInt(value)
	}))
	l.AddTextFilter(name, opts...)
}

// decodeIDs decodes a JSON array and casts each non-empty element to int.
func decodeIDs(raw string) ([]any, []any) {
	var decoded []any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil || len(decoded) == 0 {
		return nil, nil
	}
	var ids []any
	for _, v := range decoded {
		if isEmpty(v) {
			continue
		}
		ids = append(ids, cast.ToInt(v))
	}
	return ids, decoded
}

// isEmpty follows the loose emptiness used by admin filters: zero values,
// "0", and empty collections are empty.
func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == "" || val == "0"
	case bool:
		return !val
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.IsZero()
	}
	return false
}
