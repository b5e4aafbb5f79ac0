package filter

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"adminkit/internal/store"
)

// Model names a table whose rows populate a model filter.
type Model struct {
	Table      string
	PrimaryKey string
}

// AddModelFilter adds a multi-select filter whose choices are every row of
// model keyed by primary key and labelled by displayColumn. Options:
// WithLabel, WithColumn.
func (l *List) AddModelFilter(s *store.Store, model Model, displayColumn, name string, opts ...Option) {
	opts = append(opts, Multiple(), WithSelectValue(nil))
	l.AddAdvancedSelect2Filter(name, modelOptions(s, model, displayColumn), opts...)
}

func modelOptions(s *store.Store, model Model, displayColumn string) OptionsFunc {
	pk := model.PrimaryKey
	if pk == "" {
		pk = "id"
	}
	return func(ctx context.Context) (map[string]string, error) {
		sqlStr := fmt.Sprintf("SELECT %s AS pk, %s AS display FROM %s", pk, displayColumn, model.Table)
		rows, err := store.QueryRows(ctx, s.DB, sqlStr)
		if err != nil {
			return nil, fmt.Errorf("load %s options: %w", model.Table, err)
		}
		options := make(map[string]string, len(rows))
		for _, row := range rows {
			options[cast.ToString(row["pk"])] = cast.ToString(row["display"])
		}
		return options, nil
	}
}
