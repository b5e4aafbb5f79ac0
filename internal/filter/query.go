package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"adminkit/internal/store"
)

// Clause is a single WHERE constraint. Operators "IN" and "NOT IN" carry a
// []any value.
type Clause struct {
	Column   string
	Operator string
	Value    any
}

// String renders the clause with literal values, e.g. name LIKE 'foo%'.
func (c Clause) String() string {
	if c.Operator == "IN" || c.Operator == "NOT IN" {
		values, _ := c.Value.([]any)
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = literal(v)
		}
		return fmt.Sprintf("%s %s (%s)", c.Column, c.Operator, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s %s %s", c.Column, c.Operator, literal(c.Value))
}

func literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case time.Time:
		return "'" + val.Format(time.DateTime) + "'"
	default:
		return cast.ToString(val)
	}
}

type OrderClause struct {
	Column string
	Dir    string // ASC or DESC
}

type QueryResult struct {
	SQL    string
	Params []any
}

// Query accumulates constraints for an admin list of one table.
type Query struct {
	Table      string
	Columns    []string
	SoftDelete bool

	trashed bool
	clauses []Clause
	sorts   []OrderClause
	limit   int
	offset  int
}

func NewQuery(table string) *Query {
	return &Query{Table: table}
}

var operators = map[string]bool{
	"=": true, "!=": true, "<>": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"LIKE": true, "NOT LIKE": true, "ILIKE": true,
}

// Where adds `column operator value`. Unknown operators fall back to "=".
func (q *Query) Where(column, operator string, value any) *Query {
	op := strings.ToUpper(strings.TrimSpace(operator))
	if !operators[op] {
		op = "="
	}
	q.clauses = append(q.clauses, Clause{Column: column, Operator: op, Value: value})
	return q
}

func (q *Query) WhereIn(column string, values []any) *Query {
	q.clauses = append(q.clauses, Clause{Column: column, Operator: "IN", Value: values})
	return q
}

func (q *Query) WhereNotIn(column string, values []any) *Query {
	q.clauses = append(q.clauses, Clause{Column: column, Operator: "NOT IN", Value: values})
	return q
}

// OnlyTrashed restricts a soft-delete table to deleted rows.
func (q *Query) OnlyTrashed() *Query {
	q.trashed = true
	return q
}

func (q *Query) Trashed() bool {
	return q.trashed
}

func (q *Query) OrderBy(column, dir string) *Query {
	dir = strings.ToUpper(dir)
	if dir != "DESC" {
		dir = "ASC"
	}
	q.sorts = append(q.sorts, OrderClause{Column: column, Dir: dir})
	return q
}

// Page sets LIMIT/OFFSET. page is 1-based.
func (q *Query) Page(page, perPage int) *Query {
	if page < 1 {
		page = 1
	}
	q.limit = perPage
	q.offset = (page - 1) * perPage
	return q
}

func (q *Query) Clauses() []Clause {
	return q.clauses
}

// Build renders a parameterized SELECT for the dialect.
func (q *Query) Build(d store.Dialect) QueryResult {
	pb := d.NewParamBuilder()

	columns := "*"
	if len(q.Columns) > 0 {
		columns = strings.Join(q.Columns, ", ")
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", columns, q.Table)
	sql += q.where(d, pb)

	if len(q.sorts) > 0 {
		var orderParts []string
		for _, s := range q.sorts {
			orderParts = append(orderParts, fmt.Sprintf("%s %s", s.Column, s.Dir))
		}
		sql += " ORDER BY " + strings.Join(orderParts, ", ")
	}

	if q.limit > 0 {
		limit := pb.Add(q.limit)
		offset := pb.Add(q.offset)
		sql += fmt.Sprintf(" LIMIT %s OFFSET %s", limit, offset)
	}

	return QueryResult{SQL: sql, Params: pb.Params()}
}

// BuildCount builds a COUNT query with the same constraints as Build.
func (q *Query) BuildCount(d store.Dialect) QueryResult {
	pb := d.NewParamBuilder()
	sql := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", q.Table) + q.where(d, pb)
	return QueryResult{SQL: sql, Params: pb.Params()}
}

func (q *Query) where(d store.Dialect, pb store.ParamBuilder) string {
	var where []string

	if q.trashed {
		where = append(where, "deleted_at IS NOT NULL")
	} else if q.SoftDelete {
		where = append(where, "deleted_at IS NULL")
	}

	for _, c := range q.clauses {
		switch c.Operator {
		case "IN":
			values, _ := c.Value.([]any)
			where = append(where, d.InExpr(c.Column, pb, values))
			continue
		case "NOT IN":
			values, _ := c.Value.([]any)
			where = append(where, d.NotInExpr(c.Column, pb, values))
			continue
		}
		where = append(where, fmt.Sprintf("%s %s %s", c.Column, c.Operator, pb.Add(c.Value)))
	}

	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}
