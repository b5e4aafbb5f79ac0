package filter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminkit/internal/filter"
	"adminkit/internal/store"
	"adminkit/internal/testutil"
)

func TestModelFilter(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSQLiteStore(t)

	_, err := store.Exec(ctx, st.DB, "CREATE TABLE categories (id INTEGER PRIMARY KEY, title TEXT NOT NULL)")
	require.NoError(t, err)
	_, err = store.Exec(ctx, st.DB, "CREATE TABLE posts (id INTEGER PRIMARY KEY, category_id INTEGER, title TEXT)")
	require.NoError(t, err)
	_, err = store.Exec(ctx, st.DB, "INSERT INTO categories (id, title) VALUES (1, 'News'), (2, 'Sports'), (3, 'Tech')")
	require.NoError(t, err)
	_, err = store.Exec(ctx, st.DB, "INSERT INTO posts (id, category_id, title) VALUES (1, 1, 'a'), (2, 2, 'b'), (3, 3, 'c'), (4, 3, 'd')")
	require.NoError(t, err)

	l := filter.NewList(filter.NewQuery("posts"), nil)
	l.AddModelFilter(st, filter.Model{Table: "categories"}, "title", "category", filter.WithColumn("category_id"))

	desc := l.Descriptors()
	require.Len(t, desc, 1)
	assert.Equal(t, filter.TypeSelect2Multiple, desc[0].Type)
	assert.Equal(t, "Category", desc[0].Label)

	opts, err := l.Options(ctx, "category")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "News", "2": "Sports", "3": "Tech"}, opts)

	l.Apply(map[string]string{"category": `["3", ""]`})
	q := l.Query().OrderBy("id", "asc").Build(st.Dialect)
	rows, err := store.QueryRows(ctx, st.DB, q.SQL, q.Params...)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0]["title"])
	assert.Equal(t, "d", rows[1]["title"])
}

func TestDateRangeFilter_MatchesUTCTimestamps(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSQLiteStore(t)

	// 2024-01-01 00:30 in UTC+1.
	_, err := store.Exec(ctx, st.DB,
		"INSERT INTO roles (id, name, created_at) VALUES ('r1', 'early', '2023-12-31 23:30:00'), ('r2', 'late', '2024-01-01 23:30:00')")
	require.NoError(t, err)

	l := filter.NewList(filter.NewQuery("roles"), time.FixedZone("UTC+1", 60*60))
	l.AddDateRangeFilter("created_at", filter.DateTimeValues())
	l.Apply(map[string]string{"created_at": `{"from":"2024-01-01","to":"2024-01-01"}`})

	q := l.Query().Build(st.Dialect)
	assert.Equal(t, []any{"2023-12-31 23:00:00", "2024-01-01 22:59:59"}, q.Params)
	rows, err := store.QueryRows(ctx, st.DB, q.SQL, q.Params...)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "early", rows[0]["name"])
}
