package permission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"adminkit/internal/store"
)

// SQLStore implements EntityStore over the roles, permissions and
// role_permissions tables.
type SQLStore struct {
	store *store.Store
}

func NewSQLStore(s *store.Store) *SQLStore {
	return &SQLStore{store: s}
}

func (s *SQLStore) FindOrCreate(ctx context.Context, kind Kind, name string) (Entity, error) {
	if !kind.Valid() {
		return Entity{}, ErrUnknownKind
	}
	e, err := s.findByName(ctx, kind, name)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Entity{}, err
	}

	d := s.store.Dialect
	e = Entity{ID: uuid.NewString(), Name: name}
	sqlStr := fmt.Sprintf("INSERT INTO %s (id, name) VALUES (%s, %s)",
		kind.Table(), d.Placeholder(1), d.Placeholder(2))
	if _, err := store.Exec(ctx, s.store.DB, sqlStr, e.ID, e.Name); err != nil {
		err = store.MapError(d, err)
		if errors.Is(err, store.ErrUniqueViolation) {
			// Lost a race with a concurrent insert of the same name
			return s.findByName(ctx, kind, name)
		}
		return Entity{}, fmt.Errorf("insert %s: %w", kind, err)
	}
	return e, nil
}

func (s *SQLStore) DeleteByNames(ctx context.Context, kind Kind, names Names) (int64, error) {
	if !kind.Valid() {
		return 0, ErrUnknownKind
	}
	if len(names) == 0 {
		return 0, nil
	}
	pb := s.store.Dialect.NewParamBuilder()
	where := s.store.Dialect.InExpr("name", pb, store.StringArgs(names))
	sqlStr := fmt.Sprintf("DELETE FROM %s WHERE %s", kind.Table(), where)
	return store.Exec(ctx, s.store.DB, sqlStr, pb.Params()...)
}

func (s *SQLStore) FindByNames(ctx context.Context, kind Kind, names Names) ([]Entity, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}
	if len(names) == 0 {
		return nil, nil
	}
	pb := s.store.Dialect.NewParamBuilder()
	where := s.store.Dialect.InExpr("name", pb, store.StringArgs(names))
	sqlStr := fmt.Sprintf("SELECT id, name FROM %s WHERE %s ORDER BY name", kind.Table(), where)
	return s.queryEntities(ctx, sqlStr, pb.Params()...)
}

// List returns every entity of kind ordered by name.
func (s *SQLStore) List(ctx context.Context, kind Kind) ([]Entity, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}
	return s.queryEntities(ctx, fmt.Sprintf("SELECT id, name FROM %s ORDER BY name", kind.Table()))
}

func (s *SQLStore) Save(ctx context.Context, kind Kind, entity Entity) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}
	d := s.store.Dialect
	sqlStr := fmt.Sprintf("UPDATE %s SET name = %s, updated_at = %s WHERE id = %s",
		kind.Table(), d.Placeholder(1), d.NowExpr(), d.Placeholder(2))
	n, err := store.Exec(ctx, s.store.DB, sqlStr, entity.Name, entity.ID)
	if err != nil {
		return store.MapError(d, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrEntityNotFound, kind, entity.ID)
	}
	return nil
}

func (s *SQLStore) Grant(ctx context.Context, role Entity, permissionNames Names) error {
	if len(permissionNames) == 0 {
		return nil
	}
	perms, err := s.FindByNames(ctx, KindPermission, permissionNames)
	if err != nil {
		return err
	}
	if missing := missingNames(permissionNames, perms); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrPermissionNotFound, strings.Join(missing, ", "))
	}

	d := s.store.Dialect
	sqlStr := fmt.Sprintf(
		"INSERT INTO role_permissions (role_id, permission_id) VALUES (%s, %s) ON CONFLICT DO NOTHING",
		d.Placeholder(1), d.Placeholder(2))
	for _, p := range perms {
		if _, err := store.Exec(ctx, s.store.DB, sqlStr, role.ID, p.ID); err != nil {
			return fmt.Errorf("grant %s: %w", p.Name, err)
		}
	}
	return nil
}

// GrantedPermissionIDs returns the permission IDs recorded for a role,
// including grants whose permission row no longer exists.
func (s *SQLStore) GrantedPermissionIDs(ctx context.Context, roleID string) ([]string, error) {
	sqlStr := fmt.Sprintf("SELECT permission_id FROM role_permissions WHERE role_id = %s ORDER BY permission_id",
		s.store.Dialect.Placeholder(1))
	rows, err := s.store.DB.QueryContext(ctx, sqlStr, roleID)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PermissionNames returns the names of existing permissions granted to a role.
func (s *SQLStore) PermissionNames(ctx context.Context, roleID string) ([]string, error) {
	sqlStr := fmt.Sprintf(
		`SELECT p.name FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = %s ORDER BY p.name`,
		s.store.Dialect.Placeholder(1))
	rows, err := s.store.DB.QueryContext(ctx, sqlStr, roleID)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLStore) findByName(ctx context.Context, kind Kind, name string) (Entity, error) {
	sqlStr := fmt.Sprintf("SELECT id, name FROM %s WHERE name = %s", kind.Table(), s.store.Dialect.Placeholder(1))
	var e Entity
	err := s.store.DB.QueryRowContext(ctx, sqlStr, name).Scan(&e.ID, &e.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, store.ErrNotFound
	}
	if err != nil {
		return Entity{}, fmt.Errorf("find %s %q: %w", kind, name, err)
	}
	return e, nil
}

func (s *SQLStore) queryEntities(ctx context.Context, sqlStr string, args ...any) ([]Entity, error) {
	rows, err := s.store.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func missingNames(want Names, found []Entity) []string {
	have := make(map[string]bool, len(found))
	for _, e := range found {
		have[e.Name] = true
	}
	var missing []string
	for _, n := range want {
		if !have[n] {
			missing = append(missing, n)
			have[n] = true
		}
	}
	sort.Strings(missing)
	return missing
}

var _ EntityStore = (*SQLStore)(nil)
