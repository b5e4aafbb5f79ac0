package permission

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"adminkit/internal/store"
)

// MemoryStore implements EntityStore using in-memory maps.
// Grants are keyed by entity ID and outlive deleted entities, matching the
// SQL schema where role_permissions has no cascading foreign keys.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[Kind]map[string]Entity      // kind -> id -> entity
	grants   map[string]map[string]struct{} // roleID -> permissionID set
	writes   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: map[Kind]map[string]Entity{
			KindRole:       {},
			KindPermission: {},
		},
		grants: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) FindOrCreate(ctx context.Context, kind Kind, name string) (Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.entities[kind]
	if !ok {
		return Entity{}, ErrUnknownKind
	}
	for _, e := range byID {
		if e.Name == name {
			return e, nil
		}
	}
	e := Entity{ID: uuid.NewString(), Name: name}
	byID[e.ID] = e
	m.writes++
	return e, nil
}

func (m *MemoryStore) DeleteByNames(ctx context.Context, kind Kind, names Names) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.entities[kind]
	if !ok {
		return 0, ErrUnknownKind
	}
	set := nameSet(names)
	var n int64
	for id, e := range byID {
		if set[e.Name] {
			delete(byID, id)
			n++
		}
	}
	m.writes++
	return n, nil
}

func (m *MemoryStore) FindByNames(ctx context.Context, kind Kind, names Names) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID, ok := m.entities[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	set := nameSet(names)
	var found []Entity
	for _, e := range byID {
		if set[e.Name] {
			found = append(found, e)
		}
	}
	sortByName(found)
	return found, nil
}

func (m *MemoryStore) Save(ctx context.Context, kind Kind, entity Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.entities[kind]
	if !ok {
		return ErrUnknownKind
	}
	if _, ok := byID[entity.ID]; !ok {
		return fmt.Errorf("%w: %s %s", ErrEntityNotFound, kind, entity.ID)
	}
	for id, e := range byID {
		if id != entity.ID && e.Name == entity.Name {
			return fmt.Errorf("%w: %s name %q", store.ErrUniqueViolation, kind, entity.Name)
		}
	}
	byID[entity.ID] = entity
	m.writes++
	return nil
}

func (m *MemoryStore) Grant(ctx context.Context, role Entity, permissionNames Names) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := nameSet(permissionNames)
	var perms []Entity
	for _, e := range m.entities[KindPermission] {
		if wanted[e.Name] {
			perms = append(perms, e)
		}
	}
	if missing := missingNames(permissionNames, perms); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrPermissionNotFound, strings.Join(missing, ", "))
	}

	set, ok := m.grants[role.ID]
	if !ok {
		set = make(map[string]struct{})
		m.grants[role.ID] = set
	}
	for _, p := range perms {
		set[p.ID] = struct{}{}
	}
	m.writes++
	return nil
}

// List returns every entity of kind ordered by name.
func (m *MemoryStore) List(kind Kind) []Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]Entity, 0, len(m.entities[kind]))
	for _, e := range m.entities[kind] {
		all = append(all, e)
	}
	sortByName(all)
	return all
}

// GrantedPermissionIDs returns the permission IDs recorded for a role.
func (m *MemoryStore) GrantedPermissionIDs(roleID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.grants[roleID]))
	for id := range m.grants[roleID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Writes returns the number of mutating calls that reached the store.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func nameSet(names Names) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func sortByName(entities []Entity) {
	sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })
}

var _ EntityStore = (*MemoryStore)(nil)
