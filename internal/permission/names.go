package permission

import (
	"fmt"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
	"golang.org/x/text/unicode/norm"
)

// Names is an ordered list of role or permission names. A single name is
// represented as a one-element list.
type Names []string

// Name lifts a single name into a Names list.
func Name(name string) Names {
	return Names{name}
}

// NormalizeNames trims surrounding whitespace, applies Unicode NFC and drops
// blank entries. Input order is preserved.
func NormalizeNames(names Names) Names {
	if len(names) == 0 {
		return nil
	}
	out := make(Names, 0, len(names))
	for _, n := range names {
		n = norm.NFC.String(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeRenameMap applies NormalizeNames rules to both sides of m and drops
// pairs whose old or new name is blank.
func NormalizeRenameMap(m RenameMap) RenameMap {
	out := make(RenameMap, len(m))
	for from, to := range m {
		from = norm.NFC.String(strings.TrimSpace(from))
		to = norm.NFC.String(strings.TrimSpace(to))
		if from == "" || to == "" {
			continue
		}
		out[from] = to
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// UnmarshalYAML accepts either a scalar name or a sequence of names.
func (n *Names) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*n = nil
			return nil
		}
		*n = Names{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return fmt.Errorf("decode names: %w", err)
		}
		*n = list
		return nil
	default:
		return fmt.Errorf("line %d: names must be a string or a list of strings", value.Line)
	}
}

// RenameMap maps a current name to its new name.
type RenameMap map[string]string

// Keys returns the old names in sorted order.
func (m RenameMap) Keys() Names {
	keys := make(Names, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flip returns the inverse mapping (new name -> old name).
func (m RenameMap) Flip() RenameMap {
	if m == nil {
		return nil
	}
	flipped := make(RenameMap, len(m))
	for from, to := range m {
		flipped[to] = from
	}
	return flipped
}

// Grant assigns a set of permissions to a set of roles.
type Grant struct {
	Roles       Names
	Permissions Names
}

// AssignmentTable describes which permissions a migration grants. When All is
// set every created permission is granted to every created role and Grants is
// ignored.
type AssignmentTable struct {
	All    bool
	Grants []Grant
}

// AssignAll returns a table granting every created permission to every created role.
func AssignAll() AssignmentTable {
	return AssignmentTable{All: true}
}

// IsEmpty reports whether the table assigns nothing.
func (a AssignmentTable) IsEmpty() bool {
	return !a.All && len(a.Grants) == 0
}

// UnmarshalYAML accepts a boolean (true means assign all) or a mapping from
// role name to a permission name or list of names.
func (a *AssignmentTable) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*a = AssignmentTable{}
			return nil
		}
		var all bool
		if err := value.Decode(&all); err != nil {
			return fmt.Errorf("line %d: assign must be a boolean or a role mapping", value.Line)
		}
		*a = AssignmentTable{All: all}
		return nil
	case yaml.MappingNode:
		table := AssignmentTable{}
		for i := 0; i+1 < len(value.Content); i += 2 {
			var roles, perms Names
			if err := value.Content[i].Decode(&roles); err != nil {
				return err
			}
			if err := value.Content[i+1].Decode(&perms); err != nil {
				return err
			}
			table.Grants = append(table.Grants, Grant{Roles: roles, Permissions: perms})
		}
		*a = table
		return nil
	default:
		return fmt.Errorf("line %d: assign must be a boolean or a role mapping", value.Line)
	}
}
