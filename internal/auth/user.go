package auth

import "slices"

// UserContext is the authenticated caller, set by AuthMiddleware.
type UserContext struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

func (u *UserContext) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

func (u *UserContext) IsAdmin() bool {
	return u.HasRole("admin")
}
