package auth

import "slices"

// User is an authenticated principal resolved by a UserStore.
type User struct {
	ID           int64    `json:"id"`
	UserName     string   `json:"userName"`
	FullName     string   `json:"fullName"`
	PasswordHash string   `json:"-"` // set only while credentials are being checked
	Active       bool     `json:"active"`
	Admin        bool     `json:"admin"`
	Roles        []string `json:"roles"`
	Permissions  []string `json:"permissions"`
}

// AddRole appends a role name unless the user already has it.
func (u *User) AddRole(name string) {
	if !u.HasRole(name) {
		u.Roles = append(u.Roles, name)
	}
}

// RemoveRole drops a role name.
func (u *User) RemoveRole(name string) {
	u.Roles = slices.DeleteFunc(u.Roles, func(r string) bool { return r == name })
}

// HasRole reports whether the user has the role name.
func (u *User) HasRole(name string) bool {
	return slices.Contains(u.Roles, name)
}

// SetPermission grants or revokes a permission held directly by the user.
func (u *User) SetPermission(name string, allow bool) {
	u.Permissions = setPermission(u.Permissions, name, allow)
}

// HasPermission reports whether the permission is held directly by the user.
// Roles and the admin flag are not consulted; use IsAllowed for that.
func (u *User) HasPermission(name string) bool {
	return slices.Contains(u.Permissions, name)
}

// Role is a named bundle of permissions.
type Role struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// SetPermission grants or revokes a permission on the role.
func (r *Role) SetPermission(name string, allow bool) {
	r.Permissions = setPermission(r.Permissions, name, allow)
}

// HasPermission reports whether the role carries the permission.
func (r *Role) HasPermission(name string) bool {
	return slices.Contains(r.Permissions, name)
}

func setPermission(perms []string, name string, allow bool) []string {
	if allow {
		if slices.Contains(perms, name) {
			return perms
		}
		return append(perms, name)
	}
	return slices.DeleteFunc(perms, func(p string) bool { return p == name })
}
