package auth

import (
	"context"
	"errors"
	"fmt"
)

// IsAllowed reports whether user holds permission. Admins hold every
// permission; otherwise the user's own permissions are checked first and then
// each of its roles in the order they were added. Roles missing from the
// store are skipped. A nil user is never allowed and a nil store skips roles.
func IsAllowed(ctx context.Context, user *User, permission string, roles RoleStore) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.Admin || user.HasPermission(permission) {
		return true, nil
	}
	if roles == nil {
		return false, nil
	}

	for _, name := range user.Roles {
		role, err := roles.GetByName(ctx, name)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				continue
			}
			return false, fmt.Errorf("loading role %q: %w", name, err)
		}
		if role.HasPermission(permission) {
			return true, nil
		}
	}
	return false, nil
}
