package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/signon/internal/auth"
)

func TestIsAllowed(t *testing.T) {
	ctx := context.Background()
	roles := auth.NewStaticRoleStore([]auth.Role{
		{Name: "editor", Permissions: []string{"posts.edit"}},
		{Name: "viewer", Permissions: []string{"posts.view"}},
	})

	tests := []struct {
		name string
		user *auth.User
		perm string
		want bool
	}{
		{"nil user", nil, "posts.view", false},
		{"admin", &auth.User{Admin: true}, "anything", true},
		{"own permission", &auth.User{Permissions: []string{"reports.view"}}, "reports.view", true},
		{"via role", &auth.User{Roles: []string{"viewer"}}, "posts.view", true},
		{"missing role is skipped", &auth.User{Roles: []string{"ghost", "editor"}}, "posts.edit", true},
		{"denied", &auth.User{Roles: []string{"viewer"}}, "posts.edit", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.IsAllowed(ctx, tt.user, tt.perm, roles)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsAllowed_ShortCircuits(t *testing.T) {
	ctx := context.Background()
	var looked []string
	roles := auth.RoleStoreFunc(func(_ context.Context, name string) (*auth.Role, error) {
		looked = append(looked, name)
		return &auth.Role{Name: name, Permissions: []string{"perm." + name}}, nil
	})

	user := &auth.User{Roles: []string{"a", "b", "c"}, Permissions: []string{"own"}}

	ok, err := auth.IsAllowed(ctx, user, "own", roles)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, looked, "own permissions are checked before roles")

	ok, err = auth.IsAllowed(ctx, user, "perm.b", roles)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, looked)
}

func TestIsAllowed_StoreErrors(t *testing.T) {
	ctx := context.Background()
	user := &auth.User{Roles: []string{"editor"}}

	_, err := auth.IsAllowed(ctx, user, "posts.edit", auth.UnimplementedRoleStore{})
	assert.ErrorIs(t, err, auth.ErrNotImplemented)

	boom := errors.New("boom")
	_, err = auth.IsAllowed(ctx, user, "posts.edit", auth.RoleStoreFunc(func(context.Context, string) (*auth.Role, error) {
		return nil, boom
	}))
	assert.ErrorIs(t, err, boom)

	ok, err := auth.IsAllowed(ctx, user, "posts.edit", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUser_RolesAndPermissions(t *testing.T) {
	u := &auth.User{}

	u.AddRole("editor")
	u.AddRole("editor")
	u.AddRole("viewer")
	assert.Equal(t, []string{"editor", "viewer"}, u.Roles)
	assert.True(t, u.HasRole("viewer"))

	u.RemoveRole("editor")
	assert.False(t, u.HasRole("editor"))

	u.SetPermission("posts.edit", true)
	u.SetPermission("posts.edit", true)
	assert.Equal(t, []string{"posts.edit"}, u.Permissions)

	u.SetPermission("posts.edit", false)
	assert.False(t, u.HasPermission("posts.edit"))

	r := &auth.Role{}
	r.SetPermission("posts.view", true)
	assert.True(t, r.HasPermission("posts.view"))
}
