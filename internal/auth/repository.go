package auth

import (
	"context"
	"errors"

	"github.com/daap14/signon/internal/password"
)

// ErrUserNotFound is returned when no active user matches a user name.
var ErrUserNotFound = errors.New("user not found")

// ErrRoleNotFound is returned when a role record is not found.
var ErrRoleNotFound = errors.New("role not found")

// ErrNotImplemented is returned by stores whose lookup must be supplied by the application.
var ErrNotImplemented = errors.New("not implemented")

// ErrInvalidConfiguration is returned by strict configuration for an unknown or mistyped option.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ErrConfiguration is returned when the module cannot be constructed from its configuration.
var ErrConfiguration = password.ErrConfiguration

// UserStore looks up users by their login name.
type UserStore interface {
	GetByUserName(ctx context.Context, userName string) (*User, error)
}

// RoleStore looks up roles by name.
type RoleStore interface {
	GetByName(ctx context.Context, name string) (*Role, error)
}

// UserStoreFunc adapts a function to a UserStore.
type UserStoreFunc func(ctx context.Context, userName string) (*User, error)

// GetByUserName calls f.
func (f UserStoreFunc) GetByUserName(ctx context.Context, userName string) (*User, error) {
	return f(ctx, userName)
}

// RoleStoreFunc adapts a function to a RoleStore.
type RoleStoreFunc func(ctx context.Context, name string) (*Role, error)

// GetByName calls f.
func (f RoleStoreFunc) GetByName(ctx context.Context, name string) (*Role, error) {
	return f(ctx, name)
}

// UnimplementedUserStore can be embedded by application stores that have not
// provided a lookup yet.
type UnimplementedUserStore struct{}

// GetByUserName always fails with ErrNotImplemented.
func (UnimplementedUserStore) GetByUserName(context.Context, string) (*User, error) {
	return nil, ErrNotImplemented
}

// UnimplementedRoleStore is the RoleStore counterpart of UnimplementedUserStore.
type UnimplementedRoleStore struct{}

// GetByName always fails with ErrNotImplemented.
func (UnimplementedRoleStore) GetByName(context.Context, string) (*Role, error) {
	return nil, ErrNotImplemented
}
