package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserColumns maps the logical user fields to column names.
type UserColumns struct {
	ID string
	// Active may be a boolean or integer column; nonzero rows are active.
	Active       string
	UserName     string
	PasswordHash string
	FullName     string
}

// UsersTable describes where DatabaseUserStore reads users from.
type UsersTable struct {
	Name    string
	Columns UserColumns
}

// DefaultUsersTable returns the users table layout used when none is configured.
func DefaultUsersTable() UsersTable {
	return UsersTable{
		Name: "users",
		Columns: UserColumns{
			ID:           "id",
			Active:       "active",
			UserName:     "user_name",
			PasswordHash: "password_hash",
			FullName:     "full_name",
		},
	}
}

// WithColumns returns a copy of t with the given logical fields remapped.
// Keys are id, active, userName, passwordHash and fullName.
func (t UsersTable) WithColumns(columns map[string]string) (UsersTable, error) {
	for field, column := range columns {
		if column == "" {
			return t, fmt.Errorf("%w: empty column name for %q", ErrInvalidConfiguration, field)
		}
		switch field {
		case "id":
			t.Columns.ID = column
		case "active":
			t.Columns.Active = column
		case "userName":
			t.Columns.UserName = column
		case "passwordHash":
			t.Columns.PasswordHash = column
		case "fullName":
			t.Columns.FullName = column
		default:
			return t, fmt.Errorf("%w: unknown users column %q", ErrInvalidConfiguration, field)
		}
	}
	return t, nil
}

func (t UsersTable) selectByUserName() string {
	c := t.Columns
	return fmt.Sprintf(`
		SELECT %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s::int <> 0`,
		ident(c.ID), ident(c.UserName), ident(c.FullName), ident(c.PasswordHash),
		ident(t.Name),
		ident(c.UserName), ident(c.Active),
	)
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// DatabaseUserStore implements UserStore over a Postgres table.
type DatabaseUserStore struct {
	pool  *pgxpool.Pool
	table UsersTable
	query string
}

// NewDatabaseUserStore creates a UserStore reading from table.
func NewDatabaseUserStore(pool *pgxpool.Pool, table UsersTable) *DatabaseUserStore {
	return &DatabaseUserStore{pool: pool, table: table, query: table.selectByUserName()}
}

// GetByUserName returns the active user with the given name.
// Inactive rows are filtered by the query and yield ErrUserNotFound.
func (s *DatabaseUserStore) GetByUserName(ctx context.Context, userName string) (*User, error) {
	u := User{Active: true}
	err := s.pool.QueryRow(ctx, s.query, userName).Scan(
		&u.ID, &u.UserName, &u.FullName, &u.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return &u, nil
}

// DatabaseRoleStore implements RoleStore over the roles table.
type DatabaseRoleStore struct {
	pool *pgxpool.Pool
}

// NewDatabaseRoleStore creates a RoleStore backed by the given connection pool.
func NewDatabaseRoleStore(pool *pgxpool.Pool) *DatabaseRoleStore {
	return &DatabaseRoleStore{pool: pool}
}

// GetByName retrieves a single role by name.
func (s *DatabaseRoleStore) GetByName(ctx context.Context, name string) (*Role, error) {
	query := `
		SELECT id, name, permissions
		FROM roles
		WHERE name = $1`

	var r Role
	err := s.pool.QueryRow(ctx, query, name).Scan(&r.ID, &r.Name, &r.Permissions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("querying role: %w", err)
	}

	return &r, nil
}
