package auth

import (
	"context"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Credential is one entry of a static users file.
type Credential struct {
	UserName     string   `json:"userName"`
	FullName     string   `json:"fullName"`
	PasswordHash string   `json:"passwordHash"`
	Admin        bool     `json:"admin"`
	Roles        []string `json:"roles"`
	Permissions  []string `json:"permissions"`
}

type staticUsersFile struct {
	Users []Credential `json:"users"`
}

type staticRolesFile struct {
	Roles []Role `json:"roles"`
}

// StaticUserStore serves users from an in-memory credential list.
type StaticUserStore struct {
	credentials []Credential
}

// NewStaticUserStore creates a StaticUserStore over credentials.
func NewStaticUserStore(credentials []Credential) *StaticUserStore {
	return &StaticUserStore{credentials: credentials}
}

// LoadStaticUsers reads a YAML file with a top-level "users" list.
func LoadStaticUsers(path string) (*StaticUserStore, error) {
	var f staticUsersFile
	if err := readYAML(path, &f); err != nil {
		return nil, fmt.Errorf("loading static users: %w", err)
	}
	return NewStaticUserStore(f.Users), nil
}

// GetByUserName returns the first credential whose user name matches exactly.
// The credential's position in the list is used as the user id.
func (s *StaticUserStore) GetByUserName(_ context.Context, userName string) (*User, error) {
	for i, c := range s.credentials {
		if c.UserName != userName {
			continue
		}
		return &User{
			ID:           int64(i),
			UserName:     c.UserName,
			FullName:     c.FullName,
			PasswordHash: c.PasswordHash,
			Active:       true,
			Admin:        c.Admin,
			Roles:        append([]string(nil), c.Roles...),
			Permissions:  append([]string(nil), c.Permissions...),
		}, nil
	}
	return nil, ErrUserNotFound
}

// StaticRoleStore serves roles from an in-memory list.
type StaticRoleStore struct {
	roles map[string]Role
}

// NewStaticRoleStore creates a StaticRoleStore. Later entries with a
// duplicate name are ignored.
func NewStaticRoleStore(roles []Role) *StaticRoleStore {
	byName := make(map[string]Role, len(roles))
	for i, r := range roles {
		if _, ok := byName[r.Name]; ok {
			continue
		}
		if r.ID == 0 {
			r.ID = int64(i)
		}
		byName[r.Name] = r
	}
	return &StaticRoleStore{roles: byName}
}

// LoadStaticRoles reads a YAML file with a top-level "roles" list.
func LoadStaticRoles(path string) (*StaticRoleStore, error) {
	var f staticRolesFile
	if err := readYAML(path, &f); err != nil {
		return nil, fmt.Errorf("loading static roles: %w", err)
	}
	return NewStaticRoleStore(f.Roles), nil
}

// GetByName returns a copy of the named role.
func (s *StaticRoleStore) GetByName(_ context.Context, name string) (*Role, error) {
	r, ok := s.roles[name]
	if !ok {
		return nil, ErrRoleNotFound
	}
	r.Permissions = append([]string(nil), r.Permissions...)
	return &r, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
