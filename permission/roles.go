package permission

import (
	"errors"
	"sort"
	"strings"
)

// Built-in role names.
const (
	RoleCustomer   = "customer"
	RoleTechnician = "technician"
	RoleManager    = "manager"
	RoleAdmin      = "admin"
)

// RoleSet is an unordered set of role names.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from names, ignoring blanks.
func NewRoleSet(names ...string) RoleSet {
	s := make(RoleSet, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// Intersects reports whether any of roles is in s.
func (s RoleSet) Intersects(roles []string) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Slice returns the roles sorted by name.
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Policy holds the role names the decision rule depends on.
type Policy struct {
	AdminRole  string
	Privileged RoleSet
}

// DefaultPolicy uses "admin" as the administrative role and treats admin,
// manager, and technician as privileged.
func DefaultPolicy() Policy {
	return Policy{
		AdminRole:  RoleAdmin,
		Privileged: NewRoleSet(RoleAdmin, RoleManager, RoleTechnician),
	}
}

// Validate checks that the policy names an admin role that is also privileged.
func (p Policy) Validate() error {
	if p.AdminRole == "" {
		return errors.New("admin role must be set")
	}
	if len(p.Privileged) == 0 {
		return errors.New("privileged role set must not be empty")
	}
	if !p.Privileged.Has(p.AdminRole) {
		return errors.New("admin role must be privileged")
	}
	return nil
}
