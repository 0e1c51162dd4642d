package permission

// Authorize decides whether a caller holding roles, with or without a
// satisfied second factor, meets required.
func (p Policy) Authorize(roles []string, secondFactor bool, required ...string) bool {
	if len(required) == 0 {
		return true
	}
	need := NewRoleSet(required...)
	if len(need) == 0 {
		return true
	}
	if !need.Intersects(roles) {
		return false
	}
	if need.Has(p.AdminRole) && !secondFactor {
		return false
	}
	return true
}

// IsPrivileged reports whether roles include any privileged role.
func (p Policy) IsPrivileged(roles []string) bool {
	return p.Privileged.Intersects(roles)
}
