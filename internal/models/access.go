package models

import (
	"regexp"
	"strings"
)

var rolePermissions = map[UserRole][]string{
	RoleAdmin:   {"*"},
	RoleManager: {"project:*", "task:*", "comment:*", "file:*"},
	RoleMember:  {"project:read", "task:read", "task:update", "comment:*", "file:read"},
}

// Can reports whether the role grants permission, e.g. "task:delete".
// A grant ending in ":*" covers every action on that resource.
func (r UserRole) Can(permission string) bool {
	for _, grant := range rolePermissions[r] {
		if grant == "*" || grant == permission {
			return true
		}
		if prefix, ok := strings.CutSuffix(grant, "*"); ok && strings.HasSuffix(prefix, ":") &&
			strings.HasPrefix(permission, prefix) {
			return true
		}
	}
	return false
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail performs a loose shape check on an email address
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

const passwordSpecials = "@$!%*?&"

// ValidPassword requires at least 8 characters drawn from letters, digits and
// @$!%*?&, with at least one lower, upper, digit and special character.
func ValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}
