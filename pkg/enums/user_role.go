package enums

import "fmt"

// UserRole scopes what an admin account may manage.
type UserRole string

const (
	UserRoleSuperAdmin UserRole = "super_admin"
	UserRoleVenueOwner UserRole = "venue_owner"
)

var validUserRoles = []UserRole{
	UserRoleSuperAdmin,
	UserRoleVenueOwner,
}

// String implements fmt.Stringer.
func (u UserRole) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UserRole.
func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
