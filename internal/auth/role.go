package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of caller roles recognized by the transition
// engine. External identity providers hand us all sorts of spellings
// (ROLE_DELIVERY, delivery_team, ...); NormalizeRole maps them into this
// enumeration at the boundary so the core never sees raw role strings.
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleDelivery Role = "DELIVERY"
	RoleSales    Role = "SALES"
	RoleAdmin    Role = "ADMIN"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleEmployee, RoleDelivery, RoleSales, RoleAdmin}
}

// NormalizeRole converts an external role string into the closed enum.
func NormalizeRole(raw string) (Role, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "ROLE_")
	s = strings.TrimSuffix(s, "_TEAM")

	switch s {
	case "EMPLOYEE", "CANDIDATE":
		return RoleEmployee, nil
	case "DELIVERY":
		return RoleDelivery, nil
	case "SALES":
		return RoleSales, nil
	case "ADMIN":
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleDelivery, RoleSales, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
