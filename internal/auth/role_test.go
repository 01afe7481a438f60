package auth

import "testing"

func TestNormalizeRole(t *testing.T) {
	cases := []struct {
		raw  string
		want Role
	}{
		{"EMPLOYEE", RoleEmployee},
		{"employee", RoleEmployee},
		{"CANDIDATE", RoleEmployee},
		{"ROLE_EMPLOYEE", RoleEmployee},
		{"delivery_team", RoleDelivery},
		{"ROLE_DELIVERY_TEAM", RoleDelivery},
		{" sales ", RoleSales},
		{"Sales_Team", RoleSales},
		{"admin", RoleAdmin},
	}
	for _, tc := range cases {
		got, err := NormalizeRole(tc.raw)
		if err != nil {
			t.Errorf("NormalizeRole(%q) returned error: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeRoleRejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "MANAGER", "ROLE_", "SALESMAN"} {
		if _, err := NormalizeRole(raw); err == nil {
			t.Errorf("NormalizeRole(%q) accepted an unknown role", raw)
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range Roles() {
		if !role.Valid() {
			t.Errorf("declared role %q reported invalid", role)
		}
	}
	if Role("MANAGER").Valid() {
		t.Error("undeclared role reported valid")
	}
}
