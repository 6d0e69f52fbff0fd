package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer write", role: RoleViewer, action: ActionWrite, allow: false},
		{name: "agent write", role: RoleAgent, action: ActionWrite, allow: true},
		{name: "agent credit", role: RoleAgent, action: ActionCredit, allow: true},
		{name: "agent destroy", role: RoleAgent, action: ActionDestroy, allow: false},
		{name: "agent correct", role: RoleAgent, action: ActionCorrect, allow: false},
		{name: "admin correct", role: RoleAdmin, action: ActionCorrect, allow: true},
		{name: "admin destroy", role: RoleAdmin, action: ActionDestroy, allow: true},
		{name: "unknown read", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalizeDefaultsToViewer(t *testing.T) {
	if Normalize("admin") != RoleAdmin {
		t.Fatal("expected admin to survive normalization")
	}
	if Normalize("editor") != RoleViewer {
		t.Fatal("expected unknown role to fall back to viewer")
	}
}
