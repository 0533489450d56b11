package ai

import "testing"

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"assistant", RoleAssistant},
		{"model", RoleAssistant},
		{"ai", RoleAssistant},
		{"system", RoleSystem},
		{"user", RoleUser},
		{"human", RoleUser},
		{"", RoleUser},
		{"ASSISTANT", RoleUser}, // roles are case-sensitive by contract
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := NormalizeRole(tc.in); got != tc.want {
				t.Errorf("NormalizeRole(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
