package domain

import (
	"testing"
	"time"
)

func TestTopRolePicksHighestAuthority(t *testing.T) {
	hierarchy := []Role{
		{ID: "everyone", Position: 3},
		{ID: "admin", Position: 0},
		{ID: "mod", Position: 1},
		{ID: "vip", Position: 2},
	}

	tests := []struct {
		name   string
		member Member
		want   string
		ok     bool
	}{
		{"mod over vip", Member{ID: "a", RoleIDs: []string{"vip", "mod"}}, "mod", true},
		{"single role", Member{ID: "b", RoleIDs: []string{"everyone"}}, "everyone", true},
		{"no roles", Member{ID: "c"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TopRole(tt.member, hierarchy)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got.ID != tt.want {
				t.Fatalf("expected top role %s, got %s", tt.want, got.ID)
			}
		})
	}
}

func TestSortHierarchyDoesNotMutateInput(t *testing.T) {
	roles := []Role{{ID: "b", Position: 1}, {ID: "a", Position: 0}}
	sorted := SortHierarchy(roles)

	if sorted[0].ID != "a" {
		t.Fatalf("expected a first, got %s", sorted[0].ID)
	}
	if roles[0].ID != "b" {
		t.Fatal("input slice was reordered")
	}
}

func TestInviteExpiresAt(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	eternal := Invite{Code: "aaa", CreatedAt: created}
	if _, ok := eternal.ExpiresAt(); ok {
		t.Fatal("max age 0 must never expire")
	}

	bounded := Invite{Code: "bbb", CreatedAt: created, MaxAge: 3600}
	at, ok := bounded.ExpiresAt()
	if !ok || !at.Equal(created.Add(time.Hour)) {
		t.Fatalf("expected expiry one hour after creation, got %v (%v)", at, ok)
	}
}
