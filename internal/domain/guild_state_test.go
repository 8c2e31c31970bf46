package domain

import (
	"testing"
	"time"
)

func inv(code, inviterID string, uses int) Invite {
	return Invite{
		Code:      code,
		InviterID: inviterID,
		Uses:      uses,
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCalcPointsReportsOnlyGains(t *testing.T) {
	st := NewGuildState("g1", 10)
	st.TrackInvites([]Invite{inv("aaa", "x", 3), inv("bbb", "y", 5)})

	fresh := []Invite{inv("aaa", "x", 7), inv("bbb", "y", 5)}
	gains := st.CalcPoints(fresh)

	if len(gains) != 1 {
		t.Fatalf("expected 1 gain, got %d", len(gains))
	}
	if gains[0].Invite.Code != "aaa" || gains[0].Gained != 4 {
		t.Fatalf("expected (aaa, 4), got (%s, %d)", gains[0].Invite.Code, gains[0].Gained)
	}
}

func TestCalcPointsNewInviteCountsFully(t *testing.T) {
	st := NewGuildState("g1", 10)
	st.TrackInvites([]Invite{inv("aaa", "x", 3)})

	gains := st.CalcPoints([]Invite{inv("aaa", "x", 3), inv("ccc", "z", 2)})
	if len(gains) != 1 {
		t.Fatalf("expected 1 gain, got %d", len(gains))
	}
	if gains[0].Invite.Code != "ccc" || gains[0].Gained != 2 {
		t.Fatalf("expected (ccc, 2), got (%s, %d)", gains[0].Invite.Code, gains[0].Gained)
	}
}

func TestCalcPointsNoOpAfterRebase(t *testing.T) {
	st := NewGuildState("g1", 10)
	st.TrackInvites([]Invite{inv("aaa", "x", 0), inv("bbb", "y", 2)})

	fresh := []Invite{inv("aaa", "x", 4), inv("ddd", "w", 1)}
	st.CalcPoints(fresh)
	st.TrackInvites(fresh)

	if gains := st.CalcPoints(fresh); len(gains) != 0 {
		t.Fatalf("diff against own baseline must be empty, got %v", gains)
	}
}

func TestTrackInvitesDropsDeletedInvites(t *testing.T) {
	st := NewGuildState("g1", 10)
	st.TrackInvites([]Invite{inv("aaa", "x", 3), inv("bbb", "y", 5)})

	baseline := st.TrackInvites([]Invite{inv("bbb", "y", 5)})
	if len(baseline) != 1 {
		t.Fatalf("expected baseline of 1 invite, got %d", len(baseline))
	}
	if _, ok := baseline["aaa"]; ok {
		t.Fatal("deleted invite must not survive a rebase")
	}
}

func TestAwardMemberIsAdditive(t *testing.T) {
	a := NewGuildState("g1", 0)
	a.AwardMember("m1", 3)
	split := a.AwardMember("m1", 4)

	b := NewGuildState("g1", 0)
	whole := b.AwardMember("m1", 7)

	if split != whole {
		t.Fatalf("award(3)+award(4)=%d, award(7)=%d", split, whole)
	}
	if a.Points("m1") != 7 {
		t.Fatalf("expected 7 points, got %d", a.Points("m1"))
	}
}

func TestAwardMemberNegativeAdjustment(t *testing.T) {
	st := NewGuildState("g1", 0)
	st.AwardMember("m1", 10)
	if got := st.AwardMember("m1", -4); got != 6 {
		t.Fatalf("expected 6 after adjustment, got %d", got)
	}
}

func TestInitPointsSeedsTopRoleThreshold(t *testing.T) {
	hierarchy := []Role{
		{ID: "admin", Name: "Admin", Position: 0},
		{ID: "vip", Name: "VIP", Position: 1},
		{ID: "everyone", Name: "everyone", Position: 2},
	}

	st := NewGuildState("g1", 3)
	st.SetBasePoints("vip", 50)
	st.AwardMember("tracked", 12)

	members := []Member{
		{ID: "tracked", RoleIDs: []string{"vip"}},
		{ID: "fresh-vip", RoleIDs: []string{"vip", "everyone"}},
		{ID: "fresh-plain", RoleIDs: []string{"everyone"}},
	}
	st.InitPoints(members, hierarchy)

	if got := st.Points("fresh-vip"); got != 50 {
		t.Fatalf("expected seed at threshold 50, got %d", got)
	}
	if got := st.Points("fresh-plain"); got != 0 {
		t.Fatalf("unthresholded top role must seed 0, got %d", got)
	}
	if got := st.Points("tracked"); got != 12 {
		t.Fatalf("init must not touch tracked members, got %d", got)
	}

	// idempotente
	st.InitPoints(members, hierarchy)
	if got := st.Points("fresh-vip"); got != 50 {
		t.Fatalf("second init changed points to %d", got)
	}
}

func TestMissingRolesExcludesReachedAndUnset(t *testing.T) {
	st := NewGuildState("g1", 0)
	st.SetBasePoints("bronze", 10)
	st.SetBasePoints("silver", 25)
	st.SetBasePoints("gold", 100)

	missing := st.MissingRoles(25)
	if len(missing) != 1 {
		t.Fatalf("expected only gold missing, got %v", missing)
	}
	if missing["gold"] != 100 {
		t.Fatalf("expected gold at 100, got %d", missing["gold"])
	}
	if got := st.BasePoints("unknown"); got != UnsetBasePoints {
		t.Fatalf("unknown role must report sentinel, got %d", got)
	}
}

func TestAddMemberCountsOnlyUnknownMembers(t *testing.T) {
	st := NewGuildState("g1", 5)

	if !st.AddMember(Member{ID: "fresh"}) {
		t.Fatal("unknown member must count as new")
	}
	if st.MemberCount() != 6 {
		t.Fatalf("expected member count 6, got %d", st.MemberCount())
	}
	if st.Points("fresh") != 0 {
		t.Fatalf("new member must start at 0 points, got %d", st.Points("fresh"))
	}
}

func TestAddMemberIgnoresReturningRunaway(t *testing.T) {
	st := NewGuildState("g1", 5)
	st.AwardMember("ghost", 8)
	st.TrackRunaway(Member{ID: "ghost", Name: "Ghost"}, time.Now())

	if st.AddMember(Member{ID: "ghost"}) {
		t.Fatal("returning runaway must not count as new")
	}
	if st.MemberCount() != 5 {
		t.Fatalf("member count changed to %d", st.MemberCount())
	}
	if st.Points("ghost") != 8 {
		t.Fatalf("runaway points must survive rejoin, got %d", st.Points("ghost"))
	}
	if !st.IsRunaway("ghost") {
		t.Fatal("runaway entry must not be cleared on rejoin")
	}
}

func TestClearBasePoints(t *testing.T) {
	st := NewGuildState("g1", 0)
	st.SetBasePoints("gone", 30)
	st.ClearBasePoints("gone")
	if got := st.BasePoints("gone"); got != UnsetBasePoints {
		t.Fatalf("expected sentinel after clear, got %d", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	st := NewGuildState("g1", 42)
	st.TrackInvites([]Invite{inv("aaa", "x", 3)})
	st.AwardMember("m1", 7)
	st.SetBasePoints("vip", 50)
	st.TrackRunaway(Member{ID: "ghost", Name: "Ghost"}, time.Now())

	restored := RestoreGuildState(st.Snapshot())

	if restored.MemberCount() != 42 {
		t.Fatalf("member count lost: %d", restored.MemberCount())
	}
	if restored.Points("m1") != 7 {
		t.Fatalf("points lost: %d", restored.Points("m1"))
	}
	if restored.BasePoints("vip") != 50 {
		t.Fatalf("role points lost: %d", restored.BasePoints("vip"))
	}
	if !restored.IsRunaway("ghost") {
		t.Fatal("runaway lost")
	}
	if gains := restored.CalcPoints([]Invite{inv("aaa", "x", 3)}); len(gains) != 0 {
		t.Fatalf("restored baseline must diff clean, got %v", gains)
	}
}
