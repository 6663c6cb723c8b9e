package service

import (
	"context"
	"errors"
	"testing"

	"github.com/squadup/squadup/internal/cache"
	"github.com/squadup/squadup/internal/models"
)

func TestCreateAndListSquads(t *testing.T) {
	env := newTestEnv(t)
	owner, ctx := env.user(t, "gamer_jay")

	summary, err := env.squads.CreateSquad(ctx, "Raid Night", "Destiny 2")
	if err != nil {
		t.Fatalf("CreateSquad failed: %v", err)
	}
	if summary.InviteCode == "" {
		t.Error("Expected a generated invite code")
	}
	if len(summary.InviteCode) != inviteCodeLength {
		t.Errorf("Invite code length = %d, want %d", len(summary.InviteCode), inviteCodeLength)
	}
	if summary.OwnerID != owner.ID {
		t.Errorf("OwnerID = %q, want %q", summary.OwnerID, owner.ID)
	}

	list, err := env.squads.ListSquads(env.freshCtx(owner))
	if err != nil {
		t.Fatalf("ListSquads failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 squad, got %d", len(list))
	}
	if list[0].MemberCount != 1 {
		t.Errorf("MemberCount = %d, want 1 (the owner)", list[0].MemberCount)
	}
}

func TestJoinSquad(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerCtx := env.user(t, "owner")
	_, memberCtx := env.user(t, "member")

	created, err := env.squads.CreateSquad(ownerCtx, "Raid Night", "Destiny 2")
	if err != nil {
		t.Fatalf("CreateSquad failed: %v", err)
	}

	t.Run("joins with lowercase code", func(t *testing.T) {
		joined, err := env.squads.JoinSquad(memberCtx, toLower(created.InviteCode))
		if err != nil {
			t.Fatalf("JoinSquad failed: %v", err)
		}
		if joined.ID != created.ID {
			t.Errorf("Joined squad %q, want %q", joined.ID, created.ID)
		}
		if joined.MemberCount != 2 {
			t.Errorf("MemberCount = %d, want 2", joined.MemberCount)
		}
	})

	t.Run("rejects double join", func(t *testing.T) {
		if _, err := env.squads.JoinSquad(memberCtx, created.InviteCode); !errors.Is(err, ErrAlreadyMember) {
			t.Errorf("Expected ErrAlreadyMember, got %v", err)
		}
	})

	t.Run("rejects invalid code without touching the list", func(t *testing.T) {
		before, err := env.squads.ListSquads(env.freshCtx(owner))
		if err != nil {
			t.Fatalf("ListSquads failed: %v", err)
		}
		if _, err := env.squads.JoinSquad(env.freshCtx(owner), "NOPE99"); !errors.Is(err, ErrInvalidInviteCode) {
			t.Errorf("Expected ErrInvalidInviteCode, got %v", err)
		}
		after, err := env.squads.ListSquads(env.freshCtx(owner))
		if err != nil {
			t.Fatalf("ListSquads failed: %v", err)
		}
		if len(after) != len(before) {
			t.Errorf("List changed after failed join: %d -> %d squads", len(before), len(after))
		}
	})
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func TestLeaveSquad(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerCtx := env.user(t, "owner")
	member, memberCtx := env.user(t, "member")

	created, err := env.squads.CreateSquad(ownerCtx, "Raid Night", "Destiny 2")
	if err != nil {
		t.Fatalf("CreateSquad failed: %v", err)
	}
	if _, err := env.squads.JoinSquad(memberCtx, created.InviteCode); err != nil {
		t.Fatalf("JoinSquad failed: %v", err)
	}

	t.Run("owner cannot leave", func(t *testing.T) {
		if err := env.squads.LeaveSquad(env.freshCtx(owner), created.ID); !errors.Is(err, ErrOwnerCannotLeave) {
			t.Errorf("Expected ErrOwnerCannotLeave, got %v", err)
		}
	})

	t.Run("member leaves and list shrinks", func(t *testing.T) {
		if err := env.squads.LeaveSquad(env.freshCtx(member), created.ID); err != nil {
			t.Fatalf("LeaveSquad failed: %v", err)
		}
		list, err := env.squads.ListSquads(env.freshCtx(member))
		if err != nil {
			t.Fatalf("ListSquads failed: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("Expected empty list after leaving, got %d squads", len(list))
		}
	})
}

// A leave that fails server-side must put the cached list back exactly
// as it was before the speculative removal.
func TestLeaveSquadRollsBackCachedList(t *testing.T) {
	env := newTestEnv(t)
	_, ownerCtx := env.user(t, "owner")
	member, memberCtx := env.user(t, "member")

	var squadIDs []string
	for _, name := range []string{"Alpha", "Bravo", "Charlie"} {
		created, err := env.squads.CreateSquad(ownerCtx, name, "Valorant")
		if err != nil {
			t.Fatalf("CreateSquad failed: %v", err)
		}
		if _, err := env.squads.JoinSquad(env.freshCtx(member), created.InviteCode); err != nil {
			t.Fatalf("JoinSquad failed: %v", err)
		}
		squadIDs = append(squadIDs, created.ID)
	}

	// Warm the cached list, then yank the middle membership behind the
	// cache's back so the next leave fails at the store.
	cached, err := env.squads.ListSquads(memberCtx)
	if err != nil {
		t.Fatalf("ListSquads failed: %v", err)
	}
	if len(cached) != 3 {
		t.Fatalf("Expected 3 cached squads, got %d", len(cached))
	}
	if err := env.store.RemoveMember(context.Background(), squadIDs[1], member.ID); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	if err := env.squads.LeaveSquad(env.freshCtx(member), squadIDs[1]); !errors.Is(err, ErrNotMember) {
		t.Fatalf("Expected ErrNotMember, got %v", err)
	}

	// Rollback restored the exact pre-mutation list, stale flag aside.
	value, ok := env.cache.Get(cache.SquadListKey(member.ID))
	if !ok {
		t.Fatal("Cached list missing after rollback")
	}
	restored := value.([]models.SquadSummary)
	if len(restored) != 3 {
		t.Fatalf("Rolled-back list has %d squads, want 3", len(restored))
	}
	for i, sum := range restored {
		if sum.ID != cached[i].ID {
			t.Errorf("Rolled-back list[%d] = %q, want %q", i, sum.ID, cached[i].ID)
		}
	}

	// The settlement invalidation still happened: the next read
	// refetches and converges on the server's two squads.
	list, err := env.squads.ListSquads(env.freshCtx(member))
	if err != nil {
		t.Fatalf("ListSquads failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("Expected convergence on 2 squads, got %d", len(list))
	}
}

func TestGetSquadRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	_, ownerCtx := env.user(t, "owner")
	_, strangerCtx := env.user(t, "stranger")

	created, err := env.squads.CreateSquad(ownerCtx, "Raid Night", "Destiny 2")
	if err != nil {
		t.Fatalf("CreateSquad failed: %v", err)
	}

	if _, err := env.squads.GetSquad(strangerCtx, created.ID); !errors.Is(err, ErrNotMember) {
		t.Errorf("Expected ErrNotMember for stranger, got %v", err)
	}

	detail, err := env.squads.GetSquad(ownerCtx, created.ID)
	if err != nil {
		t.Fatalf("GetSquad failed for owner: %v", err)
	}
	if len(detail.Members) != 1 {
		t.Errorf("Expected 1 member in roster, got %d", len(detail.Members))
	}
	if detail.Members[0].Role != models.RoleOwner {
		t.Errorf("Role = %q, want owner", detail.Members[0].Role)
	}
}
