package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "squadup-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestProfile(t *testing.T, store *SQLiteStore, handle, email string) *models.Profile {
	t.Helper()
	p := &models.Profile{Handle: handle, Email: email, PasswordHash: "x"}
	if err := store.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	return p
}

func TestSQLiteStore_Squads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := createTestProfile(t, store, "alice", "alice@example.com")

	squad := &models.Squad{Name: "Night Owls", Activity: "Valorant", InviteCode: "ABC234", OwnerID: owner.ID}

	t.Run("CreateSquad generates ID and timestamp", func(t *testing.T) {
		if err := store.CreateSquad(ctx, squad); err != nil {
			t.Fatalf("CreateSquad failed: %v", err)
		}
		if squad.ID == "" {
			t.Error("Expected squad ID to be generated")
		}
		if squad.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("GetSquadByInviteCode is case-insensitive", func(t *testing.T) {
		got, err := store.GetSquadByInviteCode(ctx, "abc234")
		if err != nil {
			t.Fatalf("GetSquadByInviteCode failed: %v", err)
		}
		if got.ID != squad.ID {
			t.Errorf("Got squad %s, want %s", got.ID, squad.ID)
		}
	})

	t.Run("GetSquadByInviteCode unknown code is ErrNotFound", func(t *testing.T) {
		_, err := store.GetSquadByInviteCode(ctx, "ZZZZZZ")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("AddMember enforces uniqueness", func(t *testing.T) {
		m := &models.Membership{SquadID: squad.ID, UserID: owner.ID, Role: models.RoleOwner}
		if err := store.AddMember(ctx, m); err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}

		dup := &models.Membership{SquadID: squad.ID, UserID: owner.ID, Role: models.RoleMember}
		err := store.AddMember(ctx, dup)
		if !errors.Is(err, storage.ErrConflict) {
			t.Errorf("Expected ErrConflict, got %v", err)
		}
	})

	t.Run("ListMembers and CountMembers agree", func(t *testing.T) {
		member := createTestProfile(t, store, "bob", "bob@example.com")
		if err := store.AddMember(ctx, &models.Membership{SquadID: squad.ID, UserID: member.ID, Role: models.RoleMember}); err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}

		members, err := store.ListMembers(ctx, squad.ID)
		if err != nil {
			t.Fatalf("ListMembers failed: %v", err)
		}
		count, err := store.CountMembers(ctx, squad.ID)
		if err != nil {
			t.Fatalf("CountMembers failed: %v", err)
		}
		if len(members) != count {
			t.Errorf("ListMembers returned %d rows but CountMembers says %d", len(members), count)
		}
		if count != 2 {
			t.Errorf("Expected 2 members, got %d", count)
		}
	})

	t.Run("RemoveMember deletes the row", func(t *testing.T) {
		member := createTestProfile(t, store, "carol", "carol@example.com")
		if err := store.AddMember(ctx, &models.Membership{SquadID: squad.ID, UserID: member.ID, Role: models.RoleMember}); err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
		if err := store.RemoveMember(ctx, squad.ID, member.ID); err != nil {
			t.Fatalf("RemoveMember failed: %v", err)
		}
		err := store.RemoveMember(ctx, squad.ID, member.ID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on second removal, got %v", err)
		}
	})
}

func TestSQLiteStore_SessionsAndResponses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := createTestProfile(t, store, "alice", "alice@example.com")

	squad := &models.Squad{Name: "Raiders", Activity: "WoW", InviteCode: "RAID01", OwnerID: owner.ID}
	if err := store.CreateSquad(ctx, squad); err != nil {
		t.Fatalf("CreateSquad failed: %v", err)
	}

	session := &models.Session{
		SquadID:     squad.ID,
		Title:       "Weekly raid",
		ScheduledAt: time.Now().Add(24 * time.Hour).Unix(),
		CreatedBy:   owner.ID,
	}

	t.Run("CreateSession applies defaults", func(t *testing.T) {
		if err := store.CreateSession(ctx, session); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if session.Status != models.StatusProposed {
			t.Errorf("Expected proposed status, got %s", session.Status)
		}
		if session.DurationMinutes != models.DefaultDurationMinutes {
			t.Errorf("Expected default duration, got %d", session.DurationMinutes)
		}
	})

	t.Run("UpsertResponse overwrites without history", func(t *testing.T) {
		r := &models.Response{SessionID: session.ID, UserID: owner.ID, Value: models.ResponseMaybe}
		if err := store.UpsertResponse(ctx, r); err != nil {
			t.Fatalf("UpsertResponse failed: %v", err)
		}

		r2 := &models.Response{SessionID: session.ID, UserID: owner.ID, Value: models.ResponsePresent}
		if err := store.UpsertResponse(ctx, r2); err != nil {
			t.Fatalf("UpsertResponse (overwrite) failed: %v", err)
		}

		responses, err := store.ListResponses(ctx, session.ID)
		if err != nil {
			t.Fatalf("ListResponses failed: %v", err)
		}
		if len(responses) != 1 {
			t.Fatalf("Expected 1 response row, got %d", len(responses))
		}
		if responses[0].Value != models.ResponsePresent {
			t.Errorf("Expected later write to win, got %s", responses[0].Value)
		}
	})

	t.Run("UpsertCheckin keeps one row per pair", func(t *testing.T) {
		c := &models.Checkin{SessionID: session.ID, UserID: owner.ID}
		if err := store.UpsertCheckin(ctx, c); err != nil {
			t.Fatalf("UpsertCheckin failed: %v", err)
		}
		if err := store.UpsertCheckin(ctx, &models.Checkin{SessionID: session.ID, UserID: owner.ID}); err != nil {
			t.Fatalf("UpsertCheckin (repeat) failed: %v", err)
		}

		checkins, err := store.ListCheckins(ctx, session.ID)
		if err != nil {
			t.Fatalf("ListCheckins failed: %v", err)
		}
		if len(checkins) != 1 {
			t.Errorf("Expected 1 checkin row, got %d", len(checkins))
		}
	})

	t.Run("UpdateSessionStatus on missing session is ErrNotFound", func(t *testing.T) {
		err := store.UpdateSessionStatus(ctx, "missing-id", models.StatusConfirmed)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestSQLiteStore_ReferralStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	referrer := createTestProfile(t, store, "alice", "alice@example.com")
	referrer.ReferralCode = "ALICE-SP26"
	if err := store.UpdateProfile(ctx, referrer); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	statuses := []models.ReferralStatus{
		models.ReferralConverted, models.ReferralConverted,
		models.ReferralSignedUp, models.ReferralPending,
	}
	for _, st := range statuses {
		err := store.CreateReferral(ctx, &models.Referral{
			ReferrerID: referrer.ID,
			Code:       referrer.ReferralCode,
			Status:     st,
		})
		if err != nil {
			t.Fatalf("CreateReferral failed: %v", err)
		}
	}

	agg, err := store.ReferralStats(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("ReferralStats failed: %v", err)
	}
	if agg.Total != 4 || agg.Converted != 2 || agg.SignedUp != 1 || agg.Pending != 1 {
		t.Errorf("Unexpected aggregate: %+v", agg)
	}
	if agg.TotalXPEarned != 2*xpPerConvertedReferral {
		t.Errorf("Expected %d XP, got %d", 2*xpPerConvertedReferral, agg.TotalXPEarned)
	}
	if agg.ReferralCode != "ALICE-SP26" {
		t.Errorf("Expected referral code passthrough, got %q", agg.ReferralCode)
	}
}
