package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/squadup/squadup/internal/aggregate"
	"github.com/squadup/squadup/internal/cache"
	"github.com/squadup/squadup/internal/identity"
	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/notify"
	"github.com/squadup/squadup/internal/storage"
)

// Ambiguous characters (0, O, 1, I) are excluded from invite codes.
const inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const inviteCodeLength = 6

// inviteCodeAttempts bounds regeneration on code collision.
const inviteCodeAttempts = 5

// SquadService manages squads and memberships.
type SquadService struct {
	store    storage.Store
	cache    *cache.Cache
	notifier notify.Notifier
}

// NewSquadService creates a new SquadService.
func NewSquadService(store storage.Store, c *cache.Cache, notifier notify.Notifier) *SquadService {
	return &SquadService{store: store, cache: c, notifier: notifier}
}

func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf), nil
}

// CreateSquad creates a squad owned by the caller, who becomes its
// first member. The new squad appears in the caller's list
// immediately; the operation then settles against storage.
func (s *SquadService) CreateSquad(ctx context.Context, name, activity string) (*models.SquadSummary, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("squad name is required")
	}

	squad := &models.Squad{
		ID:       uuid.New().String(),
		Name:     name,
		Activity: activity,
		OwnerID:  caller.UserID,
	}
	summary := models.SquadSummary{Squad: *squad, MemberCount: 1}

	mutation := cache.Mutation[models.SquadSummary]{
		Keys: func(sum models.SquadSummary) []cache.Key {
			return []cache.Key{cache.SquadListKey(caller.UserID)}
		},
		Update: func(c *cache.Cache, sum models.SquadSummary) {
			cache.UpdateAs(c, cache.SquadListKey(caller.UserID), func(old []models.SquadSummary, ok bool) []models.SquadSummary {
				out := make([]models.SquadSummary, 0, len(old)+1)
				out = append(out, sum)
				out = append(out, old...)
				return out
			})
		},
		InvalidateKeys: func(sum models.SquadSummary) []cache.Key {
			return []cache.Key{cache.SquadListKey(caller.UserID), cache.SquadDetailKey(sum.ID)}
		},
	}

	err = cache.Run(ctx, s.cache, mutation, summary, func(ctx context.Context) error {
		for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
			code, err := generateInviteCode()
			if err != nil {
				return err
			}
			squad.InviteCode = code
			err = s.store.CreateSquad(ctx, squad)
			if errors.Is(err, storage.ErrConflict) && attempt < inviteCodeAttempts-1 {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to create squad: %w", err)
			}
			break
		}
		member := &models.Membership{SquadID: squad.ID, UserID: caller.UserID, Role: models.RoleOwner}
		if err := s.store.AddMember(ctx, member); err != nil {
			return fmt.Errorf("failed to add owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("squad created", "squad_id", squad.ID, "owner_id", caller.UserID)
	summary.InviteCode = squad.InviteCode
	return &summary, nil
}

// ListSquads returns the caller's squads with live member counts.
func (s *SquadService) ListSquads(ctx context.Context) ([]models.SquadSummary, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return cache.FetchAs(ctx, s.cache, cache.SquadListKey(caller.UserID), func(ctx context.Context) ([]models.SquadSummary, error) {
		return storage.Read(ctx, func(ctx context.Context) ([]models.SquadSummary, error) {
			return s.loadSquadSummaries(ctx, caller.UserID)
		})
	})
}

func (s *SquadService) loadSquadSummaries(ctx context.Context, userID string) ([]models.SquadSummary, error) {
	squads, err := s.store.ListSquadsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list squads: %w", err)
	}
	summaries := make([]models.SquadSummary, 0, len(squads))
	for _, squad := range squads {
		fallback := 0
		members, err := s.store.ListMembers(ctx, squad.ID)
		if err != nil {
			// Counts degrade to a count-only read instead of failing
			// the whole list.
			slog.Warn("member list unavailable", "squad_id", squad.ID, "error", err)
			members = nil
			if n, countErr := s.store.CountMembers(ctx, squad.ID); countErr == nil {
				fallback = n
			}
		}
		summaries = append(summaries, models.SquadSummary{
			Squad:       squad,
			MemberCount: aggregate.MemberCount(members, fallback),
		})
	}
	return summaries, nil
}

// SquadDetail is a squad with its full roster.
type SquadDetail struct {
	models.Squad
	Members []models.Membership `json:"members"`
}

// GetSquad returns one squad with its roster. Callers must be members.
func (s *SquadService) GetSquad(ctx context.Context, squadID string) (*SquadDetail, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	detail, err := cache.FetchAs(ctx, s.cache, cache.SquadDetailKey(squadID), func(ctx context.Context) (*SquadDetail, error) {
		return storage.Read(ctx, func(ctx context.Context) (*SquadDetail, error) {
			return s.loadDetail(ctx, squadID)
		})
	})
	if err != nil {
		return nil, err
	}
	if !isMember(detail.Members, caller.UserID) {
		return nil, ErrNotMember
	}
	return detail, nil
}

func (s *SquadService) loadDetail(ctx context.Context, squadID string) (*SquadDetail, error) {
	squad, err := s.store.GetSquad(ctx, squadID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, squadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return &SquadDetail{Squad: *squad, Members: members}, nil
}

func isMember(members []models.Membership, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// JoinSquad adds the caller to the squad behind an invite code. The
// code is validated before any cache change, so a bad code never
// flashes a phantom squad into the list.
func (s *SquadService) JoinSquad(ctx context.Context, inviteCode string) (*models.SquadSummary, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	squad, err := s.store.GetSquadByInviteCode(ctx, inviteCode)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidInviteCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up invite code: %w", err)
	}

	members, err := s.store.ListMembers(ctx, squad.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if isMember(members, caller.UserID) {
		return nil, ErrAlreadyMember
	}

	summary := models.SquadSummary{Squad: *squad, MemberCount: len(members) + 1}

	mutation := cache.Mutation[models.SquadSummary]{
		Keys: func(sum models.SquadSummary) []cache.Key {
			return []cache.Key{cache.SquadListKey(caller.UserID), cache.SquadDetailKey(sum.ID)}
		},
		Update: func(c *cache.Cache, sum models.SquadSummary) {
			cache.UpdateAs(c, cache.SquadListKey(caller.UserID), func(old []models.SquadSummary, ok bool) []models.SquadSummary {
				out := make([]models.SquadSummary, 0, len(old)+1)
				out = append(out, old...)
				out = append(out, sum)
				return out
			})
		},
		InvalidateKeys: func(sum models.SquadSummary) []cache.Key {
			return []cache.Key{cache.SquadListKey(caller.UserID), cache.SquadDetailKey(sum.ID)}
		},
	}

	err = cache.Run(ctx, s.cache, mutation, summary, func(ctx context.Context) error {
		member := &models.Membership{SquadID: squad.ID, UserID: caller.UserID, Role: models.RoleMember}
		if err := s.store.AddMember(ctx, member); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return ErrAlreadyMember
			}
			return fmt.Errorf("failed to add member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify.Dispatch(slog.Default(), "member_joined", func() error {
		return s.notifier.MemberJoined(ctx, squad, caller.UserID)
	})
	slog.Info("member joined squad", "squad_id", squad.ID, "user_id", caller.UserID)
	return &summary, nil
}

// LeaveSquad removes the caller from a squad. The squad disappears
// from the caller's list immediately and reappears in its exact prior
// position if the removal fails.
func (s *SquadService) LeaveSquad(ctx context.Context, squadID string) error {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return err
	}

	squad, err := s.store.GetSquad(ctx, squadID)
	if err != nil {
		return err
	}
	if squad.OwnerID == caller.UserID {
		return ErrOwnerCannotLeave
	}

	mutation := cache.Mutation[string]{
		Keys: func(id string) []cache.Key {
			return []cache.Key{cache.SquadListKey(caller.UserID), cache.SquadDetailKey(id)}
		},
		Update: func(c *cache.Cache, id string) {
			cache.UpdateAs(c, cache.SquadListKey(caller.UserID), func(old []models.SquadSummary, ok bool) []models.SquadSummary {
				if !ok {
					return nil
				}
				out := make([]models.SquadSummary, 0, len(old))
				for _, sum := range old {
					if sum.ID != id {
						out = append(out, sum)
					}
				}
				return out
			})
		},
		InvalidateKeys: func(id string) []cache.Key {
			return []cache.Key{cache.SquadListKey(caller.UserID), cache.SquadDetailKey(id)}
		},
	}

	err = cache.Run(ctx, s.cache, mutation, squadID, func(ctx context.Context) error {
		if err := s.store.RemoveMember(ctx, squadID, caller.UserID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotMember
			}
			return fmt.Errorf("failed to remove member: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	notify.Dispatch(slog.Default(), "member_left", func() error {
		return s.notifier.MemberLeft(ctx, squad, caller.UserID)
	})
	slog.Info("member left squad", "squad_id", squadID, "user_id", caller.UserID)
	return nil
}
