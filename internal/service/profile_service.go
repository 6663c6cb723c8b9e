package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/squadup/squadup/internal/aggregate"
	"github.com/squadup/squadup/internal/cache"
	"github.com/squadup/squadup/internal/identity"
	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/stats"
	"github.com/squadup/squadup/internal/storage"
)

// ProfileView is the profile as the owner sees it: the stored row
// (minus credentials) plus streak presentation data.
type ProfileView struct {
	ID               string          `json:"id"`
	Handle           string          `json:"handle"`
	Email            string          `json:"email"`
	TotalSessions    int             `json:"total_sessions"`
	TotalCheckins    int             `json:"total_checkins"`
	ReliabilityScore int             `json:"reliability_score"`
	StreakDays       int             `json:"streak_days"`
	FlameIntensity   int             `json:"flame_intensity"`
	NextMilestone    stats.Milestone `json:"next_milestone"`
	XP               int             `json:"xp"`
	Level            int             `json:"level"`
	ReferralCode     string          `json:"referral_code"`
	CreatedAt        int64           `json:"created_at"`
}

// ProfileService manages profiles and their derived counters.
type ProfileService struct {
	store storage.Store
	cache *cache.Cache
}

// NewProfileService creates a new ProfileService.
func NewProfileService(store storage.Store, c *cache.Cache) *ProfileService {
	return &ProfileService{store: store, cache: c}
}

func viewOf(p *models.Profile) *ProfileView {
	return &ProfileView{
		ID:               p.ID,
		Handle:           p.Handle,
		Email:            p.Email,
		TotalSessions:    p.TotalSessions,
		TotalCheckins:    p.TotalCheckins,
		ReliabilityScore: p.ReliabilityScore,
		StreakDays:       p.StreakDays,
		FlameIntensity:   stats.FlameIntensity(p.StreakDays),
		NextMilestone:    stats.NextMilestone(p.StreakDays),
		XP:               p.XP,
		Level:            p.Level,
		ReferralCode:     p.ReferralCode,
		CreatedAt:        p.CreatedAt,
	}
}

// GetProfile returns the caller's own profile view.
func (s *ProfileService) GetProfile(ctx context.Context) (*ProfileView, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return cache.FetchAs(ctx, s.cache, cache.ProfileKey(caller.UserID), func(ctx context.Context) (*ProfileView, error) {
		return s.loadView(ctx, caller.UserID)
	})
}

func (s *ProfileService) loadView(ctx context.Context, userID string) (*ProfileView, error) {
	profile, err := storage.Read(ctx, func(ctx context.Context) (*models.Profile, error) {
		return s.store.GetProfile(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return viewOf(profile), nil
}

// Referrals returns the caller's referral summary. The storage backend
// computes it when it can; otherwise the summary is assembled here from
// the raw rows. A profile without a referral code gets one minted on
// first ask.
func (s *ProfileService) Referrals(ctx context.Context) (*stats.ReferralSummary, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return cache.FetchAs(ctx, s.cache, cache.ReferralStatsKey(caller.UserID), func(ctx context.Context) (*stats.ReferralSummary, error) {
		profile, err := s.store.GetProfile(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if profile.ReferralCode == "" {
			profile.ReferralCode = stats.ReferralCode(profile.Handle)
			if err := s.store.UpdateProfile(ctx, profile); err != nil {
				return nil, fmt.Errorf("failed to save referral code: %w", err)
			}
		}

		agg, err := s.store.ReferralStats(ctx, caller.UserID)
		if err == nil {
			summary := stats.SummaryFromAggregate(agg.ReferralCode, agg.Total, agg.SignedUp, agg.Converted, agg.Pending)
			return &summary, nil
		}
		if !errors.Is(err, storage.ErrUnsupported) {
			return nil, fmt.Errorf("failed to aggregate referrals: %w", err)
		}

		// Backend cannot aggregate; compute from the rows. Both paths
		// must produce the same numbers.
		slog.Debug("referral aggregate unsupported, computing from rows", "user_id", caller.UserID)
		rows, err := s.store.ListReferralsByReferrer(ctx, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to list referrals: %w", err)
		}
		summary := stats.ComputeReferralSummary(profile.ReferralCode, rows)
		return &summary, nil
	})
}

// applyCheckin advances the streak, refreshes the derived counters and
// settles any referral conversion for a user who just checked in.
func (s *ProfileService) applyCheckin(ctx context.Context, userID string, now time.Time) (stats.StreakResult, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return stats.StreakResult{}, err
	}

	firstCheckin := profile.TotalCheckins == 0
	result := stats.AdvanceStreak(profile, now)

	if err := s.recomputeCounters(ctx, profile); err != nil {
		return result, err
	}
	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		return result, fmt.Errorf("failed to update profile: %w", err)
	}
	s.cache.Invalidate(cache.ProfileKey(userID))

	if firstCheckin {
		if err := s.convertReferral(ctx, userID); err != nil {
			slog.Warn("referral conversion failed", "user_id", userID, "error", err)
		}
	}
	return result, nil
}

// recomputeCounters refreshes the denormalized attendance counters on
// the profile from the raw rows.
func (s *ProfileService) recomputeCounters(ctx context.Context, profile *models.Profile) error {
	responses, err := s.store.ListResponsesByUser(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("failed to list responses: %w", err)
	}
	checkins, err := s.store.ListCheckinsByUser(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("failed to list checkins: %w", err)
	}

	present := aggregate.CountResponses(responses).Present
	profile.TotalSessions = present
	profile.TotalCheckins = len(checkins)
	profile.ReliabilityScore = aggregate.AttendanceRate(len(checkins), present)
	return nil
}

// convertReferral marks the referral that brought this user in as
// converted and pays the referrer.
func (s *ProfileService) convertReferral(ctx context.Context, referredID string) error {
	referral, err := s.store.GetReferralByReferred(ctx, referredID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if referral.Status == models.ReferralConverted {
		return nil
	}

	if err := s.store.UpdateReferralStatus(ctx, referral.ID, models.ReferralConverted, true); err != nil {
		return err
	}

	referrer, err := s.store.GetProfile(ctx, referral.ReferrerID)
	if err != nil {
		return err
	}
	referrer.XP += stats.XPPerConversion
	referrer.Level = stats.LevelForXP(referrer.XP)
	if err := s.store.UpdateProfile(ctx, referrer); err != nil {
		return err
	}

	s.cache.Invalidate(cache.ProfileKey(referral.ReferrerID))
	s.cache.Invalidate(cache.ReferralStatsKey(referral.ReferrerID))
	slog.Info("referral converted", "referrer_id", referral.ReferrerID, "referred_id", referredID)
	return nil
}
