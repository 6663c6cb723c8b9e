package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/squadup/squadup/internal/aggregate"
	"github.com/squadup/squadup/internal/cache"
	"github.com/squadup/squadup/internal/identity"
	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/notify"
	"github.com/squadup/squadup/internal/stats"
	"github.com/squadup/squadup/internal/storage"
)

// sessionRows is the viewer-agnostic bundle cached per session. The
// viewer-specific detail (my response, effective status at the current
// instant) is derived from it per request through the aggregate
// package, so one cached bundle serves every member.
type sessionRows struct {
	Session   models.Session
	Responses []models.Response
	Checkins  []models.Checkin
}

// SessionService manages sessions, RSVPs and check-ins.
type SessionService struct {
	store    storage.Store
	cache    *cache.Cache
	notifier notify.Notifier
	profiles *ProfileService

	// now is swappable in tests.
	now func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(store storage.Store, c *cache.Cache, notifier notify.Notifier, profiles *ProfileService) *SessionService {
	return &SessionService{
		store:    store,
		cache:    c,
		notifier: notifier,
		profiles: profiles,
		now:      time.Now,
	}
}

func (s *SessionService) fetchRows(ctx context.Context, sessionID string) (sessionRows, error) {
	return cache.FetchAs(ctx, s.cache, cache.SessionDetailKey(sessionID), func(ctx context.Context) (sessionRows, error) {
		return storage.Read(ctx, func(ctx context.Context) (sessionRows, error) {
			return s.loadRows(ctx, sessionID)
		})
	})
}

func (s *SessionService) loadRows(ctx context.Context, sessionID string) (sessionRows, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return sessionRows{}, err
	}
	responses, err := s.store.ListResponses(ctx, sessionID)
	if err != nil {
		return sessionRows{}, fmt.Errorf("failed to list responses: %w", err)
	}
	checkins, err := s.store.ListCheckins(ctx, sessionID)
	if err != nil {
		return sessionRows{}, fmt.Errorf("failed to list checkins: %w", err)
	}
	return sessionRows{Session: *session, Responses: responses, Checkins: checkins}, nil
}

// GetSession returns the derived detail view for the caller.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.SessionDetail, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.fetchRows(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	detail := aggregate.SessionDetail(rows.Session, rows.Responses, rows.Checkins, caller.UserID, s.now())
	return &detail, nil
}

// ListSessions returns a squad's sessions in schedule order.
func (s *SessionService) ListSessions(ctx context.Context, squadID string) ([]models.Session, error) {
	if _, err := identity.Resolve(ctx); err != nil {
		return nil, err
	}
	return cache.FetchAs(ctx, s.cache, cache.SessionListKey(squadID), func(ctx context.Context) ([]models.Session, error) {
		return storage.Read(ctx, func(ctx context.Context) ([]models.Session, error) {
			return s.store.ListSessionsBySquad(ctx, squadID)
		})
	})
}

// Upcoming returns the caller's future, non-cancelled sessions across
// all their squads, soonest first. Squad session lists are fetched
// concurrently.
func (s *SessionService) Upcoming(ctx context.Context) ([]models.Session, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return cache.FetchAs(ctx, s.cache, cache.SessionsUpcomingKey(caller.UserID), func(ctx context.Context) ([]models.Session, error) {
		return s.loadUpcoming(ctx, caller.UserID)
	})
}

func (s *SessionService) loadUpcoming(ctx context.Context, userID string) ([]models.Session, error) {
	squads, err := storage.Read(ctx, func(ctx context.Context) ([]models.Squad, error) {
		return s.store.ListSquadsForUser(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list squads: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	lists := make([][]models.Session, len(squads))
	for i, squad := range squads {
		g.Go(func() error {
			sessions, err := s.store.ListSessionsBySquad(gctx, squad.ID)
			if err != nil {
				return fmt.Errorf("failed to list sessions for %s: %w", squad.ID, err)
			}
			lists[i] = sessions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now().Unix()
	upcoming := []models.Session{}
	for _, list := range lists {
		for _, session := range list {
			if session.Status != models.StatusCancelled && session.EndsAt() > now {
				upcoming = append(upcoming, session)
			}
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].ScheduledAt < upcoming[j].ScheduledAt
	})
	return upcoming, nil
}

// CreateSession proposes a session for a squad. The creator is
// automatically responded "present".
func (s *SessionService) CreateSession(ctx context.Context, squadID, title string, scheduledAt int64, durationMinutes int) (*models.SessionDetail, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if durationMinutes < 0 {
		return nil, ErrInvalidDuration
	}
	members, err := s.store.ListMembers(ctx, squadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if !isMember(members, caller.UserID) {
		return nil, ErrNotMember
	}

	session := &models.Session{
		SquadID:         squadID,
		Title:           title,
		ScheduledAt:     scheduledAt,
		DurationMinutes: durationMinutes,
		CreatedBy:       caller.UserID,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	response := &models.Response{
		SessionID: session.ID,
		UserID:    caller.UserID,
		Value:     models.ResponsePresent,
	}
	if err := s.store.UpsertResponse(ctx, response); err != nil {
		return nil, fmt.Errorf("failed to record creator response: %w", err)
	}

	s.cache.Invalidate(cache.SessionListKey(squadID))
	s.cache.InvalidatePrefix(cache.SessionsUpcomingPrefix())

	notify.Dispatch(slog.Default(), "session_proposed", func() error {
		return s.notifier.SessionProposed(ctx, session)
	})
	slog.Info("session proposed", "session_id", session.ID, "squad_id", squadID)

	detail := aggregate.SessionDetail(*session, []models.Response{*response}, nil, caller.UserID, s.now())
	return &detail, nil
}

// Confirm moves a proposed session to confirmed. Creator only.
func (s *SessionService) Confirm(ctx context.Context, sessionID string) (*models.SessionDetail, error) {
	return s.transition(ctx, sessionID, models.StatusConfirmed)
}

// Cancel cancels a session. Creator only; legal from proposed or
// confirmed.
func (s *SessionService) Cancel(ctx context.Context, sessionID string) (*models.SessionDetail, error) {
	return s.transition(ctx, sessionID, models.StatusCancelled)
}

func (s *SessionService) transition(ctx context.Context, sessionID string, target models.SessionStatus) (*models.SessionDetail, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CreatedBy != caller.UserID {
		return nil, ErrNotSessionCreator
	}
	// The completed state is derived from time, never requested; the
	// state machine rejects it along with any other illegal step.
	if err := session.Transition(target); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSessionStatus(ctx, sessionID, target); err != nil {
		return nil, fmt.Errorf("failed to update session status: %w", err)
	}

	s.cache.Invalidate(cache.SessionDetailKey(sessionID))
	s.cache.Invalidate(cache.SessionListKey(session.SquadID))
	s.cache.InvalidatePrefix(cache.SessionsUpcomingPrefix())

	notify.Dispatch(slog.Default(), "session_status_changed", func() error {
		return s.notifier.SessionStatusChanged(ctx, session)
	})
	slog.Info("session status changed", "session_id", sessionID, "status", target)

	return s.GetSession(ctx, sessionID)
}

// rsvpVars carries one RSVP through the optimistic mutation.
type rsvpVars struct {
	sessionID string
	userID    string
	value     models.ResponseValue
	at        int64
}

// RSVP records the caller's response. The detail view's counts move
// immediately (the old bucket drops, the new one rises) and settle
// against storage afterwards.
func (s *SessionService) RSVP(ctx context.Context, sessionID string, value models.ResponseValue) (*models.SessionDetail, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if !value.Valid() {
		return nil, ErrInvalidResponse
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, session.SquadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if !isMember(members, caller.UserID) {
		return nil, ErrNotMember
	}
	if session.Status == models.StatusCancelled {
		return nil, fmt.Errorf("cannot respond to a cancelled session")
	}

	vars := rsvpVars{sessionID: sessionID, userID: caller.UserID, value: value, at: s.now().Unix()}

	mutation := cache.Mutation[rsvpVars]{
		Keys: func(v rsvpVars) []cache.Key {
			return []cache.Key{cache.SessionDetailKey(v.sessionID)}
		},
		Update: func(c *cache.Cache, v rsvpVars) {
			cache.UpdateAs(c, cache.SessionDetailKey(v.sessionID), func(old sessionRows, ok bool) sessionRows {
				if !ok {
					return old
				}
				return old.withResponse(models.Response{
					SessionID:   v.sessionID,
					UserID:      v.userID,
					Value:       v.value,
					RespondedAt: v.at,
				})
			})
		},
		InvalidateKeys: func(v rsvpVars) []cache.Key {
			return []cache.Key{cache.SessionDetailKey(v.sessionID)}
		},
	}

	err = cache.Run(ctx, s.cache, mutation, vars, func(ctx context.Context) error {
		response := &models.Response{
			SessionID:   sessionID,
			UserID:      caller.UserID,
			Value:       value,
			RespondedAt: vars.at,
		}
		if err := s.store.UpsertResponse(ctx, response); err != nil {
			return fmt.Errorf("failed to upsert response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidatePrefix(cache.SessionsUpcomingPrefix())

	notify.Dispatch(slog.Default(), "rsvp_posted", func() error {
		return s.notifier.RSVPPosted(ctx, session, caller.UserID, value)
	})

	return s.GetSession(ctx, sessionID)
}

// withResponse returns a copy of the bundle with one response replaced
// or appended. The receiver's slices are never mutated; the previous
// value may be held by a rollback snapshot.
func (r sessionRows) withResponse(response models.Response) sessionRows {
	out := r
	out.Responses = make([]models.Response, 0, len(r.Responses)+1)
	replaced := false
	for _, existing := range r.Responses {
		if existing.UserID == response.UserID {
			out.Responses = append(out.Responses, response)
			replaced = true
		} else {
			out.Responses = append(out.Responses, existing)
		}
	}
	if !replaced {
		out.Responses = append(out.Responses, response)
	}
	return out
}

// CheckinResult is what a successful check-in reports back.
type CheckinResult struct {
	Detail *models.SessionDetail `json:"session"`
	Streak stats.StreakResult    `json:"streak"`
}

// Checkin records actual attendance. Only allowed for confirmed
// sessions inside the check-in window, from 15 minutes before the
// start until the session ends. Checking in advances the caller's
// streak and refreshes their derived counters.
func (s *SessionService) Checkin(ctx context.Context, sessionID string) (*CheckinResult, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, session.SquadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if !isMember(members, caller.UserID) {
		return nil, ErrNotMember
	}
	now := s.now()
	if session.Status != models.StatusConfirmed {
		return nil, ErrSessionNotConfirmed
	}
	if !session.CheckinOpen(now) {
		return nil, ErrCheckinClosed
	}

	checkin := &models.Checkin{SessionID: sessionID, UserID: caller.UserID, CheckedAt: now.Unix()}
	if err := s.store.UpsertCheckin(ctx, checkin); err != nil {
		return nil, fmt.Errorf("failed to record checkin: %w", err)
	}

	streak, err := s.profiles.applyCheckin(ctx, caller.UserID, now)
	if err != nil {
		// The check-in row is durable; stat maintenance failing must
		// not look like a failed check-in.
		slog.Error("failed to apply checkin stats", "user_id", caller.UserID, "error", err)
	}

	s.cache.Invalidate(cache.SessionDetailKey(sessionID))
	s.cache.Invalidate(cache.ProfileKey(caller.UserID))

	detail, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	slog.Info("checked in", "session_id", sessionID, "user_id", caller.UserID, "streak_days", streak.Days)
	return &CheckinResult{Detail: detail, Streak: streak}, nil
}

// durationVars carries a duration edit through the optimistic mutation.
type durationVars struct {
	sessionID string
	minutes   int
}

// UpdateDuration changes a session's length. Creator only. The detail
// view reflects the new duration immediately; repeated edits settle on
// the last committed value regardless of response order.
func (s *SessionService) UpdateDuration(ctx context.Context, sessionID string, minutes int) (*models.SessionDetail, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if minutes <= 0 {
		return nil, ErrInvalidDuration
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CreatedBy != caller.UserID {
		return nil, ErrNotSessionCreator
	}

	mutation := cache.Mutation[durationVars]{
		Keys: func(v durationVars) []cache.Key {
			return []cache.Key{cache.SessionDetailKey(v.sessionID)}
		},
		Update: func(c *cache.Cache, v durationVars) {
			cache.UpdateAs(c, cache.SessionDetailKey(v.sessionID), func(old sessionRows, ok bool) sessionRows {
				if !ok {
					return old
				}
				out := old
				out.Session.DurationMinutes = v.minutes
				return out
			})
		},
		InvalidateKeys: func(v durationVars) []cache.Key {
			return []cache.Key{cache.SessionDetailKey(v.sessionID)}
		},
	}

	err = cache.Run(ctx, s.cache, mutation, durationVars{sessionID: sessionID, minutes: minutes}, func(ctx context.Context) error {
		if err := s.store.UpdateSessionDuration(ctx, sessionID, minutes); err != nil {
			return fmt.Errorf("failed to update duration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(cache.SessionListKey(session.SquadID))
	s.cache.InvalidatePrefix(cache.SessionsUpcomingPrefix())

	return s.GetSession(ctx, sessionID)
}
