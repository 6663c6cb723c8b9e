package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/squadup/squadup/internal/aggregate"
	"github.com/squadup/squadup/internal/cache"
	"github.com/squadup/squadup/internal/identity"
	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/storage"
)

// PageSnapshot is everything the home screen needs, assembled in one
// pass so all views reflect the same instant.
type PageSnapshot struct {
	Squads   []models.SquadSummary `json:"squads"`
	Upcoming []models.Session      `json:"upcoming"`
	Profile  *ProfileView          `json:"profile"`
}

// PageLoader assembles the home snapshot and pushes it through the
// one-shot seeding bridge so follow-up reads start warm instead of
// refetching what the page load already computed.
type PageLoader struct {
	cache    *cache.Cache
	squads   *SquadService
	sessions *SessionService
	profiles *ProfileService
}

// NewPageLoader creates a new PageLoader.
func NewPageLoader(c *cache.Cache, squads *SquadService, sessions *SessionService, profiles *ProfileService) *PageLoader {
	return &PageLoader{cache: c, squads: squads, sessions: sessions, profiles: profiles}
}

// LoadHome fetches the caller's squads, upcoming feed and profile
// concurrently and seeds the cache with the result.
func (l *PageLoader) LoadHome(ctx context.Context) (*PageSnapshot, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &PageSnapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		squads, err := l.squads.loadSquadSummaries(gctx, caller.UserID)
		if err == nil {
			snapshot.Squads = squads
		}
		return err
	})
	g.Go(func() error {
		upcoming, err := l.sessions.loadUpcoming(gctx, caller.UserID)
		if err == nil {
			snapshot.Upcoming = upcoming
		}
		return err
	})
	g.Go(func() error {
		profile, err := l.profiles.loadView(gctx, caller.UserID)
		if err == nil {
			snapshot.Profile = profile
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Each load gets its own seeder: seeding is one-shot per page, and
	// it never overwrites entries refreshed since assembly began.
	cache.NewSeeder(l.cache).Seed(map[cache.Key]any{
		cache.SquadListKey(caller.UserID):        snapshot.Squads,
		cache.SessionsUpcomingKey(caller.UserID): snapshot.Upcoming,
		cache.ProfileKey(caller.UserID):          snapshot.Profile,
	})
	return snapshot, nil
}

// SquadPageSnapshot is the server-render view of one squad: the squad
// with its roster plus every session already carrying the caller's
// derived detail.
type SquadPageSnapshot struct {
	SquadDetail
	Sessions []models.SessionDetail `json:"sessions"`
}

// LoadSquadPage assembles one squad's page and seeds the squad detail,
// session list and per-session row bundles so the follow-up reads the
// page triggers are all warm. Callers must be members.
func (l *PageLoader) LoadSquadPage(ctx context.Context, squadID string) (*SquadPageSnapshot, error) {
	caller, err := identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	detail, err := storage.Read(ctx, func(ctx context.Context) (*SquadDetail, error) {
		return l.squads.loadDetail(ctx, squadID)
	})
	if err != nil {
		return nil, err
	}
	if !isMember(detail.Members, caller.UserID) {
		return nil, ErrNotMember
	}

	sessions, err := storage.Read(ctx, func(ctx context.Context) ([]models.Session, error) {
		return l.sessions.store.ListSessionsBySquad(ctx, squadID)
	})
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	bundles := make([]sessionRows, len(sessions))
	for i, session := range sessions {
		g.Go(func() error {
			rows, err := l.sessions.loadRows(gctx, session.ID)
			if err != nil {
				return err
			}
			bundles[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := l.sessions.now()
	snapshot := &SquadPageSnapshot{
		SquadDetail: *detail,
		Sessions:    make([]models.SessionDetail, 0, len(bundles)),
	}
	seeds := map[cache.Key]any{
		cache.SquadDetailKey(squadID): detail,
		cache.SessionListKey(squadID): sessions,
	}
	for _, rows := range bundles {
		snapshot.Sessions = append(snapshot.Sessions,
			aggregate.SessionDetail(rows.Session, rows.Responses, rows.Checkins, caller.UserID, now))
		seeds[cache.SessionDetailKey(rows.Session.ID)] = rows
	}
	cache.NewSeeder(l.cache).Seed(seeds)
	return snapshot, nil
}
