// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/squadup/squadup/internal/models"
)

// Store defines the raw row access interface. This abstraction allows
// swapping storage backends (SQLite, PostgreSQL, etc.) without changing
// the service layer, and is the only place rows are read or written.
//
// All reads distinguish failure (non-nil error) from empty success
// (empty slice, or ErrNotFound for single-row reads).
type Store interface {
	// Profiles.
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetProfileByReferralCode(ctx context.Context, code string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, p *models.Profile) error

	// Squads and memberships.
	CreateSquad(ctx context.Context, squad *models.Squad) error
	GetSquad(ctx context.Context, id string) (*models.Squad, error)
	// GetSquadByInviteCode matches the code case-insensitively.
	GetSquadByInviteCode(ctx context.Context, code string) (*models.Squad, error)
	ListSquadsForUser(ctx context.Context, userID string) ([]models.Squad, error)
	AddMember(ctx context.Context, m *models.Membership) error
	RemoveMember(ctx context.Context, squadID, userID string) error
	ListMembers(ctx context.Context, squadID string) ([]models.Membership, error)
	CountMembers(ctx context.Context, squadID string) (int, error)

	// Sessions.
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessionsBySquad(ctx context.Context, squadID string) ([]models.Session, error)
	UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error
	UpdateSessionDuration(ctx context.Context, id string, minutes int) error

	// Responses and check-ins.
	UpsertResponse(ctx context.Context, r *models.Response) error
	ListResponses(ctx context.Context, sessionID string) ([]models.Response, error)
	ListResponsesByUser(ctx context.Context, userID string) ([]models.Response, error)
	UpsertCheckin(ctx context.Context, c *models.Checkin) error
	ListCheckins(ctx context.Context, sessionID string) ([]models.Checkin, error)
	ListCheckinsByUser(ctx context.Context, userID string) ([]models.Checkin, error)

	// Referrals. ReferralStats may return ErrUnsupported when the
	// backend does not ship the server-side aggregate; callers fall
	// back to computing from the raw rows.
	CreateReferral(ctx context.Context, r *models.Referral) error
	GetReferralByReferred(ctx context.Context, referredID string) (*models.Referral, error)
	UpdateReferralStatus(ctx context.Context, id string, status models.ReferralStatus, rewardClaimed bool) error
	ListReferralsByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error)
	ReferralStats(ctx context.Context, referrerID string) (*ReferralAggregate, error)

	// Close releases any resources held by the store.
	Close() error
}

// ReferralAggregate is the server-computed referral rollup.
type ReferralAggregate struct {
	ReferralCode  string
	Total         int
	SignedUp      int
	Converted     int
	Pending       int
	TotalXPEarned int
}
