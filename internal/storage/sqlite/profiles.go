package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/squadup/squadup/internal/models"
)

// CreateProfile persists a new user profile.
func (s *SQLiteStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	if p.Level == 0 {
		p.Level = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, handle, email, password_hash, total_sessions, total_checkins,
		    reliability_score, streak_days, streak_last_date, xp, level, referral_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Handle, p.Email, p.PasswordHash, p.TotalSessions, p.TotalCheckins,
		p.ReliabilityScore, p.StreakDays, p.StreakLastDate, p.XP, p.Level, p.ReferralCode, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *SQLiteStore) scanProfile(row interface{ Scan(...any) error }) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(&p.ID, &p.Handle, &p.Email, &p.PasswordHash, &p.TotalSessions, &p.TotalCheckins,
		&p.ReliabilityScore, &p.StreakDays, &p.StreakLastDate, &p.XP, &p.Level, &p.ReferralCode, &p.CreatedAt)
	if err != nil {
		return nil, mapRowErr(err)
	}
	return p, nil
}

const profileColumns = `id, handle, email, password_hash, total_sessions, total_checkins,
	reliability_score, streak_days, streak_last_date, xp, level, referral_code, created_at`

// GetProfile retrieves a profile by user ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id = ?", id)
	p, err := s.scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetProfileByEmail retrieves a profile by email address.
func (s *SQLiteStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE email = ?", email)
	p, err := s.scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return p, nil
}

// GetProfileByReferralCode retrieves the profile owning a referral code.
// Codes are stored upper-case; lookup is case-insensitive.
func (s *SQLiteStore) GetProfileByReferralCode(ctx context.Context, code string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE referral_code = UPPER(?)", code)
	p, err := s.scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by referral code: %w", err)
	}
	return p, nil
}

// UpdateProfile rewrites a profile's mutable columns.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, p *models.Profile) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET handle = ?, total_sessions = ?, total_checkins = ?,
		    reliability_score = ?, streak_days = ?, streak_last_date = ?, xp = ?, level = ?,
		    referral_code = ?
		 WHERE id = ?`,
		p.Handle, p.TotalSessions, p.TotalCheckins,
		p.ReliabilityScore, p.StreakDays, p.StreakLastDate, p.XP, p.Level,
		p.ReferralCode, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update profile: %w", errNotFoundFor("profile", p.ID))
	}
	return nil
}
