package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/storage"
)

// xpPerConvertedReferral mirrors the reward granted when a referred user
// converts.
const xpPerConvertedReferral = 100

// CreateReferral persists a new referral ledger row.
func (s *SQLiteStore) CreateReferral(ctx context.Context, r *models.Referral) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}
	if r.Status == "" {
		r.Status = models.ReferralPending
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO referrals (id, referrer_id, referred_id, code, status, reward_claimed, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.ReferrerID, r.ReferredID, r.Code, r.Status, r.RewardClaimed, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert referral: %w", err)
	}
	return nil
}

// ListReferralsByReferrer retrieves the raw referral rows for a user.
func (s *SQLiteStore) ListReferralsByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, referrer_id, referred_id, code, status, reward_claimed, created_at FROM referrals WHERE referrer_id = ? ORDER BY created_at DESC",
		referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	defer rows.Close()

	referrals := []models.Referral{}
	for rows.Next() {
		var r models.Referral
		if err := rows.Scan(&r.ID, &r.ReferrerID, &r.ReferredID, &r.Code, &r.Status, &r.RewardClaimed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		referrals = append(referrals, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate referrals: %w", err)
	}
	return referrals, nil
}

// GetReferralByReferred retrieves the referral row that brought in a
// user, if any.
func (s *SQLiteStore) GetReferralByReferred(ctx context.Context, referredID string) (*models.Referral, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, referrer_id, referred_id, code, status, reward_claimed, created_at FROM referrals WHERE referred_id = ?",
		referredID,
	)
	var r models.Referral
	if err := row.Scan(&r.ID, &r.ReferrerID, &r.ReferredID, &r.Code, &r.Status, &r.RewardClaimed, &r.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to get referral: %w", mapRowErr(err))
	}
	return &r, nil
}

// UpdateReferralStatus moves a referral through the funnel.
func (s *SQLiteStore) UpdateReferralStatus(ctx context.Context, id string, status models.ReferralStatus, rewardClaimed bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE referrals SET status = ?, reward_claimed = ? WHERE id = ?",
		status, rewardClaimed, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update referral: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update referral: %w", errNotFoundFor("referral", id))
	}
	return nil
}

// ReferralStats computes the referral rollup server-side in one query.
// Backends without the referrals table report storage.ErrUnsupported so
// callers can fall back to client-side computation.
func (s *SQLiteStore) ReferralStats(ctx context.Context, referrerID string) (*storage.ReferralAggregate, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'referrals'",
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to probe referrals table: %w", err)
	}
	if exists == 0 {
		return nil, storage.ErrUnsupported
	}

	agg := &storage.ReferralAggregate{}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		    COALESCE(SUM(CASE WHEN status = 'signed_up' THEN 1 ELSE 0 END), 0),
		    COALESCE(SUM(CASE WHEN status = 'converted' THEN 1 ELSE 0 END), 0),
		    COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0)
		 FROM referrals WHERE referrer_id = ?`,
		referrerID,
	).Scan(&agg.Total, &agg.SignedUp, &agg.Converted, &agg.Pending)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate referrals: %w", err)
	}
	agg.TotalXPEarned = agg.Converted * xpPerConvertedReferral

	var code string
	err = s.db.QueryRowContext(ctx,
		"SELECT referral_code FROM profiles WHERE id = ?", referrerID,
	).Scan(&code)
	if err != nil {
		return nil, fmt.Errorf("failed to read referral code: %w", mapRowErr(err))
	}
	agg.ReferralCode = code

	return agg, nil
}
