package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/squadup/squadup/internal/models"
)

// CreateSquad persists a new squad. The invite code is stored upper-case
// so lookups can be case-insensitive without a collation.
func (s *SQLiteStore) CreateSquad(ctx context.Context, squad *models.Squad) error {
	if squad.ID == "" {
		squad.ID = uuid.New().String()
	}
	if squad.CreatedAt == 0 {
		squad.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO squads (id, name, activity, invite_code, owner_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		squad.ID, squad.Name, squad.Activity, squad.InviteCode, squad.OwnerID, squad.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert squad: %w", mapConstraintErr(err))
	}
	return nil
}

// GetSquad retrieves a squad by ID.
func (s *SQLiteStore) GetSquad(ctx context.Context, id string) (*models.Squad, error) {
	squad := &models.Squad{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, activity, invite_code, owner_id, created_at FROM squads WHERE id = ?",
		id,
	).Scan(&squad.ID, &squad.Name, &squad.Activity, &squad.InviteCode, &squad.OwnerID, &squad.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get squad: %w", mapRowErr(err))
	}
	return squad, nil
}

// GetSquadByInviteCode looks up a squad by its invite code,
// case-insensitively.
func (s *SQLiteStore) GetSquadByInviteCode(ctx context.Context, code string) (*models.Squad, error) {
	squad := &models.Squad{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, activity, invite_code, owner_id, created_at FROM squads WHERE invite_code = UPPER(?)",
		code,
	).Scan(&squad.ID, &squad.Name, &squad.Activity, &squad.InviteCode, &squad.OwnerID, &squad.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get squad by invite code: %w", mapRowErr(err))
	}
	return squad, nil
}

// ListSquadsForUser retrieves the squads the user is a member of, newest
// first.
func (s *SQLiteStore) ListSquadsForUser(ctx context.Context, userID string) ([]models.Squad, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sq.id, sq.name, sq.activity, sq.invite_code, sq.owner_id, sq.created_at
		 FROM squads sq
		 JOIN squad_members m ON m.squad_id = sq.id
		 WHERE m.user_id = ?
		 ORDER BY sq.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list squads: %w", err)
	}
	defer rows.Close()

	squads := []models.Squad{}
	for rows.Next() {
		var sq models.Squad
		if err := rows.Scan(&sq.ID, &sq.Name, &sq.Activity, &sq.InviteCode, &sq.OwnerID, &sq.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan squad: %w", err)
		}
		squads = append(squads, sq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate squads: %w", err)
	}
	return squads, nil
}

// AddMember inserts a membership row. Returns ErrConflict when the user
// is already a member.
func (s *SQLiteStore) AddMember(ctx context.Context, m *models.Membership) error {
	if m.JoinedAt == 0 {
		m.JoinedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO squad_members (squad_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)",
		m.SquadID, m.UserID, m.Role, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", mapConstraintErr(err))
	}
	return nil
}

// RemoveMember deletes the membership row.
func (s *SQLiteStore) RemoveMember(ctx context.Context, squadID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM squad_members WHERE squad_id = ? AND user_id = ?",
		squadID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to delete membership: %w", errNotFoundFor("membership", userID))
	}
	return nil
}

// ListMembers retrieves all membership rows for a squad.
func (s *SQLiteStore) ListMembers(ctx context.Context, squadID string) ([]models.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT squad_id, user_id, role, joined_at FROM squad_members WHERE squad_id = ? ORDER BY joined_at",
		squadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []models.Membership{}
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.SquadID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// CountMembers returns the number of members without loading rows.
func (s *SQLiteStore) CountMembers(ctx context.Context, squadID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM squad_members WHERE squad_id = ?", squadID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}
