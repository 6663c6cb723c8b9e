package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/squadup/squadup/internal/models"
)

const sessionColumns = "id, squad_id, title, scheduled_at, duration_minutes, status, created_by, created_at"

// CreateSession persists a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt == 0 {
		session.CreatedAt = time.Now().Unix()
	}
	if session.DurationMinutes == 0 {
		session.DurationMinutes = models.DefaultDurationMinutes
	}
	if session.Status == "" {
		session.Status = models.StatusProposed
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		session.ID, session.SquadID, session.Title, session.ScheduledAt,
		session.DurationMinutes, session.Status, session.CreatedBy, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session := &models.Session{}
	err := s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id,
	).Scan(&session.ID, &session.SquadID, &session.Title, &session.ScheduledAt,
		&session.DurationMinutes, &session.Status, &session.CreatedBy, &session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", mapRowErr(err))
	}
	return session, nil
}

// ListSessionsBySquad retrieves a squad's sessions ordered by scheduled
// time.
func (s *SQLiteStore) ListSessionsBySquad(ctx context.Context, squadID string) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE squad_id = ? ORDER BY scheduled_at",
		squadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.SquadID, &sess.Title, &sess.ScheduledAt,
			&sess.DurationMinutes, &sess.Status, &sess.CreatedBy, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// UpdateSessionStatus writes the new persisted status.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update session status: %w", errNotFoundFor("session", id))
	}
	return nil
}

// UpdateSessionDuration edits the session's duration.
func (s *SQLiteStore) UpdateSessionDuration(ctx context.Context, id string, minutes int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET duration_minutes = ? WHERE id = ?", minutes, id)
	if err != nil {
		return fmt.Errorf("failed to update session duration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update session duration: %w", errNotFoundFor("session", id))
	}
	return nil
}

// UpsertResponse writes the user's RSVP, overwriting any earlier value.
// No history is retained.
func (s *SQLiteStore) UpsertResponse(ctx context.Context, r *models.Response) error {
	if r.RespondedAt == 0 {
		r.RespondedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_responses (session_id, user_id, value, responded_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (session_id, user_id) DO UPDATE SET value = excluded.value, responded_at = excluded.responded_at`,
		r.SessionID, r.UserID, r.Value, r.RespondedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert response: %w", err)
	}
	return nil
}

// ListResponses retrieves all RSVP rows for a session.
func (s *SQLiteStore) ListResponses(ctx context.Context, sessionID string) ([]models.Response, error) {
	return s.listResponses(ctx,
		"SELECT session_id, user_id, value, responded_at FROM session_responses WHERE session_id = ?",
		sessionID)
}

// ListResponsesByUser retrieves all of a user's RSVP rows across
// sessions, for profile counter recomputation.
func (s *SQLiteStore) ListResponsesByUser(ctx context.Context, userID string) ([]models.Response, error) {
	return s.listResponses(ctx,
		"SELECT session_id, user_id, value, responded_at FROM session_responses WHERE user_id = ?",
		userID)
}

func (s *SQLiteStore) listResponses(ctx context.Context, query, arg string) ([]models.Response, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	responses := []models.Response{}
	for rows.Next() {
		var r models.Response
		if err := rows.Scan(&r.SessionID, &r.UserID, &r.Value, &r.RespondedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate responses: %w", err)
	}
	return responses, nil
}

// UpsertCheckin records actual attendance; re-checking in refreshes the
// timestamp but keeps a single row per (session, user).
func (s *SQLiteStore) UpsertCheckin(ctx context.Context, c *models.Checkin) error {
	if c.CheckedAt == 0 {
		c.CheckedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_checkins (session_id, user_id, checked_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (session_id, user_id) DO UPDATE SET checked_at = excluded.checked_at`,
		c.SessionID, c.UserID, c.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert checkin: %w", err)
	}
	return nil
}

// ListCheckins retrieves all check-in rows for a session.
func (s *SQLiteStore) ListCheckins(ctx context.Context, sessionID string) ([]models.Checkin, error) {
	return s.listCheckins(ctx,
		"SELECT session_id, user_id, checked_at FROM session_checkins WHERE session_id = ?",
		sessionID)
}

// ListCheckinsByUser retrieves all of a user's check-in rows.
func (s *SQLiteStore) ListCheckinsByUser(ctx context.Context, userID string) ([]models.Checkin, error) {
	return s.listCheckins(ctx,
		"SELECT session_id, user_id, checked_at FROM session_checkins WHERE user_id = ?",
		userID)
}

func (s *SQLiteStore) listCheckins(ctx context.Context, query, arg string) ([]models.Checkin, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkins: %w", err)
	}
	defer rows.Close()

	checkins := []models.Checkin{}
	for rows.Next() {
		var c models.Checkin
		if err := rows.Scan(&c.SessionID, &c.UserID, &c.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkin: %w", err)
		}
		checkins = append(checkins, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkins: %w", err)
	}
	return checkins, nil
}
