// Package notify fans squad events out to interested members. Delivery
// is best effort: a failed notification is logged and never fails the
// operation that triggered it.
package notify

import (
	"context"
	"log/slog"

	"github.com/squadup/squadup/internal/models"
)

// Notifier delivers squad and session events.
type Notifier interface {
	MemberJoined(ctx context.Context, squad *models.Squad, userID string) error
	MemberLeft(ctx context.Context, squad *models.Squad, userID string) error
	SessionProposed(ctx context.Context, session *models.Session) error
	SessionStatusChanged(ctx context.Context, session *models.Session) error
	RSVPPosted(ctx context.Context, session *models.Session, userID string, value models.ResponseValue) error
}

// LogNotifier writes events to the structured log. It stands in for a
// push gateway in development and in tests.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs events.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

var _ Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) MemberJoined(ctx context.Context, squad *models.Squad, userID string) error {
	n.logger.InfoContext(ctx, "member joined", "squad_id", squad.ID, "user_id", userID)
	return nil
}

func (n *LogNotifier) MemberLeft(ctx context.Context, squad *models.Squad, userID string) error {
	n.logger.InfoContext(ctx, "member left", "squad_id", squad.ID, "user_id", userID)
	return nil
}

func (n *LogNotifier) SessionProposed(ctx context.Context, session *models.Session) error {
	n.logger.InfoContext(ctx, "session proposed", "session_id", session.ID, "squad_id", session.SquadID)
	return nil
}

func (n *LogNotifier) SessionStatusChanged(ctx context.Context, session *models.Session) error {
	n.logger.InfoContext(ctx, "session status changed", "session_id", session.ID, "status", session.Status)
	return nil
}

func (n *LogNotifier) RSVPPosted(ctx context.Context, session *models.Session, userID string, value models.ResponseValue) error {
	n.logger.InfoContext(ctx, "rsvp posted", "session_id", session.ID, "user_id", userID, "value", value)
	return nil
}

// Dispatch runs fn and logs the error instead of returning it.
func Dispatch(logger *slog.Logger, event string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("notification failed", "event", event, "error", err)
	}
}
