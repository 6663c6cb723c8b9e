// Package aggregate holds the pure functions that turn raw rows into
// derived views. Every call site that needs counts, a user's own
// response, a member count or an attendance rate goes through this
// package. The server loader, the cache fetchers and the mutation
// success handlers must never recompute these ad hoc, so the three
// paths cannot disagree on shape or semantics.
package aggregate

import (
	"log/slog"
	"math"
	"time"

	"github.com/squadup/squadup/internal/models"
)

// CountResponses partitions responses by value. Unknown or malformed
// values are logged and ignored; they must not inflate any bucket.
func CountResponses(responses []models.Response) models.ResponseCounts {
	var counts models.ResponseCounts
	for _, r := range responses {
		switch r.Value {
		case models.ResponsePresent:
			counts.Present++
		case models.ResponseAbsent:
			counts.Absent++
		case models.ResponseMaybe:
			counts.Maybe++
		default:
			slog.Warn("Ignoring malformed response value",
				"session_id", r.SessionID,
				"user_id", r.UserID,
				"value", string(r.Value),
			)
		}
	}
	return counts
}

// MyResponse returns the response belonging to userID, if any. At most
// one row exists per (session, user) pair, so the first match wins; the
// scan does not rely on slice order.
func MyResponse(responses []models.Response, userID string) (models.ResponseValue, bool) {
	if userID == "" {
		return "", false
	}
	for _, r := range responses {
		if r.UserID == userID {
			return r.Value, true
		}
	}
	return "", false
}

// MemberCount returns the number of live membership rows. When the rows
// are unavailable (nil slice, store signalled failure) it falls back to
// the denormalized counter. The fallback is defensive, not the primary
// path: an empty-but-present slice means zero members, not "use the
// counter".
func MemberCount(members []models.Membership, storedCount int) int {
	if members == nil {
		return storedCount
	}
	return len(members)
}

// AttendanceRate returns round(checkins / presentResponses * 100),
// defined as 0 when there were no "present" responses.
func AttendanceRate(checkins, presentResponses int) int {
	if presentResponses == 0 {
		return 0
	}
	return int(math.Round(float64(checkins) / float64(presentResponses) * 100))
}

// SessionDetail assembles the derived view of a session from its raw
// rows. This is the single construction point for the view: the server
// render path, the client refetch path and the post-mutation
// recomputation path all call it with the same inputs and therefore
// produce identical results.
func SessionDetail(session models.Session, responses []models.Response, checkins []models.Checkin, userID string, now time.Time) models.SessionDetail {
	counts := CountResponses(responses)
	detail := models.SessionDetail{
		Session:        session,
		Counts:         counts,
		CheckinCount:   len(checkins),
		AttendanceRate: AttendanceRate(len(checkins), counts.Present),
	}
	detail.Status = session.EffectiveStatus(now)
	if mine, ok := MyResponse(responses, userID); ok {
		detail.MyResponse = mine
	}
	return detail
}
