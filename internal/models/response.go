package models

// ResponseValue is a user's stated intention for a session.
type ResponseValue string

const (
	ResponsePresent ResponseValue = "present"
	ResponseAbsent  ResponseValue = "absent"
	ResponseMaybe   ResponseValue = "maybe"
)

// Valid reports whether v is one of the three defined response values.
// Anything else must never be counted into a bucket.
func (v ResponseValue) Valid() bool {
	switch v {
	case ResponsePresent, ResponseAbsent, ResponseMaybe:
		return true
	}
	return false
}

// Response is one RSVP row. At most one exists per (session, user) pair;
// later writes overwrite earlier ones, no history is retained.
type Response struct {
	SessionID   string
	UserID      string
	Value       ResponseValue
	RespondedAt int64
}

// ResponseCounts is the derived partition of a session's responses.
type ResponseCounts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Maybe   int `json:"maybe"`
}

// Total returns the number of counted responses.
func (c ResponseCounts) Total() int {
	return c.Present + c.Absent + c.Maybe
}

// Checkin records actual attendance. At most one per (session, user);
// only creatable inside the session's check-in window.
type Checkin struct {
	SessionID string
	UserID    string
	CheckedAt int64
}

// SessionDetail is the derived view of a session: the row plus counts,
// the calling user's own response, and the attendance rate. It is always
// recomputed from raw rows via the aggregate package, never stored.
type SessionDetail struct {
	Session
	Counts         ResponseCounts `json:"rsvp_counts"`
	MyResponse     ResponseValue  `json:"my_response,omitempty"`
	CheckinCount   int            `json:"checkin_count"`
	AttendanceRate int            `json:"attendance_rate"`
}
