package cache

// Key factories. Every consumer builds keys through these so that
// invalidation by prefix stays consistent with the read side.

// SquadsKey covers all squad-scoped entries.
func SquadsKey() Key { return "squads" }

// SquadListKey is one viewer's squad list. Viewer-scoped because every
// user sees a different list.
func SquadListKey(viewerID string) Key { return NewKey("squads", "list", viewerID) }

// SquadDetailKey is one squad with its member roster.
func SquadDetailKey(squadID string) Key { return NewKey("squads", "detail", squadID) }

// SessionsKey covers all session-scoped entries.
func SessionsKey() Key { return "sessions" }

// SessionListKey is the session list of one squad.
func SessionListKey(squadID string) Key { return NewKey("sessions", "list", squadID) }

// SessionDetailKey is one session's derived detail view.
func SessionDetailKey(sessionID string) Key { return NewKey("sessions", "detail", sessionID) }

// SessionsUpcomingKey is one viewer's cross-squad upcoming feed.
func SessionsUpcomingKey(viewerID string) Key { return NewKey("sessions", "upcoming", viewerID) }

// SessionsUpcomingPrefix covers every viewer's upcoming feed, used for
// invalidation when a session changes.
func SessionsUpcomingPrefix() Key { return "sessions/upcoming" }

// ProfileKey is one user's profile with derived stats.
func ProfileKey(userID string) Key { return NewKey("profile", userID) }

// ReferralStatsKey is one user's referral aggregate.
func ReferralStatsKey(userID string) Key { return NewKey("profile", userID, "referrals") }
