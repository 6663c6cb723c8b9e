package models

// Profile represents a registered user account with its aggregate
// counters. The counters are denormalized copies of what the raw rows
// say; they are refreshed by recomputation through the aggregate
// package and serve as a defensive fallback when live rows are
// unavailable.
type Profile struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Handle is the display name of the user.
	Handle string

	// Email is the user's email address (unique). Used for login.
	Email string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// TotalSessions counts sessions the user responded "present" to.
	TotalSessions int

	// TotalCheckins counts actual check-ins.
	TotalCheckins int

	// ReliabilityScore is the percentage of "present" responses the
	// user actually checked in for.
	ReliabilityScore int

	// StreakDays is the current consecutive-day activity streak.
	StreakDays int

	// StreakLastDate is the last day (YYYY-MM-DD, UTC) the streak
	// advanced. Empty when the user has never been active.
	StreakLastDate string

	// XP and Level track gamification progress.
	XP    int
	Level int

	// ReferralCode is the user's shareable referral code. Generated
	// lazily when first requested.
	ReferralCode string

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64
}

// ReferralStatus tracks an invited user through the funnel.
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralSignedUp  ReferralStatus = "signed_up"
	ReferralConverted ReferralStatus = "converted"
)

// Referral is one row of the referral ledger.
type Referral struct {
	ID            string
	ReferrerID    string
	ReferredID    string
	Code          string
	Status        ReferralStatus
	RewardClaimed bool
	CreatedAt     int64
}
