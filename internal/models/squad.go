package models

// Role identifies a member's standing within a squad.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Squad represents a persistent group of users who plan sessions together.
// The invite code is unique across squads and matched case-insensitively
// at lookup time.
type Squad struct {
	// ID is the unique identifier for the squad (UUID format).
	ID string

	// Name is the display name of the squad.
	Name string

	// Activity is what the squad meets for (e.g. a game title).
	Activity string

	// InviteCode is the shareable join code. Stored upper-case.
	InviteCode string

	// OwnerID references the creating user's profile.
	OwnerID string

	// CreatedAt is the Unix timestamp when the squad was created.
	CreatedAt int64
}

// Membership links a user to a squad. A user ID appears at most once per
// squad ID; the store enforces this with a composite primary key.
type Membership struct {
	SquadID  string
	UserID   string
	Role     Role
	JoinedAt int64
}

// SquadSummary is the derived list view of a squad: the squad row plus a
// member count computed from live membership rows.
type SquadSummary struct {
	Squad
	MemberCount int
}
