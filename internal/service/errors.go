package service

import "errors"

// Domain errors surfaced to handlers. Handlers map these to HTTP
// status codes; anything else is a 5xx.
var (
	ErrInvalidInviteCode   = errors.New("invalid invite code")
	ErrAlreadyMember       = errors.New("already a member of this squad")
	ErrNotMember           = errors.New("not a member of this squad")
	ErrOwnerCannotLeave    = errors.New("squad owner cannot leave; transfer ownership or disband")
	ErrNotSessionCreator   = errors.New("only the session creator can change it")
	ErrInvalidResponse     = errors.New("response must be present, absent or maybe")
	ErrCheckinClosed       = errors.New("check-in window is closed")
	ErrSessionNotConfirmed = errors.New("session is not confirmed")
	ErrInvalidDuration     = errors.New("duration must be a positive number of minutes")
)
