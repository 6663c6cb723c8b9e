package auth

import (
	"context"

	"github.com/squadup/squadup/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods
// (password, passkeys, OAuth, etc.) without changing the handler code.
type Authenticator interface {
	// Register creates a new profile with the given email, handle and
	// credential. The credential format depends on the implementation.
	Register(ctx context.Context, email, handle, credential string) (*models.Profile, error)

	// Authenticate verifies the credentials and returns the profile if
	// successful.
	Authenticate(ctx context.Context, email, credential string) (*models.Profile, error)

	// ValidateCredential checks if the credential meets the
	// implementation's requirements.
	ValidateCredential(credential string) error
}
