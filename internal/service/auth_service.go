package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/squadup/squadup/internal/auth"
	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/storage"
)

// AuthService handles registration and login, issuing session tokens.
type AuthService struct {
	authenticator auth.Authenticator
	jwt           *auth.JWTManager
	store         storage.Store
}

// NewAuthService creates a new AuthService.
func NewAuthService(authenticator auth.Authenticator, jwt *auth.JWTManager, store storage.Store) *AuthService {
	return &AuthService{authenticator: authenticator, jwt: jwt, store: store}
}

// AuthResult is a profile view plus its session token.
type AuthResult struct {
	Profile *ProfileView `json:"profile"`
	Token   string       `json:"token"`
}

// Register creates an account. When referralCode names an existing
// user's code, a referral ledger row is opened at signed_up; it
// converts when the new user first checks in. A bad code does not fail
// registration.
func (s *AuthService) Register(ctx context.Context, email, handle, password, referralCode string) (*AuthResult, error) {
	profile, err := s.authenticator.Register(ctx, email, handle, password)
	if err != nil {
		return nil, err
	}

	if referralCode != "" {
		if err := s.linkReferral(ctx, profile, referralCode); err != nil {
			slog.Warn("could not link referral", "code", referralCode, "error", err)
		}
	}

	token, err := s.jwt.Generate(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	slog.Info("profile registered", "user_id", profile.ID, "handle", profile.Handle)
	return &AuthResult{Profile: viewOf(profile), Token: token}, nil
}

func (s *AuthService) linkReferral(ctx context.Context, profile *models.Profile, code string) error {
	referrer, err := s.store.GetProfileByReferralCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Info("unknown referral code at signup", "code", code)
		return nil
	}
	if err != nil {
		return err
	}
	if referrer.ID == profile.ID {
		return nil
	}
	return s.store.CreateReferral(ctx, &models.Referral{
		ReferrerID: referrer.ID,
		ReferredID: profile.ID,
		Code:       referrer.ReferralCode,
		Status:     models.ReferralSignedUp,
	})
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	profile, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	token, err := s.jwt.Generate(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{Profile: viewOf(profile), Token: token}, nil
}
