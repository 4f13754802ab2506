package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/viper-platform/raps/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials. Every failure
// mode maps to the same error so callers cannot probe which emails
// exist.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return account, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, memberID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, SessionRecord{
		ID:        id,
		MemberID:  memberID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
		IP:        ip,
		UserAgent: ua,
	})
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
