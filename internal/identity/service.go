package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetLink   = errors.New("invalid or expired reset link")
)

// ResetMailer delivers password-reset links. Implemented by the email
// service; tests substitute a recorder.
type ResetMailer interface {
	SendPasswordReset(to, resetURL string) error
}

// Service implements sign-up, sign-in and the password-reset flow over the
// user repository. Session presence itself lives in Provider; this service
// only authenticates.
type Service struct {
	users            storage.UserRepository
	mailer           ResetMailer
	resetTokenExpiry time.Duration
	baseURL          string
}

func NewService(users storage.UserRepository, mailer ResetMailer, resetTokenExpiry time.Duration, baseURL string) *Service {
	return &Service{
		users:            users,
		mailer:           mailer,
		resetTokenExpiry: resetTokenExpiry,
		baseURL:          baseURL,
	}
}

// SignUp registers a new user. The password is bcrypt-hashed; a duplicate
// email surfaces as storage.ErrEmailTaken.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*model.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.users.InsertUser(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignIn verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// RequestPasswordReset issues a single-use reset token and emails the link.
// Only the token's hash is stored.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	token := uuid.New().String()
	reset := model.PasswordReset{
		TokenHash: hashToken(token),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.resetTokenExpiry),
		CreatedAt: time.Now(),
	}
	if err := s.users.InsertPasswordReset(ctx, reset); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	if err := s.mailer.SendPasswordReset(user.Email, resetURL); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	log.Printf("[Identity] Password reset issued for user %s", user.ID)
	return nil
}

// UpdatePassword consumes a reset token and sets the new password. Expired,
// unknown and already-used tokens all map to ErrInvalidResetLink.
func (s *Service) UpdatePassword(ctx context.Context, token, newPassword string) error {
	reset, err := s.users.GetPasswordReset(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrResetNotFound) {
			return ErrInvalidResetLink
		}
		return err
	}
	if reset.Used || time.Now().After(reset.ExpiresAt) {
		return ErrInvalidResetLink
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, reset.UserID, hash); err != nil {
		return err
	}
	return s.users.MarkPasswordResetUsed(ctx, reset.TokenHash)
}

// hashToken creates a SHA-256 hash of the token for secure storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
