package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"paylane-backend-go/internal/auth"
	"paylane-backend-go/internal/db"
	"paylane-backend-go/internal/models"
)

// DefaultResetTokenValidity is the window during which a reset link works.
const DefaultResetTokenValidity = 10 * time.Minute

type recoveryService struct {
	userRepo  db.UserRepository
	tokenRepo db.ResetTokenRepository
	issuer    TokenIssuer
	mailer    Mailer
	baseURL   string
	validity  time.Duration
	logger    *zap.Logger
}

// NewRecoveryService wires the password recovery service. baseURL is the
// public frontend origin the reset link points at.
func NewRecoveryService(
	userRepo db.UserRepository,
	tokenRepo db.ResetTokenRepository,
	issuer TokenIssuer,
	mailer Mailer,
	baseURL string,
	validity time.Duration,
	logger *zap.Logger,
) RecoveryService {
	if validity <= 0 {
		validity = DefaultResetTokenValidity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &recoveryService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		issuer:    issuer,
		mailer:    mailer,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		validity:  validity,
		logger:    logger,
	}
}

// RequestReset mails the account owner a reset link. A still-valid token for
// the user is reused rather than replaced, so repeated requests within the
// window keep one earlier-mailed link working instead of invalidating it. A
// mail delivery failure leaves the stored token in place; the link from any
// earlier successful mail stays usable.
func (s *recoveryService) RequestReset(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: User with given email doesn't exist!", ErrNotFound)
		}
		return fmt.Errorf("%w: resolving user: %v", ErrInternal, err)
	}

	token, err := s.tokenRepo.GetByUserID(ctx, user.ID)
	switch {
	case err == nil && !token.ExpiredAt(time.Now(), s.validity):
		// reuse the live token
	case err == nil:
		// expired but never cleaned up; replace it
		if derr := s.tokenRepo.Delete(ctx, token.ID); derr != nil {
			s.logger.Warn("deleting expired reset token failed",
				zap.String("userID", user.ID), zap.Error(derr))
		}
		token, err = s.mintToken(ctx, user.ID)
		if err != nil {
			return err
		}
	case errors.Is(err, db.ErrNotFound):
		token, err = s.mintToken(ctx, user.ID)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: fetching reset token: %v", ErrInternal, err)
	}

	link := fmt.Sprintf("%s/forgot-password/reset?user=%s&token=%s", s.baseURL, user.ID, token.Token)
	body := fmt.Sprintf(
		"Hi,\n\nClick the link below to reset your password:\n\n%s\n\nLink will expire in %d minutes.\n\nIf you didn't request a password reset, you can ignore this email.\n",
		link, int(s.validity.Minutes()),
	)
	if err := s.mailer.Send(user.Email, "Password reset", body); err != nil {
		return fmt.Errorf("%w: sending reset email: %v", ErrExternalService, err)
	}
	return nil
}

func (s *recoveryService) mintToken(ctx context.Context, userID string) (*models.PasswordResetToken, error) {
	value, err := s.issuer.Issue(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: minting reset token: %v", ErrInternal, err)
	}
	token := &models.PasswordResetToken{
		UserID:   userID,
		Token:    value,
		IssuedAt: time.Now(),
	}
	if _, err := s.tokenRepo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("%w: storing reset token: %v", ErrInternal, err)
	}
	return token, nil
}

// ResetPassword exchanges a mailed token for a new credential. The two
// failure messages are deliberately distinct: a bad user reference means the
// link never pointed at an account, a bad or stale token means the link once
// worked.
func (s *recoveryService) ResetPassword(ctx context.Context, userID, token, newPassword string) error {
	if userID == "" || token == "" || newPassword == "" {
		return fmt.Errorf("%w: user, token and password are required", ErrValidation)
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: Invalid link!", ErrInvalidLink)
		}
		return fmt.Errorf("%w: resolving user: %v", ErrInternal, err)
	}

	record, err := s.tokenRepo.GetByUserAndToken(ctx, user.ID, token)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: Invalid or expired link!", ErrInvalidOrExpiredLink)
		}
		return fmt.Errorf("%w: fetching reset token: %v", ErrInternal, err)
	}
	if record.ExpiredAt(time.Now(), s.validity) {
		if derr := s.tokenRepo.Delete(ctx, record.ID); derr != nil {
			s.logger.Warn("deleting stale reset token failed",
				zap.String("userID", user.ID), zap.Error(derr))
		}
		return fmt.Errorf("%w: Invalid or expired link!", ErrInvalidOrExpiredLink)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: hashing password: %v", ErrInternal, err)
	}
	user.PasswordHash = hash
	user.IsPasswordSet = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: updating password: %v", ErrInternal, err)
	}

	// The password has changed at this point. A failed delete is surfaced
	// so the operator learns the token survived its single use.
	if err := s.tokenRepo.Delete(ctx, record.ID); err != nil {
		s.logger.Error("password changed but reset token not consumed",
			zap.String("userID", user.ID), zap.Error(err))
		return fmt.Errorf("%w: consuming reset token: %v", ErrInternal, err)
	}
	return nil
}
