// Package password implements the password change and reset flows.
package password

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

// Notifier enqueues password emails.
type Notifier interface {
	SendResetPassword(ctx context.Context, mc users.MailContext, recipients []string) error
	SendResetPasswordConfirm(ctx context.Context, mc users.MailContext, recipients []string) error
}

// Config toggles optional behaviour of the reset flow.
type Config struct {
	// ConfirmationEmail enqueues a confirmation after a successful reset.
	ConfirmationEmail bool
}

// Service runs the password flows against the account store.
type Service struct {
	repo     users.Repository
	tokens   *users.TokenGenerator
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo users.Repository, tokens *users.TokenGenerator, notifier Notifier, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, notifier: notifier, logger: logger, cfg: cfg, now: time.Now}
}

// ChangePassword replaces the password of userID after checking the old one.
// A wrong old password is an authorization failure and leaves the hash as is.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !user.CheckPassword(oldPassword) {
		return httpx.Denied("old_password", "Invalid password.")
	}
	hash, err := s.newHash(newPassword, user)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	s.logger.Info("password changed", slog.Int64("user_id", user.ID))
	return nil
}

// RequestReset enqueues reset instructions for the active account owning
// email. It reports success whether or not such an account exists.
func (s *Service) RequestReset(ctx context.Context, email string, mc users.MailContext) error {
	user, err := s.repo.GetByEmail(ctx, users.NormalizeEmail(email))
	if errors.Is(err, httpx.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive || user.Email == "" {
		return nil
	}
	mc.UserID = user.ID
	if err := s.notifier.SendResetPassword(ctx, mc, []string{user.Email}); err != nil {
		s.logger.Error("enqueue reset password email", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	return nil
}

// ConfirmReset sets a new password for the account a mailed uid/token pair
// points at. The hash and last login are written in one transaction; the
// confirmation is enqueued only after it commits.
func (s *Service) ConfirmReset(ctx context.Context, uid, token, newPassword string, mc users.MailContext) error {
	id, err := users.DecodeUID(uid)
	if err != nil {
		return httpx.Invalid("uid", "Invalid user id or user doesn't exist.")
	}
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, httpx.ErrNotFound) {
		return httpx.Invalid("uid", "Invalid user id or user doesn't exist.")
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !s.tokens.Check(user, users.PurposePasswordReset, token) {
		return httpx.Invalid("token", "Invalid token for given user.")
	}
	hash, err := s.newHash(newPassword, user)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo users.Repository) error {
		if err := repo.SetPassword(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		if err := repo.TouchLastLogin(ctx, user.ID, now); err != nil {
			return fmt.Errorf("touch last login: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("confirm reset: %w", err)
	}
	s.logger.Info("password reset", slog.Int64("user_id", user.ID))

	if s.cfg.ConfirmationEmail && user.Email != "" {
		mc.UserID = user.ID
		if err := s.notifier.SendResetPasswordConfirm(ctx, mc, []string{user.Email}); err != nil {
			s.logger.Error("enqueue reset confirmation email", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) newHash(password string, user *users.User) (string, error) {
	if problems := users.ValidatePassword(password, user); len(problems) > 0 {
		return "", httpx.Invalid("new_password", strings.Join(problems, " "))
	}
	hash, err := users.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}
