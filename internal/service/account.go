// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes SQLite, bbolt
//
// Services take repository interfaces, never concrete stores, so every rule
// in this package is tested with in-memory fakes (see *_test.go).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/auth"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/notify"
	"github.com/sakif/food-diary/internal/repository"
)

// ForgotPasswordAck is returned for every forgot-password request, whether
// or not the email belongs to an account.
const ForgotPasswordAck = "If an account exists for that email, a password reset link has been sent"

// Mailer queues an email for background delivery. *notify.Dispatcher
// satisfies it.
type Mailer interface {
	Dispatch(msg notify.Message)
}

// PasswordHasher hashes and checks passwords. *auth.PasswordService
// satisfies it.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
}

// AccountService runs the account lifecycle:
//
//	Unregistered → (Signup) → PendingVerification → (Verify) → Verified
//	Verified → (ForgotPassword) → PasswordResetPending → (ResetPassword) → Verified
//
// DEPENDENCIES (injected via NewAccountService):
//   - users      repository.UserRepository → credential store
//   - tokens     *auth.TokenService        → session, verify and reset JWTs
//   - passwords  PasswordHasher            → bcrypt
//   - mailer     Mailer                    → fire-and-forget email
type AccountService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords PasswordHasher
	mailer    Mailer
	publicURL string
	logger    *slog.Logger
	now       func() time.Time

	// dummyHash is compared against when the email is unknown so a login
	// for a missing account costs the same bcrypt work as a wrong password.
	dummyHash string
}

func NewAccountService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords PasswordHasher,
	mailer Mailer,
	publicURL string,
	logger *slog.Logger,
) *AccountService {
	dummy, err := passwords.Hash("food-diary-dummy-password")
	if err != nil {
		logger.Warn("could not prepare dummy password hash", slog.String("error", err.Error()))
	}
	return &AccountService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		mailer:    mailer,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
		now:       time.Now,
		dummyHash: dummy,
	}
}

// LoginResult is the session token plus the public identity of the user.
type LoginResult struct {
	Token string         `json:"token"`
	User  model.Identity `json:"user"`
}

// Signup registers an unverified account and emails a verification link.
// No session is issued; the user has to verify first.
func (s *AccountService) Signup(ctx context.Context, email, password, name string) error {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return apperror.ValidationFailed("", "Email, password and name are required")
	}
	if !strings.Contains(email, "@") {
		return apperror.ValidationFailed("email", "Email address is not valid")
	}

	hash, err := s.hashPassword("password", password)
	if err != nil {
		return err
	}

	token, err := s.tokens.IssueVerification(email)
	if err != nil {
		return fmt.Errorf("service/account: issuing verification token: %w", err)
	}

	user := &model.User{
		Email:             email,
		PasswordHash:      hash,
		DisplayName:       name,
		VerificationToken: &token,
	}
	// A unique-constraint hit comes back as apperror.ErrDuplicateEmail, which
	// also covers two signups racing for the same address.
	if err := s.users.CreateUser(ctx, user); err != nil {
		return err
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))

	link := s.publicURL + "/api/auth/verify/" + url.PathEscape(token)
	s.mailer.Dispatch(notify.Message{
		Kind:    notify.KindVerification,
		To:      email,
		Subject: "Verify your email",
		Body:    fmt.Sprintf("Hi %s,\n\nConfirm your email address to start using your food diary:\n%s\n\nThe link expires in 24 hours.", name, link),
		Link:    link,
	})
	return nil
}

// Verify marks the account named by a verification token as verified.
// Verifying twice is harmless.
func (s *AccountService) Verify(ctx context.Context, token string) error {
	payload, err := s.tokens.Validate(token, auth.PurposeVerify)
	if err != nil {
		return err
	}

	if err := s.users.MarkVerified(ctx, payload.Email); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.InvalidToken()
		}
		return err
	}

	s.logger.Info("email verified", slog.String("email", payload.Email))
	return nil
}

// Login checks credentials and issues a 7-day session token.
//
// Unknown email and wrong password produce the same error. Verification is
// checked only after the password matched, so NotVerified never leaks
// whether an address is registered.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "Email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			_ = s.passwords.Verify(s.dummyHash, password)
			return nil, apperror.InvalidCredentials()
		}
		return nil, err
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.InvalidCredentials()
	}
	if !user.IsVerified {
		return nil, apperror.NotVerified()
	}

	identity := user.Identity()
	token, err := s.tokens.IssueSession(identity)
	if err != nil {
		return nil, fmt.Errorf("service/account: issuing session for %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &LoginResult{Token: token, User: identity}, nil
}

// ForgotPassword starts a password reset. The returned message is always
// ForgotPasswordAck.
//
// A new request overwrites any stored reset token, so only the most recent
// link works.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", apperror.ValidationFailed("email", "Email is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return ForgotPasswordAck, nil
		}
		return "", err
	}

	token, err := s.tokens.IssueReset(user.ID)
	if err != nil {
		return "", fmt.Errorf("service/account: issuing reset token: %w", err)
	}

	expiry := s.now().Add(auth.ResetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		s.logger.Error("failed to store reset token",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return ForgotPasswordAck, nil
	}

	link := s.publicURL + "/reset-password?token=" + url.QueryEscape(token)
	s.mailer.Dispatch(notify.Message{
		Kind:    notify.KindPasswordReset,
		To:      user.Email,
		Subject: "Reset your password",
		Body:    fmt.Sprintf("Hi %s,\n\nUse this link to choose a new password:\n%s\n\nThe link expires in 1 hour. If you did not ask for a reset, ignore this email.", user.DisplayName, link),
		Link:    link,
	})
	return ForgotPasswordAck, nil
}

// ResetPassword sets a new password using a reset token. The token must
// still be the one stored on the user; it is cleared in the same UPDATE
// that writes the new hash, so it works once.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return apperror.ValidationFailed("", "Token and new password are required")
	}

	payload, err := s.tokens.Validate(token, auth.PurposeReset)
	if err != nil {
		return err
	}

	hash, err := s.hashPassword("newPassword", newPassword)
	if err != nil {
		return err
	}

	if err := s.users.ConsumeResetToken(ctx, payload.UserID, token, hash, s.now()); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.InvalidToken()
		}
		return err
	}

	s.logger.Info("password reset", slog.String("userID", payload.UserID))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// hashPassword reports an over-long password against field. Any other
// hashing failure is internal.
func (s *AccountService) hashPassword(field, password string) (string, error) {
	hash, err := s.passwords.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", apperror.ValidationFailed(field, "Password must be 72 bytes or fewer")
	}
	if err != nil {
		return "", fmt.Errorf("service/account: hashing password: %w", err)
	}
	return hash, nil
}
