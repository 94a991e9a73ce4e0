// Package auth provides token issuance, password hashing and the bearer
// authentication middleware.
//
// TOKEN PURPOSES:
// One signing secret backs three kinds of token. Each carries a "purpose"
// claim and Validate refuses a token presented for the wrong purpose, so a
// leaked verification link can never be replayed as a session.
//
//	session  {sub, email, name}  7 days   sent as "Authorization: Bearer ..."
//	verify   {email}             1 day    embedded in the verification link
//	reset    {sub}               1 hour   embedded in the reset link, also
//	                                      stored on the user row (single use)
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims (data) → {"sub":"userID","purpose":"session","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// Every token also gets a random "jti" so two tokens issued within the same
// second for the same user still differ. Reset relies on that: a second
// forgot-password request must produce a token the first one does not equal.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/model"
)

// Purpose distinguishes what a token may be used for.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeVerify  Purpose = "verify"
	PurposeReset   Purpose = "reset"
)

const (
	SessionTTL      = 7 * 24 * time.Hour
	VerificationTTL = 24 * time.Hour
	ResetTTL        = time.Hour
)

const issuer = "food-diary"

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Payload is the decoded content of a valid token. Which fields are set
// depends on the purpose.
type Payload struct {
	Purpose   Purpose
	UserID    string
	Email     string
	Name      string
	ExpiresAt time.Time
}

type claims struct {
	Purpose Purpose `json:"purpose"`
	Email   string  `json:"email,omitempty"`
	Name    string  `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for purpose carrying p, valid for ttl.
//
// Signing algorithm: HS256 (HMAC-SHA256).
func (s *TokenService) Issue(purpose Purpose, p Payload, ttl time.Duration) (string, error) {
	now := s.now()

	c := claims{
		Purpose: purpose,
		Email:   p.Email,
		Name:    p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing %s token: %w", purpose, err)
	}

	return signed, nil
}

// IssueSession issues the 7-day bearer token returned on login.
func (s *TokenService) IssueSession(id model.Identity) (string, error) {
	return s.Issue(PurposeSession, Payload{UserID: id.ID, Email: id.Email, Name: id.Name}, SessionTTL)
}

// IssueVerification issues the 1-day email verification token.
func (s *TokenService) IssueVerification(email string) (string, error) {
	return s.Issue(PurposeVerify, Payload{Email: email}, VerificationTTL)
}

// IssueReset issues the 1-hour password reset token.
func (s *TokenService) IssueReset(userID string) (string, error) {
	return s.Issue(PurposeReset, Payload{UserID: userID}, ResetTTL)
}

// Validate parses and verifies a token issued for purpose.
//
// VALIDATION CHECKS:
//   - Signature is valid and the algorithm is HS256 (no "none", no RS/HS confusion)
//   - Token is not expired and carries an expiry at all
//   - Issuer matches
//   - Purpose matches, and the purpose's identifying claim is present
//
// Every failure returns the same apperror.InvalidToken so callers cannot
// tell a malformed token from an expired one.
func (s *TokenService) Validate(tokenStr string, purpose Purpose) (*Payload, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, apperror.InvalidToken()
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Purpose != purpose {
		return nil, apperror.InvalidToken()
	}

	p := &Payload{
		Purpose: c.Purpose,
		UserID:  c.Subject,
		Email:   c.Email,
		Name:    c.Name,
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}

	switch purpose {
	case PurposeSession, PurposeReset:
		if p.UserID == "" {
			return nil, apperror.InvalidToken()
		}
	case PurposeVerify:
		if p.Email == "" {
			return nil, apperror.InvalidToken()
		}
	}

	return p, nil
}
