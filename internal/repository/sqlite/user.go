package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, password_hash, display_name, is_verified,
	verification_token, reset_token, reset_token_expiry, created_at`

// CreateUser inserts a new user, assigning ID and CreatedAt in place.
// The email is stored lowercased and trimmed.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, is_verified,
		                    verification_token, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.IsVerified,
		nullString(user.VerificationToken),
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.DuplicateEmail()
		}
		return apperror.Storage("sqlite: inserting user", err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, apperror.Storage("sqlite: getting user by id", err)
	}
	return u, nil
}

// GetUserByEmail looks a user up case-insensitively.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, apperror.Storage("sqlite: getting user by email", err)
	}
	return u, nil
}

// MarkVerified flags the account as verified and forgets the verification token.
func (db *DB) MarkVerified(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET is_verified = 1, verification_token = NULL WHERE email = ?`,
		email,
	)
	if err != nil {
		return apperror.Storage("sqlite: marking user verified", err)
	}
	return requireRow(res, "user", email)
}

// SetResetToken stores token as the only reset token honoured for the user,
// replacing any earlier one.
func (db *DB) SetResetToken(ctx context.Context, userID, token string, expiry time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET reset_token = ?, reset_token_expiry = ? WHERE id = ?`,
		token, expiry.Unix(), userID,
	)
	if err != nil {
		return apperror.Storage("sqlite: storing reset token", err)
	}
	return requireRow(res, "user", userID)
}

// ConsumeResetToken replaces the password hash and clears the reset token in
// a single UPDATE. The WHERE clause re-checks the stored token and expiry, so
// two concurrent resets with the same token cannot both succeed.
func (db *DB) ConsumeResetToken(ctx context.Context, userID, token, passwordHash string, now time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = ?, reset_token = NULL, reset_token_expiry = NULL
		 WHERE id = ? AND reset_token = ? AND reset_token_expiry > ?`,
		passwordHash, userID, token, now.Unix(),
	)
	if err != nil {
		return apperror.Storage("sqlite: consuming reset token", err)
	}
	return requireRow(res, "reset token for user", userID)
}

func (db *DB) UpdateDisplayName(ctx context.Context, userID, name string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET display_name = ? WHERE id = ?`, name, userID)
	if err != nil {
		return apperror.Storage("sqlite: updating display name", err)
	}
	return requireRow(res, "user", userID)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u           model.User
		verifyToken sql.NullString
		resetToken  sql.NullString
		resetExpiry sql.NullInt64
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.DisplayName,
		&u.IsVerified,
		&verifyToken,
		&resetToken,
		&resetExpiry,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if verifyToken.Valid {
		u.VerificationToken = &verifyToken.String
	}
	if resetToken.Valid {
		u.ResetToken = &resetToken.String
	}
	if resetExpiry.Valid {
		t := time.Unix(resetExpiry.Int64, 0).UTC()
		u.ResetTokenExpiry = &t
	}
	return &u, nil
}

// requireRow turns "UPDATE matched nothing" into apperror.NotFound.
func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Storage("sqlite: reading rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
