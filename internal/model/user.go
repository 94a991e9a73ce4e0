// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Email is stored lowercased; the UNIQUE constraint on the users table is
// declared COLLATE NOCASE so case-insensitive duplicates are rejected even if
// a caller forgets to normalise.
//
// The token fields are nil when unset. ResetTokenExpiry mirrors the "exp"
// claim of ResetToken so a stale row can be rejected without parsing the JWT.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	DisplayName       string     `json:"name"`
	IsVerified        bool       `json:"isVerified"`
	VerificationToken *string    `json:"-"`
	ResetToken        *string    `json:"-"`
	ResetTokenExpiry  *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Identity is the public triple carried in session tokens and returned on login.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Identity returns the public identity of the user.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Name: u.DisplayName}
}
