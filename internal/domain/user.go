package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserAlreadyExists is returned when trying to create a user with an existing username.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrInvalidCredentials is returned when the username/password combination is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User represents a registered account.
type User struct {
	ID           int64  `db:"id"`            // Unique identifier
	Username     string `db:"username"`      // Login username
	PasswordHash []byte `db:"password_hash"` // bcrypt hash
	Role         Role   `db:"role"`          // Role designator
	CreatedAt    int64  `db:"created_at"`    // Unix timestamp of account creation
}

// Identity returns the identity a token for this user carries.
func (u User) Identity() Identity {
	return Identity{Username: u.Username, Role: u.Role}
}
