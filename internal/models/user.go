package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleClient     UserRole = "client"
	UserRoleAstrologer UserRole = "astrologer"
	UserRoleAdmin      UserRole = "admin"
)

type User struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"`
	DisplayName  string    `db:"display_name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         UserRole  `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

// Name returns the display name, falling back to the username
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
