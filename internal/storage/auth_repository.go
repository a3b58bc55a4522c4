package storage

import (
	"context"
	"time"
)

// User represents a traveller or admin account.
type User struct {
	ID           int32
	Username     string
	Email        string
	PasswordHash string
	Role         string // "user" or "admin"
	CreatedAt    time.Time
}

// RefreshToken represents a stored JWT refresh token.
type RefreshToken struct {
	ID        int32
	TokenHash string
	UserID    int32
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// UsersRepository defines operations on the users table.
type UsersRepository interface {
	// CreateUser inserts a new user and returns it with the generated ID.
	// A duplicate username or email yields ErrDuplicate.
	CreateUser(ctx context.Context, u *User) (*User, error)

	// GetUserByEmail returns a user by email, or (nil, nil) if not found.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByID returns a user by ID, or (nil, nil) if not found.
	GetUserByID(ctx context.Context, id int32) (*User, error)
}

// RefreshTokensRepository defines operations on the refresh_tokens table.
type RefreshTokensRepository interface {
	// StoreRefreshToken persists a hashed refresh token.
	StoreRefreshToken(ctx context.Context, tokenHash string, userID int32, expiresAt time.Time) error

	// GetRefreshToken returns a refresh token by hash, or (nil, nil) if not found.
	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// RevokeRefreshToken marks a refresh token as revoked.
	RevokeRefreshToken(ctx context.Context, tokenHash string) error

	// RevokeAllUserTokens revokes all refresh tokens for a user.
	RevokeAllUserTokens(ctx context.Context, userID int32) error
}
