package storage

import (
	"context"
	"fmt"
)

// User is an account identified by its Tailscale login, or the dev login
// when Tailscale is off.
type User struct {
	ID          int    `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// GetOrCreateUser finds or creates a user by login and returns the user ID.
// Every call refreshes last_seen and, when given, the display name.
func (db *DB) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	var id int
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (login, display_name)
		VALUES ($1, $2)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = NOW(), display_name = COALESCE(NULLIF($2, ''), users.display_name)
		RETURNING id
	`, login, displayName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting user %s: %w", login, err)
	}
	return id, nil
}

// GetUser returns the user with the given ID.
func (db *DB) GetUser(ctx context.Context, id int) (*User, error) {
	var u User
	err := db.Pool.QueryRow(ctx,
		`SELECT id, login, display_name FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Login, &u.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("querying user %d: %w", id, notFound(err))
	}
	return &u, nil
}
