// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing
// account UUID or username.
var ErrDuplicate = errors.New("duplicate account")

// Account is the canonical identity record. At most one Account exists
// per UUID, and username lookup and UUID lookup always resolve to the
// same record.
type Account struct {
	// UUID is stable and immutable for the lifetime of the account.
	UUID uuid.UUID

	// Username is the identity source's canonical spelling. Unique
	// case-insensitively; the casing may change on re-authentication.
	Username string

	// AccessToken is the single active session credential, rotated on
	// every successful authentication.
	AccessToken string

	// ServerID is the join marker: the game server the account last
	// announced intent to join. Nil until set, cleared on the next
	// authentication.
	ServerID *string
}

// Repository is durable storage for accounts. Implementations map
// transport failures to generic errors rather than leaking driver types.
type Repository interface {
	// GetByUUID retrieves an account by UUID. Returns ErrNotFound in the
	// error chain if no such account exists.
	GetByUUID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByUsername retrieves an account by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// Insert stores a new account.
	Insert(ctx context.Context, account *Account) error

	// UpdateAuth sets the username casing and access token for an
	// account and clears its join marker, atomically. Returns false if
	// the UUID is unknown.
	UpdateAuth(ctx context.Context, id uuid.UUID, username, accessToken string) (bool, error)

	// UpdateServerID sets the join marker for an account. Returns false
	// if the UUID is unknown.
	UpdateServerID(ctx context.Context, id uuid.UUID, serverID string) (bool, error)
}
