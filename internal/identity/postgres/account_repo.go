// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

// Package postgres implements identity.Repository using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/launchgate/launchgate/internal/identity"
)

// statementTimeout bounds every statement issued by this repository.
const statementTimeout = 5 * time.Second

// poolIface abstracts pgxpool.Pool so repositories can be unit tested
// with pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements identity.Repository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// GetByUUID retrieves an account by UUID.
func (r *AccountRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*identity.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT uuid, username, access_token, server_id
		FROM accounts
		WHERE uuid = $1
	`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("uuid", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_UUID_FAILED").
			With("operation", "get account by uuid").
			With("uuid", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByUsername retrieves an account by username (case-insensitive).
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*identity.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT uuid, username, access_token, server_id
		FROM accounts
		WHERE LOWER(username) = LOWER($1)
	`, username)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_USERNAME_FAILED").
			With("operation", "get account by username").
			With("username", username).
			Wrap(err)
	}
	return account, nil
}

// Insert stores a new account.
func (r *AccountRepository) Insert(ctx context.Context, account *identity.Account) error {
	ctx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (uuid, username, access_token, server_id)
		VALUES ($1, $2, $3, $4)
	`,
		account.UUID.String(),
		account.Username,
		account.AccessToken,
		account.ServerID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("username", account.Username).
				Wrap(identity.ErrDuplicate)
		}
		return oops.Code("ACCOUNT_INSERT_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}
	return nil
}

// UpdateAuth sets username casing and access token and clears the join
// marker in one statement, so the two fields can never diverge.
func (r *AccountRepository) UpdateAuth(ctx context.Context, id uuid.UUID, username, accessToken string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	result, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET username = $2, access_token = $3, server_id = NULL
		WHERE uuid = $1
	`, id.String(), username, accessToken)
	if err != nil {
		return false, oops.Code("ACCOUNT_UPDATE_AUTH_FAILED").
			With("operation", "update auth").
			With("uuid", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// UpdateServerID sets the join marker for an account.
func (r *AccountRepository) UpdateServerID(ctx context.Context, id uuid.UUID, serverID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	result, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET server_id = $2
		WHERE uuid = $1
	`, id.String(), serverID)
	if err != nil {
		return false, oops.Code("ACCOUNT_UPDATE_SERVER_FAILED").
			With("operation", "update server id").
			With("uuid", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*identity.Account, error) {
	var (
		idStr       string
		username    string
		accessToken string
		serverID    *string
	)

	err := row.Scan(&idStr, &username, &accessToken, &serverID)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_UUID").
			With("operation", "parse account uuid").
			With("uuid", idStr).
			Wrap(err)
	}

	return &identity.Account{
		UUID:        id,
		Username:    username,
		AccessToken: accessToken,
		ServerID:    serverID,
	}, nil
}

// Compile-time interface check.
var _ identity.Repository = (*AccountRepository)(nil)
