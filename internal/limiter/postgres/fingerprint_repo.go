// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

// Package postgres implements limiter.FingerprintRepository using
// PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/launchgate/launchgate/internal/limiter"
)

const statementTimeout = 5 * time.Second

// poolIface abstracts pgxpool.Pool so repositories can be unit tested
// with pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FingerprintRepository implements limiter.FingerprintRepository using
// PostgreSQL.
type FingerprintRepository struct {
	pool poolIface
}

// NewFingerprintRepository creates a new FingerprintRepository.
func NewFingerprintRepository(pool poolIface) *FingerprintRepository {
	return &FingerprintRepository{pool: pool}
}

// ListForAccount returns the fingerprints an account has used, keyed by
// raw value.
func (r *FingerprintRepository) ListForAccount(ctx context.Context, username string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT f.value, f.banned
		FROM fingerprints f
		JOIN account_fingerprints af ON af.fingerprint_id = f.id
		WHERE af.username = LOWER($1)
	`, username)
	if err != nil {
		return nil, oops.Code("FINGERPRINT_QUERY_FAILED").
			With("operation", "list account fingerprints").
			With("username", username).
			Wrap(err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var (
			value  []byte
			banned bool
		)
		if err := rows.Scan(&value, &banned); err != nil {
			return nil, oops.Code("FINGERPRINT_SCAN_FAILED").
				With("operation", "scan fingerprint row").
				Wrap(err)
		}
		known[string(value)] = banned
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("FINGERPRINT_ROWS_FAILED").
			With("operation", "iterate fingerprint rows").
			Wrap(err)
	}
	return known, nil
}

// GetOrRegister resolves a raw fingerprint to its id and stored banned
// flag, inserting it with the presumed flag on first sight. The no-op
// upsert makes RETURNING yield the stored row either way.
func (r *FingerprintRepository) GetOrRegister(ctx context.Context, raw []byte, presumedBanned bool) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	var (
		id     int64
		banned bool
	)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO fingerprints (value, banned)
		VALUES ($1, $2)
		ON CONFLICT (value) DO UPDATE SET value = EXCLUDED.value
		RETURNING id, banned
	`, raw, presumedBanned).Scan(&id, &banned)
	if err != nil {
		return 0, false, oops.Code("FINGERPRINT_UPSERT_FAILED").
			With("operation", "get or register fingerprint").
			Wrap(err)
	}
	return id, banned, nil
}

// Associate records that an account has used a fingerprint. Repeat
// associations are absorbed by the conflict target.
func (r *FingerprintRepository) Associate(ctx context.Context, username string, fingerprintID int64) error {
	ctx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO account_fingerprints (username, fingerprint_id)
		VALUES (LOWER($1), $2)
		ON CONFLICT (username, fingerprint_id) DO NOTHING
	`, username, fingerprintID)
	if err != nil {
		return oops.Code("FINGERPRINT_ASSOCIATE_FAILED").
			With("operation", "associate fingerprint").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ limiter.FingerprintRepository = (*FingerprintRepository)(nil)
