// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package limiter

import (
	"context"

	"github.com/samber/oops"
)

// FingerprintRepository is durable storage for hardware fingerprints
// and their account associations.
type FingerprintRepository interface {
	// ListForAccount returns the fingerprints an account has used,
	// keyed by raw value, with each one's banned flag.
	ListForAccount(ctx context.Context, username string) (map[string]bool, error)

	// GetOrRegister resolves a raw fingerprint to its stored id and
	// banned flag, registering it with the presumed flag on first sight.
	GetOrRegister(ctx context.Context, raw []byte, presumedBanned bool) (int64, bool, error)

	// Associate records that an account has used a fingerprint.
	// Idempotent.
	Associate(ctx context.Context, username string, fingerprintID int64) error
}

// Fingerprints applies device-level ban policy. An account is banned
// for a login if any fingerprint it has used is banned, or the one it
// just presented resolves to banned.
type Fingerprints struct {
	repo FingerprintRepository
}

// NewFingerprints creates a Fingerprints service over repo.
func NewFingerprints(repo FingerprintRepository) *Fingerprints {
	return &Fingerprints{repo: repo}
}

// RegisterOrLookup resolves raw to its fingerprint id. The returned
// flag is the OR of the presumed flag and the stored flag.
func (f *Fingerprints) RegisterOrLookup(ctx context.Context, raw []byte, presumedBanned bool) (int64, bool, error) {
	id, stored, err := f.repo.GetOrRegister(ctx, raw, presumedBanned)
	if err != nil {
		return 0, false, oops.Code("FINGERPRINT_REGISTER_FAILED").
			With("operation", "get or register fingerprint").
			Wrap(err)
	}
	return id, presumedBanned || stored, nil
}

// Associate records that username has used the fingerprint.
func (f *Fingerprints) Associate(ctx context.Context, username string, fingerprintID int64) error {
	if err := f.repo.Associate(ctx, username, fingerprintID); err != nil {
		return oops.Code("FINGERPRINT_ASSOCIATE_FAILED").
			With("operation", "associate fingerprint").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// CheckAccount runs the full per-login device check for username
// presenting raw: ban history spreads from the account's known
// fingerprints to newly seen ones, and any banned fingerprint in the
// set bans the login.
func (f *Fingerprints) CheckAccount(ctx context.Context, username string, raw []byte) (bool, error) {
	known, err := f.repo.ListForAccount(ctx, username)
	if err != nil {
		return false, oops.Code("FINGERPRINT_LIST_FAILED").
			With("operation", "list account fingerprints").
			With("username", username).
			Wrap(err)
	}

	banned := false
	for _, flag := range known {
		if flag {
			banned = true
			break
		}
	}

	if _, seen := known[string(raw)]; !seen {
		id, effective, err := f.RegisterOrLookup(ctx, raw, banned)
		if err != nil {
			return false, err
		}
		if err := f.Associate(ctx, username, id); err != nil {
			return false, err
		}
		banned = banned || effective
	}

	return banned, nil
}
