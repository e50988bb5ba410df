// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package identity

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/launchgate/launchgate/internal/auth"
)

// accountNamespace seeds deterministic UUID derivation so offline and
// online identity stay stable across reinstalls.
var accountNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("accounts.launchgate"))

// UUIDStrategy derives the UUID for a previously unseen username.
type UUIDStrategy func(username string) uuid.UUID

// DeriveUUID is the default strategy: a namespaced SHA-1 UUID of the
// lowercased username, so the same name always maps to the same UUID.
func DeriveUUID(username string) uuid.UUID {
	return uuid.NewSHA1(accountNamespace, []byte(strings.ToLower(username)))
}

// RandomUUID assigns a fresh random UUID, for deployments that want
// backend-assigned identity instead of name-derived identity.
func RandomUUID(string) uuid.UUID {
	return uuid.New()
}

// Cache is an in-memory, lazily populated view of the account store.
// All mutation goes through the repository first (write-through); reads
// fall back to the repository on a miss and memoize the result.
type Cache struct {
	repo   Repository
	derive UUIDStrategy

	mu     sync.RWMutex
	byUUID map[uuid.UUID]*Account
	byName map[string]*Account // keyed by lowercase username
}

// NewCache creates a Cache over repo. A nil strategy selects DeriveUUID.
func NewCache(repo Repository, derive UUIDStrategy) *Cache {
	if derive == nil {
		derive = DeriveUUID
	}
	return &Cache{
		repo:   repo,
		derive: derive,
		byUUID: make(map[uuid.UUID]*Account),
		byName: make(map[string]*Account),
	}
}

// CommitAuth applies a successful credential verification: it resolves
// or allocates the account UUID, rotates the access token, refreshes the
// username casing, and clears the join marker. The in-memory view is
// untouched if the backend write fails.
func (c *Cache) CommitAuth(ctx context.Context, result *auth.Result) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	account, err := c.lookupByNameLocked(ctx, result.Username)
	if err != nil {
		return uuid.UUID{}, err
	}

	if account != nil {
		updated, err := c.repo.UpdateAuth(ctx, account.UUID, result.Username, result.AccessToken)
		if err != nil {
			return uuid.UUID{}, oops.Code("IDENTITY_COMMIT_FAILED").
				With("operation", "update auth").
				With("uuid", account.UUID.String()).
				Wrap(err)
		}
		if updated {
			account.Username = result.Username
			account.AccessToken = result.AccessToken
			account.ServerID = nil
			return account.UUID, nil
		}
		// The row vanished from the backend (administrative removal).
		// Drop the stale entry and fall through to a fresh insert.
		c.evictLocked(account)
	}

	fresh := &Account{
		UUID:        c.derive(result.Username),
		Username:    result.Username,
		AccessToken: result.AccessToken,
	}
	if err := c.repo.Insert(ctx, fresh); err != nil {
		return uuid.UUID{}, oops.Code("IDENTITY_COMMIT_FAILED").
			With("operation", "insert account").
			With("username", result.Username).
			Wrap(err)
	}
	c.storeLocked(fresh)
	return fresh.UUID, nil
}

// AnnounceJoin sets the join marker for an existing account. Returns
// false if the UUID is unknown.
func (c *Cache) AnnounceJoin(ctx context.Context, id uuid.UUID, serverID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	account, err := c.lookupByUUIDLocked(ctx, id)
	if err != nil {
		return false, err
	}
	if account == nil {
		return false, nil
	}

	updated, err := c.repo.UpdateServerID(ctx, id, serverID)
	if err != nil {
		return false, oops.Code("IDENTITY_JOIN_FAILED").
			With("operation", "update server id").
			With("uuid", id.String()).
			Wrap(err)
	}
	if !updated {
		c.evictLocked(account)
		return false, nil
	}

	marker := serverID
	account.ServerID = &marker
	return true, nil
}

// ResolveByUsername returns a copy of the account for a username
// (case-insensitive), or nil if absent.
func (c *Cache) ResolveByUsername(ctx context.Context, username string) (*Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	account, err := c.lookupByNameLocked(ctx, username)
	if err != nil || account == nil {
		return nil, err
	}
	return copyAccount(account), nil
}

// ResolveByUUID returns a copy of the account for a UUID, or nil if
// absent.
func (c *Cache) ResolveByUUID(ctx context.Context, id uuid.UUID) (*Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	account, err := c.lookupByUUIDLocked(ctx, id)
	if err != nil || account == nil {
		return nil, err
	}
	return copyAccount(account), nil
}

// Invalidate drops any cached entry for a UUID, forcing the next lookup
// to reload from the backend. Used after administrative removal.
func (c *Cache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if account, ok := c.byUUID[id]; ok {
		c.evictLocked(account)
	}
}

func (c *Cache) lookupByNameLocked(ctx context.Context, username string) (*Account, error) {
	if account, ok := c.byName[strings.ToLower(username)]; ok {
		return account, nil
	}
	account, err := c.repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_LOOKUP_FAILED").
			With("operation", "get account by username").
			Wrap(err)
	}
	c.storeLocked(account)
	return account, nil
}

func (c *Cache) lookupByUUIDLocked(ctx context.Context, id uuid.UUID) (*Account, error) {
	if account, ok := c.byUUID[id]; ok {
		return account, nil
	}
	account, err := c.repo.GetByUUID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_LOOKUP_FAILED").
			With("operation", "get account by uuid").
			With("uuid", id.String()).
			Wrap(err)
	}
	c.storeLocked(account)
	return account, nil
}

func (c *Cache) storeLocked(account *Account) {
	c.byUUID[account.UUID] = account
	c.byName[strings.ToLower(account.Username)] = account
}

func (c *Cache) evictLocked(account *Account) {
	delete(c.byUUID, account.UUID)
	delete(c.byName, strings.ToLower(account.Username))
}

func copyAccount(account *Account) *Account {
	cp := *account
	if account.ServerID != nil {
		marker := *account.ServerID
		cp.ServerID = &marker
	}
	return &cp
}
