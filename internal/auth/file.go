// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package auth

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// dummyPasswordHash is verified against when a login doesn't exist, so a
// missing entry costs the same as a wrong password. This is NOT a real
// credential - it's a fake digest that will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// FileConfig parameterizes the file-backed provider.
type FileConfig struct {
	// Path is the YAML credential file: lowercase login -> entry.
	Path string `koanf:"path"`
}

// fileEntry is one credential record in the YAML file.
type fileEntry struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	IP           string `yaml:"ip"`
}

// fileSnapshot is an immutable parse of the credential file, valid while
// the file's modification time is unchanged. Snapshots are swapped
// atomically so readers never observe a half-updated table.
type fileSnapshot struct {
	modTime time.Time
	entries map[string]fileEntry
}

// FileProvider authenticates against a YAML credential file, re-parsing
// it only when its modification time changes.
type FileProvider struct {
	path     string
	hasher   PasswordHasher
	snapshot atomic.Pointer[fileSnapshot]
	reload   sync.Mutex
}

// NewFileProvider creates a FileProvider and eagerly loads the file.
// A load failure at construction is logged but not fatal: the file may
// appear later, and every Authenticate call retries.
func NewFileProvider(cfg FileConfig, hasher PasswordHasher) (*FileProvider, error) {
	if cfg.Path == "" {
		return nil, oops.Code("AUTH_FILE_CONFIG").Errorf("credential file path cannot be empty")
	}
	p := &FileProvider{path: cfg.Path, hasher: hasher}
	if _, err := p.refresh(); err != nil {
		slog.Warn("credential file not loaded yet", "path", cfg.Path, "error", err)
	}
	return p, nil
}

// Authenticate verifies credentials against the current file snapshot.
func (p *FileProvider) Authenticate(_ context.Context, login, password, ip string) (*Result, error) {
	snap, err := p.refresh()
	if err != nil {
		return nil, oops.Code("AUTH_FILE_RELOAD_FAILED").With("path", p.path).Wrap(err)
	}

	entry, known := snap.entries[strings.ToLower(login)]
	targetHash := entry.PasswordHash
	if !known {
		targetHash = dummyPasswordHash
	}

	// Always verify so a missing login takes as long as a wrong password.
	valid, err := p.hasher.Verify(password, targetHash)
	if err != nil && known {
		return nil, oops.Code("AUTH_FILE_DIGEST_FAILED").With("login", login).Wrap(err)
	}
	if !known || !valid {
		return nil, Reject("Incorrect username or password")
	}

	if entry.IP != "" && entry.IP != ip {
		return nil, Reject("Authentication from this IP is not allowed")
	}

	token, err := GenerateAccessToken()
	if err != nil {
		return nil, err
	}
	return &Result{Username: entry.Username, AccessToken: token}, nil
}

// Close implements Provider.
func (p *FileProvider) Close() error {
	return nil
}

// refresh returns the current snapshot, re-parsing the file if its
// modification time changed since the last parse.
func (p *FileProvider) refresh() (*fileSnapshot, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return nil, oops.With("operation", "stat credential file").Wrap(err)
	}

	if snap := p.snapshot.Load(); snap != nil && snap.modTime.Equal(info.ModTime()) {
		return snap, nil
	}

	p.reload.Lock()
	defer p.reload.Unlock()

	// Another request may have reloaded while we waited for the lock.
	if snap := p.snapshot.Load(); snap != nil && snap.modTime.Equal(info.ModTime()) {
		return snap, nil
	}

	slog.Info("recaching credential file", "path", p.path)

	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, oops.With("operation", "read credential file").Wrap(err)
	}

	var parsed map[string]fileEntry
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, oops.With("operation", "parse credential file").Wrap(err)
	}

	entries := make(map[string]fileEntry, len(parsed))
	for login, entry := range parsed {
		key := strings.ToLower(login)
		if _, dup := entries[key]; dup {
			return nil, oops.Code("AUTH_FILE_DUPLICATE").Errorf("duplicate login: %q", login)
		}
		if !IsValidUsername(entry.Username) {
			return nil, oops.Code("AUTH_FILE_INVALID").Errorf("invalid username: %q", entry.Username)
		}
		if entry.PasswordHash == "" {
			return nil, oops.Code("AUTH_FILE_INVALID").Errorf("password hash can't be empty: %q", login)
		}
		entries[key] = entry
	}

	snap := &fileSnapshot{modTime: info.ModTime(), entries: entries}
	p.snapshot.Store(snap)
	return snap, nil
}

// Compile-time interface check.
var _ Provider = (*FileProvider)(nil)
