// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package limiter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Violation is one client-reported tamper event.
type Violation struct {
	ID       ulid.ULID
	Username string
	At       time.Time
}

// ViolationLog collects usernames whose clients reported the tamper
// flag, for operator review. Entries are kept in memory and logged.
type ViolationLog struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries []Violation
}

// NewViolationLog creates a ViolationLog. A nil logger uses the
// default.
func NewViolationLog(logger *slog.Logger) *ViolationLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViolationLog{logger: logger}
}

// Record notes a violation for username and returns the entry id.
func (v *ViolationLog) Record(username string) ulid.ULID {
	entry := Violation{
		ID:       ulid.Make(),
		Username: username,
		At:       time.Now().UTC(),
	}

	v.mu.Lock()
	v.entries = append(v.entries, entry)
	v.mu.Unlock()

	v.logger.Warn("client reported violation flag",
		"violation_id", entry.ID.String(),
		"username", username)
	return entry.ID
}

// Snapshot returns a copy of all recorded violations.
func (v *ViolationLog) Snapshot() []Violation {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Violation, len(v.entries))
	copy(out, v.entries)
	return out
}
