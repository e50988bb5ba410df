// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package limiter

import (
	"sync"
	"time"
)

// Default user-facing rejection messages, overridable per deployment.
const (
	DefaultBannedMessage         = "You are banned"
	DefaultNotWhitelistedMessage = "You are not whitelisted"
	DefaultRateLimitedMessage    = "Try again later"
)

// IPConfig is the operator-facing IP policy surface.
type IPConfig struct {
	// Enable turns the whole IP gate on. Disabled means every IP passes.
	Enable bool `koanf:"enable"`

	// BlockList always rejects, regardless of allow-list membership.
	BlockList []string `koanf:"block_list"`

	// AllowList exempts IPs from the exclusive check and the rate window.
	AllowList []string `koanf:"allow_list"`

	// AllowListExclusive rejects any IP not on the allow list.
	AllowListExclusive bool `koanf:"allow_list_exclusive"`

	// RateLimit is the number of requests allowed per RateWindow for IPs
	// outside the allow list. Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit"`

	// RateWindow is the measurement window for RateLimit.
	RateWindow time.Duration `koanf:"rate_window"`

	// Operator-authored rejection messages.
	BannedMessage         string `koanf:"banned_message"`
	NotWhitelistedMessage string `koanf:"not_whitelisted_message"`
	RateLimitedMessage    string `koanf:"rate_limited_message"`
}

// Decision is the outcome of an IP check. Message is user-facing and
// only meaningful when Allowed is false.
type Decision struct {
	Allowed bool
	Message string
}

var allowed = Decision{Allowed: true}

// ipWindow is one IP's rate-limit state.
type ipWindow struct {
	start time.Time
	count int
}

// IPLimiter applies the static lists and the dynamic rate window.
// Lists are immutable after construction; the window map is guarded by
// a mutex and evicts idle entries during checks.
type IPLimiter struct {
	enabled   bool
	blockList map[string]struct{}
	allowList map[string]struct{}
	exclusive bool

	rateLimit  int
	rateWindow time.Duration

	bannedMsg         string
	notWhitelistedMsg string
	rateLimitedMsg    string

	mu      sync.Mutex
	windows map[string]ipWindow
	now     func() time.Time
}

// NewIPLimiter constructs an IPLimiter from config. Empty messages fall
// back to the defaults and a zero window falls back to one minute.
func NewIPLimiter(cfg IPConfig) *IPLimiter {
	l := &IPLimiter{
		enabled:           cfg.Enable,
		blockList:         toSet(cfg.BlockList),
		allowList:         toSet(cfg.AllowList),
		exclusive:         cfg.AllowListExclusive,
		rateLimit:         cfg.RateLimit,
		rateWindow:        cfg.RateWindow,
		bannedMsg:         cfg.BannedMessage,
		notWhitelistedMsg: cfg.NotWhitelistedMessage,
		rateLimitedMsg:    cfg.RateLimitedMessage,
		windows:           make(map[string]ipWindow),
		now:               time.Now,
	}
	if l.rateWindow <= 0 {
		l.rateWindow = time.Minute
	}
	if l.bannedMsg == "" {
		l.bannedMsg = DefaultBannedMessage
	}
	if l.notWhitelistedMsg == "" {
		l.notWhitelistedMsg = DefaultNotWhitelistedMessage
	}
	if l.rateLimitedMsg == "" {
		l.rateLimitedMsg = DefaultRateLimitedMessage
	}
	return l
}

// BannedMessage returns the operator-authored ban message, shared with
// the fingerprint and violation ban paths.
func (l *IPLimiter) BannedMessage() string {
	return l.bannedMsg
}

// Check evaluates the policy ladder for one request from ip. The order
// short-circuits: disabled, block list, allow list, rate window.
func (l *IPLimiter) Check(ip string) Decision {
	if !l.enabled {
		return allowed
	}
	if _, blocked := l.blockList[ip]; blocked {
		return Decision{Message: l.bannedMsg}
	}
	if _, listed := l.allowList[ip]; listed {
		return allowed
	}
	if l.exclusive {
		return Decision{Message: l.notWhitelistedMsg}
	}
	if l.rateLimit > 0 && l.exceeded(ip) {
		return Decision{Message: l.rateLimitedMsg}
	}
	return allowed
}

// exceeded counts this request against ip's window and reports whether
// the budget is spent. Expired windows are evicted on the way through.
func (l *IPLimiter) exceeded(ip string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictLocked(now)

	w, ok := l.windows[ip]
	if !ok || now.Sub(w.start) >= l.rateWindow {
		l.windows[ip] = ipWindow{start: now, count: 1}
		return false
	}
	w.count++
	l.windows[ip] = w
	return w.count > l.rateLimit
}

// evictLocked drops windows that have fully expired.
func (l *IPLimiter) evictLocked(now time.Time) {
	for ip, w := range l.windows {
		if now.Sub(w.start) >= l.rateWindow {
			delete(l.windows, ip)
		}
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
