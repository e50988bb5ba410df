// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package auth

import "regexp"

// usernamePattern matches usernames the platform accepts: 1-16 chars of
// Latin or Cyrillic letters, digits, underscore, dot, or hyphen. The
// same pattern is applied to provider results as a defense against a
// misbehaving identity backend.
var usernamePattern = regexp.MustCompile(`^[a-zA-Zа-яА-Я0-9_.\-]{1,16}$`)

// IsValidUsername reports whether s is a syntactically valid username.
func IsValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}
