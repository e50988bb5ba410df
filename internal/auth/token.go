// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package auth

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/samber/oops"
)

// AccessTokenBytes is the entropy of a minted access token.
// 16 bytes = 32 hex chars, matching the launcher protocol's token field.
const AccessTokenBytes = 16

// GenerateAccessToken mints an opaque session credential. Every
// successful authentication gets a distinct token.
func GenerateAccessToken() (string, error) {
	b := make([]byte, AccessTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}
