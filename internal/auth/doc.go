// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

// Package auth provides credential verification for Launchgate.
//
// # Providers
//
// A Provider validates a login/password pair against one external
// identity source and returns the canonical username plus a freshly
// minted access token. Three variants exist, selected by the "kind"
// discriminator in configuration:
//   - "file" - a YAML credential file with argon2id password digests
//   - "remote" - a JSON POST callout to an external HTTP endpoint
//   - "reject" - unconditionally fails with a configured message
//
// # Failure semantics
//
// Rejection errors carry operator-authored, user-facing messages and are
// shown to the client verbatim. Every other error is internal: callers
// log it in full and surface only a generic message.
package auth
