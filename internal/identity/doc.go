// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

// Package identity maintains the canonical mapping from persistent
// account identity to ephemeral session state: account UUID, canonical
// username, current access token, and the server-join marker.
//
// The Cache is the one piece of shared mutable state across concurrent
// requests. Mutations are write-through: the in-memory view changes only
// after the persistent backend write succeeds, so the cache and the
// store never disagree once a mutation completes.
package identity
