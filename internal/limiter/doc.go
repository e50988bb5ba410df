// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

// Package limiter enforces abuse-prevention policy ahead of credential
// verification: static IP allow/block lists with a dynamic per-IP rate
// window, hardware-fingerprint ban tracking with account association,
// and a violation log for client-reported tamper flags.
package limiter
