// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package auth

import (
	"context"

	"github.com/samber/oops"
)

// Result is a successful credential verification: the identity source's
// canonical spelling of the username and a freshly minted access token.
// It is consumed immediately by the identity cache and never persisted
// on its own.
type Result struct {
	Username    string
	AccessToken string
}

// Provider validates a login/password pair against one external
// identity source.
type Provider interface {
	// Authenticate verifies the credentials. The caller's IP is passed
	// through for providers that restrict or report it. A *Rejection
	// error carries a user-facing reason; any other error is internal.
	Authenticate(ctx context.Context, login, password, ip string) (*Result, error)

	// Close releases provider resources.
	Close() error
}

// ProviderConfig selects and parameterizes a provider variant.
type ProviderConfig struct {
	Kind   string       `koanf:"kind"`
	File   FileConfig   `koanf:"file"`
	Remote RemoteConfig `koanf:"remote"`
	Reject RejectConfig `koanf:"reject"`
}

// NewProvider constructs the provider named by cfg.Kind. The set of
// variants is fixed; unknown discriminators are a configuration error.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Kind {
	case "file":
		return NewFileProvider(cfg.File, NewArgon2idHasher())
	case "remote":
		return NewRemoteProvider(cfg.Remote)
	case "reject":
		return NewRejectProvider(cfg.Reject)
	default:
		return nil, oops.Code("AUTH_UNKNOWN_PROVIDER").
			With("kind", cfg.Kind).
			Errorf("unknown auth provider kind %q", cfg.Kind)
	}
}
