// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package auth

import (
	"context"

	"github.com/samber/oops"
)

// RejectConfig parameterizes the deny-all provider.
type RejectConfig struct {
	// Message is shown to every client. Used to hard-disable a login path.
	Message string `koanf:"message"`
}

// RejectProvider unconditionally fails with a fixed operator message.
type RejectProvider struct {
	message string
}

// NewRejectProvider validates the configured message.
func NewRejectProvider(cfg RejectConfig) (*RejectProvider, error) {
	if cfg.Message == "" {
		return nil, oops.Code("AUTH_REJECT_CONFIG").Errorf("auth error message can't be empty")
	}
	return &RejectProvider{message: cfg.Message}, nil
}

// Authenticate always rejects.
func (p *RejectProvider) Authenticate(_ context.Context, _, _, _ string) (*Result, error) {
	return nil, Reject("%s", p.message)
}

// Close implements Provider.
func (p *RejectProvider) Close() error {
	return nil
}

// Compile-time interface check.
var _ Provider = (*RejectProvider)(nil)
