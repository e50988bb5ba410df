// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

// Package profile manages client-configuration profiles: YAML files
// describing a game client build, each with an optional login
// whitelist, served to authenticated clients in signed form.
package profile

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Profile is one client configuration.
type Profile struct {
	// Title is the operator-facing profile name.
	Title string `yaml:"title"`

	// Version is the client build version string.
	Version string `yaml:"version"`

	// ServerAddress and ServerPort locate the game server this profile
	// connects to.
	ServerAddress string `yaml:"server_address"`
	ServerPort    int    `yaml:"server_port"`

	// Whitelist restricts the profile to logins matching any of these
	// glob patterns. Empty means visible to everyone.
	Whitelist []string `yaml:"whitelist"`

	patterns []glob.Glob
}

// Parse decodes a YAML profile and compiles its whitelist patterns.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, oops.Code("PROFILE_PARSE_FAILED").
			With("operation", "parse profile").
			Wrap(err)
	}
	if p.Title == "" {
		return nil, oops.Code("PROFILE_INVALID").Errorf("profile title can't be empty")
	}
	for _, pattern := range p.Whitelist {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.Code("PROFILE_INVALID").
				With("title", p.Title).
				With("pattern", pattern).
				Wrapf(err, "invalid whitelist pattern")
		}
		p.patterns = append(p.patterns, g)
	}
	return &p, nil
}

// IsWhitelisted reports whether a login may see this profile. Matching
// is against the login exactly as the client sent it.
func (p *Profile) IsWhitelisted(login string) bool {
	if len(p.patterns) == 0 {
		return true
	}
	for _, g := range p.patterns {
		if g.Match(login) {
			return true
		}
	}
	return false
}
