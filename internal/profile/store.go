// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package profile

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Signer produces a detached signature over a payload. Satisfied by
// keys.Pair.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
}

// Signed is a profile in wire form: the serialized payload plus its
// signature, so clients can verify it against the server's public key.
type Signed struct {
	Profile   *Profile
	Payload   []byte
	Signature []byte
}

// Store holds all loaded profiles in signed form. Profiles are read
// once at startup; the set is immutable afterwards.
type Store struct {
	profiles []Signed
}

// LoadDir reads every .yaml file in dir, signs each profile, and
// returns the Store. Files are loaded in name order so the response
// ordering is stable across restarts.
func LoadDir(dir string, signer Signer) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, oops.Code("PROFILE_DIR_FAILED").
			With("operation", "read profile directory").
			With("dir", dir).
			Wrap(err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	store := &Store{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, oops.Code("PROFILE_READ_FAILED").
				With("operation", "read profile file").
				With("path", path).
				Wrap(err)
		}

		p, err := Parse(data)
		if err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}

		signed, err := sign(p, signer)
		if err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		store.profiles = append(store.profiles, signed)
	}
	return store, nil
}

// sign serializes the profile canonically and signs the result, so
// repeated loads of an unchanged file produce an identical payload.
func sign(p *Profile, signer Signer) (Signed, error) {
	payload, err := yaml.Marshal(p)
	if err != nil {
		return Signed{}, oops.Code("PROFILE_MARSHAL_FAILED").
			With("operation", "serialize profile").
			With("title", p.Title).
			Wrap(err)
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return Signed{}, oops.Code("PROFILE_SIGN_FAILED").
			With("operation", "sign profile").
			With("title", p.Title).
			Wrap(err)
	}
	return Signed{Profile: p, Payload: payload, Signature: sig}, nil
}

// ListFor returns the signed profiles whose whitelist admits login.
func (s *Store) ListFor(login string) []Signed {
	out := make([]Signed, 0, len(s.profiles))
	for _, signed := range s.profiles {
		if signed.Profile.IsWhitelisted(login) {
			out = append(out, signed)
		}
	}
	return out
}

// Len reports the number of loaded profiles.
func (s *Store) Len() int {
	return len(s.profiles)
}
