// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package auth_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchgate/launchgate/internal/auth"
)

func writeCredentials(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newFileProvider(t *testing.T, content string) (*auth.FileProvider, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.yaml")
	writeCredentials(t, path, content)
	provider, err := auth.NewFileProvider(auth.FileConfig{Path: path}, auth.NewArgon2idHasher())
	require.NoError(t, err)
	return provider, path
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	digest, err := auth.NewArgon2idHasher().Hash(password)
	require.NoError(t, err)
	return digest
}

func TestFileProvider_Authenticate(t *testing.T) {
	ctx := context.Background()
	digest := hashOf(t, "secret")
	provider, _ := newFileProvider(t,
		"bob:\n  username: Bob\n  password_hash: \""+digest+"\"\n")

	t.Run("correct credentials", func(t *testing.T) {
		result, err := provider.Authenticate(ctx, "bob", "secret", "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, "Bob", result.Username, "canonical spelling comes from the file")
		assert.Len(t, result.AccessToken, 32)
	})

	t.Run("login lookup is case-insensitive", func(t *testing.T) {
		result, err := provider.Authenticate(ctx, "BOB", "secret", "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, "Bob", result.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := provider.Authenticate(ctx, "bob", "wrong", "1.2.3.4")
		rejection, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, "Incorrect username or password", rejection.Message)
	})

	t.Run("unknown login gets the same message", func(t *testing.T) {
		_, err := provider.Authenticate(ctx, "nobody", "secret", "1.2.3.4")
		rejection, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, "Incorrect username or password", rejection.Message)
	})
}

func TestFileProvider_IPRestriction(t *testing.T) {
	ctx := context.Background()
	digest := hashOf(t, "secret")
	provider, _ := newFileProvider(t,
		"alice:\n  username: Alice\n  password_hash: \""+digest+"\"\n  ip: 10.0.0.1\n")

	t.Run("matching IP", func(t *testing.T) {
		_, err := provider.Authenticate(ctx, "alice", "secret", "10.0.0.1")
		require.NoError(t, err)
	})

	t.Run("other IP", func(t *testing.T) {
		_, err := provider.Authenticate(ctx, "alice", "secret", "10.0.0.2")
		rejection, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, "Authentication from this IP is not allowed", rejection.Message)
	})
}

func TestFileProvider_ReloadsOnModification(t *testing.T) {
	ctx := context.Background()
	digest := hashOf(t, "secret")
	provider, path := newFileProvider(t,
		"bob:\n  username: Bob\n  password_hash: \""+digest+"\"\n")

	_, err := provider.Authenticate(ctx, "carol", "secret", "1.2.3.4")
	_, ok := auth.AsRejection(err)
	require.True(t, ok, "carol is not in the file yet")

	writeCredentials(t, path,
		"bob:\n  username: Bob\n  password_hash: \""+digest+"\"\n"+
			"carol:\n  username: Carol\n  password_hash: \""+digest+"\"\n")
	// Force a distinct modification time; some filesystems round to the
	// second.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	result, err := provider.Authenticate(ctx, "carol", "secret", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "Carol", result.Username)
}

func TestFileProvider_MissingFileIsNotFatal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.yaml")

	provider, err := auth.NewFileProvider(auth.FileConfig{Path: path}, auth.NewArgon2idHasher())
	require.NoError(t, err, "construction succeeds even without the file")

	_, err = provider.Authenticate(ctx, "bob", "secret", "1.2.3.4")
	require.Error(t, err)
	_, ok := auth.AsRejection(err)
	assert.False(t, ok, "a missing file is an internal error, not a rejection")

	digest := hashOf(t, "secret")
	writeCredentials(t, path, "bob:\n  username: Bob\n  password_hash: \""+digest+"\"\n")

	result, err := provider.Authenticate(ctx, "bob", "secret", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "Bob", result.Username)
}

func TestFileProvider_RejectsBadFiles(t *testing.T) {
	ctx := context.Background()
	digest := hashOf(t, "secret")

	tests := []struct {
		name    string
		content string
	}{
		{
			name: "logins colliding after lowercasing",
			content: "bob:\n  username: Bob\n  password_hash: \"" + digest + "\"\n" +
				"BOB:\n  username: Bobby\n  password_hash: \"" + digest + "\"\n",
		},
		{
			name:    "invalid username",
			content: "bob:\n  username: \"no spaces allowed\"\n  password_hash: \"" + digest + "\"\n",
		},
		{
			name:    "empty password hash",
			content: "bob:\n  username: Bob\n",
		},
		{
			name:    "not a mapping",
			content: "- just\n- a\n- list\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, _ := newFileProvider(t, tt.content)
			_, err := provider.Authenticate(ctx, "bob", "secret", "1.2.3.4")
			require.Error(t, err)
			_, ok := auth.AsRejection(err)
			assert.False(t, ok, "file errors must not leak to the client")
		})
	}
}

func TestNewFileProvider_EmptyPath(t *testing.T) {
	_, err := auth.NewFileProvider(auth.FileConfig{}, auth.NewArgon2idHasher())
	require.Error(t, err)
}
