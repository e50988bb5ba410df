// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package gateway_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchgate/launchgate/internal/auth"
	"github.com/launchgate/launchgate/internal/gateway"
	"github.com/launchgate/launchgate/internal/identity"
	"github.com/launchgate/launchgate/internal/keys"
	"github.com/launchgate/launchgate/internal/limiter"
	"github.com/launchgate/launchgate/internal/profile"
	"github.com/launchgate/launchgate/internal/wire"
)

// memAccountRepo is an in-memory identity.Repository.
type memAccountRepo struct {
	accounts map[uuid.UUID]*identity.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[uuid.UUID]*identity.Account)}
}

func (r *memAccountRepo) GetByUUID(_ context.Context, id uuid.UUID) (*identity.Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (r *memAccountRepo) GetByUsername(_ context.Context, username string) (*identity.Account, error) {
	for _, account := range r.accounts {
		if strings.EqualFold(account.Username, username) {
			cp := *account
			return &cp, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (r *memAccountRepo) Insert(_ context.Context, account *identity.Account) error {
	cp := *account
	r.accounts[account.UUID] = &cp
	return nil
}

func (r *memAccountRepo) UpdateAuth(_ context.Context, id uuid.UUID, username, accessToken string) (bool, error) {
	account, ok := r.accounts[id]
	if !ok {
		return false, nil
	}
	account.Username = username
	account.AccessToken = accessToken
	account.ServerID = nil
	return true, nil
}

func (r *memAccountRepo) UpdateServerID(_ context.Context, id uuid.UUID, serverID string) (bool, error) {
	account, ok := r.accounts[id]
	if !ok {
		return false, nil
	}
	account.ServerID = &serverID
	return true, nil
}

// memFingerprintRepo is an in-memory limiter.FingerprintRepository.
type memFingerprintRepo struct {
	nextID       int64
	values       map[string]int64
	banned       map[int64]bool
	associations map[string]map[int64]struct{}
}

func newMemFingerprintRepo() *memFingerprintRepo {
	return &memFingerprintRepo{
		values:       make(map[string]int64),
		banned:       make(map[int64]bool),
		associations: make(map[string]map[int64]struct{}),
	}
}

func (r *memFingerprintRepo) ListForAccount(_ context.Context, username string) (map[string]bool, error) {
	known := make(map[string]bool)
	for raw, id := range r.values {
		if _, ok := r.associations[strings.ToLower(username)][id]; ok {
			known[raw] = r.banned[id]
		}
	}
	return known, nil
}

func (r *memFingerprintRepo) GetOrRegister(_ context.Context, raw []byte, presumedBanned bool) (int64, bool, error) {
	if id, ok := r.values[string(raw)]; ok {
		return id, r.banned[id], nil
	}
	r.nextID++
	r.values[string(raw)] = r.nextID
	r.banned[r.nextID] = presumedBanned
	return r.nextID, presumedBanned, nil
}

func (r *memFingerprintRepo) Associate(_ context.Context, username string, fingerprintID int64) error {
	key := strings.ToLower(username)
	if r.associations[key] == nil {
		r.associations[key] = make(map[int64]struct{})
	}
	r.associations[key][fingerprintID] = struct{}{}
	return nil
}

// stubProvider delegates to a function.
type stubProvider struct {
	fn    func(ctx context.Context, login, password, ip string) (*auth.Result, error)
	calls int
}

func (p *stubProvider) Authenticate(ctx context.Context, login, password, ip string) (*auth.Result, error) {
	p.calls++
	return p.fn(ctx, login, password, ip)
}

func (p *stubProvider) Close() error { return nil }

// fixture bundles a handler with its collaborators for inspection.
type fixture struct {
	handler      *gateway.Handler
	pair         *keys.Pair
	provider     *stubProvider
	accounts     *memAccountRepo
	fingerprints *memFingerprintRepo
	violations   *limiter.ViolationLog
}

type fixtureOpts struct {
	provider auth.Provider
	ipConfig limiter.IPConfig
	profiles *profile.Store
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	pair, err := keys.Generate()
	require.NoError(t, err)

	stub, _ := opts.provider.(*stubProvider)
	if opts.provider == nil {
		stub = &stubProvider{fn: func(_ context.Context, login, _, _ string) (*auth.Result, error) {
			token, err := auth.GenerateAccessToken()
			if err != nil {
				return nil, err
			}
			return &auth.Result{Username: login, AccessToken: token}, nil
		}}
		opts.provider = stub
	}

	profiles := opts.profiles
	if profiles == nil {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("title: Default\n"), 0o644))
		profiles, err = profile.LoadDir(dir, pair)
		require.NoError(t, err)
	}

	accounts := newMemAccountRepo()
	fingerprints := newMemFingerprintRepo()
	violations := limiter.NewViolationLog(nil)

	handler := gateway.NewHandler(gateway.HandlerConfig{
		Decryptor:    pair,
		IPs:          limiter.NewIPLimiter(opts.ipConfig),
		Provider:     opts.provider,
		Cache:        identity.NewCache(accounts, nil),
		Fingerprints: limiter.NewFingerprints(fingerprints),
		Violations:   violations,
		Profiles:     profiles,
	})

	return &fixture{
		handler:      handler,
		pair:         pair,
		provider:     stub,
		accounts:     accounts,
		fingerprints: fingerprints,
		violations:   violations,
	}
}

// request builds a wire-encoded authentication request.
func request(t *testing.T, pair *keys.Pair, login, password string, fingerprint []byte, violation bool) *bytes.Buffer {
	t.Helper()

	encrypted, err := pair.EncryptPassword(password)
	require.NoError(t, err)

	var buf bytes.Buffer
	out := wire.NewWriter(&buf)
	require.NoError(t, out.WriteString(login))
	require.NoError(t, out.WriteBytes(encrypted))
	require.NoError(t, out.WriteBytes(fingerprint))
	require.NoError(t, out.WriteBool(violation))
	require.NoError(t, out.Flush())
	return &buf
}

type response struct {
	ok           bool
	reason       string
	uuid         string
	username     string
	token        string
	profileCount int
}

// readResponse decodes a full gateway response.
func readResponse(t *testing.T, buf *bytes.Buffer) response {
	t.Helper()

	in := wire.NewReader(buf)
	marker, err := in.ReadBool()
	require.NoError(t, err)

	if marker {
		reason, err := in.ReadString(wire.MaxReasonLength)
		require.NoError(t, err)
		assert.Zero(t, buf.Len(), "nothing follows a rejection")
		return response{reason: reason}
	}

	var resp response
	resp.ok = true
	resp.uuid, err = in.ReadString(64)
	require.NoError(t, err)
	resp.username, err = in.ReadString(wire.MaxLoginLength)
	require.NoError(t, err)
	resp.token, err = in.ReadString(wire.MaxAccessTokenLength)
	require.NoError(t, err)

	countBytes := make([]byte, 4)
	_, err = buf.Read(countBytes)
	require.NoError(t, err)
	count := int(countBytes[0])<<24 | int(countBytes[1])<<16 | int(countBytes[2])<<8 | int(countBytes[3])
	resp.profileCount = count

	for range count {
		_, err = in.ReadBytes(wire.MaxProfilePayload)
		require.NoError(t, err)
		_, err = in.ReadBytes(wire.MaxSignatureLength)
		require.NoError(t, err)
	}
	assert.Zero(t, buf.Len(), "no trailing bytes after response")
	return resp
}

func TestHandler_FileProviderLogin(t *testing.T) {
	hasher := auth.NewArgon2idHasher()
	digest, err := hasher.Hash("secret")
	require.NoError(t, err)

	dir := t.TempDir()
	credPath := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(credPath, []byte(
		"bob:\n  username: Bob\n  password_hash: \""+digest+"\"\n"), 0o644))

	fileProvider, err := auth.NewFileProvider(auth.FileConfig{Path: credPath}, hasher)
	require.NoError(t, err)

	t.Run("correct password returns canonical username", func(t *testing.T) {
		fx := newFixture(t, fixtureOpts{provider: fileProvider})
		var out bytes.Buffer
		err := fx.handler.Handle(context.Background(), request(t, fx.pair, "bob", "secret", []byte("dev"), false), &out, "1.2.3.4")
		require.NoError(t, err)

		resp := readResponse(t, &out)
		require.True(t, resp.ok)
		assert.Equal(t, "Bob", resp.username)
		assert.NotEmpty(t, resp.token)
		assert.Equal(t, identity.DeriveUUID("Bob").String(), resp.uuid)
	})

	t.Run("wrong password rejects without allocating identity", func(t *testing.T) {
		fx := newFixture(t, fixtureOpts{provider: fileProvider})
		var out bytes.Buffer
		err := fx.handler.Handle(context.Background(), request(t, fx.pair, "bob", "wrong", []byte("dev"), false), &out, "1.2.3.4")
		require.NoError(t, err)

		resp := readResponse(t, &out)
		assert.False(t, resp.ok)
		assert.Equal(t, "Incorrect username or password", resp.reason)
		assert.Empty(t, fx.accounts.accounts, "no account created on rejection")
	})
}

func TestHandler_RejectProvider(t *testing.T) {
	rejectProvider, err := auth.NewRejectProvider(auth.RejectConfig{Message: "Registration closed"})
	require.NoError(t, err)

	fx := newFixture(t, fixtureOpts{provider: rejectProvider})
	var out bytes.Buffer
	err = fx.handler.Handle(context.Background(), request(t, fx.pair, "anyone", "pw", []byte("dev"), false), &out, "1.2.3.4")
	require.NoError(t, err)

	resp := readResponse(t, &out)
	assert.Equal(t, "Registration closed", resp.reason)
}

func TestHandler_IPGateBeforeVerifier(t *testing.T) {
	fx := newFixture(t, fixtureOpts{
		ipConfig: limiter.IPConfig{
			Enable:                true,
			AllowList:             []string{"10.0.0.1"},
			AllowListExclusive:    true,
			NotWhitelistedMessage: "You are not whitelisted",
		},
	})

	var out bytes.Buffer
	err := fx.handler.Handle(context.Background(), request(t, fx.pair, "alice", "pw", []byte("dev"), false), &out, "9.9.9.9")
	require.NoError(t, err)

	resp := readResponse(t, &out)
	assert.Equal(t, "You are not whitelisted", resp.reason)
	assert.Zero(t, fx.provider.calls, "verifier must not run for a blocked IP")
}

func TestHandler_AccountBanPropagation(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	// carol's previous device was banned.
	fps := limiter.NewFingerprints(fx.fingerprints)
	id, _, err := fps.RegisterOrLookup(ctx, []byte("old-device"), true)
	require.NoError(t, err)
	require.NoError(t, fps.Associate(ctx, "carol", id))

	var out bytes.Buffer
	err = fx.handler.Handle(ctx, request(t, fx.pair, "carol", "pw", []byte("new-device"), false), &out, "1.2.3.4")
	require.NoError(t, err)

	resp := readResponse(t, &out)
	assert.Equal(t, limiter.DefaultBannedMessage, resp.reason)
}

func TestHandler_ViolationFlag(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})

	var out bytes.Buffer
	err := fx.handler.Handle(context.Background(), request(t, fx.pair, "mallory", "pw", []byte("dev"), true), &out, "1.2.3.4")
	require.NoError(t, err)

	resp := readResponse(t, &out)
	assert.Equal(t, limiter.DefaultBannedMessage, resp.reason)

	entries := fx.violations.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "mallory", entries[0].Username)
}

func TestHandler_DecryptionError(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})

	var buf bytes.Buffer
	out := wire.NewWriter(&buf)
	require.NoError(t, out.WriteString("alice"))
	require.NoError(t, out.WriteBytes([]byte("not really encrypted")))
	require.NoError(t, out.WriteBytes([]byte("dev")))
	require.NoError(t, out.WriteBool(false))
	require.NoError(t, out.Flush())

	var respBuf bytes.Buffer
	err := fx.handler.Handle(context.Background(), &buf, &respBuf, "1.2.3.4")
	require.NoError(t, err)

	resp := readResponse(t, &respBuf)
	assert.Equal(t, "Password decryption error", resp.reason)
	assert.Zero(t, fx.provider.calls)
}

func TestHandler_InternalFailuresAreGeneric(t *testing.T) {
	t.Run("provider backend failure", func(t *testing.T) {
		fx := newFixture(t, fixtureOpts{provider: &stubProvider{
			fn: func(context.Context, string, string, string) (*auth.Result, error) {
				return nil, errors.New("connection timed out to ldap://10.1.2.3")
			},
		}})

		var out bytes.Buffer
		err := fx.handler.Handle(context.Background(), request(t, fx.pair, "alice", "pw", []byte("dev"), false), &out, "1.2.3.4")
		require.NoError(t, err)

		resp := readResponse(t, &out)
		assert.Equal(t, "Internal auth provider error", resp.reason)
		assert.NotContains(t, resp.reason, "ldap", "backend topology must not leak")
	})

	t.Run("verifier returns illegal username", func(t *testing.T) {
		fx := newFixture(t, fixtureOpts{provider: &stubProvider{
			fn: func(context.Context, string, string, string) (*auth.Result, error) {
				return &auth.Result{Username: "bad name!", AccessToken: "tok"}, nil
			},
		}})

		var out bytes.Buffer
		err := fx.handler.Handle(context.Background(), request(t, fx.pair, "alice", "pw", []byte("dev"), false), &out, "1.2.3.4")
		require.NoError(t, err)

		resp := readResponse(t, &out)
		assert.Equal(t, "Illegal result: 'bad name!'", resp.reason)
	})
}

func TestHandler_TokenRotation(t *testing.T) {
	fx := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	var first bytes.Buffer
	require.NoError(t, fx.handler.Handle(ctx, request(t, fx.pair, "alice", "pw", []byte("dev"), false), &first, "1.2.3.4"))
	respA := readResponse(t, &first)
	require.True(t, respA.ok)

	var second bytes.Buffer
	require.NoError(t, fx.handler.Handle(ctx, request(t, fx.pair, "alice", "pw", []byte("dev"), false), &second, "1.2.3.4"))
	respB := readResponse(t, &second)
	require.True(t, respB.ok)

	assert.Equal(t, respA.uuid, respB.uuid, "stable identity across logins")
	assert.NotEqual(t, respA.token, respB.token, "token rotates every login")
}

func TestHandler_ProfileWhitelistOnRawLogin(t *testing.T) {
	pair, err := keys.Generate()
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "open.yaml"), []byte("title: Open\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vip.yaml"), []byte("title: VIP\nwhitelist:\n  - alice\n"), 0o644))
	profiles, err := profile.LoadDir(dir, pair)
	require.NoError(t, err)

	run := func(t *testing.T, login string) response {
		fx := newFixture(t, fixtureOpts{profiles: profiles})
		var out bytes.Buffer
		require.NoError(t, fx.handler.Handle(context.Background(), request(t, fx.pair, login, "pw", []byte("dev"), false), &out, "1.2.3.4"))
		return readResponse(t, &out)
	}

	t.Run("whitelisted login sees both", func(t *testing.T) {
		resp := run(t, "alice")
		require.True(t, resp.ok)
		assert.Equal(t, 2, resp.profileCount)
	})

	t.Run("other login sees only the open profile", func(t *testing.T) {
		resp := run(t, "dave")
		require.True(t, resp.ok)
		assert.Equal(t, 1, resp.profileCount)
	})
}
