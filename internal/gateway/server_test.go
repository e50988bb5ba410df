// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package gateway_test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/launchgate/launchgate/internal/gateway"
	"github.com/launchgate/launchgate/internal/wire"
)

type countingCounter struct {
	n atomic.Int64
}

func (c *countingCounter) Inc() { c.n.Add(1) }

// waitForAddr polls until the server has bound its listener.
func waitForAddr(t *testing.T, srv *gateway.Server) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := srv.Addr(); addr != "" {
			return addr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server never bound a listener")
	return ""
}

func TestServer_FullExchange(t *testing.T) {
	defer goleak.VerifyNone(t)

	fx := newFixture(t, fixtureOpts{})
	counter := &countingCounter{}
	srv := gateway.NewServer("127.0.0.1:0", fx.handler, nil, counter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	addr := waitForAddr(t, srv)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	req := request(t, fx.pair, "alice", "pw", []byte("device"), false)
	_, err = conn.Write(req.Bytes())
	require.NoError(t, err)

	in := wire.NewReader(conn)
	marker, err := in.ReadBool()
	require.NoError(t, err)
	assert.False(t, marker, "expected the success marker")

	uuidStr, err := in.ReadString(64)
	require.NoError(t, err)
	assert.NotEmpty(t, uuidStr)
	username, err := in.ReadString(wire.MaxLoginLength)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
	token, err := in.ReadString(wire.MaxAccessTokenLength)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.Equal(t, int64(1), counter.n.Load())

	require.NoError(t, conn.Close())
	cancel()
	require.NoError(t, <-done)
}

func TestServer_ListenFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = occupied.Close() }()

	fx := newFixture(t, fixtureOpts{})
	srv := gateway.NewServer(occupied.Addr().String(), fx.handler, nil, nil)
	err = srv.Run(context.Background())
	require.Error(t, err)
}

func TestServer_StopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	fx := newFixture(t, fixtureOpts{})
	srv := gateway.NewServer("127.0.0.1:0", fx.handler, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	waitForAddr(t, srv)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}
