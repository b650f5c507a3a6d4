package e2e_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idanmel/skyarena/internal/cli"
	"github.com/idanmel/skyarena/internal/factory"
	"github.com/idanmel/skyarena/internal/handshake"
	"github.com/idanmel/skyarena/internal/protocol"
	"github.com/idanmel/skyarena/internal/relay"
	"github.com/idanmel/skyarena/internal/testutil"
)

type stack struct {
	app     *factory.Application
	tcpAddr string
	udpAddr *net.UDPAddr
	cancel  context.CancelFunc
	done    chan struct{}
}

// startStack boots the full server on loopback: acceptor, sessions, and the
// UDP relay, all against the in-memory account store.
func startStack(t *testing.T) *stack {
	t.Helper()

	app, err := factory.New(factory.Config{Logger: testutil.NopLogger()})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		_ = app.Server.Serve(ctx, ln)
		close(done)
	}()

	relayCfg := relay.Config{
		BroadcastInterval: 20 * time.Millisecond,
		ReadTimeout:       50 * time.Millisecond,
		MaxDatagram:       2048,
	}
	go relay.New(udpConn, app.Registry, testutil.NopLogger(), relayCfg).Run(ctx)

	s := &stack{
		app:     app,
		tcpAddr: ln.Addr().String(),
		udpAddr: udpConn.LocalAddr().(*net.UDPAddr),
		cancel:  cancel,
		done:    done,
	}
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
		_ = udpConn.Close()
		_ = app.Close()
	})
	return s
}

// TestFullScenario walks the whole player journey: signup, shop, purchase,
// aircraft selection, UDP address binding, a position update, and its
// appearance in the world broadcast.
func TestFullScenario(t *testing.T) {
	s := startStack(t)

	client, err := cli.Dial(s.tcpAddr)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	// Signup lands in the select window with the starter kit
	ok, err := client.Signup("alice", "secret")
	require.NoError(t, err)
	require.True(t, ok)

	balance, inventory, err := client.Shop()
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)
	assert.Equal(t, []string{"F-16"}, inventory)

	// Buy a MiG-25 for 300
	ok, err = client.Buy("MiG-25")
	require.NoError(t, err)
	require.True(t, ok)

	balance, inventory, err = client.Shop()
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)
	assert.Equal(t, []string{"F-16", "MiG-25"}, inventory)

	// Enter the open world with an owned aircraft
	ok, err = client.Select("F-16", "tok123")
	require.NoError(t, err)
	require.True(t, ok)

	// Bind this test's UDP address to the token
	udpClient, err := net.DialUDP("udp", nil, s.udpAddr)
	require.NoError(t, err)
	defer func() { _ = udpClient.Close() }()

	_, err = udpClient.Write([]byte("ADDS#tok123"))
	require.NoError(t, err)

	buf := make([]byte, 2048)
	require.NoError(t, udpClient.SetReadDeadline(time.Now().Add(3*time.Second)))
	n, err := udpClient.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ADDC", string(buf[:n]))

	// Report a position and wait for it in the broadcast
	_, err = udpClient.Write([]byte("UPDR#tok123$10$20$30$0$0$0"))
	require.NoError(t, err)

	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, udpClient.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, err = udpClient.Read(buf)
		require.NoError(t, err)
		msg := string(buf[:n])
		require.True(t, strings.HasPrefix(msg, "UPDA#"))
		if strings.Contains(msg, "alice|F-16|10|20|30|0|0|0") {
			break
		}
		require.False(t, time.Now().After(deadline), "broadcast never contained the position, last %q", msg)
	}
}

// TestSelectRejectsUnownedAircraft covers the ownership check end to end.
func TestSelectRejectsUnownedAircraft(t *testing.T) {
	s := startStack(t)

	client, err := cli.Dial(s.tcpAddr)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	ok, err := client.Signup("bob", "secret")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.Select("B-2", "tok999")
	require.NoError(t, err)
	assert.False(t, ok)

	players, _ := s.app.Registry.Counts()
	assert.Zero(t, players)
}

// TestShutdownNotifiesLiveSessions verifies every live session receives the
// final shutdown frame when the process goes down.
func TestShutdownNotifiesLiveSessions(t *testing.T) {
	s := startStack(t)

	conn, err := net.Dial("tcp", s.tcpAddr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	key, err := handshake.ClientEstablish(conn)
	require.NoError(t, err)

	// Complete one round trip so the session is fully live
	frame, err := protocol.EncodeFrame([]byte("SGNR#carol$secret"), key)
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)

	reply, err := protocol.DecodeFrame(conn, key)
	require.NoError(t, err)
	require.Equal(t, "SGNA#1", string(reply))

	s.cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	notice, err := protocol.DecodeFrame(conn, key)
	require.NoError(t, err)
	assert.Equal(t, "EXTS#", string(notice))
}

// TestDisconnectCleansWorldState covers the teardown path for a vanished
// client that was mid-flight.
func TestDisconnectCleansWorldState(t *testing.T) {
	s := startStack(t)

	client, err := cli.Dial(s.tcpAddr)
	require.NoError(t, err)

	ok, err := client.Signup("dave", "secret")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.Select("F-16", "tok777")
	require.NoError(t, err)
	require.True(t, ok)

	players, _ := s.app.Registry.Counts()
	require.Equal(t, 1, players)

	// Vanish without EXTG/EXTC
	require.NoError(t, client.CloseAbruptly())

	require.Eventually(t, func() bool {
		players, _ := s.app.Registry.Counts()
		return players == 0
	}, 5*time.Second, 20*time.Millisecond, "registry was not cleaned after disconnect")
}
